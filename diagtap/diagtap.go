// Package diagtap implements a unix-domain-socket introspection tap: it
// broadcasts JSONL TransferEvent records describing every transfer the
// dispatcher observes, for external debugging tools to tail.
package diagtap

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/cyphal-go/uavnode/node"
)

// TransferEvent is the data sent down the socket in JSONL form to clients.
// Direction, Timestamp, Kind, and Port are always filled in; the rest are
// best-effort.
type TransferEvent struct {
	Direction    string // "rx" or "tx"
	Timestamp    time.Time
	Kind         string
	Port         uint16
	RemoteNodeID uint16
	TransferID   uint64
	PayloadLen   int
}

// Server fans TransferEvents out to every client connected to the
// unix-domain socket.
type Server struct {
	eventC       chan *TransferEvent
	filename     string
	clients      map[net.Conn]struct{}
	unixListener net.Listener
	mutex        sync.Mutex
	servingWG    sync.WaitGroup
}

// New creates a Server that will serve clients on filename once Listen and
// Serve are called.
func New(filename string) *Server {
	return &Server{
		filename: filename,
		eventC:   make(chan *TransferEvent, 100),
		clients:  make(map[net.Conn]struct{}),
	}
}

func (s *Server) addClient(c net.Conn) {
	log.Println("diagtap: new client", c.RemoteAddr())
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Server) removeClient(c net.Conn) {
	s.servingWG.Add(1)
	defer s.servingWG.Done()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.clients, c)
}

func (s *Server) sendToAllListeners(data string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for c := range s.clients {
		if _, err := fmt.Fprintln(c, data); err != nil {
			go s.removeClient(c)
			go c.Close()
		}
	}
}

func (s *Server) notifyClients(ctx context.Context) {
	s.servingWG.Add(1)
	defer s.servingWG.Done()
	for ctx.Err() == nil {
		event := <-s.eventC
		if event == nil {
			continue
		}
		b, err := json.Marshal(*event)
		if err != nil {
			log.Printf("diagtap: bad event %+v: %v", event, err)
			continue
		}
		s.sendToAllListeners(string(b))
	}
}

// Listen opens the unix-domain socket. Connections will not succeed until
// Serve is also running.
func (s *Server) Listen() error {
	s.servingWG.Add(1)
	os.Remove(s.filename)
	var err error
	s.unixListener, err = net.Listen("unix", s.filename)
	return err
}

// Serve accepts clients until ctx is cancelled. Run it in a goroutine after
// Listen.
func (s *Server) Serve(ctx context.Context) error {
	defer s.servingWG.Done()
	derivedCtx, derivedCancel := context.WithCancel(ctx)
	defer derivedCancel()

	go s.notifyClients(derivedCtx)

	s.servingWG.Add(1)
	go func() {
		<-derivedCtx.Done()
		s.unixListener.Close()
		s.servingWG.Done()
	}()

	var err error
	for derivedCtx.Err() == nil {
		var conn net.Conn
		conn, err = s.unixListener.Accept()
		if err != nil {
			log.Printf("diagtap: accept on %q: %v", s.filename, err)
			continue
		}
		s.addClient(conn)
	}
	return err
}

// Tap returns a node.Transport wrapper that emits a TransferEvent for every
// Send, without altering t's behavior. Compose it around the real transport:
// n.AddTransport(diagtap.Tap(serialTransport, srv)).
//
// Only the outbound path is observed: transports hand decoded inbound
// transfers to Node.TransferReceive themselves, through the node reference
// they capture in Start, so received traffic never passes through the
// wrapper.
func Tap(t node.Transport, s *Server) node.Transport {
	return &tappedTransport{inner: t, srv: s}
}

type tappedTransport struct {
	inner node.Transport
	srv   *Server
}

func (tt *tappedTransport) Start(n *node.Node) error { return tt.inner.Start(n) }
func (tt *tappedTransport) Stop(n *node.Node) error  { return tt.inner.Stop(n) }
func (tt *tappedTransport) Port(n *node.Node, port node.PortID, info *node.PortInfo) {
	tt.inner.Port(n, port, info)
}
func (tt *tappedTransport) Loop(n *node.Node, tMS, dtMS uint32) { tt.inner.Loop(n, tMS, dtMS) }

func (tt *tappedTransport) Send(t *node.Transfer) {
	tt.srv.emit("tx", t)
	tt.inner.Send(t)
}

func (s *Server) emit(direction string, t *node.Transfer) {
	select {
	case s.eventC <- &TransferEvent{
		Direction:    direction,
		Timestamp:    time.Now(),
		Kind:         t.Header.Kind.String(),
		Port:         uint16(t.Header.Port),
		RemoteNodeID: uint16(t.Header.RemoteNodeID),
		TransferID:   uint64(t.Header.TransferID),
		PayloadLen:   len(t.Payload),
	}:
	default:
		// Drop rather than block the node's loop on a slow consumer.
	}
}
