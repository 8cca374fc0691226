package udpx

import (
	"log"
	"net"
	"time"

	"github.com/m-lab/go/logx"

	"github.com/cyphal-go/uavnode/metrics"
	"github.com/cyphal-go/uavnode/node"
)

// Malformed datagrams can arrive at wire rate; rate-limit the drop logging.
var dropLog = logx.NewLogEvery(nil, time.Second)

// maxDatagram bounds the receive buffer. This module never fragments a
// transfer across datagrams, so anything larger than one Ethernet-sized
// UDP payload is rejected by the caller's own codec layer when it runs out
// of input.
const maxDatagram = 1200

// Transport implements node.Transport over UDP/IPv4: every subject and
// service direction is bound to its own well-known UDP port within subnet,
// following udpPortForSubject/udpPortForService. Unlike the serial
// transport there is no byte-stuffing or CRC: one datagram carries exactly
// one transfer, and UDP's own checksum covers the wire.
type Transport struct {
	subnet *net.IPNet

	send *net.UDPConn

	listeners map[int]*net.UDPConn
	boundFor  map[node.PortID][]int

	readBuf []byte
}

// New creates a Transport addressed within subnet (see InterfaceSubnet).
func New(subnet *net.IPNet) *Transport {
	return &Transport{
		subnet:    subnet,
		listeners: make(map[int]*net.UDPConn),
		boundFor:  make(map[node.PortID][]int),
		readBuf:   make([]byte, maxDatagram),
	}
}

// Start opens the shared send socket used for every outbound datagram,
// regardless of which port it carries.
func (tr *Transport) Start(n *node.Node) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return err
	}
	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return err
	}
	tr.send = conn
	return nil
}

// Stop closes every bound listener and the shared send socket.
func (tr *Transport) Stop(n *node.Node) error {
	for udpPort, c := range tr.listeners {
		c.Close()
		delete(tr.listeners, udpPort)
	}
	tr.boundFor = make(map[node.PortID][]int)
	if tr.send == nil {
		return nil
	}
	err := tr.send.Close()
	tr.send = nil
	return err
}

// Port binds the listener socket(s) backing port according to info's
// direction flags, or unbinds them when info is nil (port removed).
func (tr *Transport) Port(n *node.Node, port node.PortID, info *node.PortInfo) {
	if info == nil {
		tr.unbind(port)
		return
	}
	if port.IsService() {
		if info.IsInput {
			tr.bind(port, udpPortForService(port.ServiceID(), node.Request))
		}
		if info.IsOutput {
			tr.bind(port, udpPortForService(port.ServiceID(), node.Response))
		}
		return
	}
	if info.IsInput {
		tr.bind(port, udpPortForSubject(port.SubjectID()))
	}
}

func (tr *Transport) bind(port node.PortID, udpPort int) {
	if _, ok := tr.listeners[udpPort]; ok {
		return
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: udpPort})
	if err != nil {
		log.Printf("udpx: bind port %d (udp %d): %v", port, udpPort, err)
		return
	}
	if err := enableReuseAddr(conn); err != nil {
		log.Printf("udpx: SO_REUSEADDR on udp %d: %v", udpPort, err)
	}
	tr.listeners[udpPort] = conn
	tr.boundFor[port] = append(tr.boundFor[port], udpPort)
}

func (tr *Transport) unbind(port node.PortID) {
	for _, udpPort := range tr.boundFor[port] {
		if c, ok := tr.listeners[udpPort]; ok {
			c.Close()
			delete(tr.listeners, udpPort)
		}
	}
	delete(tr.boundFor, port)
}

// Send encodes t and writes it, best-effort, to the UDP port and address
// its header maps onto. There is no transmit queue: one Send is one
// sendto(2), matching this transport's one-datagram-per-transfer design.
func (tr *Transport) Send(t *node.Transfer) {
	defer t.Unref()

	var udpPort int
	var dest net.IP
	switch t.Header.Kind {
	case node.Message:
		udpPort = udpPortForSubject(t.Header.Port.SubjectID())
		dest = ipForNode(tr.subnet, node.AnonymousNodeID)
	case node.Request:
		udpPort = udpPortForService(t.Header.Port.ServiceID(), node.Request)
		dest = ipForNode(tr.subnet, t.Header.RemoteNodeID)
	case node.Response:
		udpPort = udpPortForService(t.Header.Port.ServiceID(), node.Response)
		dest = ipForNode(tr.subnet, t.Header.RemoteNodeID)
	}

	if tr.send == nil {
		return
	}
	envelope := encodeEnvelope(t)
	metrics.DatagramBytesHistogram.Observe(float64(len(envelope)))
	if _, err := tr.send.WriteToUDP(envelope, &net.UDPAddr{IP: dest, Port: udpPort}); err != nil {
		log.Printf("udpx: send to %s:%d: %v", dest, udpPort, err)
	}
}

// Loop polls every bound listener once, non-blocking, and hands any decoded
// transfer to the node.
func (tr *Transport) Loop(n *node.Node, tMS, dtMS uint32) {
	for udpPort, conn := range tr.listeners {
		for {
			nRead, src, ok := pollRead(conn, tr.readBuf)
			if !ok {
				break
			}
			tr.deliver(n, udpPort, src, tr.readBuf[:nRead])
		}
	}
}

func (tr *Transport) deliver(n *node.Node, udpPort int, src *net.UDPAddr, body []byte) {
	kind, port, ok := decodeUDPPort(udpPort)
	if !ok {
		return
	}
	metrics.DatagramBytesHistogram.Observe(float64(len(body)))
	d, err := decodeEnvelope(body)
	if err != nil {
		reason := "short"
		if err == errMultiFrame {
			reason = "multi_frame"
		}
		metrics.UDPDatagramErrors.WithLabelValues(reason).Inc()
		dropLog.Printf("udpx: drop datagram on udp %d: %v", udpPort, err)
		return
	}
	h := node.Header{
		Priority:     d.Priority,
		Kind:         kind,
		Port:         port,
		DatatypeHash: d.DatatypeHash,
		LocalNodeID:  n.LocalNodeID,
		RemoteNodeID: nodeIDFromIP(src.IP),
		TransferID:   d.TransferID,
	}
	n.TransferReceive(node.NewTransfer(h, d.Payload, nil))
}
