package diagtap

import (
	"bufio"
	"context"
	"encoding/json"
	"io/ioutil"
	"net"
	"os"
	"testing"
	"time"

	"github.com/go-test/deep"

	"github.com/cyphal-go/uavnode/node"
)

func TestTapEmitsTxEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir, err := ioutil.TempDir("", "TestDiagtap")
	if err != nil {
		t.Fatalf("TempDir: %v", err)
	}
	defer os.RemoveAll(dir)

	srv := New(dir + "/uavnode.sock")
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve(ctx)

	c, err := net.Dial("unix", dir+"/uavnode.sock")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	for {
		srv.mutex.Lock()
		n := len(srv.clients)
		srv.mutex.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	inner := &fakeTransport{}
	tapped := Tap(inner, srv)

	xfer := node.NewTransfer(node.Header{
		Kind:         node.Message,
		Port:         node.SubjectPort(32085),
		RemoteNodeID: node.AnonymousNodeID,
		TransferID:   7,
	}, []byte{1, 2, 3}, nil)
	tapped.Send(xfer)

	r := bufio.NewScanner(c)
	if !r.Scan() {
		t.Fatal("could not scan a line from the tap socket")
	}
	var e TransferEvent
	if err := json.Unmarshal(r.Bytes(), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	e.Timestamp = time.Time{}
	want := TransferEvent{
		Direction:    "tx",
		Kind:         "message",
		Port:         32085,
		RemoteNodeID: uint16(node.AnonymousNodeID),
		TransferID:   7,
		PayloadLen:   3,
	}
	if diff := deep.Equal(e, want); diff != nil {
		t.Errorf("event differed from expected: %v", diff)
	}

	if !inner.sent {
		t.Error("Tap did not forward Send to the inner transport")
	}
}

type fakeTransport struct {
	sent bool
}

func (f *fakeTransport) Start(n *node.Node) error { return nil }
func (f *fakeTransport) Stop(n *node.Node) error  { return nil }
func (f *fakeTransport) Port(n *node.Node, port node.PortID, info *node.PortInfo) {
}
func (f *fakeTransport) Loop(n *node.Node, tMS, dtMS uint32) {}
func (f *fakeTransport) Send(t *node.Transfer) {
	f.sent = true
	t.Unref()
}
