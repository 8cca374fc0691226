package recorder

import (
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/cyphal-go/uavnode/node"
)

func TestWriteEncodesAndRoundTrips(t *testing.T) {
	dir, err := ioutil.TempDir("", "TestRecorder")
	if err != nil {
		t.Fatalf("TempDir: %v", err)
	}
	defer os.RemoveAll(dir)

	r := New(dir, "uavnode", time.Hour)

	e := Event{
		Direction:    Outbound,
		TimestampUS:  123456,
		Priority:     node.PriorityNominal,
		Kind:         node.Message,
		Port:         node.PortID(32085),
		DatatypeHash: 0xdeadbeefcafebabe,
		LocalNodeID:  node.NodeID(10),
		RemoteNodeID: node.AnonymousNodeID,
		TransferID:   node.TransferID(7),
		Payload:      []byte{1, 2, 3, 4},
	}

	buf := encodeEvent(e)
	if len(buf) != eventHeaderLen+len(e.Payload) {
		t.Fatalf("encodeEvent length = %d, want %d", len(buf), eventHeaderLen+len(e.Payload))
	}

	got := decodeEvent(buf)
	if got.Direction != e.Direction || got.Port != e.Port || got.TransferID != e.TransferID ||
		got.DatatypeHash != e.DatatypeHash || got.RemoteNodeID != e.RemoteNodeID {
		t.Errorf("decodeEvent = %+v, want fields matching %+v", got, e)
	}
	if string(got.Payload) != string(e.Payload) {
		t.Errorf("decodeEvent payload = %v, want %v", got.Payload, e.Payload)
	}

	if err := r.Write(e); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d output files, want 1", len(entries))
	}

	events, err := ReadFile(dir + "/" + entries[0].Name())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events back, want 1", len(events))
	}
	if events[0].Port != e.Port || events[0].TransferID != e.TransferID {
		t.Errorf("ReadFile event = %+v, want fields matching %+v", events[0], e)
	}
}

func TestRotateIfDueRotatesOnExpiration(t *testing.T) {
	dir, err := ioutil.TempDir("", "TestRecorderRotate")
	if err != nil {
		t.Fatalf("TempDir: %v", err)
	}
	defer os.RemoveAll(dir)

	r := New(dir, "uavnode", time.Millisecond)
	now := time.Now()
	r.nowFunc = func() time.Time { return now }

	if err := r.rotateIfDue(); err != nil {
		t.Fatalf("rotateIfDue: %v", err)
	}
	first := r.writer
	if first == nil {
		t.Fatal("expected a writer after first rotateIfDue")
	}

	now = now.Add(time.Second)
	if err := r.rotateIfDue(); err != nil {
		t.Fatalf("rotateIfDue (after expiration): %v", err)
	}
	if r.sequence != 2 {
		t.Errorf("sequence = %d, want 2 after one rotation", r.sequence)
	}
	r.Close()
}

func TestTapRecordsOutboundSends(t *testing.T) {
	dir, err := ioutil.TempDir("", "TestRecorderTap")
	if err != nil {
		t.Fatalf("TempDir: %v", err)
	}
	defer os.RemoveAll(dir)

	rec := New(dir, "uavnode", time.Hour)
	defer rec.Close()

	inner := &fakeTransport{}
	tap := NewTap(rec, func() uint64 { return 42 }, inner)

	xfer := node.NewTransfer(node.Header{
		Kind:         node.Message,
		Port:         node.SubjectPort(32085),
		RemoteNodeID: node.AnonymousNodeID,
		TransferID:   9,
	}, []byte{5, 6, 7}, nil)

	tap.Send(xfer)

	if !inner.sent {
		t.Error("Tap.Send did not forward to the inner transport")
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
