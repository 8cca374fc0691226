package tasks_test

import (
	"testing"

	"github.com/cyphal-go/uavnode/internal/wire"
	"github.com/cyphal-go/uavnode/node"
	"github.com/cyphal-go/uavnode/tasks"
)

type captureTransport struct {
	payloads [][]byte
}

func (c *captureTransport) Start(n *node.Node) error { return nil }
func (c *captureTransport) Stop(n *node.Node) error  { return nil }
func (c *captureTransport) Port(n *node.Node, port node.PortID, info *node.PortInfo) {
}
func (c *captureTransport) Loop(n *node.Node, tMS, dtMS uint32) {}
func (c *captureTransport) Send(t *node.Transfer) {
	c.payloads = append(c.payloads, t.Payload)
	t.Unref()
}

func TestHeartbeatStartEmitsInitializationThenOperational(t *testing.T) {
	n := node.New(1, func() uint64 { return 5_000_000 }, 10)
	ct := &captureTransport{}
	n.AddTransport(ct)

	hb := tasks.NewHeartbeat()
	n.AddTask(hb)

	if len(ct.payloads) != 1 {
		t.Fatalf("expected 1 heartbeat on Start, got %d", len(ct.payloads))
	}
	in := wire.NewInStream(ct.payloads[0])
	uptime := in.U32()
	status0 := in.U8()
	if uptime != 5 {
		t.Errorf("uptime = %d, want 5", uptime)
	}
	mode := (status0 >> 3) & 0x07
	if mode != tasks.ModeInitialization {
		t.Errorf("mode = %d, want Initialization (%d)", mode, tasks.ModeInitialization)
	}

	hb.Loop(n, 1000, 1000)
	if len(ct.payloads) != 2 {
		t.Fatalf("expected 2nd heartbeat after one period, got %d", len(ct.payloads))
	}
	in2 := wire.NewInStream(ct.payloads[1])
	in2.U32()
	status0b := in2.U8()
	mode2 := (status0b >> 3) & 0x07
	if mode2 != tasks.ModeOperational {
		t.Errorf("mode = %d, want Operational (%d)", mode2, tasks.ModeOperational)
	}
}

func TestHeartbeatStopEmitsOffline(t *testing.T) {
	n := node.New(1, func() uint64 { return 0 }, 10)
	ct := &captureTransport{}
	n.AddTransport(ct)

	hb := tasks.NewHeartbeat()
	n.AddTask(hb)
	n.Stop()

	last := ct.payloads[len(ct.payloads)-1]
	in := wire.NewInStream(last)
	in.U32()
	status0 := in.U8()
	mode := (status0 >> 3) & 0x07
	if mode != tasks.ModeOffline {
		t.Errorf("mode = %d, want Offline (%d)", mode, tasks.ModeOffline)
	}
}

func TestHeartbeatVendorStatusRoundTrip(t *testing.T) {
	n := node.New(1, func() uint64 { return 0 }, 10)
	ct := &captureTransport{}
	n.AddTransport(ct)

	hb := tasks.NewHeartbeat()
	n.AddTask(hb)
	hb.SetStatus(tasks.HealthCaution, tasks.ModeMaintenance, 0x4241)
	hb.Loop(n, 1000, 1000)

	last := ct.payloads[len(ct.payloads)-1]
	in := wire.NewInStream(last)
	in.U32()
	status0 := in.U8()
	status1 := in.U8()
	status2 := in.U8()

	health := (status0 >> 6) & 0x03
	mode := (status0 >> 3) & 0x07
	vendor := (uint32(status0&0x07) << 16) | (uint32(status1) << 8) | uint32(status2)

	if health != tasks.HealthCaution {
		t.Errorf("health = %d, want %d", health, tasks.HealthCaution)
	}
	if mode != tasks.ModeMaintenance {
		t.Errorf("mode = %d, want %d", mode, tasks.ModeMaintenance)
	}
	if vendor != 0x4241 {
		t.Errorf("vendor = %#x, want 0x4241", vendor)
	}
}
