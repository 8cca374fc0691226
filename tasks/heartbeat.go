// Package tasks implements periodic in-process work units driven by
// Node.Loop; Heartbeat is the canonical one.
package tasks

import (
	"github.com/cyphal-go/uavnode/internal/dtype"
	"github.com/cyphal-go/uavnode/internal/wire"
	"github.com/cyphal-go/uavnode/node"
)

// HeartbeatSubjectID is the well-known subject id for uavcan.node.Heartbeat.1.0.
const HeartbeatSubjectID = 32085

// HeartbeatPeriodMS is the nominal interval between heartbeats.
const HeartbeatPeriodMS = 1000

// Health levels, per uavcan.node.Health.1.0.
const (
	HealthNominal  = 0
	HealthAdvisory = 1
	HealthCaution  = 2
	HealthWarning  = 3
)

// Operating modes, per uavcan.node.Mode.1.0.
const (
	ModeOperational    = 0
	ModeInitialization = 1
	ModeMaintenance    = 2
	ModeSoftwareUpdate = 3
	ModeOffline        = 7
)

var heartbeatDatatypeHash = dtype.Hash("uavcan.node.Heartbeat.1.0")

// Heartbeat publishes a uavcan.node.Heartbeat.1.0 message every
// HeartbeatPeriodMS, transitioning Initialization to Operational on Start
// and emitting one Offline heartbeat on Stop.
type Heartbeat struct {
	health       uint8
	mode         uint8
	vendorStatus uint32

	nextDueMS uint32
}

// NewHeartbeat creates a Heartbeat task.
func NewHeartbeat() *Heartbeat {
	return &Heartbeat{}
}

// SetStatus updates the health/mode/vendor_status fields reported by the
// next heartbeat.
func (h *Heartbeat) SetStatus(health, mode uint8, vendorStatus uint32) {
	h.health = health
	h.mode = mode
	h.vendorStatus = vendorStatus & 0x7FFFF
}

// Start implements node.Task: it publishes one Initialization-mode
// heartbeat, then arms Operational mode for every subsequent one.
func (h *Heartbeat) Start(n *node.Node) {
	n.DefineSubject(HeartbeatSubjectID, "uavcan.node.Heartbeat.1.0", heartbeatDatatypeHash)
	h.SetStatus(HealthNominal, ModeInitialization, 0)
	h.send(n)
	h.SetStatus(HealthNominal, ModeOperational, h.vendorStatus)
	h.nextDueMS = HeartbeatPeriodMS
}

// Stop implements node.Task: it publishes one Offline-mode heartbeat.
func (h *Heartbeat) Stop(n *node.Node) {
	h.SetStatus(HealthNominal, ModeOffline, 0)
	h.send(n)
}

// Loop implements node.Task: every HeartbeatPeriodMS it sends a heartbeat,
// re-arming on a period-aligned boundary rather than drifting; whole
// periods are skipped if the loop falls behind.
func (h *Heartbeat) Loop(n *node.Node, tMS, dtMS uint32) {
	delta := int64(tMS) - int64(h.nextDueMS)
	if delta < 0 {
		return
	}
	h.send(n)
	skip := uint32(delta)/HeartbeatPeriodMS + 1
	h.nextDueMS += skip * HeartbeatPeriodMS
}

func (h *Heartbeat) send(n *node.Node) {
	uptimeS := uint32(n.Now() / 1_000_000)

	buf := make([]byte, 7)
	out := wire.NewOutStream(buf)
	out.PutU32(uptimeS)

	status0 := byte((h.health&0x03)<<6) | byte((h.mode&0x07)<<3) | byte((h.vendorStatus&0x070000)>>16)
	status1 := byte((h.vendorStatus & 0x00FF00) >> 8)
	status2 := byte(h.vendorStatus & 0x0000FF)
	out.PutU8(status0).PutU8(status1).PutU8(status2)

	n.Publish(HeartbeatSubjectID, heartbeatDatatypeHash, node.PriorityNominal, out.Bytes(), nil)
}
