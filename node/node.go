package node

import (
	"strconv"

	"github.com/cyphal-go/uavnode/internal/priomap"
	"github.com/cyphal-go/uavnode/metrics"
)

// RequestTimeoutMS is the deadline, in milliseconds, after which an
// unanswered request's callback fires with the empty-input sentinel.
const RequestTimeoutMS = 2000

// Transport is the capability set every byte/datagram transport implements.
// Port is called by the registry on every declared input/output and again
// with info == nil when a port is removed.
type Transport interface {
	Start(n *Node) error
	Stop(n *Node) error
	Port(n *Node, port PortID, info *PortInfo)
	Loop(n *Node, tMS, dtMS uint32)
	Send(t *Transfer)
}

// Task is a periodic in-process work unit, e.g. the Heartbeat publisher.
type Task interface {
	Start(n *Node)
	Stop(n *Node)
	Loop(n *Node, tMS, dtMS uint32)
}

// PendingCallback receives a service response payload, or nil when the
// request timed out. A real empty payload and a timeout are reported
// identically; callers must treat an empty input as the timeout signal.
type PendingCallback func(responsePayload []byte)

// Now returns a monotonic microsecond timestamp. It is injected because the
// core has no time source of its own.
type Now func() uint64

// Node owns the port registry, the active transports and tasks, the
// transfer-id counters, the outstanding-request correlation table, and the
// timeout sweep index. It is driven entirely by Loop and is not safe for
// concurrent use from more than one goroutine.
type Node struct {
	LocalNodeID NodeID
	Now         Now

	reg        *registry
	transports []Transport
	tasks      []Task

	subjectTID map[PortID]TransferID
	sessionTID map[sessionKey]TransferID

	inflight map[inflightKey]PendingCallback
	timeouts *priomap.Map // key: deadline (ms, uint32 range); value: inflightKey

	nowMS          uint32
	taskScheduleMS uint32
	sinceLastTask  uint32

	stats *portStats
}

// New creates a Node with the given local id. taskScheduleMS is the cadence
// at which tasks are ticked; 0 selects the 10ms default.
func New(localID NodeID, now Now, taskScheduleMS uint32) *Node {
	if taskScheduleMS == 0 {
		taskScheduleMS = 10
	}
	n := &Node{
		LocalNodeID:    localID,
		Now:            now,
		subjectTID:     make(map[PortID]TransferID),
		sessionTID:     make(map[sessionKey]TransferID),
		inflight:       make(map[inflightKey]PendingCallback),
		timeouts:       priomap.New(0),
		taskScheduleMS: taskScheduleMS,
		stats:          newPortStats(),
	}
	n.reg = newRegistry(n.notifyTransports)
	return n
}

func (n *Node) notifyTransports(port PortID, info *PortInfo) {
	for _, t := range n.transports {
		t.Port(n, port, info)
	}
}

// AddTransport registers and starts a transport.
func (n *Node) AddTransport(t Transport) error {
	n.transports = append(n.transports, t)
	if err := t.Start(n); err != nil {
		return err
	}
	for _, info := range n.reg.all() {
		t.Port(n, info.Port, info)
	}
	return nil
}

// AddTask registers and starts a task.
func (n *Node) AddTask(t Task) {
	n.tasks = append(n.tasks, t)
	t.Start(n)
}

// Stop stops every transport and task, in registration order.
func (n *Node) Stop() {
	for _, t := range n.tasks {
		t.Stop(n)
	}
	for _, t := range n.transports {
		t.Stop(n)
	}
}

// DefineSubject declares subjectID as an outbound subject with the given
// name and datatype hash.
func (n *Node) DefineSubject(subjectID uint16, name string, datatypeHash uint64) *PortInfo {
	return n.reg.defineSubject(subjectID, name, datatypeHash)
}

// Subscribe declares subjectID as an inbound subject and registers cb as
// its subscriber.
func (n *Node) Subscribe(subjectID uint16, name string, datatypeHash uint64, cb SubscriberFunc) *PortInfo {
	return n.reg.subscribe(subjectID, name, datatypeHash, cb)
}

// DefineService declares serviceID as a two-way service port and prepends
// handler to its handler list.
func (n *Node) DefineService(serviceID uint16, name string, datatypeHash uint64, handler ServiceHandler) *PortInfo {
	return n.reg.defineService(serviceID, name, datatypeHash, handler)
}

// PortInfo returns the registered PortInfo for port, if any.
func (n *Node) PortInfo(port PortID) (*PortInfo, bool) {
	return n.reg.lookup(port)
}

// Ports returns every registered port, in no particular order.
func (n *Node) Ports() []*PortInfo {
	return n.reg.all()
}

func (n *Node) nextSubjectTID(port PortID) TransferID {
	tid := n.subjectTID[port]
	n.subjectTID[port] = tid + 1
	return tid
}

func (n *Node) nextSessionTID(key sessionKey) TransferID {
	tid := n.sessionTID[key]
	n.sessionTID[key] = tid + 1
	return tid
}

func (n *Node) timestamp() uint64 {
	if n.Now == nil {
		return 0
	}
	return n.Now()
}

// Publish sends a message transfer on subjectID across every active
// transport. onComplete, if non-nil, fires once every transport has
// released its reference.
func (n *Node) Publish(subjectID uint16, datatypeHash uint64, priority Priority, payload []byte, onComplete func()) {
	port := SubjectPort(subjectID)
	h := Header{
		TimestampUS:  n.timestamp(),
		Priority:     priority,
		Kind:         Message,
		Port:         port,
		DatatypeHash: datatypeHash,
		LocalNodeID:  n.LocalNodeID,
		RemoteNodeID: AnonymousNodeID,
		TransferID:   n.nextSubjectTID(port),
	}
	t := NewTransfer(h, payload, onComplete)
	if info, ok := n.reg.lookup(port); ok {
		info.Emitted++
		metrics.PortTraffic.WithLabelValues(portLabel(port), "emitted").Inc()
	}
	n.send(t)
}

// Request issues a service request to remote, registers cb as the pending
// callback, and arms the RequestTimeoutMS deadline.
func (n *Node) Request(remote NodeID, serviceID uint16, datatypeHash uint64, priority Priority, payload []byte, cb PendingCallback) TransferID {
	port := ServicePort(serviceID)
	key := sessionKey{port: port, remote: remote}
	tid := n.nextSessionTID(key)

	h := Header{
		TimestampUS:  n.timestamp(),
		Priority:     priority,
		Kind:         Request,
		Port:         port,
		DatatypeHash: datatypeHash,
		LocalNodeID:  n.LocalNodeID,
		RemoteNodeID: remote,
		TransferID:   tid,
	}

	ik := inflightKey{port: port, tid: tid}
	if cb != nil {
		n.inflight[ik] = cb
		deadline := n.nowMS + RequestTimeoutMS
		n.timeouts.Insert(int(deadline), ik)
		metrics.InFlightRequests.Set(float64(len(n.inflight)))
	}

	t := NewTransfer(h, payload, nil)
	if info, ok := n.reg.lookup(port); ok {
		info.Emitted++
		metrics.PortTraffic.WithLabelValues(portLabel(port), "emitted").Inc()
	}
	n.send(t)
	return tid
}

// Respond sends a response transfer reusing the transferID of the request
// it answers.
func (n *Node) Respond(remote NodeID, serviceID uint16, transferID TransferID, datatypeHash uint64, priority Priority, payload []byte) {
	port := ServicePort(serviceID)
	h := Header{
		TimestampUS:  n.timestamp(),
		Priority:     priority,
		Kind:         Response,
		Port:         port,
		DatatypeHash: datatypeHash,
		LocalNodeID:  n.LocalNodeID,
		RemoteNodeID: remote,
		TransferID:   transferID,
	}
	t := NewTransfer(h, payload, nil)
	if info, ok := n.reg.lookup(port); ok {
		info.Emitted++
		metrics.PortTraffic.WithLabelValues(portLabel(port), "emitted").Inc()
	}
	n.send(t)
}

// send hands t to every active transport, then releases the caller's own
// reference.
func (n *Node) send(t *Transfer) {
	for _, tr := range n.transports {
		t.Ref()
		tr.Send(t)
	}
	t.Unref()
}

// TransferReceive is called by a transport for every transfer it decodes
// off the wire. Messages go to their subscriber; requests to the port's
// handler list, first reply winning; responses to the pending callback they
// correlate with, duplicates silently dropped.
func (n *Node) TransferReceive(t *Transfer) {
	h := t.Header

	switch h.Kind {
	case Message:
		info, ok := n.reg.lookup(h.Port)
		if !ok || info.Subscriber == nil || info.SubscriberHash != h.DatatypeHash {
			metrics.NoMatchingSubscriber.Inc()
			return
		}
		info.Received++
		metrics.PortTraffic.WithLabelValues(portLabel(h.Port), "received").Inc()
		info.Subscriber(h.RemoteNodeID, t.Payload)
		return

	case Request:
		if h.LocalNodeID != n.LocalNodeID {
			return
		}
		info, ok := n.reg.lookup(h.Port)
		if !ok || len(info.Handlers) == 0 {
			metrics.PortNotRegistered.Inc()
			return
		}
		info.Received++
		metrics.PortTraffic.WithLabelValues(portLabel(h.Port), "received").Inc()
		replied := false
		for _, handler := range info.Handlers {
			handler(h.RemoteNodeID, t.Payload, func(respPayload []byte) {
				if replied {
					return
				}
				replied = true
				n.Respond(h.RemoteNodeID, h.Port.ServiceID(), h.TransferID, h.DatatypeHash, h.Priority, respPayload)
			})
			if replied {
				break
			}
		}
		return

	case Response:
		if h.LocalNodeID != n.LocalNodeID {
			return
		}
		ik := inflightKey{port: h.Port, tid: h.TransferID}
		cb, ok := n.inflight[ik]
		if !ok {
			// Duplicate or late response: silently discard.
			return
		}
		delete(n.inflight, ik)
		n.removeTimeout(ik)
		metrics.InFlightRequests.Set(float64(len(n.inflight)))
		if info, ok := n.reg.lookup(h.Port); ok {
			info.Received++
			metrics.PortTraffic.WithLabelValues(portLabel(h.Port), "received").Inc()
		}
		cb(t.Payload)
	}
}

// removeTimeout drops ik's entry from the timeout index, wherever its
// deadline bucket happens to be.
func (n *Node) removeTimeout(ik inflightKey) {
	for i, e := range n.timeouts.All() {
		if v, ok := e.Value.(inflightKey); ok && v == ik {
			n.timeouts.RemoveAt(i)
			return
		}
	}
}

// Loop drives the whole node: it pumps every transport, sweeps timed-out
// requests, and, every taskScheduleMS, ticks every task. tMS is a 32-bit
// millisecond counter that wraps roughly every 49 days; dtMS is the
// elapsed time since the previous call.
func (n *Node) Loop(tMS, dtMS uint32) {
	n.nowMS = tMS

	for _, tr := range n.transports {
		tr.Loop(n, tMS, dtMS)
	}

	n.sweepTimeouts(tMS, dtMS)

	n.sinceLastTask += dtMS
	if n.sinceLastTask >= n.taskScheduleMS {
		n.sinceLastTask = 0
		for _, task := range n.tasks {
			task.Loop(n, tMS, dtMS)
		}
	}

	n.stats.maybeLog(n, tMS)
}

// portLabel renders a PortID as a Prometheus label value.
func portLabel(port PortID) string {
	return strconv.Itoa(int(port))
}
