package node

// SubscriberFunc receives a decoded message transfer: the remote node that
// published it, and an InStream positioned at the start of its payload.
type SubscriberFunc func(remote NodeID, payload []byte)

// ServiceHandler answers an inbound service request. It may call reply with
// the response payload; if it does, no further handler on the port is
// consulted (first handler to reply wins).
type ServiceHandler func(remote NodeID, payload []byte, reply func(responsePayload []byte))

// PortInfo is the registry's record for one declared port: its direction(s),
// data-type binding, traffic counters, and (for service ports) its ordered
// handler list.
type PortInfo struct {
	Port           PortID
	DataTypeName   string
	DataTypeHash   uint64
	IsInput        bool
	IsOutput       bool
	SubscriberHash uint64
	Subscriber     SubscriberFunc
	// Handlers holds service request handlers in LIFO declaration order:
	// the most recently defined handler is tried first.
	Handlers []ServiceHandler

	Emitted  uint64
	Received uint64
	Errored  uint64
}

// registry is the set of declared subjects/services on the node.
type registry struct {
	ports  map[PortID]*PortInfo
	notify func(PortID, *PortInfo)
}

func newRegistry(notify func(PortID, *PortInfo)) *registry {
	return &registry{ports: make(map[PortID]*PortInfo), notify: notify}
}

// claim returns the PortInfo for port, creating it (with name borrowed from
// the caller's immutable storage) if this is the first claim. Claiming is
// idempotent.
func (r *registry) claim(port PortID, name string) *PortInfo {
	if info, ok := r.ports[port]; ok {
		return info
	}
	info := &PortInfo{Port: port, DataTypeName: name}
	r.ports[port] = info
	return info
}

// defineSubject claims subjectID as an output subject and notifies
// transports if this created the port or flipped IsOutput.
func (r *registry) defineSubject(subjectID uint16, name string, hash uint64) *PortInfo {
	port := SubjectPort(subjectID)
	_, existed := r.ports[port]
	info := r.claim(port, name)
	info.DataTypeHash = hash
	changed := !existed || !info.IsOutput
	info.IsOutput = true
	if changed {
		r.notify(port, info)
	}
	return info
}

// subscribe claims subjectID as an input subject, registers cb as the
// subscriber for datatype hash, and notifies transports on the first
// IsInput flip.
func (r *registry) subscribe(subjectID uint16, name string, hash uint64, cb SubscriberFunc) *PortInfo {
	port := SubjectPort(subjectID)
	_, existed := r.ports[port]
	info := r.claim(port, name)
	info.DataTypeHash = hash
	info.SubscriberHash = hash
	info.Subscriber = cb
	changed := !existed || !info.IsInput
	info.IsInput = true
	if changed {
		r.notify(port, info)
	}
	return info
}

// defineService claims serviceID|0x8000 as a two-way service port and
// prepends handler to its handler list (LIFO: most recent wins first).
// A nil handler declares the port without adding a handler, for pure
// clients that only issue requests on it.
func (r *registry) defineService(serviceID uint16, name string, hash uint64, handler ServiceHandler) *PortInfo {
	port := ServicePort(serviceID)
	_, existed := r.ports[port]
	info := r.claim(port, name)
	info.DataTypeHash = hash
	changed := !existed || !info.IsInput || !info.IsOutput
	info.IsInput = true
	info.IsOutput = true
	if handler != nil {
		info.Handlers = append([]ServiceHandler{handler}, info.Handlers...)
	}
	if changed {
		r.notify(port, info)
	}
	return info
}

// lookup returns the PortInfo for port, if any.
func (r *registry) lookup(port PortID) (*PortInfo, bool) {
	info, ok := r.ports[port]
	return info, ok
}

// all returns every registered PortInfo in no particular order.
func (r *registry) all() []*PortInfo {
	out := make([]*PortInfo, 0, len(r.ports))
	for _, info := range r.ports {
		out = append(out, info)
	}
	return out
}
