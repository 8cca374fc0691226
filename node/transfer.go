package node

// Header carries everything that identifies and routes a Transfer, common
// to every transport.
type Header struct {
	TimestampUS  uint64 // 0 means "unset"; receivers must tolerate it.
	Priority     Priority
	Kind         TransferKind
	Port         PortID
	DatatypeHash uint64
	LocalNodeID  NodeID
	RemoteNodeID NodeID
	TransferID   TransferID
}

// Transfer is the uniform record carrying one message, request, or response
// across any transport. It is reference counted: every transport that
// accepts it via Send calls Ref, and calls Unref exactly once when it is
// done with its own copy (transmitted, queued, or evicted). The OnComplete
// continuation fires exactly once, when the count reaches zero.
type Transfer struct {
	Header  Header
	Payload []byte

	// Encoded is filled in by a transport that has already serialized this
	// transfer's frame/datagram bytes, so other transports (or retries)
	// don't have to re-encode it.
	Encoded []byte

	// OnComplete is invoked exactly once, when refcount reaches zero. It may
	// be nil.
	OnComplete func()

	refcount int
}

// NewTransfer creates a Transfer owned by the caller (refcount starts at 1).
func NewTransfer(h Header, payload []byte, onComplete func()) *Transfer {
	return &Transfer{Header: h, Payload: payload, OnComplete: onComplete, refcount: 1}
}

// Ref adds one reference, typically taken by a transport accepting the
// transfer for sending.
func (t *Transfer) Ref() {
	t.refcount++
}

// Unref releases one reference. When the count reaches zero, OnComplete
// fires and the Transfer is considered destroyed; calling Unref again after
// that is a caller bug (the count is deliberately left at zero rather than
// going negative, so a double-unref is a silent no-op rather than a second
// completion).
func (t *Transfer) Unref() {
	if t.refcount <= 0 {
		return
	}
	t.refcount--
	if t.refcount == 0 && t.OnComplete != nil {
		t.OnComplete()
	}
}

// RefCount reports the current reference count, mainly for tests.
func (t *Transfer) RefCount() int {
	return t.refcount
}
