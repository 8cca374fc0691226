package apps

import (
	"github.com/cyphal-go/uavnode/internal/dtype"
	"github.com/cyphal-go/uavnode/internal/wire"
)

// Register service ids, per uavcan.register.*.
const (
	RegisterAccessServiceID = 384
	RegisterListServiceID   = 385
)

var (
	registerAccessDatatypeHash = dtype.Hash("uavcan.register.Access.1.0")
	registerListDatatypeHash   = dtype.Hash("uavcan.register.List.1.0")
)

// Value tags. The full uavcan.primitive value union spans every array
// element kind; a small embedded-style register surface only needs these
// five shapes.
const (
	ValueEmpty   = 0
	ValueString  = 1
	ValueBool    = 2
	ValueInt64   = 3
	ValueFloat64 = 4
)

// Value is a RegisterValue: exactly one of the fields below is meaningful,
// selected by Tag.
type Value struct {
	Tag     uint8
	Str     string
	Bool    bool
	Int64   int64
	Float64 float64
}

func EmptyValue() Value            { return Value{Tag: ValueEmpty} }
func StringValue(s string) Value   { return Value{Tag: ValueString, Str: s} }
func BoolValue(b bool) Value       { return Value{Tag: ValueBool, Bool: b} }
func Int64Value(v int64) Value     { return Value{Tag: ValueInt64, Int64: v} }
func Float64Value(v float64) Value { return Value{Tag: ValueFloat64, Float64: v} }

func (v Value) encode(out *wire.OutStream) {
	out.PutU8(v.Tag)
	switch v.Tag {
	case ValueString:
		out.PutShortString([]byte(v.Str))
	case ValueBool:
		b := uint8(0)
		if v.Bool {
			b = 1
		}
		out.PutU8(b)
	case ValueInt64:
		out.PutI64(v.Int64)
	case ValueFloat64:
		out.PutF64(v.Float64)
	}
}

func decodeValue(in *wire.InStream) Value {
	tag := in.U8()
	switch tag {
	case ValueString:
		return Value{Tag: tag, Str: string(in.ShortString())}
	case ValueBool:
		return Value{Tag: tag, Bool: in.U8() != 0}
	case ValueInt64:
		return Value{Tag: tag, Int64: in.I64()}
	case ValueFloat64:
		return Value{Tag: tag, Float64: in.F64()}
	default:
		return Value{Tag: ValueEmpty}
	}
}

// AccessRequest reads or writes one register by name. A Value with
// Tag == ValueEmpty means "read only" (per uavcan.register.Access.1.0's
// convention that an empty value requests the current one unchanged).
type AccessRequest struct {
	Name  string
	Value Value
}

func (r AccessRequest) Encode(buf []byte) []byte {
	out := wire.NewOutStream(buf)
	out.PutShortString([]byte(r.Name))
	r.Value.encode(out)
	return out.Bytes()
}

func DecodeAccessRequest(payload []byte) AccessRequest {
	in := wire.NewInStream(payload)
	name := string(in.ShortString())
	return AccessRequest{Name: name, Value: decodeValue(in)}
}

// AccessReply answers an AccessRequest with the register's resulting value
// and metadata.
type AccessReply struct {
	TimestampUS  uint64
	IsMutable    bool
	IsPersistent bool
	Value        Value
}

func (r AccessReply) Encode(buf []byte) []byte {
	out := wire.NewOutStream(buf)
	out.PutU64(r.TimestampUS)
	flags := uint8(0)
	if r.IsMutable {
		flags |= 0x80
	}
	if r.IsPersistent {
		flags |= 0x40
	}
	out.PutU8(flags)
	r.Value.encode(out)
	return out.Bytes()
}

func DecodeAccessReply(payload []byte) AccessReply {
	in := wire.NewInStream(payload)
	r := AccessReply{TimestampUS: in.U64()}
	flags := in.U8()
	r.IsMutable = flags&0x80 != 0
	r.IsPersistent = flags&0x40 != 0
	r.Value = decodeValue(in)
	return r
}

// ListRequest asks for the register name at Index.
type ListRequest struct {
	Index uint16
}

func (r ListRequest) Encode(buf []byte) []byte {
	out := wire.NewOutStream(buf)
	out.PutU16(r.Index)
	return out.Bytes()
}

func DecodeListRequest(payload []byte) ListRequest {
	return ListRequest{Index: wire.NewInStream(payload).U16()}
}

// ListReply carries the register name at the requested index, or "" past
// the end of the list.
type ListReply struct {
	Name string
}

func (r ListReply) Encode(buf []byte) []byte {
	out := wire.NewOutStream(buf)
	out.PutShortString([]byte(r.Name))
	return out.Bytes()
}

func DecodeListReply(payload []byte) ListReply {
	return ListReply{Name: string(wire.NewInStream(payload).ShortString())}
}

// Register is one entry in a Store: a named, optionally mutable,
// optionally persistent configuration value backed by Get/Set closures.
type Register struct {
	Name       string
	Persistent bool
	Get        func() Value
	// Set is nil for a read-only register.
	Set func(Value) bool
}

// Store is the node's in-memory register table, distinct from the port
// registry (node.Node's registry): a generic key/value configuration
// surface used for runtime tuning, e.g. the heartbeat period.
type Store struct {
	order  []string
	byName map[string]*Register
}

// NewStore creates an empty register Store.
func NewStore() *Store {
	return &Store{byName: make(map[string]*Register)}
}

// Define adds or replaces a register.
func (s *Store) Define(r *Register) {
	if _, exists := s.byName[r.Name]; !exists {
		s.order = append(s.order, r.Name)
	}
	s.byName[r.Name] = r
}

// NameAt returns the register name at the given index, in definition order,
// or "" past the end (ListReply's "" sentinel).
func (s *Store) NameAt(index int) string {
	if index < 0 || index >= len(s.order) {
		return ""
	}
	return s.order[index]
}

// Access performs an AccessRequest against the store: if req.Value is
// non-empty and the register is mutable, it calls Set; either way it
// returns the register's current value afterward.
func (s *Store) Access(req AccessRequest, nowUS uint64) AccessReply {
	r, ok := s.byName[req.Name]
	if !ok {
		return AccessReply{TimestampUS: nowUS, Value: EmptyValue()}
	}
	if req.Value.Tag != ValueEmpty && r.Set != nil {
		r.Set(req.Value)
	}
	return AccessReply{
		TimestampUS:  nowUS,
		IsMutable:    r.Set != nil,
		IsPersistent: r.Persistent,
		Value:        r.Get(),
	}
}
