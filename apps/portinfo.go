package apps

import (
	"github.com/cyphal-go/uavnode/internal/dtype"
	"github.com/cyphal-go/uavnode/internal/wire"
	"github.com/cyphal-go/uavnode/node"
)

// PortInfoServiceID is the service id for the port-introspection service:
// a remote node can walk this node's port registry by index. Ports are
// addressed by position; node.PortID already distinguishes subjects from
// services in its high bit.
const PortInfoServiceID = 432

var portInfoDatatypeHash = dtype.Hash("uavcan.port.GetInfo.1.0")

// PortInfoRequest asks for the port registered at Index, in the node's
// current (unordered) enumeration.
type PortInfoRequest struct {
	Index uint16
}

func (r PortInfoRequest) Encode(buf []byte) []byte {
	out := wire.NewOutStream(buf)
	out.PutU16(r.Index)
	return out.Bytes()
}

func DecodePortInfoRequest(payload []byte) PortInfoRequest {
	in := wire.NewInStream(payload)
	return PortInfoRequest{Index: in.U16()}
}

// PortInfoReply describes one registered port. Found is false when Index
// was out of range; clients enumerate by asking successive indexes until
// Found goes false.
type PortInfoReply struct {
	Found        bool
	PortID       uint16
	IsInput      bool
	IsOutput     bool
	DataTypeName string
	DataTypeHash uint64
}

func (r PortInfoReply) Encode(buf []byte) []byte {
	out := wire.NewOutStream(buf)
	flags := byte(0)
	if r.Found {
		flags |= 0x01
	}
	if r.IsInput {
		flags |= 0x80
	}
	if r.IsOutput {
		flags |= 0x40
	}
	out.PutU8(flags)
	out.PutU16(r.PortID)
	out.PutShortString([]byte(r.DataTypeName))
	out.PutU64(r.DataTypeHash)
	return out.Bytes()
}

func DecodePortInfoReply(payload []byte) PortInfoReply {
	in := wire.NewInStream(payload)
	flags := in.U8()
	r := PortInfoReply{
		Found:    flags&0x01 != 0,
		IsInput:  flags&0x80 != 0,
		IsOutput: flags&0x40 != 0,
	}
	r.PortID = in.U16()
	r.DataTypeName = string(in.ShortString())
	r.DataTypeHash = in.U64()
	return r
}

// PortInfoAt returns the PortInfoReply for the port at position index in
// n.Ports()'s enumeration order.
func PortInfoAt(n *node.Node, index int) PortInfoReply {
	ports := n.Ports()
	if index < 0 || index >= len(ports) {
		return PortInfoReply{Found: false}
	}
	p := ports[index]
	return PortInfoReply{
		Found:        true,
		PortID:       uint16(p.Port),
		IsInput:      p.IsInput,
		IsOutput:     p.IsOutput,
		DataTypeName: p.DataTypeName,
		DataTypeHash: p.DataTypeHash,
	}
}
