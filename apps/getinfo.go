package apps

import (
	"github.com/cyphal-go/uavnode/internal/dtype"
	"github.com/cyphal-go/uavnode/internal/wire"
)

// GetInfoServiceID is the well-known service id for uavcan.node.GetInfo.1.0.
const GetInfoServiceID = 430

var getInfoDatatypeHash = dtype.Hash("uavcan.node.GetInfo.1.0")

// GetInfoReply is this node's self-description, answering a GetInfo
// request. The optional software-image-CRC and certificate-of-authenticity
// fields of uavcan.node.GetInfo.1.0 are not carried.
type GetInfoReply struct {
	ProtocolVersion Version
	HardwareVersion Version
	SoftwareVersion Version
	VCSRevisionID   uint64
	UniqueID        [16]byte
	Name            string
}

// Encode serializes r into buf, returning the written slice.
func (r GetInfoReply) Encode(buf []byte) []byte {
	out := wire.NewOutStream(buf)
	r.ProtocolVersion.encode(out)
	r.HardwareVersion.encode(out)
	r.SoftwareVersion.encode(out)
	out.PutU64(r.VCSRevisionID)
	for _, b := range r.UniqueID {
		out.PutU8(b)
	}
	out.PutShortString([]byte(r.Name))
	return out.Bytes()
}

// DecodeGetInfoReply parses a GetInfoReply payload.
func DecodeGetInfoReply(payload []byte) GetInfoReply {
	in := wire.NewInStream(payload)
	r := GetInfoReply{
		ProtocolVersion: decodeVersion(in),
		HardwareVersion: decodeVersion(in),
		SoftwareVersion: decodeVersion(in),
		VCSRevisionID:   in.U64(),
	}
	for i := range r.UniqueID {
		r.UniqueID[i] = in.U8()
	}
	r.Name = string(in.ShortString())
	return r
}
