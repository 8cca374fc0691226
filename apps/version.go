// Package apps implements the node-introspection and configuration service
// surface layered on top of the core dispatcher: GetInfo, ExecuteCommand,
// PortInfo, and the Register access/list services. Each message is a thin
// user of internal/wire and node.Node.
package apps

import "github.com/cyphal-go/uavnode/internal/wire"

// Version is the {major, minor} pair used by protocol/hardware/software
// version fields (uavcan.node.Version.1.0).
type Version struct {
	Major uint8
	Minor uint8
}

func (v Version) encode(out *wire.OutStream) {
	out.PutU8(v.Major).PutU8(v.Minor)
}

func decodeVersion(in *wire.InStream) Version {
	return Version{Major: in.U8(), Minor: in.U8()}
}
