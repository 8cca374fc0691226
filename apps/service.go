package apps

import "github.com/cyphal-go/uavnode/node"

// Identity is the static self-description returned by GetInfo.
type Identity struct {
	ProtocolVersion Version
	HardwareVersion Version
	SoftwareVersion Version
	VCSRevisionID   uint64
	UniqueID        [16]byte
	Name            string
}

// RegisterServices defines the GetInfo, ExecuteCommand, PortInfo, and
// Register.Access/List services on n. onCommand handles ExecuteCommand
// requests; it may be nil, in which case every command is answered
// CommandStatusBadCommand.
func RegisterServices(n *node.Node, id Identity, store *Store, onCommand func(ExecuteCommandRequest) ExecuteCommandReply) {
	n.DefineService(GetInfoServiceID, "uavcan.node.GetInfo.1.0", getInfoDatatypeHash,
		func(remote node.NodeID, payload []byte, reply func([]byte)) {
			r := GetInfoReply{
				ProtocolVersion: id.ProtocolVersion,
				HardwareVersion: id.HardwareVersion,
				SoftwareVersion: id.SoftwareVersion,
				VCSRevisionID:   id.VCSRevisionID,
				UniqueID:        id.UniqueID,
				Name:            id.Name,
			}
			reply(r.Encode(make([]byte, 64+len(id.Name))))
		})

	n.DefineService(ExecuteCommandServiceID, "uavcan.node.ExecuteCommand.1.0", executeCommandDatatypeHash,
		func(remote node.NodeID, payload []byte, reply func([]byte)) {
			req := DecodeExecuteCommandRequest(payload)
			var resp ExecuteCommandReply
			if onCommand != nil {
				resp = onCommand(req)
			} else {
				resp = ExecuteCommandReply{Status: CommandStatusBadCommand}
			}
			reply(resp.Encode(make([]byte, 1)))
		})

	n.DefineService(PortInfoServiceID, "uavcan.port.GetInfo.1.0", portInfoDatatypeHash,
		func(remote node.NodeID, payload []byte, reply func([]byte)) {
			req := DecodePortInfoRequest(payload)
			resp := PortInfoAt(n, int(req.Index))
			reply(resp.Encode(make([]byte, 16+len(resp.DataTypeName))))
		})

	if store != nil {
		n.DefineService(RegisterAccessServiceID, "uavcan.register.Access.1.0", registerAccessDatatypeHash,
			func(remote node.NodeID, payload []byte, reply func([]byte)) {
				req := DecodeAccessRequest(payload)
				resp := store.Access(req, n.Now())
				reply(resp.Encode(make([]byte, 32+len(resp.Value.Str))))
			})

		n.DefineService(RegisterListServiceID, "uavcan.register.List.1.0", registerListDatatypeHash,
			func(remote node.NodeID, payload []byte, reply func([]byte)) {
				req := DecodeListRequest(payload)
				resp := ListReply{Name: store.NameAt(int(req.Index))}
				reply(resp.Encode(make([]byte, 1+len(resp.Name))))
			})
	}
}
