package apps

import (
	"github.com/cyphal-go/uavnode/internal/dtype"
	"github.com/cyphal-go/uavnode/internal/wire"
)

// ExecuteCommandServiceID is the well-known service id for
// uavcan.node.ExecuteCommand.1.0.
const ExecuteCommandServiceID = 435

var executeCommandDatatypeHash = dtype.Hash("uavcan.node.ExecuteCommand.1.0")

// Standard command codes, per uavcan.node.ExecuteCommand.1.0.
const (
	CommandRestart             = 65535
	CommandPowerOff            = 65534
	CommandBeginSoftwareUpdate = 65533
	CommandFactoryReset        = 65530
)

// ExecuteCommandRequest carries a command code and an optional string
// parameter.
type ExecuteCommandRequest struct {
	Command   uint16
	Parameter string
}

func (r ExecuteCommandRequest) Encode(buf []byte) []byte {
	out := wire.NewOutStream(buf)
	out.PutU16(r.Command)
	out.PutShortString([]byte(r.Parameter))
	return out.Bytes()
}

func DecodeExecuteCommandRequest(payload []byte) ExecuteCommandRequest {
	in := wire.NewInStream(payload)
	return ExecuteCommandRequest{
		Command:   in.U16(),
		Parameter: string(in.ShortString()),
	}
}

// ExecuteCommandReply status codes, per uavcan.node.ExecuteCommand.1.0.
const (
	CommandStatusSuccess       = 0
	CommandStatusFailure       = 1
	CommandStatusNotAuthorized = 2
	CommandStatusBadCommand    = 3
	CommandStatusBadParameter  = 4
	CommandStatusBadState      = 5
	CommandStatusInternalError = 6
)

// ExecuteCommandReply reports the outcome of a command. The reserved void
// bytes uavcan.node.ExecuteCommand.1.0 places after status are omitted;
// they carry no information.
type ExecuteCommandReply struct {
	Status uint8
}

func (r ExecuteCommandReply) Encode(buf []byte) []byte {
	out := wire.NewOutStream(buf)
	out.PutU8(r.Status)
	return out.Bytes()
}

func DecodeExecuteCommandReply(payload []byte) ExecuteCommandReply {
	in := wire.NewInStream(payload)
	return ExecuteCommandReply{Status: in.U8()}
}

// standardCommands is the set of codes every node understands, hook or not.
var standardCommands = map[uint16]bool{
	CommandRestart:             true,
	CommandPowerOff:            true,
	CommandBeginSoftwareUpdate: true,
	CommandFactoryReset:        true,
}

// NewCommandHandler builds an ExecuteCommand dispatcher over hooks, keyed
// by command code. A request whose code has a hook gets the hook's status.
// A standard code with no hook answers CommandStatusBadState (the node
// knows the command but cannot perform it); anything else answers
// CommandStatusBadCommand.
func NewCommandHandler(hooks map[uint16]func(parameter string) uint8) func(ExecuteCommandRequest) ExecuteCommandReply {
	return func(req ExecuteCommandRequest) ExecuteCommandReply {
		if hook, ok := hooks[req.Command]; ok {
			return ExecuteCommandReply{Status: hook(req.Parameter)}
		}
		if standardCommands[req.Command] {
			return ExecuteCommandReply{Status: CommandStatusBadState}
		}
		return ExecuteCommandReply{Status: CommandStatusBadCommand}
	}
}
