// Package udpx implements the UDP/IP transport: a CRC-less datagram
// envelope, a deterministic node-id<->IPv4 and port-id<->UDP-port mapping,
// and a socket-per-port listener set driven by the node's Port() lifecycle
// callback.
package udpx

import (
	"encoding/binary"
	"errors"

	"github.com/cyphal-go/uavnode/node"
)

// envelopeHeaderLen is version(1) + priority(1) + reserved(2) +
// frame_index_eot(4) + transfer id(8) + datatype hash(8). Unlike the serial
// frame, there is no CRC: UDP already checksums the datagram.
const envelopeHeaderLen = 24

// singleFrameEOT marks "frame 0, end of transfer" in the frame_index_eot
// field. This module never fragments a transfer across datagrams, so every
// outbound envelope carries exactly this value. Note this differs from the
// serial transport's single-frame flag (0x80000000): the UDP wire layout
// puts the EOT bit at a different offset within the field.
const singleFrameEOT = 0x00008000

const envelopeVersion = 0

var errShortDatagram = errors.New("udpx: datagram shorter than envelope header")
var errMultiFrame = errors.New("udpx: multi-frame datagrams are not supported")

// encodeEnvelope serializes t's header and payload into one UDP datagram.
// The destination node id, and therefore the destination address and UDP
// port, are carried out of band by the caller (addressed separately, since
// this module maps node/port identity onto IP/port rather than header
// bytes).
func encodeEnvelope(t *node.Transfer) []byte {
	buf := make([]byte, envelopeHeaderLen+len(t.Payload))
	buf[0] = envelopeVersion
	buf[1] = byte(t.Header.Priority)
	buf[2] = 0
	buf[3] = 0
	binary.LittleEndian.PutUint32(buf[4:8], singleFrameEOT)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(t.Header.TransferID))
	binary.LittleEndian.PutUint64(buf[16:24], t.Header.DatatypeHash)
	copy(buf[envelopeHeaderLen:], t.Payload)
	return buf
}

// decodedEnvelope holds everything decodeEnvelope recovers from the
// datagram body; the caller fills in Kind, Port, and the node ids from the
// socket it arrived on and the source address.
type decodedEnvelope struct {
	Priority     node.Priority
	TransferID   node.TransferID
	DatatypeHash uint64
	Payload      []byte
}

func decodeEnvelope(body []byte) (decodedEnvelope, error) {
	if len(body) < envelopeHeaderLen {
		return decodedEnvelope{}, errShortDatagram
	}
	if binary.LittleEndian.Uint32(body[4:8]) != singleFrameEOT {
		return decodedEnvelope{}, errMultiFrame
	}
	d := decodedEnvelope{
		Priority:     node.Priority(body[1]),
		TransferID:   node.TransferID(binary.LittleEndian.Uint64(body[8:16])),
		DatatypeHash: binary.LittleEndian.Uint64(body[16:24]),
	}
	if len(body) > envelopeHeaderLen {
		payload := make([]byte, len(body)-envelopeHeaderLen)
		copy(payload, body[envelopeHeaderLen:])
		d.Payload = payload
	}
	return d, nil
}

// subjectBase and serviceBase anchor the port mapping: subject ids map
// upward from 16384, service ids map downward from it in pairs
// (request, response).
const (
	subjectBase = 16384
	serviceBase = 16384
)

// udpPortForSubject returns the UDP port a subject's messages are sent to
// and (if subscribed) received on.
func udpPortForSubject(subjectID uint16) int {
	return subjectBase + int(subjectID&0x7FFF)
}

// udpPortForService returns the UDP port used for one direction (request or
// response) of a service.
func udpPortForService(serviceID uint16, kind node.TransferKind) int {
	port := serviceBase - 2*int(serviceID&0x0FFF) - 2
	if kind == node.Response {
		port++
	}
	return port
}

// decodeUDPPort inverts udpPortForSubject/udpPortForService: given the UDP
// port a datagram arrived on (or is destined for), it recovers the
// transfer kind and port id.
func decodeUDPPort(udpPort int) (kind node.TransferKind, port node.PortID, ok bool) {
	switch {
	case udpPort >= subjectBase:
		return node.Message, node.SubjectPort(uint16(udpPort - subjectBase)), true
	case udpPort >= 8192 && udpPort < subjectBase:
		x := serviceBase - udpPort
		if udpPort%2 == 0 {
			serviceID := uint16(x/2 - 1)
			return node.Request, node.ServicePort(serviceID), true
		}
		serviceID := uint16((x - 1) / 2)
		return node.Response, node.ServicePort(serviceID), true
	default:
		return 0, 0, false
	}
}
