// Package serial implements the byte-stuffed single-frame serial transport:
// the frame envelope codec, the parser state machine, the priority-sorted
// transmit queue, and out-of-band pass-through, wired on top of
// github.com/daedaluz/goserial's termios-backed port.
package serial

import (
	"encoding/binary"
	"fmt"

	"github.com/cyphal-go/uavnode/internal/crc32c"
	"github.com/cyphal-go/uavnode/node"
)

const (
	delimiter    byte = 0x9E
	escapeByte   byte = 0x8E
	frameVersion byte = 0x00

	headerLen        = 28                // bytes [0..28) covered by the header CRC
	envelopeOverhead = headerLen + 4 + 4 // header + header-CRC + payload-CRC
	maxFrameBuffer   = 1024

	singleFrameEOT uint32 = 0x80000000
)

// data specifier tag bits, layered over the low 16 bits at offset 6.
const (
	specifierRequestBit  = 0x8000
	specifierResponseBit = 0xC000
)

// encodeFrame builds the framed (delimited, byte-stuffed) wire
// representation of t, ready to be written verbatim to the byte sink.
func encodeFrame(t *node.Transfer) []byte {
	body := make([]byte, envelopeOverhead+len(t.Payload))
	body[0] = frameVersion
	body[1] = byte(t.Header.Priority)
	binary.LittleEndian.PutUint16(body[2:4], uint16(t.Header.LocalNodeID))
	binary.LittleEndian.PutUint16(body[4:6], uint16(t.Header.RemoteNodeID))
	binary.LittleEndian.PutUint16(body[6:8], dataSpecifier(t.Header))
	binary.LittleEndian.PutUint64(body[8:16], t.Header.DatatypeHash)
	binary.LittleEndian.PutUint64(body[16:24], uint64(t.Header.TransferID))
	binary.LittleEndian.PutUint32(body[24:28], singleFrameEOT)

	headerCRC := crc32c.Checksum(body[0:headerLen])
	binary.LittleEndian.PutUint32(body[28:32], headerCRC)

	copy(body[32:], t.Payload)
	payloadCRC := crc32c.Checksum(t.Payload)
	binary.LittleEndian.PutUint32(body[32+len(t.Payload):], payloadCRC)

	return stuff(body)
}

// dataSpecifier packs a Header's port and transfer kind into the serial
// frame's offset-6 field.
func dataSpecifier(h node.Header) uint16 {
	switch h.Kind {
	case node.Message:
		return uint16(h.Port)
	case node.Request:
		return h.Port.ServiceID() | specifierRequestBit
	case node.Response:
		return h.Port.ServiceID() | specifierResponseBit
	default:
		return uint16(h.Port)
	}
}

// stuff escapes delimiter and escape bytes within body and wraps the result
// in opening/closing delimiters.
func stuff(body []byte) []byte {
	out := make([]byte, 0, len(body)+4)
	out = append(out, delimiter)
	for _, b := range body {
		if b == delimiter || b == escapeByte {
			out = append(out, escapeByte, b^0xFF)
		} else {
			out = append(out, b)
		}
	}
	out = append(out, delimiter)
	return out
}

// decodeFrame validates and decodes an unescaped frame body (the bytes
// collected between delimiters, already de-stuffed). It returns an error
// describing the first failure for logging; callers silently drop the frame
// regardless of which error is returned.
func decodeFrame(body []byte) (*node.Transfer, error) {
	if len(body) < envelopeOverhead {
		return nil, fmt.Errorf("serial: frame too short: %d bytes", len(body))
	}
	if body[0] != frameVersion {
		return nil, fmt.Errorf("serial: unsupported version %#x", body[0])
	}

	wantHeaderCRC := binary.LittleEndian.Uint32(body[28:32])
	if crc32c.Checksum(body[0:headerLen]) != wantHeaderCRC {
		return nil, fmt.Errorf("serial: header CRC mismatch")
	}

	payloadLen := len(body) - envelopeOverhead
	payload := body[32 : 32+payloadLen]
	wantPayloadCRC := binary.LittleEndian.Uint32(body[32+payloadLen:])
	if crc32c.Checksum(payload) != wantPayloadCRC {
		return nil, fmt.Errorf("serial: payload CRC mismatch")
	}

	eot := binary.LittleEndian.Uint32(body[24:28])
	if eot != singleFrameEOT {
		return nil, fmt.Errorf("serial: multi-frame transfers are not supported")
	}

	priority := node.Priority(body[1])
	source := node.NodeID(binary.LittleEndian.Uint16(body[2:4]))
	destination := node.NodeID(binary.LittleEndian.Uint16(body[4:6]))
	spec := binary.LittleEndian.Uint16(body[6:8])
	datatypeHash := binary.LittleEndian.Uint64(body[8:16])
	transferID := node.TransferID(binary.LittleEndian.Uint64(body[16:24]))

	h := node.Header{
		Priority:     priority,
		DatatypeHash: datatypeHash,
		TransferID:   transferID,
		LocalNodeID:  destination,
		RemoteNodeID: source,
	}
	switch {
	case spec&specifierResponseBit == specifierResponseBit:
		h.Kind = node.Response
		h.Port = node.ServicePort(spec &^ specifierResponseBit)
	case spec&specifierRequestBit == specifierRequestBit:
		h.Kind = node.Request
		h.Port = node.ServicePort(spec &^ specifierRequestBit)
	default:
		h.Kind = node.Message
		h.Port = node.SubjectPort(spec)
	}

	payloadCopy := make([]byte, len(payload))
	copy(payloadCopy, payload)
	return node.NewTransfer(h, payloadCopy, nil), nil
}
