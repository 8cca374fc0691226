// Package recorder writes every transfer a node sends or receives to a
// rotating sequence of zstd-compressed files, one length-prefixed binary
// record per transfer.
package recorder

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/cyphal-go/uavnode/node"
)

// Direction distinguishes an outbound transfer (this node sent it) from an
// inbound one (a transport decoded it off the wire).
type Direction uint8

const (
	Outbound Direction = 0
	Inbound  Direction = 1
)

// Event is the recorded shape of one transfer: its header, direction, and
// payload.
type Event struct {
	Direction    Direction
	TimestampUS  uint64
	Priority     node.Priority
	Kind         node.TransferKind
	Port         node.PortID
	DatatypeHash uint64
	LocalNodeID  node.NodeID
	RemoteNodeID node.NodeID
	TransferID   node.TransferID
	Payload      []byte
}

// eventHeaderLen is every fixed-width Event field: direction(1) +
// timestamp(8) + priority(1) + kind(1) + port(2) + datatype hash(8) +
// local/remote node id(2+2) + transfer id(8) + payload length(2).
const eventHeaderLen = 35

// encodeEvent is this package's own on-disk record shape, independent of
// internal/wire's protocol codec (there is no truncate-on-read rule to honor
// here, only a plain self-describing recorder format, so plain
// encoding/binary is the simpler fit).
func encodeEvent(e Event) []byte {
	buf := make([]byte, eventHeaderLen+len(e.Payload))
	buf[0] = uint8(e.Direction)
	binary.LittleEndian.PutUint64(buf[1:9], e.TimestampUS)
	buf[9] = uint8(e.Priority)
	buf[10] = uint8(e.Kind)
	binary.LittleEndian.PutUint16(buf[11:13], uint16(e.Port))
	binary.LittleEndian.PutUint64(buf[13:21], e.DatatypeHash)
	binary.LittleEndian.PutUint16(buf[21:23], uint16(e.LocalNodeID))
	binary.LittleEndian.PutUint16(buf[23:25], uint16(e.RemoteNodeID))
	binary.LittleEndian.PutUint64(buf[25:33], uint64(e.TransferID))
	binary.LittleEndian.PutUint16(buf[33:35], uint16(len(e.Payload)))
	copy(buf[eventHeaderLen:], e.Payload)
	return buf
}

func decodeEvent(buf []byte) Event {
	e := Event{
		Direction:    Direction(buf[0]),
		TimestampUS:  binary.LittleEndian.Uint64(buf[1:9]),
		Priority:     node.Priority(buf[9]),
		Kind:         node.TransferKind(buf[10]),
		Port:         node.PortID(binary.LittleEndian.Uint16(buf[11:13])),
		DatatypeHash: binary.LittleEndian.Uint64(buf[13:21]),
		LocalNodeID:  node.NodeID(binary.LittleEndian.Uint16(buf[21:23])),
		RemoteNodeID: node.NodeID(binary.LittleEndian.Uint16(buf[23:25])),
		TransferID:   node.TransferID(binary.LittleEndian.Uint64(buf[25:33])),
	}
	n := int(binary.LittleEndian.Uint16(buf[33:35]))
	if n > len(buf)-eventHeaderLen {
		n = len(buf) - eventHeaderLen
	}
	e.Payload = append([]byte(nil), buf[eventHeaderLen:eventHeaderLen+n]...)
	return e
}

// EventFromTransfer builds an Event from a transport-level Transfer, at
// nowUS.
func EventFromTransfer(dir Direction, t *node.Transfer, nowUS uint64) Event {
	return Event{
		Direction:    dir,
		TimestampUS:  nowUS,
		Priority:     t.Header.Priority,
		Kind:         t.Header.Kind,
		Port:         t.Header.Port,
		DatatypeHash: t.Header.DatatypeHash,
		LocalNodeID:  t.Header.LocalNodeID,
		RemoteNodeID: t.Header.RemoteNodeID,
		TransferID:   t.Header.TransferID,
		Payload:      t.Payload,
	}
}

// Recorder appends Events to a rotating sequence of zstd-compressed files
// under dir, named by start time and sequence number, rotating every
// rotateEvery.
type Recorder struct {
	dir         string
	prefix      string
	rotateEvery time.Duration

	writer     io.WriteCloser
	sequence   int
	expiration time.Time
	nowFunc    func() time.Time
}

// New creates a Recorder writing into dir with the given filename prefix,
// rotating files every rotateEvery.
func New(dir, prefix string, rotateEvery time.Duration) *Recorder {
	return &Recorder{dir: dir, prefix: prefix, rotateEvery: rotateEvery, nowFunc: time.Now}
}

func (r *Recorder) rotateIfDue() error {
	now := r.nowFunc()
	if r.writer != nil && now.Before(r.expiration) {
		return nil
	}
	if r.writer != nil {
		r.writer.Close()
	}
	name := fmt.Sprintf("%s/%s_%s_%05d.zst", r.dir, r.prefix, now.Format("20060102T150405.000"), r.sequence)
	w, err := newZstdWriter(name)
	if err != nil {
		return err
	}
	r.writer = w
	r.sequence++
	r.expiration = now.Add(r.rotateEvery)
	return nil
}

// Write appends e to the current output file, rotating first if due.
func (r *Recorder) Write(e Event) error {
	if err := r.rotateIfDue(); err != nil {
		return err
	}
	body := encodeEvent(e)
	var length [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(length[:], uint64(len(body)))
	if _, err := r.writer.Write(length[:n]); err != nil {
		return err
	}
	_, err := r.writer.Write(body)
	return err
}

// ReadFile decompresses and decodes every Event logged to filename, for
// offline inspection (cmd/uavnode-dump).
func ReadFile(filename string) ([]Event, error) {
	rc, err := newZstdReader(filename)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	br := bufio.NewReader(rc)
	var out []Event
	for {
		size, err := binary.ReadUvarint(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(br, buf); err != nil {
			return out, err
		}
		if len(buf) < eventHeaderLen {
			return out, fmt.Errorf("recorder: truncated record (%d bytes)", len(buf))
		}
		out = append(out, decodeEvent(buf))
	}
	return out, nil
}

// Close closes the current output file, if any.
func (r *Recorder) Close() error {
	if r.writer == nil {
		return nil
	}
	err := r.writer.Close()
	r.writer = nil
	return err
}

// Tap wraps a node.Transport, recording every transfer it Sends without
// altering its behavior. This is how a Recorder is wired onto a live node
// without the transport itself knowing recording is happening.
type Tap struct {
	rec  *Recorder
	now  func() uint64
	next node.Transport
}

// NewTap returns a Transport that records outbound Sends through rec (keyed
// by now) before delegating to next.
func NewTap(rec *Recorder, now func() uint64, next node.Transport) *Tap {
	return &Tap{rec: rec, now: now, next: next}
}

func (t *Tap) Start(n *node.Node) error                                 { return t.next.Start(n) }
func (t *Tap) Stop(n *node.Node) error                                  { return t.next.Stop(n) }
func (t *Tap) Port(n *node.Node, port node.PortID, info *node.PortInfo) { t.next.Port(n, port, info) }
func (t *Tap) Loop(n *node.Node, tMS, dtMS uint32)                      { t.next.Loop(n, tMS, dtMS) }

func (t *Tap) Send(tr *node.Transfer) {
	if err := t.rec.Write(EventFromTransfer(Outbound, tr, t.now())); err != nil {
		log.Println("recorder: write failed:", err)
	}
	t.next.Send(tr)
}
