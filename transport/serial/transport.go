package serial

import (
	"time"

	"github.com/m-lab/go/logx"

	"github.com/cyphal-go/uavnode/internal/priomap"
	"github.com/cyphal-go/uavnode/metrics"
	"github.com/cyphal-go/uavnode/node"
)

// A noisy link can fail CRC on every frame; rate-limit the drop logging.
var dropLog = logx.NewLogEvery(nil, time.Second)

// txQueueCapacity is the serial TX queue's fixed size. On overflow the
// lowest-priority queued frame is evicted and its transfer completes
// without transmission.
const txQueueCapacity = 32

// pending is one queued outbound frame: its already-encoded bytes and the
// Transfer they were encoded from, kept only so Unref can fire on eviction
// or after a full write.
type pending struct {
	encoded []byte
	offset  int
	t       *node.Transfer
}

// Transport drives a ByteSink through the byte-stuffing parser on receive
// and the priority-sorted transmit queue on send, implementing
// node.Transport.
type Transport struct {
	sink ByteSink
	n    *node.Node

	parser *parser
	tx     *priomap.Map // key: priority; value: *pending

	// cur is the frame currently going out on the wire. Once the first byte
	// of a frame is written, the whole frame must follow before any other
	// queued frame, whatever its priority.
	cur *pending

	oobHandler OOBHandler
}

// New creates a serial transport over sink. oobHandler, if non-nil, receives
// bytes observed outside any valid frame.
func New(sink ByteSink, oobHandler OOBHandler) *Transport {
	tr := &Transport{
		sink:       sink,
		tx:         priomap.New(txQueueCapacity),
		oobHandler: oobHandler,
	}
	tr.parser = newParser(oobHandler, tr.onFrameClosed)
	return tr
}

func (tr *Transport) onFrameClosed(body []byte) {
	t, err := decodeFrame(body)
	if err != nil {
		metrics.FrameCRCFailures.Inc()
		dropLog.Printf("serial: dropping frame: %v", err)
		return
	}
	if tr.n != nil {
		tr.n.TransferReceive(t)
	}
}

// Start implements node.Transport.
func (tr *Transport) Start(n *node.Node) error {
	tr.n = n
	return nil
}

// Stop implements node.Transport.
func (tr *Transport) Stop(n *node.Node) error {
	return nil
}

// Port implements node.Transport. The serial transport has no per-port
// binding to maintain (unlike UDP); it exists purely to satisfy the
// interface.
func (tr *Transport) Port(n *node.Node, port node.PortID, info *node.PortInfo) {}

// Send implements node.Transport: encode once, enqueue by priority, evicting
// the lowest-priority entry on overflow. The evicted transfer's completion
// still fires, as "completed without transmission".
func (tr *Transport) Send(t *node.Transfer) {
	encoded := encodeFrame(t)
	metrics.FrameBytesHistogram.Observe(float64(len(encoded)))
	p := &pending{encoded: encoded, t: t}
	evicted, didEvict := tr.tx.Insert(int(t.Header.Priority), p)
	if didEvict {
		metrics.SerialQueueOverflows.Inc()
		if ev, ok := evicted.Value.(*pending); ok {
			ev.t.Unref()
		}
	}
}

// Loop implements node.Transport: pump the parser over whatever the sink has
// buffered, then drain the TX queue into the sink in writable-capacity
// chunks.
func (tr *Transport) Loop(n *node.Node, tMS, dtMS uint32) {
	tr.pumpReceive()
	tr.pumpTransmit()
}

func (tr *Transport) pumpReceive() {
	avail := tr.sink.AvailableRead()
	if avail <= 0 {
		return
	}
	buf := make([]byte, avail)
	nRead, err := tr.sink.Read(buf)
	if err != nil || nRead <= 0 {
		return
	}
	tr.parser.feed(buf[:nRead])
}

func (tr *Transport) pumpTransmit() {
	for {
		if tr.cur == nil {
			e, ok := tr.tx.RemoveFront()
			if !ok {
				return
			}
			tr.cur = e.Value.(*pending)
		}
		p := tr.cur
		room := tr.sink.AvailableWrite()
		if room <= 0 {
			return
		}
		end := p.offset + room
		if end > len(p.encoded) {
			end = len(p.encoded)
		}
		n, err := tr.sink.Write(p.encoded[p.offset:end])
		if n > 0 {
			p.offset += n
		}
		if err != nil {
			return
		}
		if p.offset >= len(p.encoded) {
			tr.cur = nil
			tr.sink.Flush()
			p.t.Unref()
			continue
		}
		// Partial write: wait for the next Loop tick rather than spinning.
		return
	}
}
