package serial

// parserState is the byte-stuffing parser's state machine position.
type parserState int

const (
	stateNone parserState = iota
	stateOOB
	stateDelimiter
	stateFrame
	stateEscape
)

// OOBHandler receives out-of-band bytes: anything observed outside a valid
// frame, coalesced per parser wake-up. This is the hook used by
// human-readable protocols sharing the same byte stream, e.g. a console.
type OOBHandler func(b []byte)

// parser implements the NONE/OOB/DELIMITER/FRAME/ESCAPE state machine over
// an arbitrarily chunked byte stream.
type parser struct {
	state   parserState
	frame   []byte
	oob     []byte
	oobCB   OOBHandler
	onFrame func(body []byte)
}

func newParser(oobCB OOBHandler, onFrame func(body []byte)) *parser {
	if oobCB == nil {
		oobCB = func([]byte) {}
	}
	return &parser{state: stateNone, oobCB: oobCB, onFrame: onFrame}
}

// feed processes every byte in chunk, flushing any accumulated OOB range at
// the end of the call (one wake-up).
func (p *parser) feed(chunk []byte) {
	for i := 0; i < len(chunk); i++ {
		b := chunk[i]
		switch p.state {
		case stateNone, stateOOB:
			if b == delimiter {
				p.flushOOB()
				p.state = stateDelimiter
				continue
			}
			p.oob = append(p.oob, b)
			p.state = stateOOB

		case stateDelimiter:
			if b == delimiter {
				continue
			}
			if b == frameVersion {
				p.frame = p.frame[:0]
				p.frame = append(p.frame, b)
				p.state = stateFrame
				continue
			}
			p.state = stateOOB
			i--

		case stateFrame:
			switch b {
			case escapeByte:
				if i+1 < len(chunk) {
					p.appendFrameByte(chunk[i+1] ^ 0xFF)
					i++
				} else {
					p.state = stateEscape
				}
			case delimiter:
				p.closeFrame()
				p.state = stateDelimiter
			default:
				p.appendFrameByte(b)
			}

		case stateEscape:
			p.appendFrameByte(b ^ 0xFF)
			p.state = stateFrame
		}
	}
	p.flushOOB()
}

func (p *parser) appendFrameByte(b byte) {
	if len(p.frame) >= maxFrameBuffer {
		// Truncate: the CRC check on close will fail and the frame will be
		// dropped.
		return
	}
	p.frame = append(p.frame, b)
}

func (p *parser) closeFrame() {
	body := p.frame
	p.frame = nil
	if len(body) == 0 {
		return
	}
	p.onFrame(body)
}

func (p *parser) flushOOB() {
	if len(p.oob) == 0 {
		return
	}
	p.oobCB(p.oob)
	p.oob = nil
}
