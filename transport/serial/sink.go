package serial

import (
	"github.com/daedaluz/goserial"
	"golang.org/x/sys/unix"
)

// ByteSink is the collaborator the serial transport needs from the
// underlying link: read, write, flush, and best-effort capacity queries.
// No error surface beyond reduced counts is required; a sink that can't
// say how much room it has should just report a generous constant.
type ByteSink interface {
	Read(buf []byte) (n int, err error)
	Write(buf []byte) (n int, err error)
	Flush() error
	AvailableRead() int
	AvailableWrite() int
}

// defaultWriteChunk bounds how much a sink that can't report AvailableWrite
// is asked to accept in one call.
const defaultWriteChunk = 256

// OSPort adapts a github.com/daedaluz/goserial Port to ByteSink, using
// FIONREAD/TIOCOUTQ (via golang.org/x/sys/unix, already in the module's
// dependency set for netlink/socket option work) to answer the capacity
// queries the termios API itself doesn't expose.
type OSPort struct {
	port *serial.Port
}

// OpenOSPort opens path at the given baud rate in raw mode, ready for use as
// the serial transport's ByteSink.
func OpenOSPort(path string, baud serial.CFlag) (*OSPort, error) {
	opts := serial.NewOptions()
	p, err := serial.Open(path, opts)
	if err != nil {
		return nil, err
	}
	attrs, err := p.GetAttr()
	if err != nil {
		p.Close()
		return nil, err
	}
	attrs.MakeRaw()
	attrs.SetSpeed(baud)
	if err := p.SetAttr(serial.TCSANOW, attrs); err != nil {
		p.Close()
		return nil, err
	}
	return &OSPort{port: p}, nil
}

func (o *OSPort) Read(buf []byte) (int, error)  { return o.port.Read(buf) }
func (o *OSPort) Write(buf []byte) (int, error) { return o.port.Write(buf) }
func (o *OSPort) Flush() error                  { return o.port.Drain() }
func (o *OSPort) Close() error                  { return o.port.Close() }

// AvailableRead reports the number of bytes currently queued to read, via
// FIONREAD. It returns 0 (rather than erroring) when the ioctl fails, which
// the parser loop treats as "nothing to do this tick".
func (o *OSPort) AvailableRead() int {
	n, err := unix.IoctlGetInt(o.port.Fd(), unix.FIONREAD)
	if err != nil {
		return 0
	}
	return n
}

// AvailableWrite reports a conservative estimate of transmit headroom:
// defaultWriteChunk minus whatever TIOCOUTQ says is still queued for
// output, floored at 0.
func (o *OSPort) AvailableWrite() int {
	queued, err := unix.IoctlGetInt(o.port.Fd(), unix.TIOCOUTQ)
	if err != nil {
		return defaultWriteChunk
	}
	room := defaultWriteChunk - queued
	if room < 0 {
		return 0
	}
	return room
}
