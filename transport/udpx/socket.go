package udpx

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// enableBroadcast sets SO_BROADCAST on conn's underlying socket, needed to
// send subject datagrams to the subnet broadcast address.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var setErr error
	err = raw.Control(func(fd uintptr) {
		setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return setErr
}

// enableReuseAddr sets SO_REUSEADDR, so a bind to a UDP port already
// bound by another local socket (or a recently-closed one still in
// TIME_WAIT) does not fail.
func enableReuseAddr(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var setErr error
	err = raw.Control(func(fd uintptr) {
		setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return setErr
}

// pastDeadline is reused on every poll so Loop's per-tick reads never block:
// the node is driven cooperatively, same discipline as the serial
// transport's AvailableRead-before-Read pump.
var pastDeadline = time.Unix(1, 0)

// pollRead attempts one non-blocking read from conn. ok is false when
// nothing was waiting.
func pollRead(conn *net.UDPConn, buf []byte) (n int, src *net.UDPAddr, ok bool) {
	if err := conn.SetReadDeadline(pastDeadline); err != nil {
		return 0, nil, false
	}
	n, src, err := conn.ReadFromUDP(buf)
	if err != nil {
		return 0, nil, false
	}
	return n, src, true
}
