package tcp

import (
	"net"
	"syscall"
)

// SetKeepAliveCount sets the TCP_KEEPCNT option: the number of
// unanswered probes before the connection is dropped.
func SetKeepAliveCount(conn *net.TCPConn, count int) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var serr error
	if err := rawConn.Control(func(fd uintptr) {
		serr = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_KEEPCNT, count)
	}); err != nil {
		return err
	}
	return serr
}
