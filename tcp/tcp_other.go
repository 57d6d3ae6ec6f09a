//go:build !linux

package tcp

import (
	"errors"
	"net"
)

// SetKeepAliveCount sets the TCP_KEEPCNT option
func SetKeepAliveCount(conn *net.TCPConn, count int) (err error) {
	return errors.New("rxnet/tcp: keep-alive count not supported on this platform")
}
