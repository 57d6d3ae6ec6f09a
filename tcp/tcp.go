// Package tcp provides a TCP server and client whose connections are
// push-based byte sources.
//
// A Server reports its activity through attached ServerHooks: one
// Connection event per accepted connection, then exactly one of Close
// or Error once it stops accepting. Every accepted or dialed Conn is a
// paused rx.Source of received chunks.
package tcp

import (
	"log/slog"
	"net"
	"sync/atomic"
	"time"
)

type atomicBool int32

func (b *atomicBool) isSet() bool { return atomic.LoadInt32((*int32)(b)) != 0 }
func (b *atomicBool) setTrue()    { atomic.StoreInt32((*int32)(b), 1) }

var shutdownPollInterval = 500 * time.Millisecond

func defaultLogger() *slog.Logger {
	return slog.Default()
}

// setKeepAlive enables TCP keep-alive on c when it is a TCP connection.
func setKeepAlive(c net.Conn, period time.Duration, count int) error {
	if period <= 0 {
		return nil
	}
	tcpConn, ok := c.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tcpConn.SetKeepAlive(true); err != nil {
		return err
	}
	if err := tcpConn.SetKeepAlivePeriod(period); err != nil {
		return err
	}
	if count > 0 {
		return SetKeepAliveCount(tcpConn, count)
	}
	return nil
}
