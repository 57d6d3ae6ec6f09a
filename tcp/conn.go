package tcp

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tutils/rxnet/rx"
	"github.com/tutils/rxnet/source"
)

var _ rx.Source[[]byte] = (*Conn)(nil)

// ConnState is the lifecycle state of a Conn.
type ConnState int

// connection states
const (
	StateNew ConnState = iota
	StateActive
	StateClosed
)

var stateName = map[ConnState]string{
	StateNew:    "new",
	StateActive: "active",
	StateClosed: "closed",
}

func (c ConnState) String() string {
	return stateName[c]
}

// Conn is a TCP connection whose received bytes are pushed to the
// attached hooks as chunks. A Conn starts paused: nothing is read until
// the first Resume.
type Conn struct {
	*source.Reader

	id  uuid.UUID
	rwc net.Conn

	curState   atomic.Uint64 // packed (unixtime<<8|uint8(ConnState))
	onSetState func(ConnState)
}

func newConn(rwc net.Conn, chunkSize int, onSetState func(*Conn, ConnState)) *Conn {
	c := &Conn{
		id:  uuid.New(),
		rwc: rwc,
	}
	if onSetState != nil {
		c.onSetState = func(state ConnState) { onSetState(c, state) }
	}
	c.Reader = source.NewReader(rwc,
		source.WithChunkSize(chunkSize),
		source.WithReadHook(func(int) { c.setState(StateActive) }),
		source.WithCloseHook(func(error) { c.setState(StateClosed) }),
	)
	c.setState(StateNew)
	return c
}

// ID returns the identifier assigned when the connection was accepted or dialed.
func (c *Conn) ID() uuid.UUID { return c.id }

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr { return c.rwc.LocalAddr() }

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.rwc.RemoteAddr() }

// NetConn returns the underlying connection.
// Reading from it directly races with the Conn's own read loop.
func (c *Conn) NetConn() net.Conn { return c.rwc }

// Write writes p to the connection.
func (c *Conn) Write(p []byte) (int, error) {
	return c.rwc.Write(p)
}

// CloseWrite shuts down the writing side, so the peer reads end of stream
// while this side keeps receiving.
func (c *Conn) CloseWrite() error {
	if cw, ok := c.rwc.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return c.Close()
}

// State returns the current state and the unix time it was entered.
func (c *Conn) State() (state ConnState, unixSec int64) {
	packedState := c.curState.Load()
	return ConnState(packedState & 0xff), int64(packedState >> 8)
}

func (c *Conn) setState(state ConnState) {
	if state > 0xff || state < 0 {
		panic("internal error")
	}
	if cur, _ := c.State(); cur == StateClosed {
		return
	}
	packedState := uint64(time.Now().Unix()<<8) | uint64(state)
	prev := c.curState.Swap(packedState)
	if ConnState(prev&0xff) == state && state != StateNew {
		return
	}
	if c.onSetState != nil {
		c.onSetState(state)
	}
}

func (c *Conn) String() string {
	return fmt.Sprintf("%s (%s)", c.id, c.rwc.RemoteAddr())
}
