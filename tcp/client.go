package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
)

type onceCancelDialer struct {
	net.Dialer
	cancel context.CancelFunc
	once   sync.Once
}

func (oc *onceCancelDialer) Cancel() {
	oc.once.Do(oc.cancel)
}

// Client over tcp
type Client struct {
	opts ClientOptions

	mu         sync.Mutex
	dialers    map[*onceCancelDialer]struct{}
	activeConn map[*Conn]struct{}

	inShutdown atomicBool // true when client is closed
}

// ErrClientClosed means client has been closed
var ErrClientClosed = errors.New("rxnet/tcp: Client closed")

// ErrConnectionRefused means connection refused
var ErrConnectionRefused = errors.New("rxnet/tcp: Connection refused")

// Dial connects to the configured address. The returned Conn is paused
// like an accepted one.
func (cli *Client) Dial(ctx context.Context) (*Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, cli.opts.dialTimeout)
	d := &onceCancelDialer{cancel: cancel}
	defer d.Cancel()

	if !cli.trackDialer(d, true) {
		return nil, ErrClientClosed
	}
	defer cli.trackDialer(d, false)

	rw, err := d.DialContext(ctx, cli.opts.network, cli.opts.addr)
	if err != nil {
		if cli.shuttingDown() {
			return nil, ErrClientClosed
		}
		return nil, fmt.Errorf("%w: %w", ErrConnectionRefused, err)
	}

	if err := setKeepAlive(rw, cli.opts.keepAlivePeriod, cli.opts.keepAliveCount); err != nil {
		cli.opts.logger.Warn("rxnet/tcp: set keep-alive", "remote", cli.opts.addr, "err", err)
	}

	return newConn(rw, cli.opts.chunkSize, cli.onConnState), nil
}

func (cli *Client) onConnState(c *Conn, state ConnState) {
	switch state {
	case StateNew:
		cli.trackConn(c, true)
	case StateClosed:
		cli.trackConn(c, false)
	}
}

func (cli *Client) shuttingDown() bool {
	return cli.inShutdown.isSet()
}

// Close cancels pending dials and closes all connections of client
func (cli *Client) Close() error {
	cli.inShutdown.setTrue()
	cli.mu.Lock()
	for d := range cli.dialers {
		d.Cancel()
	}
	conns := make([]*Conn, 0, len(cli.activeConn))
	for c := range cli.activeConn {
		conns = append(conns, c)
		delete(cli.activeConn, c)
	}
	cli.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	return nil
}

func (cli *Client) numConns() int {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	return len(cli.activeConn)
}

func (cli *Client) trackDialer(d *onceCancelDialer, add bool) bool {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	if cli.dialers == nil {
		cli.dialers = make(map[*onceCancelDialer]struct{})
	}
	if add {
		if cli.shuttingDown() {
			return false
		}
		cli.dialers[d] = struct{}{}
	} else {
		delete(cli.dialers, d)
	}
	return true
}

func (cli *Client) trackConn(c *Conn, add bool) {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	if cli.activeConn == nil {
		cli.activeConn = make(map[*Conn]struct{})
	}
	if add {
		cli.activeConn[c] = struct{}{}
	} else {
		delete(cli.activeConn, c)
	}
}

// NewClient create a new tcp client
func NewClient(opts ...ClientOption) *Client {
	opt := newClientOptions(opts...)

	return &Client{
		opts: *opt,
	}
}
