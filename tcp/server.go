package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/tutils/rxnet/internal/event"
)

// ServerHooks is the set of callbacks a Server invokes.
// Connection is called on the accept goroutine; Close or Error is
// called once when Serve returns.
type ServerHooks struct {
	Connection func(c *Conn)
	Error      func(err error)
	Close      func()
}

type onceCloseListener struct {
	net.Listener
	once     sync.Once
	closeErr error
}

func (oc *onceCloseListener) Close() error {
	oc.once.Do(oc.close)
	return oc.closeErr
}

func (oc *onceCloseListener) close() { oc.closeErr = oc.Listener.Close() }

// Server over tcp
type Server struct {
	opts  ServerOptions
	hooks event.Registry[ServerHooks]

	mu         sync.Mutex
	listeners  map[net.Listener]struct{}
	activeConn map[*Conn]struct{}

	inShutdown atomicBool // true when server is in shutdown
	onShutdown []func()
	doneChan   chan struct{}
}

// ErrServerClosed means server has been closed
var ErrServerClosed = errors.New("rxnet/tcp: Server closed")

// Attach registers hooks and returns a func detaching them.
// The detach func is idempotent.
func (srv *Server) Attach(h ServerHooks) (detach func()) {
	return srv.hooks.Attach(h)
}

// Listen binds the listening socket. The listener is tracked from here
// on, so CloseListeners closes it even before Serve runs.
func (srv *Server) Listen() (net.Listener, error) {
	if srv.shuttingDown() {
		return nil, ErrServerClosed
	}

	l, err := srv.opts.listenConfig.Listen(context.Background(), srv.opts.network, srv.opts.addr)
	if err != nil {
		return nil, err
	}
	ol := &onceCloseListener{Listener: l}
	if !srv.trackListener(ol, true) {
		ol.Close()
		return nil, ErrServerClosed
	}

	srv.opts.logger.Info("rxnet/tcp: serve", "addr", l.Addr().String())
	if f := srv.opts.listeningFunc; f != nil {
		f(l.Addr())
	}
	return ol, nil
}

// ListenAndServe binds and serves until the listener is closed.
func (srv *Server) ListenAndServe() error {
	l, err := srv.Listen()
	if err != nil {
		return err
	}
	return srv.Serve(l)
}

// Serve accepts connections on l and reports each of them to the
// attached Connection hooks. It returns ErrServerClosed, after calling
// the Close hooks, once l is closed through the Server; any other
// accept failure is returned after calling the Error hooks.
func (srv *Server) Serve(l net.Listener) (err error) {
	ol, ok := l.(*onceCloseListener)
	if !ok {
		ol = &onceCloseListener{Listener: l}
		if !srv.trackListener(ol, true) {
			ol.Close()
			return ErrServerClosed
		}
	}

	defer func() {
		if errors.Is(err, ErrServerClosed) {
			srv.emitClose()
		} else {
			srv.emitError(err)
		}
	}()
	defer srv.trackListener(ol, false)
	defer ol.Close()

	var tempDelay time.Duration // how long to sleep on accept failure

	for {
		rw, err := ol.Accept()
		if err != nil {
			select {
			case <-srv.getDoneChan():
				return ErrServerClosed
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				srv.opts.logger.Warn("rxnet/tcp: accept error; retrying",
					"err", err, "delay", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0

		if err := setKeepAlive(rw, srv.opts.keepAlivePeriod, srv.opts.keepAliveCount); err != nil {
			srv.opts.logger.Warn("rxnet/tcp: set keep-alive", "remote", rw.RemoteAddr().String(), "err", err)
		}

		c := newConn(rw, srv.opts.chunkSize, srv.onConnState)
		srv.emitConnection(c)
	}
}

// emitConnection hands c to the Connection hooks, or closes it if
// there are none.
func (srv *Server) emitConnection(c *Conn) {
	handled := false
	for _, h := range srv.hooks.Snapshot() {
		if h.Connection != nil {
			h.Connection(c)
			handled = true
		}
	}
	if !handled {
		srv.opts.logger.Debug("rxnet/tcp: no connection hook; closing", "conn", c.String())
		c.Close()
	}
}

func (srv *Server) emitError(err error) {
	for _, h := range srv.hooks.Snapshot() {
		if h.Error != nil {
			h.Error(err)
		}
	}
}

func (srv *Server) emitClose() {
	for _, h := range srv.hooks.Snapshot() {
		if h.Close != nil {
			h.Close()
		}
	}
}

func (srv *Server) onConnState(c *Conn, state ConnState) {
	switch state {
	case StateNew:
		srv.trackConn(c, true)
	case StateClosed:
		srv.trackConn(c, false)
	}
}

func (srv *Server) shuttingDown() bool {
	return srv.inShutdown.isSet()
}

// RegisterOnShutdown registers a func to call on Shutdown
func (srv *Server) RegisterOnShutdown(f func()) {
	srv.mu.Lock()
	srv.onShutdown = append(srv.onShutdown, f)
	srv.mu.Unlock()
}

// CloseListeners stops accepting. Open connections are left alone
// and the server may listen again.
func (srv *Server) CloseListeners() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.closeListenersLocked()
}

// Close closes the listeners and all open connections of server
func (srv *Server) Close() error {
	srv.inShutdown.setTrue()
	srv.mu.Lock()
	srv.closeDoneChanLocked()
	err := srv.closeListenersLocked()
	conns := make([]*Conn, 0, len(srv.activeConn))
	for c := range srv.activeConn {
		conns = append(conns, c)
		delete(srv.activeConn, c)
	}
	srv.mu.Unlock()

	// Closing untracks through onConnState, which takes srv.mu.
	for _, c := range conns {
		c.Close()
	}
	return err
}

// Shutdown closes the listeners, then waits for open connections to end
// on their own or for ctx to be done.
func (srv *Server) Shutdown(ctx context.Context) error {
	srv.inShutdown.setTrue()

	srv.mu.Lock()
	lnerr := srv.closeListenersLocked()
	srv.closeDoneChanLocked()
	for _, f := range srv.onShutdown {
		go f()
	}
	srv.mu.Unlock()

	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()
	for {
		if srv.numConns() == 0 && srv.numListeners() == 0 {
			return lnerr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (srv *Server) closeListenersLocked() error {
	var err error
	for ln := range srv.listeners {
		if cerr := ln.Close(); cerr != nil && err == nil {
			err = cerr
		}
		delete(srv.listeners, ln)
	}
	return err
}

func (srv *Server) closeDoneChanLocked() {
	ch := srv.getDoneChanLocked()
	select {
	case <-ch:
		// Already closed. Don't close again.
	default:
		// Safe to close here. We're the only closer, guarded
		// by srv.mu.
		close(ch)
	}
}

func (srv *Server) getDoneChan() <-chan struct{} {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.getDoneChanLocked()
}

func (srv *Server) getDoneChanLocked() chan struct{} {
	if srv.doneChan == nil {
		srv.doneChan = make(chan struct{})
	}
	return srv.doneChan
}

func (srv *Server) numConns() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return len(srv.activeConn)
}

func (srv *Server) numListeners() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return len(srv.listeners)
}

func (srv *Server) trackListener(ln net.Listener, add bool) bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.listeners == nil {
		srv.listeners = make(map[net.Listener]struct{})
	}
	if add {
		if srv.shuttingDown() {
			return false
		}
		srv.listeners[ln] = struct{}{}
	} else {
		delete(srv.listeners, ln)
	}
	return true
}

func (srv *Server) trackConn(c *Conn, add bool) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.activeConn == nil {
		srv.activeConn = make(map[*Conn]struct{})
	}
	if add {
		srv.activeConn[c] = struct{}{}
	} else {
		delete(srv.activeConn, c)
	}
}

// NewServer create a new tcp server
func NewServer(opts ...ServerOption) *Server {
	opt := newServerOptions(opts...)

	return &Server{
		opts: *opt,
	}
}
