// Package rxserver exposes a TCP server as an observable of connections.
//
// [Listen] returns a shared outer observable with one item per accepted
// connection. Each item is an inner observable of [Connection] records
// for that connection: a handle-only record first, then one record per
// received chunk, then completion when the peer closes or an error when
// the connection fails.
//
// Outer and inner lifecycles are only coupled at accept time.
// Unsubscribing the last consumer of the outer observable stops the
// listener but leaves open connections, and their inner observables,
// running. Flattening the outer observable with [rx.MergeAll] makes a
// single connection's error terminate the merged stream, which then
// looks like a server failure unless the error is inspected.
package rxserver

import (
	"net"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tutils/rxnet/rx"
	"github.com/tutils/rxnet/tcp"
)

// Connection is one record of a connection's inner observable.
// Data is nil for the handle-only record emitted first.
type Connection struct {
	ID   uuid.UUID
	Conn *tcp.Conn
	Data []byte
}

// IsNew reports whether c is the handle-only record of a new connection.
func (c Connection) IsNew() bool {
	return c.Data == nil
}

// Listen returns the shared observable of the connections accepted by
// a tcp.Server configured with opts.
//
// The first subscriber binds the listening socket; a bind failure errors
// the observable right away. Later subscribers share the same listener.
// When the last one unsubscribes the listener is closed; the next
// subscriber binds a new one. A connection accepted while the last
// subscriber leaves is closed. A listener failure closes every connection
// still open, which completes their inner observables, and then errors
// the outer observable.
func Listen(opts ...tcp.ServerOption) rx.Observable[rx.Observable[Connection]] {
	return listen(opts, (*tcp.Server).Listen)
}

func listen(
	opts []tcp.ServerOption,
	bind func(*tcp.Server) (net.Listener, error),
) rx.Observable[rx.Observable[Connection]] {
	return rx.Share(rx.Create(func(o rx.Observer[rx.Observable[Connection]]) rx.TeardownFunc {
		srv := tcp.NewServer(opts...)
		var stopped atomic.Bool
		detach := srv.Attach(tcp.ServerHooks{
			Connection: func(c *tcp.Conn) {
				if stopped.Load() {
					// Accepted while this activation was torn down.
					c.Close()
					return
				}
				o.OnNext(Records(c))
			},
			Error: func(err error) {
				srv.Close()
				o.OnError(err)
			},
			Close: o.OnComplete,
		})

		l, err := bind(srv)
		if err != nil {
			o.OnError(err)
			return rx.TeardownFunc(detach)
		}
		go srv.Serve(l)

		return func() {
			stopped.Store(true)
			detach()
			srv.CloseListeners()
		}
	}))
}

// Records returns the inner observable of c.
//
// Every subscriber first receives the handle-only record, then the data
// records received while it is subscribed. Reading from c starts with
// the first subscriber and the data records are shared among all of them.
func Records(c *tcp.Conn) rx.Observable[Connection] {
	id := c.ID()
	data := rx.Map(rx.FromSource[[]byte](c), func(b []byte) Connection {
		return Connection{ID: id, Conn: c, Data: b}
	})
	return rx.StartWith(data, Connection{ID: id, Conn: c})
}
