// Package wsfeed streams the connections of an rxserver observable to
// websocket clients as JSON events.
package wsfeed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tutils/rxnet"
	"github.com/tutils/rxnet/rx"
	"github.com/tutils/rxnet/rxserver"
)

// Event types.
const (
	EventOpen  = "open"
	EventData  = "data"
	EventEnd   = "end"
	EventError = "error"
	// EventServerError is sent once if the listening server fails.
	EventServerError = "server-error"
)

// Event is one JSON message of the feed. Data is base64 encoded on the wire.
type Event struct {
	Conn   string `json:"conn,omitempty"`
	Type   string `json:"type"`
	Remote string `json:"remote,omitempty"`
	Data   []byte `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

type addr struct {
	url *url.URL
}

func (a *addr) String() string {
	return a.url.String()
}

func (a *addr) host() string {
	return a.url.Host
}

func (a *addr) uri() string {
	return a.url.RequestURI()
}

func parseAddr(rawURL string) (*addr, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("rxnet/wsfeed: bad listen address %q: %w", rawURL, err)
	}
	return &addr{url: u}, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 << 10,
	WriteBufferSize: 4 << 10,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const writeTimeout = time.Second * 5

// writer sends each Write as one text message.
type writer struct {
	conn *websocket.Conn
}

func (w *writer) Write(p []byte) (n int, err error) {
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = w.conn.WriteMessage(websocket.TextMessage, p)
	return len(p), err
}

func newWriter(conn *websocket.Conn) *writer {
	return &writer{conn: conn}
}

// Server is an http.Handler publishing a connection stream over websocket.
// Every websocket client holds its own subscription to conns, so with a
// shared conns the TCP listener stays bound while at least one feed
// client is attached.
type Server struct {
	opts  ServerOptions
	conns rx.Observable[rx.Observable[rxserver.Connection]]
	srv   *http.Server
}

// NewServer returns a feed server for conns.
func NewServer(conns rx.Observable[rx.Observable[rxserver.Connection]], opts ...ServerOption) (*Server, error) {
	opt := newServerOptions(opts...)
	a, err := parseAddr(opt.addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:  *opt,
		conns: conns,
	}
	mux := http.NewServeMux()
	mux.Handle(a.uri(), s)
	s.srv = &http.Server{
		Addr:    a.host(),
		Handler: mux,
	}
	return s, nil
}

// ListenAndServe serves the feed on the configured address.
func (s *Server) ListenAndServe() error {
	s.opts.logger.Info("rxnet/wsfeed: serve", "addr", s.opts.addr)
	return s.srv.ListenAndServe()
}

// Close closes the http server and every feed client.
func (s *Server) Close() error {
	return s.srv.Close()
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	log := s.opts.logger.With("client", conn.RemoteAddr().String())
	log.Debug("rxnet/wsfeed: client attached")

	// Read settings stay on this goroutine, which runs readLoop.
	readTimeout := s.opts.readTimeout
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	enc := json.NewEncoder(rxnet.NewSyncWriter(newWriter(conn)))

	// The client answers the close frame, which ends readLoop.
	finish := func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
	}

	sub := rx.MergeAll(rx.Map(s.conns, Events)).Subscribe(rx.ObserverFuncs[Event]{
		Next: func(ev Event) {
			if err := enc.Encode(ev); err != nil {
				log.Debug("rxnet/wsfeed: write failed", "err", err)
				conn.Close()
			}
		},
		Error: func(err error) {
			enc.Encode(Event{Type: EventServerError, Error: err.Error()})
			finish()
		},
		Complete: finish,
	})

	done := make(chan struct{})
	go startPing(conn, s.opts.pingPeriod, done)

	readLoop(conn)

	close(done)
	sub.Unsubscribe()
	log.Debug("rxnet/wsfeed: client detached")
}

func readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func startPing(conn *websocket.Conn, pingPeriod time.Duration, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout))
		case <-done:
			return
		}
	}
}

// Events converts the records of one connection into feed events. A
// connection error becomes an error event and completes the sequence,
// so one failing connection never ends the feed.
func Events(inner rx.Observable[rxserver.Connection]) rx.Observable[Event] {
	return rx.Create(func(o rx.Observer[Event]) rx.TeardownFunc {
		var id string
		sub := inner.Subscribe(rx.ObserverFuncs[rxserver.Connection]{
			Next: func(c rxserver.Connection) {
				id = c.ID.String()
				if c.IsNew() {
					ev := Event{Conn: id, Type: EventOpen}
					if c.Conn != nil {
						ev.Remote = c.Conn.RemoteAddr().String()
					}
					o.OnNext(ev)
					return
				}
				o.OnNext(Event{Conn: id, Type: EventData, Data: c.Data})
			},
			Error: func(err error) {
				o.OnNext(Event{Conn: id, Type: EventError, Error: err.Error()})
				o.OnComplete()
			},
			Complete: func() {
				o.OnNext(Event{Conn: id, Type: EventEnd})
				o.OnComplete()
			},
		})
		return sub.Unsubscribe
	})
}
