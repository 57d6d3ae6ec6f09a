package tcp

import (
	"log/slog"
	"net"
	"time"
)

// ServerOptions is server options
type ServerOptions struct {
	network         string
	addr            string
	listenConfig    net.ListenConfig
	chunkSize       int
	keepAlivePeriod time.Duration
	keepAliveCount  int

	logger        *slog.Logger
	listeningFunc func(net.Addr)
}

// ServerOption is option setter for server
type ServerOption func(opts *ServerOptions)

// default server options
var (
	DefaultNetwork       = "tcp"
	DefaultListenAddress = ":"
)

func newServerOptions(opts ...ServerOption) *ServerOptions {
	opt := &ServerOptions{}
	for _, o := range opts {
		o(opt)
	}

	if opt.network == "" {
		opt.network = DefaultNetwork
	}
	if opt.addr == "" {
		opt.addr = DefaultListenAddress
	}
	if opt.logger == nil {
		opt.logger = defaultLogger()
	}

	return opt
}

// WithListenAddress sets server listen address opt
func WithListenAddress(addr string) ServerOption {
	return func(opts *ServerOptions) {
		opts.addr = addr
	}
}

// WithNetwork sets the listen network: "tcp", "tcp4" or "tcp6".
func WithNetwork(network string) ServerOption {
	return func(opts *ServerOptions) {
		opts.network = network
	}
}

// WithListenConfig sets the net.ListenConfig used to bind, for socket
// options that have no dedicated option.
func WithListenConfig(lc net.ListenConfig) ServerOption {
	return func(opts *ServerOptions) {
		opts.listenConfig = lc
	}
}

// WithChunkSize sets the read size of accepted connections.
func WithChunkSize(n int) ServerOption {
	return func(opts *ServerOptions) {
		opts.chunkSize = n
	}
}

// WithKeepAlive enables keep-alive probes on accepted connections.
// A count of zero keeps the system default.
func WithKeepAlive(period time.Duration, count int) ServerOption {
	return func(opts *ServerOptions) {
		opts.keepAlivePeriod = period
		opts.keepAliveCount = count
	}
}

// WithLogger sets the server logger
func WithLogger(l *slog.Logger) ServerOption {
	return func(opts *ServerOptions) {
		opts.logger = l
	}
}

// WithListeningFunc sets a func called with the bound address once the
// server listens.
func WithListeningFunc(f func(net.Addr)) ServerOption {
	return func(opts *ServerOptions) {
		opts.listeningFunc = f
	}
}
