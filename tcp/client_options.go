package tcp

import (
	"log/slog"
	"time"
)

// ClientOptions is client options
type ClientOptions struct {
	network         string
	addr            string
	dialTimeout     time.Duration
	chunkSize       int
	keepAlivePeriod time.Duration
	keepAliveCount  int

	logger *slog.Logger
}

// ClientOption is option setter for client
type ClientOption func(opts *ClientOptions)

// default client options
var (
	DefaultConnectAddress = "127.0.0.1:1234"
	DefaultDialTimeout    = 10 * time.Second
)

func newClientOptions(opts ...ClientOption) *ClientOptions {
	opt := &ClientOptions{}
	for _, o := range opts {
		o(opt)
	}

	if opt.network == "" {
		opt.network = DefaultNetwork
	}
	if opt.addr == "" {
		opt.addr = DefaultConnectAddress
	}
	if opt.dialTimeout <= 0 {
		opt.dialTimeout = DefaultDialTimeout
	}
	if opt.logger == nil {
		opt.logger = defaultLogger()
	}

	return opt
}

// WithConnectAddress sets client connect address opt
func WithConnectAddress(addr string) ClientOption {
	return func(opts *ClientOptions) {
		opts.addr = addr
	}
}

// WithClientNetwork sets the dial network: "tcp", "tcp4" or "tcp6".
func WithClientNetwork(network string) ClientOption {
	return func(opts *ClientOptions) {
		opts.network = network
	}
}

// WithDialTimeout bounds each dial
func WithDialTimeout(d time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.dialTimeout = d
	}
}

// WithClientChunkSize sets the read size of dialed connections.
func WithClientChunkSize(n int) ClientOption {
	return func(opts *ClientOptions) {
		opts.chunkSize = n
	}
}

// WithClientKeepAlive enables keep-alive probes on dialed connections.
func WithClientKeepAlive(period time.Duration, count int) ClientOption {
	return func(opts *ClientOptions) {
		opts.keepAlivePeriod = period
		opts.keepAliveCount = count
	}
}

// WithClientLogger sets the client logger
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(opts *ClientOptions) {
		opts.logger = l
	}
}
