package wsfeed

import (
	"log/slog"
	"time"
)

// ServerOptions is feed server options
type ServerOptions struct {
	addr        string
	logger      *slog.Logger
	pingPeriod  time.Duration
	readTimeout time.Duration
}

// ServerOption is option setter for feed server
type ServerOption func(*ServerOptions)

// default server options
var (
	DefaultListenAddress = "ws://0.0.0.0:8080/stream"
	DefaultPingPeriod    = time.Second * 10
	DefaultReadTimeout   = time.Second * 15
)

func newServerOptions(opts ...ServerOption) *ServerOptions {
	opt := &ServerOptions{}
	for _, o := range opts {
		o(opt)
	}

	if opt.addr == "" {
		opt.addr = DefaultListenAddress
	}
	if opt.pingPeriod <= 0 {
		opt.pingPeriod = DefaultPingPeriod
	}
	if opt.readTimeout <= 0 {
		opt.readTimeout = DefaultReadTimeout
	}
	if opt.logger == nil {
		opt.logger = slog.Default()
	}

	return opt
}

// WithListenAddress sets the feed URL, e.g. ws://0.0.0.0:8080/stream.
func WithListenAddress(addr string) ServerOption {
	return func(opts *ServerOptions) {
		opts.addr = addr
	}
}

// WithLogger sets server logger opt
func WithLogger(l *slog.Logger) ServerOption {
	return func(opts *ServerOptions) {
		opts.logger = l
	}
}

// WithPing sets how often clients are pinged and how long a client may
// stay silent, pongs included, before it is dropped.
func WithPing(period, readTimeout time.Duration) ServerOption {
	return func(opts *ServerOptions) {
		opts.pingPeriod = period
		opts.readTimeout = readTimeout
	}
}
