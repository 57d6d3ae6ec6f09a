package source

// Options holds Reader options.
type Options struct {
	chunkSize int
	readHook  func(n int)
	closeHook func(err error)
}

// Option is option setter for Reader
type Option func(opts *Options)

func newOptions(opts ...Option) *Options {
	opt := &Options{}
	for _, o := range opts {
		o(opt)
	}

	if opt.chunkSize <= 0 {
		opt.chunkSize = DefaultChunkSize
	}

	return opt
}

// WithChunkSize sets the size of each read.
func WithChunkSize(n int) Option {
	return func(opts *Options) {
		opts.chunkSize = n
	}
}

// WithReadHook sets a func called with the size of every chunk before it is pushed.
func WithReadHook(f func(n int)) Option {
	return func(opts *Options) {
		opts.readHook = f
	}
}

// WithCloseHook sets a func called once the stream has ended (err == nil)
// or failed, before the terminal signal reaches the attached hooks.
func WithCloseHook(f func(err error)) Option {
	return func(opts *Options) {
		opts.closeHook = f
	}
}
