// Package source turns blocking readers into push-based rx sources.
package source

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"

	"github.com/tutils/rxnet/internal/event"
	"github.com/tutils/rxnet/rx"
)

var _ rx.Source[[]byte] = (*Reader)(nil)

// DefaultChunkSize is the read buffer size of a Reader.
const DefaultChunkSize = 32 << 10

// Reader reads chunks from an io.ReadCloser on its own goroutine and
// pushes them to the attached hooks.
//
// A Reader starts paused; the read goroutine is started by the first
// Resume. io.EOF, and any read error after Close, end the stream; any
// other read error fails it. The underlying reader is closed once the
// stream has ended or failed.
type Reader struct {
	rc   io.ReadCloser
	opts Options

	hooks event.Registry[rx.SourceHooks[[]byte]]

	mu      sync.Mutex
	cond    *sync.Cond
	paused  bool
	started bool
	closing bool
	done    bool
	err     error // terminal error, nil for end of stream
	doneCh  chan struct{}
}

// NewReader returns a paused Reader over rc.
func NewReader(rc io.ReadCloser, opts ...Option) *Reader {
	r := &Reader{
		rc:     rc,
		opts:   *newOptions(opts...),
		paused: true,
		doneCh: make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Attach implements rx.Source.
func (r *Reader) Attach(h rx.SourceHooks[[]byte]) (detach func()) {
	r.mu.Lock()
	if !r.done {
		detach = r.hooks.Attach(h)
		r.mu.Unlock()
		return detach
	}
	err := r.err
	r.mu.Unlock()

	deliverTerminal(h, err)
	return func() {}
}

// Pause implements rx.Source.
func (r *Reader) Pause() {
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
}

// Resume implements rx.Source.
func (r *Reader) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = false
	r.cond.Broadcast()
	if !r.started && !r.done {
		r.started = true
		go r.readLoop()
	}
}

// Close closes the underlying reader. A running read loop observes
// the close as end of stream; a Reader that was never resumed ends
// right away.
func (r *Reader) Close() error {
	r.mu.Lock()
	r.closing = true
	r.cond.Broadcast()
	idle := !r.started && !r.done
	r.started = true
	r.mu.Unlock()
	if idle {
		return r.finish(nil)
	}
	return r.rc.Close()
}

// Done is closed once the stream has ended or failed.
func (r *Reader) Done() <-chan struct{} {
	return r.doneCh
}

// Err returns the error that failed the stream, or nil.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// waitResumed blocks while paused and reports whether reading should go on.
func (r *Reader) waitResumed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.paused && !r.closing {
		r.cond.Wait()
	}
	return !r.closing
}

func (r *Reader) readLoop() {
	buf := make([]byte, r.opts.chunkSize)
	for {
		if !r.waitResumed() {
			r.finish(nil)
			return
		}
		n, err := r.rc.Read(buf)
		if n > 0 {
			if !r.waitResumed() {
				r.finish(nil)
				return
			}
			if r.opts.readHook != nil {
				r.opts.readHook(n)
			}
			// Subscribers may keep the chunk.
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			for _, h := range r.hooks.Snapshot() {
				if h.Data != nil {
					h.Data(chunk)
				}
			}
		}
		if err != nil {
			r.finish(r.classify(err))
			return
		}
	}
}

func (r *Reader) classify(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closing {
		return nil
	}
	return err
}

func (r *Reader) finish(err error) error {
	r.mu.Lock()
	r.done = true
	r.err = err
	r.mu.Unlock()

	cerr := r.rc.Close()
	if r.opts.closeHook != nil {
		r.opts.closeHook(err)
	}
	close(r.doneCh)

	for _, h := range r.hooks.Snapshot() {
		deliverTerminal(h, err)
	}
	return cerr
}

func deliverTerminal(h rx.SourceHooks[[]byte], err error) {
	if err != nil {
		if h.Error != nil {
			h.Error(err)
		}
		return
	}
	if h.End != nil {
		h.End()
	}
}
