package rx

// SourceHooks is the set of callbacks a Source invokes.
type SourceHooks[T any] struct {
	Data  func(T)
	Error func(error)
	End   func()
}

// Source is a push-based producer of T driven by its own I/O events.
//
// A Source emits zero or more items through the Data hooks and then
// exactly one End or Error. Hooks attached after the terminal signal
// receive that signal immediately. Pause stops delivery until Resume;
// both are idempotent.
type Source[T any] interface {
	// Attach registers hooks and returns a func detaching them.
	// The detach func is idempotent.
	Attach(h SourceHooks[T]) (detach func())
	Pause()
	Resume()
}

// FromSource adapts src into a shared Observable of its items.
//
// src is paused immediately and resumed only once the first subscriber's
// hooks are in place, so nothing emitted before that is lost. Items are
// broadcast to the subscribers present when they arrive; nothing is
// replayed. When the last subscriber leaves, or the source ends or
// fails, the hooks of that activation are detached exactly once.
// A later subscriber starts a new activation on whatever remains of src.
func FromSource[T any](src Source[T]) Observable[T] {
	src.Pause()
	return Share(Create(func(o Observer[T]) TeardownFunc {
		detach := src.Attach(SourceHooks[T]{
			Data:  o.OnNext,
			Error: o.OnError,
			End:   o.OnComplete,
		})
		src.Resume()
		return TeardownFunc(detach)
	}))
}
