package rx

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Observer receives the notifications of an Observable.
type Observer[T any] interface {
	OnNext(T)
	OnError(error)
	OnComplete()
}

// Subscription is the handle of an active subscription.
type Subscription interface {
	// Unsubscribe stops delivery and runs the teardown synchronously.
	// Calling it more than once has no further effect.
	Unsubscribe()

	// Closed reports whether the subscription was unsubscribed or
	// its sequence has terminated.
	Closed() bool
}

// Observable is a lazy sequence of T.
type Observable[T any] interface {
	Subscribe(o Observer[T]) Subscription
}

// TeardownFunc releases what an OnSubscribeFunc acquired.
type TeardownFunc func()

// OnSubscribeFunc starts producing for one subscriber and returns its teardown.
// It may deliver notifications synchronously before returning.
type OnSubscribeFunc[T any] func(o Observer[T]) TeardownFunc

// ObserverFuncs adapts plain funcs to an Observer.
// Nil Next and Complete funcs ignore the notification;
// a nil Error func panics with an *UnhandledError.
type ObserverFuncs[T any] struct {
	Next     func(T)
	Error    func(error)
	Complete func()
}

func (f ObserverFuncs[T]) OnNext(v T) {
	if f.Next != nil {
		f.Next(v)
	}
}

func (f ObserverFuncs[T]) OnError(err error) {
	if f.Error == nil {
		panic(&UnhandledError{Err: err})
	}
	f.Error(err)
}

func (f ObserverFuncs[T]) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}

// UnhandledError is the panic value raised when an error reaches
// an ObserverFuncs without an Error func.
type UnhandledError struct {
	Err error
}

func (e *UnhandledError) Error() string {
	return fmt.Sprintf("rx: unhandled error: %v", e.Err)
}

func (e *UnhandledError) Unwrap() error { return e.Err }

// Create returns a cold Observable that calls f once per subscription.
//
// The Observer handed to f drops anything after a terminal notification
// or after Unsubscribe, delivers at most one terminal notification,
// and serializes notifications. A notification raised while another is
// being delivered is queued rather than blocking, so an observer may
// cause further notifications, including the terminal one, from inside
// its own OnNext.
// The teardown returned by f runs exactly once, on completion,
// on error or on Unsubscribe, whichever happens first.
func Create[T any](f OnSubscribeFunc[T]) Observable[T] {
	return &createObservable[T]{subscribe: f}
}

type createObservable[T any] struct {
	subscribe OnSubscribeFunc[T]
}

func (c *createObservable[T]) Subscribe(o Observer[T]) Subscription {
	s := newSubscriber(o)
	s.setTeardown(c.subscribe(s))
	return s
}

// subscriber is the safe Observer/Subscription pair behind every subscription.
//
// Notifications are delivered by one goroutine at a time. A notification
// raised while another is being delivered, from a different goroutine or
// from inside dst itself, is queued and delivered by the goroutine already
// delivering, in arrival order.
type subscriber[T any] struct {
	dst Observer[T]

	stopped   atomic.Bool // terminal accepted or unsubscribed
	cancelled atomic.Bool // unsubscribed

	mu         sync.Mutex
	delivering bool
	queue      []func()

	tmu      sync.Mutex
	closed   bool
	teardown TeardownFunc
}

func newSubscriber[T any](dst Observer[T]) *subscriber[T] {
	return &subscriber[T]{dst: dst}
}

func (s *subscriber[T]) OnNext(v T) {
	s.emit(false, func() { s.dst.OnNext(v) })
}

func (s *subscriber[T]) OnError(err error) {
	s.emit(true, func() {
		defer s.runTeardown()
		s.dst.OnError(err)
	})
}

func (s *subscriber[T]) OnComplete() {
	s.emit(true, func() {
		defer s.runTeardown()
		s.dst.OnComplete()
	})
}

func (s *subscriber[T]) emit(terminal bool, notify func()) {
	s.mu.Lock()
	if s.stopped.Load() {
		s.mu.Unlock()
		return
	}
	if terminal {
		s.stopped.Store(true)
	}
	s.queue = append(s.queue, notify)
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	s.drain()
}

// drain delivers queued notifications. Called with mu held; returns with
// mu released.
func (s *subscriber[T]) drain() {
	defer func() {
		if r := recover(); r != nil {
			// Leave the subscriber usable for the next deliverer.
			s.mu.Lock()
			s.delivering = false
			s.queue = nil
			s.mu.Unlock()
			panic(r)
		}
	}()
	for len(s.queue) > 0 {
		notify := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()
		if !s.cancelled.Load() {
			notify()
		}
		s.mu.Lock()
	}
	s.delivering = false
	s.queue = nil
	s.mu.Unlock()
}

func (s *subscriber[T]) Unsubscribe() {
	s.cancelled.Store(true)
	s.stopped.Store(true)
	s.runTeardown()
}

func (s *subscriber[T]) Closed() bool {
	return s.stopped.Load()
}

func (s *subscriber[T]) setTeardown(td TeardownFunc) {
	s.tmu.Lock()
	if s.closed {
		// Terminated or unsubscribed while subscribing.
		s.tmu.Unlock()
		if td != nil {
			td()
		}
		return
	}
	s.teardown = td
	s.tmu.Unlock()
}

func (s *subscriber[T]) runTeardown() {
	s.tmu.Lock()
	if s.closed {
		s.tmu.Unlock()
		return
	}
	s.closed = true
	td := s.teardown
	s.teardown = nil
	s.tmu.Unlock()
	if td != nil {
		td()
	}
}

// Of returns an Observable that emits vs and completes.
func Of[T any](vs ...T) Observable[T] {
	return Create(func(o Observer[T]) TeardownFunc {
		for _, v := range vs {
			o.OnNext(v)
		}
		o.OnComplete()
		return nil
	})
}

// Throw returns an Observable that fails with err on subscription.
func Throw[T any](err error) Observable[T] {
	return Create(func(o Observer[T]) TeardownFunc {
		o.OnError(err)
		return nil
	})
}

// Never returns an Observable that emits nothing and never terminates.
func Never[T any]() Observable[T] {
	return Create(func(Observer[T]) TeardownFunc { return nil })
}
