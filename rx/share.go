package rx

import (
	"slices"
	"sync"
)

// Share returns a multicast Observable backed by src.
//
// The first subscriber connects a single subscription to src and every
// later subscriber joins it, receiving only the items emitted after it
// joined. When the last subscriber leaves, the upstream subscription is
// unsubscribed. A terminal notification reaches every current subscriber
// and resets the share, so the next subscriber connects afresh.
func Share[T any](src Observable[T]) Observable[T] {
	return &shared[T]{src: src}
}

type shared[T any] struct {
	src Observable[T]

	mu  sync.Mutex
	act *activation[T]
}

// activation is one upstream connection of a shared Observable.
type activation[T any] struct {
	observers []*subscriber[T]
	sub       Subscription
}

func (sh *shared[T]) Subscribe(o Observer[T]) Subscription {
	s := newSubscriber(o)

	sh.mu.Lock()
	act := sh.act
	connect := act == nil
	if connect {
		act = &activation[T]{}
		sh.act = act
	}
	act.observers = append(act.observers, s)
	sh.mu.Unlock()

	s.setTeardown(func() { sh.leave(act, s) })

	if connect {
		sub := sh.src.Subscribe(&relay[T]{sh: sh, act: act})

		sh.mu.Lock()
		if sh.act == act {
			act.sub = sub
			sh.mu.Unlock()
			return s
		}
		sh.mu.Unlock()
		// Terminated, or every subscriber left, while connecting.
		sub.Unsubscribe()
	}
	return s
}

func (sh *shared[T]) leave(act *activation[T], s *subscriber[T]) {
	sh.mu.Lock()
	if i := slices.Index(act.observers, s); i >= 0 {
		act.observers = slices.Delete(slices.Clone(act.observers), i, i+1)
	}
	if len(act.observers) > 0 || sh.act != act {
		sh.mu.Unlock()
		return
	}
	sh.act = nil
	sub := act.sub
	act.sub = nil
	sh.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// relay fans the upstream notifications of one activation out to its observers.
type relay[T any] struct {
	sh  *shared[T]
	act *activation[T]
}

func (r *relay[T]) OnNext(v T) {
	r.sh.mu.Lock()
	observers := r.act.observers
	r.sh.mu.Unlock()

	for _, s := range observers {
		s.OnNext(v)
	}
}

func (r *relay[T]) OnError(err error) {
	for _, s := range r.detach() {
		s.OnError(err)
	}
}

func (r *relay[T]) OnComplete() {
	for _, s := range r.detach() {
		s.OnComplete()
	}
}

func (r *relay[T]) detach() []*subscriber[T] {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()
	observers := r.act.observers
	r.act.observers = nil
	if r.sh.act == r.act {
		r.sh.act = nil
	}
	return observers
}
