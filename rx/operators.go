package rx

import "sync"

// Map applies f to every item of src.
func Map[T, R any](src Observable[T], f func(T) R) Observable[R] {
	return Create(func(o Observer[R]) TeardownFunc {
		sub := src.Subscribe(ObserverFuncs[T]{
			Next:     func(v T) { o.OnNext(f(v)) },
			Error:    o.OnError,
			Complete: o.OnComplete,
		})
		return sub.Unsubscribe
	})
}

// StartWith emits vs to each subscriber before subscribing it to src.
func StartWith[T any](src Observable[T], vs ...T) Observable[T] {
	return Create(func(o Observer[T]) TeardownFunc {
		for _, v := range vs {
			o.OnNext(v)
		}
		return src.Subscribe(o).Unsubscribe
	})
}

// MergeAll flattens a sequence of sequences into one, subscribing to
// each inner sequence as it arrives.
//
// The merged sequence completes once the outer and every inner sequence
// have completed. An error from the outer sequence or from any single
// inner sequence errors the merged sequence and unsubscribes everything
// else; callers that need per-inner isolation must handle inner errors
// before merging.
func MergeAll[T any](outer Observable[Observable[T]]) Observable[T] {
	return Create(func(o Observer[T]) TeardownFunc {
		m := &merger[T]{
			dst:    o,
			inners: make(map[uint64]Subscription),
		}
		m.setOuter(outer.Subscribe(ObserverFuncs[Observable[T]]{
			Next:     m.subscribeInner,
			Error:    o.OnError,
			Complete: m.outerComplete,
		}))
		return m.unsubscribeAll
	})
}

type merger[T any] struct {
	dst Observer[T]

	mu        sync.Mutex
	outer     Subscription
	inners    map[uint64]Subscription // nil value while subscribing
	nextID    uint64
	outerDone bool
	closed    bool
}

func (m *merger[T]) subscribeInner(in Observable[T]) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.nextID++
	id := m.nextID
	m.inners[id] = nil
	m.mu.Unlock()

	sub := in.Subscribe(ObserverFuncs[T]{
		Next:     m.dst.OnNext,
		Error:    m.dst.OnError,
		Complete: func() { m.innerComplete(id) },
	})

	m.mu.Lock()
	if _, ok := m.inners[id]; ok && !m.closed {
		m.inners[id] = sub
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	sub.Unsubscribe()
}

func (m *merger[T]) innerComplete(id uint64) {
	m.mu.Lock()
	delete(m.inners, id)
	done := m.outerDone && len(m.inners) == 0
	m.mu.Unlock()
	if done {
		m.dst.OnComplete()
	}
}

func (m *merger[T]) outerComplete() {
	m.mu.Lock()
	m.outerDone = true
	done := len(m.inners) == 0
	m.mu.Unlock()
	if done {
		m.dst.OnComplete()
	}
}

func (m *merger[T]) setOuter(sub Subscription) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	m.outer = sub
	m.mu.Unlock()
}

func (m *merger[T]) unsubscribeAll() {
	m.mu.Lock()
	m.closed = true
	subs := make([]Subscription, 0, len(m.inners)+1)
	if m.outer != nil {
		subs = append(subs, m.outer)
		m.outer = nil
	}
	for id, sub := range m.inners {
		if sub != nil {
			subs = append(subs, sub)
		}
		delete(m.inners, id)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
