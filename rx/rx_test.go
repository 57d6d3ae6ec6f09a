package rx_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tutils/rxnet/internal/event"
	"github.com/tutils/rxnet/rx"
)

// recorder is an Observer that keeps everything it is told.
type recorder[T any] struct {
	mu        sync.Mutex
	items     []T
	errs      []error
	completes int
}

func (r *recorder[T]) OnNext(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, v)
}

func (r *recorder[T]) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder[T]) OnComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes++
}

func (r *recorder[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.items...)
}

func (r *recorder[T]) terminals() (errs []error, completes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...), r.completes
}

// fakeSource is a Source driven by the test goroutine.
type fakeSource struct {
	hooks event.Registry[rx.SourceHooks[int]]

	mu      sync.Mutex
	paused  bool
	resumes int
}

func (s *fakeSource) Attach(h rx.SourceHooks[int]) func() { return s.hooks.Attach(h) }

func (s *fakeSource) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

func (s *fakeSource) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.resumes++
}

func (s *fakeSource) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *fakeSource) emit(vs ...int) {
	for _, v := range vs {
		for _, h := range s.hooks.Snapshot() {
			h.Data(v)
		}
	}
}

func (s *fakeSource) end() {
	for _, h := range s.hooks.Snapshot() {
		h.End()
	}
}

func (s *fakeSource) fail(err error) {
	for _, h := range s.hooks.Snapshot() {
		h.Error(err)
	}
}

func TestCreate_terminalExclusivity(t *testing.T) {
	t.Parallel()

	obs := rx.Create(func(o rx.Observer[int]) rx.TeardownFunc {
		o.OnNext(1)
		o.OnComplete()
		o.OnNext(2)
		o.OnError(errors.New("late"))
		o.OnComplete()
		return nil
	})

	var r recorder[int]
	sub := obs.Subscribe(&r)

	require.Equal(t, []int{1}, r.Items())
	errs, completes := r.terminals()
	require.Empty(t, errs)
	require.Equal(t, 1, completes)
	require.True(t, sub.Closed())
}

func TestCreate_teardownRunsOnceOnEveryPath(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		end  func(o rx.Observer[int], sub rx.Subscription)
	}{
		{name: "complete", end: func(o rx.Observer[int], _ rx.Subscription) { o.OnComplete() }},
		{name: "error", end: func(o rx.Observer[int], _ rx.Subscription) { o.OnError(errors.New("boom")) }},
		{name: "unsubscribe", end: func(_ rx.Observer[int], sub rx.Subscription) { sub.Unsubscribe() }},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var teardowns int
			var observer rx.Observer[int]
			obs := rx.Create(func(o rx.Observer[int]) rx.TeardownFunc {
				observer = o
				return func() { teardowns++ }
			})

			var r recorder[int]
			sub := obs.Subscribe(&r)
			require.Zero(t, teardowns)

			tc.end(observer, sub)
			sub.Unsubscribe()
			sub.Unsubscribe()
			observer.OnComplete()

			require.Equal(t, 1, teardowns)
		})
	}
}

func TestCreate_terminatedWhileSubscribingStillTearsDown(t *testing.T) {
	t.Parallel()

	var teardowns int
	obs := rx.Create(func(o rx.Observer[int]) rx.TeardownFunc {
		o.OnError(errors.New("listen failed"))
		return func() { teardowns++ }
	})

	var r recorder[int]
	obs.Subscribe(&r)

	errs, _ := r.terminals()
	require.Len(t, errs, 1)
	require.Equal(t, 1, teardowns)
}

func TestCreate_unsubscribeFromInsideOnNext(t *testing.T) {
	t.Parallel()

	var observer rx.Observer[int]
	obs := rx.Create(func(o rx.Observer[int]) rx.TeardownFunc {
		observer = o
		return nil
	})

	var got []int
	var sub rx.Subscription
	sub = obs.Subscribe(rx.ObserverFuncs[int]{
		Next: func(v int) {
			got = append(got, v)
			sub.Unsubscribe()
		},
		Error: func(err error) { t.Fatal(err) },
	})

	observer.OnNext(1)
	observer.OnNext(2)

	require.Equal(t, []int{1}, got)
}

func TestCreate_notificationsFromInsideOnNextAreQueued(t *testing.T) {
	t.Parallel()

	var observer rx.Observer[int]
	obs := rx.Create(func(o rx.Observer[int]) rx.TeardownFunc {
		observer = o
		return nil
	})

	var got []int
	completed := false
	obs.Subscribe(rx.ObserverFuncs[int]{
		Next: func(v int) {
			got = append(got, v)
			if v == 1 {
				observer.OnNext(2)
				observer.OnComplete()
				// Delivered after this call returns.
				require.Equal(t, []int{1}, got)
				require.False(t, completed)
			}
		},
		Error:    func(err error) { t.Fatal(err) },
		Complete: func() { completed = true },
	})

	observer.OnNext(1)

	require.Equal(t, []int{1, 2}, got)
	require.True(t, completed)
}

func TestObserverFuncs_nilErrorPanics(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	require.PanicsWithError(t, (&rx.UnhandledError{Err: boom}).Error(), func() {
		rx.Throw[int](boom).Subscribe(rx.ObserverFuncs[int]{})
	})
}

func TestShare_refCount(t *testing.T) {
	t.Parallel()

	var subscribes, teardowns int
	var observer rx.Observer[int]
	obs := rx.Share(rx.Create(func(o rx.Observer[int]) rx.TeardownFunc {
		subscribes++
		observer = o
		return func() { teardowns++ }
	}))

	var a, b recorder[int]
	subA := obs.Subscribe(&a)
	subB := obs.Subscribe(&b)
	require.Equal(t, 1, subscribes)

	observer.OnNext(1)

	subA.Unsubscribe()
	observer.OnNext(2)
	require.Zero(t, teardowns)

	subB.Unsubscribe()
	require.Equal(t, 1, teardowns)

	require.Equal(t, []int{1}, a.Items())
	require.Equal(t, []int{1, 2}, b.Items())
}

func TestShare_lateSubscriberGetsNoReplay(t *testing.T) {
	t.Parallel()

	var observer rx.Observer[int]
	obs := rx.Share(rx.Create(func(o rx.Observer[int]) rx.TeardownFunc {
		observer = o
		return nil
	}))

	var a, b recorder[int]
	obs.Subscribe(&a)
	observer.OnNext(1)
	obs.Subscribe(&b)
	observer.OnNext(2)

	require.Equal(t, []int{1, 2}, a.Items())
	require.Equal(t, []int{2}, b.Items())
}

func TestShare_terminalResetsActivation(t *testing.T) {
	t.Parallel()

	var subscribes int
	var observer rx.Observer[int]
	obs := rx.Share(rx.Create(func(o rx.Observer[int]) rx.TeardownFunc {
		subscribes++
		observer = o
		return nil
	}))

	var a, b recorder[int]
	obs.Subscribe(&a)
	obs.Subscribe(&b)
	observer.OnComplete()

	_, ca := a.terminals()
	_, cb := b.terminals()
	require.Equal(t, 1, ca)
	require.Equal(t, 1, cb)

	var c recorder[int]
	obs.Subscribe(&c)
	require.Equal(t, 2, subscribes)
	observer.OnNext(3)
	require.Equal(t, []int{3}, c.Items())
}

func TestShare_synchronousCompletionWhileConnecting(t *testing.T) {
	t.Parallel()

	obs := rx.Share(rx.Of(1, 2))

	var a recorder[int]
	sub := obs.Subscribe(&a)

	require.Equal(t, []int{1, 2}, a.Items())
	_, completes := a.terminals()
	require.Equal(t, 1, completes)
	require.True(t, sub.Closed())

	var b recorder[int]
	obs.Subscribe(&b)
	require.Equal(t, []int{1, 2}, b.Items())
}

func TestFromSource_pausedUntilFirstSubscriber(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	obs := rx.FromSource[int](src)
	require.True(t, src.isPaused())

	var r recorder[int]
	obs.Subscribe(&r)
	require.False(t, src.isPaused())
	require.Equal(t, 1, src.resumes)

	obs.Subscribe(&recorder[int]{})
	require.Equal(t, 1, src.resumes, "second subscriber must share the activation")
	require.Equal(t, 1, src.hooks.Len())
}

func TestFromSource_preservesOrder(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	obs := rx.FromSource[int](src)

	var r recorder[int]
	obs.Subscribe(&r)
	src.emit(1, 2, 3, 4, 5)
	src.end()

	require.Equal(t, []int{1, 2, 3, 4, 5}, r.Items())
	_, completes := r.terminals()
	require.Equal(t, 1, completes)
	require.Zero(t, src.hooks.Len(), "hooks must be detached after end")
}

func TestFromSource_errorReachesAllSubscribers(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	obs := rx.FromSource[int](src)

	var a, b recorder[int]
	obs.Subscribe(&a)
	obs.Subscribe(&b)

	boom := errors.New("connection reset")
	src.emit(7)
	src.fail(boom)
	src.emit(8)

	for _, r := range []*recorder[int]{&a, &b} {
		require.Equal(t, []int{7}, r.Items())
		errs, completes := r.terminals()
		require.Equal(t, []error{boom}, errs)
		require.Zero(t, completes)
	}
	require.Zero(t, src.hooks.Len())
}

func TestFromSource_lastUnsubscribeDetaches(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	obs := rx.FromSource[int](src)

	var a, b recorder[int]
	subA := obs.Subscribe(&a)
	subB := obs.Subscribe(&b)
	require.Equal(t, 1, src.hooks.Len())

	subA.Unsubscribe()
	src.emit(1)
	require.Equal(t, 1, src.hooks.Len())

	subB.Unsubscribe()
	subB.Unsubscribe()
	require.Zero(t, src.hooks.Len())

	src.emit(2)
	require.Empty(t, a.Items())
	require.Equal(t, []int{1}, b.Items())
}

func TestFromSource_resubscribeStartsFreshActivation(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	obs := rx.FromSource[int](src)

	var a recorder[int]
	obs.Subscribe(&a).Unsubscribe()
	src.emit(1)

	var b recorder[int]
	obs.Subscribe(&b)
	src.emit(2)

	require.Empty(t, a.Items())
	require.Equal(t, []int{2}, b.Items())
	require.Equal(t, 2, src.resumes)
}

func TestFromSource_endFromInsideOnNext(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	obs := rx.FromSource[int](src)

	var got []int
	completed := make(chan struct{})
	obs.Subscribe(rx.ObserverFuncs[int]{
		Next: func(v int) {
			got = append(got, v)
			// A synchronous source ending while its data is delivered.
			src.end()
		},
		Error:    func(err error) { t.Fatal(err) },
		Complete: func() { close(completed) },
	})

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		src.emit(1, 2)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked")
	}
	<-completed
	require.Equal(t, []int{1}, got)
	require.Zero(t, src.hooks.Len())
}

func TestMap(t *testing.T) {
	t.Parallel()

	var r recorder[string]
	rx.Map(rx.Of(1, 2), func(v int) string {
		return string(rune('a' + v - 1))
	}).Subscribe(&r)

	require.Equal(t, []string{"a", "b"}, r.Items())
}

func TestStartWith_perSubscriber(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	obs := rx.StartWith(rx.FromSource[int](src), 0)

	var a, b recorder[int]
	obs.Subscribe(&a)
	src.emit(1)
	obs.Subscribe(&b)
	src.emit(2)
	src.end()

	require.Equal(t, []int{0, 1, 2}, a.Items())
	require.Equal(t, []int{0, 2}, b.Items())
}

func TestMergeAll_completesAfterOuterAndInners(t *testing.T) {
	t.Parallel()

	inner := &fakeSource{}
	outer := rx.Of(rx.Of(1, 2), rx.FromSource[int](inner))

	var r recorder[int]
	rx.MergeAll(outer).Subscribe(&r)

	_, completes := r.terminals()
	require.Zero(t, completes, "the live inner is still open")

	inner.emit(3)
	inner.end()

	require.Equal(t, []int{1, 2, 3}, r.Items())
	_, completes = r.terminals()
	require.Equal(t, 1, completes)
}

func TestMergeAll_innerErrorTerminatesMerged(t *testing.T) {
	t.Parallel()

	healthy := &fakeSource{}
	failing := &fakeSource{}
	outerSrc := &fakeSource{}

	var outerTeardowns int
	outer := rx.Create(func(o rx.Observer[rx.Observable[int]]) rx.TeardownFunc {
		o.OnNext(rx.FromSource[int](healthy))
		o.OnNext(rx.FromSource[int](failing))
		detach := outerSrc.Attach(rx.SourceHooks[int]{})
		return func() {
			outerTeardowns++
			detach()
		}
	})

	var r recorder[int]
	rx.MergeAll(outer).Subscribe(&r)

	healthy.emit(1)
	boom := errors.New("peer reset")
	failing.fail(boom)
	healthy.emit(2)

	require.Equal(t, []int{1}, r.Items())
	errs, _ := r.terminals()
	require.Equal(t, []error{boom}, errs)
	require.Equal(t, 1, outerTeardowns)
	require.Zero(t, healthy.hooks.Len(), "other inners must be unsubscribed")
}

func TestChan(t *testing.T) {
	t.Parallel()

	items, errc, _ := rx.Chan(rx.Of(1, 2, 3), 4)

	var got []int
	for v := range items {
		got = append(got, v)
	}
	require.Equal(t, []int{1, 2, 3}, got)
	require.NoError(t, <-errc)
}

func TestChan_error(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	items, errc, sub := rx.Chan(rx.Throw[int](boom), 0)

	_, ok := <-items
	require.False(t, ok)
	require.ErrorIs(t, <-errc, boom)
	require.True(t, sub.Closed())
}

func TestChan_unsubscribeUnblocksProducer(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	items, _, sub := rx.Chan(rx.FromSource[int](src), 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		src.emit(1)
		src.emit(2)
	}()

	require.Equal(t, 1, <-items)
	sub.Unsubscribe()
	<-done
	require.Zero(t, src.hooks.Len())
}
