package rx

import "sync"

// Chan subscribes to src and delivers its items on a channel with the
// given buffer size.
//
// On completion items is closed and errc is closed without a value; on
// error errc receives the error first. Items emitted synchronously
// during Subscribe (StartWith values, for instance) need room in the
// buffer, since nobody can be receiving yet.
//
// Unsubscribing stops delivery but leaves both channels open, so a
// consumer that unsubscribes must also stop receiving.
func Chan[T any](src Observable[T], size int) (items <-chan T, errc <-chan error, sub Subscription) {
	ch := make(chan T, size)
	ec := make(chan error, 1)
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	s := src.Subscribe(ObserverFuncs[T]{
		Next: func(v T) {
			select {
			case ch <- v:
			case <-done:
			}
		},
		Error: func(err error) {
			ec <- err
			close(ec)
			close(ch)
		},
		Complete: func() {
			close(ec)
			close(ch)
		},
	})
	return ch, ec, &chanSubscription{Subscription: s, stop: stop}
}

type chanSubscription struct {
	Subscription
	stop func()
}

func (s *chanSubscription) Unsubscribe() {
	s.stop()
	s.Subscription.Unsubscribe()
}
