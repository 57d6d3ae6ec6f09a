// Package rx is a small push-based reactive runtime.
//
// An [Observable] delivers items to an [Observer] from the moment
// Subscribe is called until the returned [Subscription] is unsubscribed
// or the sequence terminates with exactly one of OnError or OnComplete.
//
// Observables built with [Create] are lazy and cold: every subscription
// runs the subscribe function again. [Share] turns an observable into a
// reference-counted multicast one, and [FromSource] adapts a callback
// driven [Source] (a network connection, for instance) into a shared
// observable.
//
// Notifications are delivered synchronously on the goroutine that
// produced them. An observer must not block forever inside OnNext,
// since that stalls the producer.
package rx
