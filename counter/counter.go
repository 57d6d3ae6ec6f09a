// Package counter defines cumulative byte counters.
package counter

// Counter is a cumulative metric
type Counter interface {
	Value() int64
	RatePerSec() int64

	Add(n int64)
}
