// Package rxnet adapts TCP servers and connections to reactive streams.
//
// The building blocks live in subpackages: rx is the observable runtime,
// source and tcp provide push-based byte sources, and rxserver exposes a
// listening server as an observable of per-connection observables.
package rxnet

import (
	"io"
	"sync"
)

// SyncWriter serializes writes to an underlying writer, so each Write
// reaches it whole even when callers write concurrently.
type SyncWriter struct {
	w  io.Writer
	mu sync.Mutex
}

func (w *SyncWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

// NewSyncWriter create a new SyncWriter
func NewSyncWriter(w io.Writer) io.Writer {
	return &SyncWriter{w: w}
}
