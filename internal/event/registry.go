// Package event keeps the hook sets attached to an event source.
package event

import "sync"

// Registry holds attached hook sets of type H in attach order.
// The zero value is ready to use.
type Registry[H any] struct {
	mu     sync.Mutex
	nextID uint64
	hooks  []entry[H]
}

type entry[H any] struct {
	id uint64
	h  H
}

// Attach adds h and returns a func that removes it again.
// The returned func is idempotent.
func (r *Registry[H]) Attach(h H) (detach func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.hooks = append(r.hooks, entry[H]{id: id, h: h})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *Registry[H]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.hooks {
		if e.id == id {
			// Copy so snapshots handed out earlier stay intact.
			hooks := make([]entry[H], 0, len(r.hooks)-1)
			hooks = append(hooks, r.hooks[:i]...)
			r.hooks = append(hooks, r.hooks[i+1:]...)
			return
		}
	}
}

// Snapshot returns the hook sets attached right now.
// Callers invoke them without holding any lock.
func (r *Registry[H]) Snapshot() []H {
	r.mu.Lock()
	defer r.mu.Unlock()
	hs := make([]H, len(r.hooks))
	for i, e := range r.hooks {
		hs[i] = e.h
	}
	return hs
}

// Len returns the number of attached hook sets.
func (r *Registry[H]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}
