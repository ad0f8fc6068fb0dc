// Package locks provides per-workflow mutual exclusion for reconciliation.
//
// Webhook deliveries and poll imports may target the same workflow
// concurrently; the registry serializes the read-modify-write of one
// workflow's fields without ever blocking updates for different workflows.
// It is an injected service rather than a process-wide global so tests get
// isolated instances.
package locks

import "sync"

type entry struct {
	mu      sync.Mutex
	waiters int
}

// Registry maps workflow ids to lock entries. Entries are created on demand
// and removed once the last waiter releases, so the map does not grow with
// the total number of workflows ever touched.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// NewRegistry creates an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]*entry)}
}

// Acquire blocks until the caller holds the exclusive lock for key and
// returns the release function. Callers must release on every exit path,
// typically via defer, so a failed operation never leaves the workflow
// permanently blocked.
func (r *Registry) Acquire(key int64) (release func()) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	e.waiters++
	r.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			r.mu.Lock()
			e.waiters--
			if e.waiters == 0 {
				delete(r.entries, key)
			}
			r.mu.Unlock()
		})
	}
}

// Len returns the number of live entries. Used by tests to verify entries
// are reclaimed.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
