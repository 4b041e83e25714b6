// Package cache provides a keyed store whose entries expire a fixed duration
// after insertion. It backs the in-flight authorization-code cache and is the
// only shared mutable state in the authorization core.
package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Expiring is a write-TTL cache. Expired entries are never returned, neither
// by Get nor by Values; physical removal is best-effort (background sweep).
//
// Evict and FindOrCreate are atomic with respect to each other: two concurrent
// evictions of the same key see exactly one hit, and FindOrCreate runs its
// create callback at most once per matching entry window (check-lock-recheck).
type Expiring[K ~string, V any] struct {
	ttl time.Duration
	mu  sync.Mutex
	c   *gocache.Cache
}

// New builds a cache whose entries expire ttl after insertion.
func New[K ~string, V any](ttl time.Duration) *Expiring[K, V] {
	return &Expiring[K, V]{
		ttl: ttl,
		c:   gocache.New(ttl, time.Minute),
	}
}

// Set stores value under key with the cache's TTL, replacing any prior entry.
func (e *Expiring[K, V]) Set(key K, value V) {
	e.c.Set(string(key), value, e.ttl)
}

// Get returns the live entry for key.
func (e *Expiring[K, V]) Get(key K) (V, bool) {
	v, ok := e.c.Get(string(key))
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Has reports whether a live entry exists for key.
func (e *Expiring[K, V]) Has(key K) bool {
	_, ok := e.c.Get(string(key))
	return ok
}

// Evict removes and returns the entry for key. The lookup and removal happen
// under one lock: of N concurrent evictions for the same key, exactly one
// observes the value.
func (e *Expiring[K, V]) Evict(key K) (V, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.c.Get(string(key))
	if !ok {
		var zero V
		return zero, false
	}
	e.c.Delete(string(key))
	return v.(V), true
}

// EvictIf removes and returns the entry for key when pred accepts it. The
// lookup, the check and the removal happen under one lock; a rejected entry
// stays cached and is returned for inspection.
func (e *Expiring[K, V]) EvictIf(key K, pred func(V) bool) (v V, found, evicted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	raw, ok := e.c.Get(string(key))
	if !ok {
		return v, false, false
	}
	v = raw.(V)
	if !pred(v) {
		return v, true, false
	}
	e.c.Delete(string(key))
	return v, true, true
}

// Values returns all live entries, in no particular order.
func (e *Expiring[K, V]) Values() []V {
	items := e.c.Items()
	out := make([]V, 0, len(items))
	for _, it := range items {
		if it.Expired() {
			continue
		}
		out = append(out, it.Object.(V))
	}
	return out
}

// FindOrCreate returns the first live entry matching match. When none exists
// it takes the cache lock, re-checks match to close the race between two
// concurrent callers, then calls create and stores the result under the
// returned key.
func (e *Expiring[K, V]) FindOrCreate(match func(V) bool, create func() (K, V, error)) (V, error) {
	if v, ok := e.find(match); ok {
		return v, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Re-check: another caller may have created the entry while we waited.
	if v, ok := e.find(match); ok {
		return v, nil
	}

	key, value, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	e.c.Set(string(key), value, e.ttl)
	return value, nil
}

func (e *Expiring[K, V]) find(match func(V) bool) (V, bool) {
	for _, v := range e.Values() {
		if match(v) {
			return v, true
		}
	}
	var zero V
	return zero, false
}
