package cache

import (
	"sync"
	"time"
)

// Clock abstracts wall-clock reads so expiry is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }

// Key scopes cached entries to a manager/park pair.
type Key struct {
	ManagerID string
	ParkID    string
}

type entry[V any] struct {
	value    V
	deadline time.Time
}

// TTL is a process-local cache with lazy expiry checked on read. It is never a
// source of truth: entries may be dropped at any time without correctness
// impact.
type TTL[V any] struct {
	mu      sync.Mutex
	clock   Clock
	entries map[Key]entry[V]
}

// NewTTL builds a cache around the provided clock. A nil clock falls back to
// the system clock.
func NewTTL[V any](clock Clock) *TTL[V] {
	if clock == nil {
		clock = SystemClock()
	}
	return &TTL[V]{
		clock:   clock,
		entries: make(map[Key]entry[V]),
	}
}

// Get returns the cached value when present and not past its deadline.
func (c *TTL[V]) Get(key Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(ent.deadline) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return ent.value, true
}

// Set stores the value until now+ttl. Non-positive TTLs are ignored.
func (c *TTL[V]) Set(key Key, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, deadline: c.clock.Now().Add(ttl)}
}

// Delete drops a single entry.
func (c *TTL[V]) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
