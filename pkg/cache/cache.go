// Package cache stores resolved controls per session so repeated
// resolutions skip the remote find.
//
// Any staleness detected at lookup time clears the whole cache. One stale
// element usually means the page re-rendered or navigated, which invalidates
// every handle at once.
package cache

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Key identifies a cache slot: parent identity, raw locator and control shape.
type Key uint64

// NewKey hashes the parts of a cache key.
func NewKey(parentID, rawLocator, shape string) Key {
	d := xxhash.New()
	_, _ = d.WriteString(parentID)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(rawLocator)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(shape)
	return Key(d.Sum64())
}

// Entry is something the cache can hold. Implementations must be pointer
// types; identity is compared with ==.
type Entry interface {
	CacheKey() Key
	IsStale(ctx context.Context) bool
}

// Outcome is the result of a cache check.
type Outcome int

const (
	Miss               Outcome = iota // Candidate stored
	Hit                               // Cached entry returned, candidate discarded
	StaleInvalidateAll                // Cached entry was stale; cache cleared, candidate stored
	Disabled                          // Caching off; nothing stored
)

// String returns the string representation of Outcome
func (o Outcome) String() string {
	switch o {
	case Miss:
		return "miss"
	case Hit:
		return "hit"
	case StaleInvalidateAll:
		return "stale_invalidate_all"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Cache maps keys to resolved entries. It is safe for concurrent use;
// liveness probes run under the lock, so one session's checks serialize.
type Cache[E Entry] struct {
	mu         sync.Mutex
	entries    map[Key]E
	enabled    bool
	generation uint64
	observers  []func(Outcome)
}

// New creates an empty cache.
func New[E Entry](enabled bool) *Cache[E] {
	return &Cache[E]{
		entries: make(map[Key]E),
		enabled: enabled,
	}
}

// OnOutcome registers a callback invoked with every outcome reported by
// Check, Lookup hits and staleness invalidations.
func (c *Cache[E]) OnOutcome(fn func(Outcome)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Check offers candidate to the cache.
//
//   - Disabled: candidate returned, not stored.
//   - StaleInvalidateAll: the entry at the key failed its liveness probe; the
//     cache is cleared and candidate stored.
//   - Hit: a live entry exists; it is returned and candidate discarded.
//   - Miss: candidate stored.
//
// Offering an entry that is already cached is a Hit without a probe.
func (c *Cache[E]) Check(ctx context.Context, candidate E) (E, Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return c.report(candidate, Disabled)
	}

	key := candidate.CacheKey()
	if existing, ok := c.entries[key]; ok {
		if any(existing) == any(candidate) {
			return c.report(existing, Hit)
		}
		if existing.IsStale(ctx) {
			c.clearLocked()
			c.entries[key] = candidate
			return c.report(candidate, StaleInvalidateAll)
		}
		return c.report(existing, Hit)
	}

	c.entries[key] = candidate
	return c.report(candidate, Miss)
}

// Lookup returns the live entry at key. A stale entry clears the cache.
// Misses are not reported; the Check that follows the find reports them.
func (c *Cache[E]) Lookup(ctx context.Context, key Key) (E, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero E
	if !c.enabled {
		return zero, false
	}
	existing, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if existing.IsStale(ctx) {
		c.clearLocked()
		c.report(zero, StaleInvalidateAll)
		return zero, false
	}
	c.report(existing, Hit)
	return existing, true
}

// Invalidate clears the cache after staleness was detected outside a
// lookup, and reports StaleInvalidateAll.
func (c *Cache[E]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	var zero E
	c.report(zero, StaleInvalidateAll)
}

// Clear drops every entry.
func (c *Cache[E]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Cache[E]) clearLocked() {
	c.entries = make(map[Key]E)
	c.generation++
}

// report notifies observers. Caller holds c.mu.
func (c *Cache[E]) report(e E, o Outcome) (E, Outcome) {
	for _, fn := range c.observers {
		fn(o)
	}
	return e, o
}

// Len returns the number of cached entries.
func (c *Cache[E]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Generation increments every time the cache is cleared. An entry resolved
// under an older generation must not be trusted without re-resolving.
func (c *Cache[E]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Enabled reports whether caching is on.
func (c *Cache[E]) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled turns caching on or off. Turning it off clears the cache.
func (c *Cache[E]) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled && !enabled {
		c.clearLocked()
	}
	c.enabled = enabled
}
