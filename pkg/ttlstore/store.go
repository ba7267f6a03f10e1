// Package ttlstore provides a process-local map from string keys to typed
// values with per-entry expiration.
//
// Expired entries are evicted lazily by Get/Has and eagerly by Sweep, which
// the cleanup scheduler runs on an interval. All operations are safe for
// concurrent use.
package ttlstore

import (
	"sync"
	"time"
)

// DefaultTTL is applied by Set when no explicit TTL is given.
const DefaultTTL = time.Hour

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Store maps keys to values of type V with per-entry absolute expiry.
type Store[V any] struct {
	mu         sync.RWMutex
	entries    map[string]entry[V]
	defaultTTL time.Duration

	// now is swappable for tests
	now func() time.Time
}

// Option configures a Store.
type Option[V any] func(*Store[V])

// WithDefaultTTL overrides the TTL applied by Set.
func WithDefaultTTL[V any](ttl time.Duration) Option[V] {
	return func(s *Store[V]) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// New creates an empty store.
func New[V any](opts ...Option[V]) *Store[V] {
	s := &Store[V]{
		entries:    make(map[string]entry[V]),
		defaultTTL: DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set stores value under key with the store's default TTL.
func (s *Store[V]) Set(key string, value V) {
	s.SetWithTTL(key, value, s.defaultTTL)
}

// SetWithTTL stores value under key, expiring after ttl.
// A non-positive ttl falls back to the default.
func (s *Store[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	s.entries[key] = entry[V]{
		value:     value,
		expiresAt: s.now().Add(ttl),
	}
	s.mu.Unlock()
}

// Get returns the value for key if present and unexpired.
// An expired entry encountered here is deleted before returning absent.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}

	if s.now().After(e.expiresAt) {
		s.deleteExpired(key)
		var zero V
		return zero, false
	}

	return e.value, true
}

// Has reports whether key is present and unexpired.
// Like Get, it purges an expired entry it encounters.
func (s *Store[V]) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Delete removes key. Returns true if an entry was present (expired or not).
func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	_, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	return ok
}

// UpdateTTL extends (or shortens) the expiry of an existing unexpired entry.
// Returns false if the key is absent or already expired.
func (s *Store[V]) UpdateTTL(key string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return false
	}

	e.expiresAt = s.now().Add(ttl)
	s.entries[key] = e
	return true
}

// Keys returns the keys of all unexpired entries. Order is unspecified.
func (s *Store[V]) Keys() []string {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// Size returns the number of unexpired entries.
func (s *Store[V]) Size() int {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		if now.After(e.expiresAt) {
			continue
		}
		n++
	}
	return n
}

// Clear removes all entries.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]entry[V])
	s.mu.Unlock()
}

// Sweep removes every expired entry and returns how many were deleted.
func (s *Store[V]) Sweep() int {
	return s.SweepFunc(nil)
}

// SweepFunc removes every expired entry, invoking fn (if non-nil) with each
// evicted key and value before removal. Returns the eviction count.
//
// fn runs under the store's write lock and must not call back into the store.
func (s *Store[V]) SweepFunc(fn func(key string, value V)) int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for k, e := range s.entries {
		if !now.After(e.expiresAt) {
			continue
		}
		if fn != nil {
			fn(k, e.value)
		}
		delete(s.entries, k)
		evicted++
	}
	return evicted
}

// deleteExpired removes key only if it is still expired at the time the
// write lock is taken, so a concurrent Set is not lost.
func (s *Store[V]) deleteExpired(key string) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok && s.now().After(e.expiresAt) {
		delete(s.entries, key)
	}
	s.mu.Unlock()
}
