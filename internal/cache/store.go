// Package cache implements the client-authoritative cache layer: a keyed
// store with snapshot-based optimistic transactions and coarse invalidation
// driven by realtime change events.
package cache

import (
	"fmt"
	"sync"
)

// Well-known cache keys.
const (
	KeyProductList = "products:list"
)

// KeyProduct names the cache entry for one product.
func KeyProduct(productID string) string {
	return fmt.Sprintf("products:item:%s", productID)
}

// KeyUserVotes names the cached vote-membership set for one user.
func KeyUserVotes(userID string) string {
	return fmt.Sprintf("votes:user:%s", userID)
}

// KeyMyProducts names the cached dashboard list for one user.
func KeyMyProducts(userID string) string {
	return fmt.Sprintf("products:mine:%s", userID)
}

type entry struct {
	value interface{}
	stale bool
}

// Store is a string-keyed cache. Invalidation marks entries stale rather
// than deleting them: the last known value stays visible for display while
// any read-through path refetches. Callers that mutate a cached value
// optimistically must go through a Tx so the previous value can be restored
// on failure.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Get returns the last known value for key, stale or not.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached, ok := s.entries[key]
	return cached.value, ok
}

// GetFresh returns the value for key only when it has not been invalidated
// since it was set. Read-through callers use this to decide whether to
// refetch.
func (s *Store) GetFresh(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached, ok := s.entries[key]
	if !ok || cached.stale {
		return nil, false
	}
	return cached.value, true
}

// Set stores a fresh value under key.
func (s *Store) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value}
}

// Invalidate marks the given keys stale so the next read-through refetches.
func (s *Store) Invalidate(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		cached, ok := s.entries[key]
		if !ok {
			continue
		}
		cached.stale = true
		s.entries[key] = cached
	}
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// snapshot captures the current values (or absence) of the given keys. Taken
// under the store lock so a rollback restores a consistent view.
func (s *Store) snapshot(keys []string) map[string]snapshotEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	captured := make(map[string]snapshotEntry, len(keys))
	for _, key := range keys {
		cached, ok := s.entries[key]
		captured[key] = snapshotEntry{value: cached.value, present: ok}
	}
	return captured
}

func (s *Store) restore(captured map[string]snapshotEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, snap := range captured {
		if snap.present {
			s.entries[key] = entry{value: snap.value}
		} else {
			delete(s.entries, key)
		}
	}
}

type snapshotEntry struct {
	value   interface{}
	present bool
}
