package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process LRU store with per-entry TTL and lazy
// expiration. It backs the cache when no remote store is configured and
// absorbs traffic when the remote store fails.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	maxSize int
}

type memoryEntry struct {
	value      []byte
	expiresAt  time.Time
	lastAccess time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a memory store holding at most maxSize entries.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		maxSize: maxSize,
	}
}

// Get retrieves a value. Expired entries read as misses; the cleanup pass
// reclaims their memory.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		return nil, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		// Don't delete here (let cleanup handle it)
		return nil, false, nil
	}

	entry.lastAccess = time.Now()
	return entry.value, true, nil
}

// Set stores a value, evicting the least recently used entry when full.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxSize {
		s.evictLRU()
	}

	s.entries[key] = &memoryEntry{
		value:      value,
		expiresAt:  time.Now().Add(ttl),
		lastAccess: time.Now(),
	}
	return nil
}

// Delete removes an entry.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// evictLRU removes the least recently used entry.
func (s *MemoryStore) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range s.entries {
		if oldestKey == "" || entry.lastAccess.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastAccess
		}
	}

	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}

// Cleanup removes expired entries.
func (s *MemoryStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// StartCleanup starts a background goroutine that periodically removes
// expired entries.
func (s *MemoryStore) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			s.Cleanup()
		}
	}()
}

// Len reports the number of resident entries, expired included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
