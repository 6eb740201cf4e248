package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory stores entries in process memory with automatic expiration
type Memory struct {
	mu       sync.RWMutex
	entries  map[string]*memoryEntry
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemory creates an in-memory store. When cleanupInterval is positive a
// background goroutine drops expired entries; Close stops it.
func NewMemory(cleanupInterval time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go m.cleanup(cleanupInterval)
	}

	return m
}

// cleanup periodically removes expired entries
func (m *Memory) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CleanExpired()
		case <-m.stopCh:
			return
		}
	}
}

// Get retrieves an entry from the cache
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.entries[key]
	if !exists {
		return nil, false, nil
	}

	// Check if expired
	if !m.now().Before(entry.expiresAt) {
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set adds or replaces an entry
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = &memoryEntry{
		value:     value,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

// Delete removes an entry
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
}

// Clear removes all entries
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*memoryEntry)
}

// CleanExpired removes expired entries and returns how many were dropped
func (m *Memory) CleanExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}

	return removed
}

// Count returns the number of stored entries, expired or not
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// Health always succeeds for the in-memory store
func (m *Memory) Health(ctx context.Context) error {
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	return nil
}
