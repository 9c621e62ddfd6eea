package cache

import (
	"sync"
	"time"
)

// Entry is a cached generation result.
type Entry struct {
	Key       string    `json:"key"`
	Content   string    `json:"content"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Writes  int64 `json:"writes"`
	Entries int   `json:"entries"`
}

// HitRate returns the fraction of lookups served from cache.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Store is a content-addressed cache for generated text.
type Store interface {
	// Get returns the entry for key, if present. A lookup concurrent with a
	// Put for the same key returns either the pre- or post-write value.
	Get(key string) (*Entry, bool)
	// Put stores an entry under key, replacing any previous value.
	Put(key string, entry *Entry) error
	// Clear removes all entries and resets counters.
	Clear() error
	// Stats returns current counters.
	Stats() Stats
}

// MemoryStore is a mutex-guarded in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	hits    int64
	misses  int64
	writes  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Get returns the cached entry for key.
func (m *MemoryStore) Get(key string) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if ok {
		m.hits++
	} else {
		m.misses++
	}
	return entry, ok
}

// Put stores an entry under key.
func (m *MemoryStore) Put(key string, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.Key = key
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.entries[key] = entry
	m.writes++
	return nil
}

// Clear removes all entries and resets counters.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*Entry)
	m.hits = 0
	m.misses = 0
	m.writes = 0
	return nil
}

// Stats returns current counters.
func (m *MemoryStore) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		Hits:    m.hits,
		Misses:  m.misses,
		Writes:  m.writes,
		Entries: len(m.entries),
	}
}

var _ Store = (*MemoryStore)(nil)
