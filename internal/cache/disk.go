package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DiskStore persists entries as one JSON file per key under a cache
// directory, with a write-through memory map so repeat lookups skip disk.
type DiskStore struct {
	mu     sync.RWMutex
	dir    string
	memory map[string]*Entry
	logger *slog.Logger

	hits   int64
	misses int64
	writes int64
}

// NewDiskStore creates a disk-backed store rooted at dir, creating the
// directory if needed.
func NewDiskStore(dir string, logger *slog.Logger) (*DiskStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &DiskStore{
		dir:    dir,
		memory: make(map[string]*Entry),
		logger: logger,
	}, nil
}

// Dir returns the cache directory path.
func (d *DiskStore) Dir() string {
	return d.dir
}

// Get returns the entry for key, checking memory first, then disk.
// Corrupted or unreadable disk entries degrade to a miss.
func (d *DiskStore) Get(key string) (*Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.memory[key]; ok {
		d.hits++
		return entry, true
	}

	data, err := os.ReadFile(d.path(key))
	if err != nil {
		d.misses++
		if !os.IsNotExist(err) {
			d.logger.Warn("failed to read cache entry, treating as miss",
				"key", key, "error", err)
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		d.misses++
		d.logger.Warn("corrupted cache entry, treating as miss",
			"key", key, "error", err)
		return nil, false
	}

	d.memory[key] = &entry
	d.hits++
	return &entry, true
}

// Put stores an entry under key, writing through to disk.
func (d *DiskStore) Put(key string, entry *Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry.Key = key
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	// Write to a temp file first so a crash never leaves a half-written entry.
	tmp := d.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp, d.path(key)); err != nil {
		return fmt.Errorf("failed to finalize cache entry: %w", err)
	}

	d.memory[key] = entry
	d.writes++
	return nil
}

// Clear removes all entries from memory and disk and resets counters.
func (d *DiskStore) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	files, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("failed to list cache directory: %w", err)
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, f.Name())); err != nil {
			return fmt.Errorf("failed to remove cache entry %s: %w", f.Name(), err)
		}
	}

	d.memory = make(map[string]*Entry)
	d.hits = 0
	d.misses = 0
	d.writes = 0
	return nil
}

// Stats returns current counters. Entries counts the files on disk so it
// survives process restarts.
func (d *DiskStore) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entries := 0
	if files, err := os.ReadDir(d.dir); err == nil {
		for _, f := range files {
			if !f.IsDir() && strings.HasSuffix(f.Name(), ".json") {
				entries++
			}
		}
	}

	return Stats{
		Hits:    d.hits,
		Misses:  d.misses,
		Writes:  d.writes,
		Entries: entries,
	}
}

func (d *DiskStore) path(key string) string {
	return filepath.Join(d.dir, key+".json")
}

var _ Store = (*DiskStore)(nil)
