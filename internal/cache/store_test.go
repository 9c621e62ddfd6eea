package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	t.Run("miss then hit", func(t *testing.T) {
		s := NewMemoryStore()

		if _, ok := s.Get("k1"); ok {
			t.Error("expected miss on empty store")
		}

		if err := s.Put("k1", &Entry{Content: "chapter one"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		entry, ok := s.Get("k1")
		if !ok {
			t.Fatal("expected hit after put")
		}
		if entry.Content != "chapter one" {
			t.Errorf("unexpected content: %s", entry.Content)
		}
		if entry.Key != "k1" {
			t.Errorf("expected key set on entry, got %s", entry.Key)
		}
		if entry.CreatedAt.IsZero() {
			t.Error("expected created-at timestamp")
		}
	})

	t.Run("stats", func(t *testing.T) {
		s := NewMemoryStore()

		s.Get("missing")
		s.Put("k1", &Entry{Content: "a"})
		s.Get("k1")
		s.Get("k1")

		stats := s.Stats()
		if stats.Hits != 2 {
			t.Errorf("expected 2 hits, got %d", stats.Hits)
		}
		if stats.Misses != 1 {
			t.Errorf("expected 1 miss, got %d", stats.Misses)
		}
		if stats.Entries != 1 {
			t.Errorf("expected 1 entry, got %d", stats.Entries)
		}
		if got := stats.HitRate(); got < 0.66 || got > 0.67 {
			t.Errorf("expected hit rate ~0.667, got %f", got)
		}
	})

	t.Run("clear", func(t *testing.T) {
		s := NewMemoryStore()
		s.Put("k1", &Entry{Content: "a"})

		if err := s.Clear(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := s.Get("k1"); ok {
			t.Error("expected miss after clear")
		}
		// The post-clear Get counts as a miss.
		stats := s.Stats()
		if stats.Entries != 0 || stats.Hits != 0 {
			t.Errorf("expected reset counters, got %+v", stats)
		}
	})

	t.Run("concurrent access", func(t *testing.T) {
		s := NewMemoryStore()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				key := fmt.Sprintf("k%d", n%5)
				s.Put(key, &Entry{Content: fmt.Sprintf("content %d", n)})
				s.Get(key)
			}(i)
		}
		wg.Wait()

		if stats := s.Stats(); stats.Entries != 5 {
			t.Errorf("expected 5 entries, got %d", stats.Entries)
		}
	})
}

func TestStats_HitRate_Empty(t *testing.T) {
	var s Stats
	if got := s.HitRate(); got != 0 {
		t.Errorf("expected 0 hit rate with no lookups, got %f", got)
	}
}
