package generate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/bookforge/bookforge/internal/cache"
	"github.com/bookforge/bookforge/internal/providers"
	"github.com/bookforge/bookforge/internal/retry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func chapterRequest(i int) Request {
	return Request{
		ChapterIndex:  i,
		SectionTitle:  fmt.Sprintf("Chapter %d", i+1),
		PromptContext: fmt.Sprintf("Write chapter %d about the sea.", i+1),
		Params:        providers.ModelParams{Model: "mock-model", Temperature: 0.7, MaxTokens: 1000},
	}
}

func TestRunner_Run(t *testing.T) {
	t.Run("generates on cache miss and writes through", func(t *testing.T) {
		mock := providers.NewMockContentClient()
		mock.ResponseText = "the waves rolled in"
		store := cache.NewMemoryStore()

		r := NewRunner(mock, store, nil, RunnerConfig{UseCache: true, Retry: fastRetry()}, testLogger())
		res := r.Run(context.Background(), chapterRequest(0))

		if res.Source != SourceGenerated {
			t.Errorf("expected generated, got %s", res.Source)
		}
		if res.Content != "the waves rolled in" {
			t.Errorf("unexpected content: %s", res.Content)
		}
		if res.Attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", res.Attempts)
		}
		if res.CacheKey == "" {
			t.Error("expected cache key to be recorded")
		}

		entry, ok := store.Get(res.CacheKey)
		if !ok {
			t.Fatal("expected cache write after generation")
		}
		if entry.Content != "the waves rolled in" {
			t.Errorf("unexpected cached content: %s", entry.Content)
		}
	})

	t.Run("warm cache makes zero provider calls", func(t *testing.T) {
		mock := providers.NewMockContentClient()
		store := cache.NewMemoryStore()
		r := NewRunner(mock, store, nil, RunnerConfig{UseCache: true, Retry: fastRetry()}, testLogger())

		first := r.Run(context.Background(), chapterRequest(0))
		if first.Source != SourceGenerated {
			t.Fatalf("expected generated, got %s", first.Source)
		}

		second := r.Run(context.Background(), chapterRequest(0))
		if second.Source != SourceCacheHit {
			t.Errorf("expected cache_hit, got %s", second.Source)
		}
		if second.Content != first.Content {
			t.Error("cache hit returned different content")
		}
		if mock.CallCount() != 1 {
			t.Errorf("expected 1 provider call total, got %d", mock.CallCount())
		}
	})

	t.Run("use_cache=false bypasses lookup and write", func(t *testing.T) {
		mock := providers.NewMockContentClient()
		store := cache.NewMemoryStore()
		r := NewRunner(mock, store, nil, RunnerConfig{UseCache: false, Retry: fastRetry()}, testLogger())

		r.Run(context.Background(), chapterRequest(0))
		r.Run(context.Background(), chapterRequest(0))

		if mock.CallCount() != 2 {
			t.Errorf("expected 2 provider calls with cache disabled, got %d", mock.CallCount())
		}
		if stats := store.Stats(); stats.Entries != 0 {
			t.Errorf("expected no cache writes, got %d entries", stats.Entries)
		}
	})

	t.Run("failure is data, not error", func(t *testing.T) {
		mock := providers.NewMockContentClient()
		mock.FailWith = &providers.APIError{Provider: "mock", Kind: providers.KindServer, Status: 500, Message: "boom"}

		r := NewRunner(mock, cache.NewMemoryStore(), nil, RunnerConfig{UseCache: true, Retry: fastRetry()}, testLogger())
		res := r.Run(context.Background(), chapterRequest(0))

		if res.Source != SourceFailed {
			t.Fatalf("expected failed, got %s", res.Source)
		}
		if !res.Failed() {
			t.Error("Failed() should report true")
		}
		if res.ErrorKind != providers.KindServer {
			t.Errorf("expected server kind, got %s", res.ErrorKind)
		}
		if res.Attempts != 3 {
			t.Errorf("expected 3 attempts for recoverable failure, got %d", res.Attempts)
		}
		if res.Err == nil {
			t.Error("expected error recorded")
		}
	})

	t.Run("terminal failure makes one attempt", func(t *testing.T) {
		mock := providers.NewMockContentClient()
		mock.FailWith = &providers.APIError{Provider: "mock", Kind: providers.KindAuth, Status: 401}

		r := NewRunner(mock, cache.NewMemoryStore(), nil, RunnerConfig{UseCache: true, Retry: fastRetry()}, testLogger())
		res := r.Run(context.Background(), chapterRequest(0))

		if res.Attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", res.Attempts)
		}
		if mock.CallCount() != 1 {
			t.Errorf("expected 1 provider call, got %d", mock.CallCount())
		}
	})

	t.Run("recovers after transient failures", func(t *testing.T) {
		mock := providers.NewMockContentClient()
		mock.FailWith = &providers.APIError{Provider: "mock", Kind: providers.KindRateLimited, Status: 429}
		mock.FailFirst = 2

		r := NewRunner(mock, cache.NewMemoryStore(), nil, RunnerConfig{UseCache: true, Retry: fastRetry()}, testLogger())
		res := r.Run(context.Background(), chapterRequest(0))

		if res.Source != SourceGenerated {
			t.Fatalf("expected generated after recovery, got %s (err: %v)", res.Source, res.Err)
		}
		if res.Attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", res.Attempts)
		}
	})

	t.Run("failed generation is not cached", func(t *testing.T) {
		mock := providers.NewMockContentClient()
		mock.FailWith = &providers.APIError{Provider: "mock", Kind: providers.KindBadRequest, Status: 400}
		store := cache.NewMemoryStore()

		r := NewRunner(mock, store, nil, RunnerConfig{UseCache: true, Retry: fastRetry()}, testLogger())
		r.Run(context.Background(), chapterRequest(0))

		if stats := store.Stats(); stats.Entries != 0 {
			t.Errorf("expected no cached entries after failure, got %d", stats.Entries)
		}
	})
}

func TestRunner_CoalescesDuplicateRequests(t *testing.T) {
	mock := providers.NewMockContentClient()
	mock.Latency = 20 * time.Millisecond
	store := cache.NewMemoryStore()

	r := NewRunner(mock, store, nil, RunnerConfig{UseCache: true, Retry: fastRetry()}, testLogger())

	const callers = 8
	results := make([]ChapterResult, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n] = r.Run(context.Background(), chapterRequest(0))
		}(i)
	}
	wg.Wait()

	if mock.CallCount() != 1 {
		t.Errorf("expected 1 coalesced provider call, got %d", mock.CallCount())
	}
	for i, res := range results {
		if res.Failed() {
			t.Errorf("caller %d failed: %v", i, res.Err)
		}
		if res.Content != results[0].Content {
			t.Errorf("caller %d got divergent content", i)
		}
	}
}

func TestDispatcher_Dispatch(t *testing.T) {
	newDispatcher := func(mock *providers.MockContentClient, cfg DispatcherConfig) *Dispatcher {
		r := NewRunner(mock, cache.NewMemoryStore(), nil, RunnerConfig{UseCache: true, Retry: fastRetry()}, testLogger())
		return NewDispatcher(r, cfg, testLogger())
	}

	t.Run("empty input", func(t *testing.T) {
		d := newDispatcher(providers.NewMockContentClient(), DispatcherConfig{MaxWorkers: 4, Parallel: true})
		if got := d.Dispatch(context.Background(), nil); got != nil {
			t.Errorf("expected nil results for empty input, got %v", got)
		}
	})

	t.Run("results match input order under random latency", func(t *testing.T) {
		mock := providers.NewMockContentClient()
		mock.GenerateFn = func(ctx context.Context, req *providers.ContentRequest) (*providers.ContentResult, error) {
			time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
			return &providers.ContentResult{Text: "content for " + req.Prompt, Provider: "mock"}, nil
		}

		d := newDispatcher(mock, DispatcherConfig{MaxWorkers: 4, Parallel: true})

		reqs := make([]Request, 10)
		for i := range reqs {
			reqs[i] = chapterRequest(i)
		}

		results := d.Dispatch(context.Background(), reqs)
		if len(results) != len(reqs) {
			t.Fatalf("expected %d results, got %d", len(reqs), len(results))
		}
		for i, res := range results {
			if res.ChapterIndex != i {
				t.Errorf("result %d has chapter index %d", i, res.ChapterIndex)
			}
			if res.Content != "content for "+reqs[i].PromptContext {
				t.Errorf("result %d content does not match its request", i)
			}
		}
	})

	t.Run("one failure does not cancel the rest", func(t *testing.T) {
		mock := providers.NewMockContentClient()
		mock.GenerateFn = func(ctx context.Context, req *providers.ContentRequest) (*providers.ContentResult, error) {
			if req.Prompt == chapterRequest(2).PromptContext {
				return nil, &providers.APIError{Provider: "mock", Kind: providers.KindBadRequest, Status: 400}
			}
			return &providers.ContentResult{Text: "fine", Provider: "mock"}, nil
		}

		d := newDispatcher(mock, DispatcherConfig{MaxWorkers: 2, Parallel: true})

		reqs := make([]Request, 5)
		for i := range reqs {
			reqs[i] = chapterRequest(i)
		}

		results := d.Dispatch(context.Background(), reqs)

		failed := 0
		for i, res := range results {
			if res.Failed() {
				failed++
				if i != 2 {
					t.Errorf("unexpected failure at index %d", i)
				}
			}
		}
		if failed != 1 {
			t.Errorf("expected exactly 1 failure, got %d", failed)
		}
	})

	t.Run("sequential path when parallel disabled", func(t *testing.T) {
		mock := providers.NewMockContentClient()
		var mu sync.Mutex
		inFlight, maxInFlight := 0, 0
		mock.GenerateFn = func(ctx context.Context, req *providers.ContentRequest) (*providers.ContentResult, error) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			return &providers.ContentResult{Text: "x", Provider: "mock"}, nil
		}

		d := newDispatcher(mock, DispatcherConfig{MaxWorkers: 8, Parallel: false})

		reqs := make([]Request, 6)
		for i := range reqs {
			reqs[i] = chapterRequest(i)
		}
		d.Dispatch(context.Background(), reqs)

		if maxInFlight != 1 {
			t.Errorf("expected sequential execution, saw %d concurrent calls", maxInFlight)
		}
	})

	t.Run("single worker falls back to sequential", func(t *testing.T) {
		mock := providers.NewMockContentClient()
		d := newDispatcher(mock, DispatcherConfig{MaxWorkers: 1, Parallel: true})

		reqs := []Request{chapterRequest(0), chapterRequest(1)}
		results := d.Dispatch(context.Background(), reqs)
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		for i, res := range results {
			if res.Failed() {
				t.Errorf("result %d failed: %v", i, res.Err)
			}
		}
	})

	t.Run("worker count bounded", func(t *testing.T) {
		mock := providers.NewMockContentClient()
		var mu sync.Mutex
		inFlight, maxInFlight := 0, 0
		mock.GenerateFn = func(ctx context.Context, req *providers.ContentRequest) (*providers.ContentResult, error) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			return &providers.ContentResult{Text: "x", Provider: "mock"}, nil
		}

		d := newDispatcher(mock, DispatcherConfig{MaxWorkers: 2, Parallel: true})

		reqs := make([]Request, 8)
		for i := range reqs {
			reqs[i] = chapterRequest(i)
		}
		d.Dispatch(context.Background(), reqs)

		if maxInFlight > 2 {
			t.Errorf("expected at most 2 concurrent calls, saw %d", maxInFlight)
		}
	})
}
