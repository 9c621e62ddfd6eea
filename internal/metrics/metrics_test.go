package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestRecorder_ByStage(t *testing.T) {
	r := NewRecorder()
	r.Record(Metric{Stage: "chapters", Success: true, TotalTokens: 100, Attempts: 1, Duration: time.Second})
	r.Record(Metric{Stage: "chapters", Success: false, ErrorType: "server", Attempts: 3})
	r.Record(Metric{Stage: "chapters", Success: true, CacheHit: true})
	r.Record(Metric{Stage: "outline", Success: true, TotalTokens: 50, Attempts: 1})

	summaries := r.ByStage()
	if len(summaries) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(summaries))
	}

	// Sorted by stage name, so chapters first.
	ch := summaries[0]
	if ch.Stage != "chapters" {
		t.Fatalf("expected chapters stage first, got %s", ch.Stage)
	}
	if ch.Calls != 3 || ch.Failures != 1 || ch.CacheHits != 1 {
		t.Errorf("unexpected chapters summary: %+v", ch)
	}
	if ch.TotalTokens != 100 || ch.Attempts != 4 {
		t.Errorf("unexpected chapters totals: %+v", ch)
	}

	if r.TotalTokens() != 150 {
		t.Errorf("expected 150 total tokens, got %d", r.TotalTokens())
	}
}

func TestRecorder_SetsCreatedAt(t *testing.T) {
	r := NewRecorder()
	r.Record(Metric{Stage: "metadata", Success: true})

	all := r.All()
	if len(all) != 1 {
		t.Fatalf("expected 1 metric, got %d", len(all))
	}
	if all[0].CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestRecorder_ConcurrentRecord(t *testing.T) {
	r := NewRecorder()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record(Metric{Stage: "chapters", Success: true, TotalTokens: 10})
		}()
	}
	wg.Wait()

	if got := len(r.All()); got != 20 {
		t.Errorf("expected 20 metrics, got %d", got)
	}
	if r.TotalTokens() != 200 {
		t.Errorf("expected 200 tokens, got %d", r.TotalTokens())
	}
}
