// Package metrics provides usage tracking for generation provider calls.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Metric represents a single recorded provider call.
type Metric struct {
	// Attribution (for filtering/aggregation)
	Stage   string `json:"stage,omitempty"`    // e.g., "chapters", "outline", "images"
	ItemKey string `json:"item_key,omitempty"` // e.g., "chapter_0003"

	// Provider info
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// Tokens
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	// Timing and retries
	Duration time.Duration `json:"duration,omitempty"`
	Attempts int           `json:"attempts,omitempty"`

	// Status
	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`
	CacheHit  bool   `json:"cache_hit,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// StageSummary aggregates metrics for one pipeline stage.
type StageSummary struct {
	Stage       string        `json:"stage"`
	Calls       int           `json:"calls"`
	Failures    int           `json:"failures"`
	CacheHits   int           `json:"cache_hits"`
	TotalTokens int           `json:"total_tokens"`
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration"`
}

// Recorder accumulates metrics in memory for end-of-run reporting.
type Recorder struct {
	mu      sync.Mutex
	metrics []Metric
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record stores a single metric.
func (r *Recorder) Record(m Metric) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

// All returns a copy of every recorded metric.
func (r *Recorder) All() []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Metric, len(r.metrics))
	copy(out, r.metrics)
	return out
}

// ByStage aggregates recorded metrics per stage, sorted by stage name.
func (r *Recorder) ByStage() []StageSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	byStage := make(map[string]*StageSummary)
	for _, m := range r.metrics {
		s, ok := byStage[m.Stage]
		if !ok {
			s = &StageSummary{Stage: m.Stage}
			byStage[m.Stage] = s
		}
		s.Calls++
		if !m.Success {
			s.Failures++
		}
		if m.CacheHit {
			s.CacheHits++
		}
		s.TotalTokens += m.TotalTokens
		s.Attempts += m.Attempts
		s.Duration += m.Duration
	}

	out := make([]StageSummary, 0, len(byStage))
	for _, s := range byStage {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out
}

// TotalTokens returns the token count across all recorded metrics.
func (r *Recorder) TotalTokens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, m := range r.metrics {
		total += m.TotalTokens
	}
	return total
}
