// Package generate runs chapter generation tasks against a content provider,
// with caching, retries, and bounded parallel dispatch.
package generate

import (
	"time"

	"github.com/bookforge/bookforge/internal/providers"
)

// Request describes one chapter generation task. Every field participates in
// the cache fingerprint, so changing any of them produces a fresh generation.
type Request struct {
	ChapterIndex  int                   `json:"chapter_index"`
	SectionTitle  string                `json:"section_title"`
	PromptContext string                `json:"prompt_context"`
	System        string                `json:"system,omitempty"`
	Params        providers.ModelParams `json:"params"`
}

// Source records how a chapter result was produced.
type Source string

const (
	SourceCacheHit  Source = "cache_hit"
	SourceGenerated Source = "generated"
	SourceFailed    Source = "failed"
)

// ChapterResult is the outcome of one chapter task. Failures are carried as
// data rather than aborting the batch.
type ChapterResult struct {
	ChapterIndex int
	Title        string
	Content      string
	Source       Source

	Err       error
	ErrorKind providers.ErrorKind

	Attempts    int
	CacheKey    string
	TotalTokens int
	Duration    time.Duration
}

// Failed reports whether the task produced no usable content.
func (r ChapterResult) Failed() bool {
	return r.Source == SourceFailed
}
