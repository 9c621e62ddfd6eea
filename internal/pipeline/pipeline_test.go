package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bookforge/bookforge/internal/cache"
	"github.com/bookforge/bookforge/internal/config"
	"github.com/bookforge/bookforge/internal/generate"
	"github.com/bookforge/bookforge/internal/providers"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Generation.MinChapters = 2
	cfg.Generation.MaxChapters = 3
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	cfg.Output.Formats = []string{"html", "epub"}
	return cfg
}

// routingMock answers metadata stages with schema-appropriate JSON and
// chapter prompts with plain text.
func routingMock() *providers.MockContentClient {
	mock := providers.NewMockContentClient()
	mock.GenerateFn = func(ctx context.Context, req *providers.ContentRequest) (*providers.ContentResult, error) {
		res := &providers.ContentResult{
			Provider:    providers.MockClientName,
			ModelUsed:   req.Params.Model,
			TotalTokens: 30,
		}
		if req.ResponseFormat == nil {
			res.Text = "Generated chapter prose.\n\nWith a second paragraph."
			return res, nil
		}
		schema := string(req.ResponseFormat.JSONSchema)
		switch {
		case strings.Contains(schema, `"chapters"`):
			res.Text = `{"chapters":[{"title":"Origins","summary":"Where it started."},{"title":"Aftermath","summary":"What remained."}]}`
		case strings.Contains(schema, `"description"`):
			res.Text = `{"description":"A short account of a long story."}`
		default:
			res.Text = `{"title":"The Long Story"}`
		}
		res.ParsedJSON = json.RawMessage(res.Text)
		return res, nil
	}
	return mock
}

func writeInput(t *testing.T, chars int) string {
	t.Helper()
	var sb strings.Builder
	for sb.Len() < chars {
		sb.WriteString("The expedition crossed the ridge before dawn and made camp in the valley below.\n\n")
	}
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPipeline_Run(t *testing.T) {
	cfg := testConfig()
	mock := routingMock()
	store := cache.NewMemoryStore()
	p := New(cfg, mock, nil, store, testLogger(t))

	outputDir := t.TempDir()
	res, err := p.Run(context.Background(), writeInput(t, 600), outputDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Book.Metadata.Title != "The Long Story" {
		t.Errorf("title = %q", res.Book.Metadata.Title)
	}
	if res.Book.Metadata.Description != "A short account of a long story." {
		t.Errorf("description = %q", res.Book.Metadata.Description)
	}
	if len(res.Book.Chapters) != 2 {
		t.Fatalf("chapters = %d, want 2", len(res.Book.Chapters))
	}
	if res.Book.Chapters[0].Title != "Origins" || res.Book.Chapters[1].Title != "Aftermath" {
		t.Errorf("chapter titles = %q, %q", res.Book.Chapters[0].Title, res.Book.Chapters[1].Title)
	}
	for _, ch := range res.Book.Chapters {
		if ch.Placeholder {
			t.Errorf("chapter %d unexpectedly a placeholder", ch.Index)
		}
	}

	if res.PackageDir == "" {
		t.Fatal("no package directory returned")
	}
	for _, name := range []string{"README.md", "metadata.json"} {
		if _, err := os.Stat(filepath.Join(res.PackageDir, name)); err != nil {
			t.Errorf("package missing %s: %v", name, err)
		}
	}

	if len(res.Stages) == 0 {
		t.Error("no stage summaries recorded")
	}
	if res.CacheStats.Writes != 2 {
		t.Errorf("cache writes = %d, want 2", res.CacheStats.Writes)
	}
}

func TestPipeline_WarmCacheRun(t *testing.T) {
	cfg := testConfig()
	mock := routingMock()
	store := cache.NewMemoryStore()
	p := New(cfg, mock, nil, store, testLogger(t))

	input := writeInput(t, 600)
	if _, err := p.Run(context.Background(), input, t.TempDir()); err != nil {
		t.Fatalf("cold run: %v", err)
	}
	coldCalls := mock.CallCount()

	p2 := New(cfg, mock, nil, store, testLogger(t))
	res, err := p2.Run(context.Background(), input, t.TempDir())
	if err != nil {
		t.Fatalf("warm run: %v", err)
	}

	// The metadata stages are not cached, but every chapter must come from
	// the cache: the warm run makes exactly three more calls.
	if got := mock.CallCount() - coldCalls; got != 3 {
		t.Errorf("warm run made %d provider calls, want 3 (metadata only)", got)
	}
	for i, ch := range res.Chapters {
		if ch.Source != generate.SourceCacheHit {
			t.Errorf("chapter %d source = %s, want cache_hit", i, ch.Source)
		}
	}
}

func TestPipeline_FailedChapterThreshold(t *testing.T) {
	authErr := &providers.APIError{Provider: "mock", Kind: providers.KindAuth, Status: 401, Message: "bad key"}

	newBrokenMock := func() *providers.MockContentClient {
		mock := routingMock()
		inner := mock.GenerateFn
		mock.GenerateFn = func(ctx context.Context, req *providers.ContentRequest) (*providers.ContentResult, error) {
			if req.ResponseFormat == nil {
				return nil, authErr
			}
			return inner(ctx, req)
		}
		return mock
	}

	t.Run("over the limit aborts", func(t *testing.T) {
		cfg := testConfig()
		cfg.Output.FailedChapterLimit = 0
		p := New(cfg, newBrokenMock(), nil, cache.NewMemoryStore(), testLogger(t))

		_, err := p.Run(context.Background(), writeInput(t, 600), t.TempDir())
		if err == nil {
			t.Fatal("expected error when failures exceed the limit")
		}
		if !strings.Contains(err.Error(), "chapters failed") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("disabled limit degrades to placeholders", func(t *testing.T) {
		cfg := testConfig()
		cfg.Output.FailedChapterLimit = -1
		p := New(cfg, newBrokenMock(), nil, cache.NewMemoryStore(), testLogger(t))

		res, err := p.Run(context.Background(), writeInput(t, 600), t.TempDir())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if got := res.Book.PlaceholderCount(); got != 2 {
			t.Errorf("placeholder count = %d, want 2", got)
		}
		for _, ch := range res.Book.Chapters {
			if !strings.Contains(ch.Content, "could not be generated") {
				t.Errorf("placeholder chapter %d has content %q", ch.Index, ch.Content)
			}
		}
	})
}

func TestPipeline_ImagesUsePlaceholderOnFailure(t *testing.T) {
	cfg := testConfig()
	images := &providers.MockImageClient{
		FailWith: &providers.APIError{Provider: "mock", Kind: providers.KindServer, Message: "boom"},
	}
	p := New(cfg, routingMock(), images, cache.NewMemoryStore(), testLogger(t))

	res, err := p.Run(context.Background(), writeInput(t, 600), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Book.Cover) == 0 {
		t.Error("expected placeholder cover bytes")
	}
	for _, ch := range res.Book.Chapters {
		if len(ch.Illustration) == 0 {
			t.Errorf("chapter %d missing placeholder illustration", ch.Index)
		}
	}
}

func TestPipeline_InputTooShort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.txt")
	if err := os.WriteFile(path, []byte("too short"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New(testConfig(), routingMock(), nil, nil, testLogger(t))
	if _, err := p.Run(context.Background(), path, t.TempDir()); err == nil {
		t.Fatal("expected error for short input")
	}
}

func TestPipeline_ProviderAttemptBudget(t *testing.T) {
	cfg := testConfig()
	cfg.Retry.MaxAttempts = 2

	t.Run("provider budget wins", func(t *testing.T) {
		mock := routingMock()
		mock.Retries = 5
		p := New(cfg, mock, nil, nil, testLogger(t))
		if p.retryCfg.MaxAttempts != 5 {
			t.Errorf("max attempts = %d, want provider budget 5", p.retryCfg.MaxAttempts)
		}
	})

	t.Run("global schedule when provider gives no budget", func(t *testing.T) {
		mock := routingMock()
		mock.Retries = 0
		p := New(cfg, mock, nil, nil, testLogger(t))
		if p.retryCfg.MaxAttempts != 2 {
			t.Errorf("max attempts = %d, want global 2", p.retryCfg.MaxAttempts)
		}
	})
}

func TestPipeline_ChapterCount(t *testing.T) {
	cfg := testConfig()
	cfg.Generation.SectionChars = 1000
	cfg.Generation.MinChapters = 3
	cfg.Generation.MaxChapters = 6
	p := New(cfg, routingMock(), nil, nil, testLogger(t))

	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"short input clamps to minimum", paragraphBlock(2, 100), 3},
		{"section-sized chunks in range", paragraphBlock(4, 990), 4},
		{"long input clamps to maximum", paragraphBlock(10, 990), 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.chapterCount(tt.content); got != tt.want {
				t.Errorf("chapterCount = %d, want %d", got, tt.want)
			}
		})
	}
}
