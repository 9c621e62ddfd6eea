// Package pipeline orchestrates a full book generation run: metadata,
// outline, parallel chapter generation, images, formatting, and packaging.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bookforge/bookforge/internal/book"
	"github.com/bookforge/bookforge/internal/cache"
	"github.com/bookforge/bookforge/internal/config"
	"github.com/bookforge/bookforge/internal/format"
	"github.com/bookforge/bookforge/internal/generate"
	"github.com/bookforge/bookforge/internal/metrics"
	"github.com/bookforge/bookforge/internal/packager"
	"github.com/bookforge/bookforge/internal/prompts"
	"github.com/bookforge/bookforge/internal/providers"
	"github.com/bookforge/bookforge/internal/retry"
)

// MinInputChars is the smallest input that can seed a book.
const MinInputChars = 100

// Pipeline runs the generation stages in order. Construct with New.
type Pipeline struct {
	cfg      *config.Config
	content  providers.ContentClient
	images   providers.ImageClient
	store    cache.Store
	recorder *metrics.Recorder
	logger   *slog.Logger
	retryCfg retry.Config
}

// New creates a pipeline. images may be nil to skip cover and illustration
// generation; store may be nil when caching is disabled.
func New(cfg *config.Config, content providers.ContentClient, images providers.ImageClient, store cache.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	retryCfg := retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		Multiplier:  cfg.Retry.Multiplier,
		MaxDelay:    cfg.Retry.MaxDelay,
		Recoverable: providers.RecoverableIn(cfg.Retry.ErrorKinds()),
	}
	// The provider's configured attempt budget (content_providers.<name>.
	// max_retries) takes precedence over the global schedule.
	if content != nil {
		if n := content.MaxRetries(); n > 0 {
			retryCfg.MaxAttempts = n
		}
	}
	return &Pipeline{
		cfg:      cfg,
		content:  content,
		images:   images,
		store:    store,
		recorder: metrics.NewRecorder(),
		logger:   logger.With("component", "pipeline"),
		retryCfg: retryCfg,
	}
}

// Result summarizes a completed run.
type Result struct {
	Book       *book.Book
	PackageDir string

	Chapters   []generate.ChapterResult
	CacheStats cache.Stats
	Stages     []metrics.StageSummary
	Elapsed    time.Duration
}

// Run generates a complete book from the content at inputPath and packages
// it under outputDir.
func (p *Pipeline) Run(ctx context.Context, inputPath, outputDir string) (*Result, error) {
	start := time.Now()

	content, err := p.readInput(inputPath)
	if err != nil {
		return nil, err
	}
	p.logger.Info("starting book generation", "input", inputPath, "chars", len(content))

	title, err := p.generateTitle(ctx, content)
	if err != nil {
		return nil, err
	}
	p.logger.Info("title generated", "title", title)

	description, err := p.generateDescription(ctx, title, content)
	if err != nil {
		return nil, err
	}

	chapterCount := p.chapterCount(content)
	outline, err := p.generateOutline(ctx, title, content, chapterCount)
	if err != nil {
		return nil, err
	}
	p.logger.Info("outline generated", "chapters", len(outline.Chapters))

	reqs, err := p.chapterRequests(title, content, outline)
	if err != nil {
		return nil, err
	}
	results := p.dispatch(ctx, reqs)

	failed := 0
	for _, r := range results {
		p.recordChapter(r)
		if r.Source == generate.SourceFailed {
			failed++
		}
	}
	if limit := p.cfg.Output.FailedChapterLimit; limit >= 0 && failed > limit {
		return nil, fmt.Errorf("%d of %d chapters failed, above the limit of %d",
			failed, len(results), limit)
	}
	if failed > 0 {
		p.logger.Warn("some chapters failed, continuing with placeholders", "failed", failed)
	}

	bk := p.assemble(title, description, outline, results)
	p.generateImages(ctx, bk)

	pkgDir, err := p.produceOutputs(bk, outputDir)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Book:       bk,
		PackageDir: pkgDir,
		Chapters:   results,
		Stages:     p.recorder.ByStage(),
		Elapsed:    time.Since(start),
	}
	if p.store != nil {
		res.CacheStats = p.store.Stats()
	}

	p.logger.Info("book generation finished",
		"title", title,
		"chapters", len(bk.Chapters),
		"failed", failed,
		"package", pkgDir,
		"elapsed", res.Elapsed)
	return res, nil
}

func (p *Pipeline) readInput(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if len(content) < MinInputChars {
		return "", fmt.Errorf("input too short: %d chars, need at least %d", len(content), MinInputChars)
	}
	return content, nil
}

// chapterCount derives the chapter count from how many section-sized,
// paragraph-aligned chunks the input yields, clamped to the configured bounds.
func (p *Pipeline) chapterCount(content string) int {
	n := len(SplitIntoSections(content, p.cfg.Generation.SectionChars))
	if n < p.cfg.Generation.MinChapters {
		n = p.cfg.Generation.MinChapters
	}
	if n > p.cfg.Generation.MaxChapters {
		n = p.cfg.Generation.MaxChapters
	}
	return n
}

// chapterRequests pairs each outline chapter with its slice of the input.
func (p *Pipeline) chapterRequests(title, content string, outline *book.Outline) ([]generate.Request, error) {
	sections := SplitIntoN(content, len(outline.Chapters))

	reqs := make([]generate.Request, len(outline.Chapters))
	for i, ch := range outline.Chapters {
		section := ""
		if i < len(sections) {
			section = sections[i]
		}
		prompt, err := prompts.Chapter(prompts.ChapterData{
			BookTitle:      title,
			ChapterNumber:  i + 1,
			ChapterCount:   len(outline.Chapters),
			ChapterTitle:   ch.Title,
			ChapterSummary: ch.Summary,
			SectionContent: section,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to render chapter %d prompt: %w", i+1, err)
		}
		reqs[i] = generate.Request{
			ChapterIndex:  i,
			SectionTitle:  ch.Title,
			PromptContext: prompt,
			System:        prompts.AuthorSystem,
			Params: providers.ModelParams{
				Model:       p.cfg.Generation.Model,
				Temperature: p.cfg.Generation.Temperature,
				MaxTokens:   p.cfg.Generation.MaxTokens,
			},
		}
	}
	return reqs, nil
}

func (p *Pipeline) dispatch(ctx context.Context, reqs []generate.Request) []generate.ChapterResult {
	var limiter *providers.RateLimiter
	if rps := p.content.RequestsPerSecond(); rps > 0 {
		limiter = providers.NewRateLimiter(rps)
	}

	runner := generate.NewRunner(p.content, p.store, limiter, generate.RunnerConfig{
		UseCache: p.cfg.Concurrency.UseCache,
		Retry:    p.retryCfg,
	}, p.logger)

	dispatcher := generate.NewDispatcher(runner, generate.DispatcherConfig{
		MaxWorkers: p.cfg.Concurrency.MaxWorkers,
		Parallel:   p.cfg.Concurrency.Parallel,
	}, p.logger)

	return dispatcher.Dispatch(ctx, reqs)
}

func (p *Pipeline) recordChapter(r generate.ChapterResult) {
	m := metrics.Metric{
		Stage:       "chapters",
		ItemKey:     r.CacheKey,
		Provider:    p.content.Name(),
		TotalTokens: r.TotalTokens,
		Duration:    r.Duration,
		Attempts:    r.Attempts,
		Success:     r.Source != generate.SourceFailed,
		CacheHit:    r.Source == generate.SourceCacheHit,
	}
	if r.Source == generate.SourceFailed {
		m.ErrorType = string(r.ErrorKind)
	}
	p.recorder.Record(m)
}

// assemble builds the book from chapter results. Failed chapters become
// placeholders so the book structure always matches the outline.
func (p *Pipeline) assemble(title, description string, outline *book.Outline, results []generate.ChapterResult) *book.Book {
	bk := &book.Book{
		Metadata: book.Metadata{
			Title:       title,
			Description: description,
			Author:      p.cfg.Book.Author,
			Language:    p.cfg.Book.Language,
			GeneratedAt: time.Now(),
		},
		Chapters: make([]book.Chapter, len(results)),
	}

	for i, r := range results {
		ch := book.Chapter{Index: i, Title: outline.Chapters[i].Title}
		if r.Source == generate.SourceFailed {
			ch.Placeholder = true
			ch.Content = fmt.Sprintf("This chapter could not be generated. Planned content: %s",
				outline.Chapters[i].Summary)
		} else {
			ch.Content = r.Content
		}
		bk.Chapters[i] = ch
	}
	return bk
}

// produceOutputs renders the configured formats into a staging directory and
// packages them with artifacts and metadata.
func (p *Pipeline) produceOutputs(bk *book.Book, outputDir string) (string, error) {
	staging, err := os.MkdirTemp("", "bookforge-render-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	files, err := format.New(p.logger).RenderAll(bk, p.cfg.Output.Formats, staging)
	if err != nil {
		return "", err
	}

	opts := packager.Options{
		OutputDir: outputDir,
		Files:     files,
		Stages:    p.recorder.ByStage(),
	}
	if p.store != nil {
		opts.CacheStats = p.store.Stats()
	}
	if cfgYAML, merr := config.MarshalYAML(p.cfg); merr == nil {
		opts.ConfigYAML = cfgYAML
	} else {
		p.logger.Warn("failed to marshal effective config", "error", merr)
	}

	return packager.New(p.logger).Create(bk, opts)
}
