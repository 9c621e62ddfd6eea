package generate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bookforge/bookforge/internal/cache"
	"github.com/bookforge/bookforge/internal/providers"
	"github.com/bookforge/bookforge/internal/retry"
)

// RunnerConfig controls caching and the retry schedule for one runner.
type RunnerConfig struct {
	UseCache bool
	Retry    retry.Config
}

// Runner executes single chapter tasks: cache lookup, then a rate-limited,
// retried provider call on miss, then cache write. Identical in-flight
// requests are coalesced so a batch of duplicates makes one provider call.
type Runner struct {
	client  providers.ContentClient
	store   cache.Store
	limiter *providers.RateLimiter
	cfg     RunnerConfig
	logger  *slog.Logger

	inflight singleflight.Group
}

// NewRunner creates a runner. store may be nil when caching is disabled;
// limiter may be nil to skip rate limiting.
func NewRunner(client providers.ContentClient, store cache.Store, limiter *providers.RateLimiter, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		client:  client,
		store:   store,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger.With("component", "runner"),
	}
}

type generation struct {
	result   *providers.ContentResult
	attempts int
}

// Run executes one chapter task. It never returns an error; failures are
// reported in the result's Source, Err, and ErrorKind fields.
func (r *Runner) Run(ctx context.Context, req Request) ChapterResult {
	start := time.Now()

	key, err := cache.KeyFor(req)
	if err != nil {
		// Should not happen for a plain struct; degrade to uncached.
		r.logger.Warn("failed to compute cache key", "chapter", req.ChapterIndex, "error", err)
		key = ""
	}

	useCache := r.cfg.UseCache && r.store != nil && key != ""

	if useCache {
		if entry, ok := r.store.Get(key); ok {
			r.logger.Debug("cache hit", "chapter", req.ChapterIndex, "key", key)
			return ChapterResult{
				ChapterIndex: req.ChapterIndex,
				Title:        req.SectionTitle,
				Content:      entry.Content,
				Source:       SourceCacheHit,
				CacheKey:     key,
				Duration:     time.Since(start),
			}
		}
	}

	flightKey := key
	if flightKey == "" {
		// No usable fingerprint; give the call a unique key so it is never
		// coalesced with another request.
		flightKey = time.Now().Format(time.RFC3339Nano)
	}

	v, genErr, shared := r.inflight.Do(flightKey, func() (any, error) {
		return r.generate(ctx, req, key, useCache)
	})
	gen, _ := v.(generation)

	if shared {
		r.logger.Debug("coalesced duplicate request", "chapter", req.ChapterIndex, "key", key)
	}

	if genErr != nil {
		r.logger.Warn("chapter generation failed",
			"chapter", req.ChapterIndex,
			"attempts", gen.attempts,
			"kind", providers.KindOf(genErr),
			"error", genErr)
		return ChapterResult{
			ChapterIndex: req.ChapterIndex,
			Title:        req.SectionTitle,
			Source:       SourceFailed,
			Err:          genErr,
			ErrorKind:    providers.KindOf(genErr),
			Attempts:     gen.attempts,
			CacheKey:     key,
			Duration:     time.Since(start),
		}
	}

	return ChapterResult{
		ChapterIndex: req.ChapterIndex,
		Title:        req.SectionTitle,
		Content:      gen.result.Text,
		Source:       SourceGenerated,
		Attempts:     gen.attempts,
		CacheKey:     key,
		TotalTokens:  gen.result.TotalTokens,
		Duration:     time.Since(start),
	}
}

// generate performs the retried provider call and, on success, the cache
// write. Runs once per coalesced key.
func (r *Runner) generate(ctx context.Context, req Request, key string, useCache bool) (generation, error) {
	attempts := 0
	result, err := retry.Do(ctx, r.cfg.Retry, func(ctx context.Context) (*providers.ContentResult, error) {
		attempts++
		if r.limiter != nil {
			if werr := r.limiter.Wait(ctx); werr != nil {
				return nil, werr
			}
		}

		res, cerr := r.client.Generate(ctx, &providers.ContentRequest{
			Prompt: req.PromptContext,
			System: req.System,
			Params: req.Params,
		})
		if cerr != nil {
			if r.limiter != nil && providers.KindOf(cerr) == providers.KindRateLimited {
				r.limiter.Record429(providers.RetryAfterOf(cerr))
			}
			return nil, cerr
		}
		return res, nil
	})
	if err != nil {
		var retryErr *retry.Error
		if errors.As(err, &retryErr) {
			attempts = retryErr.Attempts
		}
		return generation{attempts: attempts}, err
	}

	if useCache {
		entry := &cache.Entry{
			Content:  result.Text,
			Provider: result.Provider,
			Model:    result.ModelUsed,
		}
		if perr := r.store.Put(key, entry); perr != nil {
			r.logger.Warn("failed to write cache entry", "chapter", req.ChapterIndex, "error", perr)
		}
	}

	return generation{result: result, attempts: attempts}, nil
}
