package generate

import (
	"context"
	"log/slog"
	"sync"
)

// DispatcherConfig controls batch execution.
type DispatcherConfig struct {
	MaxWorkers int
	Parallel   bool
}

// Dispatcher fans chapter requests out to a bounded worker pool and returns
// results in input order regardless of completion order.
type Dispatcher struct {
	runner *Runner
	cfg    DispatcherConfig
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over runner.
func NewDispatcher(runner *Runner, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		runner: runner,
		cfg:    cfg,
		logger: logger.With("component", "dispatcher"),
	}
}

// Dispatch runs all requests and returns one result per request, in the same
// order as the input. A failed chapter never cancels the rest; cancellation
// of ctx propagates to in-flight provider calls.
func (d *Dispatcher) Dispatch(ctx context.Context, reqs []Request) []ChapterResult {
	if len(reqs) == 0 {
		return nil
	}

	if !d.cfg.Parallel || d.cfg.MaxWorkers <= 1 || len(reqs) <= 1 {
		return d.sequential(ctx, reqs)
	}
	return d.parallel(ctx, reqs)
}

func (d *Dispatcher) sequential(ctx context.Context, reqs []Request) []ChapterResult {
	d.logger.Debug("dispatching sequentially", "tasks", len(reqs))

	results := make([]ChapterResult, len(reqs))
	for i, req := range reqs {
		results[i] = d.runner.Run(ctx, req)
	}
	return results
}

func (d *Dispatcher) parallel(ctx context.Context, reqs []Request) []ChapterResult {
	workers := d.cfg.MaxWorkers
	if workers > len(reqs) {
		workers = len(reqs)
	}
	d.logger.Debug("dispatching in parallel", "tasks", len(reqs), "workers", workers)

	// Results are written by request index, so ordering is structural and
	// needs no collation step.
	results := make([]ChapterResult, len(reqs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = d.runner.Run(ctx, reqs[i])
			}
		}()
	}

	for i := range reqs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
