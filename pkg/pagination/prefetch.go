package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PrefetchConfig holds prefetcher configuration.
type PrefetchConfig struct {
	// MaxConcurrency is the maximum number of pages resolved in parallel.
	MaxConcurrency int
	// Timeout per page resolution.
	Timeout time.Duration
}

// DefaultPrefetchConfig returns the default prefetch configuration.
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// PrefetchResult summarizes a prefetch run.
type PrefetchResult struct {
	Requested int
	Resolved  int
	Failed    int
	Duration  time.Duration
}

// Prefetcher warms a model by resolving whole ranges with a worker pool.
type Prefetcher struct {
	config PrefetchConfig
}

// NewPrefetcher creates a prefetcher, filling zero config values with defaults.
func NewPrefetcher(config PrefetchConfig) *Prefetcher {
	defaults := DefaultPrefetchConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &Prefetcher{config: config}
}

// pageSizer is implemented by models with fixed-size pages.
type pageSizer interface {
	PageSize() int
}

// Prefetch resolves every page of model covering [from, to) by resolving the
// first index of each page. Models without a fixed page size are resolved
// index by index. It returns the first resolution error, if any, alongside
// the counts.
func Prefetch[T any](ctx context.Context, p *Prefetcher, model Model[T], from, to int) (PrefetchResult, error) {
	start := time.Now()

	pageSize := 1
	if ps, ok := model.(pageSizer); ok && ps.PageSize() > 0 {
		pageSize = ps.PageSize()
	}
	if from < 0 {
		from = 0
	}
	if length := model.Len(); to > length {
		to = length
	}
	if from >= to {
		return PrefetchResult{}, nil
	}

	var indices []int
	for i := from; i < to; i = (i/pageSize + 1) * pageSize {
		if !model.IsResolved(i) {
			indices = append(indices, i)
		}
	}

	result := PrefetchResult{Requested: len(indices)}
	if len(indices) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	log.Debug().
		Int("from", from).
		Int("to", to).
		Int("pages", len(indices)).
		Msg("Starting prefetch")

	queue := make(chan int, len(indices))
	for _, i := range indices {
		queue <- i
	}
	close(queue)

	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)

	workers := p.config.MaxConcurrency
	if workers > len(indices) {
		workers = len(indices)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for index := range queue {
				if ctx.Err() != nil {
					return
				}

				pageCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
				_, err := model.Resolve(pageCtx, index)
				cancel()

				mu.Lock()
				if err != nil {
					result.Failed++
					if firstErr == nil {
						firstErr = err
					}
				} else {
					result.Resolved++
				}
				mu.Unlock()

				if err != nil && !IsCancelled(err) {
					log.Warn().
						Err(err).
						Int("worker_id", workerID).
						Int("index", index).
						Msg("Prefetch resolve failed")
				}
			}
		}(w)
	}
	wg.Wait()

	result.Duration = time.Since(start)

	if firstErr == nil && ctx.Err() != nil {
		firstErr = cancelled(ctx.Err())
	}
	if firstErr != nil {
		return result, fmt.Errorf("prefetch (%d/%d pages resolved): %w",
			result.Resolved, result.Requested, firstErr)
	}

	log.Debug().
		Int("pages", result.Resolved).
		Dur("duration", result.Duration).
		Msg("Prefetch complete")

	return result, nil
}
