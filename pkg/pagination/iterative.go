package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// IterativePage is one page of a cursor-style source.
type IterativePage[T any] struct {
	Items   []T
	HasMore bool
}

// IterativePager describes a source whose size is only known once it has
// been read to the end. NextPage is never called concurrently.
type IterativePager[T any] struct {
	FirstPage IterativePage[T]
	NextPage  func(ctx context.Context) (IterativePage[T], error)
}

// IterativePagedModel exposes an IterativePager as a Model. While more pages
// exist, Len includes one extra sentinel index; resolving it loads the next
// page.
type IterativePagedModel[T any] struct {
	nextPage func(ctx context.Context) (IterativePage[T], error)
	name     string
	logger   zerolog.Logger

	mu      sync.Mutex
	items   []T
	hasMore bool
	fetch   inflight
	flight  singleflight.Group
}

// NewIterativePagedModel creates a model seeded with the pager's first page.
func NewIterativePagedModel[T any](pager IterativePager[T], opts ...Option) (*IterativePagedModel[T], error) {
	if pager.FirstPage.HasMore && pager.NextPage == nil {
		return nil, fmt.Errorf("%w: next page function is required", ErrInvalidPager)
	}

	o := buildOptions(opts)
	items := make([]T, len(pager.FirstPage.Items))
	copy(items, pager.FirstPage.Items)

	return &IterativePagedModel[T]{
		nextPage: pager.NextPage,
		name:     o.name,
		logger:   o.logger.With().Str("model", o.name).Logger(),
		items:    items,
		hasMore:  pager.FirstPage.HasMore,
	}, nil
}

// Len returns the loaded item count plus one sentinel while more pages exist.
func (m *IterativePagedModel[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lenLocked()
}

func (m *IterativePagedModel[T]) lenLocked() int {
	if m.hasMore {
		return len(m.items) + 1
	}
	return len(m.items)
}

// Loaded returns the number of items fetched so far.
func (m *IterativePagedModel[T]) Loaded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// HasMore reports whether the source has unread pages.
func (m *IterativePagedModel[T]) HasMore() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasMore
}

// Get returns the loaded item at index or the zero value.
func (m *IterativePagedModel[T]) Get(index int) T {
	var zero T

	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.items) {
		return zero
	}
	return m.items[index]
}

// IsResolved reports whether index is loaded.
func (m *IterativePagedModel[T]) IsResolved(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return index >= 0 && index < len(m.items)
}

// Resolve returns the item at index. Resolving the sentinel index loads the
// next page; callers waiting on the same load share it.
func (m *IterativePagedModel[T]) Resolve(ctx context.Context, index int) (T, error) {
	var zero T

	for {
		if err := ctx.Err(); err != nil {
			Resolves.WithLabelValues(m.name, outcomeCancelled).Inc()
			return zero, cancelled(err)
		}

		m.mu.Lock()
		if index >= 0 && index < len(m.items) {
			item := m.items[index]
			m.mu.Unlock()
			Resolves.WithLabelValues(m.name, outcomeHit).Inc()
			return item, nil
		}
		if index < 0 || index >= m.lenLocked() {
			length := m.lenLocked()
			m.mu.Unlock()
			return zero, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, length)
		}

		if !m.fetch.active {
			m.fetch.start(ctx, m.load)
		}
		m.fetch.waiters++
		gen := m.fetch.gen
		ch := m.flight.DoChan(flightKey("next", gen), m.fetch.call)
		m.mu.Unlock()

		select {
		case res := <-ch:
			if res.Err != nil {
				Resolves.WithLabelValues(m.name, outcomeError).Inc()
				return zero, res.Err
			}
			// An empty page with more to come leaves the sentinel unloaded;
			// loop to fetch the following page.

		case <-ctx.Done():
			m.mu.Lock()
			abandoned := m.fetch.leave(gen)
			m.mu.Unlock()
			if abandoned {
				m.logger.Debug().Uint64("gen", gen).Msg("Next page fetch cancelled, no waiters left")
			}
			Resolves.WithLabelValues(m.name, outcomeCancelled).Inc()
			return zero, cancelled(ctx.Err())
		}
	}
}

// load fetches the next page and appends it if the fetch is still current.
func (m *IterativePagedModel[T]) load(ctx context.Context, gen uint64) (any, error) {
	start := time.Now()
	next, err := m.nextPage(ctx)
	duration := time.Since(start)
	PageFetchDuration.WithLabelValues(m.name).Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.fetch.current(gen) {
		PageFetches.WithLabelValues(m.name, "aborted").Inc()
		return nil, cancelled(ctx.Err())
	}
	m.fetch.finish()

	if err != nil {
		PageFetches.WithLabelValues(m.name, "error").Inc()
		m.logger.Warn().
			Err(err).
			Int("loaded", len(m.items)).
			Dur("duration", duration).
			Msg("Next page fetch failed")
		return nil, err
	}

	m.items = append(m.items, next.Items...)
	m.hasMore = next.HasMore

	PageFetches.WithLabelValues(m.name, "success").Inc()
	m.logger.Debug().
		Int("items", len(next.Items)).
		Int("loaded", len(m.items)).
		Bool("has_more", m.hasMore).
		Dur("duration", duration).
		Msg("Next page loaded")

	return len(m.items), nil
}
