package pagination

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/pagedlist/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Model is a random-access view over a lazily loaded collection.
type Model[T any] interface {
	// Len returns the number of addressable indices.
	Len() int

	// Get returns the cached element at index, or the zero value if its
	// page is not resolved. It never fetches.
	Get(index int) T

	// IsResolved reports whether the element at index has been fetched.
	IsResolved(index int) bool

	// Resolve returns the element at index, fetching its page if needed.
	Resolve(ctx context.Context, index int) (T, error)
}

// Option configures a model.
type Option func(*options)

type options struct {
	name   string
	logger *zerolog.Logger
}

// WithName sets the model name used in logs and metric labels.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger overrides the model logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

func buildOptions(opts []Option) options {
	o := options{name: "default"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		l := logging.NewLogger(logging.ComponentPagination)
		o.logger = &l
	}
	return o
}

// page is one cache slot: unresolved, fetching (fetch.active) or resolved.
type page[T any] struct {
	resolved bool
	elements []T
	fetch    inflight
}

// PagedModel is a page-granular cache over a Pager.
//
// Concurrent Resolve calls for indices of the same unresolved page share one
// fetch. A fetch is cancelled only once every caller waiting on it has given
// up. Resolved pages are kept for the lifetime of the model.
type PagedModel[T any] struct {
	pager  Pager[T]
	name   string
	logger zerolog.Logger

	mu     sync.Mutex
	pages  []*page[T]
	flight singleflight.Group
}

// NewPagedModel creates a model with one page slot per pager page.
// Page 0 starts resolved when the pager carries a first page.
func NewPagedModel[T any](pager Pager[T], opts ...Option) (*PagedModel[T], error) {
	if err := pager.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	m := &PagedModel[T]{
		pager:  pager,
		name:   o.name,
		logger: o.logger.With().Str("model", o.name).Logger(),
		pages:  make([]*page[T], pager.PageCount()),
	}
	for i := range m.pages {
		m.pages[i] = &page[T]{}
	}

	if len(m.pages) > 0 && pager.FirstPage != nil {
		want := pager.expectedLen(0)
		if len(pager.FirstPage) < want {
			return nil, fmt.Errorf("%w: first page holds %d elements, want %d",
				ErrInvalidPager, len(pager.FirstPage), want)
		}
		first := make([]T, want)
		copy(first, pager.FirstPage)
		m.pages[0].resolved = true
		m.pages[0].elements = first
	}

	m.logger.Debug().
		Int("total", pager.Total).
		Int("page_size", pager.PageSize).
		Int("pages", len(m.pages)).
		Msg("Paged model created")

	return m, nil
}

// NewPagedModelFromSlice creates a fully resolved model over elements.
func NewPagedModelFromSlice[T any](elements []T, opts ...Option) (*PagedModel[T], error) {
	return NewPagedModel(SinglePagePager(elements), opts...)
}

// Len returns the total number of elements.
func (m *PagedModel[T]) Len() int {
	return m.pager.Total
}

// PageSize returns the pager page size.
func (m *PagedModel[T]) PageSize() int {
	return m.pager.PageSize
}

// PageCount returns the number of page slots.
func (m *PagedModel[T]) PageCount() int {
	return len(m.pages)
}

// Locate maps an index to its page and offset within that page.
func (m *PagedModel[T]) Locate(index int) (pageIndex, offset int, ok bool) {
	if index < 0 || index >= m.pager.Total {
		return 0, 0, false
	}
	return index / m.pager.PageSize, index % m.pager.PageSize, true
}

// ResolvedPages returns the number of resolved pages.
func (m *PagedModel[T]) ResolvedPages() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, p := range m.pages {
		if p.resolved {
			n++
		}
	}
	return n
}

// Get returns the cached element at index or the zero value.
func (m *PagedModel[T]) Get(index int) T {
	var zero T

	pageIndex, offset, ok := m.Locate(index)
	if !ok {
		return zero
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.pages[pageIndex]
	if offset >= len(p.elements) {
		return zero
	}
	return p.elements[offset]
}

// IsResolved reports whether the page owning index has been fetched.
func (m *PagedModel[T]) IsResolved(index int) bool {
	pageIndex, _, ok := m.Locate(index)
	if !ok {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages[pageIndex].resolved
}

// Resolve returns the element at index, fetching its page if necessary.
//
// The returned error wraps ErrCancelled when ctx is done first. Fetch errors
// are returned unchanged and leave the page unresolved.
func (m *PagedModel[T]) Resolve(ctx context.Context, index int) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		Resolves.WithLabelValues(m.name, outcomeCancelled).Inc()
		return zero, cancelled(err)
	}

	pageIndex, offset, ok := m.Locate(index)
	if !ok {
		return zero, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, m.pager.Total)
	}

	m.mu.Lock()
	p := m.pages[pageIndex]
	if p.resolved {
		element := p.elements[offset]
		m.mu.Unlock()
		Resolves.WithLabelValues(m.name, outcomeHit).Inc()
		return element, nil
	}

	outcome := outcomeCoalesced
	if !p.fetch.active {
		gen := p.fetch.start(ctx, func(fetchCtx context.Context, gen uint64) (any, error) {
			return m.fetch(fetchCtx, pageIndex, gen)
		})
		outcome = outcomeFetched
		m.logger.Debug().
			Int("page", pageIndex).
			Uint64("gen", gen).
			Msg("Starting page fetch")
	}
	p.fetch.waiters++
	gen := p.fetch.gen
	ch := m.flight.DoChan(flightKey(strconv.Itoa(pageIndex), gen), p.fetch.call)
	m.mu.Unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			Resolves.WithLabelValues(m.name, outcomeError).Inc()
			return zero, res.Err
		}
		Resolves.WithLabelValues(m.name, outcome).Inc()
		return res.Val.([]T)[offset], nil

	case <-ctx.Done():
		m.release(pageIndex, gen)
		Resolves.WithLabelValues(m.name, outcomeCancelled).Inc()
		m.logger.Debug().
			Int("index", index).
			Int("page", pageIndex).
			Msg("Resolve cancelled by caller")
		return zero, cancelled(ctx.Err())
	}
}

// fetch runs the pager fetch and applies the result to the page if the fetch
// is still current.
func (m *PagedModel[T]) fetch(ctx context.Context, pageIndex int, gen uint64) (any, error) {
	start := time.Now()
	elements, err := m.pager.GetPage(ctx, pageIndex)
	duration := time.Since(start)
	PageFetchDuration.WithLabelValues(m.name).Observe(duration.Seconds())

	if err == nil {
		want := m.pager.expectedLen(pageIndex)
		if len(elements) < want {
			err = fmt.Errorf("%w: page %d has %d elements, want %d",
				ErrShortPage, pageIndex, len(elements), want)
		} else {
			elements = elements[:want:want]
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.pages[pageIndex]
	if !p.fetch.current(gen) {
		PageFetches.WithLabelValues(m.name, "aborted").Inc()
		m.logger.Debug().
			Int("page", pageIndex).
			Uint64("gen", gen).
			Dur("duration", duration).
			Msg("Discarding abandoned page fetch")
		return nil, cancelled(ctx.Err())
	}

	p.fetch.finish()

	if err != nil {
		PageFetches.WithLabelValues(m.name, "error").Inc()
		m.logger.Warn().
			Err(err).
			Int("page", pageIndex).
			Dur("duration", duration).
			Msg("Page fetch failed")
		return nil, err
	}

	p.resolved = true
	p.elements = elements

	PageFetches.WithLabelValues(m.name, "success").Inc()
	m.logger.Debug().
		Int("page", pageIndex).
		Int("elements", len(elements)).
		Dur("duration", duration).
		Msg("Page resolved")

	return elements, nil
}

// release drops one waiter from the fetch identified by gen and cancels the
// fetch when none remain.
func (m *PagedModel[T]) release(pageIndex int, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pages[pageIndex].fetch.leave(gen) {
		m.logger.Debug().
			Int("page", pageIndex).
			Uint64("gen", gen).
			Msg("Page fetch cancelled, no waiters left")
	}
}
