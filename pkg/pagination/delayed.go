package pagination

import (
	"context"
	"time"
)

// DefaultDelay is the settle delay used when none is configured.
const DefaultDelay = 500 * time.Millisecond

// DelayedPagedModel postpones resolutions by a fixed settle delay so that
// indices a list only scrolls past never reach the inner model.
type DelayedPagedModel[T any] struct {
	inner Model[T]
	delay time.Duration
}

// NewDelayedPagedModel wraps inner. A delay <= 0 selects DefaultDelay.
func NewDelayedPagedModel[T any](inner Model[T], delay time.Duration) *DelayedPagedModel[T] {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &DelayedPagedModel[T]{
		inner: inner,
		delay: delay,
	}
}

// Delay returns the configured settle delay.
func (d *DelayedPagedModel[T]) Delay() time.Duration {
	return d.delay
}

// PageSize returns the inner model page size, or 1 if it has none.
func (d *DelayedPagedModel[T]) PageSize() int {
	if ps, ok := d.inner.(pageSizer); ok {
		return ps.PageSize()
	}
	return 1
}

// Len passes through to the inner model.
func (d *DelayedPagedModel[T]) Len() int {
	return d.inner.Len()
}

// Get passes through to the inner model.
func (d *DelayedPagedModel[T]) Get(index int) T {
	return d.inner.Get(index)
}

// IsResolved passes through to the inner model.
func (d *DelayedPagedModel[T]) IsResolved(index int) bool {
	return d.inner.IsResolved(index)
}

// Resolve waits for the settle delay, then resolves through the inner model.
// If ctx is done before the delay elapses the inner model is never called.
func (d *DelayedPagedModel[T]) Resolve(ctx context.Context, index int) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		DelayedResolves.WithLabelValues(outcomeCancelled).Inc()
		return zero, cancelled(err)
	}

	timer := time.NewTimer(d.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		DelayedResolves.WithLabelValues(outcomeCancelled).Inc()
		return zero, cancelled(ctx.Err())
	case <-timer.C:
	}

	DelayedResolves.WithLabelValues("forwarded").Inc()
	return d.inner.Resolve(ctx, index)
}
