package pagination

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned when the caller's context is done before or
	// while an element is being resolved.
	ErrCancelled = errors.New("resolve cancelled")

	// ErrIndexOutOfRange is returned for indices outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrShortPage is returned when a page fetch yields fewer elements than
	// the page must hold.
	ErrShortPage = errors.New("page shorter than expected")

	// ErrInvalidPager is returned when a Pager fails validation.
	ErrInvalidPager = errors.New("invalid pager")
)

// cancelled wraps the context error so callers can match either ErrCancelled
// or the context sentinel (context.Canceled, context.DeadlineExceeded).
func cancelled(cause error) error {
	if cause == nil {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// IsCancelled reports whether err is a cancellation outcome.
// Cancellation is an expected result, not a fetch failure.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
