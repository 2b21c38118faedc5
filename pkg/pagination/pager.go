package pagination

import (
	"context"
	"fmt"
)

// PageFunc fetches the page with the given zero-based index.
// Implementations must honour ctx cancellation.
type PageFunc[T any] func(ctx context.Context, pageIndex int) ([]T, error)

// Pager describes a remote paginated collection.
type Pager[T any] struct {
	// Total is the number of elements in the collection.
	Total int

	// PageSize is the fixed number of elements per page (the last page may hold fewer).
	PageSize int

	// FirstPage holds the already available elements of page 0.
	// A nil FirstPage means page 0 is fetched lazily like any other page.
	FirstPage []T

	// GetPage fetches a page by index.
	GetPage PageFunc[T]
}

// PageCount returns ceil(Total / PageSize).
func (p Pager[T]) PageCount() int {
	if p.PageSize <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// Validate checks the pager invariants.
func (p Pager[T]) Validate() error {
	if p.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be > 0 (got %d)", ErrInvalidPager, p.PageSize)
	}
	if p.Total < 0 {
		return fmt.Errorf("%w: total must be >= 0 (got %d)", ErrInvalidPager, p.Total)
	}
	if p.GetPage == nil {
		return fmt.Errorf("%w: page function is required", ErrInvalidPager)
	}
	if len(p.FirstPage) > p.PageSize {
		return fmt.Errorf("%w: first page holds %d elements, page size is %d",
			ErrInvalidPager, len(p.FirstPage), p.PageSize)
	}
	return nil
}

// expectedLen returns how many elements the page at pageIndex must hold.
func (p Pager[T]) expectedLen(pageIndex int) int {
	remaining := p.Total - pageIndex*p.PageSize
	if remaining > p.PageSize {
		return p.PageSize
	}
	return remaining
}

// MapPager returns a pager whose elements are fn applied to the elements of p.
// The first page is mapped eagerly, fetched pages lazily. Nothing is cached.
func MapPager[T, U any](p Pager[T], fn func(T) U) Pager[U] {
	mapped := Pager[U]{
		Total:    p.Total,
		PageSize: p.PageSize,
	}
	if p.FirstPage != nil {
		mapped.FirstPage = mapSlice(p.FirstPage, fn)
	}
	if p.GetPage != nil {
		mapped.GetPage = func(ctx context.Context, pageIndex int) ([]U, error) {
			elements, err := p.GetPage(ctx, pageIndex)
			if err != nil {
				return nil, err
			}
			return mapSlice(elements, fn), nil
		}
	}
	return mapped
}

// SinglePagePager returns a pager holding all elements in its first page.
func SinglePagePager[T any](elements []T) Pager[T] {
	first := make([]T, len(elements))
	copy(first, elements)

	pageSize := len(first)
	if pageSize == 0 {
		pageSize = 1
	}

	return Pager[T]{
		Total:     len(first),
		PageSize:  pageSize,
		FirstPage: first,
		GetPage: func(ctx context.Context, pageIndex int) ([]T, error) {
			return nil, fmt.Errorf("single page pager has no page %d", pageIndex)
		},
	}
}

func mapSlice[T, U any](in []T, fn func(T) U) []U {
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
