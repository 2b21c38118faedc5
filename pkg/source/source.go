// Package source adapts a remote paginated JSON endpoint to a
// pagination.Pager.
//
// Remote pages are 1-based; pager pages are 0-based, so pager page i is remote
// page i+1. The page size is taken from the length of the first remote page.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/pagedlist/pkg/client"
	"github.com/Sternrassler/pagedlist/pkg/logging"
	"github.com/Sternrassler/pagedlist/pkg/pagination"
)

// ErrDecode is returned when a page body is not a JSON array of the element type.
var ErrDecode = errors.New("decode page")

// PageFetcher fetches one 1-based page of an endpoint.
// *client.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, endpoint string, pageNum int) ([]byte, client.PageMeta, error)
}

// New fetches the first page of endpoint and returns a pager over the whole
// collection with page 0 already populated.
//
// The total comes from X-Total-Count. When only X-Pages is sent, the last page
// is fetched once to count its elements.
func New[T any](ctx context.Context, fetcher PageFetcher, endpoint string) (pagination.Pager[T], error) {
	logger := logging.NewLogger(logging.ComponentSource)

	data, meta, err := fetcher.FetchPage(ctx, endpoint, 1)
	if err != nil {
		return pagination.Pager[T]{}, err
	}
	first, err := decode[T](data, 1)
	if err != nil {
		return pagination.Pager[T]{}, err
	}

	getPage := func(ctx context.Context, pageIndex int) ([]T, error) {
		data, _, err := fetcher.FetchPage(ctx, endpoint, pageIndex+1)
		if err != nil {
			return nil, err
		}
		return decode[T](data, pageIndex+1)
	}

	if len(first) == 0 {
		logger.Debug().Str("endpoint", endpoint).Msg("Endpoint is empty")
		return pagination.Pager[T]{
			PageSize:  1,
			FirstPage: first,
			GetPage:   getPage,
		}, nil
	}

	pageSize := len(first)
	total, err := totalFor(ctx, fetcher, endpoint, meta, pageSize)
	if err != nil {
		return pagination.Pager[T]{}, err
	}
	if total < len(first) {
		first = first[:total]
	}

	logger.Debug().
		Str("endpoint", endpoint).
		Int("total", total).
		Int("page_size", pageSize).
		Int("remote_pages", meta.TotalPages).
		Msg("Remote pager created")

	return pagination.Pager[T]{
		Total:     total,
		PageSize:  pageSize,
		FirstPage: first,
		GetPage:   getPage,
	}, nil
}

// NewRaw is New for undecoded JSON elements.
func NewRaw(ctx context.Context, fetcher PageFetcher, endpoint string) (pagination.Pager[json.RawMessage], error) {
	return New[json.RawMessage](ctx, fetcher, endpoint)
}

// totalFor works out the element count from the first page's metadata.
func totalFor(ctx context.Context, fetcher PageFetcher, endpoint string, meta client.PageMeta, pageSize int) (int, error) {
	if meta.TotalItems > 0 {
		return meta.TotalItems, nil
	}
	if meta.TotalPages <= 1 {
		return pageSize, nil
	}

	data, _, err := fetcher.FetchPage(ctx, endpoint, meta.TotalPages)
	if err != nil {
		return 0, fmt.Errorf("count last page: %w", err)
	}
	var last []json.RawMessage
	if err := json.Unmarshal(data, &last); err != nil {
		return 0, fmt.Errorf("%w %d: %v", ErrDecode, meta.TotalPages, err)
	}
	if len(last) == 0 || len(last) > pageSize {
		return 0, fmt.Errorf("last page %d holds %d elements, page size is %d",
			meta.TotalPages, len(last), pageSize)
	}
	return (meta.TotalPages-1)*pageSize + len(last), nil
}

func decode[T any](data []byte, pageNum int) ([]T, error) {
	var elements []T
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("%w %d: %v", ErrDecode, pageNum, err)
	}
	if elements == nil {
		elements = []T{}
	}
	return elements, nil
}
