package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Pagination response headers.
const (
	HeaderPages      = "X-Pages"
	HeaderTotalCount = "X-Total-Count"
)

// PageMeta is the pagination metadata of a page response. Zero means the
// header was absent.
type PageMeta struct {
	TotalPages int
	TotalItems int
}

// parsePageMeta reads PageMeta from response headers.
func parsePageMeta(h http.Header) (PageMeta, error) {
	var meta PageMeta
	if raw := h.Get(HeaderPages); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return PageMeta{}, fmt.Errorf("invalid %s header %q", HeaderPages, raw)
		}
		meta.TotalPages = n
	}
	if raw := h.Get(HeaderTotalCount); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return PageMeta{}, fmt.Errorf("invalid %s header %q", HeaderTotalCount, raw)
		}
		meta.TotalItems = n
	}
	return meta, nil
}

// FetchPage fetches the 1-based page pageNum of endpoint and returns its body
// and pagination metadata. Non-2xx responses become an *APIError.
func (c *Client) FetchPage(ctx context.Context, endpoint string, pageNum int) ([]byte, PageMeta, error) {
	if pageNum < 1 {
		return nil, PageMeta{}, fmt.Errorf("page number must be >= 1 (got %d)", pageNum)
	}

	resp, err := c.Get(ctx, endpoint, url.Values{"page": {strconv.Itoa(pageNum)}})
	if err != nil {
		return nil, PageMeta{}, fmt.Errorf("fetch %s page %d: %w", endpoint, pageNum, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, PageMeta{}, fmt.Errorf("fetch %s page %d: %w", endpoint, pageNum, newAPIError(resp))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, PageMeta{}, fmt.Errorf("read %s page %d: %w", endpoint, pageNum, err)
	}

	meta, err := parsePageMeta(resp.Header)
	if err != nil {
		return nil, PageMeta{}, fmt.Errorf("fetch %s page %d: %w", endpoint, pageNum, err)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("page", pageNum).
		Int("total_pages", meta.TotalPages).
		Int("bytes", len(body)).
		Msg("Fetched page")

	return body, meta, nil
}
