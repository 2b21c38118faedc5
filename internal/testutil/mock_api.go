// Package testutil provides a mock paginated JSON API for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// Item is the element type served by paginated mock endpoints.
type Item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MakeItems returns n items with IDs 0..n-1.
func MakeItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{ID: i, Name: fmt.Sprintf("item-%d", i)}
	}
	return items
}

// MockResponse is a canned response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// PaginatedOptions controls how a paginated endpoint behaves.
type PaginatedOptions struct {
	// PageSize is the number of items per page. Defaults to 10.
	PageSize int

	// OmitTotalCount drops the X-Total-Count header so clients must derive
	// the total from X-Pages.
	OmitTotalCount bool

	// ETags enables per-page ETags and 304 responses.
	ETags bool

	// Delay is applied before each page response. A request whose context
	// ends during the delay is counted as cancelled.
	Delay time.Duration

	// Remaining is reported in X-RateLimit-Remaining. Defaults to 100.
	Remaining int
}

type paginated struct {
	items []Item
	opts  PaginatedOptions
}

type failure struct {
	status int
	times  int
}

// MockAPI is a configurable mock API server.
type MockAPI struct {
	server *httptest.Server

	mu                sync.Mutex
	handlers          map[string]http.HandlerFunc
	pages             map[string]*paginated
	failures          map[string]map[int]*failure
	pageRequests      map[string]map[int]int
	requestCount      int
	conditionalCount  int
	cancelledCount    int
	lastRequestHeader http.Header
}

// NewMockAPI starts a mock API server.
func NewMockAPI() *MockAPI {
	m := &MockAPI{
		handlers:     make(map[string]http.HandlerFunc),
		pages:        make(map[string]*paginated),
		failures:     make(map[string]map[int]*failure),
		pageRequests: make(map[string]map[int]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the server base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.conditionalCount = 0
	m.cancelledCount = 0
	m.lastRequestHeader = nil
	m.pageRequests = make(map[string]map[int]int)
}

// SetHandler installs a custom handler for path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse installs a canned response for path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetPaginated serves items at path, split into pages selected by the
// 1-based "page" query parameter.
func (m *MockAPI) SetPaginated(path string, items []Item, opts PaginatedOptions) {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.Remaining == 0 {
		opts.Remaining = 100
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[path] = &paginated{items: items, opts: opts}
}

// FailPage makes the next times requests for page of path answer status.
func (m *MockAPI) FailPage(path string, page, status, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures[path] == nil {
		m.failures[path] = make(map[int]*failure)
	}
	m.failures[path][page] = &failure{status: status, times: times}
}

// RequestCount returns the number of requests served.
func (m *MockAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// ConditionalCount returns the number of conditional requests received.
func (m *MockAPI) ConditionalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conditionalCount
}

// CancelledCount returns the number of page requests abandoned by the client.
func (m *MockAPI) CancelledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelledCount
}

// PageRequests returns how often page of path was requested.
func (m *MockAPI) PageRequests(path string, page int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pageRequests[path][page]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequestHeader
}

func (m *MockAPI) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.lastRequestHeader = r.Header.Clone()
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.conditionalCount++
	}
	handler, hasHandler := m.handlers[r.URL.Path]
	p, hasPages := m.pages[r.URL.Path]
	m.mu.Unlock()

	switch {
	case hasHandler:
		handler(w, r)
	case hasPages:
		m.servePage(w, r, p)
	default:
		writeBudget(w, 100)
		http.NotFound(w, r)
	}
}

func (m *MockAPI) servePage(w http.ResponseWriter, r *http.Request, p *paginated) {
	path := r.URL.Path

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		page = n
	}

	m.mu.Lock()
	if m.pageRequests[path] == nil {
		m.pageRequests[path] = make(map[int]int)
	}
	m.pageRequests[path][page]++
	var failStatus int
	if f := m.failures[path][page]; f != nil && f.times > 0 {
		f.times--
		failStatus = f.status
	}
	m.mu.Unlock()

	if p.opts.Delay > 0 {
		timer := time.NewTimer(p.opts.Delay)
		select {
		case <-timer.C:
		case <-r.Context().Done():
			timer.Stop()
			m.mu.Lock()
			m.cancelledCount++
			m.mu.Unlock()
			return
		}
	}

	writeBudget(w, p.opts.Remaining)

	if failStatus != 0 {
		http.Error(w, http.StatusText(failStatus), failStatus)
		return
	}

	pageCount := (len(p.items) + p.opts.PageSize - 1) / p.opts.PageSize
	if pageCount == 0 {
		pageCount = 1
	}
	if page < 1 || page > pageCount {
		http.NotFound(w, r)
		return
	}

	start := (page - 1) * p.opts.PageSize
	end := min(start+p.opts.PageSize, len(p.items))

	w.Header().Set("X-Pages", strconv.Itoa(pageCount))
	if !p.opts.OmitTotalCount {
		w.Header().Set("X-Total-Count", strconv.Itoa(len(p.items)))
	}
	w.Header().Set("Expires", time.Now().Add(5*time.Minute).UTC().Format(http.TimeFormat))

	if p.opts.ETags {
		etag := fmt.Sprintf(`"%s-%d"`, path, page)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(p.items[start:end])
}

func writeBudget(w http.ResponseWriter, remaining int) {
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", "60")
}

// NewHealthyResponse returns a 200 response carrying data and a healthy budget.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "100",
			"X-RateLimit-Reset":     "60",
			"ETag":                  `"test-etag-123"`,
			"Expires":               time.Now().Add(5 * time.Minute).UTC().Format(http.TimeFormat),
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse returns a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "internal server error"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "95",
			"X-RateLimit-Reset":     "60",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse returns a 429 response with a low budget.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "rate limit exceeded"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "10",
			"X-RateLimit-Reset":     "30",
			"Retry-After":           "1",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}
