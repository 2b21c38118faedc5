package pagination

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeSource is a controllable page source for model tests.
type fakeSource struct {
	mu        sync.Mutex
	total     int
	pageSize  int
	calls     map[int]int
	failures  map[int]error
	short     map[int]bool
	gate      chan struct{}
	started   chan int
	cancelled chan int
}

func newFakeSource(total, pageSize int) *fakeSource {
	return &fakeSource{
		total:     total,
		pageSize:  pageSize,
		calls:     make(map[int]int),
		failures:  make(map[int]error),
		short:     make(map[int]bool),
		started:   make(chan int, 64),
		cancelled: make(chan int, 64),
	}
}

func item(i int) string {
	return fmt.Sprintf("item-%d", i)
}

// hold makes fetches block until release is called or their context ends.
func (s *fakeSource) hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
}

func (s *fakeSource) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

func (s *fakeSource) failOnce(pageIndex int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[pageIndex] = err
}

func (s *fakeSource) callCount(pageIndex int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pageIndex]
}

func (s *fakeSource) elements(pageIndex int) []string {
	start := pageIndex * s.pageSize
	end := start + s.pageSize
	if end > s.total {
		end = s.total
	}
	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, item(i))
	}
	return out
}

func (s *fakeSource) getPage(ctx context.Context, pageIndex int) ([]string, error) {
	s.mu.Lock()
	s.calls[pageIndex]++
	err := s.failures[pageIndex]
	delete(s.failures, pageIndex)
	short := s.short[pageIndex]
	gate := s.gate
	s.mu.Unlock()

	select {
	case s.started <- pageIndex:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			select {
			case s.cancelled <- pageIndex:
			default:
			}
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	elements := s.elements(pageIndex)
	if short {
		elements = elements[:len(elements)-1]
	}
	return elements, nil
}

func (s *fakeSource) pager(withFirstPage bool) Pager[string] {
	p := Pager[string]{
		Total:    s.total,
		PageSize: s.pageSize,
		GetPage:  s.getPage,
	}
	if withFirstPage {
		p.FirstPage = s.elements(0)
	}
	return p
}

type resolveResult struct {
	value string
	err   error
}

func resolveAsync(ctx context.Context, m Model[string], index int) <-chan resolveResult {
	ch := make(chan resolveResult, 1)
	go func() {
		v, err := m.Resolve(ctx, index)
		ch <- resolveResult{value: v, err: err}
	}()
	return ch
}

func awaitResult(t *testing.T, ch <-chan resolveResult) resolveResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Resolve")
		return resolveResult{}
	}
}

// waitForWaiters polls until the fetch of pageIndex has n waiters.
func waitForWaiters(t *testing.T, m *PagedModel[string], pageIndex, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		f := m.pages[pageIndex].fetch
		m.mu.Unlock()
		if f.active && f.waiters == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("page %d never reached %d waiters", pageIndex, n)
}
