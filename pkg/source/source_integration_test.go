//go:build integration

package source

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/pagedlist/internal/testutil"
	"github.com/Sternrassler/pagedlist/pkg/client"
	"github.com/Sternrassler/pagedlist/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(ctx)
	})
	return redisClient
}

func setupStack(t *testing.T, opts testutil.PaginatedOptions, n int) (*testutil.MockAPI, *client.Client) {
	t.Helper()

	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)
	mock.SetPaginated("/v1/items", testutil.MakeItems(n), opts)

	cfg := client.DefaultConfig(setupRedis(t), mock.URL(), "pagedlist-integration/1.0")
	cfg.InitialBackoff = time.Millisecond
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return mock, c
}

func TestIntegration_ResolveAcrossPages(t *testing.T) {
	mock, c := setupStack(t, testutil.PaginatedOptions{PageSize: 10, OmitTotalCount: true}, 95)
	ctx := context.Background()

	pager, err := New[testutil.Item](ctx, c, "/v1/items")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if pager.Total != 95 {
		t.Fatalf("Total = %d, want 95", pager.Total)
	}

	model, err := pagination.NewPagedModel(pager, pagination.WithName("integration"))
	if err != nil {
		t.Fatalf("NewPagedModel() error = %v", err)
	}

	for _, i := range []int{0, 9, 10, 55, 94} {
		got, err := model.Resolve(ctx, i)
		if err != nil {
			t.Fatalf("Resolve(%d) error = %v", i, err)
		}
		if got.ID != i {
			t.Errorf("Resolve(%d) = %+v", i, got)
		}
	}

	// Page 10 was fetched once to count and once more by the model, which the
	// response cache absorbs.
	if got := mock.PageRequests("/v1/items", 10); got != 1 {
		t.Errorf("remote page 10 requested %d times, want 1", got)
	}
	if got := mock.PageRequests("/v1/items", 2); got != 1 {
		t.Errorf("remote page 2 requested %d times, want 1", got)
	}
}

func TestIntegration_ConcurrentResolveSharesFetch(t *testing.T) {
	mock, c := setupStack(t, testutil.PaginatedOptions{PageSize: 10, Delay: 100 * time.Millisecond}, 50)
	ctx := context.Background()

	pager, err := New[testutil.Item](ctx, c, "/v1/items")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	model, err := pagination.NewPagedModel(pager)
	if err != nil {
		t.Fatalf("NewPagedModel() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 30; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := model.Resolve(ctx, i)
			if err != nil {
				t.Errorf("Resolve(%d) error = %v", i, err)
				return
			}
			if got.ID != i {
				t.Errorf("Resolve(%d) = %+v", i, got)
			}
		}(i)
	}
	wg.Wait()

	if got := mock.PageRequests("/v1/items", 4); got != 1 {
		t.Errorf("remote page 4 requested %d times, want 1", got)
	}
}

func TestIntegration_CancelAbortsRemoteRequest(t *testing.T) {
	mock, c := setupStack(t, testutil.PaginatedOptions{PageSize: 10}, 50)
	ctx := context.Background()

	pager, err := New[testutil.Item](ctx, c, "/v1/items")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	model, err := pagination.NewPagedModel(pager)
	if err != nil {
		t.Fatalf("NewPagedModel() error = %v", err)
	}

	// Pages after the first are slow from here on.
	mock.SetPaginated("/v1/items", testutil.MakeItems(50), testutil.PaginatedOptions{PageSize: 10, Delay: time.Minute})

	resolveCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	_, err = model.Resolve(resolveCtx, 25)
	if !pagination.IsCancelled(err) {
		t.Fatalf("Resolve() error = %v, want cancellation", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for mock.CancelledCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if mock.CancelledCount() == 0 {
		t.Error("remote request was not aborted after the last waiter left")
	}
	if model.IsResolved(25) {
		t.Error("page should be unresolved after cancellation")
	}
}

func TestIntegration_FetchFailureThenRetry(t *testing.T) {
	mock, c := setupStack(t, testutil.PaginatedOptions{PageSize: 10}, 30)
	ctx := context.Background()

	pager, err := New[testutil.Item](ctx, c, "/v1/items")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	model, err := pagination.NewPagedModel(pager)
	if err != nil {
		t.Fatalf("NewPagedModel() error = %v", err)
	}

	mock.FailPage("/v1/items", 2, http.StatusBadGateway, 3)

	_, err = model.Resolve(ctx, 15)
	if !errors.Is(err, client.ErrRetryExhausted) {
		t.Fatalf("Resolve() error = %v, want ErrRetryExhausted", err)
	}
	if model.IsResolved(15) {
		t.Error("failed page must stay unresolved")
	}

	got, err := model.Resolve(ctx, 15)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if got.ID != 15 {
		t.Errorf("Resolve(15) = %+v", got)
	}
}
