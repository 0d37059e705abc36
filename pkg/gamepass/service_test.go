package gamepass

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/gamepasses-api/internal/testutil"
	"github.com/Sternrassler/gamepasses-api/pkg/cache"
)

// stubProvider returns canned results and counts invocations.
type stubProvider struct {
	calls   atomic.Int32
	passes  []Pass
	err     error
	release chan struct{}
}

func (p *stubProvider) Aggregate(ctx context.Context, _ string) ([]Pass, error) {
	p.calls.Add(1)
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.passes, p.err
}

// failingCache misses on every Get and fails every Put.
type failingCache struct {
	getErr error
}

func (c failingCache) Get(context.Context, string) ([]Pass, error) { return nil, c.getErr }
func (c failingCache) Put(context.Context, string, []Pass) error  { return errors.New("store down") }
func (c failingCache) TTL() time.Duration                          { return time.Minute }

func newMemoryCache(t *testing.T) *cache.MemoryStore[[]Pass] {
	t.Helper()
	store := cache.NewMemoryStore[[]Pass](cache.DefaultTTL)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestService_Page_WorkedExample(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	mock.SetGames("123", []int64{1, 2})
	mock.SetGamePasses(1, passesPricedAt(100, 30, 10, 20))
	mock.SetGamePasses(2, passesPricedAt(200, 5, 15, 25))

	svc := NewService(newTestAggregator(t, DefaultConfig(), mock.URL()), newMemoryCache(t), true)

	page, err := svc.Page(context.Background(), "123", 0, 3)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}

	if got := fmt.Sprint(prices(page.Data)); got != "[5 10 15]" {
		t.Errorf("Data prices = %s, want [5 10 15]", got)
	}
	if page.Total != 6 {
		t.Errorf("Total = %d, want 6", page.Total)
	}
	if !page.HasMore {
		t.Error("Expected hasMore")
	}

	last, err := svc.Page(context.Background(), "123", 3, 3)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if got := fmt.Sprint(prices(last.Data)); got != "[20 25 30]" || last.HasMore {
		t.Errorf("Second window = %s hasMore=%v, want [20 25 30] false", got, last.HasMore)
	}
}

func TestService_ServesFromCache(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	mock.SetGames("123", []int64{1})
	mock.SetGamePasses(1, passesPricedAt(100, 10, 20))

	svc := NewService(newTestAggregator(t, DefaultConfig(), mock.URL()), newMemoryCache(t), false)
	ctx := context.Background()

	if _, err := svc.Page(ctx, "123", 0, 50); err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	requests := mock.GetRequestCount()

	for _, window := range [][2]int{{0, 1}, {1, 1}, {5, 10}} {
		if _, err := svc.Page(ctx, "123", window[0], window[1]); err != nil {
			t.Fatalf("Page failed: %v", err)
		}
	}

	if got := mock.GetRequestCount(); got != requests {
		t.Errorf("Expected cached reads to make no upstream calls, got %d more", got-requests)
	}
}

func TestService_RecomputesAfterExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	provider := &stubProvider{passes: []Pass{{ID: 1, Price: 5}}}
	svc := NewService(provider, cache.NewRedisStore[[]Pass](client, 600*time.Second), true)
	ctx := context.Background()

	svc.Page(ctx, "123", 0, 50)
	svc.Page(ctx, "123", 0, 50)
	if got := provider.calls.Load(); got != 1 {
		t.Fatalf("Expected 1 aggregation within TTL, got %d", got)
	}

	mr.FastForward(601 * time.Second)

	page, err := svc.Page(ctx, "123", 0, 50)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if got := provider.calls.Load(); got != 2 {
		t.Errorf("Expected a fresh aggregation after TTL, got %d calls", got)
	}
	if page.Total != 1 {
		t.Errorf("Total = %d, want 1", page.Total)
	}
}

func TestService_FailureLeavesCacheUntouched(t *testing.T) {
	store := newMemoryCache(t)
	provider := &stubProvider{err: fmt.Errorf("%w: boom", ErrGamesFetch)}
	svc := NewService(provider, store, true)
	ctx := context.Background()

	if _, err := svc.Page(ctx, "9", 0, 50); !errors.Is(err, ErrGamesFetch) {
		t.Fatalf("Expected ErrGamesFetch, got %v", err)
	}
	if _, err := store.Get(ctx, cache.Key("9")); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("Expected no cache entry after a failed run, got %v", err)
	}

	provider.err = nil
	provider.passes = []Pass{{ID: 1, Price: 1}}
	if _, err := svc.Page(ctx, "9", 0, 50); err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if got := provider.calls.Load(); got != 2 {
		t.Errorf("Expected the failed run to be retried on the next request, got %d calls", got)
	}
}

func TestService_CacheErrorsDoNotFailRequests(t *testing.T) {
	provider := &stubProvider{passes: []Pass{{ID: 1, Price: 1}, {ID: 2, Price: 2}}}
	svc := NewService(provider, failingCache{getErr: errors.New("connection refused")}, false)

	page, err := svc.Page(context.Background(), "1", 0, 1)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if page.Total != 2 || len(page.Data) != 1 {
		t.Errorf("Unexpected page %+v", page)
	}
}

func TestService_CoalescesConcurrentMisses(t *testing.T) {
	provider := &stubProvider{
		passes:  []Pass{{ID: 1, Price: 1}},
		release: make(chan struct{}),
	}
	svc := NewService(provider, newMemoryCache(t), true)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Page(context.Background(), "1", 0, 50)
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(provider.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Page failed: %v", err)
		}
	}
	if got := provider.calls.Load(); got != 1 {
		t.Errorf("Expected one shared aggregation, got %d", got)
	}
}

func TestService_CallerCancellation(t *testing.T) {
	provider := &stubProvider{
		passes:  []Pass{{ID: 1, Price: 1}},
		release: make(chan struct{}),
	}
	defer close(provider.release)

	svc := NewService(provider, newMemoryCache(t), true)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := svc.Page(ctx, "1", 0, 50); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestNewService_Panics(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		store    cache.Cache[[]Pass]
	}{
		{name: "nil provider", store: failingCache{}},
		{name: "nil cache", provider: &stubProvider{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Error("NewService should panic")
				}
			}()
			NewService(tt.provider, tt.store, true)
		})
	}
}
