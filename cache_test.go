package reqflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"
)

func successResult(body string, header http.Header) *CachedResult {
	return &CachedResult{
		Status:   CacheStatusSuccess,
		Response: &Response{StatusCode: http.StatusOK, Header: header, Data: []byte(body)},
		StoredAt: time.Now(),
	}
}

func TestMemoryCacheGetSet(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()

	if _, err := cache.Get(ctx, "get&/users"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}

	if err := cache.Set(ctx, "get&/users", successResult("ok", nil)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, err := cache.Get(ctx, "get&/users")
	if err != nil {
		t.Fatalf("Expected hit, got %v", err)
	}
	if got.Status != CacheStatusSuccess || string(got.Response.Data) != "ok" {
		t.Errorf("Unexpected entry %+v", got)
	}
}

func TestMemoryCacheStoresErrors(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()
	stored := errors.New("down")

	cache.Set(ctx, "k", &CachedResult{Status: CacheStatusError, Err: stored})

	got, err := cache.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Expected hit, got %v", err)
	}
	if got.Status != CacheStatusError || got.Err != stored {
		t.Errorf("Expected stored error, got %+v", got)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache(10 * time.Millisecond)
	ctx := context.Background()

	cache.Set(ctx, "k", successResult("ok", nil))
	time.Sleep(20 * time.Millisecond)

	if _, err := cache.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected expired entry to miss, got %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("Expired entry should be removed on read, got %d entries", cache.Len())
	}
}

func TestMemoryCacheHonorsCacheControl(t *testing.T) {
	cache := NewMemoryCache(time.Hour)
	ctx := context.Background()

	cache.Set(ctx, "no-store", successResult("x", http.Header{"Cache-Control": {"no-store"}}))
	if _, err := cache.Get(ctx, "no-store"); !errors.Is(err, ErrCacheMiss) {
		t.Error("no-store responses must not be cached")
	}

	cache.Set(ctx, "max-age", successResult("x", http.Header{"Cache-Control": {"max-age=0"}}))
	if _, err := cache.Get(ctx, "max-age"); !errors.Is(err, ErrCacheMiss) {
		t.Error("max-age=0 responses must not be cached")
	}

	cache.Set(ctx, "short", successResult("x", http.Header{"Cache-Control": {"public, max-age=3600"}}))
	if _, err := cache.Get(ctx, "short"); err != nil {
		t.Errorf("Expected hit, got %v", err)
	}
}

func TestMemoryCacheDeleteAndClear(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		cache.Set(ctx, fmt.Sprintf("k%d", i), successResult("ok", nil))
	}
	if cache.Len() != 10 {
		t.Fatalf("Expected 10 entries, got %d", cache.Len())
	}

	cache.Delete("k0")
	if _, err := cache.Get(ctx, "k0"); !errors.Is(err, ErrCacheMiss) {
		t.Error("Deleted entry should miss")
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Expected empty cache, got %d entries", cache.Len())
	}
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			cache.Set(ctx, key, successResult("ok", nil))
			cache.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	if cache.Len() != 5 {
		t.Errorf("Expected 5 entries, got %d", cache.Len())
	}
}

// failingCache errors on every call.
type failingCache struct{}

func (failingCache) Get(context.Context, string) (*CachedResult, error) {
	return nil, errors.New("backend down")
}

func (failingCache) Set(context.Context, string, *CachedResult) error {
	return errors.New("backend down")
}

func TestClientSurvivesFailingCache(t *testing.T) {
	ft := &fakeTransport{}
	logger := &recordingLogger{}
	client := New(WithTransport(ft), WithCustomCache(failingCache{}), WithLogger(logger))

	resp, err := client.Get(context.Background(), testUsersURL, WithRequestCache(true))
	if err != nil {
		t.Fatalf("Cache failures must not fail the call, got %v", err)
	}
	if string(resp.Data) != testUsersBody {
		t.Errorf("Unexpected body %s", resp.Data)
	}
	if !logger.contains("Cache read failed") || !logger.contains("Cache write failed") {
		t.Errorf("Expected cache failure warnings, got %v", logger.messages())
	}
}
