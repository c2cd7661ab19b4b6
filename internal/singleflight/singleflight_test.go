package singleflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDo(t *testing.T) {
	g := New[string]()

	val, shared, err := g.Do(context.Background(), "key1", func() (string, error) {
		return "hello", nil
	})

	if err != nil {
		t.Errorf("Do() returned error: %v", err)
	}
	if val != "hello" {
		t.Errorf("Do() returned %v, want hello", val)
	}
	if shared {
		t.Error("single caller should not be shared")
	}
}

func TestDoError(t *testing.T) {
	g := New[*int]()
	expectedErr := errors.New("test error")

	val, _, err := g.Do(context.Background(), "key1", func() (*int, error) {
		return nil, expectedErr
	})

	if err != expectedErr {
		t.Errorf("Do() returned error %v, want %v", err, expectedErr)
	}
	if val != nil {
		t.Errorf("Do() returned %v, want nil", val)
	}
}

func TestDoDuplicateCalls(t *testing.T) {
	g := New[string]()

	var callCount int32
	release := make(chan struct{})
	started := make(chan struct{})

	fn := func() (string, error) {
		if atomic.AddInt32(&callCount, 1) == 1 {
			close(started)
		}
		<-release
		return "result", nil
	}

	const numCalls = 10
	var wg sync.WaitGroup
	results := make([]string, numCalls)
	errs := make([]error, numCalls)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _, errs[0] = g.Do(context.Background(), "same-key", fn)
	}()
	<-started

	for i := 1; i < numCalls; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			results[index], _, errs[index] = g.Do(context.Background(), "same-key", fn)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&callCount); n != 1 {
		t.Errorf("Function called %d times, want 1", n)
	}
	for i, result := range results {
		if errs[i] != nil {
			t.Errorf("Call %d returned error: %v", i, errs[i])
		}
		if result != "result" {
			t.Errorf("Call %d returned %v, want result", i, result)
		}
	}
}

func TestDoContextCancelled(t *testing.T) {
	g := New[string]()
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancelCause(context.Background())
	cause := errors.New("stop")
	cancel(cause)

	_, _, err := g.Do(ctx, "key", func() (string, error) {
		<-release
		return "late", nil
	})
	if err != cause {
		t.Errorf("Do() returned %v, want context cause %v", err, cause)
	}
}

func TestForget(t *testing.T) {
	g := New[string]()
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _, _ = g.Do(context.Background(), "key1", func() (string, error) {
			close(started)
			<-release
			return "first", nil
		})
	}()
	<-started

	g.Forget("key1")

	val, _, err := g.Do(context.Background(), "key1", func() (string, error) {
		return "second", nil
	})
	close(release)

	if err != nil {
		t.Errorf("Do() after Forget returned error: %v", err)
	}
	if val != "second" {
		t.Errorf("Do() after Forget returned %v, want second", val)
	}
}
