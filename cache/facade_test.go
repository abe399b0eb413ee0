package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adeilh/go-cachet/cache"
	"github.com/adeilh/go-cachet/cache/memory"
)

func newFacade(t *testing.T) *cache.Cache {
	t.Helper()
	driver, err := memory.New("facade-test")
	if err != nil {
		t.Fatalf("memory.New() error = %v", err)
	}
	t.Cleanup(func() { _ = driver.Close() })
	return cache.New(driver)
}

func TestGetMissingKey(t *testing.T) {
	c := newFacade(t)
	ctx := context.Background()

	if _, err := c.Get(ctx, "absent"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestPullReturnsAndRemoves(t *testing.T) {
	c := newFacade(t)
	ctx := context.Background()

	if err := c.Put(ctx, "k", "x", time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	val, err := c.Pull(ctx, "k")
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if val != "x" {
		t.Fatalf("Pull() = %q, want %q", val, "x")
	}
	if c.Has(ctx, "k") {
		t.Fatal("Has() = true after Pull, want false")
	}
}

func TestPullMissingKey(t *testing.T) {
	c := newFacade(t)

	if _, err := c.Pull(context.Background(), "absent"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Pull() error = %v, want ErrNotFound", err)
	}
}

func TestRememberComputesOnceAndCaches(t *testing.T) {
	c := newFacade(t)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) (string, error) {
		calls++
		return "computed", nil
	}

	val, err := c.Remember(ctx, "k", time.Minute, compute)
	if err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if val != "computed" {
		t.Fatalf("Remember() = %q, want %q", val, "computed")
	}

	val, err = c.Remember(ctx, "k", time.Minute, compute)
	if err != nil {
		t.Fatalf("Remember() second call error = %v", err)
	}
	if val != "computed" {
		t.Fatalf("Remember() second call = %q, want %q", val, "computed")
	}
	if calls != 1 {
		t.Fatalf("compute called %d times, want 1", calls)
	}
}

func TestRememberSkipsComputeWhenPresent(t *testing.T) {
	c := newFacade(t)
	ctx := context.Background()

	if err := c.Put(ctx, "k", "cached", time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	val, err := c.Remember(ctx, "k", time.Minute, func(context.Context) (string, error) {
		t.Fatal("compute invoked for a present key")
		return "", nil
	})
	if err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if val != "cached" {
		t.Fatalf("Remember() = %q, want %q", val, "cached")
	}
}

func TestRememberComputeFailure(t *testing.T) {
	c := newFacade(t)
	ctx := context.Background()

	boom := errors.New("boom")
	if _, err := c.Remember(ctx, "k", time.Minute, func(context.Context) (string, error) {
		return "", boom
	}); !errors.Is(err, cache.ErrCompute) {
		t.Fatalf("Remember() error = %v, want ErrCompute", err)
	}

	// Nothing was cached for the failed compute.
	if _, err := c.Get(ctx, "k"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Get() after failed compute error = %v, want ErrNotFound", err)
	}
}

func TestRememberPropagatesConnectionErrors(t *testing.T) {
	driver := &faultDriver{getErr: cache.ErrConnection}
	c := cache.New(driver)

	if _, err := c.Remember(context.Background(), "k", time.Minute, func(context.Context) (string, error) {
		t.Fatal("compute invoked while the backend is down")
		return "", nil
	}); !errors.Is(err, cache.ErrConnection) {
		t.Fatalf("Remember() error = %v, want ErrConnection", err)
	}
}

func TestRememberFillFailureStillReturnsValue(t *testing.T) {
	driver := &faultDriver{getErr: cache.ErrNotFound, putErr: cache.ErrConnection}
	c := cache.New(driver)

	val, err := c.Remember(context.Background(), "k", time.Minute, func(context.Context) (string, error) {
		return "computed", nil
	})
	if err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if val != "computed" {
		t.Fatalf("Remember() = %q, want %q", val, "computed")
	}
}

func TestRememberForever(t *testing.T) {
	c := newFacade(t)
	ctx := context.Background()

	val, err := c.RememberForever(ctx, "k", func(context.Context) (string, error) {
		return "kept", nil
	})
	if err != nil {
		t.Fatalf("RememberForever() error = %v", err)
	}
	if val != "kept" {
		t.Fatalf("RememberForever() = %q, want %q", val, "kept")
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "kept" {
		t.Fatalf("Get() = %q, want %q", got, "kept")
	}
}

func TestHasCollapsesBackendFailures(t *testing.T) {
	driver := &faultDriver{hasErr: cache.ErrConnection}
	c := cache.New(driver)

	if c.Has(context.Background(), "k") {
		t.Fatal("Has() = true on backend failure, want false")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	c := newFacade(t)
	ctx := context.Background()

	type widget struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := c.PutJSON(ctx, "w", widget{Name: "bolt", Count: 7}, time.Minute); err != nil {
		t.Fatalf("PutJSON() error = %v", err)
	}

	var got widget
	if err := c.GetJSON(ctx, "w", &got); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got.Name != "bolt" || got.Count != 7 {
		t.Fatalf("GetJSON() = %+v, want {bolt 7}", got)
	}
}

func TestGetJSONUndecodableValue(t *testing.T) {
	c := newFacade(t)
	ctx := context.Background()

	if err := c.Put(ctx, "w", "{not json", time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var dest map[string]any
	if err := c.GetJSON(ctx, "w", &dest); !errors.Is(err, cache.ErrSerialization) {
		t.Fatalf("GetJSON() error = %v, want ErrSerialization", err)
	}
}

func TestRememberJSONRecoversFromCorruptedValue(t *testing.T) {
	c := newFacade(t)
	ctx := context.Background()

	if err := c.Put(ctx, "w", "{not json", time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var got map[string]any
	calls := 0
	err := c.RememberJSON(ctx, "w", time.Minute, &got, func(context.Context) (any, error) {
		calls++
		return map[string]any{"fresh": true}, nil
	})
	if err != nil {
		t.Fatalf("RememberJSON() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("compute called %d times, want 1", calls)
	}
	if got["fresh"] != true {
		t.Fatalf("RememberJSON() decoded %v, want fresh=true", got)
	}

	// The corrupted entry was replaced with the recomputed one.
	var again map[string]any
	if err := c.GetJSON(ctx, "w", &again); err != nil {
		t.Fatalf("GetJSON() after recovery error = %v", err)
	}
}

func TestIncrementDecrement(t *testing.T) {
	c := newFacade(t)
	ctx := context.Background()

	n, err := c.Increment(ctx, "counter", 5)
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if n != 5 {
		t.Fatalf("Increment() on absent key = %d, want 5", n)
	}

	n, err = c.Decrement(ctx, "counter", 8)
	if err != nil {
		t.Fatalf("Decrement() error = %v", err)
	}
	if n != -3 {
		t.Fatalf("Decrement() = %d, want -3", n)
	}
}

// faultDriver returns scripted errors so facade error paths can be
// exercised without a real backend.
type faultDriver struct {
	getErr error
	putErr error
	hasErr error
}

func (d *faultDriver) Get(context.Context, string) (string, error) { return "", d.getErr }

func (d *faultDriver) Put(context.Context, string, string, time.Duration) error { return d.putErr }

func (d *faultDriver) PutForever(context.Context, string, string) error { return d.putErr }

func (d *faultDriver) Forget(context.Context, string) error { return nil }

func (d *faultDriver) Has(context.Context, string) (bool, error) { return false, d.hasErr }

func (d *faultDriver) Increment(context.Context, string, int64) (int64, error) { return 0, nil }

func (d *faultDriver) Decrement(context.Context, string, int64) (int64, error) { return 0, nil }

func (d *faultDriver) Flush(context.Context) error { return nil }

func (d *faultDriver) Ping(context.Context) error { return nil }

func (d *faultDriver) Close() error { return nil }
