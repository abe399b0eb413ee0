package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/adeilh/go-cachet/cache"
	"github.com/adeilh/go-cachet/cache/memory"
	"github.com/adeilh/go-cachet/session"
)

func newStore(t *testing.T) *session.Store {
	t.Helper()
	driver, err := memory.New("sessions")
	if err != nil {
		t.Fatalf("memory.New() error = %v", err)
	}
	t.Cleanup(func() { _ = driver.Close() })
	return session.New(driver)
}

func TestLoadNeverSavedID(t *testing.T) {
	s := newStore(t)

	data, flash := s.Load(context.Background(), "never-saved")
	if data == nil || flash == nil {
		t.Fatal("Load() returned nil maps, want empty maps")
	}
	if len(data) != 0 || len(flash) != 0 {
		t.Fatalf("Load() = %v, %v, want empty maps", data, flash)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	data := map[string]any{"user_id": "42", "theme": "dark"}
	flash := map[string]any{"notice": "saved"}

	if err := s.Save(ctx, "sid", data, flash, time.Minute); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	gotData, gotFlash := s.Load(ctx, "sid")
	if gotData["user_id"] != "42" || gotData["theme"] != "dark" {
		t.Fatalf("Load() data = %v, want %v", gotData, data)
	}
	if gotFlash["notice"] != "saved" {
		t.Fatalf("Load() flash = %v, want %v", gotFlash, flash)
	}
}

func TestSaveOverwritesWholesale(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first := map[string]any{"a": "1", "b": "2"}
	if err := s.Save(ctx, "sid", first, nil, time.Minute); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	second := map[string]any{"c": "3"}
	if err := s.Save(ctx, "sid", second, nil, time.Minute); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	data, _ := s.Load(ctx, "sid")
	if _, ok := data["a"]; ok {
		t.Fatal("Load() still sees key from first save; want wholesale overwrite, not merge")
	}
	if data["c"] != "3" {
		t.Fatalf("Load() data = %v, want only second save's content", data)
	}
}

func TestDestroy(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "sid", map[string]any{"k": "v"}, nil, time.Minute); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Destroy(ctx, "sid"); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	// Destroy is idempotent.
	if err := s.Destroy(ctx, "sid"); err != nil {
		t.Fatalf("second Destroy() error = %v", err)
	}

	data, flash := s.Load(ctx, "sid")
	if len(data) != 0 || len(flash) != 0 {
		t.Fatalf("Load() after Destroy = %v, %v, want empty maps", data, flash)
	}
}

func TestExpiredSessionDegradesToFresh(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "sid", map[string]any{"k": "v"}, nil, 30*time.Millisecond); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	data, flash := s.Load(ctx, "sid")
	if len(data) != 0 || len(flash) != 0 {
		t.Fatalf("Load() after expiry = %v, %v, want empty maps", data, flash)
	}
}

func TestCorruptPayloadDegradesToFresh(t *testing.T) {
	driver, err := memory.New("corrupt")
	if err != nil {
		t.Fatalf("memory.New() error = %v", err)
	}
	t.Cleanup(func() { _ = driver.Close() })
	s := session.New(driver)
	ctx := context.Background()

	// Write garbage where the payload would live.
	if err := driver.Put(ctx, "session:sid", "{not json", time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	data, flash := s.Load(ctx, "sid")
	if data == nil || flash == nil || len(data) != 0 || len(flash) != 0 {
		t.Fatalf("Load() of corrupt payload = %v, %v, want empty maps", data, flash)
	}
}

func TestEmptyIDRejectedOnWrite(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "", nil, nil, time.Minute); err != session.ErrInvalidID {
		t.Fatalf("Save() with empty id error = %v, want ErrInvalidID", err)
	}
	if err := s.Destroy(ctx, ""); err != session.ErrInvalidID {
		t.Fatalf("Destroy() with empty id error = %v, want ErrInvalidID", err)
	}
}

func TestGCAdvisoryOnNativeExpiryBackend(t *testing.T) {
	s := newStore(t)

	if s.SweepRequired() {
		t.Fatal("SweepRequired() = true for a TTL-enforcing backend, want false")
	}
	n, err := s.GC(context.Background())
	if err != nil {
		t.Fatalf("GC() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("GC() removed %d on a no-op backend, want 0", n)
	}
}

func TestGCDelegatesToSweeper(t *testing.T) {
	driver := &sweepDriver{}
	s := session.New(driver)

	if !s.SweepRequired() {
		t.Fatal("SweepRequired() = false for a sweeping backend, want true")
	}
	n, err := s.GC(context.Background())
	if err != nil {
		t.Fatalf("GC() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("GC() = %d, want 3 (the sweeper's count)", n)
	}
	if driver.sweeps != 1 {
		t.Fatalf("Sweep called %d times, want 1", driver.sweeps)
	}
}

// sweepDriver fakes a backend without native expiry.
type sweepDriver struct {
	sweeps int
}

func (d *sweepDriver) Get(context.Context, string) (string, error) { return "", cache.ErrNotFound }

func (d *sweepDriver) Put(context.Context, string, string, time.Duration) error { return nil }

func (d *sweepDriver) PutForever(context.Context, string, string) error { return nil }

func (d *sweepDriver) Forget(context.Context, string) error { return nil }

func (d *sweepDriver) Has(context.Context, string) (bool, error) { return false, nil }

func (d *sweepDriver) Increment(context.Context, string, int64) (int64, error) { return 0, nil }

func (d *sweepDriver) Decrement(context.Context, string, int64) (int64, error) { return 0, nil }

func (d *sweepDriver) Flush(context.Context) error { return nil }

func (d *sweepDriver) Ping(context.Context) error { return nil }

func (d *sweepDriver) Close() error { return nil }

func (d *sweepDriver) Sweep(context.Context) (int64, error) {
	d.sweeps++
	return 3, nil
}
