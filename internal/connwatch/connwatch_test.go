package connwatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatchStartsUp(t *testing.T) {
	w := Watch(context.Background(), Config{
		Name:   "test",
		Probe:  func(ctx context.Context) error { return nil },
		Logger: testLogger(),
	})
	defer w.Stop()

	if !w.IsUp() {
		t.Error("IsUp() = false at start, want true")
	}
}

func TestWatchDetectsDown(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)

	downCh := make(chan error, 1)
	w := Watch(context.Background(), Config{
		Name:     "test",
		Interval: 20 * time.Millisecond,
		Probe: func(ctx context.Context) error {
			if healthy.Load() {
				return nil
			}
			return errors.New("connection refused")
		},
		OnDown: func(err error) { downCh <- err },
		Logger: testLogger(),
	})
	defer w.Stop()

	healthy.Store(false)

	select {
	case err := <-downCh:
		if err == nil || err.Error() != "connection refused" {
			t.Errorf("OnDown err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnDown never fired")
	}
	if w.IsUp() {
		t.Error("IsUp() = true after failure")
	}
	if w.LastError() == nil {
		t.Error("LastError() = nil after failure")
	}
}

func TestWatchDetectsRecovery(t *testing.T) {
	var healthy atomic.Bool // starts false

	readyCh := make(chan struct{}, 1)
	w := Watch(context.Background(), Config{
		Name:     "test",
		Interval: 20 * time.Millisecond,
		Probe: func(ctx context.Context) error {
			if healthy.Load() {
				return nil
			}
			return errors.New("down")
		},
		OnReady: func() { readyCh <- struct{}{} },
		Logger:  testLogger(),
	})
	defer w.Stop()

	// Wait for the watcher to notice the failure, then recover.
	deadline := time.Now().Add(2 * time.Second)
	for w.IsUp() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if w.IsUp() {
		t.Fatal("watcher never saw the failure")
	}

	healthy.Store(true)
	select {
	case <-readyCh:
	case <-time.After(2 * time.Second):
		t.Fatal("OnReady never fired")
	}
	if !w.IsUp() {
		t.Error("IsUp() = false after recovery")
	}
}

func TestWatchStop(t *testing.T) {
	var probes atomic.Int64
	w := Watch(context.Background(), Config{
		Name:     "test",
		Interval: 10 * time.Millisecond,
		Probe: func(ctx context.Context) error {
			probes.Add(1)
			return nil
		},
		Logger: testLogger(),
	})

	time.Sleep(50 * time.Millisecond)
	w.Stop()
	after := probes.Load()
	time.Sleep(50 * time.Millisecond)
	if probes.Load() != after {
		t.Error("probes continued after Stop")
	}
}

func TestStatus(t *testing.T) {
	w := Watch(context.Background(), Config{
		Name:     "svc",
		Interval: 10 * time.Millisecond,
		Probe:    func(ctx context.Context) error { return errors.New("nope") },
		Logger:   testLogger(),
	})
	defer w.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for w.IsUp() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	s := w.Status()
	if s.Name != "svc" {
		t.Errorf("Name = %q, want svc", s.Name)
	}
	if s.Up {
		t.Error("Up = true, want false")
	}
	if s.LastError != "nope" {
		t.Errorf("LastError = %q, want nope", s.LastError)
	}
	if s.LastCheck.IsZero() {
		t.Error("LastCheck is zero")
	}
}

func TestWatchPanicsOnMissingConfig(t *testing.T) {
	assertPanics := func(name string, fn func()) {
		defer func() {
			if recover() == nil {
				t.Errorf("%s: no panic", name)
			}
		}()
		fn()
	}

	assertPanics("empty name", func() {
		Watch(context.Background(), Config{Probe: func(ctx context.Context) error { return nil }})
	})
	assertPanics("nil probe", func() {
		Watch(context.Background(), Config{Name: "x"})
	})
}
