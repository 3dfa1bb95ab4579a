// Package connwatch provides periodic liveness watching for
// long-lived external connections. A Watcher probes one target on a
// fixed interval and fires state-transition callbacks when it goes
// down or recovers; the MCP session manager uses it to evict cached
// sessions whose server process has died, instead of letting a stale
// entry fail every subsequent call.
package connwatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ProbeFunc checks whether the target is reachable. Return nil if
// healthy. Must be safe to call from the watcher goroutine.
type ProbeFunc func(ctx context.Context) error

// Default probe cadence and per-probe deadline.
const (
	DefaultInterval     = 60 * time.Second
	DefaultProbeTimeout = 10 * time.Second
)

// Config configures a single watcher.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Probe checks target health.
	Probe ProbeFunc

	// Interval between probes (default: 60s).
	Interval time.Duration

	// ProbeTimeout bounds each individual probe call (default: 10s).
	ProbeTimeout time.Duration

	// OnDown is called when the target transitions from up to down.
	// Runs in its own goroutine; must not block indefinitely. Optional.
	OnDown func(err error)

	// OnReady is called when the target transitions from down to up.
	// Runs in its own goroutine; must not block indefinitely. Optional.
	OnReady func()

	// Logger for structured logging. Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Status is a point-in-time health snapshot, suitable for JSON
// serialization in diagnostics output.
type Status struct {
	Name      string    `json:"name"`
	Up        bool      `json:"up"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

// Watcher monitors one target. Construct with Watch.
type Watcher struct {
	config Config
	up     atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	lastErr   error
	lastCheck time.Time
}

// Watch starts a watcher goroutine that runs until ctx is cancelled or
// Stop is called. The target is assumed up at start — Watch is meant to
// be registered right after a connection has been established — so the
// first failed probe fires OnDown.
//
// Panics if Name is empty or Probe is nil; these are programming
// errors, not runtime conditions.
func Watch(ctx context.Context, cfg Config) *Watcher {
	if cfg.Name == "" {
		panic("connwatch: Config.Name must not be empty")
	}
	if cfg.Probe == nil {
		panic("connwatch: Config.Probe must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		config: cfg,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	w.up.Store(true)

	go w.run(watchCtx)
	return w
}

// IsUp reports whether the target passed its most recent probe.
func (w *Watcher) IsUp() bool {
	return w.up.Load()
}

// LastError returns the most recent probe error, or nil if healthy.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Status returns the current health snapshot.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Status{
		Name:      w.config.Name,
		Up:        w.up.Load(),
		LastCheck: w.lastCheck,
	}
	if w.lastErr != nil {
		s.LastError = w.lastErr.Error()
	}
	return s
}

// Stop cancels the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	logger := w.config.Logger
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := w.probe(ctx)
			w.record(err)
			wasUp := w.up.Load()

			switch {
			case wasUp && err != nil:
				w.up.Store(false)
				logger.Info("target became unreachable",
					"target", w.config.Name,
					"error", err,
				)
				if w.config.OnDown != nil {
					go w.config.OnDown(err)
				}
			case !wasUp && err == nil:
				w.up.Store(true)
				logger.Info("target recovered", "target", w.config.Name)
				if w.config.OnReady != nil {
					go w.config.OnReady()
				}
			case !wasUp && err != nil:
				logger.Debug("target still unreachable",
					"target", w.config.Name,
					"error", err,
				)
			}
		}
	}
}

func (w *Watcher) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, w.config.ProbeTimeout)
	defer cancel()
	return w.config.Probe(probeCtx)
}

func (w *Watcher) record(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.lastCheck = time.Now()
	w.mu.Unlock()
}
