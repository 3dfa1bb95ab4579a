package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openchat-app/openchat-go/internal/connwatch"
)

// Manager caches one live session per server id. A single mutex guards
// the cache and is held for the full duration of every operation,
// including connection handshakes and tool calls: cross-server
// serialization is the intended behavior, since it makes idempotent
// connects and teardown-vs-call races trivially correct. Callers that
// need concurrency across servers should run multiple managers.
type Manager struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[int64]Session
	watchers map[int64]*connwatch.Watcher
}

// NewManager creates an empty session manager. A nil logger falls back
// to slog.Default().
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:   logger,
		sessions: make(map[int64]Session),
		watchers: make(map[int64]*connwatch.Watcher),
	}
}

// EnsureStdio connects a stdio session for the given server id unless
// one is already cached. Concurrent calls for the same id serialize on
// the manager lock; whichever connects first wins and later calls
// return immediately without reconnecting, even if their configuration
// differs. A session that fails the initialize handshake is torn down
// and never cached.
func (m *Manager) EnsureStdio(ctx context.Context, id int64, cfg StdioConfig, connectTimeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; ok {
		return nil
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = m.logger
	}

	m.logger.Info("mcp: connecting stdio server",
		"server_id", id,
		"command", cfg.Command,
		"args_count", len(cfg.Args),
		"connect_timeout", connectTimeout,
	)
	sess, err := NewStdioSession(ctx, cfg, connectTimeout)
	if err != nil {
		return err
	}
	if err := initializeSession(ctx, sess, connectTimeout); err != nil {
		sess.Close()
		return err
	}

	m.sessions[id] = sess
	m.logger.Info("mcp: stdio server connected", "server_id", id)
	return nil
}

// EnsureHTTP connects an HTTP session for the given server id unless
// one is already cached. Semantics match EnsureStdio.
func (m *Manager) EnsureHTTP(ctx context.Context, id int64, cfg HTTPConfig, connectTimeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; ok {
		return nil
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = m.logger
	}

	m.logger.Info("mcp: connecting http server",
		"server_id", id,
		"url", cfg.URL,
		"connect_timeout", connectTimeout,
	)
	sess, err := NewHTTPSession(cfg)
	if err != nil {
		return err
	}
	if err := initializeSession(ctx, sess, connectTimeout); err != nil {
		sess.Close()
		return err
	}

	m.sessions[id] = sess
	m.logger.Info("mcp: http server connected", "server_id", id)
	return nil
}

// ListTools requests the tool catalog from a connected server. A zero
// or negative timeout falls back to DefaultListToolsTimeout.
func (m *Manager) ListTools(ctx context.Context, id int64, timeout time.Duration) ([]ToolDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("not connected")
	}
	if timeout <= 0 {
		timeout = DefaultListToolsTimeout
	}

	raw, err := sess.Send(ctx, methodToolsList, map[string]any{}, timeout)
	if err != nil {
		return nil, err
	}
	return parseTools(raw), nil
}

// CallTool invokes one tool on a connected server and returns the
// textual content of the result. Nil arguments are sent as an empty
// object. A zero or negative timeout falls back to
// DefaultToolCallTimeout.
func (m *Manager) CallTool(ctx context.Context, id int64, name string, args map[string]any, timeout time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return "", fmt.Errorf("not connected")
	}
	if args == nil {
		args = map[string]any{}
	}
	if timeout <= 0 {
		timeout = DefaultToolCallTimeout
	}

	m.logger.Info("mcp: calling tool", "server_id", id, "tool", name)
	raw, err := sess.Send(ctx, methodToolsCall, map[string]any{
		"name":      name,
		"arguments": args,
	}, timeout)
	if err != nil {
		return "", err
	}
	return extractContent(raw), nil
}

// Ping sends a protocol ping to a connected server, as a cheap
// liveness check. The result value is ignored. A zero or negative
// timeout falls back to DefaultListToolsTimeout.
func (m *Manager) Ping(ctx context.Context, id int64, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("not connected")
	}
	if timeout <= 0 {
		timeout = DefaultListToolsTimeout
	}

	_, err := sess.Send(ctx, methodPing, map[string]any{}, timeout)
	return err
}

// Connected reports whether a session is cached for the given id.
func (m *Manager) Connected(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

// Evict tears down and forgets the session for the given id, stopping
// its liveness watcher if one is registered. Reports whether a session
// was present. Safe to call for ids that were never connected.
func (m *Manager) Evict(id int64) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	w := m.watchers[id]
	delete(m.watchers, id)
	m.mu.Unlock()

	// Stop outside the lock: the watcher's down-callback calls back
	// into Evict, and Stop waits for in-flight callbacks to be spawned.
	if w != nil {
		w.Stop()
	}
	if !ok {
		return false
	}

	m.logger.Info("mcp: evicting server", "server_id", id)
	if err := sess.Close(); err != nil {
		m.logger.Warn("mcp: teardown error", "server_id", id, "error", err)
	}
	return true
}

// registerWatcher associates a liveness watcher with a connected
// server, replacing and stopping any previous one.
func (m *Manager) registerWatcher(id int64, w *connwatch.Watcher) {
	m.mu.Lock()
	prev := m.watchers[id]
	m.watchers[id] = w
	m.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
}

// Close evicts every cached session. Used on shutdown so no MCP
// subprocess outlives the engine.
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]int64, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Evict(id)
	}
}
