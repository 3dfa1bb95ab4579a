package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openchat-app/openchat-go/internal/connwatch"
)

// ServerRow mirrors one persisted MCP server configuration row. The
// Args, Env and Headers columns hold JSON-encoded text as stored by
// the frontend; decoding is lenient, so malformed JSON degrades to
// empty values instead of blocking the connection.
type ServerRow struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Transport string `json:"transport"`

	// stdio columns
	Command string `json:"command"`
	Args    string `json:"args"`
	Env     string `json:"env"`
	Cwd     string `json:"cwd"`

	// http columns
	URL     string `json:"url"`
	Headers string `json:"headers"`
	Auth    string `json:"auth"`

	HeartbeatSec     int64 `json:"heartbeat_sec"`
	ConnectTimeoutMS int64 `json:"connect_timeout_ms"`
	Enabled          bool  `json:"enabled"`
}

// decodeStringList decodes a JSON array of strings; anything malformed
// or empty yields nil.
func decodeStringList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// decodeStringMap decodes a JSON object; anything malformed or empty
// yields nil. Values of any JSON type are kept so the transports can
// apply their own string-only filtering.
func decodeStringMap(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// connectTimeout converts the row's millisecond column, falling back to
// the package default for zero or negative values.
func (r *ServerRow) connectTimeout() time.Duration {
	if r.ConnectTimeoutMS <= 0 {
		return DefaultConnectTimeout
	}
	return time.Duration(r.ConnectTimeoutMS) * time.Millisecond
}

// TransportConfig translates the row into a one-shot probe
// configuration for CheckServer. The same validation as EnsureFromRow
// applies, except the enabled flag is ignored so that a disabled row
// can still be tested.
func (r *ServerRow) TransportConfig() (TransportConfig, error) {
	cfg := TransportConfig{ConnectTimeout: r.connectTimeout()}

	switch r.Transport {
	case "stdio":
		if strings.TrimSpace(r.Command) == "" {
			return cfg, fmt.Errorf("missing command")
		}
		cfg.Kind = TransportStdio
		cfg.Stdio = &StdioConfig{
			Command: r.Command,
			Args:    decodeStringList(r.Args),
			Env:     decodeStringMap(r.Env),
			Cwd:     r.Cwd,
		}
	case "http":
		if strings.TrimSpace(r.URL) == "" {
			return cfg, fmt.Errorf("missing url")
		}
		cfg.Kind = TransportHTTP
		cfg.HTTP = &HTTPConfig{
			URL:       r.URL,
			Headers:   decodeStringMap(r.Headers),
			AuthToken: r.Auth,
		}
	default:
		return cfg, fmt.Errorf("unsupported transport: %s", r.Transport)
	}
	return cfg, nil
}

// EnsureFromRow connects the server described by a configuration row,
// caching the session under the row's id. Disabled rows are refused.
// When the row requests a heartbeat, a liveness watcher is registered
// that pings the session periodically and evicts it on failure, so the
// next ensure reconnects instead of reusing a dead session.
func (m *Manager) EnsureFromRow(ctx context.Context, row ServerRow) error {
	if !row.Enabled {
		return fmt.Errorf("server disabled")
	}

	cfg, err := row.TransportConfig()
	if err != nil {
		return err
	}

	switch cfg.Kind {
	case TransportStdio:
		err = m.EnsureStdio(ctx, row.ID, *cfg.Stdio, cfg.ConnectTimeout)
	case TransportHTTP:
		err = m.EnsureHTTP(ctx, row.ID, *cfg.HTTP, cfg.ConnectTimeout)
	}
	if err != nil {
		return err
	}

	if row.HeartbeatSec > 0 {
		m.watchRow(ctx, row)
	}
	return nil
}

func (m *Manager) watchRow(ctx context.Context, row ServerRow) {
	id := row.ID
	name := row.Name
	if name == "" {
		name = fmt.Sprintf("mcp-server-%d", id)
	}

	w := connwatch.Watch(ctx, connwatch.Config{
		Name:     name,
		Interval: time.Duration(row.HeartbeatSec) * time.Second,
		Probe: func(ctx context.Context) error {
			return m.Ping(ctx, id, 0)
		},
		OnDown: func(err error) {
			m.logger.Warn("mcp: heartbeat failed, evicting",
				"server_id", id, "server", name, "error", err)
			m.Evict(id)
		},
		Logger: m.logger,
	})
	m.registerWatcher(id, w)
}
