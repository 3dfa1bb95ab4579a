package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// TransportKind selects one of the two supported transports.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// TransportConfig parameterizes one connection attempt. Exactly one of
// Stdio or HTTP must be set, matching Kind. Zero timeouts fall back to
// the package defaults.
type TransportConfig struct {
	Kind  TransportKind
	Stdio *StdioConfig
	HTTP  *HTTPConfig

	ConnectTimeout   time.Duration
	ListToolsTimeout time.Duration

	// Logger receives connection diagnostics, and is handed down to the
	// transport unless its own config carries one. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

func (c *TransportConfig) normalize() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ListToolsTimeout <= 0 {
		c.ListToolsTimeout = DefaultListToolsTimeout
	}
}

// CheckResult is the outcome of a one-shot server probe. On success
// ToolsCount and Tools are set; on failure Error carries a
// human-readable description.
type CheckResult struct {
	OK         bool             `json:"ok"`
	ToolsCount *int             `json:"tools_count,omitempty"`
	Tools      []ToolDescriptor `json:"tools,omitempty"`
	Warning    string           `json:"warning,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func checkFailure(format string, args ...any) CheckResult {
	return CheckResult{OK: false, Error: fmt.Sprintf(format, args...)}
}

// CheckServer probes an MCP server configuration without caching
// anything: it opens a session, performs the initialize handshake,
// lists tools, and tears the session down. Intended for "test this
// configuration" flows before a server row is persisted.
//
// The probe never leaves a subprocess running — for stdio the child is
// killed on every exit path, success included.
func CheckServer(ctx context.Context, cfg TransportConfig) CheckResult {
	cfg.normalize()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		sess Session
		err  error
	)
	switch cfg.Kind {
	case TransportStdio:
		if cfg.Stdio == nil {
			return checkFailure("missing stdio parameters")
		}
		if strings.TrimSpace(cfg.Stdio.Command) == "" {
			return checkFailure("command cannot be empty")
		}
		stdioCfg := *cfg.Stdio
		if stdioCfg.Logger == nil {
			stdioCfg.Logger = logger
		}
		logger.Info("mcp.check: stdio connect",
			"command", stdioCfg.Command,
			"args_count", len(stdioCfg.Args),
			"connect_timeout", cfg.ConnectTimeout,
			"list_tools_timeout", cfg.ListToolsTimeout,
		)
		sess, err = NewStdioSession(ctx, stdioCfg, cfg.ConnectTimeout)
	case TransportHTTP:
		if cfg.HTTP == nil {
			return checkFailure("missing http parameters")
		}
		httpCfg := *cfg.HTTP
		if httpCfg.Logger == nil {
			httpCfg.Logger = logger
		}
		logger.Info("mcp.check: http connect",
			"url", httpCfg.URL,
			"connect_timeout", cfg.ConnectTimeout,
			"list_tools_timeout", cfg.ListToolsTimeout,
		)
		sess, err = NewHTTPSession(httpCfg)
	default:
		return checkFailure("unsupported transport: %s", cfg.Kind)
	}
	if err != nil {
		return checkFailure("%v", err)
	}
	defer sess.Close()

	if err := initializeSession(ctx, sess, cfg.ConnectTimeout); err != nil {
		logger.Warn("mcp.check: initialize failed", "transport", cfg.Kind, "error", err)
		return checkFailure("failed to send initialize: %v", err)
	}

	raw, err := sess.Send(ctx, methodToolsList, map[string]any{}, cfg.ListToolsTimeout)
	if err != nil {
		logger.Warn("mcp.check: tools/list failed", "transport", cfg.Kind, "error", err)
		return checkFailure("failed to request tools/list: %v", err)
	}

	tools := parseTools(raw)
	count := len(tools)
	logger.Info("mcp.check: ok", "transport", cfg.Kind, "tools_count", count)
	return CheckResult{
		OK:         true,
		ToolsCount: &count,
		Tools:      tools,
	}
}
