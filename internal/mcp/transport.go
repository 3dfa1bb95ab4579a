package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openchat-app/openchat-go/internal/buildinfo"
)

// Session is the capability interface over one established MCP
// connection. Implementations own the physical channel (subprocess
// pipes or an HTTP client) and a private request-id counter.
//
// Sessions are not safe for concurrent use: the Manager serializes all
// access under its lock, and the probe uses a session from a single
// goroutine. Each Send performs exactly one write followed by exactly
// one read — no pipelining — so request/response correlation is
// positional.
type Session interface {
	// Send issues a JSON-RPC request and returns the decoded result
	// value. The timeout bounds each blocking boundary (write and read
	// separately on stdio, the full round-trip on HTTP).
	Send(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error)

	// Notify issues a JSON-RPC notification. No response is read.
	Notify(ctx context.Context, method string, params any, timeout time.Duration) error

	// Close tears the session down. For stdio this kills the
	// subprocess; for HTTP it is a no-op. Close is idempotent and
	// never fails: teardown errors are logged and swallowed.
	Close() error
}

// initParams builds the fixed client identity sent during the
// initialize handshake.
func initParams() map[string]any {
	return map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": buildinfo.Version,
		},
	}
}

// initializeSession performs the mandatory MCP handshake on a freshly
// constructed session: the initialize request followed by the
// notifications/initialized notification. Until this succeeds the
// session must not be used for any other method.
func initializeSession(ctx context.Context, s Session, timeout time.Duration) error {
	if _, err := s.Send(ctx, methodInitialize, initParams(), timeout); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := s.Notify(ctx, methodInitialized, nil, timeout); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}
