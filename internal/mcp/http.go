package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openchat-app/openchat-go/internal/httpkit"
)

// maxResponseBody caps how much of an HTTP response is read.
const maxResponseBody = 10 << 20

// HTTPConfig configures an HTTP MCP session that speaks JSON-RPC as
// POST bodies against a fixed endpoint.
type HTTPConfig struct {
	// URL is the MCP server endpoint.
	URL string

	// Headers holds extra headers for every request, as decoded from
	// the server row's JSON headers column. Only string-valued entries
	// are applied.
	Headers map[string]any

	// AuthToken, when set, is merged into the headers as
	// "Authorization: Bearer <token>" unless an Authorization header
	// is already present.
	AuthToken string

	// InsecureTLS skips certificate verification, for local servers
	// with self-signed certificates.
	InsecureTLS bool

	// Logger receives transport diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// httpSession owns a reusable HTTP client bound to one endpoint.
type httpSession struct {
	logger  *slog.Logger
	client  *http.Client
	url     string
	headers map[string]string
	nextID  uint64
}

// NewHTTPSession builds the per-session HTTP client and pre-merges the
// header set. Construction fails only on an invalid endpoint URL; the
// returned session has not been initialized — callers must run the
// handshake before using it. Per-call timeouts are applied as context
// deadlines on each Send, so the client itself carries no overall
// timeout.
func NewHTTPSession(cfg HTTPConfig) (Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url scheme %q", u.Scheme)
	}

	opts := []httpkit.ClientOption{httpkit.WithTimeout(0)}
	if cfg.InsecureTLS {
		opts = append(opts, httpkit.WithTLSInsecureSkipVerify())
	}

	return &httpSession{
		logger:  logger,
		client:  httpkit.NewClient(opts...),
		url:     cfg.URL,
		headers: mergeHeaders(cfg.Headers, cfg.AuthToken),
	}, nil
}

// mergeHeaders keeps only string-valued entries and synthesizes an
// Authorization header from authToken when none is present.
func mergeHeaders(headers map[string]any, authToken string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	if authToken != "" && !hasAuthorization(out) {
		out["Authorization"] = "Bearer " + authToken
	}
	return out
}

func hasAuthorization(headers map[string]string) bool {
	for k := range headers {
		if strings.EqualFold(k, "Authorization") {
			return true
		}
	}
	return false
}

// Send POSTs one JSON-RPC request and decodes the response body. The
// whole round-trip is bounded by timeout. Any non-2xx status is a
// transport failure carrying the raw body as diagnostic text, as is a
// 2xx body that fails to parse as JSON.
func (s *httpSession) Send(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	s.nextID++
	s.logger.Debug("mcp.send(http)", "id", s.nextID, "method", method, "timeout", timeout, "url", s.url)

	body, err := s.post(ctx, newRequest(s.nextID, method, params), timeout)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		// A 2xx body that is not JSON is terminal for the call; the
		// raw body is surfaced for diagnostics.
		return nil, fmt.Errorf("unparseable response body: %s", strings.TrimSpace(string(body)))
	}
	return resp.result()
}

// Notify POSTs one JSON-RPC notification. The response body is ignored
// apart from the status check.
func (s *httpSession) Notify(ctx context.Context, method string, params any, timeout time.Duration) error {
	s.logger.Debug("mcp.notify(http)", "method", method, "url", s.url)

	_, err := s.post(ctx, newNotification(method, params), timeout)
	return err
}

// post sends one JSON document and returns the raw response body for
// any 2xx status.
func (s *httpSession) post(ctx context.Context, payload any, timeout time.Duration) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to %s: %w", s.url, err)
	}
	defer httpkit.DrainAndClose(resp.Body, maxResponseBody)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody := httpkit.ReadErrorBody(resp.Body, maxResponseBody)
		s.logger.Warn("mcp.send(http): http error", "status", resp.StatusCode, "body_len", len(errBody))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, errBody)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return respBody, nil
}

// Close is a no-op: the HTTP client owns no per-session resources
// beyond its pooled connections.
func (s *httpSession) Close() error {
	return nil
}
