package mcp

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCheckServerEmptyCommand(t *testing.T) {
	res := CheckServer(context.Background(), TransportConfig{
		Kind:   TransportStdio,
		Stdio:  &StdioConfig{Command: "   "},
		Logger: discardLogger(),
	})
	if res.OK {
		t.Fatal("probe succeeded with empty command")
	}
	if res.Error != "command cannot be empty" {
		t.Errorf("Error = %q, want %q", res.Error, "command cannot be empty")
	}
}

func TestCheckServerUnsupportedTransport(t *testing.T) {
	res := CheckServer(context.Background(), TransportConfig{Kind: "websocket"})
	if res.OK || !strings.Contains(res.Error, "unsupported transport") {
		t.Errorf("result = %+v, want unsupported transport failure", res)
	}
}

func TestCheckServerStdioSuccess(t *testing.T) {
	script := writeScript(t, echoServerScript(`{"tools":[{"name":"a"},{"name":"b"}]}`))

	res := CheckServer(context.Background(), TransportConfig{
		Kind:   TransportStdio,
		Stdio:  &StdioConfig{Command: script},
		Logger: discardLogger(),
	})
	if !res.OK {
		t.Fatalf("probe failed: %s", res.Error)
	}
	if res.ToolsCount == nil || *res.ToolsCount != 2 {
		t.Errorf("ToolsCount = %v, want 2", res.ToolsCount)
	}
	if len(res.Tools) != 2 || res.Tools[0].Name != "a" {
		t.Errorf("Tools = %+v", res.Tools)
	}
}

func TestCheckServerStdioDeadServer(t *testing.T) {
	script := writeScript(t, "exit 1\n")

	res := CheckServer(context.Background(), TransportConfig{
		Kind:   TransportStdio,
		Stdio:  &StdioConfig{Command: script},
		Logger: discardLogger(),
	})
	if res.OK {
		t.Fatal("probe succeeded against a dead server")
	}
	if !strings.Contains(res.Error, "failed to send initialize") {
		t.Errorf("Error = %q, want initialize failure", res.Error)
	}
}

func TestCheckServerHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := CheckServer(context.Background(), TransportConfig{
		Kind:   TransportHTTP,
		HTTP:   &HTTPConfig{URL: srv.URL},
		Logger: discardLogger(),
	})
	if res.OK {
		t.Fatal("probe succeeded against a 500 server")
	}
	if !strings.Contains(res.Error, "500") {
		t.Errorf("Error = %q, want 500 mentioned", res.Error)
	}
}

func TestCheckServerHTTPSuccess(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, `{"tools":[]}`))
	defer srv.Close()

	res := CheckServer(context.Background(), TransportConfig{
		Kind:   TransportHTTP,
		HTTP:   &HTTPConfig{URL: srv.URL},
		Logger: discardLogger(),
	})
	if !res.OK {
		t.Fatalf("probe failed: %s", res.Error)
	}
	if res.ToolsCount == nil || *res.ToolsCount != 0 {
		t.Errorf("ToolsCount = %v, want 0", res.ToolsCount)
	}
}

func TestCheckServerUsesConfiguredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	srv := httptest.NewServer(rpcHandler(t, `{"tools":[]}`))
	defer srv.Close()

	res := CheckServer(context.Background(), TransportConfig{
		Kind:   TransportHTTP,
		HTTP:   &HTTPConfig{URL: srv.URL},
		Logger: logger,
	})
	if !res.OK {
		t.Fatalf("check failed: %s", res.Error)
	}
	if !strings.Contains(buf.String(), "mcp.check") {
		t.Errorf("configured logger saw no output: %q", buf.String())
	}
}

func TestCheckServerMissingParameters(t *testing.T) {
	if res := CheckServer(context.Background(), TransportConfig{Kind: TransportStdio}); res.OK {
		t.Error("stdio probe without parameters succeeded")
	}
	if res := CheckServer(context.Background(), TransportConfig{Kind: TransportHTTP}); res.OK {
		t.Error("http probe without parameters succeeded")
	}
}
