package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openchat-app/openchat-go/internal/config"
)

func TestRunVersion(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, []string{"version"}); err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.Contains(out.String(), "OpenChat") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestRunHelp(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, []string{"-help"}); err != nil {
		t.Fatalf("run(-help) error = %v", err)
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Errorf("help output = %q", out.String())
	}
}

func TestRunUnknownFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, []string{"-bogus"}); err == nil {
		t.Error("run(-bogus) succeeded, want error")
	}
}

// rpcServer answers every JSON-RPC POST with a one-tool catalog.
func rpcServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64 `json:"id"`
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		result := `{}`
		if req.Method == "tools/list" {
			result = `{"tools":[{"name":"search"}]}`
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%s}`, req.ID, result)
	}))
}

func writeTestConfig(t *testing.T, url string) string {
	t.Helper()
	body := fmt.Sprintf("servers:\n  - name: remote\n    transport: http\n    url: %s\n", url)
	path := filepath.Join(t.TempDir(), "mcpcheck.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCheck(t *testing.T) {
	srv := rpcServer(t)
	defer srv.Close()

	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, []string{"-config", writeTestConfig(t, srv.URL), "check"})
	if err != nil {
		t.Fatalf("run(check) error = %v\nstderr: %s", err, errOut.String())
	}
	if !strings.Contains(out.String(), "remote: ok (1 tools)") {
		t.Errorf("check output = %q", out.String())
	}
}

func TestRunCheckJSON(t *testing.T) {
	srv := rpcServer(t)
	defer srv.Close()

	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, []string{"-config", writeTestConfig(t, srv.URL), "-o", "json", "check"})
	if err != nil {
		t.Fatalf("run(check) error = %v", err)
	}

	var reports []map[string]any
	if err := json.Unmarshal(out.Bytes(), &reports); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if len(reports) != 1 || reports[0]["ok"] != true {
		t.Errorf("reports = %+v", reports)
	}
}

func TestRunCheckFailingServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, []string{"-config", writeTestConfig(t, srv.URL), "check"})
	if err == nil {
		t.Fatal("run(check) succeeded against a failing server")
	}
	if !strings.Contains(out.String(), "FAILED") {
		t.Errorf("check output = %q", out.String())
	}
}

func TestRunTools(t *testing.T) {
	srv := rpcServer(t)
	defer srv.Close()

	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, []string{"-config", writeTestConfig(t, srv.URL), "-server", "remote", "tools"})
	if err != nil {
		t.Fatalf("run(tools) error = %v", err)
	}
	if !strings.Contains(out.String(), "search") {
		t.Errorf("tools output = %q", out.String())
	}
}

func TestRunCallRequiresServer(t *testing.T) {
	srv := rpcServer(t)
	defer srv.Close()

	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, []string{"-config", writeTestConfig(t, srv.URL), "call", "search"})
	if err == nil || !strings.Contains(err.Error(), "-server") {
		t.Errorf("error = %v, want -server requirement", err)
	}
}

func TestRunInit(t *testing.T) {
	dir := t.TempDir()

	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, []string{"init", dir}); err != nil {
		t.Fatalf("run(init) error = %v", err)
	}

	path := filepath.Join(dir, "mcpcheck.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	// The starter config must parse and survive validation.
	if _, err := config.Load(path); err != nil {
		t.Errorf("starter config invalid: %v", err)
	}

	// A second init must not clobber user edits.
	if err := os.WriteFile(path, []byte("servers: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run(context.Background(), &out, &errOut, []string{"init", dir}); err != nil {
		t.Fatalf("second run(init) error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "servers: []\n" {
		t.Error("init overwrote an existing config")
	}
}

func TestServerRowEncoding(t *testing.T) {
	row := serverRow(4, config.ServerConfig{
		Name:      "files",
		Transport: "stdio",
		Command:   "npx",
		Args:      []string{"-y", "pkg"},
		Env:       map[string]string{"KEY": "v"},
	})

	if row.ID != 4 || row.Transport != "stdio" {
		t.Errorf("row = %+v", row)
	}
	if row.Args != `["-y","pkg"]` {
		t.Errorf("Args = %q", row.Args)
	}
	if row.Env != `{"KEY":"v"}` {
		t.Errorf("Env = %q", row.Env)
	}
	if !row.Enabled {
		t.Error("Enabled = false, want default true")
	}

	empty := serverRow(1, config.ServerConfig{Name: "x", Transport: "http", URL: "http://h"})
	if empty.Args != "" || empty.Env != "" || empty.Headers != "" {
		t.Errorf("empty collections should encode as empty strings: %+v", empty)
	}
}
