package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openchat-app/openchat-go/examples"
)

// runInit drops a starter config file into dir (default: the current
// directory). Existing files are never overwritten.
func runInit(w io.Writer, dir string) error {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, "mcpcheck.yaml")
	if err := writeIfMissing(configPath, examples.ConfigYAML); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", configPath)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit mcpcheck.yaml to describe your MCP servers, then run: mcpcheck check")
	return nil
}

// writeIfMissing writes content to path only if the file does not already
// exist. This ensures init never overwrites user customizations.
func writeIfMissing(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil // already exists, skip
	}
	return os.WriteFile(path, content, 0o644)
}
