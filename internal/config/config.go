// Package config handles mcpcheck configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./mcpcheck.yaml, ~/.config/openchat/mcpcheck.yaml,
// /etc/openchat/mcpcheck.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"mcpcheck.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "openchat", "mcpcheck.yaml"))
	}

	paths = append(paths, "/etc/openchat/mcpcheck.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all mcpcheck configuration.
type Config struct {
	Servers  []ServerConfig `yaml:"servers"`
	LogLevel string         `yaml:"log_level"`
}

// ServerConfig describes one MCP server, mirroring the columns of the
// frontend's server table so that a config file entry and a persisted
// row are interchangeable.
type ServerConfig struct {
	Name      string `yaml:"name"`
	Transport string `yaml:"transport"`

	// stdio transport
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	Cwd     string            `yaml:"cwd"`

	// http transport
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Auth    string            `yaml:"auth"`

	HeartbeatSec     int64 `yaml:"heartbeat_sec"`
	ConnectTimeoutMS int64 `yaml:"connect_timeout_ms"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled resolves the tri-state enabled flag.
func (s *ServerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks for entries that could never connect: duplicate or
// missing names, and unknown transports. Field-level requirements
// (command, url) are enforced at connect time so a half-filled entry
// can still be listed.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Servers))
	for i := range c.Servers {
		s := &c.Servers[i]
		if s.Name == "" {
			return fmt.Errorf("servers[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate server name %q", s.Name)
		}
		seen[s.Name] = true
		if s.Transport != "stdio" && s.Transport != "http" {
			return fmt.Errorf("server %q: unknown transport %q (valid: stdio, http)", s.Name, s.Transport)
		}
	}
	return nil
}

// Server returns the named server entry, or nil if absent.
func (c *Config) Server(name string) *ServerConfig {
	for i := range c.Servers {
		if c.Servers[i].Name == name {
			return &c.Servers[i]
		}
	}
	return nil
}
