// Mcpcheck is a diagnostic CLI for MCP server configurations.
//
// It loads server definitions from a YAML file discovered automatically
// (see [config.DefaultSearchPaths]) and exercises them the same way the
// OpenChat engine does: probe the handshake, list tools, or invoke a
// single tool.
//
// Usage:
//
//	mcpcheck check                   Probe every enabled server
//	mcpcheck -server <name> check    Probe one server (enabled or not)
//	mcpcheck -server <name> tools    Connect and list tools
//	mcpcheck -server <name> call <tool> [json-args]
//	mcpcheck init [dir]              Write a starter mcpcheck.yaml
//	mcpcheck version                 Print version and build information
//	mcpcheck -o json check           Output results as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/openchat-app/openchat-go/internal/buildinfo"
	"github.com/openchat-app/openchat-go/internal/config"
	"github.com/openchat-app/openchat-go/internal/mcp"
)

// main constructs the OS-level environment (context, stdio, argv) and
// delegates immediately to [run], keeping os.Exit and os.Args out of
// the application logic so the full lifecycle can be driven from tests.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the mcpcheck command. Arguments are
// parsed by hand: the flag package relies on package-level globals
// (flag.CommandLine), which makes it impossible to call run()
// concurrently from tests, and the argument surface here is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var serverName string
	var outputFmt string // "text" (default) or "json"
	var logLevel string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-server" && i+1 < len(args):
			serverName = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-server="):
			serverName = strings.TrimPrefix(args[i], "-server=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case args[i] == "-log-level" && i+1 < len(args):
			logLevel = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-log-level="):
			logLevel = strings.TrimPrefix(args[i], "-log-level=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag %q (try -help)", args[i])
			}
		}
	}

	if command == "" {
		command = "check"
	}
	if command == "version" {
		return printVersion(stdout, outputFmt)
	}
	if command == "init" {
		dir := ""
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	}

	path, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	level, err := config.ParseLogLevel(logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	app := &application{
		cfg:    cfg,
		logger: logger,
		stdout: stdout,
		asJSON: outputFmt == "json",
	}

	switch command {
	case "check":
		return app.check(ctx, serverName)
	case "tools":
		return app.tools(ctx, serverName)
	case "call":
		return app.call(ctx, serverName, cmdArgs)
	default:
		return fmt.Errorf("unknown command %q (try -help)", command)
	}
}

type application struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	asJSON bool
}

// selectServers resolves which config entries a command operates on.
// With an explicit -server the enabled flag is ignored, so a disabled
// entry can still be tested by name.
func (a *application) selectServers(name string) ([]config.ServerConfig, error) {
	if name != "" {
		s := a.cfg.Server(name)
		if s == nil {
			return nil, fmt.Errorf("no server named %q in config", name)
		}
		return []config.ServerConfig{*s}, nil
	}

	var out []config.ServerConfig
	for _, s := range a.cfg.Servers {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no enabled servers in config")
	}
	return out, nil
}

// serverRow translates a config entry into the row form the engine
// consumes, with the list and map columns JSON-encoded the way the
// frontend stores them. Ids are positional within the config file.
func serverRow(id int64, s config.ServerConfig) mcp.ServerRow {
	encode := func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}

	row := mcp.ServerRow{
		ID:               id,
		Name:             s.Name,
		Transport:        s.Transport,
		Command:          s.Command,
		Cwd:              s.Cwd,
		URL:              s.URL,
		Auth:             s.Auth,
		HeartbeatSec:     s.HeartbeatSec,
		ConnectTimeoutMS: s.ConnectTimeoutMS,
		Enabled:          s.IsEnabled(),
	}
	if len(s.Args) > 0 {
		row.Args = encode(s.Args)
	}
	if len(s.Env) > 0 {
		row.Env = encode(s.Env)
	}
	if len(s.Headers) > 0 {
		row.Headers = encode(s.Headers)
	}
	return row
}

// checkReport pairs a probe outcome with its server name for output.
type checkReport struct {
	Server string `json:"server"`
	mcp.CheckResult
}

// check runs the one-shot probe against the selected servers. The
// command fails if any probe fails, after reporting all of them.
func (a *application) check(ctx context.Context, serverName string) error {
	servers, err := a.selectServers(serverName)
	if err != nil {
		return err
	}

	var reports []checkReport
	failed := 0
	for i, s := range servers {
		row := serverRow(int64(i+1), s)
		tcfg, err := row.TransportConfig()

		var result mcp.CheckResult
		if err != nil {
			result = mcp.CheckResult{Error: err.Error()}
		} else {
			result = mcp.CheckServer(ctx, tcfg)
		}
		if !result.OK {
			failed++
		}
		reports = append(reports, checkReport{Server: s.Name, CheckResult: result})
	}

	if a.asJSON {
		if err := writeJSON(a.stdout, reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			if r.OK {
				count := 0
				if r.ToolsCount != nil {
					count = *r.ToolsCount
				}
				fmt.Fprintf(a.stdout, "%s: ok (%d tools)\n", r.Server, count)
				for _, t := range r.Tools {
					fmt.Fprintf(a.stdout, "  %s\n", t.Name)
				}
			} else {
				fmt.Fprintf(a.stdout, "%s: FAILED: %s\n", r.Server, r.Error)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d servers failed", failed, len(servers))
	}
	return nil
}

// tools connects through the session manager and prints the tool
// catalog, exercising the same cached-session path the engine uses.
func (a *application) tools(ctx context.Context, serverName string) error {
	servers, err := a.selectServers(serverName)
	if err != nil {
		return err
	}

	manager := mcp.NewManager(a.logger)
	defer manager.Close()

	for i, s := range servers {
		row := serverRow(int64(i+1), s)
		if err := manager.EnsureFromRow(ctx, row); err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
		tools, err := manager.ListTools(ctx, row.ID, 0)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}

		if a.asJSON {
			if err := writeJSON(a.stdout, tools); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(a.stdout, "%s (%d tools)\n", s.Name, len(tools))
		for _, t := range tools {
			if t.Description != "" {
				fmt.Fprintf(a.stdout, "  %-24s %s\n", t.Name, t.Description)
			} else {
				fmt.Fprintf(a.stdout, "  %s\n", t.Name)
			}
		}
	}
	return nil
}

// call invokes one tool on one server: mcpcheck -server x call <tool>
// ['{"key":"value"}'].
func (a *application) call(ctx context.Context, serverName string, args []string) error {
	if serverName == "" {
		return fmt.Errorf("call requires -server <name>")
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: call <tool> [json-args]")
	}
	toolName := args[0]

	toolArgs := map[string]any{}
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
			return fmt.Errorf("tool arguments must be a JSON object: %w", err)
		}
	}

	s := a.cfg.Server(serverName)
	if s == nil {
		return fmt.Errorf("no server named %q in config", serverName)
	}
	row := serverRow(1, *s)

	manager := mcp.NewManager(a.logger)
	defer manager.Close()

	if err := manager.EnsureFromRow(ctx, row); err != nil {
		return err
	}
	content, err := manager.CallTool(ctx, row.ID, toolName, toolArgs, 0)
	if err != nil {
		return err
	}

	if a.asJSON {
		return writeJSON(a.stdout, map[string]string{"content": content})
	}
	fmt.Fprintln(a.stdout, content)
	return nil
}

func printVersion(w io.Writer, outputFmt string) error {
	if outputFmt == "json" {
		return writeJSON(w, map[string]string{
			"version":    buildinfo.Version,
			"git_commit": buildinfo.GitCommit,
			"build_time": buildinfo.BuildTime,
		})
	}
	fmt.Fprintln(w, buildinfo.String())
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprint(w, `mcpcheck - diagnose MCP server configurations

Usage:
  mcpcheck [flags] <command> [args]

Commands:
  check                 Probe servers: handshake + tools/list (default)
  tools                 Connect and print the tool catalog
  call <tool> [json]    Invoke one tool (requires -server)
  init [dir]            Write a starter mcpcheck.yaml
  version               Print version and build information

Flags:
  -config <path>        Config file (default: search standard paths)
  -server <name>        Operate on one named server
  -o json               Output results as JSON
  -log-level <level>    debug, info, warn, error
`)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
