package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// stdoutBufferSize is the read buffer for subprocess stdout. Large
// tool results (file contents, page dumps) arrive as one line.
const stdoutBufferSize = 1 << 20

// StdioConfig configures a stdio MCP session that speaks
// newline-delimited JSON-RPC with a spawned subprocess.
type StdioConfig struct {
	// Command is the program to run. A bare name (no path separator)
	// is resolved through the user's login shell; a path is executed
	// directly.
	Command string

	// Args are the program's arguments.
	Args []string

	// Env holds additional environment variables, as decoded from the
	// server row's JSON env column. Only string-valued entries are
	// applied; entries of any other type are silently skipped.
	Env map[string]any

	// Cwd is the subprocess working directory. Empty or all-whitespace
	// is treated as unset.
	Cwd string

	// Logger receives transport diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// stdioSession owns a spawned MCP server subprocess and its pipes.
// The subprocess is killed exactly once, on Close. Stdout is consumed
// by a single long-lived goroutine feeding the lines channel, so a
// Send that gives up on a slow reply never leaves a second reader
// behind.
type stdioSession struct {
	logger *slog.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan readResult
	done   chan struct{}
	nextID uint64

	closeOnce sync.Once
}

// NewStdioSession spawns the configured subprocess and wires up its
// standard streams. The spawn itself is bounded by connectTimeout.
// The returned session has not been initialized — callers must run the
// handshake before using it, and must Close it on every path once
// construction has succeeded.
func NewStdioSession(ctx context.Context, cfg StdioConfig, connectTimeout time.Duration) (Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmd := buildStdioCommand(cfg, logger)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	// Stderr is drained for passive logging only; it is never parsed
	// or surfaced as a call result.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	started := make(chan error, 1)
	go func() { started <- cmd.Start() }()

	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()

	select {
	case err := <-started:
		if err != nil {
			stdin.Close()
			return nil, fmt.Errorf("spawn %s: %w", cfg.Command, err)
		}
	case <-timer.C:
		// Reap the child whenever the late spawn completes so it
		// cannot outlive the failed connection attempt.
		go func() {
			if err := <-started; err == nil {
				_ = cmd.Process.Kill()
				_ = cmd.Wait()
			}
		}()
		logger.Warn("timed out spawning MCP subprocess",
			"command", cfg.Command,
			"timeout", connectTimeout,
		)
		return nil, errors.New("spawn timeout")
	case <-ctx.Done():
		go func() {
			if err := <-started; err == nil {
				_ = cmd.Process.Kill()
				_ = cmd.Wait()
			}
		}()
		return nil, ctx.Err()
	}

	s := &stdioSession{
		logger: logger,
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan readResult),
		done:   make(chan struct{}),
	}
	go s.readLoop(stdout)
	go s.drainStderr(stderr)

	logger.Debug("MCP subprocess spawned", "command", cfg.Command, "pid", cmd.Process.Pid)
	return s, nil
}

// buildStdioCommand constructs the exec.Cmd for cfg. Bare program names
// go through the login shell invoked non-interactively with a single
// shell-escaped command line; paths run directly with their argument
// list, bypassing the shell.
func buildStdioCommand(cfg StdioConfig, logger *slog.Logger) *exec.Cmd {
	var cmd *exec.Cmd
	if isBareCommand(cfg.Command) {
		shell := loginShell()
		composed := composeShellLine(cfg.Command, cfg.Args)
		logger.Debug("using shell wrapper for MCP command",
			"shell", shell,
			"command", cfg.Command,
			"args_count", len(cfg.Args),
		)
		cmd = exec.Command(shell, "-lc", composed)
	} else {
		logger.Debug("using direct MCP command",
			"command", cfg.Command,
			"args_count", len(cfg.Args),
		)
		cmd = exec.Command(cfg.Command, cfg.Args...)
	}

	if cwd := strings.TrimSpace(cfg.Cwd); cwd != "" {
		cmd.Dir = cwd
	}

	if len(cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range cfg.Env {
			if s, ok := v.(string); ok {
				env = append(env, k+"="+s)
			}
		}
		cmd.Env = env
	}

	return cmd
}

// readLoop is the session's only stdout reader. It runs for the life
// of the subprocess, delivering one line per receive on s.lines, and
// exits when the stream ends or the session is closed.
func (s *stdioSession) readLoop(r io.Reader) {
	reader := bufio.NewReaderSize(r, stdoutBufferSize)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			select {
			case s.lines <- readResult{line: line}:
			case <-s.done:
				return
			}
		}
		if err != nil {
			select {
			case s.lines <- readResult{err: err}:
			case <-s.done:
			}
			return
		}
	}
}

// drainStderr logs subprocess stderr lines at debug level.
func (s *stdioSession) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		s.logger.Debug("MCP subprocess stderr", "line", scanner.Text())
	}
}

// Send writes one newline-terminated JSON-RPC request to the subprocess
// and reads one line back as its response. The write and the read are
// each bounded by timeout.
//
// A reply that arrives after its deadline expired is discarded by the
// next Send (see readLine), so a single slow response cannot shift
// every later call off by one.
func (s *stdioSession) Send(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	s.nextID++
	s.logger.Debug("mcp.send(stdio)", "id", s.nextID, "method", method, "timeout", timeout)

	line, err := json.Marshal(newRequest(s.nextID, method, params))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if err := s.writeLine(ctx, append(line, '\n'), timeout); err != nil {
		return nil, err
	}

	resp, err := s.readLine(ctx, s.nextID, timeout)
	if err != nil {
		return nil, err
	}
	return decodeResult(resp)
}

// Notify writes one newline-terminated JSON-RPC notification. No
// response is read.
func (s *stdioSession) Notify(ctx context.Context, method string, params any, timeout time.Duration) error {
	s.logger.Debug("mcp.notify(stdio)", "method", method)

	line, err := json.Marshal(newNotification(method, params))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.writeLine(ctx, append(line, '\n'), timeout)
}

func (s *stdioSession) writeLine(ctx context.Context, data []byte, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		_, err := s.stdin.Write(data)
		done <- err
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("write to subprocess stdin: %w", err)
		}
		return nil
	case <-timer.C:
		s.logger.Warn("mcp.send(stdio): write timeout", "timeout", timeout)
		return errors.New("write timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

type readResult struct {
	line []byte
	err  error
}

// readLine waits for the reply to request id. Replies to earlier
// requests, whose deadlines already expired, are logged and dropped.
func (s *stdioSession) readLine(ctx context.Context, id uint64, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case res := <-s.lines:
			if res.err != nil {
				return nil, fmt.Errorf("read from subprocess stdout: %w", res.err)
			}
			if staleID, stale := staleReplyID(res.line, id); stale {
				s.logger.Debug("mcp.send(stdio): dropping late reply", "id", staleID, "want", id)
				continue
			}
			return res.line, nil
		case <-timer.C:
			s.logger.Warn("mcp.send(stdio): read timeout", "timeout", timeout)
			return nil, errors.New("read timeout")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// staleReplyID reports whether line is a response to a request older
// than id. Lines without a numeric id (server notifications, malformed
// output) are never treated as stale; they surface to the caller
// unchanged.
func staleReplyID(line []byte, id uint64) (uint64, bool) {
	var header struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(line, &header); err != nil {
		return 0, false
	}
	if header.ID != 0 && header.ID < id {
		return header.ID, true
	}
	return 0, false
}

// Close kills the subprocess. It does not wait for graceful shutdown;
// kill failures are logged and swallowed. Safe to call more than once.
func (s *stdioSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.stdin != nil {
			_ = s.stdin.Close()
		}
		if s.cmd != nil && s.cmd.Process != nil {
			pid := s.cmd.Process.Pid
			s.logger.Debug("killing MCP subprocess", "pid", pid)
			if err := s.cmd.Process.Kill(); err != nil {
				s.logger.Debug("kill MCP subprocess failed", "pid", pid, "error", err)
			}
			// Reap asynchronously so Close never blocks on a wedged child.
			go func() { _ = s.cmd.Wait() }()
		}
	})
	return nil
}
