// Package inspector observes the backing application server's request queue
// by running its status command and parsing the reported depth.
package inspector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var (
	// ErrTimeout is returned when the status command exceeds its allotted wait.
	ErrTimeout = errors.New("status command timed out")
	// ErrCommandFailed is returned when the status command exits non-zero or cannot start.
	ErrCommandFailed = errors.New("status command failed")
	// ErrParseFailed is returned when the output does not carry a queue depth.
	ErrParseFailed = errors.New("status output not parseable")
)

// DefaultTimeout matches the wait the passenger-status integration has always used.
const DefaultTimeout = 5 * time.Second

// waitDelay bounds how long Run waits for I/O after the kill. A child that
// left the process group could otherwise hold stdout open.
const waitDelay = 500 * time.Millisecond

const maxStderr = 256

// maxOutput caps captured stdout and stderr. A status line is well under 1KB.
const maxOutput = 64 * 1024

// QueueSource reports the current queue depth.
type QueueSource interface {
	Inspect(ctx context.Context) (int, error)
}

// SourceFunc adapts a plain function to QueueSource.
type SourceFunc func(ctx context.Context) (int, error)

// Inspect calls f(ctx).
func (f SourceFunc) Inspect(ctx context.Context) (int, error) {
	return f(ctx)
}

// CommandInspector runs a shell command and parses its stdout.
type CommandInspector struct {
	shell   string
	command string
	timeout time.Duration
	parser  Parser
}

// NewCommandInspector creates an inspector that runs `shell -c command`.
// A non-positive timeout falls back to DefaultTimeout; a nil parser to a ":" DelimitedParser.
func NewCommandInspector(shell, command string, timeout time.Duration, parser Parser) *CommandInspector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if parser == nil {
		parser = DelimitedParser{Delimiter: ":"}
	}
	return &CommandInspector{
		shell:   shell,
		command: command,
		timeout: timeout,
		parser:  parser,
	}
}

// Inspect runs the status command once and returns the parsed queue depth.
//
// The command runs under its own deadline and ignores cancellation of ctx, so
// a disconnecting HTTP client does not interrupt it. On timeout the whole
// process group is killed, pipeline children included.
func (c *CommandInspector) Inspect(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	stdout := &limitedWriter{buf: &bytes.Buffer{}, limit: maxOutput}
	stderr := &limitedWriter{buf: &bytes.Buffer{}, limit: maxOutput}
	cmd := exec.CommandContext(ctx, c.shell, "-c", c.command)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	killGroupOnCancel(cmd)

	err := cmd.Run()
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return 0, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
	}
	if err != nil {
		if msg := tail(stderr.buf.String()); msg != "" {
			return 0, fmt.Errorf("%w: %v: %s", ErrCommandFailed, err, msg)
		}
		return 0, fmt.Errorf("%w: %v", ErrCommandFailed, err)
	}

	return c.parser.Parse(stdout.buf.String())
}

// Kind names the failure class of an Inspect error for logging.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCommandFailed):
		return "command_failed"
	case errors.Is(err, ErrParseFailed):
		return "parse_failed"
	default:
		return "unknown"
	}
}

// limitedWriter keeps the first limit bytes and silently drops the rest,
// so a runaway status tool cannot grow memory.
type limitedWriter struct {
	buf       *bytes.Buffer
	limit     int
	truncated bool
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		w.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		w.truncated = true
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = s[len(s)-maxStderr:]
	}
	return s
}
