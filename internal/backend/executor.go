package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// stderrTail bounds how much child stderr is carried on a CommandError.
const stderrTail = 2048

// CommandRunner runs a child process to completion.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error)
}

// ExecCommandRunner runs commands with os/exec.
type ExecCommandRunner struct {
	// Env is appended to the parent environment.
	Env map[string]string
}

// Run runs a command and collects both output streams.
func (r ExecCommandRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	if len(r.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range r.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Result is the outcome of a successful one-shot command.
type Result struct {
	Stdout  []byte
	Stderr  []byte
	Elapsed time.Duration
}

// CommandError reports a failed one-shot command.
type CommandError struct {
	Binary   string
	ExitCode int
	TimedOut bool
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Binary)
	switch {
	case e.TimedOut:
		b.WriteString(" timed out")
	case e.ExitCode > 0:
		fmt.Fprintf(&b, " exited with code %d", e.ExitCode)
	default:
		fmt.Fprintf(&b, " failed: %v", e.Err)
	}
	if e.Stderr != "" {
		b.WriteString(": ")
		b.WriteString(e.Stderr)
	}
	return b.String()
}

func (e *CommandError) Unwrap() error { return e.Err }

// Executor runs a single binary with a per-call deadline.
type Executor struct {
	runner     CommandRunner
	binaryPath string
	timeout    time.Duration
}

// NewExecutor checks that binaryPath exists and returns an executor for it.
func NewExecutor(binaryPath string, timeout time.Duration, env map[string]string) (*Executor, error) {
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("binary not found: %w", err)
	}
	return NewExecutorWithRunner(binaryPath, timeout, ExecCommandRunner{Env: env}), nil
}

// NewExecutorWithRunner creates an executor with a custom runner.
func NewExecutorWithRunner(binaryPath string, timeout time.Duration, runner CommandRunner) *Executor {
	return &Executor{
		binaryPath: binaryPath,
		timeout:    timeout,
		runner:     runner,
	}
}

// Execute runs the binary. A zero timeout leaves only ctx in charge.
func (e *Executor) Execute(ctx context.Context, args []string, stdin io.Reader) (*Result, error) {
	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	stdout, stderr, err := e.runner.Run(runCtx, e.binaryPath, args, stdin)
	if err != nil {
		cerr := &CommandError{
			Binary: e.binaryPath,
			Stderr: tail(stderr),
			Err:    err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr.ExitCode = exitErr.ExitCode()
		}
		// Only our own deadline counts as a timeout; parent cancellation stays a plain failure.
		if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			cerr.TimedOut = true
		}
		return nil, cerr
	}

	return &Result{Stdout: stdout, Stderr: stderr, Elapsed: time.Since(start)}, nil
}

func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	return s
}
