package backend

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	name     string
	args     []string
	stdin    string
	deadline bool
	stdout   string
	stderr   string
	err      error
	block    bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	f.name = name
	f.args = args
	if stdin != nil {
		b, _ := io.ReadAll(stdin)
		f.stdin = string(b)
	}
	_, f.deadline = ctx.Deadline()
	if f.block {
		<-ctx.Done()
		return nil, []byte(f.stderr), ctx.Err()
	}
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func TestExecutor_Execute(t *testing.T) {
	runner := &fakeRunner{stdout: "ok", stderr: "warn"}
	e := NewExecutorWithRunner("/bin/piper", time.Second, runner)

	res, err := e.Execute(context.Background(), []string{"--model", "m.onnx"}, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(res.Stdout))
	assert.Equal(t, "warn", string(res.Stderr))
	assert.Equal(t, "/bin/piper", runner.name)
	assert.Equal(t, []string{"--model", "m.onnx"}, runner.args)
	assert.Equal(t, "hello", runner.stdin)
	assert.True(t, runner.deadline)
}

func TestExecutor_NoTimeout(t *testing.T) {
	runner := &fakeRunner{}
	e := NewExecutorWithRunner("/bin/piper", 0, runner)

	_, err := e.Execute(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.False(t, runner.deadline)
}

func TestExecutor_CommandError(t *testing.T) {
	boom := errors.New("boom")
	runner := &fakeRunner{stderr: "  voice not found\n", err: boom}
	e := NewExecutorWithRunner("/bin/piper", time.Second, runner)

	_, err := e.Execute(context.Background(), nil, nil)
	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, boom)
	assert.False(t, cerr.TimedOut)
	assert.Equal(t, "voice not found", cerr.Stderr)
	assert.Equal(t, "/bin/piper failed: boom: voice not found", err.Error())
}

func TestExecutor_Timeout(t *testing.T) {
	runner := &fakeRunner{block: true}
	e := NewExecutorWithRunner("/bin/piper", 10*time.Millisecond, runner)

	_, err := e.Execute(context.Background(), nil, nil)
	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.True(t, cerr.TimedOut)
	assert.Contains(t, err.Error(), "timed out")
}

func TestExecutor_ParentCancelIsNotTimeout(t *testing.T) {
	runner := &fakeRunner{block: true}
	e := NewExecutorWithRunner("/bin/piper", time.Minute, runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Execute(ctx, nil, nil)
	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.False(t, cerr.TimedOut)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTail(t *testing.T) {
	long := strings.Repeat("x", stderrTail+10)
	got := tail([]byte(long))
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.Len(t, got, stderrTail+3)
}

func TestNewExecutor_MissingBinary(t *testing.T) {
	_, err := NewExecutor("/definitely/not/here", time.Second, nil)
	assert.Error(t, err)
}

func TestExecCommandRunner_Run(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh unavailable")
	}
	runner := ExecCommandRunner{Env: map[string]string{"SAMPLEGEN_TEST_VAR": "set"}}

	stdout, _, err := runner.Run(context.Background(), "sh", []string{"-c", "cat; printf %s \"$SAMPLEGEN_TEST_VAR\""}, strings.NewReader("piped "))
	require.NoError(t, err)
	assert.Equal(t, "piped set", string(stdout))
}

func TestExecutor_ExitCode(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh unavailable")
	}
	e := NewExecutorWithRunner("sh", time.Second, ExecCommandRunner{})

	_, err := e.Execute(context.Background(), []string{"-c", "echo bad >&2; exit 3"}, nil)
	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 3, cerr.ExitCode)
	assert.Equal(t, "sh exited with code 3: bad", err.Error())
}
