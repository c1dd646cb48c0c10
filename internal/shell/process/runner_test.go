package process

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(timeout time.Duration) *ExecRunner {
	return NewExecRunner(Config{Timeout: timeout}, nil)
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "git push origin master", Command{Name: "git", Args: []string{"push", "origin", "master"}}.String())
	assert.Equal(t, "true", Command{Name: "true"}.String())
}

func TestNewExecRunner_Defaults(t *testing.T) {
	r := NewExecRunner(Config{}, nil)
	assert.Equal(t, DefaultTimeout, r.timeout)
	assert.Equal(t, DefaultInheritEnv, r.inheritEnv)
}

func TestExecRunner_RunsInGivenDir(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(10 * time.Second)

	out, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "pwd"}, Dir: dir})
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(strings.TrimSpace(string(out)))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExecRunner_PassesEnv(t *testing.T) {
	r := newTestRunner(10 * time.Second)

	out, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", `printf %s "$GREETING"`},
		Env:  []string{"GREETING=hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	r := newTestRunner(10 * time.Second)

	_, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo 'remote: rejected' >&2; echo 'fatal: push failed' >&2; exit 3"},
	})
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, "fatal: push failed", exitErr.Stderr)
	assert.Contains(t, err.Error(), "exit status 3")
}

func TestExecRunner_Timeout(t *testing.T) {
	r := newTestRunner(50 * time.Millisecond)

	_, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exec sleep 5"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, -1, exitErr.ExitCode)
}

func TestExecRunner_NotFound(t *testing.T) {
	r := newTestRunner(10 * time.Second)

	_, err := r.Run(context.Background(), Command{Name: "paasdeploy-no-such-binary"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExecRunner_CancelledContext(t *testing.T) {
	r := newTestRunner(10 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, Command{Name: "sh", Args: []string{"-c", "exit 0"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"fatal line", "hint: x\nfatal: bad\nmore\n", "fatal: bad"},
		{"error line", "Error: app not found\n", "Error: app not found"},
		{"last line", "one\ntwo\n\n", "two"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findErrorMessage(strings.NewReader(tt.output)))
		})
	}
}
