// Package process runs external commands for the code delivery strategies.
//
// Every command carries its working directory explicitly; nothing here
// changes the process working directory. Failures come back as *ExitError
// values instead of panics or exit-code checks at call sites.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// =============================================================================
// Types
// =============================================================================

// Command is one external program invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

// String renders the command for logs and errors.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes commands.
type Runner interface {
	// Run executes cmd and returns its standard output. A non-zero exit,
	// a timeout or a failure to start yields an *ExitError.
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrTimeout is returned when a command exceeds its time limit.
	ErrTimeout = errors.New("command timed out")

	// ErrNotFound is returned when the program is not installed.
	ErrNotFound = errors.New("command not found")
)

// ExitError describes a failed command.
type ExitError struct {
	Command  string // Rendered command line
	ExitCode int    // -1 when the process never exited normally
	Stderr   string // Most relevant stderr line
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	if e.ExitCode < 0 && e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ExecRunner
// =============================================================================

// Config configures the exec-based runner.
type Config struct {
	// Timeout bounds every command. Zero means DefaultTimeout.
	Timeout time.Duration

	// InheritEnv lists variables copied from this process's environment.
	// nil means DefaultInheritEnv.
	InheritEnv []string
}

// DefaultTimeout bounds a command when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Minute

// DefaultInheritEnv are the variables the delivery commands need to find
// their configuration, the SSH agent and proxies.
var DefaultInheritEnv = []string{
	"HOME", "PATH", "USER", "SSH_AUTH_SOCK", "TSURU_TARGET", "TSURU_TOKEN",
	"http_proxy", "https_proxy", "no_proxy",
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	timeout    time.Duration
	inheritEnv []string
	logger     *slog.Logger
}

// NewExecRunner creates a runner.
func NewExecRunner(cfg Config, logger *slog.Logger) *ExecRunner {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.InheritEnv == nil {
		cfg.InheritEnv = DefaultInheritEnv
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{
		timeout:    cfg.Timeout,
		inheritEnv: cfg.InheritEnv,
		logger:     logger.With("component", "process"),
	}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	if cmd.Dir != "" {
		c.Dir = cmd.Dir
	}
	c.Env = append(r.env(), cmd.Env...)
	// Children that outlive the killed process must not hold the pipes open.
	c.WaitDelay = 5 * time.Second

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	c.Stdout = stdout
	c.Stderr = stderr

	start := time.Now()
	err := c.Run()
	r.logger.Debug("command finished",
		"command", cmd.String(),
		"dir", cmd.Dir,
		"duration", time.Since(start),
		"error", err,
	)
	if err == nil {
		return stdout.Bytes(), nil
	}

	exitErr := &ExitError{
		Command:  cmd.String(),
		ExitCode: -1,
		Stderr:   findErrorMessage(stderr),
		Err:      err,
	}

	var ee *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		exitErr.Err = fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
	case ctx.Err() != nil:
		exitErr.Err = ctx.Err()
	case errors.Is(err, exec.ErrNotFound):
		exitErr.Err = fmt.Errorf("%w: %s", ErrNotFound, cmd.Name)
	case errors.As(err, &ee):
		exitErr.ExitCode = ee.ExitCode()
	}
	return stdout.Bytes(), exitErr
}

func (r *ExecRunner) env() []string {
	var env []string
	for _, k := range r.inheritEnv {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	return env
}

// findErrorMessage picks the line most likely to explain a failure: the
// first "fatal:" or "error:" line, otherwise the last non-empty line.
func findErrorMessage(output io.Reader) string {
	var last string
	sc := bufio.NewScanner(output)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "fatal: "), strings.HasPrefix(line, "error: "), strings.HasPrefix(line, "Error: "):
			return line
		case line != "":
			last = line
		}
	}
	return last
}
