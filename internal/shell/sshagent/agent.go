// Package sshagent registers SSH keys with the running ssh-agent for the
// duration of one git push.
//
// A Lease is held by exactly one push at a time per key file. Acquire
// registers the key; Release removes it and must run on every exit path,
// typically via defer right after a successful Acquire.
package sshagent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/artpar/paasdeploy/internal/core/deployment"
	"github.com/artpar/paasdeploy/internal/core/domain"
	"github.com/artpar/paasdeploy/internal/core/sshkey"
	"github.com/artpar/paasdeploy/internal/shell/keylock"
	"github.com/artpar/paasdeploy/internal/shell/process"
)

// =============================================================================
// Errors
// =============================================================================

// LeaseError reports a failed acquire or release. It matches domain.ErrCredential.
type LeaseError struct {
	Op      string // "acquire" or "release"
	KeyPath string
	Err     error
}

func (e *LeaseError) Error() string {
	return fmt.Sprintf("%s SSH key %s: %v", e.Op, e.KeyPath, e.Err)
}

func (e *LeaseError) Unwrap() []error {
	return []error{domain.ErrCredential, e.Err}
}

// =============================================================================
// Agent
// =============================================================================

// Config configures the agent wrapper.
type Config struct {
	// Command is the agent registration program. Default: "ssh-add".
	Command string

	// ReleaseTimeout bounds deregistration, which runs even after the
	// caller's context is cancelled. Default: 30 seconds.
	ReleaseTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Command:        "ssh-add",
		ReleaseTimeout: 30 * time.Second,
	}
}

// Agent hands out key leases. It is safe for concurrent use; leases on the
// same key file are serialized.
type Agent struct {
	runner process.Runner
	config Config
	locks  *keylock.Locker
	logger *slog.Logger
}

// New creates an Agent that runs registration commands through runner.
func New(runner process.Runner, config Config, logger *slog.Logger) *Agent {
	if config.Command == "" {
		config.Command = "ssh-add"
	}
	if config.ReleaseTimeout == 0 {
		config.ReleaseTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		runner: runner,
		config: config,
		locks:  keylock.New(),
		logger: logger.With("component", "sshagent"),
	}
}

// Acquire validates the key file and registers it with the agent. It waits
// while another lease holds the same key. On error nothing is registered and
// no lease exists. A leading "~/" in keyPath is the user's home directory.
func (a *Agent) Acquire(ctx context.Context, keyPath string) (*Lease, error) {
	path, err := expandHome(keyPath)
	if err != nil {
		return nil, &LeaseError{Op: "acquire", KeyPath: keyPath, Err: err}
	}
	path = filepath.Clean(path)
	fail := func(err error) (*Lease, error) {
		return nil, &LeaseError{Op: "acquire", KeyPath: path, Err: err}
	}

	unlock, err := a.locks.Lock(ctx, path)
	if err != nil {
		return fail(fmt.Errorf("wait for key: %w", err))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		unlock()
		return fail(err)
	}
	info, err := sshkey.Inspect(data)
	if err != nil {
		unlock()
		return fail(err)
	}

	if _, err := a.runner.Run(ctx, process.Command{
		Name: a.config.Command,
		Args: deployment.AgentAddArgs(path),
	}); err != nil {
		unlock()
		return fail(err)
	}

	a.logger.Info("SSH key registered",
		"key", path,
		"type", info.Type,
		"fingerprint", info.Fingerprint,
	)

	return &Lease{
		KeyPath:     path,
		Fingerprint: info.Fingerprint,
		agent:       a,
		unlock:      unlock,
	}, nil
}

// expandHome resolves "~" and "~/..." against the current user's home
// directory. No shell sits between the key path and ssh-add or git.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// =============================================================================
// Lease
// =============================================================================

// Lease is a key registered with the agent.
type Lease struct {
	KeyPath     string
	Fingerprint string

	agent  *Agent
	unlock func()
	once   sync.Once
	err    error
}

// Release deregisters the key and frees it for the next lease. Only the
// first call does anything; later calls return the first call's result.
// It runs even when ctx is already cancelled.
func (l *Lease) Release(ctx context.Context) error {
	l.once.Do(func() {
		defer l.unlock()

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.agent.config.ReleaseTimeout)
		defer cancel()

		_, err := l.agent.runner.Run(rctx, process.Command{
			Name: l.agent.config.Command,
			Args: deployment.AgentRemoveArgs(l.KeyPath),
		})
		if err != nil {
			l.err = &LeaseError{Op: "release", KeyPath: l.KeyPath, Err: err}
			l.agent.logger.Error("failed to remove SSH key", "key", l.KeyPath, "error", err)
			return
		}
		l.agent.logger.Info("SSH key removed", "key", l.KeyPath)
	})
	return l.err
}
