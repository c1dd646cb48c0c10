// Package target makes sure the control-plane CLI is pointed at the right
// environment before anything is deployed.
package target

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/artpar/paasdeploy/internal/core/domain"
	"github.com/artpar/paasdeploy/internal/shell/process"
)

// =============================================================================
// Errors
// =============================================================================

// Error reports a failed target registry operation. It matches domain.ErrControlPlane.
type Error struct {
	Op    string // "list", "add" or "set"
	Label string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s target %s: %v", e.Op, e.Label, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{domain.ErrControlPlane, e.Err}
}

// =============================================================================
// Registry
// =============================================================================

// Registry is the set of targets known to the control-plane CLI.
type Registry interface {
	List(ctx context.Context) ([]domain.TargetEntry, error)
	Add(ctx context.Context, label, uri string) error
	Set(ctx context.Context, label string) error
}

// Outcome reports which mutations Ensure performed.
type Outcome struct {
	URI      string
	Added    bool
	Selected bool
}

// Ensure registers t when its URI is not yet known and selects it when it
// is not the current target. Calling it again for the same target performs
// no mutation. Failures are returned as-is; nothing is retried.
func Ensure(ctx context.Context, reg Registry, t domain.DeploymentTarget, logger *slog.Logger) (Outcome, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := t.Validate(); err != nil {
		return Outcome{}, err
	}

	out := Outcome{URI: t.URI()}
	entries, err := reg.List(ctx)
	if err != nil {
		return out, err
	}
	state := domain.StateOf(entries, t.Label, out.URI)

	if !state.Known {
		logger.Info("registering target", "label", t.Label, "uri", out.URI)
		if err := reg.Add(ctx, t.Label, out.URI); err != nil {
			return out, err
		}
		out.Added = true
	}

	if !state.Current {
		logger.Info("selecting target", "label", t.Label)
		if err := reg.Set(ctx, t.Label); err != nil {
			return out, err
		}
		out.Selected = true
	}

	return out, nil
}

// =============================================================================
// CLI Registry
// =============================================================================

// CLIRegistry drives the tsuru CLI's target commands.
type CLIRegistry struct {
	runner  process.Runner
	command string
}

// NewCLIRegistry creates a registry running command (default "tsuru") through runner.
func NewCLIRegistry(runner process.Runner, command string) *CLIRegistry {
	if command == "" {
		command = "tsuru"
	}
	return &CLIRegistry{runner: runner, command: command}
}

var _ Registry = (*CLIRegistry)(nil)

// List implements Registry.
func (r *CLIRegistry) List(ctx context.Context) ([]domain.TargetEntry, error) {
	out, err := r.runner.Run(ctx, process.Command{Name: r.command, Args: []string{"target-list"}})
	if err != nil {
		return nil, &Error{Op: "list", Err: err}
	}
	return domain.ParseTargetList(string(out)), nil
}

// Add implements Registry.
func (r *CLIRegistry) Add(ctx context.Context, label, uri string) error {
	if _, err := r.runner.Run(ctx, process.Command{Name: r.command, Args: []string{"target-add", label, uri}}); err != nil {
		return &Error{Op: "add", Label: label, Err: err}
	}
	return nil
}

// Set implements Registry.
func (r *CLIRegistry) Set(ctx context.Context, label string) error {
	if _, err := r.runner.Run(ctx, process.Command{Name: r.command, Args: []string{"target-set", label}}); err != nil {
		return &Error{Op: "set", Label: label, Err: err}
	}
	return nil
}
