// Package delivery implements the two code delivery strategies: uploading
// the source directory as an artifact, and pushing a git working tree over
// SSH with a key leased from the agent for the duration of the push.
package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/artpar/paasdeploy/internal/core/deployment"
	"github.com/artpar/paasdeploy/internal/core/domain"
	"github.com/artpar/paasdeploy/internal/shell/process"
	"github.com/artpar/paasdeploy/internal/shell/sshagent"
	"go.uber.org/multierr"
)

// =============================================================================
// Errors
// =============================================================================

// Error reports a failed delivery. It matches domain.ErrDelivery.
type Error struct {
	Method domain.DeliveryMethod
	Target string // application name or repository URL
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s delivery to %s: %v", e.Method, e.Target, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{domain.ErrDelivery, e.Err}
}

// =============================================================================
// Artifact Push
// =============================================================================

// ArtifactConfig configures the artifact strategy.
type ArtifactConfig struct {
	// Command is the control-plane CLI. Default: "tsuru".
	Command string
}

// ArtifactPusher uploads a source directory through the control-plane CLI.
type ArtifactPusher struct {
	runner  process.Runner
	command string
	logger  *slog.Logger
}

// NewArtifactPusher creates an ArtifactPusher.
func NewArtifactPusher(runner process.Runner, cfg ArtifactConfig, logger *slog.Logger) *ArtifactPusher {
	if cfg.Command == "" {
		cfg.Command = "tsuru"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactPusher{
		runner:  runner,
		command: cfg.Command,
		logger:  logger.With("component", "artifact-push"),
	}
}

// Push deploys the contents of dir as a new version of app.
func (p *ArtifactPusher) Push(ctx context.Context, dir, app string) error {
	p.logger.Info("deploying via artifact upload", "app", app, "dir", dir)

	_, err := p.runner.Run(ctx, process.Command{
		Name: p.command,
		Args: deployment.ArtifactDeployArgs(app),
		Dir:  dir,
	})
	if err != nil {
		return &Error{Method: domain.DeliveryArtifact, Target: app, Err: err}
	}
	return nil
}

// =============================================================================
// Git Push
// =============================================================================

// GitConfig configures the git strategy.
type GitConfig struct {
	// Command is the git binary. Default: "git".
	Command string

	// Branch is the branch pushed to the application repository.
	// Default: deployment.DefaultBranch.
	Branch string

	// SSHConfigPath is the ssh client configuration used for the push.
	SSHConfigPath string
}

// KeyLeaser is the part of sshagent.Agent the git strategy needs.
type KeyLeaser interface {
	Acquire(ctx context.Context, keyPath string) (*sshagent.Lease, error)
}

// GitPusher pushes a working tree to an application repository.
type GitPusher struct {
	runner process.Runner
	agent  KeyLeaser
	config GitConfig
	logger *slog.Logger
}

// NewGitPusher creates a GitPusher.
func NewGitPusher(runner process.Runner, agent KeyLeaser, cfg GitConfig, logger *slog.Logger) *GitPusher {
	if cfg.Command == "" {
		cfg.Command = "git"
	}
	if cfg.Branch == "" {
		cfg.Branch = deployment.DefaultBranch
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GitPusher{
		runner: runner,
		agent:  agent,
		config: cfg,
		logger: logger.With("component", "git-push"),
	}
}

// Push pushes the working tree in dir to repoURL using keyPath.
//
// The key is registered with the agent before the push and removed after
// it, whatever the push outcome. When acquiring the key fails nothing is
// pushed. When both the push and the removal fail, the returned error
// carries both (see multierr.Errors).
func (p *GitPusher) Push(ctx context.Context, dir, repoURL, keyPath string) (err error) {
	lease, err := p.agent.Acquire(ctx, keyPath)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lease.Release(ctx); rerr != nil {
			err = multierr.Append(err, rerr)
		}
	}()

	p.logger.Info("deploying via git push",
		"repository", repoURL,
		"branch", p.config.Branch,
		"dir", dir,
	)

	_, perr := p.runner.Run(ctx, process.Command{
		Name: p.config.Command,
		Args: deployment.GitPushArgs(repoURL, p.config.Branch),
		Dir:  dir,
		Env:  deployment.GitEnv(lease.KeyPath, p.config.SSHConfigPath),
	})
	if perr != nil {
		return &Error{Method: domain.DeliveryGit, Target: repoURL, Err: perr}
	}
	return nil
}
