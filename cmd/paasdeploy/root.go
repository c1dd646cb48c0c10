package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/artpar/paasdeploy/internal/shell/controlplane"
	"github.com/artpar/paasdeploy/internal/shell/delivery"
	"github.com/artpar/paasdeploy/internal/shell/deploy"
	"github.com/artpar/paasdeploy/internal/shell/process"
	"github.com/artpar/paasdeploy/internal/shell/sshagent"
	"github.com/artpar/paasdeploy/internal/shell/store"
	"github.com/artpar/paasdeploy/internal/shell/target"
	"github.com/spf13/cobra"
)

type rootOpts struct {
	configPath string

	stdout io.Writer
	stderr io.Writer

	cfg    *Config
	logger *slog.Logger

	// Set before PersistentPreRunE to replace the real command runner and
	// control-plane client.
	runner       process.Runner
	controlPlane controlplane.ControlPlane
}

func newRoot(stdout, stderr io.Writer) *rootOpts {
	return &rootOpts{stdout: stdout, stderr: stderr}
}

var rootLongHelp = strings.TrimSpace(`
paasdeploy provisions applications on a tsuru control plane and ships code to them.

Workflow:
  paasdeploy target ensure                                          # Register and select the target.
  paasdeploy deploy -a web -p python -d ./web -e DEBUG=0 -u 3       # Deploy one application.
  paasdeploy bulk -f apps.yaml                                      # Deploy every application in a manifest.
  paasdeploy history -a web                                         # Show recent runs.
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "paasdeploy",
		Short:             "Deploy applications to a tsuru control plane",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to config file; every setting can also be set with a PAASDEPLOY_ environment variable")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{error: err}
	})

	cmd.AddCommand(
		newDeploy(opts).Command(),
		newBulk(opts).Command(),
		newTarget(opts).Command(),
		newHistory(opts).Command(),
		newVersion(opts).Command(),
	)

	return cmd
}

func (opts *rootOpts) PersistentPreRunE(_ *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	opts.cfg = cfg
	opts.logger = SetupLogger(cfg, opts.stderr)

	if opts.runner == nil {
		opts.runner = process.NewExecRunner(process.Config{Timeout: cfg.Tsuru.CommandTimeout}, opts.logger)
	}
	return nil
}

// =============================================================================
// Wiring
// =============================================================================

// openHistory opens the run history store. It returns nil when history is disabled.
func (opts *rootOpts) openHistory() (store.Store, error) {
	dsn := opts.cfg.Database.DSN
	if dsn == "" {
		return nil, nil
	}
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, store.NewStoreError("Open", "run", "", "failed to create database directory", err)
		}
	}
	s, err := store.NewSQLiteStore(dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func closeHistory(s store.Store) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

func (opts *rootOpts) newDeployer(history store.Store) (*deploy.Deployer, error) {
	cp := opts.controlPlane
	if cp == nil {
		url := opts.cfg.APIURL()
		if url == "" {
			return nil, errors.New("control plane URL is not configured: set control_plane.url, or target.label and target.host")
		}
		cp = controlplane.NewClient(controlplane.Config{
			BaseURL: url,
			Timeout: opts.cfg.ControlPlane.Timeout,
		}, opts.logger)
	}

	agent := sshagent.New(opts.runner, sshagent.DefaultConfig(), opts.logger)
	artifact := delivery.NewArtifactPusher(opts.runner, delivery.ArtifactConfig{
		Command: opts.cfg.Tsuru.Command,
	}, opts.logger)
	git := delivery.NewGitPusher(opts.runner, agent, delivery.GitConfig{
		Branch:        opts.cfg.Git.Branch,
		SSHConfigPath: opts.cfg.Tsuru.SSHConfigPath(),
	}, opts.logger)

	dOpts := deploy.Options{Logger: opts.logger}
	if history != nil {
		dOpts.Recorder = history
	}
	return deploy.NewDeployer(cp, artifact, git, dOpts), nil
}

// ensureTarget registers and selects the configured target when one is set
// and target.ensure is on.
func (opts *rootOpts) ensureTarget(ctx context.Context) (target.Outcome, error) {
	if !opts.cfg.Target.Ensure || !opts.cfg.Target.Configured() {
		return target.Outcome{}, nil
	}
	reg := target.NewCLIRegistry(opts.runner, opts.cfg.Tsuru.Command)
	return target.Ensure(ctx, reg, opts.cfg.Target.DeploymentTarget(), opts.logger)
}

func newTabwriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
}

func printResults(w io.Writer, results ...*deploy.Result) {
	out := newTabwriter(w)
	fmt.Fprintln(out, "RUN\tAPP\tDELIVERY\tCREATED\tENV\tSERVICE\tUNITS")
	for _, r := range results {
		service := "-"
		switch {
		case r.InstanceCreated:
			service = "created"
		case r.ServiceBound:
			service = "bound"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%t\t%d\t%s\t%d (+%d)\n",
			r.RunID, r.App, r.Delivery, r.AppCreated, r.EnvApplied, service,
			r.UnitsBefore+r.UnitsAdded, r.UnitsAdded)
	}
	out.Flush()
}

// environ returns the process environment as a map for manifest substitution.
func environ() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars
}
