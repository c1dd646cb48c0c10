package main

import (
	"fmt"

	"github.com/artpar/paasdeploy/internal/shell/target"
	"github.com/spf13/cobra"
)

type targetOpts struct {
	*rootOpts
}

func newTarget(parent *rootOpts) *targetOpts {
	return &targetOpts{rootOpts: parent}
}

func (opts *targetOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage the deployment target",
	}
	cmd.AddCommand(newTargetEnsure(opts).Command())
	return cmd
}

type targetEnsureOpts struct {
	*targetOpts
	label    string
	protocol string
	host     string
}

func newTargetEnsure(parent *targetOpts) *targetEnsureOpts {
	return &targetEnsureOpts{targetOpts: parent}
}

func (opts *targetEnsureOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Register the target with the tsuru CLI if missing and select it",
		Example: makeExample(
			"paasdeploy target ensure",
			"paasdeploy target ensure --label staging --host example.com",
		),
		Args: noArgs,
		RunE: opts.RunE,
	}
	cmd.Flags().StringVar(&opts.label, "label", "", "target label; defaults to target.label")
	cmd.Flags().StringVar(&opts.protocol, "protocol", "", "target protocol; defaults to target.protocol")
	cmd.Flags().StringVar(&opts.host, "host", "", "target host; defaults to target.host")
	return cmd
}

func (opts *targetEnsureOpts) RunE(cmd *cobra.Command, _ []string) error {
	t := opts.cfg.Target.DeploymentTarget()
	t.Label = firstNonEmpty(opts.label, t.Label)
	t.Protocol = firstNonEmpty(opts.protocol, t.Protocol)
	t.Host = firstNonEmpty(opts.host, t.Host)
	if err := t.Validate(); err != nil {
		return usageError{error: err}
	}

	reg := target.NewCLIRegistry(opts.runner, opts.cfg.Tsuru.Command)
	outcome, err := target.Ensure(cmd.Context(), reg, t, opts.logger)
	if err != nil {
		return err
	}

	state := "already selected"
	switch {
	case outcome.Added:
		state = "added and selected"
	case outcome.Selected:
		state = "selected"
	}
	fmt.Fprintf(opts.stdout, "target %s (%s) %s\n", t.Label, outcome.URI, state)
	return nil
}
