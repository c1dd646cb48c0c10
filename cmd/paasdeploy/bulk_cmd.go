package main

import (
	"fmt"
	"os"

	"github.com/artpar/paasdeploy/internal/core/manifest"
	"github.com/artpar/paasdeploy/internal/shell/deploy"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

type bulkOpts struct {
	*rootOpts
	file   string
	dryRun bool
}

func newBulk(parent *rootOpts) *bulkOpts {
	return &bulkOpts{rootOpts: parent}
}

func (opts *bulkOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Deploy every application listed in a manifest, in order",
		Long: `Deploy every application listed in a manifest, in order.

${VAR} and ${VAR:-default} placeholders in the manifest are replaced from the
environment. The run stops at the first failed deployment.`,
		Example: makeExample(
			"paasdeploy bulk -f apps.yaml",
			"paasdeploy bulk -f apps.yaml --dry-run",
		),
		Args: noArgs,
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "manifest file")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate the manifest and print the plan without deploying")
	return cmd
}

func (opts *bulkOpts) RunE(cmd *cobra.Command, _ []string) (err error) {
	if opts.file == "" {
		return newUsageError("--file is required")
	}
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	m, err := manifest.Parse(string(data), environ())
	if err != nil {
		return usageError{error: fmt.Errorf("manifest %s: %w", opts.file, err)}
	}

	if m.Target != nil {
		opts.cfg.Target = opts.cfg.Target.Override(*m.Target)
	}

	if opts.dryRun {
		printPlan(opts, m)
		return nil
	}

	ctx := cmd.Context()
	if _, err := opts.ensureTarget(ctx); err != nil {
		return err
	}

	history, err := opts.openHistory()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeHistory(history)) }()

	d, err := opts.newDeployer(history)
	if err != nil {
		return err
	}

	results := make([]*deploy.Result, 0, len(m.Entries))
	defer func() { printResults(opts.stdout, results...) }()

	for i, e := range m.Entries {
		res, err := d.Deploy(ctx, deploy.Request{
			Credentials: e.Credentials,
			App:         e.App,
			Env:         e.Env,
			Service:     e.Service,
			Delivery:    e.Delivery,
			Units:       e.Units,
		})
		if err != nil {
			return fmt.Errorf("apps[%d] %s: %w", i, e.App.Name, err)
		}
		results = append(results, res)
	}
	return nil
}

func printPlan(opts *bulkOpts, m *manifest.Manifest) {
	out := newTabwriter(opts.stdout)
	if m.Target != nil {
		t := opts.cfg.Target.DeploymentTarget()
		fmt.Fprintf(out, "target: %s (%s)\n", t.Label, t.URI())
	}
	fmt.Fprintln(out, "APP\tUSER\tPLATFORM\tDIR\tDELIVERY\tENV\tSERVICE\tUNITS")
	for _, e := range m.Entries {
		service := "-"
		if e.Service != nil {
			service = e.Service.ServiceType + ":" + e.Service.InstanceName
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%d\n",
			e.App.Name, e.User, e.App.Platform, e.App.Dir, e.Delivery, len(e.Env), service, e.Units)
	}
	out.Flush()
}
