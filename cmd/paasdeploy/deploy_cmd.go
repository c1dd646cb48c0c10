package main

import (
	"fmt"
	"strings"

	"github.com/artpar/paasdeploy/internal/core/domain"
	"github.com/artpar/paasdeploy/internal/core/manifest"
	"github.com/artpar/paasdeploy/internal/shell/deploy"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

type deployOpts struct {
	*rootOpts

	email    string
	password string
	key      string
	team     string

	app      string
	platform string
	dir      string
	env      []string
	service  string
	delivery string
	git      bool
	units    int
}

func newDeploy(parent *rootOpts) *deployOpts {
	return &deployOpts{rootOpts: parent}
}

func (opts *deployOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Provision, configure and deploy one application",
		Example: makeExample(
			"paasdeploy deploy -a web -p python -d ./web",
			"paasdeploy deploy -a web -p python -d ./web --git --key ~/.ssh/id_rsa -e DEBUG=0 --service postgresql:web-db -u 5",
		),
		Args: noArgs,
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.app, "app", "a", "", "application name")
	cmd.Flags().StringVarP(&opts.platform, "platform", "p", "", "platform the application is created with")
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", ".", "directory holding the application source")
	cmd.Flags().StringArrayVarP(&opts.env, "env", "e", nil, "environment variable as KEY=VALUE; repeatable")
	cmd.Flags().StringVar(&opts.service, "service", "", "service instance to create and bind, as TYPE:INSTANCE")
	cmd.Flags().StringVar(&opts.delivery, "delivery", string(domain.DeliveryArtifact), "delivery method: artifact or git")
	cmd.Flags().BoolVar(&opts.git, "git", false, "shorthand for --delivery=git")
	cmd.Flags().IntVarP(&opts.units, "units", "u", manifest.DefaultUnits, "minimum number of units after the deploy")
	cmd.Flags().StringVar(&opts.email, "user", "", "user email; defaults to credentials.email")
	cmd.Flags().StringVar(&opts.password, "password", "", "user password; defaults to credentials.password")
	cmd.Flags().StringVar(&opts.key, "key", "", "SSH private key for git delivery; defaults to credentials.key")
	cmd.Flags().StringVar(&opts.team, "team", "", "team owning new applications and instances; defaults to credentials.team")
	return cmd
}

func (opts *deployOpts) RunE(cmd *cobra.Command, _ []string) (err error) {
	req, err := opts.request()
	if err != nil {
		return usageError{error: err}
	}
	if err := req.Validate(); err != nil {
		return usageError{error: err}
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

	res, err := d.Deploy(ctx, req)
	if err != nil {
		return err
	}
	printResults(opts.stdout, res)
	return nil
}

// request builds the deploy request from flags, falling back to configured
// credentials.
func (opts *deployOpts) request() (deploy.Request, error) {
	method, err := domain.ParseDeliveryMethod(opts.delivery)
	if err != nil {
		return deploy.Request{}, err
	}
	if opts.git {
		method = domain.DeliveryGit
	}

	env, err := parseEnvFlags(opts.env)
	if err != nil {
		return deploy.Request{}, err
	}

	var service *domain.ServiceBinding
	if opts.service != "" {
		if service, err = parseServiceFlag(opts.service); err != nil {
			return deploy.Request{}, err
		}
	}

	creds := opts.cfg.Credentials
	return deploy.Request{
		Credentials: domain.Credentials{
			Email:    firstNonEmpty(opts.email, creds.Email),
			Password: firstNonEmpty(opts.password, creds.Password),
			KeyPath:  firstNonEmpty(opts.key, creds.Key),
			Team:     firstNonEmpty(opts.team, creds.Team),
		},
		App: domain.ApplicationSpec{
			Name:     opts.app,
			Platform: opts.platform,
			Dir:      opts.dir,
		},
		Env:      env,
		Service:  service,
		Delivery: method,
		Units:    opts.units,
	}, nil
}

// parseEnvFlags parses KEY=VALUE pairs. Later pairs win.
func parseEnvFlags(pairs []string) (domain.EnvVars, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(domain.EnvVars, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid environment variable %q: want KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}

// parseServiceFlag parses TYPE:INSTANCE.
func parseServiceFlag(s string) (*domain.ServiceBinding, error) {
	serviceType, instance, ok := strings.Cut(s, ":")
	binding := &domain.ServiceBinding{ServiceType: serviceType, InstanceName: instance}
	if !ok {
		return nil, fmt.Errorf("invalid service %q: want TYPE:INSTANCE", s)
	}
	if err := binding.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service %q: %w", s, err)
	}
	return binding, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func makeExample(examples ...string) string {
	var buf strings.Builder
	for _, ex := range examples {
		buf.WriteString("  " + ex + "\n")
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
