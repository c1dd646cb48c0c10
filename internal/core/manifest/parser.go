package manifest

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/paasdeploy/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultUnits is the unit floor used when an app entry does not set one.
	DefaultUnits = 3

	// PostgresServiceType is the service type used by the "postgres" shorthand.
	PostgresServiceType = "postgresql"
)

// =============================================================================
// Types
// =============================================================================

// Manifest is a validated bulk deployment description.
type Manifest struct {
	// Target is the environment to deploy to, nil when the manifest leaves it to configuration.
	Target *domain.DeploymentTarget

	// Entries are the deployments in file order.
	Entries []Entry
}

// Entry is one fully resolved deployment.
type Entry struct {
	User        string
	Credentials domain.Credentials
	App         domain.ApplicationSpec
	Env         domain.EnvVars
	Service     *domain.ServiceBinding
	Delivery    domain.DeliveryMethod
	Units       int
}

type rawManifest struct {
	Target *domain.DeploymentTarget       `yaml:"target"`
	Users  map[string]domain.Credentials `yaml:"users"`
	Apps   []rawApp                      `yaml:"apps"`
}

type rawApp struct {
	Name     string                 `yaml:"name"`
	User     string                 `yaml:"user"`
	Platform string                 `yaml:"platform"`
	Dir      string                 `yaml:"dir"`
	Env      map[string]string      `yaml:"env"`
	Postgres string                 `yaml:"postgres"`
	Service  *domain.ServiceBinding `yaml:"service"`
	Delivery string                 `yaml:"delivery"`
	Git      bool                   `yaml:"git"`
	Units    *int                   `yaml:"units"`
}

// =============================================================================
// Parser Functions
// =============================================================================

// Parse parses manifest YAML, substitutes ${VAR} placeholders in string
// values from variables and validates every entry.
// This is a pure function - no I/O, no side effects.
func Parse(yamlContent string, variables map[string]string) (*Manifest, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	var raw rawManifest
	dec := yaml.NewDecoder(strings.NewReader(yamlContent))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, NewParseError("", err.Error(), ErrInvalidYAML)
	}

	if len(raw.Apps) == 0 {
		return nil, ErrNoApps
	}

	m := &Manifest{}

	if raw.Target != nil {
		target := domain.DeploymentTarget{
			Label:    SubstituteVariables(raw.Target.Label, variables),
			Protocol: SubstituteVariables(raw.Target.Protocol, variables),
			Host:     SubstituteVariables(raw.Target.Host, variables),
		}
		if err := target.Validate(); err != nil {
			return nil, NewParseError("target", err.Error(), errors.Join(ErrInvalidTarget, err))
		}
		m.Target = &target
	}

	users, err := resolveUsers(raw.Users, variables)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(raw.Apps))
	for i, app := range raw.Apps {
		field := fmt.Sprintf("apps[%d]", i)
		entry, err := resolveApp(field, app, users, variables)
		if err != nil {
			return nil, err
		}
		if first, dup := seen[entry.App.Name]; dup {
			return nil, NewParseError(field, fmt.Sprintf("%q already listed at apps[%d]", entry.App.Name, first), ErrDuplicateApp)
		}
		seen[entry.App.Name] = i
		m.Entries = append(m.Entries, entry)
	}

	return m, nil
}

func resolveUsers(raw map[string]domain.Credentials, variables map[string]string) (map[string]domain.Credentials, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	users := make(map[string]domain.Credentials, len(raw))
	for _, name := range names {
		u := raw[name]
		creds := domain.Credentials{
			Email:    SubstituteVariables(u.Email, variables),
			Password: SubstituteVariables(u.Password, variables),
			KeyPath:  SubstituteVariables(u.KeyPath, variables),
			Team:     SubstituteVariables(u.Team, variables),
		}
		if strings.TrimSpace(creds.Email) == "" {
			return nil, NewParseError("users."+name, domain.ErrEmailRequired.Error(), errors.Join(ErrInvalidUser, domain.ErrEmailRequired))
		}
		users[name] = creds
	}
	return users, nil
}

func resolveApp(field string, app rawApp, users map[string]domain.Credentials, variables map[string]string) (Entry, error) {
	invalid := func(err error) error {
		return NewParseError(field, err.Error(), errors.Join(ErrInvalidApp, err))
	}

	creds, ok := users[app.User]
	if !ok {
		return Entry{}, NewParseError(field+".user", fmt.Sprintf("user %q is not defined", app.User), ErrUnknownUser)
	}

	spec := domain.ApplicationSpec{
		Name:     SubstituteVariables(app.Name, variables),
		Platform: SubstituteVariables(app.Platform, variables),
		Dir:      SubstituteVariables(app.Dir, variables),
	}
	if spec.Name == "" && spec.Dir != "" {
		spec.Name = domain.AppNameFromDir(spec.Dir)
	}
	if err := spec.Validate(); err != nil {
		return Entry{}, invalid(err)
	}

	delivery, err := domain.ParseDeliveryMethod(app.Delivery)
	if err != nil {
		return Entry{}, invalid(err)
	}
	if app.Git {
		if app.Delivery != "" && delivery != domain.DeliveryGit {
			return Entry{}, invalid(fmt.Errorf("git: true conflicts with delivery %q", app.Delivery))
		}
		delivery = domain.DeliveryGit
	}
	if err := creds.Validate(delivery); err != nil {
		return Entry{}, invalid(err)
	}

	service, err := resolveService(app)
	if err != nil {
		return Entry{}, invalid(err)
	}

	units := DefaultUnits
	if app.Units != nil {
		units = *app.Units
	}
	if units < 0 {
		return Entry{}, invalid(domain.ErrNegativeUnits)
	}

	var env domain.EnvVars
	if len(app.Env) > 0 {
		env = make(domain.EnvVars, len(app.Env))
		for k, v := range app.Env {
			env[k] = SubstituteVariables(v, variables)
		}
	}

	return Entry{
		User:        app.User,
		Credentials: creds,
		App:         spec,
		Env:         env,
		Service:     service,
		Delivery:    delivery,
		Units:       units,
	}, nil
}

func resolveService(app rawApp) (*domain.ServiceBinding, error) {
	if app.Postgres != "" && app.Service != nil {
		return nil, errors.New("postgres and service are mutually exclusive")
	}
	if app.Postgres != "" {
		return &domain.ServiceBinding{ServiceType: PostgresServiceType, InstanceName: app.Postgres}, nil
	}
	if app.Service != nil {
		if err := app.Service.Validate(); err != nil {
			return nil, err
		}
		s := *app.Service
		return &s, nil
	}
	return nil, nil
}
