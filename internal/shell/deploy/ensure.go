package deploy

import (
	"context"
	"log/slog"
	"slices"

	"github.com/artpar/paasdeploy/internal/core/deployment"
	"github.com/artpar/paasdeploy/internal/core/domain"
	"github.com/artpar/paasdeploy/internal/shell/controlplane"
)

// Each Ensure step queries first and mutates only what is missing, so
// running it twice against the same state is a no-op the second time.
// Failures match domain.ErrControlPlane.

// EnsureApp creates the application when the control plane does not list it.
// It reports whether the application was created.
func EnsureApp(ctx context.Context, s controlplane.Session, app domain.ApplicationSpec, team string, logger *slog.Logger) (bool, error) {
	logger = loggerOrDefault(logger)
	apps, err := s.ListApps(ctx)
	if err != nil {
		return false, classify(err, domain.ErrControlPlane)
	}
	if slices.Contains(apps, app.Name) {
		return false, nil
	}

	logger.Info("creating application", "app", app.Name, "platform", app.Platform, "team", team)
	if err := s.CreateApp(ctx, app.Name, app.Platform, team); err != nil {
		return false, classify(err, domain.ErrControlPlane)
	}
	return true, nil
}

// ApplyEnv writes every variable in env to the application in key order.
// Each write is an unconditional overwrite. It returns how many were written.
func ApplyEnv(ctx context.Context, s controlplane.Session, app string, env domain.EnvVars, logger *slog.Logger) (int, error) {
	logger = loggerOrDefault(logger)
	applied := 0
	for _, key := range env.Keys() {
		if err := s.SetEnv(ctx, app, key, env[key]); err != nil {
			return applied, classify(err, domain.ErrControlPlane)
		}
		applied++
	}
	if applied > 0 {
		logger.Info("environment applied", "app", app, "count", applied)
	}
	return applied, nil
}

// ServiceOutcome reports what EnsureService changed.
type ServiceOutcome struct {
	InstanceCreated bool
	Bound           bool
}

// EnsureService creates the service instance when it does not exist and
// binds it to the application when it is not bound yet. The two checks are
// independent: an existing instance may still need binding.
func EnsureService(ctx context.Context, s controlplane.Session, app string, binding domain.ServiceBinding, team string, logger *slog.Logger) (ServiceOutcome, error) {
	logger = loggerOrDefault(logger)
	var out ServiceOutcome

	instances, err := s.ListServiceInstances(ctx)
	if err != nil {
		return out, classify(err, domain.ErrControlPlane)
	}
	if !slices.Contains(instances, binding.InstanceName) {
		logger.Info("adding service instance", "service", binding.ServiceType, "instance", binding.InstanceName)
		if err := s.AddServiceInstance(ctx, binding.ServiceType, binding.InstanceName, team); err != nil {
			return out, classify(err, domain.ErrControlPlane)
		}
		out.InstanceCreated = true
	}

	bound, err := s.AppHasService(ctx, app, binding.InstanceName)
	if err != nil {
		return out, classify(err, domain.ErrControlPlane)
	}
	if !bound {
		logger.Info("binding service", "instance", binding.InstanceName, "app", app)
		if err := s.BindService(ctx, binding.ServiceType, binding.InstanceName, app); err != nil {
			return out, classify(err, domain.ErrControlPlane)
		}
		out.Bound = true
	}

	return out, nil
}

// ScaleOutcome reports the unit count before scaling and how many were added.
type ScaleOutcome struct {
	Before int
	Added  int
}

// ScaleUp adds units until the application runs at least floor of them.
// It issues at most one request and never removes units.
func ScaleUp(ctx context.Context, s controlplane.Session, app string, floor int, logger *slog.Logger) (ScaleOutcome, error) {
	logger = loggerOrDefault(logger)
	info, err := s.AppInfo(ctx, app)
	if err != nil {
		return ScaleOutcome{}, classify(err, domain.ErrControlPlane)
	}

	out := ScaleOutcome{Before: info.UnitCount()}
	n := deployment.Reconcile(out.Before, floor)
	if n == 0 {
		return out, nil
	}

	logger.Info("adding units", "app", app, "current", out.Before, "floor", floor, "adding", n)
	if err := s.AddUnits(ctx, app, n); err != nil {
		return out, classify(err, domain.ErrControlPlane)
	}
	out.Added = n
	return out, nil
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
