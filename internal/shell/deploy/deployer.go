package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/artpar/paasdeploy/internal/core/domain"
	"github.com/artpar/paasdeploy/internal/shell/controlplane"
	"github.com/artpar/paasdeploy/internal/shell/keylock"
)

// =============================================================================
// Collaborators
// =============================================================================

// ArtifactPusher uploads a source directory as a new version of an application.
type ArtifactPusher interface {
	Push(ctx context.Context, dir, app string) error
}

// GitPusher pushes a working tree to an application repository using an SSH key.
type GitPusher interface {
	Push(ctx context.Context, dir, repoURL, keyPath string) error
}

// Recorder keeps the history of deployment runs. store.Store satisfies it.
type Recorder interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	FinishRun(ctx context.Context, run *domain.Run) error
}

// =============================================================================
// Request / Result
// =============================================================================

// Request is everything one deployment run needs.
type Request struct {
	Credentials domain.Credentials
	App         domain.ApplicationSpec
	Env         domain.EnvVars
	Service     *domain.ServiceBinding
	Delivery    domain.DeliveryMethod
	Units       int // unit floor
}

// Validate checks the request before anything is sent to the control plane.
func (r Request) Validate() error {
	if !r.Delivery.IsValid() {
		return domain.ErrInvalidDelivery
	}
	if err := r.App.Validate(); err != nil {
		return err
	}
	if err := r.Credentials.Validate(r.Delivery); err != nil {
		return err
	}
	if r.Service != nil {
		if err := r.Service.Validate(); err != nil {
			return err
		}
	}
	if r.Units < 0 {
		return domain.ErrNegativeUnits
	}
	return nil
}

// Result reports what a run changed.
type Result struct {
	RunID           string
	App             string
	AppCreated      bool
	EnvApplied      int
	InstanceCreated bool
	ServiceBound    bool
	Delivery        domain.DeliveryMethod
	UnitsBefore     int
	UnitsAdded      int
}

// =============================================================================
// Deployer
// =============================================================================

// Options configures a Deployer.
type Options struct {
	// Recorder stores run history. Nil disables history.
	Recorder Recorder
	Logger   *slog.Logger
}

// Deployer runs deployments. Runs for the same application are serialized;
// runs for different applications proceed concurrently.
type Deployer struct {
	controlPlane controlplane.ControlPlane
	artifact     ArtifactPusher
	git          GitPusher
	recorder     Recorder
	locks        *keylock.Locker
	logger       *slog.Logger
}

// NewDeployer creates a Deployer. Either pusher may be nil when that
// delivery method is never requested.
func NewDeployer(cp controlplane.ControlPlane, artifact ArtifactPusher, git GitPusher, opts Options) *Deployer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		controlPlane: cp,
		artifact:     artifact,
		git:          git,
		recorder:     opts.Recorder,
		locks:        keylock.New(),
		logger:       logger.With("component", "deployer"),
	}
}

// Deploy runs every step for req in order and returns at the first failure
// with a *DeploymentError. Nothing is retried and nothing already applied
// to the control plane is rolled back; the Result returned alongside the
// error describes what was applied.
func (d *Deployer) Deploy(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid deployment request for %q: %w", req.App.Name, err)
	}

	unlock, err := d.locks.Lock(ctx, req.App.Name)
	if err != nil {
		return nil, fmt.Errorf("wait for running deployment of %s: %w", req.App.Name, err)
	}
	defer unlock()

	run := domain.NewRun(req.App.Name, req.Credentials.Email, req.Delivery)
	logger := d.logger.With("app", req.App.Name, "run_id", run.ID)
	d.startRun(ctx, run, logger)

	res := &Result{RunID: run.ID, App: req.App.Name, Delivery: req.Delivery}
	step, err := d.run(ctx, req, res, logger)

	run.AppCreated = res.AppCreated
	run.UnitsAdded = res.UnitsAdded
	if err != nil {
		if ferr := run.Fail(step, err); ferr != nil {
			logger.Warn("run state not updated", "error", ferr)
		}
		d.finishRun(ctx, run, logger)
		logger.Error("deployment failed", "step", step, "error", err)
		return res, &DeploymentError{RunID: run.ID, App: req.App.Name, Step: step, Err: err}
	}

	if ferr := run.Succeed(); ferr != nil {
		logger.Warn("run state not updated", "error", ferr)
	}
	d.finishRun(ctx, run, logger)
	logger.Info("deployment finished",
		"created", res.AppCreated,
		"units_added", res.UnitsAdded,
		"duration", run.Duration(),
	)
	return res, nil
}

// run executes the steps and returns the failing step with its error.
func (d *Deployer) run(ctx context.Context, req Request, res *Result, logger *slog.Logger) (domain.Step, error) {
	app := req.App.Name
	team := req.Credentials.Team

	logger.Info("logging in", "user", req.Credentials.Email, "team", team)
	session, err := d.controlPlane.Login(ctx, req.Credentials.Email, req.Credentials.Password)
	if err != nil {
		return domain.StepAuthenticate, classify(err, domain.ErrAuthentication)
	}

	if res.AppCreated, err = EnsureApp(ctx, session, req.App, team, logger); err != nil {
		return domain.StepProvision, err
	}

	if len(req.Env) > 0 {
		if res.EnvApplied, err = ApplyEnv(ctx, session, app, req.Env, logger); err != nil {
			return domain.StepConfigure, err
		}
	}

	if req.Service != nil {
		svc, err := EnsureService(ctx, session, app, *req.Service, team, logger)
		res.InstanceCreated, res.ServiceBound = svc.InstanceCreated, svc.Bound
		if err != nil {
			return domain.StepBind, err
		}
	}

	if err := d.deliver(ctx, session, req, logger); err != nil {
		return domain.StepDeliver, err
	}

	scaled, err := ScaleUp(ctx, session, app, req.Units, logger)
	res.UnitsBefore, res.UnitsAdded = scaled.Before, scaled.Added
	if err != nil {
		return domain.StepScale, err
	}

	return "", nil
}

func (d *Deployer) deliver(ctx context.Context, session controlplane.Session, req Request, logger *slog.Logger) error {
	app := req.App.Name

	switch req.Delivery {
	case domain.DeliveryArtifact:
		if d.artifact == nil {
			return fmt.Errorf("%w: artifact delivery is not configured", domain.ErrDelivery)
		}
		logger.Info("delivering via artifact upload", "dir", req.App.Dir)
		return classify(d.artifact.Push(ctx, req.App.Dir, app), domain.ErrDelivery)

	case domain.DeliveryGit:
		if d.git == nil {
			return fmt.Errorf("%w: git delivery is not configured", domain.ErrDelivery)
		}
		repo, err := session.AppRepository(ctx, app)
		if err != nil {
			return classify(err, domain.ErrControlPlane)
		}
		logger.Info("delivering via git push", "dir", req.App.Dir, "repository", repo)
		return classify(d.git.Push(ctx, req.App.Dir, repo, req.Credentials.KeyPath), domain.ErrDelivery)

	default:
		return errors.Join(domain.ErrDelivery, domain.ErrInvalidDelivery)
	}
}

// =============================================================================
// History
// =============================================================================

// History writes are best effort: a broken history store never changes the
// outcome of a deployment.

func (d *Deployer) startRun(ctx context.Context, run *domain.Run, logger *slog.Logger) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.CreateRun(ctx, run); err != nil {
		logger.Warn("failed to record run start", "error", err)
	}
}

func (d *Deployer) finishRun(ctx context.Context, run *domain.Run, logger *slog.Logger) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("failed to record run result", "error", err)
	}
}
