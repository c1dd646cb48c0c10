package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRunFinished is returned when a finished run is finished again.
var ErrRunFinished = errors.New("run already finished")

// =============================================================================
// Steps
// =============================================================================

// Step names one stage of a deployment run, in execution order.
type Step string

const (
	StepAuthenticate Step = "authenticate"
	StepProvision    Step = "provision"
	StepConfigure    Step = "configure"
	StepBind         Step = "bind"
	StepDeliver      Step = "deliver"
	StepScale        Step = "scale"
)

// Steps lists every step in the order a run executes them.
var Steps = []Step{StepAuthenticate, StepProvision, StepConfigure, StepBind, StepDeliver, StepScale}

// Valid reports whether s is one of Steps.
func (s Step) Valid() bool {
	for _, step := range Steps {
		if s == step {
			return true
		}
	}
	return false
}

// =============================================================================
// Run
// =============================================================================

// RunStatus is the lifecycle state of a deployment run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is the recorded history of one deployment of one application.
type Run struct {
	ID         string         `json:"id"`
	App        string         `json:"app"`
	User       string         `json:"user"`
	Delivery   DeliveryMethod `json:"delivery"`
	Status     RunStatus      `json:"status"`
	FailedStep Step           `json:"failed_step,omitempty"`
	Error      string         `json:"error,omitempty"`
	AppCreated bool           `json:"app_created"`
	UnitsAdded int            `json:"units_added"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// NewRun starts a run record for app.
func NewRun(app, user string, delivery DeliveryMethod) *Run {
	return &Run{
		ID:        uuid.New().String(),
		App:       app,
		User:      user,
		Delivery:  delivery,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Succeed marks the run as completed.
func (r *Run) Succeed() error {
	if r.Status != RunRunning {
		return ErrRunFinished
	}
	now := time.Now().UTC()
	r.Status = RunSucceeded
	r.FinishedAt = &now
	return nil
}

// Fail marks the run as aborted at step with cause.
func (r *Run) Fail(step Step, cause error) error {
	if r.Status != RunRunning {
		return ErrRunFinished
	}
	now := time.Now().UTC()
	r.Status = RunFailed
	r.FailedStep = step
	if cause != nil {
		r.Error = cause.Error()
	}
	r.FinishedAt = &now
	return nil
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
