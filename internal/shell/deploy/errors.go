// Package deploy runs a deployment of one application against the control
// plane: authenticate, provision, configure, bind, deliver and scale, in that
// order, stopping at the first failure.
package deploy

import (
	"errors"
	"fmt"

	"github.com/artpar/paasdeploy/internal/core/domain"
)

// DeploymentError reports the step a run stopped at. The cause matches one
// of the domain error kinds with errors.Is.
type DeploymentError struct {
	RunID string
	App   string
	Step  domain.Step
	Err   error
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("deploy %s: %s: %v", e.App, e.Step, e.Err)
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}

var errorKinds = []error{
	domain.ErrAuthentication,
	domain.ErrControlPlane,
	domain.ErrDelivery,
	domain.ErrCredential,
}

// classify makes sure err carries an error kind, adding fallback when it has none.
func classify(err, fallback error) error {
	if err == nil {
		return nil
	}
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", fallback, err)
}
