package main

import (
	"errors"

	"github.com/artpar/paasdeploy/internal/core/domain"
	"github.com/artpar/paasdeploy/internal/shell/store"
	"github.com/spf13/cobra"
)

type usageError struct {
	error
}

func newUsageError(msg string) usageError {
	return usageError{error: errors.New(msg)}
}

var errorWantedNoArgs = newUsageError("expected no (non-flag) arguments")

func noArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	return nil
}

// exitCode maps err to the process exit code. A delivery failure that also
// failed to release its key reports the delivery failure.
func exitCode(err error) int {
	var uErr usageError
	var sErr *store.StoreError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &uErr):
		return ExitUsageError
	case errors.Is(err, domain.ErrAuthentication):
		return ExitAuthenticationError
	case errors.Is(err, domain.ErrDelivery):
		return ExitDeliveryError
	case errors.Is(err, domain.ErrCredential):
		return ExitCredentialError
	case errors.Is(err, domain.ErrControlPlane):
		return ExitControlPlaneError
	case errors.As(err, &sErr):
		return ExitDatabaseError
	default:
		return ExitConfigError
	}
}
