package domain

import "errors"

// =============================================================================
// Deployment Error Kinds
// =============================================================================

// Every failure surfaced by a deployment run matches exactly one of these
// kinds with errors.Is. Typed errors in the shell packages carry the kind
// alongside the underlying cause.
var (
	// ErrAuthentication is returned when the control plane rejects the session credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrControlPlane is returned when a control-plane query or mutation fails.
	ErrControlPlane = errors.New("control plane request failed")

	// ErrDelivery is returned when an artifact deploy or git push fails.
	ErrDelivery = errors.New("code delivery failed")

	// ErrCredential is returned when an SSH key lease cannot be acquired or released.
	ErrCredential = errors.New("credential lease failed")
)

// =============================================================================
// Validation Errors
// =============================================================================

var (
	ErrAppNameRequired      = errors.New("application name is required")
	ErrAppNameInvalid       = errors.New("application name must start with a letter and contain only lowercase letters, digits and hyphens")
	ErrAppNameTooLong       = errors.New("application name must be at most 40 characters")
	ErrPlatformRequired     = errors.New("platform is required")
	ErrSourceDirRequired    = errors.New("source directory is required")
	ErrEmailRequired        = errors.New("user email is required")
	ErrKeyPathRequired      = errors.New("SSH key path is required for git delivery")
	ErrServiceTypeRequired  = errors.New("service type is required")
	ErrInstanceNameRequired = errors.New("service instance name is required")
	ErrInvalidDelivery      = errors.New("delivery method must be \"artifact\" or \"git\"")
	ErrNegativeUnits        = errors.New("unit floor must not be negative")
	ErrTargetLabelRequired  = errors.New("target label is required")
	ErrTargetHostRequired   = errors.New("target host is required")
)
