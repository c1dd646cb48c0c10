// Package controlplane talks to the tsuru control plane: authentication,
// application lifecycle, environment variables, service instances and units.
package controlplane

import (
	"context"
	"fmt"
	"net/http"

	"github.com/artpar/paasdeploy/internal/core/domain"
)

// =============================================================================
// Interfaces
// =============================================================================

// ControlPlane opens authenticated sessions.
type ControlPlane interface {
	// Login exchanges an email and password for a session. A rejected
	// identity fails with an error matching domain.ErrAuthentication.
	Login(ctx context.Context, email, password string) (Session, error)
}

// Session is an authenticated connection to the control plane. Every failing
// call returns an error matching domain.ErrControlPlane.
type Session interface {
	ListApps(ctx context.Context) ([]string, error)
	CreateApp(ctx context.Context, name, platform, team string) error
	SetEnv(ctx context.Context, app, key, value string) error

	// ListServiceInstances returns the names of all service instances visible to the session.
	ListServiceInstances(ctx context.Context) ([]string, error)
	AddServiceInstance(ctx context.Context, serviceType, instance, team string) error
	AppHasService(ctx context.Context, app, instance string) (bool, error)
	BindService(ctx context.Context, serviceType, instance, app string) error

	AppRepository(ctx context.Context, app string) (string, error)
	AppInfo(ctx context.Context, app string) (*AppInfo, error)
	AddUnits(ctx context.Context, app string, count int) error
}

// =============================================================================
// Types
// =============================================================================

// AppInfo is the control plane's view of one application.
type AppInfo struct {
	Name         string        `json:"name"`
	Platform     string        `json:"platform"`
	TeamOwner    string        `json:"teamowner"`
	Repository   string        `json:"repository"`
	Units        []Unit        `json:"units"`
	ServiceBinds []ServiceBind `json:"serviceInstanceBinds"`
}

// UnitCount returns the number of deployed units.
func (a *AppInfo) UnitCount() int {
	if a == nil {
		return 0
	}
	return len(a.Units)
}

// HasService reports whether the named instance is bound to the application.
func (a *AppInfo) HasService(instance string) bool {
	if a == nil {
		return false
	}
	for _, b := range a.ServiceBinds {
		if b.Instance == instance {
			return true
		}
	}
	return false
}

// Unit is one running process of an application.
type Unit struct {
	ID          string `json:"ID"`
	Status      string `json:"Status"`
	ProcessName string `json:"ProcessName,omitempty"`
}

// ServiceBind links a service instance to an application.
type ServiceBind struct {
	Service  string `json:"service"`
	Instance string `json:"instance"`
}

// =============================================================================
// Errors
// =============================================================================

// APIError reports a failed control-plane call. Rejected logins match
// domain.ErrAuthentication; everything else matches domain.ErrControlPlane.
type APIError struct {
	Op         string // e.g. "CreateApp"
	StatusCode int    // zero when no response was received
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.kind()}
	}
	return []error{e.kind(), e.Err}
}

func (e *APIError) kind() error {
	if e.Op == opLogin && isRejection(e.StatusCode) {
		return domain.ErrAuthentication
	}
	return domain.ErrControlPlane
}

func isRejection(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
