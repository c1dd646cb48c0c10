package domain

import "strings"

// =============================================================================
// Application
// =============================================================================

// MaxAppNameLength is the longest application name the control plane accepts.
const MaxAppNameLength = 40

// ApplicationSpec describes the application a deployment run targets.
// It is owned by the caller and never modified by the orchestrator.
type ApplicationSpec struct {
	Name     string `json:"name" yaml:"name"`
	Platform string `json:"platform" yaml:"platform"`
	Dir      string `json:"dir" yaml:"dir"`
}

// Validate checks the application can be deployed.
func (a ApplicationSpec) Validate() error {
	if err := ValidateAppName(a.Name); err != nil {
		return err
	}
	if strings.TrimSpace(a.Platform) == "" {
		return ErrPlatformRequired
	}
	if strings.TrimSpace(a.Dir) == "" {
		return ErrSourceDirRequired
	}
	return nil
}

// ValidateAppName validates an application name against the control plane's naming rules.
func ValidateAppName(name string) error {
	if name == "" {
		return ErrAppNameRequired
	}
	if len(name) > MaxAppNameLength {
		return ErrAppNameTooLong
	}
	if name[0] < 'a' || name[0] > 'z' {
		return ErrAppNameInvalid
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			continue
		}
		return ErrAppNameInvalid
	}
	return nil
}

// =============================================================================
// Credentials
// =============================================================================

// Credentials identify the user a deployment run logs in as.
// KeyPath is only needed for git delivery.
type Credentials struct {
	Email    string `json:"email" yaml:"email"`
	Password string `json:"-" yaml:"password"`
	KeyPath  string `json:"key_path,omitempty" yaml:"key"`
	Team     string `json:"team,omitempty" yaml:"team"`
}

// Validate checks the credentials are usable for the given delivery method.
func (c Credentials) Validate(method DeliveryMethod) error {
	if strings.TrimSpace(c.Email) == "" {
		return ErrEmailRequired
	}
	if method == DeliveryGit && strings.TrimSpace(c.KeyPath) == "" {
		return ErrKeyPathRequired
	}
	return nil
}

// =============================================================================
// Service Binding
// =============================================================================

// ServiceBinding names a data-service instance that must exist and be bound
// to the application. Instances are global; bindings are per application.
type ServiceBinding struct {
	ServiceType  string `json:"service_type" yaml:"type"`
	InstanceName string `json:"instance_name" yaml:"instance"`
}

// Validate checks both parts of the binding are set.
func (s ServiceBinding) Validate() error {
	if strings.TrimSpace(s.ServiceType) == "" {
		return ErrServiceTypeRequired
	}
	if strings.TrimSpace(s.InstanceName) == "" {
		return ErrInstanceNameRequired
	}
	return nil
}

// =============================================================================
// Delivery Method
// =============================================================================

// DeliveryMethod selects how code reaches the control plane. The caller picks
// one explicitly; the orchestrator never infers it.
type DeliveryMethod string

const (
	// DeliveryArtifact uploads the source directory through the control-plane CLI.
	DeliveryArtifact DeliveryMethod = "artifact"
	// DeliveryGit pushes the branch to the application's git remote.
	DeliveryGit DeliveryMethod = "git"
)

// ParseDeliveryMethod parses a delivery method name. An empty string means artifact.
func ParseDeliveryMethod(s string) (DeliveryMethod, error) {
	switch DeliveryMethod(strings.ToLower(strings.TrimSpace(s))) {
	case "", DeliveryArtifact:
		return DeliveryArtifact, nil
	case DeliveryGit:
		return DeliveryGit, nil
	default:
		return "", ErrInvalidDelivery
	}
}

// IsValid reports whether m is one of the known methods.
func (m DeliveryMethod) IsValid() bool {
	return m == DeliveryArtifact || m == DeliveryGit
}
