package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Application Tests
// =============================================================================

func TestValidateAppName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid", "my-app", nil},
		{"valid with digits", "app2", nil},
		{"empty", "", ErrAppNameRequired},
		{"uppercase", "MyApp", ErrAppNameInvalid},
		{"leading digit", "2app", ErrAppNameInvalid},
		{"leading hyphen", "-app", ErrAppNameInvalid},
		{"underscore", "my_app", ErrAppNameInvalid},
		{"max length", strings.Repeat("a", MaxAppNameLength), nil},
		{"too long", strings.Repeat("a", MaxAppNameLength+1), ErrAppNameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAppName(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestApplicationSpec_Validate(t *testing.T) {
	valid := ApplicationSpec{Name: "web", Platform: "python", Dir: "/src/web"}
	require.NoError(t, valid.Validate())

	noPlatform := valid
	noPlatform.Platform = " "
	assert.ErrorIs(t, noPlatform.Validate(), ErrPlatformRequired)

	noDir := valid
	noDir.Dir = ""
	assert.ErrorIs(t, noDir.Validate(), ErrSourceDirRequired)

	badName := valid
	badName.Name = "Web"
	assert.ErrorIs(t, badName.Validate(), ErrAppNameInvalid)
}

// =============================================================================
// Credentials Tests
// =============================================================================

func TestCredentials_Validate(t *testing.T) {
	creds := Credentials{Email: "dev@example.com", Password: "secret"}

	assert.NoError(t, creds.Validate(DeliveryArtifact))
	assert.ErrorIs(t, creds.Validate(DeliveryGit), ErrKeyPathRequired)

	creds.KeyPath = "/home/dev/.ssh/id_ed25519"
	assert.NoError(t, creds.Validate(DeliveryGit))

	creds.Email = ""
	assert.ErrorIs(t, creds.Validate(DeliveryArtifact), ErrEmailRequired)
}

// =============================================================================
// Service Binding Tests
// =============================================================================

func TestServiceBinding_Validate(t *testing.T) {
	assert.NoError(t, ServiceBinding{ServiceType: "postgresql", InstanceName: "db"}.Validate())
	assert.ErrorIs(t, ServiceBinding{InstanceName: "db"}.Validate(), ErrServiceTypeRequired)
	assert.ErrorIs(t, ServiceBinding{ServiceType: "postgresql"}.Validate(), ErrInstanceNameRequired)
}

// =============================================================================
// Delivery Method Tests
// =============================================================================

func TestParseDeliveryMethod(t *testing.T) {
	tests := []struct {
		input   string
		want    DeliveryMethod
		wantErr bool
	}{
		{"", DeliveryArtifact, false},
		{"artifact", DeliveryArtifact, false},
		{"GIT", DeliveryGit, false},
		{" git ", DeliveryGit, false},
		{"ftp", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDeliveryMethod(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDelivery)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsValid())
		})
	}
}

func TestDeliveryMethod_IsValid(t *testing.T) {
	assert.False(t, DeliveryMethod("").IsValid())
	assert.False(t, DeliveryMethod("rsync").IsValid())
}
