package target

import (
	"context"
	"testing"

	"github.com/artpar/paasdeploy/internal/core/domain"
	"github.com/artpar/paasdeploy/internal/shell/process/processtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var staging = domain.DeploymentTarget{Label: "staging", Host: "example.com"}

func TestEnsure(t *testing.T) {
	tests := []struct {
		name      string
		list      string
		wantCalls []string
		want      Outcome
	}{
		{
			name: "unknown target is added and selected",
			list: "  production (https://production-api.example.com)\n* dev http://dev-api.local\n",
			wantCalls: []string{
				"tsuru target-list",
				"tsuru target-add staging https://staging-api.example.com",
				"tsuru target-set staging",
			},
			want: Outcome{URI: "https://staging-api.example.com", Added: true, Selected: true},
		},
		{
			name: "known target is only selected",
			list: "* production (https://production-api.example.com)\n  staging (https://staging-api.example.com)\n",
			wantCalls: []string{
				"tsuru target-list",
				"tsuru target-set staging",
			},
			want: Outcome{URI: "https://staging-api.example.com", Selected: true},
		},
		{
			name:      "current target needs nothing",
			list:      "  production (https://production-api.example.com)\n* staging (https://staging-api.example.com)\n",
			wantCalls: []string{"tsuru target-list"},
			want:      Outcome{URI: "https://staging-api.example.com"},
		},
		{
			name: "empty registry",
			list: "",
			wantCalls: []string{
				"tsuru target-list",
				"tsuru target-add staging https://staging-api.example.com",
				"tsuru target-set staging",
			},
			want: Outcome{URI: "https://staging-api.example.com", Added: true, Selected: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := processtest.New().On("tsuru target-list", []byte(tt.list), nil)
			reg := NewCLIRegistry(rec, "")

			got, err := Ensure(context.Background(), reg, staging, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, rec.Lines())
		})
	}
}

// memRegistry is an in-memory Registry for idempotence checks.
type memRegistry struct {
	entries []domain.TargetEntry
	adds    int
	sets    int
}

func (m *memRegistry) List(context.Context) ([]domain.TargetEntry, error) {
	return append([]domain.TargetEntry(nil), m.entries...), nil
}

func (m *memRegistry) Add(_ context.Context, label, uri string) error {
	m.adds++
	m.entries = append(m.entries, domain.TargetEntry{Label: label, URI: uri})
	return nil
}

func (m *memRegistry) Set(_ context.Context, label string) error {
	m.sets++
	for i := range m.entries {
		m.entries[i].Current = m.entries[i].Label == label
	}
	return nil
}

func TestEnsure_Idempotent(t *testing.T) {
	reg := &memRegistry{}
	ctx := context.Background()

	first, err := Ensure(ctx, reg, staging, nil)
	require.NoError(t, err)
	assert.True(t, first.Added)
	assert.True(t, first.Selected)

	second, err := Ensure(ctx, reg, staging, nil)
	require.NoError(t, err)
	assert.False(t, second.Added)
	assert.False(t, second.Selected)

	assert.Equal(t, 1, reg.adds)
	assert.Equal(t, 1, reg.sets)
}

func TestEnsure_InvalidTarget(t *testing.T) {
	rec := processtest.New()

	_, err := Ensure(context.Background(), NewCLIRegistry(rec, ""), domain.DeploymentTarget{Label: "x"}, nil)
	assert.ErrorIs(t, err, domain.ErrTargetHostRequired)
	assert.Empty(t, rec.Calls())
}

func TestEnsure_Failures(t *testing.T) {
	tests := []struct {
		name   string
		failOn string
		op     string
		calls  int
	}{
		{"list fails", "tsuru target-list", "list", 1},
		{"add fails", "tsuru target-add", "add", 2},
		{"set fails", "tsuru target-set", "set", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := processtest.New().Fail(tt.failOn, 1, "Error: something broke")

			_, err := Ensure(context.Background(), NewCLIRegistry(rec, ""), staging, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrControlPlane)

			var tErr *Error
			require.ErrorAs(t, err, &tErr)
			assert.Equal(t, tt.op, tErr.Op)
			assert.Len(t, rec.Calls(), tt.calls, "stops at the first failure")
		})
	}
}

func TestCLIRegistry_CustomCommand(t *testing.T) {
	rec := processtest.New()
	reg := NewCLIRegistry(rec, "/usr/local/bin/tsuru")

	require.NoError(t, reg.Set(context.Background(), "prod"))
	assert.Equal(t, []string{"/usr/local/bin/tsuru target-set prod"}, rec.Lines())
}
