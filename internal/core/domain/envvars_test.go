package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvVars_Keys_Sorted(t *testing.T) {
	env := EnvVars{"ZETA": "1", "ALPHA": "2", "MID": "3"}
	assert.Equal(t, []string{"ALPHA", "MID", "ZETA"}, env.Keys())
}

func TestEnvVars_Keys_Empty(t *testing.T) {
	var env EnvVars
	assert.Empty(t, env.Keys())
}
