package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Reconcile Tests
// =============================================================================

func TestReconcile_BelowFloor(t *testing.T) {
	assert.Equal(t, 2, Reconcile(1, 3))
}

func TestReconcile_AtFloor(t *testing.T) {
	assert.Equal(t, 0, Reconcile(3, 3))
}

func TestReconcile_AboveFloorNeverScalesDown(t *testing.T) {
	assert.Equal(t, 0, Reconcile(5, 3))
}

func TestReconcile_FromZero(t *testing.T) {
	assert.Equal(t, 3, Reconcile(0, 3))
}

func TestReconcile_ZeroFloor(t *testing.T) {
	assert.Equal(t, 0, Reconcile(0, 0))
}

func TestReconcile_NegativeCurrentTreatedAsZero(t *testing.T) {
	assert.Equal(t, 2, Reconcile(-4, 2))
}

func TestReconcile_AllPairs(t *testing.T) {
	for current := 0; current <= 12; current++ {
		for floor := -2; floor <= 12; floor++ {
			got := Reconcile(current, floor)

			want := floor - current
			if want < 0 {
				want = 0
			}
			assert.Equal(t, want, got, "current=%d floor=%d", current, floor)
			assert.GreaterOrEqual(t, got, 0)
			if current >= floor {
				assert.Zero(t, got)
			}
		}
	}
}
