package deployment

// =============================================================================
// Unit Scaling
// =============================================================================

// Reconcile returns how many units must be added so that current reaches floor.
//
// Scaling only ever goes up: when current is already at or above floor the
// result is zero, never negative. Negative inputs are treated as zero.
//
// Example:
//
//	Reconcile(1, 3) // returns 2
//	Reconcile(3, 3) // returns 0
//	Reconcile(5, 3) // returns 0
func Reconcile(current, floor int) int {
	if current < 0 {
		current = 0
	}
	if floor <= current {
		return 0
	}
	return floor - current
}
