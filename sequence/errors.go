package sequence

import "errors"

// Every error returned from the package wraps one of these sentinels so
// that callers can classify failures with errors.Is.
var (
	// ErrInvalidArgument indicates a malformed shape or an out of range
	// probability supplied by the caller.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDimensionMismatch indicates inconsistent dimensions across the
	// transition matrix, the initial distribution and the evidence.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrDegenerateModel indicates that the model admits no state path
	// with positive probability, or assigns zero prior mass to a state
	// that carries evidence.
	ErrDegenerateModel = errors.New("degenerate model")

	// ErrConvergence indicates that the stationary distribution solver
	// exceeded its iteration budget.
	ErrConvergence = errors.New("power iteration did not converge")
)
