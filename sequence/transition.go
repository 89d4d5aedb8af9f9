package sequence

import (
	"fmt"
	"math"

	"github.com/Dont-Copy-That-Floppy/librosa/gonumExtensions"
	"github.com/hashicorp/go-multierror"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Here we present some shorthand constructors for common transition
// structures. Every constructor returns a row stochastic (k by k) matrix.

// rowSumTolerance is the allowed deviation of a caller supplied row sum
// from one.
const rowSumTolerance = 1e-6

// TransitionUniform returns a (k by k) transition matrix where every
// state is equally likely regardless of the current state.
func TransitionUniform(k int) (*mat.Dense, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: number of states %v must be positive", ErrInvalidArgument, k)
	}
	return gonumExtensions.Full(k, k, 1./float64(k)), nil
}

// TransitionLoop returns a (k by k) transition matrix where each state
// repeats with its self loop probability and spreads the remaining mass
// uniformly over the other states. Either one probability shared by all
// states or one probability per state can be given. For k = 1 the single
// state always transitions into itself regardless of prob.
func TransitionLoop(k int, prob ...float64) (*mat.Dense, error) {
	loop, err := expandProbabilities(k, prob)
	if err != nil {
		return nil, err
	}
	if k == 1 {
		return mat.NewDense(1, 1, []float64{1}), nil
	}
	transition := mat.NewDense(k, k, nil)
	for row := 0; row < k; row++ {
		off := (1 - loop[row]) / float64(k-1)
		for column := 0; column < k; column++ {
			if row == column {
				transition.Set(row, column, loop[row])
			} else {
				transition.Set(row, column, off)
			}
		}
	}
	return transition, nil
}

// TransitionCycle returns a (k by k) transition matrix where each state
// either repeats with its self loop probability or advances to the next
// state in cyclic order. For k = 1 the single state always transitions
// into itself regardless of prob.
func TransitionCycle(k int, prob ...float64) (*mat.Dense, error) {
	loop, err := expandProbabilities(k, prob)
	if err != nil {
		return nil, err
	}
	if k == 1 {
		return mat.NewDense(1, 1, []float64{1}), nil
	}
	transition := mat.NewDense(k, k, nil)
	for row := 0; row < k; row++ {
		transition.Set(row, row, loop[row])
		transition.Set(row, (row+1)%k, 1-loop[row])
	}
	return transition, nil
}

// TransitionLocal returns a (k by k) transition matrix where each state
// moves at most width-1 steps up or down the state order, a symmetric
// window of 2*width-1 states centered on the current one. Transition
// weights follow a triangular window over that span. When wrap is true
// the window wraps around the state order, otherwise rows are
// renormalized at the edges.
func TransitionLocal(k, width int, wrap bool) (*mat.Dense, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: number of states %v must be positive", ErrInvalidArgument, k)
	}
	if width < 1 || width > k {
		return nil, fmt.Errorf("%w: window width %v outside [1, %v]", ErrInvalidArgument, width, k)
	}
	transition := mat.NewDense(k, k, nil)
	for row := 0; row < k; row++ {
		var sum float64
		for offset := -width + 1; offset < width; offset++ {
			column := row + offset
			if wrap {
				column = ((column % k) + k) % k
			} else if column < 0 || column >= k {
				continue
			}
			weight := 1 - math.Abs(float64(offset))/float64(width)
			// Wrapped windows may revisit a column, accumulate instead
			// of overwrite.
			transition.Set(row, column, transition.At(row, column)+weight)
			sum += weight
		}
		for column := 0; column < k; column++ {
			transition.Set(row, column, transition.At(row, column)/sum)
		}
	}
	return transition, nil
}

// TransitionFromRows validates caller supplied transition rows and copies
// them into a (k by k) matrix. This accepts externally modelled
// transition structures without re-deriving them. Every violated row is
// reported, not just the first one.
func TransitionFromRows(rows [][]float64) (*mat.Dense, error) {
	k := len(rows)
	if k < 1 {
		return nil, fmt.Errorf("%w: need at least one transition row", ErrInvalidArgument)
	}
	var violations *multierror.Error
	transition := mat.NewDense(k, k, nil)
	for row := 0; row < k; row++ {
		if len(rows[row]) != k {
			violations = multierror.Append(violations, fmt.Errorf(
				"%w: row %v has %v entries, want %v", ErrInvalidArgument, row, len(rows[row]), k))
			continue
		}
		outOfRange := false
		for column, p := range rows[row] {
			if !(p >= 0 && p <= 1) {
				violations = multierror.Append(violations, fmt.Errorf(
					"%w: entry (%v, %v) = %v outside [0, 1]", ErrInvalidArgument, row, column, p))
				outOfRange = true
			}
		}
		if outOfRange {
			continue
		}
		if sum := floats.Sum(rows[row]); math.Abs(sum-1) > rowSumTolerance {
			violations = multierror.Append(violations, fmt.Errorf(
				"%w: row %v sums to %v, want 1", ErrInvalidArgument, row, sum))
			continue
		}
		transition.SetRow(row, rows[row])
	}
	if err := violations.ErrorOrNil(); err != nil {
		return nil, err
	}
	return transition, nil
}

// expandProbabilities broadcasts a single self loop probability to all k
// states or passes through k per state probabilities.
func expandProbabilities(k int, prob []float64) ([]float64, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: number of states %v must be positive", ErrInvalidArgument, k)
	}
	var expanded []float64
	switch len(prob) {
	case 1:
		expanded = make([]float64, k)
		for index := range expanded {
			expanded[index] = prob[0]
		}
	case k:
		expanded = make([]float64, k)
		copy(expanded, prob)
	default:
		return nil, fmt.Errorf("%w: got %v self loop probabilities for %v states, want 1 or %v",
			ErrInvalidArgument, len(prob), k, k)
	}
	for state, p := range expanded {
		if !(p >= 0 && p <= 1) {
			return nil, fmt.Errorf("%w: self loop probability %v for state %v outside [0, 1]",
				ErrInvalidArgument, p, state)
		}
	}
	return expanded, nil
}
