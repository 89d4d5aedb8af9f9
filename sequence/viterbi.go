package sequence

import (
	"fmt"
	"math"

	"github.com/Dont-Copy-That-Floppy/librosa/gonumExtensions"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Decode computes the single most probable state sequence given the
// transition matrix and frame wise evidence.
//
// The evidence matrix holds one column per frame where entry (s, t) is
// the likelihood of the observation at frame t given state s. The
// initial distribution may be nil in which case every state is equally
// likely at frame zero. The returned path holds one state index per
// frame in forward time order.
//
// All scoring happens in the log domain where zero probabilities become
// minus infinity. Since the recurrence only adds and maximizes, an
// unreachable state stays at minus infinity and can never turn into NaN.
// Ties in the maximization resolve to the lowest state index so repeated
// calls with identical inputs yield identical paths.
func Decode(transition mat.Matrix, initial mat.Vector, evidence mat.Matrix) ([]int, error) {
	k, _, err := checkDecodeDimensions(transition, initial, evidence)
	if err != nil {
		return nil, err
	}
	if err := checkProbabilityRange("transition", transition); err != nil {
		return nil, err
	}
	if err := checkProbabilityRange("evidence", evidence); err != nil {
		return nil, err
	}
	if initial == nil {
		initial = gonumExtensions.FullVec(k, 1./float64(k))
	} else if err := checkDistributionRange(initial); err != nil {
		return nil, err
	}
	logInitial := make([]float64, k)
	for state := 0; state < k; state++ {
		logInitial[state] = math.Log(initial.AtVec(state))
	}
	return decode(logMatrix(transition), logInitial, logMatrix(evidence))
}

// decode runs the forward scoring pass and the backward trace over log
// domain inputs. logTransition is (k by k), logEvidence is (k by frames)
// and logInitial has length k.
func decode(logTransition *mat.Dense, logInitial []float64, logEvidence *mat.Dense) ([]int, error) {
	k := len(logInitial)
	_, frames := logEvidence.Dims()

	// Scoring trellis (frames by k) and predecessor table, transient
	// per call.
	score := mat.NewDense(frames, k, nil)
	backpointer := make([][]int, frames)

	for state := 0; state < k; state++ {
		score.Set(0, state, logInitial[state]+logEvidence.At(state, 0))
	}
	if allUnreachable(score.RawRowView(0)) {
		return nil, fmt.Errorf("%w: no state has positive probability at frame 0", ErrDegenerateModel)
	}

	candidate := make([]float64, k)
	for frame := 1; frame < frames; frame++ {
		backpointer[frame] = make([]int, k)
		for state := 0; state < k; state++ {
			for previous := 0; previous < k; previous++ {
				candidate[previous] = score.At(frame-1, previous) + logTransition.At(previous, state)
			}
			best := floats.MaxIdx(candidate)
			backpointer[frame][state] = best
			score.Set(frame, state, candidate[best]+logEvidence.At(state, frame))
		}
		if allUnreachable(score.RawRowView(frame)) {
			return nil, fmt.Errorf("%w: no state has positive probability at frame %v", ErrDegenerateModel, frame)
		}
	}

	// A NaN in the trellis is an implementation defect, not a caller
	// error.
	if gonumExtensions.NAN(score) {
		panic("sequence: NaN in Viterbi trellis")
	}

	// Trace the best path backwards from the most probable final state.
	path := make([]int, frames)
	path[frames-1] = floats.MaxIdx(score.RawRowView(frames - 1))
	for frame := frames - 1; frame > 0; frame-- {
		path[frame-1] = backpointer[frame][path[frame]]
	}
	return path, nil
}

// checkDecodeDimensions verifies that the transition matrix is square,
// that the evidence carries one row per state and at least one frame and
// that the initial distribution, when given, has one entry per state.
func checkDecodeDimensions(transition mat.Matrix, initial mat.Vector, evidence mat.Matrix) (k, frames int, err error) {
	k, columns := transition.Dims()
	if k != columns {
		return 0, 0, fmt.Errorf("%w: transition matrix is %v by %v, want square", ErrDimensionMismatch, k, columns)
	}
	states, frames := evidence.Dims()
	if states != k {
		return 0, 0, fmt.Errorf("%w: evidence has %v state rows, transition matrix has %v states",
			ErrDimensionMismatch, states, k)
	}
	if frames < 1 {
		return 0, 0, fmt.Errorf("%w: evidence must contain at least one frame", ErrInvalidArgument)
	}
	if initial != nil {
		if length := initial.Len(); length != k {
			return 0, 0, fmt.Errorf("%w: initial distribution has length %v, want %v",
				ErrDimensionMismatch, length, k)
		}
	}
	return k, frames, nil
}

// checkProbabilityRange rejects matrix entries outside [0, 1]. The
// comparison is written to also reject NaN.
func checkProbabilityRange(name string, matrix mat.Matrix) error {
	rows, columns := matrix.Dims()
	for row := 0; row < rows; row++ {
		for column := 0; column < columns; column++ {
			if p := matrix.At(row, column); !(p >= 0 && p <= 1) {
				return fmt.Errorf("%w: %v entry (%v, %v) = %v outside [0, 1]",
					ErrInvalidArgument, name, row, column, p)
			}
		}
	}
	return nil
}

// checkDistributionRange rejects initial distribution entries outside
// [0, 1]. Like checkProbabilityRange the comparison also rejects NaN,
// so a malformed distribution surfaces here instead of as NaN in the
// trellis.
func checkDistributionRange(initial mat.Vector) error {
	for state := 0; state < initial.Len(); state++ {
		if p := initial.AtVec(state); !(p >= 0 && p <= 1) {
			return fmt.Errorf("%w: initial distribution entry %v = %v outside [0, 1]",
				ErrInvalidArgument, state, p)
		}
	}
	return nil
}

// logMatrix returns the element wise natural logarithm of matrix. Zero
// entries map to minus infinity.
func logMatrix(matrix mat.Matrix) *mat.Dense {
	rows, columns := matrix.Dims()
	result := mat.NewDense(rows, columns, nil)
	for row := 0; row < rows; row++ {
		for column := 0; column < columns; column++ {
			result.Set(row, column, math.Log(matrix.At(row, column)))
		}
	}
	return result
}

// allUnreachable reports whether every accumulated score is minus
// infinity, meaning no path with positive probability remains.
func allUnreachable(scores []float64) bool {
	for _, score := range scores {
		if !math.IsInf(score, -1) {
			return false
		}
	}
	return true
}
