package sequence

import (
	"fmt"
	"math"
	"sync"

	"github.com/Dont-Copy-That-Floppy/librosa/gonumExtensions"
	"github.com/hashicorp/go-multierror"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Stationary returns the stationary distribution of the transition
// matrix, the fixed point of pi = pi T, computed by power iteration
// https://en.wikipedia.org/wiki/Power_iteration starting from the
// uniform distribution.
func Stationary(transition mat.Matrix) (*mat.VecDense, error) {
	k, columns := transition.Dims()
	if k != columns {
		return nil, fmt.Errorf("%w: transition matrix is %v by %v, want square", ErrDimensionMismatch, k, columns)
	}

	// Set max number of iterations and the convergence tolerance on the
	// l1 distance between successive iterates.
	const (
		maxNumberOfIterations int     = 1000
		tolerance             float64 = 1e-10
	)

	pi := gonumExtensions.FullVec(k, 1./float64(k))
	next := mat.NewVecDense(k, nil)
	for iteration := 0; iteration < maxNumberOfIterations; iteration++ {
		// pi T = (T^T pi^T)^T
		next.MulVec(transition.T(), pi)
		// Renormalize against floating point drift over long iterations.
		next.ScaleVec(1/floats.Sum(next.RawVector().Data), next)
		distance := l1Distance(pi, next)
		pi.CopyVec(next)
		if distance < tolerance {
			return pi, nil
		}
	}
	return nil, fmt.Errorf("%w: stationary distribution still moving after %v iterations",
		ErrConvergence, maxNumberOfIterations)
}

// DecodeDiscriminative computes the most probable state sequence when
// the evidence holds posterior probabilities p(state | observation)
// instead of likelihoods, the typical output of a classifier.
//
// Posteriors are not directly substitutable for likelihoods in the
// generative recurrence. The stationary distribution of the transition
// matrix acts as implicit state prior: each posterior column is divided
// by the prior (Bayes' rule, dropping the frame wise normalizing
// constant which does not affect the most probable path) and the result
// feeds the generative recurrence unchanged. The stationary distribution
// also serves as the initial distribution since no separate generative
// prior exists in this setting. An explicit caller supplied prior would
// be an equally valid parameterization; deriving it from the transition
// matrix keeps the call surface to two arguments.
func DecodeDiscriminative(transition mat.Matrix, evidence mat.Matrix) ([]int, error) {
	k, frames, err := checkDecodeDimensions(transition, nil, evidence)
	if err != nil {
		return nil, err
	}
	if err := checkProbabilityRange("transition", transition); err != nil {
		return nil, err
	}
	if err := checkProbabilityRange("evidence", evidence); err != nil {
		return nil, err
	}
	pi, err := Stationary(transition)
	if err != nil {
		return nil, err
	}

	logPrior := make([]float64, k)
	for state := 0; state < k; state++ {
		logPrior[state] = math.Log(pi.AtVec(state))
	}

	// Convert posteriors into pseudo likelihoods in the log domain.
	logPseudo := mat.NewDense(k, frames, nil)
	for state := 0; state < k; state++ {
		for frame := 0; frame < frames; frame++ {
			posterior := evidence.At(state, frame)
			switch {
			case posterior == 0:
				logPseudo.Set(state, frame, math.Inf(-1))
			case pi.AtVec(state) == 0:
				return nil, fmt.Errorf(
					"%w: state %v has zero stationary mass but posterior %v at frame %v",
					ErrDegenerateModel, state, posterior, frame)
			default:
				logPseudo.Set(state, frame, math.Log(posterior)-logPrior[state])
			}
		}
	}
	return decode(logMatrix(transition), logPrior, logPseudo)
}

// DecodeBinary decodes many independent binary labels at once. Row m of
// onProb holds the posterior probability that label m is active at each
// frame; transitions[m] is the (2 by 2) off/on transition matrix of
// label m. Each label runs through DecodeDiscriminative on its own
// trellis; labels decode concurrently since the shared inputs are only
// read. The result is a (labels by frames) matrix of zeros and ones.
func DecodeBinary(transitions []*mat.Dense, onProb mat.Matrix) (*mat.Dense, error) {
	labels, frames := onProb.Dims()
	if labels < 1 || frames < 1 {
		return nil, fmt.Errorf("%w: need at least one label and one frame", ErrInvalidArgument)
	}
	if len(transitions) != labels {
		return nil, fmt.Errorf("%w: got %v transition matrices for %v labels",
			ErrDimensionMismatch, len(transitions), labels)
	}
	for label, transition := range transitions {
		if rows, columns := transition.Dims(); rows != 2 || columns != 2 {
			return nil, fmt.Errorf("%w: transition matrix %v is %v by %v, want 2 by 2",
				ErrDimensionMismatch, label, rows, columns)
		}
	}

	result := mat.NewDense(labels, frames, nil)
	errs := make([]error, labels)

	var wg sync.WaitGroup
	wg.Add(labels)
	for label := 0; label < labels; label++ {
		// Decode each label as a go routine
		go func(label int) {
			defer wg.Done()
			evidence := mat.NewDense(2, frames, nil)
			for frame := 0; frame < frames; frame++ {
				on := onProb.At(label, frame)
				evidence.Set(0, frame, 1-on)
				evidence.Set(1, frame, on)
			}
			path, err := DecodeDiscriminative(transitions[label], evidence)
			if err != nil {
				errs[label] = fmt.Errorf("label %v: %w", label, err)
				return
			}
			for frame, state := range path {
				result.Set(label, frame, float64(state))
			}
		}(label)
	}
	wg.Wait()

	var failures *multierror.Error
	for _, err := range errs {
		if err != nil {
			failures = multierror.Append(failures, err)
		}
	}
	if err := failures.ErrorOrNil(); err != nil {
		return nil, err
	}
	return result, nil
}

// DecodeBinaryShared decodes every label of onProb with the same
// (2 by 2) off/on transition matrix.
func DecodeBinaryShared(transition *mat.Dense, onProb mat.Matrix) (*mat.Dense, error) {
	labels, _ := onProb.Dims()
	if labels < 1 {
		return nil, fmt.Errorf("%w: need at least one label", ErrInvalidArgument)
	}
	transitions := make([]*mat.Dense, labels)
	for label := range transitions {
		transitions[label] = transition
	}
	return DecodeBinary(transitions, onProb)
}

// l1Distance returns the sum of absolute element wise differences of two
// equally long vectors.
func l1Distance(a, b mat.Vector) float64 {
	var distance float64
	for index := 0; index < a.Len(); index++ {
		distance += math.Abs(a.AtVec(index) - b.AtVec(index))
	}
	return distance
}
