package sequence

import (
	"errors"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const probabilityTolerance = 1e-9

func rowStochastic(t *testing.T, transition mat.Matrix) {
	t.Helper()
	rows, columns := transition.Dims()
	for row := 0; row < rows; row++ {
		var sum float64
		for column := 0; column < columns; column++ {
			p := transition.At(row, column)
			if p < 0 || p > 1 {
				t.Errorf("Entry (%v, %v) = %v outside [0, 1]", row, column, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > probabilityTolerance {
			t.Errorf("Row %v sums to %v, expected 1", row, sum)
		}
	}
}

func TestTransitionUniform(t *testing.T) {
	for _, k := range []int{1, 2, 3, 7, 25} {
		transition, err := TransitionUniform(k)
		if err != nil {
			t.Fatalf("Unexpected error for k = %v: %v", k, err)
		}
		rowStochastic(t, transition)
		if got := transition.At(0, k-1); math.Abs(got-1/float64(k)) > probabilityTolerance {
			t.Errorf("Entry is %v, expected %v", got, 1/float64(k))
		}
	}
}

func TestTransitionUniformInvalid(t *testing.T) {
	if _, err := TransitionUniform(0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestTransitionLoop(t *testing.T) {
	transition, err := TransitionLoop(4, 0.7)
	if err != nil {
		t.Fatal(err)
	}
	rowStochastic(t, transition)
	for state := 0; state < 4; state++ {
		if got := transition.At(state, state); got != 0.7 {
			t.Errorf("Self loop of state %v is %v, expected 0.7", state, got)
		}
	}
	if got := transition.At(0, 1); math.Abs(got-0.1) > probabilityTolerance {
		t.Errorf("Off diagonal entry is %v, expected 0.1", got)
	}
}

func TestTransitionLoopPerState(t *testing.T) {
	transition, err := TransitionLoop(2, 0.5, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	rowStochastic(t, transition)
	expected := [][]float64{{0.5, 0.5}, {0.4, 0.6}}
	for row := range expected {
		for column := range expected[row] {
			if got := transition.At(row, column); math.Abs(got-expected[row][column]) > probabilityTolerance {
				t.Errorf("Entry (%v, %v) is %v, expected %v", row, column, got, expected[row][column])
			}
		}
	}
}

func TestTransitionLoopSingleState(t *testing.T) {
	// A single state always transitions into itself, whatever the self
	// loop probability says.
	for _, prob := range []float64{0, 0.3, 1} {
		transition, err := TransitionLoop(1, prob)
		if err != nil {
			t.Fatal(err)
		}
		if got := transition.At(0, 0); got != 1 {
			t.Errorf("Single state self loop is %v, expected 1", got)
		}
	}
}

func TestTransitionLoopInvalid(t *testing.T) {
	if _, err := TransitionLoop(3, 1.5); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Out of range probability: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := TransitionLoop(3, 0.5, 0.5); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Wrong probability count: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := TransitionLoop(0, 0.5); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("No states: expected ErrInvalidArgument, got %v", err)
	}
}

func TestTransitionCycle(t *testing.T) {
	transition, err := TransitionCycle(3, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	rowStochastic(t, transition)
	for state := 0; state < 3; state++ {
		if got := transition.At(state, state); got != 0.8 {
			t.Errorf("Self loop of state %v is %v, expected 0.8", state, got)
		}
		next := (state + 1) % 3
		if got := transition.At(state, next); math.Abs(got-0.2) > probabilityTolerance {
			t.Errorf("Advance probability of state %v is %v, expected 0.2", state, got)
		}
	}
	// Everything else stays zero.
	if got := transition.At(0, 2); got != 0 {
		t.Errorf("Skipping transition is %v, expected 0", got)
	}
}

func TestTransitionLocal(t *testing.T) {
	transition, err := TransitionLocal(6, 2, false)
	if err != nil {
		t.Fatal(err)
	}
	rowStochastic(t, transition)
	// States further than width-1 apart are unreachable.
	if got := transition.At(0, 3); got != 0 {
		t.Errorf("Out of window transition is %v, expected 0", got)
	}
	// The window truncates at the edges but rows stay normalized, so the
	// edge self loop is heavier than an interior one.
	if transition.At(0, 0) <= transition.At(3, 3) {
		t.Errorf("Edge self loop %v not heavier than interior self loop %v",
			transition.At(0, 0), transition.At(3, 3))
	}
}

func TestTransitionLocalWrap(t *testing.T) {
	transition, err := TransitionLocal(5, 2, true)
	if err != nil {
		t.Fatal(err)
	}
	rowStochastic(t, transition)
	// With wrapping the first state reaches the last one.
	if got := transition.At(0, 4); got == 0 {
		t.Error("Wrapped transition missing")
	}
	// All rows see the same window, so all self loops agree.
	if math.Abs(transition.At(0, 0)-transition.At(2, 2)) > probabilityTolerance {
		t.Errorf("Self loops differ under wrapping: %v vs %v", transition.At(0, 0), transition.At(2, 2))
	}
}

func TestTransitionLocalInvalid(t *testing.T) {
	if _, err := TransitionLocal(3, 0, false); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Zero width: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := TransitionLocal(3, 4, false); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Width beyond state count: expected ErrInvalidArgument, got %v", err)
	}
}

func TestTransitionFromRows(t *testing.T) {
	transition, err := TransitionFromRows([][]float64{{0.5, 0.5}, {0.4, 0.6}})
	if err != nil {
		t.Fatal(err)
	}
	rowStochastic(t, transition)
	if got := transition.At(1, 0); got != 0.4 {
		t.Errorf("Entry (1, 0) is %v, expected 0.4", got)
	}
	// Sums within the tolerance pass.
	if _, err := TransitionFromRows([][]float64{{0.5, 0.5 + 1e-8}, {0.4, 0.6}}); err != nil {
		t.Errorf("Row sum within tolerance rejected: %v", err)
	}
}

func TestTransitionFromRowsReportsEveryViolation(t *testing.T) {
	_, err := TransitionFromRows([][]float64{
		{0.5, 0.5, 0.5}, // wrong length
		{0.9, 0.3},      // does not sum to one
		{0.5, 0.5},
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Expected ErrInvalidArgument, got %v", err)
	}
	message := err.Error()
	if !strings.Contains(message, "row 0") || !strings.Contains(message, "row 1") {
		t.Errorf("Expected both violated rows in the report, got %q", message)
	}
}

func TestTransitionLocalRowSumsUnderWrap(t *testing.T) {
	// Wide wrapped windows revisit columns, the rows must still sum to
	// one after accumulation.
	transition, err := TransitionLocal(4, 3, true)
	if err != nil {
		t.Fatal(err)
	}
	for row := 0; row < 4; row++ {
		sum := floats.Sum(transition.RawRowView(row))
		if math.Abs(sum-1) > probabilityTolerance {
			t.Errorf("Row %v sums to %v under wrapping", row, sum)
		}
	}
}
