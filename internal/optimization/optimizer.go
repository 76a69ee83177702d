package optimization

import (
	"math"

	apperrors "github.com/copyleftdev/mathtools/internal/errors"
)

// Objective is a scalar function of a parameter vector. It must not retain
// or modify x.
type Objective func(x []float64) float64

// Bounds holds [low, high] for each dimension. Infinite values leave that
// side unbounded.
type Bounds [][2]float64

// Validate checks that no bound is NaN and low <= high in every dimension.
func (b Bounds) Validate() error {
	for i, r := range b {
		if math.IsNaN(r[0]) || math.IsNaN(r[1]) {
			return apperrors.Errorf(apperrors.InvalidDomain, "bound %d is NaN", i)
		}
		if r[0] > r[1] {
			return apperrors.Errorf(apperrors.InvalidDomain, "bound %d: low %v > high %v", i, r[0], r[1])
		}
	}
	return nil
}

// Clip returns a copy of x moved into the bounds.
func (b Bounds) Clip(x []float64) []float64 {
	out := append([]float64(nil), x...)
	for i := range out {
		if i >= len(b) {
			break
		}
		out[i] = math.Max(b[i][0], math.Min(out[i], b[i][1]))
	}
	return out
}

// Solution represents a solution in the optimization space
type Solution struct {
	Parameters []float64
	Value      float64
}

// Status tells why a solver stopped.
type Status int

const (
	// NotStarted is the zero value.
	NotStarted Status = iota
	// HasSolution problem solved successfully.
	HasSolution
	// ConsIncompatible linearized constraints have no feasible step.
	ConsIncompatible
	// SearchNotDescent the line search found no acceptable step.
	SearchNotDescent
	// ExceedMaxIter the iteration limit was reached.
	ExceedMaxIter
	// Exhausted every grid point was evaluated.
	Exhausted
	// NonFinite the objective or its gradient stopped being finite.
	NonFinite
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case HasSolution:
		return "optimization terminated successfully"
	case ConsIncompatible:
		return "inequality constraints incompatible"
	case SearchNotDescent:
		return "positive directional derivative for linesearch"
	case ExceedMaxIter:
		return "iteration limit reached"
	case Exhausted:
		return "grid exhausted"
	case NonFinite:
		return "objective or gradient is not finite"
	default:
		return "unknown status"
	}
}

// Result contains the result of an optimization run. Success is false when
// the solver stopped without meeting its stopping criteria; that is not a Go
// error.
type Result struct {
	Solution
	Success     bool
	Status      Status
	Message     string
	Iterations  int
	Evaluations int
	// Multipliers are the Lagrange multipliers of the last subproblem, one per
	// constraint (user constraints first, then finite bounds).
	Multipliers []float64
}
