// Package sqp refines a starting point with sequential quadratic
// programming under inequality, equality and box constraints.
package sqp

import (
	"context"

	"go.uber.org/zap"

	"github.com/copyleftdev/mathtools/internal/optimization"
)

const component = "sqp"

// ConstraintKind says how a constraint function is satisfied.
type ConstraintKind int

const (
	// Inequality constraints are satisfied when Func(x) >= 0.
	Inequality ConstraintKind = iota
	// Equality constraints are satisfied when Func(x) == 0.
	Equality
)

func (k ConstraintKind) String() string {
	if k == Equality {
		return "eq"
	}
	return "ineq"
}

// Constraint is one scalar constraint on the parameters.
type Constraint struct {
	Kind ConstraintKind
	Func func(x []float64) float64
}

// Problem describes a constrained minimization.
type Problem struct {
	Func optimization.Objective
	// Grad writes the gradient at x into grad. Central finite differences are
	// used when it is nil.
	Grad        func(grad, x []float64)
	Constraints []Constraint
	Bounds      optimization.Bounds
}

// Settings tunes the solver. A nil *Settings uses DefaultSettings.
type Settings struct {
	MaxIterations int
	// FuncTolerance stops when a feasible step changes f by less than this.
	FuncTolerance float64
	// StepTolerance stops when a feasible step is shorter than this, relative
	// to 1+|x|.
	StepTolerance float64
	// ConstraintTolerance is the largest total violation counted as feasible.
	ConstraintTolerance float64
	// Context, when set, is checked before every iteration. A done context
	// ends the run with its error.
	Context context.Context
	Logger  *zap.Logger
}

// DefaultSettings returns the defaults used by Refine.
func DefaultSettings() *Settings {
	return &Settings{
		MaxIterations:       100,
		FuncTolerance:       1e-10,
		StepTolerance:       1e-10,
		ConstraintTolerance: 1e-8,
	}
}

func (s *Settings) withDefaults() *Settings {
	d := DefaultSettings()
	if s == nil {
		d.Logger = zap.NewNop()
		return d
	}
	out := *s
	if out.MaxIterations <= 0 {
		out.MaxIterations = d.MaxIterations
	}
	if out.FuncTolerance <= 0 {
		out.FuncTolerance = d.FuncTolerance
	}
	if out.StepTolerance <= 0 {
		out.StepTolerance = d.StepTolerance
	}
	if out.ConstraintTolerance <= 0 {
		out.ConstraintTolerance = d.ConstraintTolerance
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return &out
}
