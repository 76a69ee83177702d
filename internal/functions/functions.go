// Package functions holds the demonstration functions and the registry that
// lets the service refer to them by name.
package functions

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/copyleftdev/mathtools/internal/optimization"
	"github.com/copyleftdev/mathtools/internal/optimization/sqp"
)

// SinLinear is sin(x) + 0.5x, the function approximated and integrated by
// the demonstrations.
func SinLinear(x float64) float64 {
	return math.Sin(x) + 0.5*x
}

// SineBowl is sin(x) + 0.05x² + sin(y) + 0.05y², a bowl with many local
// minima.
func SineBowl(p []float64) float64 {
	x, y := p[0], p[1]
	return math.Sin(x) + 0.05*x*x + math.Sin(y) + 0.05*y*y
}

// SineBowlTraced returns SineBowl printing every evaluation to w as
// "x y f(x, y)".
func SineBowlTraced(w io.Writer) optimization.Objective {
	return func(p []float64) float64 {
		z := SineBowl(p)
		fmt.Fprintf(w, "%8.4f %8.4f %8.4f\n", p[0], p[1], z)
		return z
	}
}

// InvestorUtility is the negated expected utility of holding a units of the
// first security and b of the second, each costing 10. The securities pay
// (15, 5) in the up state and (5, 12) in the down state, both equally likely,
// and utility is sqrt(wealth). Minimizing it maximizes expected utility.
func InvestorUtility(p []float64) float64 {
	a, b := p[0], p[1]
	return -(0.5*math.Sqrt(15*a+5*b) + 0.5*math.Sqrt(5*a+12*b))
}

// Budget is the inequality constraint 100 - 10a - 10b >= 0.
func Budget(p []float64) float64 {
	return 100 - 10*p[0] - 10*p[1]
}

// InvestorBounds are the box bounds of the investor problem.
func InvestorBounds() optimization.Bounds {
	return optimization.Bounds{{0, 1000}, {0, 1000}}
}

// ObjectiveSpec is a registered objective with its dimension.
type ObjectiveSpec struct {
	Name        string
	Description string
	Dimensions  int
	Func        optimization.Objective
}

// ScalarSpec is a registered integrand or approximation target.
type ScalarSpec struct {
	Name        string
	Description string
	Func        func(float64) float64
}

// ConstraintSpec is a registered constraint.
type ConstraintSpec struct {
	Name        string
	Description string
	Constraint  sqp.Constraint
}

var (
	scalars = map[string]ScalarSpec{
		"sin_linear": {Name: "sin_linear", Description: "sin(x) + 0.5x", Func: SinLinear},
	}
	objectives = map[string]ObjectiveSpec{
		"sine_bowl": {
			Name:        "sine_bowl",
			Description: "sin(x) + 0.05x^2 + sin(y) + 0.05y^2",
			Dimensions:  2,
			Func:        SineBowl,
		},
		"investor_utility": {
			Name:        "investor_utility",
			Description: "negated expected sqrt utility of two securities",
			Dimensions:  2,
			Func:        InvestorUtility,
		},
	}
	constraints = map[string]ConstraintSpec{
		"budget": {
			Name:        "budget",
			Description: "100 - 10a - 10b >= 0",
			Constraint:  sqp.Constraint{Kind: sqp.Inequality, Func: Budget},
		},
	}
)

// Scalar looks up a one-dimensional function by name.
func Scalar(name string) (ScalarSpec, bool) {
	s, ok := scalars[name]
	return s, ok
}

// Objective looks up a vector objective by name.
func Objective(name string) (ObjectiveSpec, bool) {
	o, ok := objectives[name]
	return o, ok
}

// Constraint looks up a constraint by name.
func Constraint(name string) (ConstraintSpec, bool) {
	c, ok := constraints[name]
	return c, ok
}

// Catalog lists every registered name by category.
type Catalog struct {
	Scalars     []ScalarSpec
	Objectives  []ObjectiveSpec
	Constraints []ConstraintSpec
}

// List returns the registry sorted by name.
func List() Catalog {
	var c Catalog
	for _, s := range scalars {
		c.Scalars = append(c.Scalars, s)
	}
	for _, o := range objectives {
		c.Objectives = append(c.Objectives, o)
	}
	for _, k := range constraints {
		c.Constraints = append(c.Constraints, k)
	}
	sort.Slice(c.Scalars, func(i, j int) bool { return c.Scalars[i].Name < c.Scalars[j].Name })
	sort.Slice(c.Objectives, func(i, j int) bool { return c.Objectives[i].Name < c.Objectives[j].Name })
	sort.Slice(c.Constraints, func(i, j int) bool { return c.Constraints[i].Name < c.Constraints[j].Name })
	return c
}
