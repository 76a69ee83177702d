// Package integral evaluates definite integrals of scalar functions by
// fixed Gauss-Legendre quadrature, adaptive Gauss-Kronrod quadrature,
// Romberg extrapolation and Monte Carlo sampling.
package integral

import (
	"math"

	"go.uber.org/zap"

	apperrors "github.com/copyleftdev/mathtools/internal/errors"
)

const component = "integral"

// Func is an integrand.
type Func func(x float64) float64

// Estimate is an integral value with the error bound reported by the method.
type Estimate struct {
	Value       float64
	AbsError    float64
	Evaluations int
	// Converged is false when the method stopped at its ceiling before the
	// requested tolerance was met.
	Converged bool
}

// Options carries the logger used by the iterative methods. The zero value
// is silent.
type Options struct {
	Logger *zap.Logger
}

func (o *Options) logger() *zap.Logger {
	if o == nil || o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func checkInterval(f Func, a, b float64, op string) error {
	if f == nil {
		return apperrors.New(apperrors.InvalidArgument, "integrand must not be nil").
			WithComponent(component).WithOperation(op)
	}
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return apperrors.Errorf(apperrors.InvalidDomain, "interval [%v, %v] must be finite", a, b).
			WithComponent(component).WithOperation(op)
	}
	if a > b {
		return apperrors.Errorf(apperrors.InvalidDomain, "a %v > b %v", a, b).
			WithComponent(component).WithOperation(op)
	}
	return nil
}

// counted wraps f so every call increments *n.
func counted(f Func, n *int) Func {
	return func(x float64) float64 {
		*n++
		return f(x)
	}
}
