package approx

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/copyleftdev/mathtools/internal/errors"
)

// Polynomial holds coefficients ordered from the highest degree down to the
// constant term.
type Polynomial []float64

// Degree returns the polynomial degree; the empty polynomial has degree -1.
func (p Polynomial) Degree() int {
	return len(p) - 1
}

// At evaluates p at x with Horner's scheme.
func (p Polynomial) At(x float64) float64 {
	var acc float64
	for _, c := range p {
		acc = acc*x + c
	}
	return acc
}

// Evaluate evaluates p at every x in xs.
func Evaluate(p Polynomial, xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = p.At(x)
	}
	return out
}

// FitPolynomial least-squares fits a polynomial of the given degree to the
// samples. With degree >= s.Len()-1 the fit interpolates the samples; past
// that point the minimum norm solution is returned.
func FitPolynomial(s *SampleSet, degree int) (Polynomial, error) {
	return fitPolynomial(s, degree, nil)
}

// FitPolynomialWithLogger is FitPolynomial that reports ill-conditioning
// through logger.
func FitPolynomialWithLogger(s *SampleSet, degree int, logger *zap.Logger) (Polynomial, error) {
	return fitPolynomial(s, degree, logger)
}

func fitPolynomial(s *SampleSet, degree int, logger *zap.Logger) (Polynomial, error) {
	const op = "FitPolynomial"
	logger = nopIfNil(logger)

	if degree < 0 {
		return nil, apperrors.Errorf(apperrors.InvalidDegree, "degree must be non-negative, got %d", degree).
			WithComponent(component).WithOperation(op)
	}
	if err := checkSamples(s); err != nil {
		return nil, err.WithComponent(component).WithOperation(op)
	}

	// Columns run from x^degree down to x^0 so the solution is already in
	// Polynomial order.
	n := s.Len()
	cols := degree + 1
	v := mat.NewDense(n, cols, nil)
	for i, x := range s.X {
		p := 1.0
		for j := cols - 1; j >= 0; j-- {
			v.Set(i, j, p)
			p *= x
		}
	}

	logger.Debug("fitting polynomial",
		zap.Int("degree", degree),
		zap.Int("samples", n),
	)

	coeffs, err := solveLeastSquares(v, s.Y, op, logger)
	if err != nil {
		return nil, err
	}
	return Polynomial(coeffs), nil
}

func checkSamples(s *SampleSet) *apperrors.Error {
	if s == nil || s.Len() == 0 {
		return apperrors.New(apperrors.InvalidDomain, "sample set is empty")
	}
	if len(s.X) != len(s.Y) {
		return apperrors.Errorf(apperrors.InvalidDomain, "sample set has %d abscissae and %d values", len(s.X), len(s.Y))
	}
	return nil
}
