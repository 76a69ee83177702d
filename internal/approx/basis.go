package approx

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/copyleftdev/mathtools/internal/errors"
)

// BasisFunc is one regressor of a linear model.
type BasisFunc func(float64) float64

// MonomialBasis returns 1, x, ..., x^degree.
func MonomialBasis(degree int) []BasisFunc {
	if degree < 0 {
		return nil
	}
	basis := make([]BasisFunc, degree+1)
	for k := range basis {
		k := k
		basis[k] = func(x float64) float64 { return math.Pow(x, float64(k)) }
	}
	return basis
}

// BasisMatrix returns the len(basis) x len(xs) matrix whose row k is basis[k]
// evaluated at xs.
func BasisMatrix(basis []BasisFunc, xs []float64) (*mat.Dense, error) {
	if len(basis) == 0 || len(xs) == 0 {
		return nil, apperrors.New(apperrors.InvalidDomain, "basis and abscissae must not be empty").
			WithComponent(component).WithOperation("BasisMatrix")
	}
	m := mat.NewDense(len(basis), len(xs), nil)
	for k, b := range basis {
		for i, x := range xs {
			m.Set(k, i, b(x))
		}
	}
	return m, nil
}

// FitBasis least-squares fits coefficients c so that sum_k c[k]*basis[k](x)
// approximates the samples. Coefficients follow basis order.
func FitBasis(s *SampleSet, basis []BasisFunc, logger *zap.Logger) ([]float64, error) {
	const op = "FitBasis"
	logger = nopIfNil(logger)

	if err := checkSamples(s); err != nil {
		return nil, err.WithComponent(component).WithOperation(op)
	}

	m, err := BasisMatrix(basis, s.X)
	if err != nil {
		return nil, err
	}

	var design mat.Dense
	design.CloneFrom(m.T())

	return solveLeastSquares(&design, s.Y, op, logger)
}

// EvaluateBasis evaluates the linear model at xs.
func EvaluateBasis(coeffs []float64, basis []BasisFunc, xs []float64) ([]float64, error) {
	if len(coeffs) != len(basis) {
		return nil, apperrors.Errorf(apperrors.InvalidDomain, "%d coefficients for %d basis functions",
			len(coeffs), len(basis)).WithComponent(component).WithOperation("EvaluateBasis")
	}
	out := make([]float64, len(xs))
	for i, x := range xs {
		var acc float64
		for k, b := range basis {
			acc += coeffs[k] * b(x)
		}
		out[i] = acc
	}
	return out, nil
}
