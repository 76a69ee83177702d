// Package approx approximates scalar functions by least-squares regression
// on sampled points: polynomials of a chosen degree or arbitrary basis
// functions.
package approx

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/copyleftdev/mathtools/internal/errors"
)

const component = "approx"

// Func is a scalar function of one variable.
type Func func(float64) float64

// SampleSet holds f evaluated at evenly spaced points. X and Y have the
// same length and must not be modified after Sample returns them.
type SampleSet struct {
	X []float64
	Y []float64
}

// Len returns the number of samples.
func (s *SampleSet) Len() int {
	return len(s.X)
}

// Tolerance bounds elementwise closeness as |a-b| <= Abs + Rel*|b|.
type Tolerance struct {
	Abs float64
	Rel float64
}

// DefaultTolerance matches the tolerances of the usual allclose check.
var DefaultTolerance = Tolerance{Abs: 1e-8, Rel: 1e-5}

// MaxSamples is the largest count Sample accepts.
const MaxSamples = math.MaxInt32

// Sample evaluates f at count evenly spaced points on [lo, hi]. Both
// endpoints are included exactly.
func Sample(f Func, lo, hi float64, count int) (*SampleSet, error) {
	const op = "Sample"

	if f == nil {
		return nil, apperrors.New(apperrors.InvalidArgument, "function must not be nil").
			WithComponent(component).WithOperation(op)
	}
	if count < 2 || count > MaxSamples {
		return nil, apperrors.Errorf(apperrors.InvalidDomain, "count must be in [2, %d], got %d", MaxSamples, count).
			WithComponent(component).WithOperation(op)
	}
	if err := checkDomain(lo, hi); err != nil {
		return nil, err.WithComponent(component).WithOperation(op)
	}

	x := floats.Span(make([]float64, count), lo, hi)
	y := make([]float64, count)
	for i, xi := range x {
		y[i] = f(xi)
	}

	return &SampleSet{X: x, Y: y}, nil
}

func checkDomain(lo, hi float64) *apperrors.Error {
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return apperrors.Errorf(apperrors.InvalidDomain, "domain [%v, %v] must be finite", lo, hi)
	}
	if lo >= hi {
		return apperrors.Errorf(apperrors.InvalidDomain, "domain [%v, %v] is empty or reversed", lo, hi)
	}
	return nil
}

// MeanSquaredError returns sum((a-b)^2)/n.
func MeanSquaredError(actual, approx []float64) (float64, error) {
	if len(actual) == 0 {
		return math.NaN(), apperrors.New(apperrors.InvalidDomain, "no values to compare").
			WithComponent(component).WithOperation("MeanSquaredError")
	}
	if len(actual) != len(approx) {
		return math.NaN(), apperrors.Errorf(apperrors.InvalidDomain, "length mismatch: %d actual, %d approximated",
			len(actual), len(approx)).WithComponent(component).WithOperation("MeanSquaredError")
	}

	var sum float64
	for i, a := range actual {
		d := a - approx[i]
		sum += d * d
	}
	return sum / float64(len(actual)), nil
}

// IsClose reports whether every element of approx is within
// DefaultTolerance of the matching element of actual.
func IsClose(actual, approx []float64) bool {
	return IsCloseTol(actual, approx, DefaultTolerance)
}

// IsCloseTol is IsClose with an explicit tolerance. Slices of different
// length and NaN values are never close.
func IsCloseTol(actual, approx []float64, tol Tolerance) bool {
	if len(actual) != len(approx) {
		return false
	}
	for i, a := range actual {
		b := approx[i]
		if math.IsNaN(a) || math.IsNaN(b) {
			return false
		}
		if a == b {
			// equal infinities
			continue
		}
		if math.Abs(a-b) > tol.Abs+tol.Rel*math.Abs(b) {
			return false
		}
	}
	return true
}

// Fit is a fitted model with its quality on the samples it was fitted to.
type Fit struct {
	Coefficients Polynomial
	Fitted       []float64
	MSE          float64
	// Residual is the Euclidean norm of Y - Fitted.
	Residual float64
}

// FitAndScore fits a polynomial of the given degree and evaluates it on the
// sample abscissae. A non-finite residual is reported as NumericOverflow.
func FitAndScore(s *SampleSet, degree int, logger *zap.Logger) (*Fit, error) {
	coeffs, err := fitPolynomial(s, degree, logger)
	if err != nil {
		return nil, err
	}

	fitted := Evaluate(coeffs, s.X)
	mse, err := MeanSquaredError(s.Y, fitted)
	if err != nil {
		return nil, err
	}

	res := make([]float64, len(fitted))
	floats.SubTo(res, s.Y, fitted)
	residual := floats.Norm(res, 2)
	if math.IsNaN(residual) || math.IsInf(residual, 0) {
		return nil, apperrors.Errorf(apperrors.NumericOverflow, "residual of degree %d fit is not finite", degree).
			WithComponent(component).WithOperation("FitAndScore")
	}

	return &Fit{
		Coefficients: coeffs,
		Fitted:       fitted,
		MSE:          mse,
		Residual:     residual,
	}, nil
}

// solveLeastSquares solves min |A c - y| with columns scaled to unit norm
// first, which keeps Vandermonde systems of moderate degree well behaved.
// Near-singular systems still return a solution; the condition number is
// logged.
func solveLeastSquares(a *mat.Dense, y []float64, op string, logger *zap.Logger) ([]float64, error) {
	rows, cols := a.Dims()

	scale := make([]float64, cols)
	for j := 0; j < cols; j++ {
		col := mat.Col(nil, j, a)
		norm := floats.Norm(col, 2)
		if norm == 0 {
			norm = 1
		}
		scale[j] = norm
		floats.Scale(1/norm, col)
		a.SetCol(j, col)
	}

	b := mat.NewVecDense(rows, append([]float64(nil), y...))
	var c mat.VecDense
	if err := c.SolveVec(a, b); err != nil {
		var cond mat.Condition
		if !apperrors.As(err, &cond) {
			return nil, apperrors.Wrap(err, "least squares solve failed").
				WithKind(apperrors.NumericOverflow).WithComponent(component).WithOperation(op)
		}
		logger.Warn("ill-conditioned least squares system",
			zap.String("op", op),
			zap.Float64("condition", float64(cond)),
		)
	}

	out := make([]float64, cols)
	for j := range out {
		out[j] = c.AtVec(j) / scale[j]
		if math.IsNaN(out[j]) || math.IsInf(out[j], 0) {
			return nil, apperrors.Errorf(apperrors.NumericOverflow, "coefficient %d is not finite", j).
				WithComponent(component).WithOperation(op)
		}
	}
	return out, nil
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
