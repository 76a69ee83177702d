// Package grid minimizes an objective by exhaustive evaluation over a
// rectangular grid.
package grid

import (
	"context"
	"math"

	"go.uber.org/zap"

	apperrors "github.com/copyleftdev/mathtools/internal/errors"
	"github.com/copyleftdev/mathtools/internal/optimization"
)

const component = "grid"

// MaxAxisPoints is the most points enumerated along one dimension.
const MaxAxisPoints = math.MaxInt32

// cancelCheckInterval is how many evaluations run between context checks.
const cancelCheckInterval = 1024

// Options controls diagnostics. The zero value is silent.
type Options struct {
	// Trace, when set, is called with every evaluated point and its value.
	Trace func(x []float64, value float64)
	// MaxPoints caps the Cartesian product size; 0 means no cap beyond
	// MaxAxisPoints per dimension. It is checked before anything is
	// allocated.
	MaxPoints int
	// Context, when set, stops the search once it is done.
	Context context.Context
	Logger  *zap.Logger
}

// Points enumerates low, low+step, ... up to high inclusive. A last point
// that misses high by less than a relative 1e-10 of the step is kept. Ranges
// holding more than MaxAxisPoints points are rejected.
func Points(low, high, step float64) ([]float64, error) {
	n, err := pointCount(low, high, step, MaxAxisPoints)
	if err != nil {
		return nil, err
	}
	return axis(low, step, n), nil
}

// pointCount validates a range and returns the number of points Points
// enumerates on it, failing when that exceeds limit.
func pointCount(low, high, step float64, limit int) (int, error) {
	if math.IsNaN(step) || step <= 0 || math.IsInf(step, 0) {
		return 0, apperrors.Errorf(apperrors.InvalidDomain, "step must be positive and finite, got %v", step).
			WithComponent(component).WithOperation("Points")
	}
	if math.IsNaN(low) || math.IsNaN(high) || math.IsInf(low, 0) || math.IsInf(high, 0) {
		return 0, apperrors.Errorf(apperrors.InvalidDomain, "range [%v, %v] must be finite", low, high).
			WithComponent(component).WithOperation("Points")
	}
	if low > high {
		return 0, apperrors.Errorf(apperrors.InvalidDomain, "low %v > high %v", low, high).
			WithComponent(component).WithOperation("Points")
	}

	// high-low may overflow to +Inf, which fails the comparison below.
	n := math.Floor((high-low)/step+1e-10) + 1
	if !(n <= float64(limit)) {
		return 0, apperrors.Errorf(apperrors.InvalidDomain, "range [%v, %v] with step %v exceeds %d points", low, high, step, limit).
			WithComponent(component).WithOperation("Points")
	}
	return int(n), nil
}

func axis(low, step float64, n int) []float64 {
	points := make([]float64, n)
	for i := range points {
		points[i] = low + float64(i)*step
	}
	return points
}

// Search evaluates objective on the grid spanned by bounds with the same
// step in every dimension and returns the first minimum found.
func Search(objective optimization.Objective, bounds optimization.Bounds, step float64, opts *Options) (*optimization.Result, error) {
	steps := make([]float64, len(bounds))
	for i := range steps {
		steps[i] = step
	}
	return SearchSteps(objective, bounds, steps, opts)
}

// SearchSteps is Search with one step per dimension. Points are enumerated in
// row-major order, the last dimension varying fastest, and a later point
// replaces the best only when strictly smaller. NaN values never win.
func SearchSteps(objective optimization.Objective, bounds optimization.Bounds, steps []float64, opts *Options) (*optimization.Result, error) {
	const op = "Search"

	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if objective == nil {
		return nil, apperrors.New(apperrors.InvalidArgument, "objective must not be nil").
			WithComponent(component).WithOperation(op)
	}
	if len(bounds) == 0 {
		return nil, apperrors.New(apperrors.InvalidDomain, "at least one dimension is required").
			WithComponent(component).WithOperation(op)
	}
	if len(steps) != len(bounds) {
		return nil, apperrors.Errorf(apperrors.InvalidDomain, "%d steps for %d dimensions", len(steps), len(bounds)).
			WithComponent(component).WithOperation(op)
	}

	limit := math.MaxInt
	if opts.MaxPoints > 0 {
		limit = opts.MaxPoints
	}
	axisLimit := min(limit, MaxAxisPoints)

	counts := make([]int, len(bounds))
	total := 1
	for i, b := range bounds {
		n, err := pointCount(b[0], b[1], steps[i], axisLimit)
		if err != nil {
			return nil, apperrors.Wrapf(err, "dimension %d", i).WithComponent(component).WithOperation(op)
		}
		if total > limit/n {
			return nil, apperrors.Errorf(apperrors.InvalidDomain, "grid exceeds %d points", limit).
				WithComponent(component).WithOperation(op)
		}
		counts[i] = n
		total *= n
	}

	axes := make([][]float64, len(bounds))
	for i, b := range bounds {
		axes[i] = axis(b[0], steps[i], counts[i])
	}

	logger.Debug("starting grid search",
		zap.Int("dimensions", len(bounds)),
		zap.Int("points", total),
	)

	s := &searcher{
		objective: objective,
		axes:      axes,
		trace:     opts.Trace,
		ctx:       opts.Context,
		current:   make([]float64, len(axes)),
		best:      math.Inf(1),
	}
	if err := s.search(0); err != nil {
		logger.Debug("grid search cancelled", zap.Int("evaluations", s.evaluations), zap.Error(err))
		return nil, apperrors.Wrap(err, "grid search cancelled").WithComponent(component).WithOperation(op)
	}

	result := &optimization.Result{
		Status:      optimization.Exhausted,
		Iterations:  s.evaluations,
		Evaluations: s.evaluations,
	}

	if s.bestParams == nil {
		result.Message = "objective was NaN at every grid point"
		result.Solution = optimization.Solution{Value: math.NaN()}
		logger.Warn("grid search found no comparable value", zap.Int("points", total))
		return result, nil
	}

	result.Success = true
	result.Message = optimization.Exhausted.String()
	result.Solution = optimization.Solution{
		Parameters: s.bestParams,
		Value:      s.best,
	}

	logger.Debug("grid search finished",
		zap.Float64s("argmin", s.bestParams),
		zap.Float64("value", s.best),
		zap.Int("evaluations", s.evaluations),
	)

	return result, nil
}

type searcher struct {
	objective   optimization.Objective
	axes        [][]float64
	trace       func([]float64, float64)
	ctx         context.Context
	current     []float64
	best        float64
	bestParams  []float64
	evaluations int
}

func (s *searcher) search(depth int) error {
	if depth == len(s.axes) {
		if s.ctx != nil && s.evaluations%cancelCheckInterval == 0 {
			if err := s.ctx.Err(); err != nil {
				return err
			}
		}

		x := append([]float64(nil), s.current...)
		val := s.objective(x)
		s.evaluations++

		if s.trace != nil {
			s.trace(x, val)
		}

		if !math.IsNaN(val) && (s.bestParams == nil || val < s.best) {
			s.best = val
			s.bestParams = x
		}
		return nil
	}

	for _, v := range s.axes[depth] {
		s.current[depth] = v
		if err := s.search(depth + 1); err != nil {
			return err
		}
	}
	return nil
}
