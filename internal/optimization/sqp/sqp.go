package sqp

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/copyleftdev/mathtools/internal/errors"
	"github.com/copyleftdev/mathtools/internal/optimization"
)

const (
	armijo      = 1e-4
	minStepSize = 1e-10
	minPenalty  = 1.0
)

// Refine runs Minimize with DefaultSettings. It is the local polish applied
// after a grid search.
func Refine(objective optimization.Objective, guess []float64, constraints []Constraint, bounds optimization.Bounds) (*optimization.Result, error) {
	return Minimize(Problem{
		Func:        objective,
		Constraints: constraints,
		Bounds:      bounds,
	}, guess, nil)
}

// Minimize searches for a local minimum of p.Func starting from x0, which is
// first clipped into the bounds. Each iteration solves a quadratic model of
// the Lagrangian under linearized constraints, backtracks on an L1 merit
// function and updates a damped BFGS Hessian approximation.
//
// Invalid input is reported as an error. A run that stops without converging
// returns a Result with Success false and the reason in Status.
func Minimize(p Problem, x0 []float64, settings *Settings) (*optimization.Result, error) {
	const op = "Minimize"
	s := settings.withDefaults()

	if err := validate(p, x0); err != nil {
		return nil, err.WithComponent(component).WithOperation(op)
	}

	sv := &solver{problem: p, n: len(x0), settings: s, logger: s.Logger}
	res := sv.run(p.Bounds.Clip(x0))
	if sv.cancelled != nil {
		return nil, apperrors.Wrap(sv.cancelled, "refinement cancelled").WithComponent(component).WithOperation(op)
	}
	return res, nil
}

func validate(p Problem, x0 []float64) *apperrors.Error {
	if p.Func == nil {
		return apperrors.New(apperrors.InvalidArgument, "objective must not be nil")
	}
	if len(x0) == 0 {
		return apperrors.New(apperrors.InvalidDomain, "initial guess must not be empty")
	}
	for i, v := range x0 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.Errorf(apperrors.InvalidDomain, "initial guess component %d is not finite", i)
		}
	}
	if len(p.Bounds) != 0 && len(p.Bounds) != len(x0) {
		return apperrors.Errorf(apperrors.InvalidDomain, "%d bounds for %d parameters", len(p.Bounds), len(x0))
	}
	if err := p.Bounds.Validate(); err != nil {
		var e *apperrors.Error
		if apperrors.As(err, &e) {
			return e
		}
		return apperrors.New(apperrors.InvalidDomain, err.Error())
	}
	for i, c := range p.Constraints {
		if c.Func == nil {
			return apperrors.Errorf(apperrors.InvalidArgument, "constraint %d has no function", i)
		}
		if c.Kind != Inequality && c.Kind != Equality {
			return apperrors.Errorf(apperrors.InvalidArgument, "constraint %d has unknown kind %d", i, c.Kind)
		}
	}
	return nil
}

type solver struct {
	problem     Problem
	n           int
	settings    *Settings
	logger      *zap.Logger
	evaluations int
	cancelled   error
}

func (sv *solver) value(x []float64) float64 {
	sv.evaluations++
	return sv.problem.Func(x)
}

func (sv *solver) gradient(x []float64) []float64 {
	g := make([]float64, sv.n)
	if sv.problem.Grad != nil {
		sv.problem.Grad(g, x)
		return g
	}
	fd.Gradient(g, sv.value, x, &fd.Settings{Formula: fd.Central})
	if !allFinite(g) {
		// A central step can leave the region where the objective is defined.
		fd.Gradient(g, sv.value, x, &fd.Settings{Formula: fd.Forward})
	}
	return g
}

// constraintValues returns the user constraint values followed by the
// distances to every finite bound.
func (sv *solver) constraintValues(x []float64) ([]float64, []bool) {
	var vals []float64
	var eq []bool
	for _, c := range sv.problem.Constraints {
		vals = append(vals, c.Func(x))
		eq = append(eq, c.Kind == Equality)
	}
	for i, b := range sv.problem.Bounds {
		if !math.IsInf(b[0], -1) {
			vals = append(vals, x[i]-b[0])
			eq = append(eq, false)
		}
		if !math.IsInf(b[1], 1) {
			vals = append(vals, b[1]-x[i])
			eq = append(eq, false)
		}
	}
	return vals, eq
}

func (sv *solver) linearize(x []float64) *linearization {
	vals, eq := sv.constraintValues(x)
	lin := &linearization{vals: vals, eq: eq}

	if m := len(sv.problem.Constraints); m > 0 {
		jac := mat.NewDense(m, sv.n, nil)
		fd.Jacobian(jac, func(y, x []float64) {
			for i, c := range sv.problem.Constraints {
				y[i] = c.Func(x)
			}
		}, x, &fd.JacobianSettings{Formula: fd.Central})
		for i := 0; i < m; i++ {
			lin.rows = append(lin.rows, mat.Row(nil, i, jac))
		}
	}

	for i, b := range sv.problem.Bounds {
		if !math.IsInf(b[0], -1) {
			row := make([]float64, sv.n)
			row[i] = 1
			lin.rows = append(lin.rows, row)
		}
		if !math.IsInf(b[1], 1) {
			row := make([]float64, sv.n)
			row[i] = -1
			lin.rows = append(lin.rows, row)
		}
	}
	return lin
}

func (sv *solver) run(x []float64) *optimization.Result {
	s := sv.settings
	res := &optimization.Result{Status: optimization.ExceedMaxIter}

	f := sv.value(x)
	g := sv.gradient(x)
	if math.IsNaN(f) || math.IsInf(f, 0) || !allFinite(g) {
		return sv.finish(res, optimization.NonFinite, x, f, nil)
	}
	lin := sv.linearize(x)

	b := identity(sv.n)
	h := identity(sv.n)
	mu := minPenalty
	var lambda []float64

	for iter := 1; iter <= s.MaxIterations; iter++ {
		if s.Context != nil {
			if err := s.Context.Err(); err != nil {
				sv.cancelled = err
				sv.logger.Debug("sqp cancelled", zap.Int("iteration", iter), zap.Error(err))
				return res
			}
		}
		res.Iterations = iter

		d, lam, err := solveQP(h, g, lin)
		if err != nil {
			sv.logger.Debug("subproblem infeasible", zap.Int("iteration", iter), zap.Error(err))
			return sv.finish(res, optimization.ConsIncompatible, x, f, lambda)
		}
		lambda = lam

		viol := lin.violation()
		xnorm := floats.Norm(x, math.Inf(1))
		dnorm := floats.Norm(d, math.Inf(1))
		if dnorm <= s.StepTolerance*(1+xnorm) && viol <= s.ConstraintTolerance {
			return sv.finish(res, optimization.HasSolution, x, f, lambda)
		}

		for _, l := range lambda {
			mu = math.Max(mu, 1.5*math.Abs(l))
		}
		phi0 := f + mu*viol
		deriv := math.Min(floats.Dot(g, d)-mu*viol, 0)

		var xt []float64
		var ft float64
		accepted := false
		for alpha := 1.0; alpha >= minStepSize; alpha /= 2 {
			trial := append([]float64(nil), x...)
			floats.AddScaled(trial, alpha, d)
			trial = sv.problem.Bounds.Clip(trial)

			fv := sv.value(trial)
			cv, ceq := sv.constraintValues(trial)
			phi := fv + mu*violation(cv, ceq)
			if !math.IsNaN(phi) && !math.IsInf(phi, 0) && phi <= phi0+armijo*alpha*deriv {
				xt, ft, accepted = trial, fv, true
				break
			}
		}
		if !accepted {
			if viol <= s.ConstraintTolerance && dnorm <= math.Sqrt(s.StepTolerance)*(1+xnorm) {
				return sv.finish(res, optimization.HasSolution, x, f, lambda)
			}
			return sv.finish(res, optimization.SearchNotDescent, x, f, lambda)
		}

		gt := sv.gradient(xt)
		if !allFinite(gt) {
			return sv.finish(res, optimization.NonFinite, xt, ft, lambda)
		}
		lint := sv.linearize(xt)

		step := make([]float64, sv.n)
		floats.SubTo(step, xt, x)
		y := lint.lagrangianGradient(gt, lambda)
		floats.Sub(y, lin.lagrangianGradient(g, lambda))
		updateBFGS(b, step, y)
		if inv, ok := inverse(b); ok {
			h = inv
		} else {
			sv.logger.Debug("resetting Hessian approximation", zap.Int("iteration", iter))
			b = identity(sv.n)
			h = identity(sv.n)
		}

		df := ft - f
		x, f, g, lin = xt, ft, gt, lint

		sv.logger.Debug("sqp iteration",
			zap.Int("iteration", iter),
			zap.Float64("value", f),
			zap.Float64("violation", lin.violation()),
			zap.Float64("penalty", mu),
		)

		if lin.violation() <= s.ConstraintTolerance &&
			(math.Abs(df) <= s.FuncTolerance || floats.Norm(step, math.Inf(1)) <= s.StepTolerance*(1+floats.Norm(x, math.Inf(1)))) {
			return sv.finish(res, optimization.HasSolution, x, f, lambda)
		}
	}

	return sv.finish(res, optimization.ExceedMaxIter, x, f, lambda)
}

func (sv *solver) finish(res *optimization.Result, status optimization.Status, x []float64, f float64, lambda []float64) *optimization.Result {
	res.Status = status
	res.Success = status == optimization.HasSolution
	res.Message = status.String()
	res.Solution = optimization.Solution{Parameters: x, Value: f}
	res.Evaluations = sv.evaluations
	res.Multipliers = lambda

	fields := []zap.Field{
		zap.Stringer("status", status),
		zap.Float64s("x", x),
		zap.Float64("value", f),
		zap.Int("iterations", res.Iterations),
		zap.Int("evaluations", res.Evaluations),
	}
	if res.Success {
		sv.logger.Debug("sqp finished", fields...)
	} else {
		sv.logger.Warn("sqp stopped without converging", fields...)
	}
	return res
}

// updateBFGS applies a Powell-damped BFGS update to b in place, which keeps b
// positive definite when the curvature s'y is small or negative.
func updateBFGS(b *mat.SymDense, s, y []float64) {
	n := len(s)
	sv := mat.NewVecDense(n, append([]float64(nil), s...))

	var bs mat.VecDense
	bs.MulVec(b, sv)
	sBs := mat.Dot(sv, &bs)
	if sBs <= 1e-300 || math.IsNaN(sBs) {
		return
	}

	yd := append([]float64(nil), y...)
	sy := floats.Dot(s, yd)
	if sy < 0.2*sBs {
		theta := 0.8 * sBs / (sBs - sy)
		for i := range yd {
			yd[i] = theta*y[i] + (1-theta)*bs.AtVec(i)
		}
		sy = floats.Dot(s, yd)
	}
	if sy <= 1e-300 || math.IsNaN(sy) {
		return
	}

	b.SymRankOne(b, -1/sBs, &bs)
	b.SymRankOne(b, 1/sy, mat.NewVecDense(n, yd))
}

func inverse(b *mat.SymDense) (*mat.SymDense, bool) {
	var chol mat.Cholesky
	if !chol.Factorize(b) {
		return nil, false
	}
	var h mat.SymDense
	if err := chol.InverseTo(&h); err != nil {
		return nil, false
	}
	return &h, true
}

func identity(n int) *mat.SymDense {
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		m.SetSym(i, i, 1)
	}
	return m
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
