package server

import (
	"context"
	"math"
	"time"

	"github.com/copyleftdev/mathtools/internal/approx"
	apperrors "github.com/copyleftdev/mathtools/internal/errors"
	"github.com/copyleftdev/mathtools/internal/functions"
	"github.com/copyleftdev/mathtools/internal/integral"
	"github.com/copyleftdev/mathtools/internal/metrics"
	"github.com/copyleftdev/mathtools/internal/optimization"
	"github.com/copyleftdev/mathtools/internal/optimization/grid"
	"github.com/copyleftdev/mathtools/internal/optimization/sqp"
)

const component = "server"

// FitRequest asks for a polynomial fit of a registered function sampled
// evenly on Domain.
type FitRequest struct {
	Function string     `json:"function"`
	Domain   [2]float64 `json:"domain"`
	Count    int        `json:"count"`
	Degree   int        `json:"degree"`
}

type FitResponse struct {
	Coefficients []float64 `json:"coefficients"`
	MSE          float64   `json:"mse"`
	Residual     float64   `json:"residual"`
	Close        bool      `json:"close"`
}

type GridRequest struct {
	Objective string       `json:"objective"`
	Bounds    [][2]float64 `json:"bounds"`
	Step      float64      `json:"step"`
}

type GridResponse struct {
	Parameters  []float64 `json:"parameters"`
	Value       float64   `json:"value"`
	Evaluations int       `json:"evaluations"`
}

// RefineRequest runs SQP on a registered objective. Constraints are
// registry names.
type RefineRequest struct {
	Objective     string       `json:"objective"`
	InitialGuess  []float64    `json:"initial_guess"`
	Bounds        [][2]float64 `json:"bounds,omitempty"`
	Constraints   []string     `json:"constraints,omitempty"`
	MaxIterations int          `json:"max_iterations,omitempty"`
}

type RefineResponse struct {
	Parameters  []float64 `json:"parameters"`
	Value       *float64  `json:"value"`
	Success     bool      `json:"success"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Iterations  int       `json:"iterations"`
	Evaluations int       `json:"evaluations"`
	Multipliers []float64 `json:"multipliers,omitempty"`
}

// Integration methods accepted by IntegrateRequest.
const (
	MethodFixed      = "fixed"
	MethodAdaptive   = "adaptive"
	MethodRomberg    = "romberg"
	MethodMonteCarlo = "monte_carlo"
)

// IntegrateRequest integrates a registered function over [A, B]. Order
// applies to fixed, Tolerance to adaptive, Counts and Seed to monte_carlo.
// A missing Seed uses the configured default.
type IntegrateRequest struct {
	Function  string  `json:"function"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
	Method    string  `json:"method"`
	Order     int     `json:"order,omitempty"`
	Tolerance float64 `json:"tolerance,omitempty"`
	Counts    []int   `json:"counts,omitempty"`
	Seed      *uint64 `json:"seed,omitempty"`
	Reseed    bool    `json:"reseed,omitempty"`
}

type IntegrateResponse struct {
	Value       *float64  `json:"value,omitempty"`
	AbsError    *float64  `json:"abs_error,omitempty"`
	Evaluations int       `json:"evaluations,omitempty"`
	Converged   *bool     `json:"converged,omitempty"`
	Values      []float64 `json:"values,omitempty"`
}

type FunctionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Dimensions  int    `json:"dimensions,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

type FunctionsResponse struct {
	Scalars     []FunctionInfo `json:"scalars"`
	Objectives  []FunctionInfo `json:"objectives"`
	Constraints []FunctionInfo `json:"constraints"`
}

func (s *Server) fit(req FitRequest) (_ *FitResponse, err error) {
	const op = "approx.fit"
	defer s.observe(op, time.Now(), &err, nil)

	fn, ok := functions.Scalar(req.Function)
	if !ok {
		return nil, unknown(op, "function", req.Function)
	}
	if limit := s.cfg.Numerics.FitMaxSamples; req.Count > limit {
		return nil, tooLarge(op, "count", req.Count, limit)
	}
	if limit := s.cfg.Numerics.FitMaxDegree; req.Degree > limit {
		return nil, tooLarge(op, "degree", req.Degree, limit)
	}

	samples, err := approx.Sample(s.metrics.CountScalar(op, fn.Func), req.Domain[0], req.Domain[1], req.Count)
	if err != nil {
		return nil, err
	}
	fit, err := approx.FitAndScore(samples, req.Degree, s.numeric)
	if err != nil {
		return nil, err
	}
	for _, c := range fit.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, apperrors.New(apperrors.NumericOverflow, "fit produced non-finite coefficients").
				WithComponent(component).WithOperation(op)
		}
	}

	return &FitResponse{
		Coefficients: fit.Coefficients,
		MSE:          fit.MSE,
		Residual:     fit.Residual,
		Close:        approx.IsClose(samples.Y, fit.Fitted),
	}, nil
}

func (s *Server) grid(ctx context.Context, req GridRequest) (_ *GridResponse, err error) {
	const op = "optimize.grid"
	defer s.observe(op, time.Now(), &err, nil)

	obj, err := s.objective(op, req.Objective, len(req.Bounds))
	if err != nil {
		return nil, err
	}

	res, err := grid.Search(s.metrics.CountVector(op, obj.Func), optimization.Bounds(req.Bounds), req.Step, &grid.Options{
		MaxPoints: s.cfg.Numerics.GridMaxPoints,
		Context:   ctx,
		Logger:    s.numeric,
	})
	if err != nil {
		return nil, err
	}
	if !res.Success || math.IsInf(res.Value, 0) {
		return nil, apperrors.New(apperrors.ConvergenceFailure, "objective has no finite value on the grid").
			WithComponent(component).WithOperation(op)
	}

	return &GridResponse{
		Parameters:  res.Parameters,
		Value:       res.Value,
		Evaluations: res.Evaluations,
	}, nil
}

func (s *Server) refine(ctx context.Context, req RefineRequest) (_ *RefineResponse, err error) {
	const op = "optimize.refine"
	var converged bool
	defer s.observe(op, time.Now(), &err, &converged)

	obj, err := s.objective(op, req.Objective, len(req.InitialGuess))
	if err != nil {
		return nil, err
	}
	if len(req.Bounds) != 0 && len(req.Bounds) != obj.Dimensions {
		return nil, apperrors.Errorf(apperrors.InvalidDomain, "%s takes %d bounds, got %d",
			obj.Name, obj.Dimensions, len(req.Bounds)).WithComponent(component).WithOperation(op)
	}

	var cons []sqp.Constraint
	for _, name := range req.Constraints {
		c, ok := functions.Constraint(name)
		if !ok {
			return nil, unknown(op, "constraint", name)
		}
		cons = append(cons, c.Constraint)
	}

	res, err := sqp.Minimize(sqp.Problem{
		Func:        s.metrics.CountVector(op, obj.Func),
		Constraints: cons,
		Bounds:      optimization.Bounds(req.Bounds),
	}, req.InitialGuess, &sqp.Settings{
		MaxIterations: req.MaxIterations,
		Context:       ctx,
		Logger:        s.numeric,
	})
	if err != nil {
		return nil, err
	}
	converged = res.Success

	return &RefineResponse{
		Parameters:  res.Parameters,
		Value:       finite(res.Value),
		Success:     res.Success,
		Status:      res.Status.String(),
		Message:     res.Message,
		Iterations:  res.Iterations,
		Evaluations: res.Evaluations,
		Multipliers: res.Multipliers,
	}, nil
}

func (s *Server) integrate(req IntegrateRequest) (_ *IntegrateResponse, err error) {
	const op = "integrate"
	converged := true
	defer s.observe(op, time.Now(), &err, &converged)

	fn, ok := functions.Scalar(req.Function)
	if !ok {
		return nil, unknown(op, "function", req.Function)
	}
	f := s.metrics.CountScalar(op, fn.Func)
	iopts := &integral.Options{Logger: s.numeric}

	switch req.Method {
	case MethodFixed, "":
		order := req.Order
		if order == 0 {
			order = integral.DefaultFixedOrder
		}
		v, err := integral.Fixed(f, req.A, req.B, order)
		if err != nil {
			return nil, err
		}
		return &IntegrateResponse{Value: finite(v)}, nil

	case MethodAdaptive, MethodRomberg:
		var est integral.Estimate
		if req.Method == MethodAdaptive {
			est, err = integral.Adaptive(f, req.A, req.B, req.Tolerance, iopts)
		} else {
			est, err = integral.Romberg(f, req.A, req.B, iopts)
		}
		if err != nil {
			return nil, err
		}
		converged = est.Converged
		return &IntegrateResponse{
			Value:       finite(est.Value),
			AbsError:    finite(est.AbsError),
			Evaluations: est.Evaluations,
			Converged:   &est.Converged,
		}, nil

	case MethodMonteCarlo:
		seed := s.cfg.Numerics.MonteCarloSeed
		if req.Seed != nil {
			seed = *req.Seed
		}
		if len(req.Counts) == 0 {
			return nil, apperrors.New(apperrors.InvalidArgument, "monte_carlo needs at least one count").
				WithComponent(component).WithOperation(op)
		}
		limit := s.cfg.Numerics.MonteCarloMaxSamples
		total := 0
		for _, n := range req.Counts {
			if n > limit-total {
				return nil, apperrors.Errorf(apperrors.InvalidArgument, "monte_carlo counts exceed %d samples in total", limit).
					WithComponent(component).WithOperation(op)
			}
			if n > 0 {
				total += n
			}
		}
		mc := integral.MonteCarlo
		if req.Reseed {
			mc = integral.MonteCarloReseeded
		}
		values, err := mc(f, req.A, req.B, req.Counts, seed)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, apperrors.New(apperrors.NumericOverflow, "monte carlo estimate is not finite").
					WithComponent(component).WithOperation(op)
			}
		}
		return &IntegrateResponse{Value: finite(values[len(values)-1]), Values: values}, nil

	default:
		return nil, apperrors.Errorf(apperrors.InvalidArgument, "unknown method %q", req.Method).
			WithComponent(component).WithOperation(op)
	}
}

func (s *Server) functions() *FunctionsResponse {
	cat := functions.List()
	resp := &FunctionsResponse{
		Scalars:     make([]FunctionInfo, 0, len(cat.Scalars)),
		Objectives:  make([]FunctionInfo, 0, len(cat.Objectives)),
		Constraints: make([]FunctionInfo, 0, len(cat.Constraints)),
	}
	for _, f := range cat.Scalars {
		resp.Scalars = append(resp.Scalars, FunctionInfo{Name: f.Name, Description: f.Description, Dimensions: 1})
	}
	for _, o := range cat.Objectives {
		resp.Objectives = append(resp.Objectives, FunctionInfo{Name: o.Name, Description: o.Description, Dimensions: o.Dimensions})
	}
	for _, c := range cat.Constraints {
		resp.Constraints = append(resp.Constraints, FunctionInfo{Name: c.Name, Description: c.Description, Kind: c.Constraint.Kind.String()})
	}
	return resp
}

func (s *Server) objective(op, name string, dims int) (functions.ObjectiveSpec, error) {
	obj, ok := functions.Objective(name)
	if !ok {
		return obj, unknown(op, "objective", name)
	}
	if dims != obj.Dimensions {
		return obj, apperrors.Errorf(apperrors.InvalidDomain, "%s takes %d parameters, got %d", name, obj.Dimensions, dims).
			WithComponent(component).WithOperation(op)
	}
	return obj, nil
}

// observe records the duration of op. converged, when non-nil, downgrades a
// successful call that did not converge.
func (s *Server) observe(op string, start time.Time, err *error, converged *bool) {
	outcome := metrics.OutcomeSuccess
	switch {
	case *err != nil:
		outcome = metrics.OutcomeError
	case converged != nil && !*converged:
		outcome = metrics.OutcomeNoConverge
	}
	s.metrics.ObserveOperation(op, outcome, start)
}

func tooLarge(op, what string, got, limit int) error {
	return apperrors.Errorf(apperrors.InvalidArgument, "%s %d exceeds the limit of %d", what, got, limit).
		WithComponent(component).WithOperation(op)
}

func unknown(op, what, name string) error {
	return apperrors.Errorf(apperrors.InvalidArgument, "unknown %s %q", what, name).
		WithComponent(component).WithOperation(op)
}

// finite returns nil for values JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
