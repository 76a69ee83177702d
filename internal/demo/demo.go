// Package demo replays the approximation, optimization and integration
// walkthrough with its literal parameters and prints the results.
package demo

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/copyleftdev/mathtools/internal/approx"
	"github.com/copyleftdev/mathtools/internal/functions"
	"github.com/copyleftdev/mathtools/internal/integral"
	"github.com/copyleftdev/mathtools/internal/optimization"
	"github.com/copyleftdev/mathtools/internal/optimization/grid"
	"github.com/copyleftdev/mathtools/internal/optimization/sqp"
)

// DefaultSeed seeds the Monte Carlo estimates.
const DefaultSeed = 1000

// Options controls a run. The zero value uses seed 0; use DefaultOptions for
// the walkthrough values.
type Options struct {
	Seed uint64
	// Trace prints every evaluation of the coarse grid search.
	Trace bool
	// Reseed resets the generator before every Monte Carlo count.
	Reseed bool
	Logger *zap.Logger
}

// DefaultOptions returns the walkthrough settings.
func DefaultOptions() Options {
	return Options{Seed: DefaultSeed}
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// DegreeFit is one polynomial fit of the approximation section.
type DegreeFit struct {
	Degree       int
	Coefficients []float64
	MSE          float64
	Close        bool
}

// ApproximationReport is the output of RunApproximation.
type ApproximationReport struct {
	Samples int
	Fits    []DegreeFit
	// Basis is the {1, x, sin x} regression.
	Basis DegreeFit
}

// OptimizationReport is the output of RunOptimization.
type OptimizationReport struct {
	Coarse   *optimization.Result
	Fine     *optimization.Result
	Refined  *optimization.Result
	Investor *optimization.Result
	// Spent is the budget used by the investor optimum.
	Spent float64
	// Utility is the maximized expected utility.
	Utility float64
}

// IntegrationReport is the output of RunIntegration.
type IntegrationReport struct {
	A, B       float64
	Fixed      float64
	Adaptive   integral.Estimate
	Romberg    integral.Estimate
	Counts     []int
	MonteCarlo []float64
}

// Report bundles all three sections.
type Report struct {
	Approximation *ApproximationReport
	Optimization  *OptimizationReport
	Integration   *IntegrationReport
}

// Run executes every section in order and stops at the first error.
func Run(w io.Writer, opts Options) (*Report, error) {
	ar, err := RunApproximation(w, opts)
	if err != nil {
		return nil, err
	}
	or, err := RunOptimization(w, opts)
	if err != nil {
		return nil, err
	}
	ir, err := RunIntegration(w, opts)
	if err != nil {
		return nil, err
	}
	return &Report{Approximation: ar, Optimization: or, Integration: ir}, nil
}

// RunApproximation regresses sin(x) + 0.5x on 50 points of [-2π, 2π] with
// degrees 1, 5 and 7, then with the basis {1, x, sin x}.
func RunApproximation(w io.Writer, opts Options) (*ApproximationReport, error) {
	logger := opts.logger()

	samples, err := approx.Sample(functions.SinLinear, -2*math.Pi, 2*math.Pi, 50)
	if err != nil {
		return nil, err
	}

	report := &ApproximationReport{Samples: samples.Len()}
	for _, degree := range []int{1, 5, 7} {
		fit, err := approx.FitAndScore(samples, degree, logger)
		if err != nil {
			return nil, err
		}
		report.Fits = append(report.Fits, DegreeFit{
			Degree:       degree,
			Coefficients: fit.Coefficients,
			MSE:          fit.MSE,
			Close:        approx.IsClose(samples.Y, fit.Fitted),
		})
	}

	basis := []approx.BasisFunc{
		func(float64) float64 { return 1 },
		func(x float64) float64 { return x },
		math.Sin,
	}
	coeffs, err := approx.FitBasis(samples, basis, logger)
	if err != nil {
		return nil, err
	}
	fitted, err := approx.EvaluateBasis(coeffs, basis, samples.X)
	if err != nil {
		return nil, err
	}
	mse, err := approx.MeanSquaredError(samples.Y, fitted)
	if err != nil {
		return nil, err
	}
	report.Basis = DegreeFit{
		Degree:       -1,
		Coefficients: coeffs,
		MSE:          mse,
		Close:        approx.IsClose(samples.Y, fitted),
	}

	fmt.Fprintf(w, "== Approximation: sin(x) + 0.5x, %d samples on [-2pi, 2pi]\n", report.Samples)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "model\tmse\tclose\tcoefficients")
	for _, f := range report.Fits {
		fmt.Fprintf(tw, "degree %d\t%.6g\t%t\t%s\n", f.Degree, f.MSE, f.Close, formatFloats(f.Coefficients))
	}
	fmt.Fprintf(tw, "1, x, sin x\t%.6g\t%t\t%s\n", report.Basis.MSE, report.Basis.Close, formatFloats(report.Basis.Coefficients))
	if err := tw.Flush(); err != nil {
		return nil, err
	}
	fmt.Fprintln(w)

	return report, nil
}

// RunOptimization grid-searches the sine bowl on [-10, 10]² at steps 5 and
// 0.1, refines the fine minimum, and solves the investor problem.
func RunOptimization(w io.Writer, opts Options) (*OptimizationReport, error) {
	logger := opts.logger()
	bounds := optimization.Bounds{{-10, 10}, {-10, 10}}
	report := &OptimizationReport{}

	fmt.Fprintln(w, "== Optimization: sin(x) + 0.05x^2 + sin(y) + 0.05y^2")

	coarseObjective := optimization.Objective(functions.SineBowl)
	if opts.Trace {
		coarseObjective = functions.SineBowlTraced(w)
	}
	coarse, err := grid.Search(coarseObjective, bounds, 5, &grid.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	report.Coarse = coarse

	fine, err := grid.Search(functions.SineBowl, bounds, 0.1, &grid.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	report.Fine = fine

	refined, err := sqp.Minimize(sqp.Problem{Func: functions.SineBowl}, fine.Parameters, &sqp.Settings{Logger: logger})
	if err != nil {
		return nil, err
	}
	report.Refined = refined

	investor, err := sqp.Minimize(sqp.Problem{
		Func:        functions.InvestorUtility,
		Constraints: []sqp.Constraint{{Kind: sqp.Inequality, Func: functions.Budget}},
		Bounds:      functions.InvestorBounds(),
	}, []float64{5, 5}, &sqp.Settings{Logger: logger})
	if err != nil {
		return nil, err
	}
	report.Investor = investor
	report.Spent = 10*investor.Parameters[0] + 10*investor.Parameters[1]
	report.Utility = -investor.Value

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "stage\tx\tf(x)\tevaluations\tstatus")
	for _, row := range []struct {
		name string
		res  *optimization.Result
	}{
		{"grid step 5", coarse},
		{"grid step 0.1", fine},
		{"refined", refined},
		{"investor", investor},
	} {
		fmt.Fprintf(tw, "%s\t%s\t%.6f\t%d\t%s\n", row.name, formatFloats(row.res.Parameters),
			row.res.Value, row.res.Evaluations, row.res.Message)
	}
	if err := tw.Flush(); err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "investor spends %.6f of 100, expected utility %.6f\n\n", report.Spent, report.Utility)

	return report, nil
}

// RunIntegration integrates sin(x) + 0.5x over [0.5, 9.5] with every method,
// Monte Carlo at 10, 20, ..., 190 samples.
func RunIntegration(w io.Writer, opts Options) (*IntegrationReport, error) {
	const a, b = 0.5, 9.5
	iopts := &integral.Options{Logger: opts.logger()}
	report := &IntegrationReport{A: a, B: b}

	var err error
	if report.Fixed, err = integral.Fixed(functions.SinLinear, a, b, integral.DefaultFixedOrder); err != nil {
		return nil, err
	}
	if report.Adaptive, err = integral.Adaptive(functions.SinLinear, a, b, 0, iopts); err != nil {
		return nil, err
	}
	if report.Romberg, err = integral.Romberg(functions.SinLinear, a, b, iopts); err != nil {
		return nil, err
	}

	for i := 1; i < 20; i++ {
		report.Counts = append(report.Counts, i*10)
	}
	monteCarlo := integral.MonteCarlo
	if opts.Reseed {
		monteCarlo = integral.MonteCarloReseeded
	}
	if report.MonteCarlo, err = monteCarlo(functions.SinLinear, a, b, report.Counts, opts.Seed); err != nil {
		return nil, err
	}

	fmt.Fprintf(w, "== Integration: sin(x) + 0.5x over [%g, %g]\n", a, b)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "method\tvalue\tabs error")
	fmt.Fprintf(tw, "fixed (order %d)\t%.10f\t\n", integral.DefaultFixedOrder, report.Fixed)
	fmt.Fprintf(tw, "adaptive\t%.10f\t%.2e\n", report.Adaptive.Value, report.Adaptive.AbsError)
	fmt.Fprintf(tw, "romberg\t%.10f\t%.2e\n", report.Romberg.Value, report.Romberg.AbsError)
	if err := tw.Flush(); err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "monte carlo (seed %d):\n", opts.Seed)
	for i, v := range report.MonteCarlo {
		fmt.Fprintf(w, "%4d %.10f\n", report.Counts[i], v)
	}

	return report, nil
}

func formatFloats(v []float64) string {
	s := "["
	for i, x := range v {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%.5g", x)
	}
	return s + "]"
}
