package integral

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/integrate"
)

const (
	rombergTolerance = 1.48e-8
	// MaxRombergDivisions bounds the number of interval doublings.
	MaxRombergDivisions = 10
)

// Romberg integrates f over [a, b] by Romberg extrapolation on 2^k+1 equally
// spaced samples, doubling k until two successive levels agree within 1.48e-8
// absolutely or relatively, or MaxRombergDivisions is reached. Samples from
// the previous level are reused.
func Romberg(f Func, a, b float64, opts *Options) (Estimate, error) {
	const op = "Romberg"
	if err := checkInterval(f, a, b, op); err != nil {
		return Estimate{}, err
	}
	if a == b {
		return Estimate{Converged: true}, nil
	}
	logger := opts.logger()

	samples := []float64{f(a), f(0.5 * (a + b)), f(b)}
	evals := 3
	prev := integrate.Romberg(samples, 0.5*(b-a))
	diff := math.Inf(1)

	for k := 2; k <= MaxRombergDivisions; k++ {
		n := 1 << k
		dx := (b - a) / float64(n)

		next := make([]float64, n+1)
		for i := range next {
			if i%2 == 0 {
				next[i] = samples[i/2]
				continue
			}
			next[i] = f(a + float64(i)*dx)
			evals++
		}
		samples = next

		cur := integrate.Romberg(samples, dx)
		diff = math.Abs(cur - prev)
		if diff <= rombergTolerance || diff <= rombergTolerance*math.Abs(cur) {
			return Estimate{Value: cur, AbsError: diff, Evaluations: evals, Converged: true}, nil
		}
		prev = cur
	}

	logger.Warn("romberg reached the division ceiling", zap.Int("divisions", MaxRombergDivisions))
	return Estimate{Value: prev, AbsError: diff, Evaluations: evals}, nil
}
