package integral

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "github.com/copyleftdev/mathtools/internal/errors"
)

// MaxMonteCarloSamples is the largest single count MonteCarlo accepts.
const MaxMonteCarloSamples = math.MaxInt32

// MonteCarlo estimates the integral of f over [a, b] once per entry of
// counts, each from counts[i] fresh uniform samples: mean(f) * (b - a). The
// generator is seeded once per call, so the result depends only on the
// arguments. Counts must be positive and non-decreasing.
func MonteCarlo(f Func, a, b float64, counts []int, seed uint64) ([]float64, error) {
	if err := checkMonteCarlo(f, a, b, counts, "MonteCarlo"); err != nil {
		return nil, err
	}
	src := rand.NewPCG(seed, 0)
	return monteCarlo(f, a, b, counts, func() *rand.PCG { return src }), nil
}

// MonteCarloReseeded is MonteCarlo with the generator reset to seed before
// every count, so each draw starts with the same points as the previous,
// shorter one. It reproduces the notebook's printed sequence.
func MonteCarloReseeded(f Func, a, b float64, counts []int, seed uint64) ([]float64, error) {
	if err := checkMonteCarlo(f, a, b, counts, "MonteCarloReseeded"); err != nil {
		return nil, err
	}
	return monteCarlo(f, a, b, counts, func() *rand.PCG { return rand.NewPCG(seed, 0) }), nil
}

func checkMonteCarlo(f Func, a, b float64, counts []int, op string) error {
	if err := checkInterval(f, a, b, op); err != nil {
		return err
	}
	prev := 0
	for i, n := range counts {
		if n < 1 || n > MaxMonteCarloSamples {
			return apperrors.Errorf(apperrors.InvalidArgument, "count %d must be in [1, %d], got %d", i, MaxMonteCarloSamples, n).
				WithComponent(component).WithOperation(op)
		}
		if n < prev {
			return apperrors.Errorf(apperrors.InvalidArgument, "counts must be non-decreasing: %d after %d", n, prev).
				WithComponent(component).WithOperation(op)
		}
		prev = n
	}
	return nil
}

func monteCarlo(f Func, a, b float64, counts []int, source func() *rand.PCG) []float64 {
	estimates := make([]float64, len(counts))
	if a == b {
		return estimates
	}
	for i, n := range counts {
		u := distuv.Uniform{Min: a, Max: b, Src: source()}
		values := make([]float64, n)
		for j := range values {
			values[j] = f(u.Rand())
		}
		estimates[i] = stat.Mean(values, nil) * (b - a)
	}
	return estimates
}
