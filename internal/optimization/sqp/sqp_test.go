package sqp

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/copyleftdev/mathtools/internal/errors"
	"github.com/copyleftdev/mathtools/internal/optimization"
)

func sineBowl(p []float64) float64 {
	x, y := p[0], p[1]
	return math.Sin(x) + 0.05*x*x + math.Sin(y) + 0.05*y*y
}

func negativeUtility(p []float64) float64 {
	a, b := p[0], p[1]
	return -(0.5*math.Sqrt(15*a+5*b) + 0.5*math.Sqrt(5*a+12*b))
}

func budget(p []float64) float64 {
	return 100 - 10*p[0] - 10*p[1]
}

func TestMinimizeFixedPoint(t *testing.T) {
	bowl := func(p []float64) float64 {
		dx, dy := p[0]-1, p[1]-2
		return dx*dx + dy*dy
	}

	res, err := Minimize(Problem{Func: bowl}, []float64{1, 2}, nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, optimization.HasSolution, res.Status)
	assert.Equal(t, 1, res.Iterations)
	assert.InDelta(t, 1, res.Parameters[0], 1e-9)
	assert.InDelta(t, 2, res.Parameters[1], 1e-9)
	assert.InDelta(t, 0, res.Value, 1e-15)
}

func TestMinimizeCoupledQuadratic(t *testing.T) {
	f := func(p []float64) float64 {
		dx, dy := p[0]-3, p[1]+1
		return dx*dx + 10*dy*dy + dx*dy
	}

	res, err := Minimize(Problem{Func: f}, []float64{0, 0}, &Settings{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	assert.True(t, res.Success, res.Message)
	assert.InDelta(t, 3, res.Parameters[0], 1e-4)
	assert.InDelta(t, -1, res.Parameters[1], 1e-4)
	assert.Greater(t, res.Evaluations, res.Iterations)
}

func TestMinimizeAnalyticGradient(t *testing.T) {
	calls := 0
	res, err := Minimize(Problem{
		Func: func(p []float64) float64 { return (p[0] - 2) * (p[0] - 2) },
		Grad: func(g, p []float64) {
			calls++
			g[0] = 2 * (p[0] - 2)
		},
	}, []float64{-3}, nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.InDelta(t, 2, res.Parameters[0], 1e-6)
	assert.Positive(t, calls)
}

func TestRefineNotebookSineBowl(t *testing.T) {
	res, err := Refine(sineBowl, []float64{-1.4, -1.4}, nil, nil)
	require.NoError(t, err)

	assert.True(t, res.Success, res.Message)
	assert.InDelta(t, -1.42755, res.Parameters[0], 1e-4)
	assert.InDelta(t, -1.42755, res.Parameters[1], 1e-4)
	assert.InDelta(t, -1.7757, res.Value, 1e-4)
	assert.Less(t, res.Value, sineBowl([]float64{-1.4, -1.4}))
}

func TestRefineNotebookInvestor(t *testing.T) {
	// On the budget line b = 10 - a the optimum satisfies 100 u2 = 49 u1,
	// which gives a = 9550/1190.
	const wantA = 9550.0 / 1190.0

	res, err := Refine(negativeUtility, []float64{5, 5},
		[]Constraint{{Kind: Inequality, Func: budget}},
		optimization.Bounds{{0, 1000}, {0, 1000}},
	)
	require.NoError(t, err)

	require.True(t, res.Success, res.Message)
	assert.InDelta(t, wantA, res.Parameters[0], 1e-3)
	assert.InDelta(t, 10-wantA, res.Parameters[1], 1e-3)
	assert.InDelta(t, 9.700884, -res.Value, 1e-5)

	spent := 10*res.Parameters[0] + 10*res.Parameters[1]
	assert.InDelta(t, 100, spent, 1e-4)
	assert.GreaterOrEqual(t, budget(res.Parameters), -1e-6)

	// Budget multiplier first, then four bound rows, all inactive.
	require.Len(t, res.Multipliers, 5)
	assert.Positive(t, res.Multipliers[0])
	for _, l := range res.Multipliers[1:] {
		assert.InDelta(t, 0, l, 1e-8)
	}
}

func TestMinimizeEqualityConstraint(t *testing.T) {
	res, err := Minimize(Problem{
		Func: func(p []float64) float64 { return p[0]*p[0] + p[1]*p[1] },
		Constraints: []Constraint{{
			Kind: Equality,
			Func: func(p []float64) float64 { return p[0] + p[1] - 1 },
		}},
	}, []float64{2, -3}, nil)
	require.NoError(t, err)

	assert.True(t, res.Success, res.Message)
	assert.InDelta(t, 0.5, res.Parameters[0], 1e-6)
	assert.InDelta(t, 0.5, res.Parameters[1], 1e-6)
	require.Len(t, res.Multipliers, 1)
	assert.InDelta(t, 1, res.Multipliers[0], 1e-4)
}

func TestMinimizeActiveBound(t *testing.T) {
	res, err := Minimize(Problem{
		Func:   func(p []float64) float64 { return (p[0] - 5) * (p[0] - 5) },
		Bounds: optimization.Bounds{{0, 2}},
	}, []float64{1}, nil)
	require.NoError(t, err)

	assert.True(t, res.Success, res.Message)
	assert.InDelta(t, 2, res.Parameters[0], 1e-8)
	require.Len(t, res.Multipliers, 2)
	assert.InDelta(t, 0, res.Multipliers[0], 1e-8)
	assert.InDelta(t, 6, res.Multipliers[1], 1e-4)
}

func TestMinimizeClipsInitialGuess(t *testing.T) {
	var first []float64
	res, err := Minimize(Problem{
		Func: func(p []float64) float64 {
			if first == nil {
				first = append([]float64(nil), p...)
			}
			return p[0] * p[0]
		},
		Bounds: optimization.Bounds{{1, 3}},
	}, []float64{10}, nil)
	require.NoError(t, err)

	assert.Equal(t, []float64{3}, first)
	assert.True(t, res.Success, res.Message)
	assert.InDelta(t, 1, res.Parameters[0], 1e-8)
}

func TestMinimizeIncompatibleConstraints(t *testing.T) {
	res, err := Minimize(Problem{
		Func: func(p []float64) float64 { return p[0] * p[0] },
		Constraints: []Constraint{
			{Kind: Inequality, Func: func(p []float64) float64 { return p[0] - 1 }},
			{Kind: Inequality, Func: func(p []float64) float64 { return -p[0] }},
		},
	}, []float64{0.5}, nil)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, optimization.ConsIncompatible, res.Status)
	assert.Equal(t, optimization.ConsIncompatible.String(), res.Message)
}

func TestMinimizeIterationLimit(t *testing.T) {
	f := func(p []float64) float64 {
		dx, dy := p[0]-30, p[1]+10
		return dx*dx + 10*dy*dy + dx*dy
	}

	res, err := Minimize(Problem{Func: f}, []float64{0, 0}, &Settings{MaxIterations: 1})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, optimization.ExceedMaxIter, res.Status)
	assert.Equal(t, 1, res.Iterations)
	assert.Less(t, res.Value, f([]float64{0, 0}))
}

func TestMinimizeNonFiniteStart(t *testing.T) {
	res, err := Minimize(Problem{
		Func: func(p []float64) float64 { return math.Log(p[0]) },
	}, []float64{-1}, nil)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, optimization.NonFinite, res.Status)
}

func TestMinimizeErrors(t *testing.T) {
	square := func(p []float64) float64 { return p[0] * p[0] }

	tests := []struct {
		name    string
		problem Problem
		x0      []float64
		want    error
	}{
		{name: "nil objective", problem: Problem{}, x0: []float64{1}, want: apperrors.ErrInvalidArgument},
		{name: "empty guess", problem: Problem{Func: square}, x0: nil, want: apperrors.ErrInvalidDomain},
		{name: "nan guess", problem: Problem{Func: square}, x0: []float64{math.NaN()}, want: apperrors.ErrInvalidDomain},
		{name: "bounds length", problem: Problem{Func: square, Bounds: optimization.Bounds{{0, 1}, {0, 1}}}, x0: []float64{1}, want: apperrors.ErrInvalidDomain},
		{name: "reversed bounds", problem: Problem{Func: square, Bounds: optimization.Bounds{{1, 0}}}, x0: []float64{1}, want: apperrors.ErrInvalidDomain},
		{name: "nil constraint", problem: Problem{Func: square, Constraints: []Constraint{{}}}, x0: []float64{1}, want: apperrors.ErrInvalidArgument},
		{name: "unknown kind", problem: Problem{Func: square, Constraints: []Constraint{{Kind: 7, Func: square}}}, x0: []float64{1}, want: apperrors.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Minimize(tt.problem, tt.x0, nil)
			assert.Nil(t, res)
			assert.True(t, apperrors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestUpdateBFGSKeepsPositiveDefinite(t *testing.T) {
	b := identity(2)
	// Negative curvature along s triggers damping.
	updateBFGS(b, []float64{1, 0}, []float64{-1, 0})

	_, ok := inverse(b)
	assert.True(t, ok)
	assert.Greater(t, b.At(0, 0), 0.0)
}

func TestConstraintKindString(t *testing.T) {
	assert.Equal(t, "ineq", Inequality.String())
	assert.Equal(t, "eq", Equality.String())
}

func TestMinimizeStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	bowl := func(p []float64) float64 {
		calls++
		return p[0] * p[0]
	}

	res, err := Minimize(Problem{Func: bowl}, []float64{3}, &Settings{Context: ctx})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Positive(t, calls, "the starting point is still evaluated")

	res, err = Minimize(Problem{Func: bowl}, []float64{3}, &Settings{Context: context.Background()})
	require.NoError(t, err)
	assert.True(t, res.Success)
}
