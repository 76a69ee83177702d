package grid

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/copyleftdev/mathtools/internal/errors"
	"github.com/copyleftdev/mathtools/internal/optimization"
)

func sineBowl(p []float64) float64 {
	x, y := p[0], p[1]
	return math.Sin(x) + 0.05*x*x + math.Sin(y) + 0.05*y*y
}

func TestPoints(t *testing.T) {
	tests := []struct {
		name string
		low  float64
		high float64
		step float64
		want []float64
	}{
		{name: "quarters", low: 0, high: 1, step: 0.25, want: []float64{0, 0.25, 0.5, 0.75, 1}},
		{name: "coarse notebook grid", low: -10, high: 10, step: 5, want: []float64{-10, -5, 0, 5, 10}},
		{name: "high not on grid", low: 0, high: 1, step: 0.4, want: []float64{0, 0.4, 0.8}},
		{name: "single point", low: 2, high: 2, step: 0.5, want: []float64{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Points(tt.low, tt.high, tt.step)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}

	fine, err := Points(-10, 10, 0.1)
	require.NoError(t, err)
	assert.Len(t, fine, 201)
	assert.InDelta(t, 10, fine[200], 1e-9)
}

func TestPointsErrors(t *testing.T) {
	tests := []struct {
		name string
		low  float64
		high float64
		step float64
	}{
		{name: "zero step", low: 0, high: 1, step: 0},
		{name: "negative step", low: 0, high: 1, step: -0.1},
		{name: "reversed", low: 1, high: 0, step: 0.1},
		{name: "nan bound", low: math.NaN(), high: 1, step: 0.1},
		{name: "infinite bound", low: 0, high: math.Inf(1), step: 0.1},
		{name: "too many points", low: 0, high: 1e300, step: 1e-10},
		{name: "range overflows", low: -math.MaxFloat64, high: math.MaxFloat64, step: 1},
		{name: "one past axis limit", low: 0, high: MaxAxisPoints, step: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Points(tt.low, tt.high, tt.step)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidDomain), "got %v", err)
		})
	}
}

func TestSearchOneDimension(t *testing.T) {
	res, err := Search(func(x []float64) float64 { return (x[0] - 0.3) * (x[0] - 0.3) }, optimization.Bounds{{-1, 1}}, 0.1, nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 21, res.Evaluations)
	require.Len(t, res.Parameters, 1)
	assert.InDelta(t, 0.3, res.Parameters[0], 1e-9)
}

func TestSearchConvexBowlBound(t *testing.T) {
	// Every grid cell is within step/2 of the minimum in each coordinate, so
	// for this bowl the grid minimum is at most 2*(step/2)^2.
	const step = 0.1
	bowl := func(p []float64) float64 {
		dx, dy := p[0]-1.23, p[1]+0.77
		return dx*dx + dy*dy
	}

	res, err := Search(bowl, optimization.Bounds{{-3, 3}, {-3, 3}}, step, nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Value, 2*(step/2)*(step/2)+1e-12)
	assert.InDelta(t, 1.23, res.Parameters[0], step/2+1e-9)
	assert.InDelta(t, -0.77, res.Parameters[1], step/2+1e-9)
}

func TestSearchRowMajorOrderAndTieBreak(t *testing.T) {
	var visited [][]float64
	opts := &Options{Trace: func(x []float64, _ float64) {
		visited = append(visited, x)
	}}

	res, err := Search(func([]float64) float64 { return 1 }, optimization.Bounds{{0, 1}, {0, 1}}, 1, opts)
	require.NoError(t, err)

	assert.Equal(t, [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}, visited)
	assert.Equal(t, []float64{0, 0}, res.Parameters, "first minimum wins on ties")

	// Two equal minima; the one enumerated first is kept.
	twoWells := func(p []float64) float64 {
		if (p[0] == 1 && p[1] == 0) || (p[0] == 0 && p[1] == 1) {
			return -1
		}
		return 0
	}
	res, err = Search(twoWells, optimization.Bounds{{0, 1}, {0, 1}}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, res.Parameters)
}

func TestSearchSkipsNaN(t *testing.T) {
	f := func(p []float64) float64 {
		if p[0] < 0 {
			return math.NaN()
		}
		return p[0]
	}
	res, err := Search(f, optimization.Bounds{{-2, 2}}, 1, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []float64{0}, res.Parameters)

	res, err = Search(func([]float64) float64 { return math.NaN() }, optimization.Bounds{{0, 1}}, 0.5, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Nil(t, res.Parameters)
	assert.Equal(t, 3, res.Evaluations)
}

func TestSearchNotebookSineBowl(t *testing.T) {
	var coarse int
	res, err := Search(sineBowl, optimization.Bounds{{-10, 10}, {-10, 10}}, 5, &Options{
		Trace: func([]float64, float64) { coarse++ },
	})
	require.NoError(t, err)
	assert.Equal(t, 25, coarse)
	assert.Equal(t, 25, res.Evaluations)

	res, err = Search(sineBowl, optimization.Bounds{{-10, 10}, {-10, 10}}, 0.1, nil)
	require.NoError(t, err)
	assert.Equal(t, 201*201, res.Evaluations)
	assert.InDelta(t, -1.4, res.Parameters[0], 1e-9)
	assert.InDelta(t, -1.4, res.Parameters[1], 1e-9)
	assert.InDelta(t, -1.7749, res.Value, 1e-4)
}

func TestSearchErrors(t *testing.T) {
	square := func(x []float64) float64 { return x[0] * x[0] }

	_, err := Search(nil, optimization.Bounds{{0, 1}}, 0.1, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidArgument))

	_, err = Search(square, nil, 0.1, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidDomain))

	_, err = Search(square, optimization.Bounds{{0, 1}}, 0, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidDomain))

	_, err = Search(square, optimization.Bounds{{1, 0}}, 0.1, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidDomain))

	_, err = SearchSteps(square, optimization.Bounds{{0, 1}}, []float64{0.1, 0.1}, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidDomain))

	_, err = Search(square, optimization.Bounds{{0, 1}, {0, 1}}, 0.001, &Options{MaxPoints: 10000})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidDomain))
}

func TestSearchRejectsOversizedGridBeforeAllocating(t *testing.T) {
	var calls int
	count := func([]float64) float64 { calls++; return 0 }

	tests := []struct {
		name   string
		bounds optimization.Bounds
		step   float64
		opts   *Options
	}{
		{name: "tiny step under cap", bounds: optimization.Bounds{{0, 1}}, step: 1e-15, opts: &Options{MaxPoints: 1000000}},
		{name: "tiny step without cap", bounds: optimization.Bounds{{0, 1}}, step: 1e-15, opts: nil},
		{name: "axis over cap", bounds: optimization.Bounds{{0, 1}}, step: 1e-7, opts: &Options{MaxPoints: 1000000}},
		{name: "product over cap", bounds: optimization.Bounds{{0, 1}, {0, 1}, {0, 1}}, step: 0.001, opts: &Options{MaxPoints: 1000000}},
		{name: "product overflows int", bounds: optimization.Bounds{{0, 1e9}, {0, 1e9}, {0, 1e9}}, step: 1, opts: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res *optimization.Result
			var err error
			require.NotPanics(t, func() {
				res, err = Search(count, tt.bounds, tt.step, tt.opts)
			})
			assert.Nil(t, res)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidDomain), "got %v", err)
		})
	}
	assert.Zero(t, calls)

	res, err := Search(count, optimization.Bounds{{0, 999}, {0, 999}}, 1, &Options{MaxPoints: 1000000})
	require.NoError(t, err)
	assert.Equal(t, 1000000, res.Evaluations, "a grid of exactly MaxPoints is allowed")
}

func TestSearchStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	f := func([]float64) float64 {
		calls++
		if calls == 10 {
			cancel()
		}
		return 0
	}

	res, err := Search(f, optimization.Bounds{{0, 1}, {0, 1}}, 0.001, &Options{Context: ctx})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, cancelCheckInterval, calls)
}
