package integral

import (
	"container/heap"
	"math"

	"go.uber.org/zap"
)

const (
	// DefaultTolerance is used by Adaptive when tol <= 0.
	DefaultTolerance = 1.49e-8
	// MaxSubintervals bounds the bisection in Adaptive.
	MaxSubintervals = 50
)

// Kronrod 15-point nodes on [-1, 1], non-negative half, and their weights.
// Odd indices are the 7-point Gauss nodes.
var (
	xgk = [8]float64{
		0.991455371120812639206854697526329,
		0.949107912342758524526189684047851,
		0.864864423359769072789712788640926,
		0.741531185599394439863864773280788,
		0.586087235467691130294144845693013,
		0.405845151377397166906606412076961,
		0.207784955007898467600689403773245,
		0,
	}
	wgk = [8]float64{
		0.022935322010529224963732008058970,
		0.063092092629978553290700663189204,
		0.104790010322250183839876322541518,
		0.140653259715525918745189590510238,
		0.169004726639267902826583426598550,
		0.190350578064785409913256402421014,
		0.204432940075298892414161999234649,
		0.209482141084727828012999174891714,
	}
	wg = [4]float64{
		0.129484966168869693270611432679082,
		0.279705391489276667901467771423780,
		0.381830050505118944950369775488975,
		0.417959183673469387755102040816327,
	}
)

type segment struct {
	a, b   float64
	value  float64
	abserr float64
}

// gk15 applies the Gauss-Kronrod 7/15 pair to [a, b]. The error estimate is
// the difference between the two rules.
func gk15(f Func, a, b float64) segment {
	center := 0.5 * (a + b)
	half := 0.5 * (b - a)

	fc := f(center)
	kronrod := fc * wgk[7]
	gauss := fc * wg[3]
	for j := 0; j < 7; j++ {
		dx := half * xgk[j]
		sum := f(center-dx) + f(center+dx)
		kronrod += wgk[j] * sum
		if j%2 == 1 {
			gauss += wg[j/2] * sum
		}
	}

	return segment{
		a:      a,
		b:      b,
		value:  kronrod * half,
		abserr: math.Abs((kronrod - gauss) * half),
	}
}

// segments is a max-heap on abserr.
type segments []segment

func (s segments) Len() int            { return len(s) }
func (s segments) Less(i, j int) bool  { return s[i].abserr > s[j].abserr }
func (s segments) Swap(i, j int)       { s[i], s[j] = s[j], s[i] }
func (s *segments) Push(x interface{}) { *s = append(*s, x.(segment)) }
func (s *segments) Pop() interface{} {
	old := *s
	n := len(old)
	x := old[n-1]
	*s = old[:n-1]
	return x
}

// total re-sums the heap with Neumaier compensation, discarding the drift of
// the running estimates kept during bisection.
func (s segments) total() (value, abserr float64) {
	var vc, ec float64
	for _, seg := range s {
		value, vc = neumaier(value, vc, seg.value)
		abserr, ec = neumaier(abserr, ec, seg.abserr)
	}
	return value + vc, abserr + ec
}

func neumaier(sum, c, x float64) (float64, float64) {
	t := sum + x
	if math.Abs(sum) >= math.Abs(x) {
		c += (sum - t) + x
	} else {
		c += (x - t) + sum
	}
	return t, c
}

// Adaptive integrates f over [a, b] by global adaptive Gauss-Kronrod
// quadrature: the subinterval with the largest error estimate is bisected
// until the total estimate is within max(tol, tol*|value|) or
// MaxSubintervals is reached.
func Adaptive(f Func, a, b, tol float64, opts *Options) (Estimate, error) {
	const op = "Adaptive"
	if err := checkInterval(f, a, b, op); err != nil {
		return Estimate{}, err
	}
	if a == b {
		return Estimate{Converged: true}, nil
	}
	if tol <= 0 || math.IsNaN(tol) {
		tol = DefaultTolerance
	}
	logger := opts.logger()

	var evals int
	g := counted(f, &evals)

	h := &segments{gk15(g, a, b)}
	value, abserr := (*h)[0].value, (*h)[0].abserr

	for {
		if abserr <= math.Max(tol, tol*math.Abs(value)) {
			value, abserr = h.total()
			return Estimate{Value: value, AbsError: abserr, Evaluations: evals, Converged: true}, nil
		}
		if h.Len() >= MaxSubintervals {
			value, abserr = h.total()
			logger.Warn("adaptive quadrature hit the subinterval ceiling",
				zap.Int("subintervals", h.Len()),
				zap.Float64("abserr", abserr),
				zap.Float64("tolerance", tol),
			)
			return Estimate{Value: value, AbsError: abserr, Evaluations: evals}, nil
		}

		worst := heap.Pop(h).(segment)
		mid := 0.5 * (worst.a + worst.b)
		left, right := gk15(g, worst.a, mid), gk15(g, mid, worst.b)
		heap.Push(h, left)
		heap.Push(h, right)

		value += left.value + right.value - worst.value
		abserr += left.abserr + right.abserr - worst.abserr

		if math.IsNaN(value) {
			return Estimate{Value: value, AbsError: math.Inf(1), Evaluations: evals}, nil
		}
	}
}
