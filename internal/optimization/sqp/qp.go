package sqp

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	qpMaxSweeps = 5000
	qpDiverged  = 1e12
	qpTiny      = 1e-14
	qpFeasTol   = 1e-7
)

var errIncompatible = errors.New("linearized constraints are incompatible")

// linearization is the first-order model of every constraint at a point:
// rows[i]·d + vals[i] >= 0, or == 0 when eq[i].
type linearization struct {
	rows [][]float64
	vals []float64
	eq   []bool
}

// violation is the L1 norm of the constraint violation at the point itself.
func (l *linearization) violation() float64 {
	return violation(l.vals, l.eq)
}

func violation(vals []float64, eq []bool) float64 {
	var v float64
	for i, c := range vals {
		if eq[i] {
			v += math.Abs(c)
		} else if c < 0 {
			v -= c
		}
	}
	return v
}

// lagrangianGradient returns g - sum(lambda[i] * rows[i]).
func (l *linearization) lagrangianGradient(g, lambda []float64) []float64 {
	out := append([]float64(nil), g...)
	for i, row := range l.rows {
		if i < len(lambda) && lambda[i] != 0 {
			floats.AddScaled(out, -lambda[i], row)
		}
	}
	return out
}

// solveQP minimizes 0.5 d'Bd + g'd subject to the linearized constraints,
// with h = inverse(B). It works on the dual
//
//	min 0.5 λ'Qλ + λ'q,  Q = A H A',  q = c - A H g,  λ_i >= 0 for inequalities,
//
// by cyclic coordinate descent, then recovers d = H(A'λ - g). A step that
// does not satisfy the linearization afterwards means the constraints have
// no common feasible step.
func solveQP(h *mat.SymDense, g []float64, lin *linearization) (d, lambda []float64, err error) {
	n := len(g)

	var hg mat.VecDense
	hg.MulVec(h, mat.NewVecDense(n, append([]float64(nil), g...)))

	d = make([]float64, n)
	m := len(lin.rows)
	if m == 0 {
		for j := range d {
			d[j] = -hg.AtVec(j)
		}
		return d, nil, nil
	}

	w := make([][]float64, m)
	for i, row := range lin.rows {
		var wi mat.VecDense
		wi.MulVec(h, mat.NewVecDense(n, append([]float64(nil), row...)))
		w[i] = make([]float64, n)
		for j := range w[i] {
			w[i][j] = wi.AtVec(j)
		}
	}

	q := make([]float64, m)
	Q := make([][]float64, m)
	hgRaw := hg.RawVector().Data
	for i, row := range lin.rows {
		Q[i] = make([]float64, m)
		for j := range lin.rows {
			Q[i][j] = floats.Dot(row, w[j])
		}
		q[i] = lin.vals[i] - floats.Dot(row, hgRaw)
	}

	lambda = make([]float64, m)
	for sweep := 0; sweep < qpMaxSweeps; sweep++ {
		var change, scale float64
		for i := 0; i < m; i++ {
			if Q[i][i] <= qpTiny {
				continue
			}
			r := q[i] + floats.Dot(Q[i], lambda)
			v := lambda[i] - r/Q[i][i]
			if !lin.eq[i] && v < 0 {
				v = 0
			}
			change = math.Max(change, math.Abs(v-lambda[i]))
			lambda[i] = v
			scale = math.Max(scale, math.Abs(v))
		}
		if scale > qpDiverged || math.IsNaN(scale) {
			return nil, nil, errIncompatible
		}
		if change <= 1e-15*(1+scale) {
			break
		}
	}

	for j := range d {
		d[j] = -hg.AtVec(j)
	}
	for i := range lin.rows {
		if lambda[i] != 0 {
			floats.AddScaled(d, lambda[i], w[i])
		}
	}

	for i, row := range lin.rows {
		r := floats.Dot(row, d) + lin.vals[i]
		tol := qpFeasTol * (1 + math.Abs(lin.vals[i]))
		if math.IsNaN(r) || (lin.eq[i] && math.Abs(r) > tol) || (!lin.eq[i] && r < -tol) {
			return nil, nil, errIncompatible
		}
	}

	return d, lambda, nil
}
