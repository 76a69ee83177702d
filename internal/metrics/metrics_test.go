package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountWrappers(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	square := r.CountScalar("integrate", func(x float64) float64 { return x * x })
	for i := 0; i < 3; i++ {
		assert.Equal(t, 4.0, square(2))
	}
	sum := r.CountVector("grid", func(x []float64) float64 { return x[0] + x[1] })
	assert.Equal(t, 3.0, sum([]float64{1, 2}))

	assert.Equal(t, 3.0, testutil.ToFloat64(r.evaluations.WithLabelValues("integrate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.evaluations.WithLabelValues("grid")))
}

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveOperation("refine", OutcomeSuccess, time.Now())
	r.ObserveOperation("refine", OutcomeNoConverge, time.Now())
	r.ObserveRequest("POST", 200, time.Millisecond)
	r.ObserveRequest("POST", 200, time.Millisecond)
	r.ObserveRequest("GET", 404, time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(r.duration))

	expected := `
# HELP mathtools_http_requests_total HTTP requests by method and status code.
# TYPE mathtools_http_requests_total counter
mathtools_http_requests_total{method="GET",status="404"} 1
mathtools_http_requests_total{method="POST",status="200"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mathtools_http_requests_total"))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	f := r.CountScalar("x", func(x float64) float64 { return x })
	assert.Equal(t, 1.5, f(1.5))
	g := r.CountVector("x", func(x []float64) float64 { return x[0] })
	assert.Equal(t, 2.0, g([]float64{2}))
	r.ObserveOperation("x", OutcomeError, time.Now())
	r.ObserveRequest("GET", 200, 0)
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)
	assert.Panics(t, func() { NewRecorder(reg) })
}
