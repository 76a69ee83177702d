// Package metrics exposes Prometheus collectors for function evaluations,
// numeric operation latency and HTTP requests.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mathtools"

// Outcome labels for ObserveOperation.
const (
	OutcomeSuccess    = "success"
	OutcomeNoConverge = "not_converged"
	OutcomeError      = "error"
)

// Recorder holds the collectors. A nil *Recorder records nothing.
type Recorder struct {
	evaluations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	requests    *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "function_evaluations_total",
			Help:      "Objective and integrand evaluations by operation.",
		}, []string{"operation"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of numeric operations by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"operation", "outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
	}
	reg.MustRegister(r.evaluations, r.duration, r.requests)
	return r
}

// CountScalar wraps f so every call is counted under operation.
func (r *Recorder) CountScalar(operation string, f func(float64) float64) func(float64) float64 {
	if r == nil {
		return f
	}
	c := r.evaluations.WithLabelValues(operation)
	return func(x float64) float64 {
		c.Inc()
		return f(x)
	}
}

// CountVector wraps an objective of a parameter vector.
func (r *Recorder) CountVector(operation string, f func([]float64) float64) func([]float64) float64 {
	if r == nil {
		return f
	}
	c := r.evaluations.WithLabelValues(operation)
	return func(x []float64) float64 {
		c.Inc()
		return f(x)
	}
}

// ObserveOperation records how long operation took since start.
func (r *Recorder) ObserveOperation(operation, outcome string, start time.Time) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

// ObserveRequest counts one HTTP request. It satisfies
// logging.RequestObserver.
func (r *Recorder) ObserveRequest(method string, status int, _ time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
