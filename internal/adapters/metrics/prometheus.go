// Package metrics expone las métricas Prometheus del motor de pools.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implementa ports.Metrics sobre un registry propio.
type Recorder struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	operations      *prometheus.CounterVec
	operationTime   *prometheus.HistogramVec
	voteToggles     *prometheus.CounterVec
	phaseChanges    *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpRequestTime *prometheus.HistogramVec
}

// Option configura un Recorder.
type Option func(*Recorder)

// WithNamespace fija el namespace de todas las métricas.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithHistogramBuckets fija los buckets de latencia (segundos).
func WithHistogramBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = buckets
		}
	}
}

// WithRegistry usa un registry dado en lugar de uno nuevo.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(r *Recorder) {
		if registry != nil {
			r.registry = registry
		}
	}
}

// New crea un Recorder y registra sus métricas.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "accapool",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}

	auto := promauto.With(r.registry)
	r.operations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "engine",
		Name:      "operations_total",
		Help:      "Pool engine operations by result",
	}, []string{"op", "result"})

	r.operationTime = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: "engine",
		Name:      "operation_duration_seconds",
		Help:      "Pool engine operation latency",
		Buckets:   r.buckets,
	}, []string{"op"})

	r.voteToggles = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "engine",
		Name:      "vote_toggles_total",
		Help:      "Votes cast and retracted",
	}, []string{"action"})

	r.phaseChanges = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "engine",
		Name:      "phase_transitions_total",
		Help:      "Pool phase transitions",
	}, []string{"from", "to"})

	r.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	r.httpRequestTime = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   r.buckets,
	}, []string{"route", "method"})

	return r
}

// ObserveOperation cuenta la operación por resultado y registra su latencia.
func (r *Recorder) ObserveOperation(op string, err error, elapsed time.Duration) {
	r.operations.WithLabelValues(op, ResultLabel(err)).Inc()
	r.operationTime.WithLabelValues(op).Observe(elapsed.Seconds())
}

// VoteToggled cuenta un voto emitido o retirado.
func (r *Recorder) VoteToggled(voted bool) {
	action := "retract"
	if voted {
		action = "cast"
	}
	r.voteToggles.WithLabelValues(action).Inc()
}

// PhaseChanged cuenta una transición de fase.
func (r *Recorder) PhaseChanged(from, to string) {
	r.phaseChanges.WithLabelValues(from, to).Inc()
}

// ObserveHTTP registra un request HTTP. route es el patrón, no el path concreto.
func (r *Recorder) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpRequestTime.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Registry devuelve el registry (tests).
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler sirve /metrics para este registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ResultLabel reduce un error a una etiqueta de cardinalidad fija.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrPhaseViolation):
		return "phase_violation"
	case errors.Is(err, domain.ErrIncompleteSubmission):
		return "incomplete_submission"
	case errors.Is(err, domain.ErrSelfVoteRejected):
		return "self_vote"
	case errors.Is(err, domain.ErrInsufficientSubmissions):
		return "insufficient_submissions"
	case errors.Is(err, domain.ErrPoolNotFound), errors.Is(err, domain.ErrSubmissionNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidOutcome), errors.Is(err, domain.ErrInvalidPool):
		return "invalid_input"
	case errors.Is(err, domain.ErrInvariantViolation):
		return "invariant_violation"
	}
	return "error"
}
