// Package metrics exports optimization run telemetry to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/copyleftdev/promptsearch/internal/optimization"
)

const namespace = "promptsearch"

// Outcome labels for evaluator invocations.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Recorder implements optimization.Recorder with Prometheus collectors.
type Recorder struct {
	registry *prometheus.Registry

	evaluations       *prometheus.CounterVec
	evaluationSeconds *prometheus.HistogramVec
	retries           *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	trials            *prometheus.CounterVec
	bestScore         *prometheus.GaugeVec
	fallbacks         *prometheus.CounterVec
}

var _ optimization.Recorder = (*Recorder)(nil)

// New creates a recorder registered on its own registry, together with the
// Go runtime and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluator invocations, retries included.",
		}, []string{"algorithm", "outcome"}),
		evaluationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Latency of single evaluator invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"algorithm"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_retries_total",
			Help:      "Evaluator retries after a failed attempt.",
		}, []string{"algorithm"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Candidate requests served from the evaluation cache.",
		}, []string{"algorithm"}),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_total",
			Help:      "Resolved trials by outcome.",
		}, []string{"algorithm", "outcome"}),
		bestScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_score",
			Help:      "Best score of the most recent run per algorithm.",
		}, []string{"algorithm"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surrogate_fallbacks_total",
			Help:      "Surrogate steps that fell back to random sampling.",
		}, []string{"algorithm"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.evaluations,
		r.evaluationSeconds,
		r.retries,
		r.cacheHits,
		r.trials,
		r.bestScore,
		r.fallbacks,
	)
	return r
}

// Registry returns the registry the collectors live on.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveEvaluation(algorithm string, d time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	r.evaluations.WithLabelValues(algorithm, outcome).Inc()
	r.evaluationSeconds.WithLabelValues(algorithm).Observe(d.Seconds())
}

func (r *Recorder) ObserveRetry(algorithm string) {
	r.retries.WithLabelValues(algorithm).Inc()
}

func (r *Recorder) ObserveCacheHit(algorithm string) {
	r.cacheHits.WithLabelValues(algorithm).Inc()
}

func (r *Recorder) ObserveTrial(algorithm string, t optimization.Trial) {
	outcome := OutcomeSuccess
	if t.Failed {
		outcome = OutcomeError
	}
	r.trials.WithLabelValues(algorithm, outcome).Inc()
}

func (r *Recorder) ObserveBest(algorithm string, score float64) {
	r.bestScore.WithLabelValues(algorithm).Set(score)
}

func (r *Recorder) ObserveSurrogateFallback(algorithm string) {
	r.fallbacks.WithLabelValues(algorithm).Inc()
}
