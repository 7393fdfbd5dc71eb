package optimization

import "time"

// Recorder receives run telemetry. internal/metrics provides a Prometheus
// implementation.
type Recorder interface {
	// ObserveEvaluation is called once per evaluator invocation.
	ObserveEvaluation(algorithm string, d time.Duration, err error)
	// ObserveRetry is called before each backoff wait.
	ObserveRetry(algorithm string)
	// ObserveCacheHit is called when a request is served without a new trial.
	ObserveCacheHit(algorithm string)
	// ObserveTrial is called once per new trial.
	ObserveTrial(algorithm string, t Trial)
	// ObserveBest is called when the run's best score improves.
	ObserveBest(algorithm string, score float64)
	// ObserveSurrogateFallback is called when a surrogate step falls back
	// to random sampling.
	ObserveSurrogateFallback(algorithm string)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) ObserveEvaluation(string, time.Duration, error) {}
func (NopRecorder) ObserveRetry(string)                           {}
func (NopRecorder) ObserveCacheHit(string)                        {}
func (NopRecorder) ObserveTrial(string, Trial)                    {}
func (NopRecorder) ObserveBest(string, float64)                   {}
func (NopRecorder) ObserveSurrogateFallback(string)               {}
