package optimization

import (
	"encoding/json"
	"time"
)

// NoGeneration marks a trial that was not produced by a generational strategy.
const NoGeneration = -1

// Trial is a candidate plus its resolved evaluation outcome and its position
// in the run history. Trials are created by the Cache and never modified.
type Trial struct {
	Candidate Candidate
	// Score is meaningful only when Failed is false.
	Score float64
	// Iteration is the zero-based position in the run history, which
	// follows request order. Trials passed to OnTrial carry the slot the
	// candidate claimed, which can run ahead of the history position when
	// an earlier slot was cut off by the budget.
	Iteration int
	// Generation is the GA generation that first requested the candidate,
	// or NoGeneration.
	Generation int
	// Failed is set when the evaluator kept failing after all retries.
	Failed bool
	// Err is the last evaluator error message for failed trials.
	Err string
	// Attempts is the number of evaluator invocations made for this trial.
	Attempts int
	// Duration is the wall time spent resolving the trial, backoff included.
	Duration time.Duration
}

// Value returns the score and true for successful trials.
func (t Trial) Value() (float64, bool) {
	if t.Failed {
		return 0, false
	}
	return t.Score, true
}

// HasGeneration reports whether the trial belongs to a generation.
func (t Trial) HasGeneration() bool { return t.Generation != NoGeneration }

type trialJSON struct {
	Candidate  Candidate `json:"candidate"`
	Score      *float64  `json:"score"`
	Iteration  int       `json:"iteration"`
	Generation *int      `json:"generation"`
	Failed     bool      `json:"failed"`
	Err        string    `json:"error,omitempty"`
	Attempts   int       `json:"attempts"`
	DurationMS float64   `json:"duration_ms"`
}

// MarshalJSON encodes Score and Generation as null when absent.
func (t Trial) MarshalJSON() ([]byte, error) {
	out := trialJSON{
		Candidate:  t.Candidate,
		Iteration:  t.Iteration,
		Failed:     t.Failed,
		Err:        t.Err,
		Attempts:   t.Attempts,
		DurationMS: float64(t.Duration.Microseconds()) / 1000.0,
	}
	if !t.Failed {
		score := t.Score
		out.Score = &score
	}
	if t.HasGeneration() {
		gen := t.Generation
		out.Generation = &gen
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Trial) UnmarshalJSON(data []byte) error {
	var raw trialJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Trial{
		Candidate:  raw.Candidate,
		Iteration:  raw.Iteration,
		Generation: NoGeneration,
		Failed:     raw.Failed,
		Err:        raw.Err,
		Attempts:   raw.Attempts,
		Duration:   time.Duration(raw.DurationMS * float64(time.Millisecond)),
	}
	if raw.Score != nil {
		t.Score = *raw.Score
	} else {
		t.Failed = true
	}
	if raw.Generation != nil {
		t.Generation = *raw.Generation
	}
	return nil
}

// GenerationSummary records the score spread of one GA generation.
type GenerationSummary struct {
	Generation int     `json:"generation"`
	Best       float64 `json:"best_score"`
	Mean       float64 `json:"mean_score"`
	Worst      float64 `json:"worst_score"`
	// BestSoFar is the best score over all generations up to this one.
	BestSoFar float64 `json:"best_so_far"`
	// Scored counts members with a successful trial.
	Scored int `json:"scored"`
	Size   int `json:"size"`
}

// OptimizationResult is the outcome of one strategy run.
type OptimizationResult struct {
	// BestCandidate is nil when no trial succeeded.
	BestCandidate *Candidate `json:"best_candidate"`
	// BestScore is nil when no trial succeeded.
	BestScore *float64 `json:"best_score"`
	// Trials are in chronological order.
	Trials        []Trial `json:"trials"`
	AlgorithmName string  `json:"algorithm"`
	// Generations is only populated by the genetic algorithm.
	Generations []GenerationSummary `json:"generations,omitempty"`
	// Interrupted is set when the time budget or the caller's context ended
	// the run before its iteration budget.
	Interrupted bool      `json:"interrupted"`
	CacheHits   int       `json:"cache_hits"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// NewResult assembles a result from a trial history. The best candidate is the
// highest-scoring successful trial; ties keep the earliest.
func NewResult(algorithm string, trials []Trial) *OptimizationResult {
	res := &OptimizationResult{
		AlgorithmName: algorithm,
		Trials:        trials,
	}
	if res.Trials == nil {
		res.Trials = []Trial{}
	}
	for i := range res.Trials {
		score, ok := res.Trials[i].Value()
		if !ok {
			continue
		}
		if res.BestScore == nil || score > *res.BestScore {
			c := res.Trials[i].Candidate
			s := score
			res.BestCandidate = &c
			res.BestScore = &s
		}
	}
	return res
}

// Duration returns the wall time of the run.
func (r *OptimizationResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// FailedCount returns the number of failed trials.
func (r *OptimizationResult) FailedCount() int {
	n := 0
	for _, t := range r.Trials {
		if t.Failed {
			n++
		}
	}
	return n
}

// Improvement returns the best score minus the first successful score, or 0
// when nothing succeeded.
func (r *OptimizationResult) Improvement() float64 {
	if r.BestScore == nil {
		return 0
	}
	for _, t := range r.Trials {
		if score, ok := t.Value(); ok {
			return *r.BestScore - score
		}
	}
	return 0
}
