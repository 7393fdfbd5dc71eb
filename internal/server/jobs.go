package server

import (
	"context"
	"sync"
	"time"

	"github.com/copyleftdev/promptsearch/internal/optimization"
)

// Job states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Job tracks one optimization run. All fields are guarded by mu.
type Job struct {
	mu sync.RWMutex

	ID          string
	Algorithm   string
	Status      string
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time

	space  *optimization.SearchSpace
	budget int
	trials int
	failed int
	best   *optimization.Trial
	result *optimization.OptimizationResult
	cancel context.CancelFunc
	done   chan struct{}
}

func newJob(id, algorithm string, space *optimization.SearchSpace, budget int, cancel context.CancelFunc) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		Algorithm:   algorithm,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
		space:       space,
		budget:      budget,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Done is closed once the run has returned and its result was persisted.
func (j *Job) Done() <-chan struct{} { return j.done }

func (j *Job) setRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status == StatusPending {
		j.Status = StatusRunning
		j.LastUpdated = time.Now()
	}
}

// observe is the run's OnTrial callback.
func (j *Job) observe(t optimization.Trial) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.trials++
	if t.Failed {
		j.failed++
	} else if j.best == nil || t.Score > j.best.Score {
		best := t
		j.best = &best
	}
	j.LastUpdated = time.Now()
}

// requestCancel reports false when the job already finished.
func (j *Job) requestCancel() (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.Status {
	case StatusCompleted, StatusCancelled:
		return j.Status, false
	}
	j.Status = StatusCancelled
	j.LastUpdated = time.Now()
	j.cancel()
	return j.Status, true
}

// finish stores the result. A cancelled job stays cancelled.
func (j *Job) finish(res *optimization.OptimizationResult) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != StatusCancelled {
		j.Status = StatusCompleted
	}
	now := time.Now()
	j.EndTime = &now
	j.LastUpdated = now
	j.result = res
	return j.Status
}

// JobStatus is the status view of a job.
type JobStatus struct {
	ID          string                       `json:"optimization_id"`
	Algorithm   string                       `json:"algorithm"`
	Status      string                       `json:"status"`
	Progress    float64                      `json:"progress"`
	Trials      int                          `json:"trials"`
	Failed      int                          `json:"failed"`
	Budget      int                          `json:"budget"`
	BestScore   *float64                     `json:"best_score,omitempty"`
	Best        *optimization.CandidateNames `json:"best,omitempty"`
	StartTime   string                       `json:"start_time"`
	EndTime     string                       `json:"end_time,omitempty"`
	LastUpdated string                       `json:"last_update"`
}

func (j *Job) snapshot() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()

	st := JobStatus{
		ID:          j.ID,
		Algorithm:   j.Algorithm,
		Status:      j.Status,
		Trials:      j.trials,
		Failed:      j.failed,
		Budget:      j.budget,
		StartTime:   j.StartTime.Format(time.RFC3339),
		LastUpdated: j.LastUpdated.Format(time.RFC3339),
	}
	switch {
	case j.result != nil && !j.result.Interrupted:
		st.Progress = 1
	case j.budget > 0:
		st.Progress = float64(j.trials) / float64(j.budget)
		if st.Progress > 1 {
			st.Progress = 1
		}
	}
	if j.EndTime != nil {
		st.EndTime = j.EndTime.Format(time.RFC3339)
	}
	if j.best != nil {
		score := j.best.Score
		names := j.best.Candidate.Names(j.space)
		st.BestScore = &score
		st.Best = &names
	}
	return st
}

func (j *Job) finished() (*optimization.OptimizationResult, string, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result, j.Status, j.result != nil
}
