package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache memoizes evaluator calls by candidate value for one run. It owns the
// run's chronological trial history: every new trial is appended exactly
// once, in the order its candidate was first requested. Concurrent requests
// for the same candidate share one evaluator invocation.
//
// A Cache must not be shared across runs.
type Cache struct {
	space     *SearchSpace
	evaluator Evaluator
	retry     RetryPolicy
	algorithm string
	logger    *zap.Logger
	recorder  Recorder
	onTrial   func(Trial)

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []*cacheEntry
	hits    int
	calls   int
	best    *float64
}

type cacheEntry struct {
	candidate  Candidate
	iteration  int
	generation int
	resolved   bool
	trial      Trial
}

// CacheOptions configures a Cache. Zero values fall back to defaults.
type CacheOptions struct {
	Retry     RetryPolicy
	Algorithm string
	Logger    *zap.Logger
	Recorder  Recorder
	// OnTrial is called after each new trial is stored.
	OnTrial func(Trial)
}

// NewCache creates an empty cache bound to one space and evaluator.
func NewCache(space *SearchSpace, evaluator Evaluator, opts CacheOptions) *Cache {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder{}
	}
	return &Cache{
		space:     space,
		evaluator: evaluator,
		retry:     opts.Retry,
		algorithm: opts.Algorithm,
		logger:    opts.Logger.Named("cache"),
		recorder:  opts.Recorder,
		onTrial:   opts.OnTrial,
		entries:   make(map[string]*cacheEntry),
	}
}

// GetOrEvaluate returns the trial for c, invoking the evaluator under the
// retry policy on a miss. It returns ErrBudgetExhausted when ctx ends before
// the trial resolves; no trial is recorded in that case.
func (c *Cache) GetOrEvaluate(ctx context.Context, cand Candidate) (Trial, error) {
	return c.GetOrEvaluateInGeneration(ctx, cand, NoGeneration)
}

// GetOrEvaluateInGeneration is GetOrEvaluate for generational strategies. The
// generation is recorded only when the candidate is new.
func (c *Cache) GetOrEvaluateInGeneration(ctx context.Context, cand Candidate, generation int) (Trial, error) {
	if !c.space.Contains(cand) {
		return Trial{}, NewErrorf("candidate %s is outside the search space", cand).
			WithKind(ErrInvalidParameter).
			WithOperation("Cache.GetOrEvaluate")
	}
	e, known := c.reserve(cand, generation)
	if known {
		c.recorder.ObserveCacheHit(c.algorithm)
	}
	return c.resolve(ctx, e)
}

// reserve returns the entry for cand, creating it and claiming the next
// history slot if it is new. known is true when the entry already existed.
func (c *Cache) reserve(cand Candidate, generation int) (e *cacheEntry, known bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cand.Key()
	if e, ok := c.entries[key]; ok {
		c.hits++
		return e, true
	}
	e = &cacheEntry{
		candidate:  cand,
		iteration:  len(c.order),
		generation: generation,
	}
	c.entries[key] = e
	c.order = append(c.order, e)
	return e, false
}

func (c *Cache) lookup(e *cacheEntry) (Trial, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return e.trial, e.resolved
}

func (c *Cache) resolve(ctx context.Context, e *cacheEntry) (Trial, error) {
	if t, ok := c.lookup(e); ok {
		return t, nil
	}

	v, err, _ := c.group.Do(e.candidate.Key(), func() (interface{}, error) {
		// A previous leader may have finished between lookup and Do.
		if t, ok := c.lookup(e); ok {
			return t, nil
		}
		t, err := c.evaluate(ctx, e)
		if err != nil {
			return Trial{}, err
		}
		c.store(e, t)
		return t, nil
	})
	if err != nil {
		return Trial{}, err
	}
	return v.(Trial), nil
}

func (c *Cache) store(e *cacheEntry, t Trial) {
	c.mu.Lock()
	e.trial = t
	e.resolved = true
	improved := false
	if score, ok := t.Value(); ok && (c.best == nil || score > *c.best) {
		s := score
		c.best = &s
		improved = true
	}
	c.mu.Unlock()

	c.recorder.ObserveTrial(c.algorithm, t)
	if improved {
		c.recorder.ObserveBest(c.algorithm, t.Score)
	}
	if c.onTrial != nil {
		c.onTrial(t)
	}
}

// evaluate runs the retry loop for one entry. The evaluator itself runs on a
// context that is never cancelled; only the waits between attempts observe ctx.
func (c *Cache) evaluate(ctx context.Context, e *cacheEntry) (Trial, error) {
	if ctx.Err() != nil {
		return Trial{}, NewError("run budget expired before evaluation").
			WithKind(ErrBudgetExhausted).
			WithOperation("Cache.evaluate")
	}

	evalCtx := context.WithoutCancel(ctx)
	start := time.Now()
	trial := Trial{
		Candidate:  e.candidate,
		Iteration:  e.iteration,
		Generation: e.generation,
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		callStart := time.Now()
		score, err := c.evaluator.Evaluate(evalCtx, e.candidate, c.space)
		if err == nil && (math.IsNaN(score) || math.IsInf(score, 0)) {
			err = Permanent(fmt.Errorf("evaluator returned non-finite score %v", score))
		}
		c.recorder.ObserveEvaluation(c.algorithm, time.Since(callStart), err)

		c.mu.Lock()
		c.calls++
		c.mu.Unlock()

		trial.Attempts = attempt
		if err == nil {
			trial.Score = score
			trial.Duration = time.Since(start)
			c.logger.Debug("Trial resolved",
				zap.String("candidate", e.candidate.Key()),
				zap.Int("iteration", e.iteration),
				zap.Float64("score", score),
				zap.Int("attempts", attempt),
			)
			return trial, nil
		}

		lastErr = err
		if IsPermanent(err) || attempt > c.retry.MaxRetries {
			break
		}

		backoff := c.retry.Backoff(attempt)
		c.logger.Warn("Evaluation failed, retrying",
			zap.String("candidate", e.candidate.Key()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		c.recorder.ObserveRetry(c.algorithm)

		if werr := wait(ctx, backoff); werr != nil {
			return Trial{}, WrapError(werr, "run budget expired during retry backoff").
				WithKind(ErrBudgetExhausted).
				WithOperation("Cache.evaluate")
		}
	}

	evalErr := WrapErrorf(lastErr, "candidate %s failed after %d attempts", e.candidate.Key(), trial.Attempts).
		WithKind(ErrEvaluation)
	c.logger.Warn("Trial failed",
		zap.String("candidate", e.candidate.Key()),
		zap.Int("iteration", e.iteration),
		zap.Int("attempts", trial.Attempts),
		zap.Error(lastErr),
	)
	trial.Failed = true
	trial.Err = evalErr.Error()
	trial.Duration = time.Since(start)
	return trial, nil
}

// EvaluateAll resolves cands with at most workers concurrent evaluations.
// History slots are claimed in slice order before any evaluation starts.
// The returned slices are aligned with cands; ok[i] is false when the
// budget ended before cands[i] resolved.
func (c *Cache) EvaluateAll(ctx context.Context, cands []Candidate, generation, workers int) (trials []Trial, ok []bool) {
	trials = make([]Trial, len(cands))
	ok = make([]bool, len(cands))

	entries := make([]*cacheEntry, len(cands))
	for i, cand := range cands {
		if !c.space.Contains(cand) {
			continue
		}
		e, known := c.reserve(cand, generation)
		if known {
			c.recorder.ObserveCacheHit(c.algorithm)
		}
		entries[i] = e
	}

	if workers <= 1 {
		for i, e := range entries {
			if e == nil {
				continue
			}
			t, err := c.resolve(ctx, e)
			if err != nil {
				if errors.Is(err, ErrBudgetExhausted) {
					break
				}
				continue
			}
			trials[i], ok[i] = t, true
		}
		return trials, ok
	}

	p := pool.New().WithMaxGoroutines(workers)
	for i, e := range entries {
		if e == nil {
			continue
		}
		i, e := i, e
		p.Go(func() {
			t, err := c.resolve(ctx, e)
			if err != nil {
				return
			}
			trials[i], ok[i] = t, true
		})
	}
	p.Wait()
	return trials, ok
}

// Seen reports whether cand has been requested in this run, resolved or not.
func (c *Cache) Seen(cand Candidate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[cand.Key()]
	return ok
}

// Lookup returns the resolved trial for cand without evaluating. Its
// Iteration matches the trial's position in History.
func (c *Cache) Lookup(cand Candidate) (Trial, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cand.Key()]
	if !ok || !e.resolved {
		return Trial{}, false
	}
	t := e.trial
	t.Iteration = 0
	for _, prev := range c.order[:e.iteration] {
		if prev.resolved {
			t.Iteration++
		}
	}
	return t, true
}

// History returns resolved trials in first-request order. Slots whose
// evaluation was cut off by the budget are skipped, so Iteration runs
// 0..n-1 with no gaps.
func (c *Cache) History() []Trial {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Trial, 0, len(c.order))
	for _, e := range c.order {
		if e.resolved {
			t := e.trial
			t.Iteration = len(out)
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of resolved trials.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.order {
		if e.resolved {
			n++
		}
	}
	return n
}

// Hits returns how many requests were served by an existing entry.
func (c *Cache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Calls returns the number of evaluator invocations, retries included.
func (c *Cache) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Best returns the best successful score so far.
func (c *Cache) Best() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.best == nil {
		return 0, false
	}
	return *c.best, true
}
