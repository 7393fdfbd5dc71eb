package optimization

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Strategy is a search algorithm bound to a search space, an evaluator, and
// its parameters. Parameters are validated when the strategy is constructed;
// Optimize always returns a result.
type Strategy interface {
	// Name returns the algorithm name recorded on results.
	Name() string
	// Optimize runs the search until its iteration budget is spent, the run's
	// MaxDuration elapses, or ctx is done, and returns what it found.
	Optimize(ctx context.Context) *OptimizationResult
}

// RunConfig holds the settings shared by every strategy.
type RunConfig struct {
	// Template is the base prompt template. It is made available to the
	// evaluator through TemplateFromContext.
	Template string
	// Retry controls evaluator retries.
	Retry RetryPolicy
	// Workers bounds concurrent evaluations in phases with independent
	// proposals. Zero or one means sequential.
	Workers int
	// MaxDuration is the run's time budget. Zero means no limit.
	MaxDuration time.Duration
	// RandomSeed seeds the strategy's generator. Zero picks a time-based seed.
	RandomSeed int64
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Recorder defaults to NopRecorder.
	Recorder Recorder
	// OnTrial, if set, is called after each new trial.
	OnTrial func(Trial)
}

// DefaultRunConfig returns a sequential run with the default retry policy.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Retry:   DefaultRetryPolicy(),
		Workers: 1,
	}
}

// Validate checks the shared settings.
func (c RunConfig) Validate() error {
	if err := c.Retry.Validate(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return InvalidParameter("run", "workers must be >= 0, got %d", c.Workers)
	}
	if c.MaxDuration < 0 {
		return InvalidParameter("run", "max duration must be >= 0, got %s", c.MaxDuration)
	}
	return nil
}

// ValidateInputs checks the arguments every strategy constructor receives.
func ValidateInputs(space *SearchSpace, evaluator Evaluator, cfg RunConfig) error {
	if space == nil {
		return NewError("search space is nil").WithKind(ErrInvalidSearchSpace).WithOperation("validate")
	}
	if evaluator == nil {
		return InvalidParameter("run", "evaluator is nil")
	}
	return cfg.Validate()
}

type templateKey struct{}

// WithTemplate returns a context carrying the base template.
func WithTemplate(ctx context.Context, template string) context.Context {
	return context.WithValue(ctx, templateKey{}, template)
}

// TemplateFromContext returns the base template of the run evaluating a
// candidate, or "" when none was set.
func TemplateFromContext(ctx context.Context) string {
	t, _ := ctx.Value(templateKey{}).(string)
	return t
}

// Run is the per-run state every strategy shares: the cache, the seeded
// generator, and the budget.
type Run struct {
	Cache  *Cache
	Rand   *rand.Rand
	Logger *zap.Logger

	algorithm string
	workers   int
	start     time.Time
}

// StartRun creates the run state for one Optimize call. The returned context
// carries the time budget and the template; cancel must be called when the
// run ends.
func StartRun(ctx context.Context, algorithm string, space *SearchSpace, evaluator Evaluator, cfg RunConfig) (context.Context, *Run, context.CancelFunc) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("algorithm", algorithm))

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var cancel context.CancelFunc
	if cfg.MaxDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.MaxDuration)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	ctx = WithTemplate(ctx, cfg.Template)

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	run := &Run{
		Cache: NewCache(space, evaluator, CacheOptions{
			Retry:     cfg.Retry,
			Algorithm: algorithm,
			Logger:    logger,
			Recorder:  cfg.Recorder,
			OnTrial:   cfg.OnTrial,
		}),
		Rand:      rand.New(rand.NewSource(seed)),
		Logger:    logger,
		algorithm: algorithm,
		workers:   workers,
		start:     time.Now(),
	}
	logger.Info("Optimization started",
		zap.Int("space_size", space.Size()),
		zap.Int64("seed", seed),
		zap.Int("workers", workers),
	)
	return ctx, run, cancel
}

// Workers returns the effective worker count, at least one.
func (r *Run) Workers() int { return r.workers }

// Expired reports whether the run's budget has ended.
func (r *Run) Expired(ctx context.Context) bool { return ctx.Err() != nil }

// Finish assembles the result from the cache history.
func (r *Run) Finish(interrupted bool) *OptimizationResult {
	res := NewResult(r.algorithm, r.Cache.History())
	res.Interrupted = interrupted
	res.CacheHits = r.Cache.Hits()
	res.StartTime = r.start
	res.EndTime = time.Now()

	fields := []zap.Field{
		zap.Int("trials", len(res.Trials)),
		zap.Int("failed", res.FailedCount()),
		zap.Int("cache_hits", res.CacheHits),
		zap.Bool("interrupted", interrupted),
		zap.Duration("duration", res.Duration()),
	}
	if res.BestScore != nil {
		fields = append(fields,
			zap.Float64("best_score", *res.BestScore),
			zap.Stringer("best_candidate", res.BestCandidate),
		)
	}
	r.Logger.Info("Optimization finished", fields...)
	return res
}
