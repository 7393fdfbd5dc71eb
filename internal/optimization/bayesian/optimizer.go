package bayesian

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/promptsearch/internal/optimization"
	"github.com/copyleftdev/promptsearch/internal/optimization/acquisition"
	"github.com/copyleftdev/promptsearch/internal/optimization/kernels"
)

// Name is the algorithm name recorded on results.
const Name = "bayesian_optimization"

// DefaultMaxCandidates bounds how many unevaluated candidates are scored by
// the acquisition function per iteration.
const DefaultMaxCandidates = 4096

// Params configures the Bayesian optimizer.
type Params struct {
	// NIterations is the total evaluation budget, initial points included.
	NIterations int
	// NInitialPoints random candidates are evaluated before the surrogate is used.
	NInitialPoints int
	// Acquisition selects EI or UCB.
	Acquisition acquisition.Kind
	// Xi is the EI exploration margin.
	Xi float64
	// Kappa is the UCB exploration weight.
	Kappa float64
	// MaxCandidates bounds acquisition scoring. Spaces no larger than this
	// are enumerated; larger ones are subsampled.
	MaxCandidates int
	// Kernel selects the GP covariance function.
	Kernel kernels.Name
	// NoiseVariance is the observation noise in the standardized scale.
	NoiseVariance float64
	// Diversity is forwarded to the random sampler.
	Diversity float64
}

// DefaultParams returns the default configuration.
func DefaultParams() Params {
	return Params{
		NIterations:    20,
		NInitialPoints: 5,
		Acquisition:    acquisition.KindExpectedImprovement,
		Xi:             acquisition.DefaultXi,
		Kappa:          acquisition.DefaultKappa,
		MaxCandidates:  DefaultMaxCandidates,
		Kernel:         kernels.Matern52,
		NoiseVariance:  1e-4,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	const component = "bayesian"
	if p.NInitialPoints < 1 {
		return optimization.InvalidParameter(component, "n_initial_points must be >= 1, got %d", p.NInitialPoints)
	}
	if p.NIterations < p.NInitialPoints {
		return optimization.InvalidParameter(component, "n_iterations (%d) must be >= n_initial_points (%d)",
			p.NIterations, p.NInitialPoints)
	}
	if !p.Acquisition.Valid() {
		return optimization.InvalidParameter(component, "unknown acquisition function %q", p.Acquisition)
	}
	if p.Xi < 0 || p.Kappa < 0 {
		return optimization.InvalidParameter(component, "xi and kappa must be >= 0")
	}
	if p.MaxCandidates < 1 {
		return optimization.InvalidParameter(component, "max_candidates must be >= 1, got %d", p.MaxCandidates)
	}
	if p.NoiseVariance < 0 {
		return optimization.InvalidParameter(component, "noise variance must be >= 0, got %v", p.NoiseVariance)
	}
	if p.Diversity < 0 || p.Diversity > 1 {
		return optimization.InvalidParameter(component, "diversity must be in [0,1], got %v", p.Diversity)
	}
	if _, err := kernels.New(p.Kernel, 1, 1); err != nil {
		return optimization.InvalidParameter(component, "%v", err)
	}
	return nil
}

// Optimizer implements Bayesian Optimization over a discrete search space
// with a Gaussian Process surrogate.
type Optimizer struct {
	space     *optimization.SearchSpace
	evaluator optimization.Evaluator
	params    Params
	config    optimization.RunConfig
	encoder   *Encoder
	recorder  optimization.Recorder
}

// New validates its arguments and returns an optimizer.
func New(space *optimization.SearchSpace, evaluator optimization.Evaluator, params Params, config optimization.RunConfig) (*Optimizer, error) {
	if err := optimization.ValidateInputs(space, evaluator, config); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	recorder := config.Recorder
	if recorder == nil {
		recorder = optimization.NopRecorder{}
	}
	return &Optimizer{
		space:     space,
		evaluator: evaluator,
		params:    params,
		config:    config,
		encoder:   NewEncoder(space),
		recorder:  recorder,
	}, nil
}

// Name implements optimization.Strategy.
func (bo *Optimizer) Name() string { return Name }

// Optimize runs the initial random phase and then one surrogate-guided
// proposal per iteration until NIterations proposals were made, the space is
// exhausted, or the budget ends.
func (bo *Optimizer) Optimize(ctx context.Context) *optimization.OptimizationResult {
	ctx, run, cancel := optimization.StartRun(ctx, Name, bo.space, bo.evaluator, bo.config)
	defer cancel()

	sampler := optimization.NewSampler(bo.space, run.Rand, bo.params.Diversity)
	interrupted := false

	// Initial random sampling; proposals are independent so they may run
	// concurrently.
	initial := bo.initialPoints(sampler)
	_, ok := run.Cache.EvaluateAll(ctx, initial, optimization.NoGeneration, run.Workers())
	for _, resolved := range ok {
		if !resolved {
			interrupted = true
		}
	}
	proposals := len(initial)

	acq, _ := acquisition.New(bo.params.Acquisition, bo.params.Xi, bo.params.Kappa)
	kernel, _ := kernels.New(bo.params.Kernel, 1.0, 1.0)
	gp := NewGP(kernel, bo.params.NoiseVariance, run.Logger)

	for ; !interrupted && proposals < bo.params.NIterations; proposals++ {
		if run.Expired(ctx) {
			interrupted = true
			break
		}

		next, found := bo.propose(run, sampler, gp, acq)
		if !found {
			run.Logger.Info("Search space exhausted", zap.Int("proposals", proposals))
			break
		}

		if _, err := run.Cache.GetOrEvaluate(ctx, next); err != nil {
			if errors.Is(err, optimization.ErrBudgetExhausted) {
				interrupted = true
				break
			}
			run.Logger.Error("Unexpected evaluation error", zap.Error(err))
		}
	}

	return run.Finish(interrupted)
}

// initialPoints draws up to NInitialPoints distinct candidates.
func (bo *Optimizer) initialPoints(sampler *optimization.Sampler) []optimization.Candidate {
	n := bo.params.NInitialPoints
	if size := bo.space.Size(); size < n {
		n = size
	}
	seen := make(map[string]struct{}, n)
	points := make([]optimization.Candidate, 0, n)
	for attempts := 0; len(points) < n && attempts < 64*n; attempts++ {
		c := sampler.Sample()
		if _, dup := seen[c.Key()]; dup {
			continue
		}
		seen[c.Key()] = struct{}{}
		points = append(points, c)
	}
	return points
}

// propose returns the next unevaluated candidate, or false when none remain.
func (bo *Optimizer) propose(run *optimization.Run, sampler *optimization.Sampler, gp *GP, acq acquisition.Function) (optimization.Candidate, bool) {
	var (
		cands []optimization.Candidate
		y     []float64
		best  = math.Inf(-1)
	)
	for _, t := range run.Cache.History() {
		score, ok := t.Value()
		if !ok {
			// Failed trials have no score and are left out of the fit
			continue
		}
		cands = append(cands, t.Candidate)
		y = append(y, score)
		best = math.Max(best, score)
	}

	pool := bo.candidatePool(run, sampler)
	if len(pool) == 0 {
		return optimization.Candidate{}, false
	}

	// Distinct candidates encode to distinct vectors, so the cache already
	// guarantees the training points are distinct.
	if len(cands) < 2 {
		bo.fallback(run, "fewer than two scored candidates", nil, len(cands))
		return pool[run.Rand.Intn(len(pool))], true
	}

	X := bo.encoder.EncodeAll(cands)
	if err := gp.FitTuned(X, mat.NewVecDense(len(y), y)); err != nil {
		bo.fallback(run, "surrogate fit failed", err, len(cands))
		return pool[run.Rand.Intn(len(pool))], true
	}

	mean, std, err := gp.Predict(bo.encoder.EncodeAll(pool))
	if err != nil {
		bo.fallback(run, "surrogate prediction failed", err, len(cands))
		return pool[run.Rand.Intn(len(pool))], true
	}

	acq.UpdateBest(best)
	bestIdx, bestVal := 0, math.Inf(-1)
	for i := range pool {
		// Strict comparison keeps the first-encountered maximum
		if v := acq.Compute(mean.AtVec(i), std.AtVec(i)); v > bestVal {
			bestIdx, bestVal = i, v
		}
	}

	run.Logger.Debug("Acquisition maximized",
		zap.Stringer("candidate", pool[bestIdx]),
		zap.Float64("acquisition", bestVal),
		zap.Float64("predicted_mean", mean.AtVec(bestIdx)),
		zap.Float64("predicted_std", std.AtVec(bestIdx)),
		zap.Int("pool", len(pool)),
	)
	return pool[bestIdx], true
}

func (bo *Optimizer) fallback(run *optimization.Run, reason string, err error, points int) {
	bo.recorder.ObserveSurrogateFallback(Name)
	fields := []zap.Field{zap.String("reason", reason), zap.Int("scored_points", points)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	run.Logger.Info("Falling back to random sampling", fields...)
}

// candidatePool returns the unevaluated candidates to score. Spaces no larger
// than MaxCandidates are enumerated in index order; larger spaces are
// subsampled at random.
func (bo *Optimizer) candidatePool(run *optimization.Run, sampler *optimization.Sampler) []optimization.Candidate {
	size := bo.space.Size()
	limit := bo.params.MaxCandidates

	if size <= limit {
		pool := make([]optimization.Candidate, 0, size)
		for i := 0; i < size; i++ {
			if c := bo.space.CandidateAt(i); !run.Cache.Seen(c) {
				pool = append(pool, c)
			}
		}
		return pool
	}

	seen := make(map[string]struct{}, limit)
	pool := make([]optimization.Candidate, 0, limit)
	for attempts := 0; len(pool) < limit && attempts < 4*limit; attempts++ {
		c := sampler.Sample()
		if _, dup := seen[c.Key()]; dup || run.Cache.Seen(c) {
			continue
		}
		seen[c.Key()] = struct{}{}
		pool = append(pool, c)
	}
	if len(pool) == 0 {
		// Sampling kept hitting evaluated candidates; walk the index space.
		start := run.Rand.Intn(size)
		for k := 0; k < size && k < 1<<20; k++ {
			if c := bo.space.CandidateAt((start + k) % size); !run.Cache.Seen(c) {
				return append(pool, c)
			}
		}
	}
	return pool
}
