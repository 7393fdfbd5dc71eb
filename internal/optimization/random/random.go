// Package random implements the random search baseline.
package random

import (
	"context"

	"github.com/copyleftdev/promptsearch/internal/optimization"
)

// Name is the algorithm name recorded on results.
const Name = "random_search"

// Params configures random search.
type Params struct {
	// NIterations is the number of proposals. Zero yields an empty result.
	NIterations int
	// Diversity biases technique picks toward rarely used techniques.
	Diversity float64
}

// DefaultParams returns the default configuration.
func DefaultParams() Params {
	return Params{NIterations: 20}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.NIterations < 0 {
		return optimization.InvalidParameter("random", "n_iterations must be >= 0, got %d", p.NIterations)
	}
	if p.Diversity < 0 || p.Diversity > 1 {
		return optimization.InvalidParameter("random", "diversity must be in [0,1], got %v", p.Diversity)
	}
	return nil
}

// Search draws independent uniform candidates.
type Search struct {
	space     *optimization.SearchSpace
	evaluator optimization.Evaluator
	params    Params
	config    optimization.RunConfig
}

// New validates its arguments and returns the strategy.
func New(space *optimization.SearchSpace, evaluator optimization.Evaluator, params Params, config optimization.RunConfig) (*Search, error) {
	if err := optimization.ValidateInputs(space, evaluator, config); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Search{space: space, evaluator: evaluator, params: params, config: config}, nil
}

// Name implements optimization.Strategy.
func (s *Search) Name() string { return Name }

// Optimize makes NIterations independent proposals. Repeated proposals are
// served by the cache and add no trial. With more than one worker the
// proposals are evaluated concurrently, in batches of the worker count, and
// the history keeps proposal order.
func (s *Search) Optimize(ctx context.Context) *optimization.OptimizationResult {
	ctx, run, cancel := optimization.StartRun(ctx, Name, s.space, s.evaluator, s.config)
	defer cancel()

	sampler := optimization.NewSampler(s.space, run.Rand, s.params.Diversity)
	batch := run.Workers()
	interrupted := false

	for done := 0; done < s.params.NIterations; {
		if run.Expired(ctx) {
			interrupted = true
			break
		}
		n := min(batch, s.params.NIterations-done)
		proposals := make([]optimization.Candidate, n)
		for i := range proposals {
			proposals[i] = sampler.Sample()
		}

		_, ok := run.Cache.EvaluateAll(ctx, proposals, optimization.NoGeneration, batch)
		for _, resolved := range ok {
			if !resolved {
				interrupted = true
			}
		}
		if interrupted {
			break
		}
		done += n
	}

	return run.Finish(interrupted)
}
