// Package genetic implements a generational genetic algorithm over prompt
// configurations.
package genetic

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/promptsearch/internal/optimization"
)

// Name is the algorithm name recorded on results.
const Name = "genetic_algorithm"

// Params configures the genetic algorithm.
type Params struct {
	// PopulationSize is the number of members in every generation.
	PopulationSize int
	// Generations is the number of breeding rounds after generation 0.
	Generations int
	// MutationRate is the per-offspring probability of resampling one gene.
	MutationRate float64
	// EliteSize top members are copied unchanged into the next generation.
	EliteSize int
	// TournamentSize is the number of ranked members drawn per parent pick.
	TournamentSize int
	// Diversity is forwarded to the random sampler.
	Diversity float64
}

// DefaultParams returns the default configuration.
func DefaultParams() Params {
	return Params{
		PopulationSize: 8,
		Generations:    5,
		MutationRate:   0.2,
		EliteSize:      1,
		TournamentSize: 3,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	const component = "genetic"
	if p.PopulationSize < 2 {
		return optimization.InvalidParameter(component, "population_size must be >= 2, got %d", p.PopulationSize)
	}
	if p.Generations < 1 {
		return optimization.InvalidParameter(component, "generations must be >= 1, got %d", p.Generations)
	}
	if !(p.MutationRate >= 0 && p.MutationRate <= 1) {
		return optimization.InvalidParameter(component, "mutation_rate must be in [0,1], got %v", p.MutationRate)
	}
	if p.EliteSize < 0 || p.EliteSize > p.PopulationSize {
		return optimization.InvalidParameter(component, "elite_size must be in [0,%d], got %d", p.PopulationSize, p.EliteSize)
	}
	if p.TournamentSize < 1 {
		return optimization.InvalidParameter(component, "tournament_size must be >= 1, got %d", p.TournamentSize)
	}
	if p.Diversity < 0 || p.Diversity > 1 {
		return optimization.InvalidParameter(component, "diversity must be in [0,1], got %v", p.Diversity)
	}
	return nil
}

// Algorithm is the genetic algorithm strategy.
type Algorithm struct {
	space     *optimization.SearchSpace
	evaluator optimization.Evaluator
	params    Params
	config    optimization.RunConfig
}

// New validates its arguments and returns the strategy.
func New(space *optimization.SearchSpace, evaluator optimization.Evaluator, params Params, config optimization.RunConfig) (*Algorithm, error) {
	if err := optimization.ValidateInputs(space, evaluator, config); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Algorithm{space: space, evaluator: evaluator, params: params, config: config}, nil
}

// Name implements optimization.Strategy.
func (ga *Algorithm) Name() string { return Name }

// member is one population slot and its resolved trial.
type member struct {
	candidate optimization.Candidate
	trial     optimization.Trial
}

// Optimize evaluates the initial population and then runs Generations rounds
// of selection, crossover, mutation and evaluation. Every member of a
// generation is resolved before the next one is bred.
func (ga *Algorithm) Optimize(ctx context.Context) *optimization.OptimizationResult {
	ctx, run, cancel := optimization.StartRun(ctx, Name, ga.space, ga.evaluator, ga.config)
	defer cancel()

	b := &breeder{
		space:   ga.space,
		sampler: optimization.NewSampler(ga.space, run.Rand, ga.params.Diversity),
		params:  ga.params,
		rng:     run.Rand,
	}

	var (
		summaries   []optimization.GenerationSummary
		interrupted bool
	)

	var population []member
	cands := b.initialPopulation()
	for gen := 0; gen <= ga.params.Generations; gen++ {
		if gen > 0 {
			if run.Expired(ctx) {
				interrupted = true
				break
			}
			cands = b.nextGeneration(population)
		}

		members, complete := ga.evaluate(ctx, run, cands, gen)
		if !complete {
			interrupted = true
			break
		}
		population = members

		summary := summarize(gen, population, run.Cache)
		summaries = append(summaries, summary)
		run.Logger.Info("Generation evaluated",
			zap.Int("generation", gen),
			zap.Float64("best", summary.Best),
			zap.Float64("mean", summary.Mean),
			zap.Float64("best_so_far", summary.BestSoFar),
			zap.Int("scored", summary.Scored),
		)
	}

	res := run.Finish(interrupted)
	res.Generations = summaries
	return res
}

// evaluate resolves every candidate in the generation. complete is false
// when the budget ended before all of them resolved.
func (ga *Algorithm) evaluate(ctx context.Context, run *optimization.Run, cands []optimization.Candidate, gen int) ([]member, bool) {
	trials, ok := run.Cache.EvaluateAll(ctx, cands, gen, 1)
	members := make([]member, len(cands))
	for i := range cands {
		if !ok[i] {
			return nil, false
		}
		members[i] = member{candidate: cands[i], trial: trials[i]}
	}
	return members, true
}

func summarize(gen int, population []member, cache *optimization.Cache) optimization.GenerationSummary {
	s := optimization.GenerationSummary{Generation: gen, Size: len(population)}
	var scores []float64
	for _, m := range population {
		if score, ok := m.trial.Value(); ok {
			scores = append(scores, score)
		}
	}
	s.Scored = len(scores)
	if len(scores) > 0 {
		s.Best, s.Worst = scores[0], scores[0]
		for _, v := range scores {
			s.Best = max(s.Best, v)
			s.Worst = min(s.Worst, v)
		}
		s.Mean = stat.Mean(scores, nil)
	}
	if best, ok := cache.Best(); ok {
		s.BestSoFar = best
	}
	return s
}

// rank returns population indices ordered by score descending. Failed
// members sort last; equal scores keep the lower index first.
func rank(population []member) []int {
	idx := make([]int, len(population))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		sa, oka := population[idx[a]].trial.Value()
		sb, okb := population[idx[b]].trial.Value()
		if oka != okb {
			return oka
		}
		return oka && sa > sb
	})
	return idx
}
