package genetic

import (
	"math/rand"

	"github.com/copyleftdev/promptsearch/internal/optimization"
)

type breeder struct {
	space   *optimization.SearchSpace
	sampler *optimization.Sampler
	params  Params
	rng     *rand.Rand
}

// initialPopulation draws PopulationSize candidates, distinct while the space
// has enough of them.
func (b *breeder) initialPopulation() []optimization.Candidate {
	n := b.params.PopulationSize
	seen := make(map[string]struct{}, n)
	pop := make([]optimization.Candidate, 0, n)
	for attempts := 0; len(pop) < n; attempts++ {
		c := b.sampler.Sample()
		if _, dup := seen[c.Key()]; dup && attempts < 64*n && len(seen) < b.space.Size() {
			continue
		}
		seen[c.Key()] = struct{}{}
		pop = append(pop, c)
	}
	return pop
}

// nextGeneration keeps the elites and fills the remaining slots with
// offspring of tournament-selected parents.
func (b *breeder) nextGeneration(population []member) []optimization.Candidate {
	ranked := rank(population)
	next := make([]optimization.Candidate, 0, b.params.PopulationSize)
	for _, i := range ranked[:b.params.EliteSize] {
		next = append(next, population[i].candidate)
	}

	// Only scored members may become parents.
	parents := make([]int, 0, len(ranked))
	for _, i := range ranked {
		if !population[i].trial.Failed {
			parents = append(parents, i)
		}
	}

	for len(next) < b.params.PopulationSize {
		if len(parents) == 0 {
			next = append(next, b.sampler.Sample())
			continue
		}
		p1 := population[b.tournament(parents)].candidate
		p2 := population[b.tournament(parents)].candidate
		next = append(next, b.mutate(b.crossover(p1, p2)))
	}
	return next
}

// tournament draws TournamentSize ranks with replacement and returns the
// population index of the best-ranked draw.
func (b *breeder) tournament(ranked []int) int {
	best := len(ranked)
	for i := 0; i < b.params.TournamentSize; i++ {
		if r := b.rng.Intn(len(ranked)); r < best {
			best = r
		}
	}
	return ranked[best]
}

// crossover inherits role and style from either parent with equal
// probability. Techniques both parents share are kept; techniques only one
// parent has are kept with probability one half. Two empty technique sets
// yield a fresh subset.
func (b *breeder) crossover(p1, p2 optimization.Candidate) optimization.Candidate {
	role := p1.RoleIndex()
	if b.rng.Intn(2) == 1 {
		role = p2.RoleIndex()
	}
	style := p1.StyleIndex()
	if b.rng.Intn(2) == 1 {
		style = p2.StyleIndex()
	}

	if p1.NumTechniques() == 0 && p2.NumTechniques() == 0 {
		return optimization.NewCandidate(role, style, b.sampler.Techniques()...)
	}

	var techniques []int
	for t := 0; t < b.space.NumTechniques(); t++ {
		in1, in2 := p1.HasTechnique(t), p2.HasTechnique(t)
		switch {
		case in1 && in2:
			techniques = append(techniques, t)
		case in1 || in2:
			if b.rng.Intn(2) == 1 {
				techniques = append(techniques, t)
			}
		}
	}
	return optimization.NewCandidate(role, style, techniques...)
}

// mutate resamples one gene with probability MutationRate.
func (b *breeder) mutate(c optimization.Candidate) optimization.Candidate {
	if b.rng.Float64() >= b.params.MutationRate {
		return c
	}
	genes := 2
	if b.space.NumTechniques() > 0 {
		genes = 3
	}
	switch b.rng.Intn(genes) {
	case 0:
		return c.WithRole(b.sampler.Role())
	case 1:
		return c.WithStyle(b.sampler.Style())
	default:
		return c.WithTechniques(b.sampler.Techniques()...)
	}
}
