package optimization

import "math/rand"

// Sampler draws candidates uniformly from a search space. Role and style are
// uniform; the technique subset size is uniform in 0..NumTechniques, and each
// technique pick is uniform among those not yet chosen.
//
// Diversity in [0,1] biases technique picks toward the techniques the sampler
// has handed out least often so far: each pick takes a least-used technique
// with probability Diversity and a uniform one otherwise. Zero disables the
// bias.
type Sampler struct {
	space     *SearchSpace
	rng       *rand.Rand
	diversity float64
	usage     []int
}

// NewSampler binds a sampler to space and rng. Diversity is clamped to [0,1].
func NewSampler(space *SearchSpace, rng *rand.Rand, diversity float64) *Sampler {
	if diversity < 0 {
		diversity = 0
	}
	if diversity > 1 {
		diversity = 1
	}
	return &Sampler{
		space:     space,
		rng:       rng,
		diversity: diversity,
		usage:     make([]int, space.NumTechniques()),
	}
}

// Sample returns a fresh candidate.
func (s *Sampler) Sample() Candidate {
	return NewCandidate(s.Role(), s.Style(), s.Techniques()...)
}

// Role returns a uniformly drawn role index.
func (s *Sampler) Role() int { return s.rng.Intn(s.space.NumRoles()) }

// Style returns a uniformly drawn style index.
func (s *Sampler) Style() int { return s.rng.Intn(s.space.NumStyles()) }

// Techniques returns a random technique subset.
func (s *Sampler) Techniques() []int {
	n := s.space.NumTechniques()
	if n == 0 {
		return nil
	}
	k := s.rng.Intn(n + 1)
	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = i
	}
	picked := make([]int, 0, k)
	for len(picked) < k {
		var j int
		if s.diversity > 0 && s.rng.Float64() < s.diversity {
			j = s.leastUsed(remaining)
		} else {
			j = s.rng.Intn(len(remaining))
		}
		t := remaining[j]
		remaining[j] = remaining[len(remaining)-1]
		remaining = remaining[:len(remaining)-1]
		picked = append(picked, t)
		s.usage[t]++
	}
	return picked
}

// leastUsed returns the position in remaining of a least-used technique,
// choosing uniformly among ties.
func (s *Sampler) leastUsed(remaining []int) int {
	best, ties := -1, 0
	for j, t := range remaining {
		switch {
		case best < 0 || s.usage[t] < s.usage[remaining[best]]:
			best, ties = j, 1
		case s.usage[t] == s.usage[remaining[best]]:
			ties++
			if s.rng.Intn(ties) == 0 {
				best = j
			}
		}
	}
	return best
}
