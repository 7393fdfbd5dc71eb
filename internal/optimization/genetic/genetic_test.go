package genetic

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/promptsearch/internal/optimization"
)

func linearScore(_ context.Context, c optimization.Candidate, _ *optimization.SearchSpace) (float64, error) {
	return float64(c.RoleIndex()*10 + c.StyleIndex()), nil
}

func testConfig(seed int64) optimization.RunConfig {
	cfg := optimization.DefaultRunConfig()
	cfg.Retry = optimization.RetryPolicy{MaxRetries: 2}
	cfg.RandomSeed = seed
	return cfg
}

func fourPointSpace(t *testing.T) *optimization.SearchSpace {
	t.Helper()
	space, err := optimization.NewSearchSpace([]string{"r0", "r1"}, []string{"s0", "s1"}, nil)
	require.NoError(t, err)
	return space
}

func richSpace(t *testing.T) *optimization.SearchSpace {
	t.Helper()
	space, err := optimization.NewSearchSpace(
		[]string{"expert", "tutor", "critic", "editor"},
		[]string{"formal", "casual", "terse"},
		[]string{"cot", "few-shot", "self-check", "persona", "rubric"},
	)
	require.NoError(t, err)
	return space
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"population too small", func(p *Params) { p.PopulationSize = 1 }},
		{"zero generations", func(p *Params) { p.Generations = 0 }},
		{"negative mutation rate", func(p *Params) { p.MutationRate = -0.1 }},
		{"mutation rate above one", func(p *Params) { p.MutationRate = 1.1 }},
		{"negative elite size", func(p *Params) { p.EliteSize = -1 }},
		{"elite size above population", func(p *Params) { p.EliteSize = p.PopulationSize + 1 }},
		{"zero tournament", func(p *Params) { p.TournamentSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			tt.mutate(&params)
			_, err := New(fourPointSpace(t), optimization.EvaluatorFunc(linearScore), params, testConfig(1))
			require.Error(t, err)
			assert.True(t, errors.Is(err, optimization.ErrInvalidParameter))
		})
	}

	params := DefaultParams()
	params.EliteSize = params.PopulationSize
	_, err := New(fourPointSpace(t), optimization.EvaluatorFunc(linearScore), params, testConfig(1))
	assert.NoError(t, err, "elite_size == population_size is a valid frozen configuration")
}

func TestGeneticConvergesOnFourPointSpace(t *testing.T) {
	params := Params{PopulationSize: 4, Generations: 3, EliteSize: 1, MutationRate: 0, TournamentSize: 3}
	ga, err := New(fourPointSpace(t), optimization.EvaluatorFunc(linearScore), params, testConfig(7))
	require.NoError(t, err)

	res := ga.Optimize(context.Background())
	require.NotNil(t, res.BestScore)
	assert.Equal(t, 11.0, *res.BestScore)
	assert.True(t, res.BestCandidate.Equal(optimization.NewCandidate(1, 1)))
	assert.Equal(t, Name, res.AlgorithmName)

	require.Len(t, res.Generations, 4)
	for i := 1; i < len(res.Generations); i++ {
		assert.GreaterOrEqual(t, res.Generations[i].Best, res.Generations[i-1].Best)
	}
	assert.Equal(t, 11.0, res.Generations[3].Best)
	assert.LessOrEqual(t, len(res.Trials), params.PopulationSize*(1+params.Generations))
}

func TestGeneticBreedsFromEvaluatedPopulation(t *testing.T) {
	params := Params{PopulationSize: 5, Generations: 4, EliteSize: 1, MutationRate: 0.3, TournamentSize: 2}
	ga, err := New(richSpace(t), optimization.EvaluatorFunc(linearScore), params, testConfig(11))
	require.NoError(t, err)

	res := ga.Optimize(context.Background())
	assert.False(t, res.Interrupted)
	require.Len(t, res.Generations, params.Generations+1)
	for i, g := range res.Generations {
		assert.Equal(t, i, g.Generation)
		assert.Equal(t, params.PopulationSize, g.Size)
	}
	for _, tr := range res.Trials {
		require.True(t, tr.HasGeneration())
		assert.GreaterOrEqual(t, tr.Generation, 0)
		assert.LessOrEqual(t, tr.Generation, params.Generations)
	}
}

func TestGeneticElitismNeverRegresses(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		params := Params{PopulationSize: 6, Generations: 6, EliteSize: 2, MutationRate: 0.5, TournamentSize: 2}
		eval := optimization.EvaluatorFunc(func(_ context.Context, c optimization.Candidate, _ *optimization.SearchSpace) (float64, error) {
			return float64(c.RoleIndex()) + 0.3*float64(c.StyleIndex()) + 0.1*float64(c.NumTechniques()), nil
		})
		ga, err := New(richSpace(t), eval, params, testConfig(seed))
		require.NoError(t, err)

		res := ga.Optimize(context.Background())
		require.Len(t, res.Generations, params.Generations+1)
		for i, g := range res.Generations {
			assert.Equal(t, params.PopulationSize, g.Size, "population size at generation %d", i)
			if i > 0 {
				assert.GreaterOrEqual(t, g.Best, res.Generations[i-1].Best)
				assert.GreaterOrEqual(t, g.BestSoFar, res.Generations[i-1].BestSoFar)
			}
		}
		assert.LessOrEqual(t, len(res.Trials), params.PopulationSize*(1+params.Generations))
		for i, tr := range res.Trials {
			assert.Equal(t, i, tr.Iteration)
			assert.True(t, tr.HasGeneration())
		}
	}
}

func TestGeneticFrozenPopulation(t *testing.T) {
	params := Params{PopulationSize: 3, Generations: 4, EliteSize: 3, MutationRate: 1, TournamentSize: 3}
	ga, err := New(richSpace(t), optimization.EvaluatorFunc(linearScore), params, testConfig(3))
	require.NoError(t, err)

	res := ga.Optimize(context.Background())
	assert.Len(t, res.Trials, 3, "no offspring are produced")
	for _, tr := range res.Trials {
		assert.Equal(t, 0, tr.Generation)
	}
	require.Len(t, res.Generations, 5)
	for _, g := range res.Generations {
		assert.Equal(t, res.Generations[0].Best, g.Best)
		assert.Equal(t, res.Generations[0].Mean, g.Mean)
	}
	assert.Positive(t, res.CacheHits)
}

func TestGeneticWithFailingCandidate(t *testing.T) {
	bad := optimization.NewCandidate(1, 1)
	var badCalls int
	eval := optimization.EvaluatorFunc(func(ctx context.Context, c optimization.Candidate, s *optimization.SearchSpace) (float64, error) {
		if c.Equal(bad) {
			badCalls++
			return 0, errors.New("model timeout")
		}
		return linearScore(ctx, c, s)
	})

	params := Params{PopulationSize: 4, Generations: 2, EliteSize: 1, MutationRate: 0, TournamentSize: 2}
	ga, err := New(fourPointSpace(t), eval, params, testConfig(11))
	require.NoError(t, err)

	res := ga.Optimize(context.Background())
	require.NotNil(t, res.BestScore)
	assert.Equal(t, 10.0, *res.BestScore)
	assert.Equal(t, 3, badCalls, "one attempt plus two retries")
	assert.Equal(t, 1, res.FailedCount())
}

func TestGeneticAllFailed(t *testing.T) {
	eval := optimization.EvaluatorFunc(func(context.Context, optimization.Candidate, *optimization.SearchSpace) (float64, error) {
		return 0, optimization.Permanent(errors.New("rejected"))
	})
	params := Params{PopulationSize: 4, Generations: 2, EliteSize: 1, MutationRate: 0.1, TournamentSize: 2}
	ga, err := New(richSpace(t), eval, params, testConfig(5))
	require.NoError(t, err)

	res := ga.Optimize(context.Background())
	assert.Nil(t, res.BestCandidate)
	assert.Nil(t, res.BestScore)
	assert.NotEmpty(t, res.Trials)
	for _, g := range res.Generations {
		assert.Zero(t, g.Scored)
	}
}

func TestGeneticCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ga, err := New(richSpace(t), optimization.EvaluatorFunc(linearScore), DefaultParams(), testConfig(1))
	require.NoError(t, err)

	res := ga.Optimize(ctx)
	assert.True(t, res.Interrupted)
	assert.Empty(t, res.Trials)
	assert.Empty(t, res.Generations)
}

func TestRankOrdersFailedLast(t *testing.T) {
	pop := []member{
		{trial: optimization.Trial{Score: 1}},
		{trial: optimization.Trial{Failed: true}},
		{trial: optimization.Trial{Score: 5}},
		{trial: optimization.Trial{Score: 1}},
	}
	assert.Equal(t, []int{2, 0, 3, 1}, rank(pop))
}

func TestCrossoverInheritsFromParents(t *testing.T) {
	space := richSpace(t)
	rng := rand.New(rand.NewSource(9))
	b := &breeder{
		space:   space,
		sampler: optimization.NewSampler(space, rng, 0),
		params:  DefaultParams(),
		rng:     rng,
	}

	p1 := optimization.NewCandidate(0, 1, 0, 2)
	p2 := optimization.NewCandidate(3, 2, 2, 4)
	for i := 0; i < 200; i++ {
		child := b.crossover(p1, p2)
		assert.Contains(t, []int{0, 3}, child.RoleIndex())
		assert.Contains(t, []int{1, 2}, child.StyleIndex())
		assert.True(t, child.HasTechnique(2), "shared technique is always inherited")
		for _, tech := range child.TechniqueIndices() {
			assert.True(t, p1.HasTechnique(tech) || p2.HasTechnique(tech))
		}
	}

	empty1 := optimization.NewCandidate(0, 0)
	empty2 := optimization.NewCandidate(1, 1)
	for i := 0; i < 50; i++ {
		assert.True(t, space.Contains(b.crossover(empty1, empty2)))
	}
}

func TestTournamentPrefersBetterRanks(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	b := &breeder{params: Params{TournamentSize: 3}, rng: rng}
	ranked := []int{7, 3, 5, 1, 0}

	wins := make(map[int]int)
	for i := 0; i < 2000; i++ {
		wins[b.tournament(ranked)]++
	}
	assert.Greater(t, wins[7], wins[3])
	assert.Greater(t, wins[3], wins[0])
}
