package bayesian

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/promptsearch/internal/optimization"
	"github.com/copyleftdev/promptsearch/internal/optimization/kernels"
)

// BenchmarkGPFit measures fitting on encoded candidates
func BenchmarkGPFit(b *testing.B) {
	X, y := randomTrainingSet(100, 20)
	kernel, err := kernels.NewMatern52Kernel(1.0, 1.0)
	require.NoError(b, err)
	gp := NewGP(kernel, 1e-4, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = gp.Fit(X, y)
	}
}

// BenchmarkGPPredict measures acquisition-sized prediction batches
func BenchmarkGPPredict(b *testing.B) {
	X, y := randomTrainingSet(50, 20)
	kernel, err := kernels.NewMatern52Kernel(1.0, 1.0)
	require.NoError(b, err)
	gp := NewGP(kernel, 1e-4, nil)
	require.NoError(b, gp.Fit(X, y))

	test, _ := randomTrainingSet(DefaultMaxCandidates, 20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = gp.Predict(test)
	}
}

// BenchmarkOptimize measures a full run against a cheap evaluator
func BenchmarkOptimize(b *testing.B) {
	names := func(prefix string, n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = prefix + string(rune('a'+i))
		}
		return out
	}
	space, err := optimization.NewSearchSpace(names("r", 5), names("s", 5), names("t", 6))
	require.NoError(b, err)

	params := DefaultParams()
	params.NIterations = 30
	params.NInitialPoints = 5
	cfg := optimization.DefaultRunConfig()
	cfg.RandomSeed = 1

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bo, err := New(space, optimization.EvaluatorFunc(linearScore), params, cfg)
		require.NoError(b, err)
		_ = bo.Optimize(context.Background())
	}
}

func randomTrainingSet(n, dim int) (*mat.Dense, *mat.VecDense) {
	rng := rand.New(rand.NewSource(42))
	X := mat.NewDense(n, dim, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < dim; j++ {
			if rng.Float64() < 0.3 {
				X.Set(i, j, 1)
			}
		}
		y.SetVec(i, rng.NormFloat64())
	}
	return X, y
}
