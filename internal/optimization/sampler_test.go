package optimization

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplerStaysInSpace(t *testing.T) {
	space := testSpace(t)
	s := NewSampler(space, rand.New(rand.NewSource(1)), 0)

	sizes := make(map[int]int)
	for i := 0; i < 500; i++ {
		c := s.Sample()
		require.True(t, space.Contains(c))
		sizes[c.NumTechniques()]++
	}
	// Every subset size 0..|T| is reachable.
	for k := 0; k <= space.NumTechniques(); k++ {
		assert.Positive(t, sizes[k], "subset size %d never drawn", k)
	}
}

func TestSamplerWithoutTechniques(t *testing.T) {
	space, err := NewSearchSpace([]string{"a", "b"}, []string{"x"}, nil)
	require.NoError(t, err)
	s := NewSampler(space, rand.New(rand.NewSource(2)), 1)

	for i := 0; i < 20; i++ {
		assert.Zero(t, s.Sample().NumTechniques())
	}
}

func TestSamplerDiversityBalancesUsage(t *testing.T) {
	space, err := NewSearchSpace([]string{"a"}, []string{"x"}, []string{"t0", "t1", "t2", "t3", "t4"})
	require.NoError(t, err)
	s := NewSampler(space, rand.New(rand.NewSource(3)), 1)

	for i := 0; i < 200; i++ {
		s.Sample()
	}
	lo, hi := s.usage[0], s.usage[0]
	for _, n := range s.usage {
		lo = min(lo, n)
		hi = max(hi, n)
	}
	assert.LessOrEqual(t, hi-lo, 1)
}

func TestSamplerIsDeterministicForSeed(t *testing.T) {
	space := testSpace(t)
	a := NewSampler(space, rand.New(rand.NewSource(42)), 0.5)
	b := NewSampler(space, rand.New(rand.NewSource(42)), 0.5)
	for i := 0; i < 50; i++ {
		assert.True(t, a.Sample().Equal(b.Sample()))
	}
}
