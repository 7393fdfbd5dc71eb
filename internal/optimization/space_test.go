package optimization

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSearchSpace(t *testing.T) {
	tests := []struct {
		name       string
		roles      []string
		styles     []string
		techniques []string
		wantErr    bool
	}{
		{name: "valid", roles: []string{"expert", "tutor"}, styles: []string{"concise"}, techniques: []string{"cot"}},
		{name: "no techniques", roles: []string{"expert"}, styles: []string{"concise"}},
		{name: "empty roles", roles: nil, styles: []string{"concise"}, wantErr: true},
		{name: "empty styles", roles: []string{"expert"}, styles: []string{}, wantErr: true},
		{name: "duplicate role", roles: []string{"expert", "expert"}, styles: []string{"concise"}, wantErr: true},
		{name: "blank technique", roles: []string{"expert"}, styles: []string{"concise"}, techniques: []string{""}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			space, err := NewSearchSpace(tt.roles, tt.styles, tt.techniques)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidSearchSpace))
				assert.Nil(t, space)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.roles), space.NumRoles())
			assert.Equal(t, len(tt.styles), space.NumStyles())
			assert.Equal(t, len(tt.techniques), space.NumTechniques())
		})
	}
}

func TestSearchSpaceIsImmutable(t *testing.T) {
	roles := []string{"a", "b"}
	space, err := NewSearchSpace(roles, []string{"x"}, nil)
	require.NoError(t, err)

	roles[0] = "changed"
	assert.Equal(t, "a", space.Role(0))

	got := space.Roles()
	got[1] = "changed"
	assert.Equal(t, "b", space.Role(1))
}

func TestSearchSpaceSize(t *testing.T) {
	space, err := NewSearchSpace([]string{"a", "b"}, []string{"x", "y", "z"}, []string{"t1", "t2"})
	require.NoError(t, err)
	assert.Equal(t, 2*3*4, space.Size())

	names := make([]string, 70)
	for i := range names {
		names[i] = string(rune('A'+i%26)) + string(rune('a'+i/26))
	}
	big, err := NewSearchSpace([]string{"a"}, []string{"x"}, names)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, big.Size())
}

func TestCandidateAtEnumeratesSpace(t *testing.T) {
	space, err := NewSearchSpace([]string{"a", "b"}, []string{"x", "y"}, []string{"t1", "t2", "t3"})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < space.Size(); i++ {
		c := space.CandidateAt(i)
		require.True(t, space.Contains(c))
		seen[c.Key()] = true
	}
	assert.Len(t, seen, space.Size())

	first := space.CandidateAt(0)
	assert.True(t, first.Equal(NewCandidate(0, 0)))
	last := space.CandidateAt(space.Size() - 1)
	assert.True(t, last.Equal(NewCandidate(1, 1, 0, 1, 2)))
}

func TestCandidateAtSaturatedSpace(t *testing.T) {
	for _, n := range []int{62, 63, 64, 70} {
		names := make([]string, n)
		for i := range names {
			names[i] = string(rune('A'+i%26)) + string(rune('a'+i/26))
		}
		space, err := NewSearchSpace([]string{"a", "b"}, []string{"x", "y"}, names)
		require.NoError(t, err)

		c := space.CandidateAt(5)
		assert.True(t, space.Contains(c), "techniques=%d", n)
		assert.True(t, c.Equal(NewCandidate(0, 0, 0, 2)), "techniques=%d", n)

		last := space.CandidateAt(space.Size() - 1)
		assert.True(t, space.Contains(last), "techniques=%d", n)
	}
}

func TestSearchSpaceContains(t *testing.T) {
	space, err := NewSearchSpace([]string{"a", "b"}, []string{"x"}, []string{"t"})
	require.NoError(t, err)

	assert.True(t, space.Contains(NewCandidate(1, 0, 0)))
	assert.False(t, space.Contains(NewCandidate(2, 0)))
	assert.False(t, space.Contains(NewCandidate(0, 1)))
	assert.False(t, space.Contains(NewCandidate(0, 0, 1)))
	assert.False(t, space.Contains(NewCandidate(-1, 0)))
}
