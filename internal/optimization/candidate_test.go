package optimization

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateEquality(t *testing.T) {
	a := NewCandidate(1, 0, 2, 0, 2)
	b := NewCandidate(1, 0, 0, 2)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "1:0:[0,2]", a.Key())
	assert.Equal(t, []int{0, 2}, a.TechniqueIndices())

	assert.False(t, a.Equal(NewCandidate(1, 0, 0)))
	assert.False(t, a.Equal(NewCandidate(0, 0, 0, 2)))
	assert.True(t, NewCandidate(0, 0).Equal(NewCandidate(0, 0, []int{}...)))
}

func TestCandidateTransformsReturnCopies(t *testing.T) {
	base := NewCandidate(0, 0, 1, 3)

	role := base.WithRole(2)
	style := base.WithStyle(1)
	techs := base.WithTechniques(4)

	assert.Equal(t, 0, base.RoleIndex())
	assert.Equal(t, 0, base.StyleIndex())
	assert.Equal(t, []int{1, 3}, base.TechniqueIndices())

	assert.Equal(t, 2, role.RoleIndex())
	assert.Equal(t, 1, style.StyleIndex())
	assert.Equal(t, []int{4}, techs.TechniqueIndices())

	out := base.TechniqueIndices()
	out[0] = 99
	assert.True(t, base.HasTechnique(1))
	assert.False(t, base.HasTechnique(99))
}

func TestCandidateNames(t *testing.T) {
	space, err := NewSearchSpace([]string{"expert", "tutor"}, []string{"formal"}, []string{"cot", "few-shot", "critique"})
	require.NoError(t, err)

	names := NewCandidate(1, 0, 2, 0).Names(space)
	assert.Equal(t, "tutor", names.Role)
	assert.Equal(t, "formal", names.Style)
	assert.Equal(t, []string{"cot", "critique"}, names.Techniques)
}

func TestCandidateJSON(t *testing.T) {
	c := NewCandidate(1, 2, 3, 0)
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role_index":1,"style_index":2,"technique_indices":[0,3]}`, string(data))

	var back Candidate
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, c.Equal(back))

	data, err = json.Marshal(NewCandidate(0, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role_index":0,"style_index":0,"technique_indices":[]}`, string(data))
}
