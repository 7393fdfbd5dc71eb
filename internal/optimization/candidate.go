package optimization

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Candidate is one selection from a SearchSpace: a role index, a style
// index, and a set of technique indices. Candidates are values; two
// candidates are equal when their selections are equal.
type Candidate struct {
	roleIndex  int
	styleIndex int
	// techniques is sorted ascending with no duplicates.
	techniques []int
}

// NewCandidate builds a candidate. Technique indices are deduplicated and
// sorted, so the order they are passed in does not matter.
func NewCandidate(roleIndex, styleIndex int, techniqueIndices ...int) Candidate {
	return Candidate{
		roleIndex:  roleIndex,
		styleIndex: styleIndex,
		techniques: normalizeSet(techniqueIndices),
	}
}

func normalizeSet(indices []int) []int {
	if len(indices) == 0 {
		return nil
	}
	out := append([]int(nil), indices...)
	sort.Ints(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

// RoleIndex returns the selected role index.
func (c Candidate) RoleIndex() int { return c.roleIndex }

// StyleIndex returns the selected style index.
func (c Candidate) StyleIndex() int { return c.styleIndex }

// TechniqueIndices returns a sorted copy of the selected technique indices.
func (c Candidate) TechniqueIndices() []int { return append([]int(nil), c.techniques...) }

// HasTechnique reports whether technique t is selected.
func (c Candidate) HasTechnique(t int) bool {
	i := sort.SearchInts(c.techniques, t)
	return i < len(c.techniques) && c.techniques[i] == t
}

// NumTechniques returns the size of the technique set.
func (c Candidate) NumTechniques() int { return len(c.techniques) }

// WithRole returns a copy of c with the role replaced.
func (c Candidate) WithRole(roleIndex int) Candidate {
	c.techniques = append([]int(nil), c.techniques...)
	c.roleIndex = roleIndex
	return c
}

// WithStyle returns a copy of c with the style replaced.
func (c Candidate) WithStyle(styleIndex int) Candidate {
	c.techniques = append([]int(nil), c.techniques...)
	c.styleIndex = styleIndex
	return c
}

// WithTechniques returns a copy of c with the technique set replaced.
func (c Candidate) WithTechniques(techniqueIndices ...int) Candidate {
	c.techniques = normalizeSet(techniqueIndices)
	return c
}

// Equal reports whether c and o select the same role, style and techniques.
func (c Candidate) Equal(o Candidate) bool {
	if c.roleIndex != o.roleIndex || c.styleIndex != o.styleIndex || len(c.techniques) != len(o.techniques) {
		return false
	}
	for i := range c.techniques {
		if c.techniques[i] != o.techniques[i] {
			return false
		}
	}
	return true
}

// Key returns a stable string identity for c, e.g. "1:0:[0,2]". Equal
// candidates have equal keys.
func (c Candidate) Key() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(c.roleIndex))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(c.styleIndex))
	b.WriteString(":[")
	for i, t := range c.techniques {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(t))
	}
	b.WriteByte(']')
	return b.String()
}

// String implements fmt.Stringer.
func (c Candidate) String() string { return c.Key() }

// CandidateNames is the human-readable form of a candidate.
type CandidateNames struct {
	Role       string   `json:"role"`
	Style      string   `json:"style"`
	Techniques []string `json:"techniques"`
}

// Names resolves the candidate's indices against space. The candidate must
// be valid for space.
func (c Candidate) Names(space *SearchSpace) CandidateNames {
	names := CandidateNames{
		Role:       space.Role(c.roleIndex),
		Style:      space.Style(c.styleIndex),
		Techniques: make([]string, 0, len(c.techniques)),
	}
	for _, t := range c.techniques {
		names.Techniques = append(names.Techniques, space.Technique(t))
	}
	return names
}

type candidateJSON struct {
	RoleIndex        int   `json:"role_index"`
	StyleIndex       int   `json:"style_index"`
	TechniqueIndices []int `json:"technique_indices"`
}

// MarshalJSON implements json.Marshaler.
func (c Candidate) MarshalJSON() ([]byte, error) {
	techniques := c.techniques
	if techniques == nil {
		techniques = []int{}
	}
	return json.Marshal(candidateJSON{
		RoleIndex:        c.roleIndex,
		StyleIndex:       c.styleIndex,
		TechniqueIndices: techniques,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var raw candidateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = NewCandidate(raw.RoleIndex, raw.StyleIndex, raw.TechniqueIndices...)
	return nil
}
