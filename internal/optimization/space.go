package optimization

import (
	"math"
	"math/bits"
)

// SearchSpace describes the selectable roles, styles, and techniques a
// candidate is drawn from. It is immutable once constructed.
type SearchSpace struct {
	roles      []string
	styles     []string
	techniques []string
}

// NewSearchSpace validates the three name lists and returns a search space.
// Roles and styles must each be non-empty; techniques may be empty. Names
// within a dimension must be unique and non-blank.
func NewSearchSpace(roles, styles, techniques []string) (*SearchSpace, error) {
	const op = "NewSearchSpace"

	if len(roles) == 0 {
		return nil, NewError("roles must not be empty").WithKind(ErrInvalidSearchSpace).WithOperation(op)
	}
	if len(styles) == 0 {
		return nil, NewError("styles must not be empty").WithKind(ErrInvalidSearchSpace).WithOperation(op)
	}
	if err := checkUnique("roles", roles); err != nil {
		return nil, err.WithOperation(op)
	}
	if err := checkUnique("styles", styles); err != nil {
		return nil, err.WithOperation(op)
	}
	if err := checkUnique("techniques", techniques); err != nil {
		return nil, err.WithOperation(op)
	}

	return &SearchSpace{
		roles:      append([]string(nil), roles...),
		styles:     append([]string(nil), styles...),
		techniques: append([]string(nil), techniques...),
	}, nil
}

func checkUnique(dim string, names []string) *Error {
	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		if name == "" {
			return NewErrorf("%s[%d] is empty", dim, i).WithKind(ErrInvalidSearchSpace)
		}
		if _, dup := seen[name]; dup {
			return NewErrorf("duplicate %s entry %q", dim, name).WithKind(ErrInvalidSearchSpace)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Roles returns a copy of the role names.
func (s *SearchSpace) Roles() []string { return append([]string(nil), s.roles...) }

// Styles returns a copy of the style names.
func (s *SearchSpace) Styles() []string { return append([]string(nil), s.styles...) }

// Techniques returns a copy of the technique names.
func (s *SearchSpace) Techniques() []string { return append([]string(nil), s.techniques...) }

// NumRoles returns the number of roles.
func (s *SearchSpace) NumRoles() int { return len(s.roles) }

// NumStyles returns the number of styles.
func (s *SearchSpace) NumStyles() int { return len(s.styles) }

// NumTechniques returns the number of techniques.
func (s *SearchSpace) NumTechniques() int { return len(s.techniques) }

// Role returns the role name at index i.
func (s *SearchSpace) Role(i int) string { return s.roles[i] }

// Style returns the style name at index i.
func (s *SearchSpace) Style(i int) string { return s.styles[i] }

// Technique returns the technique name at index i.
func (s *SearchSpace) Technique(i int) string { return s.techniques[i] }

// Size returns the number of distinct candidates, roles × styles ×
// 2^techniques. It saturates at math.MaxInt.
func (s *SearchSpace) Size() int {
	if len(s.techniques) >= bits.UintSize-1 {
		return math.MaxInt
	}
	hi, lo := bits.Mul(uint(len(s.roles)*len(s.styles)), uint(1)<<len(s.techniques))
	if hi != 0 || lo > math.MaxInt {
		return math.MaxInt
	}
	return int(lo)
}

// CandidateAt decodes index i in [0, Size()) as a mixed-radix number:
// technique subset bits vary fastest, then style, then role. When the
// subset count does not fit in an int, Size saturates and every index
// decodes to role 0 and style 0.
func (s *SearchSpace) CandidateAt(i int) Candidate {
	mask, style, role := i, 0, 0
	if len(s.techniques) < bits.UintSize-1 {
		subsets := 1 << len(s.techniques)
		mask = i % subsets
		i /= subsets
		style = i % len(s.styles)
		role = i / len(s.styles)
	}

	techniques := make([]int, 0, bits.OnesCount(uint(mask)))
	for t := 0; t < len(s.techniques); t++ {
		if mask&(1<<t) != 0 {
			techniques = append(techniques, t)
		}
	}
	return Candidate{roleIndex: role, styleIndex: style, techniques: techniques}
}

// Contains reports whether every index of c is in range for this space.
func (s *SearchSpace) Contains(c Candidate) bool {
	if c.roleIndex < 0 || c.roleIndex >= len(s.roles) {
		return false
	}
	if c.styleIndex < 0 || c.styleIndex >= len(s.styles) {
		return false
	}
	for _, t := range c.techniques {
		if t < 0 || t >= len(s.techniques) {
			return false
		}
	}
	return true
}
