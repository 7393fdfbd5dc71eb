package bayesian

import (
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/promptsearch/internal/optimization"
)

// Encoder maps candidates to feature vectors: a one-hot block for the role,
// a one-hot block for the style, and a multi-hot block for the techniques.
// Distinct candidates of one space always encode to distinct vectors.
type Encoder struct {
	roles, styles, techniques int
}

// NewEncoder creates an encoder for space.
func NewEncoder(space *optimization.SearchSpace) *Encoder {
	return &Encoder{
		roles:      space.NumRoles(),
		styles:     space.NumStyles(),
		techniques: space.NumTechniques(),
	}
}

// Dim returns the feature vector length.
func (e *Encoder) Dim() int { return e.roles + e.styles + e.techniques }

// Encode writes the features of c into dst, which must have length Dim or
// be nil, and returns it.
func (e *Encoder) Encode(dst []float64, c optimization.Candidate) []float64 {
	if dst == nil {
		dst = make([]float64, e.Dim())
	} else {
		for i := range dst {
			dst[i] = 0
		}
	}
	dst[c.RoleIndex()] = 1
	dst[e.roles+c.StyleIndex()] = 1
	for _, t := range c.TechniqueIndices() {
		dst[e.roles+e.styles+t] = 1
	}
	return dst
}

// Decode inverts Encode.
func (e *Encoder) Decode(x []float64) optimization.Candidate {
	role, style := argmax(x[:e.roles]), argmax(x[e.roles:e.roles+e.styles])
	var techniques []int
	for t, v := range x[e.roles+e.styles:] {
		if v > 0.5 {
			techniques = append(techniques, t)
		}
	}
	return optimization.NewCandidate(role, style, techniques...)
}

// EncodeAll returns a len(cands) x Dim matrix with one encoded row per candidate.
func (e *Encoder) EncodeAll(cands []optimization.Candidate) *mat.Dense {
	if len(cands) == 0 {
		return nil
	}
	X := mat.NewDense(len(cands), e.Dim(), nil)
	for i, c := range cands {
		e.Encode(X.RawRowView(i), c)
	}
	return X
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
