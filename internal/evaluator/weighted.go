package evaluator

import (
	"context"

	"github.com/copyleftdev/promptsearch/internal/optimization"
)

// Weights assigns a score contribution to option names. Unlisted names
// contribute zero.
type Weights struct {
	Roles      map[string]float64 `json:"roles"`
	Styles     map[string]float64 `json:"styles"`
	Techniques map[string]float64 `json:"techniques"`
}

// WeightedEvaluator scores a candidate as the sum of the weights of its role,
// its style and each selected technique. It is deterministic.
type WeightedEvaluator struct {
	weights Weights
}

var _ optimization.Evaluator = (*WeightedEvaluator)(nil)

func NewWeightedEvaluator(w Weights) *WeightedEvaluator {
	return &WeightedEvaluator{weights: w}
}

// Evaluate implements optimization.Evaluator.
func (e *WeightedEvaluator) Evaluate(_ context.Context, c optimization.Candidate, space *optimization.SearchSpace) (float64, error) {
	names := c.Names(space)
	score := e.weights.Roles[names.Role] + e.weights.Styles[names.Style]
	for _, t := range names.Techniques {
		score += e.weights.Techniques[t]
	}
	return score, nil
}
