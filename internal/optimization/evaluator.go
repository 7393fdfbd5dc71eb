package optimization

import "context"

// Evaluator scores a candidate. Implementations may be slow and noisy;
// repeated calls for the same candidate may return different scores. A
// non-nil error marks the attempt as failed. Wrap an error with Permanent to
// stop the cache from retrying it.
//
// The context passed to Evaluate is never cancelled by the optimizer: an
// evaluation that has started always runs to completion.
type Evaluator interface {
	Evaluate(ctx context.Context, c Candidate, space *SearchSpace) (float64, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, c Candidate, space *SearchSpace) (float64, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, c Candidate, space *SearchSpace) (float64, error) {
	return f(ctx, c, space)
}
