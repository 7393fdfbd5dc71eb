package acquisition

import "fmt"

// Function scores a candidate from the surrogate's posterior mean and
// standard deviation. Higher is better.
type Function interface {
	// Compute returns the acquisition value at a point with posterior mean mu
	// and standard deviation sigma.
	Compute(mu, sigma float64) float64
	// UpdateBest sets the incumbent, the best score observed so far.
	UpdateBest(best float64)
}

// Kind names an acquisition function.
type Kind string

const (
	// KindExpectedImprovement selects ExpectedImprovement.
	KindExpectedImprovement Kind = "expected_improvement"
	// KindUpperConfidenceBound selects UpperConfidenceBound.
	KindUpperConfidenceBound Kind = "upper_confidence_bound"
)

// ParseKind accepts the full names and the short forms "ei" and "ucb".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "ei", "EI", string(KindExpectedImprovement):
		return KindExpectedImprovement, nil
	case "ucb", "UCB", string(KindUpperConfidenceBound):
		return KindUpperConfidenceBound, nil
	}
	return "", fmt.Errorf("unknown acquisition function %q", s)
}

// Valid reports whether k names a known acquisition function.
func (k Kind) Valid() bool {
	return k == KindExpectedImprovement || k == KindUpperConfidenceBound
}

// New builds the acquisition function for k. xi is only used by EI and
// kappa only by UCB.
func New(k Kind, xi, kappa float64) (Function, error) {
	switch k {
	case KindExpectedImprovement:
		return NewExpectedImprovement(0, xi), nil
	case KindUpperConfidenceBound:
		return NewUpperConfidenceBound(kappa), nil
	}
	return nil, fmt.Errorf("unknown acquisition function %q", k)
}
