package acquisition

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultXi is the default exploration margin for ExpectedImprovement.
const DefaultXi = 0.01

// ExpectedImprovement implements the Expected Improvement acquisition function
// for maximization.
type ExpectedImprovement struct {
	// Best observed value so far
	bestObserved float64
	// Exploration-exploitation trade-off parameter (xi)
	xi float64
}

// NewExpectedImprovement creates a new ExpectedImprovement acquisition function.
func NewExpectedImprovement(bestObserved, xi float64) *ExpectedImprovement {
	return &ExpectedImprovement{
		bestObserved: bestObserved,
		xi:           xi,
	}
}

// Compute computes the Expected Improvement at a point
// mu: mean prediction at x
// sigma: standard deviation of prediction at x
// Returns the expected improvement value (always non-negative)
func (ei *ExpectedImprovement) Compute(mu, sigma float64) float64 {
	improvement := mu - ei.bestObserved - ei.xi

	// With no uncertainty the improvement is known exactly
	if sigma <= 1e-10 {
		if improvement <= 0 {
			return 0
		}
		return improvement
	}

	// EI = improvement * Φ(z) + sigma * φ(z)
	z := improvement / sigma
	value := improvement*distuv.UnitNormal.CDF(z) + sigma*distuv.UnitNormal.Prob(z)
	if value < 0 {
		return 0
	}
	return value
}

// UpdateBest updates the best observed value
func (ei *ExpectedImprovement) UpdateBest(best float64) {
	ei.bestObserved = best
}
