package acquisition

// DefaultKappa is the default exploration weight for UpperConfidenceBound,
// the 99% two-sided normal quantile.
const DefaultKappa = 2.576

// UpperConfidenceBound scores mu + kappa*sigma.
type UpperConfidenceBound struct {
	kappa float64
}

// NewUpperConfidenceBound creates a UCB acquisition function.
func NewUpperConfidenceBound(kappa float64) *UpperConfidenceBound {
	return &UpperConfidenceBound{kappa: kappa}
}

// Compute returns mu + kappa*sigma.
func (u *UpperConfidenceBound) Compute(mu, sigma float64) float64 {
	return mu + u.kappa*sigma
}

// UpdateBest is a no-op; UCB does not depend on the incumbent.
func (u *UpperConfidenceBound) UpdateBest(float64) {}

// Kappa returns the exploration weight.
func (u *UpperConfidenceBound) Kappa() float64 { return u.kappa }
