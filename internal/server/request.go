package server

import (
	"time"

	apierrors "github.com/copyleftdev/promptsearch/internal/errors"
	"github.com/copyleftdev/promptsearch/internal/evaluator"
	"github.com/copyleftdev/promptsearch/internal/optimization"
	"github.com/copyleftdev/promptsearch/internal/optimization/acquisition"
	"github.com/copyleftdev/promptsearch/internal/optimization/bayesian"
	"github.com/copyleftdev/promptsearch/internal/optimization/genetic"
	"github.com/copyleftdev/promptsearch/internal/optimization/kernels"
	"github.com/copyleftdev/promptsearch/internal/optimization/random"
)

// Algorithm names accepted in requests, besides the full result names.
const (
	AlgorithmRandom   = "random"
	AlgorithmGenetic  = "genetic"
	AlgorithmBayesian = "bayesian"
)

// OptimizeRequest starts an optimization job. Absent numeric fields take the
// algorithm defaults.
type OptimizeRequest struct {
	Template   string   `json:"template"`
	Roles      []string `json:"roles"`
	Styles     []string `json:"styles"`
	Techniques []string `json:"techniques"`
	Algorithm  string   `json:"algorithm"`

	// Weights selects the static evaluator. Without it the server's remote
	// evaluator is used.
	Weights *evaluator.Weights `json:"weights,omitempty"`

	Seed               int64   `json:"seed,omitempty"`
	Workers            *int    `json:"workers,omitempty"`
	MaxDurationSeconds float64 `json:"max_duration_seconds,omitempty"`
	Diversity          float64 `json:"diversity,omitempty"`

	// random and bayesian
	NIterations *int `json:"n_iterations,omitempty"`

	// genetic
	PopulationSize *int     `json:"population_size,omitempty"`
	Generations    *int     `json:"generations,omitempty"`
	MutationRate   *float64 `json:"mutation_rate,omitempty"`
	EliteSize      *int     `json:"elite_size,omitempty"`
	TournamentSize *int     `json:"tournament_size,omitempty"`

	// bayesian
	NInitialPoints *int     `json:"n_initial_points,omitempty"`
	Acquisition    string   `json:"acquisition,omitempty"`
	Xi             *float64 `json:"xi,omitempty"`
	Kappa          *float64 `json:"kappa,omitempty"`
	Kernel         string   `json:"kernel,omitempty"`
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// plan is a validated request, ready to run.
type plan struct {
	space    *optimization.SearchSpace
	strategy optimization.Strategy
	// budget is the maximum number of trials the strategy can produce.
	budget int
}

// build validates the request and constructs its strategy. remote may be nil.
func (s *Server) build(req OptimizeRequest, run optimization.RunConfig, remote optimization.Evaluator) (*plan, error) {
	const op = "build"

	space, err := optimization.NewSearchSpace(req.Roles, req.Styles, req.Techniques)
	if err != nil {
		return nil, apierrors.Wrap(err, "invalid search space").WithOperation(op)
	}

	var eval optimization.Evaluator
	switch {
	case req.Weights != nil:
		eval = evaluator.NewWeightedEvaluator(*req.Weights)
	case remote != nil:
		eval = remote
	default:
		return nil, apierrors.New(apierrors.CodeInvalidParams, "weights are required when no remote evaluator is configured").
			WithOperation(op)
	}

	run.Template = req.Template
	if req.Seed != 0 {
		run.RandomSeed = req.Seed
	}
	if req.Workers != nil {
		run.Workers = *req.Workers
	}
	if req.MaxDurationSeconds < 0 {
		return nil, apierrors.New(apierrors.CodeInvalidParams, "max_duration_seconds must be >= 0").WithOperation(op)
	}
	if req.MaxDurationSeconds > 0 {
		run.MaxDuration = time.Duration(req.MaxDurationSeconds * float64(time.Second))
	}

	p := &plan{space: space}
	switch req.Algorithm {
	case AlgorithmRandom, random.Name:
		params := random.DefaultParams()
		setInt(&params.NIterations, req.NIterations)
		params.Diversity = req.Diversity
		p.strategy, err = random.New(space, eval, params, run)
		p.budget = params.NIterations

	case AlgorithmGenetic, genetic.Name:
		params := genetic.DefaultParams()
		setInt(&params.PopulationSize, req.PopulationSize)
		setInt(&params.Generations, req.Generations)
		setFloat(&params.MutationRate, req.MutationRate)
		setInt(&params.EliteSize, req.EliteSize)
		setInt(&params.TournamentSize, req.TournamentSize)
		params.Diversity = req.Diversity
		p.strategy, err = genetic.New(space, eval, params, run)
		p.budget = params.PopulationSize * (params.Generations + 1)

	case "", AlgorithmBayesian, bayesian.Name:
		params := bayesian.DefaultParams()
		params.MaxCandidates = s.cfg.Optimization.MaxAcquisitionCandidates
		setInt(&params.NIterations, req.NIterations)
		setInt(&params.NInitialPoints, req.NInitialPoints)
		setFloat(&params.Xi, req.Xi)
		setFloat(&params.Kappa, req.Kappa)
		params.Diversity = req.Diversity
		if req.Acquisition != "" {
			kind, kerr := acquisition.ParseKind(req.Acquisition)
			if kerr != nil {
				return nil, apierrors.Errorf(apierrors.CodeInvalidParams, "%v", kerr).WithOperation(op)
			}
			params.Acquisition = kind
		}
		if req.Kernel != "" {
			params.Kernel = kernels.Name(req.Kernel)
		}
		p.strategy, err = bayesian.New(space, eval, params, run)
		p.budget = params.NIterations

	default:
		return nil, apierrors.Errorf(apierrors.CodeInvalidParams, "unknown algorithm %q", req.Algorithm).WithOperation(op)
	}
	if err != nil {
		return nil, apierrors.Wrap(err, "invalid parameters").WithOperation(op)
	}

	if size := space.Size(); p.budget > size {
		p.budget = size
	}
	return p, nil
}
