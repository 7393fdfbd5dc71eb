package bayesian

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/promptsearch/internal/optimization"
	"github.com/copyleftdev/promptsearch/internal/optimization/kernels"
)

const (
	// Bounds for tuned kernel hyperparameters, in the standardized target scale
	minHyperparameter = 0.05
	maxHyperparameter = 20.0

	maxJitterAttempts = 8
)

// GP implements a Gaussian Process regression model over encoded candidates.
// Targets are standardized before fitting and predictions are returned in the
// original scale.
type GP struct {
	// Kernel function
	kernel kernels.Kernel

	// Noise variance in the standardized scale
	noiseVar float64

	// Training data
	X *mat.Dense // Input points (n_samples, n_features)
	y *mat.VecDense

	// Target standardization
	yMean, yStd float64

	// Precomputed values
	alpha *mat.VecDense
	chol  *mat.Cholesky

	logger *zap.Logger
}

// NewGP creates a new Gaussian Process model. A nil logger disables logging.
func NewGP(kernel kernels.Kernel, noiseVar float64, logger *zap.Logger) *GP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GP{
		kernel:   kernel,
		noiseVar: noiseVar,
		logger:   logger.Named("gaussian_process"),
	}
}

// Kernel returns the model's kernel.
func (gp *GP) Kernel() kernels.Kernel { return gp.kernel }

func fitError(op string, err error) error {
	return optimization.WrapError(err, "surrogate fit failed").
		WithKind(optimization.ErrDegenerateFit).
		WithComponent("gaussian_process").
		WithOperation(op)
}

// Fit fits the GP model to the training data
func (gp *GP) Fit(X *mat.Dense, y *mat.VecDense) error {
	const op = "GP.Fit"

	if X == nil || y == nil {
		return fitError(op, errors.New("input matrices must not be nil"))
	}

	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return fitError(op, errors.New("input matrix X must not be empty"))
	}
	if nSamples != y.Len() {
		return fitError(op, fmt.Errorf("dimension mismatch: X has %d samples but y has length %d",
			nSamples, y.Len()))
	}

	gp.logger.Debug("Fitting GP model",
		zap.Int("samples", nSamples),
		zap.Int("features", nFeatures),
		zap.Float64("noise_var", gp.noiseVar),
	)

	gp.X = mat.DenseCopyOf(X)
	gp.y = mat.VecDenseCopyOf(y)
	gp.yMean, gp.yStd = standardization(y)

	ys := mat.NewVecDense(nSamples, nil)
	for i := 0; i < nSamples; i++ {
		ys.SetVec(i, (y.AtVec(i)-gp.yMean)/gp.yStd)
	}

	chol, err := gp.factorize(gp.X)
	if err != nil {
		gp.alpha, gp.chol = nil, nil
		return fitError(op, err)
	}

	// Solve for alpha: K * alpha = y
	alpha := mat.NewVecDense(nSamples, nil)
	if err := ignoreCondition(chol.SolveVecTo(alpha, ys)); err != nil {
		gp.alpha, gp.chol = nil, nil
		return fitError(op, fmt.Errorf("failed to solve linear system: %w", err))
	}

	gp.alpha = alpha
	gp.chol = chol

	gp.logger.Debug("Successfully fitted GP model",
		zap.Int("samples", nSamples),
		zap.Float64s("hyperparameters", gp.kernel.Hyperparameters()),
	)
	return nil
}

// standardization returns the mean and a positive scale for y. Constant or
// single-point targets get a unit scale.
func standardization(y *mat.VecDense) (mean, std float64) {
	data := make([]float64, y.Len())
	for i := range data {
		data[i] = y.AtVec(i)
	}
	if len(data) < 2 {
		return stat.Mean(data, nil), 1
	}
	mean, std = stat.MeanStdDev(data, nil)
	if !(std > 1e-12) || math.IsInf(std, 0) {
		std = 1
	}
	return mean, std
}

// factorize builds the kernel matrix of X plus noise on the diagonal and
// returns its Cholesky factor, escalating diagonal jitter until the matrix
// is positive definite.
func (gp *GP) factorize(X *mat.Dense) (*mat.Cholesky, error) {
	n, _ := X.Dims()
	K := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		x1 := X.RawRowView(i)
		for j := i; j < n; j++ {
			K.SetSym(i, j, gp.kernel.Eval(x1, X.RawRowView(j)))
		}
	}

	jitter := 1e-10
	for attempt := 0; attempt < maxJitterAttempts; attempt++ {
		Kj := mat.NewSymDense(n, nil)
		Kj.CopySym(K)
		for i := 0; i < n; i++ {
			Kj.SetSym(i, i, Kj.At(i, i)+gp.noiseVar+jitter)
		}

		var chol mat.Cholesky
		if chol.Factorize(Kj) {
			if attempt > 0 {
				gp.logger.Debug("Kernel matrix needed extra jitter",
					zap.Int("attempts", attempt+1),
					zap.Float64("jitter", jitter),
				)
			}
			return &chol, nil
		}
		jitter *= 100
	}
	return nil, errors.New("Cholesky decomposition failed: matrix is not positive definite")
}

func ignoreCondition(err error) error {
	var cond mat.Condition
	if errors.As(err, &cond) {
		return nil
	}
	return err
}

// LogMarginalLikelihood returns log p(y | X) of the fitted model in the
// standardized scale.
func (gp *GP) LogMarginalLikelihood() (float64, error) {
	if gp.chol == nil || gp.alpha == nil {
		return 0, fitError("GP.LogMarginalLikelihood", errors.New("model not trained"))
	}
	n := gp.alpha.Len()
	ys := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		ys.SetVec(i, (gp.y.AtVec(i)-gp.yMean)/gp.yStd)
	}
	fit := mat.Dot(ys, gp.alpha)
	return -0.5*fit - 0.5*gp.chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi), nil
}

// FitTuned chooses the kernel hyperparameters that maximize the log marginal
// likelihood with Nelder-Mead, then fits with them. If tuning fails the
// kernel keeps its current hyperparameters.
func (gp *GP) FitTuned(X *mat.Dense, y *mat.VecDense) error {
	start := gp.kernel.Hyperparameters()
	trial := gp.kernel.Clone()
	probe := &GP{kernel: trial, noiseVar: gp.noiseVar, logger: zap.NewNop()}

	decode := func(x []float64) []float64 {
		out := make([]float64, len(x))
		for i, v := range x {
			out[i] = math.Exp(clamp(v, math.Log(minHyperparameter), math.Log(maxHyperparameter)))
		}
		return out
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if err := trial.SetHyperparameters(decode(x)); err != nil {
				return 1e10
			}
			if err := probe.Fit(X, y); err != nil {
				return 1e10
			}
			lml, err := probe.LogMarginalLikelihood()
			if err != nil || math.IsNaN(lml) || math.IsInf(lml, 0) {
				return 1e10
			}
			return -lml
		},
	}

	initial := make([]float64, len(start))
	for i, v := range start {
		initial[i] = math.Log(v)
	}

	settings := &optimize.Settings{
		MajorIterations: 60,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-4,
			Relative:   1e-4,
			Iterations: 10,
		},
	}
	method := &optimize.NelderMead{SimplexSize: 0.5}

	result, err := optimize.Minimize(problem, initial, settings, method)
	if err == nil && result != nil && result.F < 1e10 {
		if serr := gp.kernel.SetHyperparameters(decode(result.X)); serr == nil {
			gp.logger.Debug("Tuned kernel hyperparameters",
				zap.Float64s("hyperparameters", gp.kernel.Hyperparameters()),
				zap.Float64("neg_log_likelihood", result.F),
			)
		}
	} else {
		gp.logger.Debug("Hyperparameter tuning failed, keeping current values", zap.Error(err))
		_ = gp.kernel.SetHyperparameters(start)
	}

	return gp.Fit(X, y)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// Predict returns the posterior mean and standard deviation at each row of X,
// in the original target scale.
func (gp *GP) Predict(X *mat.Dense) (*mat.VecDense, *mat.VecDense, error) {
	const op = "GP.Predict"

	if X == nil {
		return nil, nil, optimization.NewError("input matrix X is nil").
			WithComponent("gaussian_process").WithOperation(op)
	}
	if gp.X == nil || gp.alpha == nil || gp.chol == nil {
		return nil, nil, optimization.NewError("model not trained or no training data").
			WithComponent("gaussian_process").WithOperation(op)
	}

	nTest, nFeatures := X.Dims()
	nTrain, trainFeatures := gp.X.Dims()
	if nFeatures != trainFeatures {
		return nil, nil, optimization.NewErrorf("feature mismatch: got %d, trained on %d", nFeatures, trainFeatures).
			WithComponent("gaussian_process").WithOperation(op)
	}

	// Kernel between training and test points, (n_train, n_test)
	Kstar := mat.NewDense(nTrain, nTest, nil)
	Kss := make([]float64, nTest)
	for i := 0; i < nTest; i++ {
		xStar := X.RawRowView(i)
		Kss[i] = gp.kernel.Eval(xStar, xStar)
		for j := 0; j < nTrain; j++ {
			Kstar.Set(j, i, gp.kernel.Eval(xStar, gp.X.RawRowView(j)))
		}
	}

	// Solve K * v = K*
	var v mat.Dense
	if err := ignoreCondition(gp.chol.SolveTo(&v, Kstar)); err != nil {
		return nil, nil, optimization.WrapError(err, "failed to solve linear system").
			WithComponent("gaussian_process").WithOperation(op)
	}

	mean := mat.NewVecDense(nTest, nil)
	std := mat.NewVecDense(nTest, nil)
	for i := 0; i < nTest; i++ {
		var mu, reduce float64
		for j := 0; j < nTrain; j++ {
			k := Kstar.At(j, i)
			mu += k * gp.alpha.AtVec(j)
			reduce += k * v.At(j, i)
		}
		// Clamp small negative variances from round-off
		variance := math.Max(0, Kss[i]-reduce)
		mean.SetVec(i, mu*gp.yStd+gp.yMean)
		std.SetVec(i, math.Sqrt(variance)*gp.yStd)
	}

	return mean, std, nil
}
