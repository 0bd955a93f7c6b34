package cho

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

//////
// Const, vars, types.
//////

// Hyperparameters are searched in log space within these bounds. Inputs live
// in the unit cube and targets are standardized, so the bounds are fixed.
const (
	minLogLengthScale = -4.605170185988091  // log(0.01)
	maxLogLengthScale = 2.302585092994046   // log(10)
	minLogSignalVar   = -4.605170185988091  // log(0.01)
	maxLogSignalVar   = 4.605170185988092   // log(100)
	minLogNoiseVar    = -13.815510557964274 // log(1e-6)
	maxLogNoiseVar    = 0.0                 // log(1)

	defaultLengthScale = 0.5
	defaultSignalVar   = 1.0
	defaultNoiseVar    = 1e-4

	// fitJitter is added to the diagonal on the retry after a failed
	// factorization.
	fitJitter = 1e-6

	// flatTolerance is the relative spread below which targets are treated
	// as identical.
	flatTolerance = 1e-12
)

var errNotPositiveDefinite = errors.New("kernel matrix is not positive definite")

// hyperparameters of the Gaussian Process kernel.
type hyperparameters struct {
	// LengthScales holds one length-scale per input dimension (ARD).
	LengthScales []float64

	// SignalVar is the prior variance of the latent function.
	SignalVar float64

	// NoiseVar is the observation noise variance.
	NoiseVar float64
}

// gaussianProcess is a Gaussian Process regression model fitted once on a
// snapshot of the observations. It is rebuilt from scratch on every refit
// and never mutated afterwards, so it needs no locking.
//
// Fields:
// - kernel: Covariance function (Matérn 5/2 or RBF)
// - X: Training inputs, normalized to the unit cube
// - hyper: Hyperparameters chosen by marginal-likelihood maximization
// - yMean, yStd: Standardization of the training targets
// - alpha: K^-1 * standardized targets
// - chol: Cholesky factor of K (kernel matrix plus noise)
// - flat: True when all targets are identical; Predict then returns the
// common value with zero variance
type gaussianProcess struct {
	kernel KernelType
	X      [][]float64
	hyper  hyperparameters

	yMean float64
	yStd  float64

	alpha *mat.VecDense
	chol  *mat.Cholesky
	flat  bool

	logger *zap.Logger
}

//////
// Methods.
//////

// RBFKernel implements the Radial Basis Function (also known as squared
// exponential) kernel with one length-scale per dimension.
//
// Mathematical formula:
//
//	k(x1, x2) = s^2 * exp(-r^2 / 2),  r^2 = sum(((x1 - x2) / l)^2)
//
// Important notes:
// - Panics if input vectors have different lengths
// - Returns SignalVar for identical points
func (h hyperparameters) RBFKernel(x1, x2 []float64) float64 {
	return h.SignalVar * math.Exp(-0.5*h.scaledSquaredDistance(x1, x2))
}

// Matern52Kernel implements the Matérn kernel with smoothness 5/2 and one
// length-scale per dimension.
//
// Mathematical formula:
//
//	k(x1, x2) = s^2 * (1 + sqrt(5)r + 5r^2/3) * exp(-sqrt(5)r)
//
// Important notes:
// - Panics if input vectors have different lengths
// - Returns SignalVar for identical points
func (h hyperparameters) Matern52Kernel(x1, x2 []float64) float64 {
	return h.SignalVar * matern52(math.Sqrt(h.scaledSquaredDistance(x1, x2)))
}

// Predict returns the posterior mean and the latent-function variance at u,
// in the original cost units.
//
// Parameters:
// - u: Input point in the unit cube
//
// Returns:
// - mean: Predicted cost at u
// - variance: Posterior variance, never negative; zero for a flat model
//
// Mathematical details:
//
//	mean     = yMean + yStd * k*^T K^-1 y
//	variance = yStd^2 * (s^2 - k*^T K^-1 k*)
func (gp *gaussianProcess) Predict(u []float64) (mean, variance float64) {
	if gp.flat {
		return gp.yMean, 0
	}

	n := len(gp.X)

	kStar := mat.NewVecDense(n, nil)
	for i := range gp.X {
		kStar.SetVec(i, gp.hyper.covariance(gp.kernel, u, gp.X[i]))
	}

	mean = gp.yMean + gp.yStd*mat.Dot(kStar, gp.alpha)

	var v mat.VecDense
	if err := gp.chol.SolveVecTo(&v, kStar); err != nil {
		return mean, 0
	}

	latent := gp.hyper.SignalVar - mat.Dot(kStar, &v)
	if latent < 0 || math.IsNaN(latent) {
		latent = 0
	}

	return mean, latent * gp.yStd * gp.yStd
}

// scaledSquaredDistance returns sum(((x1 - x2) / l)^2).
func (h hyperparameters) scaledSquaredDistance(x1, x2 []float64) float64 {
	if len(x1) != len(x2) || len(x1) != len(h.LengthScales) {
		panic("input vectors must have the same length")
	}

	var sum float64

	for i := range x1 {
		diff := (x1[i] - x2[i]) / h.LengthScales[i]

		sum += diff * diff
	}

	return sum
}

// covariance evaluates the kernel without observation noise.
func (h hyperparameters) covariance(kernel KernelType, x1, x2 []float64) float64 {
	if kernel == SquaredExponential {
		return h.RBFKernel(x1, x2)
	}

	return h.Matern52Kernel(x1, x2)
}

// theta packs h as [log l_1..log l_d, log s^2, log noise].
func (h hyperparameters) theta() []float64 {
	theta := make([]float64, 0, len(h.LengthScales)+2)
	for _, l := range h.LengthScales {
		theta = append(theta, math.Log(l))
	}

	return append(theta, math.Log(h.SignalVar), math.Log(h.NoiseVar))
}

//////
// Factory.
//////

// fitGaussianProcess fits a Gaussian Process to the observations (X, y).
//
// Parameters:
// - X: Training inputs in the unit cube (copied)
// - y: Training targets in cost units, same length as X
// - kernel: Covariance function
// - rng: Run random source, used for the hyperparameter restarts
// - hyperRestarts: Random starts of the likelihood search beyond the default
// - logger: Receives debug logs; must not be nil
//
// Returns:
// - *gaussianProcess: The fitted model
// - error: ErrInsufficientObservations with fewer than two points,
// *ModelFitError when the kernel matrix can not be factorized even after
// the jitter retry
//
// How it works:
// 1. Targets are standardized; identical targets yield a flat model
// 2. The log marginal likelihood is maximized with Nelder-Mead from the
// default hyperparameters and hyperRestarts random starts
// 3. The kernel matrix is factorized at the best hyperparameters; on
// failure the default hyperparameters plus diagonal jitter are tried once
func fitGaussianProcess(
	X [][]float64,
	y []float64,
	kernel KernelType,
	rng *rand.Rand,
	hyperRestarts int,
	logger *zap.Logger,
) (*gaussianProcess, error) {
	if len(X) != len(y) {
		panic("X and y must have the same length")
	}

	n := len(X)
	if n < 2 {
		return nil, ErrInsufficientObservations
	}

	d := len(X[0])

	gp := &gaussianProcess{
		kernel: kernel,
		X:      make([][]float64, n),
		logger: logger,
	}

	for i := range X {
		gp.X[i] = cloneFloats(X[i])
	}

	gp.yMean, gp.yStd = meanStd(y)

	if gp.yStd < flatTolerance*math.Max(1, math.Abs(gp.yMean)) {
		gp.flat = true

		logger.Debug("Targets are identical, using flat model",
			zap.Int("samples", n),
			zap.Float64("value", gp.yMean),
		)

		return gp, nil
	}

	z := make([]float64, n)
	for i, v := range y {
		z[i] = (v - gp.yMean) / gp.yStd
	}

	logger.Debug("Fitting GP model",
		zap.Int("samples", n),
		zap.Int("features", d),
		zap.Stringer("kernel", kernel),
	)

	hyper, nll := maximizeLikelihood(gp.X, z, kernel, rng, hyperRestarts)

	hyper, chol, alpha, err := factorize(gp.X, z, kernel, hyper, logger)
	if err != nil {
		return nil, err
	}

	gp.hyper = hyper
	gp.chol = chol
	gp.alpha = alpha

	logger.Debug("Successfully fitted GP model",
		zap.Int("samples", n),
		zap.Float64s("length_scales", hyper.LengthScales),
		zap.Float64("signal_var", hyper.SignalVar),
		zap.Float64("noise_var", hyper.NoiseVar),
		zap.Float64("neg_log_likelihood", nll),
	)

	return gp, nil
}

// factorize solves the kernel system at hyper. If K is not positive
// definite it retries once with the default hyperparameters plus fitJitter
// on the diagonal, and returns a *ModelFitError when that fails too. The
// returned hyperparameters are the ones the factor belongs to.
func factorize(
	X [][]float64,
	z []float64,
	kernel KernelType,
	hyper hyperparameters,
	logger *zap.Logger,
) (hyperparameters, *mat.Cholesky, *mat.VecDense, error) {
	chol, alpha, err := solve(X, z, kernel, hyper, 0)
	if err == nil {
		return hyper, chol, alpha, nil
	}

	logger.Debug("Factorization failed, retrying with jitter",
		zap.Error(err),
		zap.Float64("jitter", fitJitter),
	)

	hyper = defaultHyperparameters(len(X[0]))

	chol, alpha, err = solve(X, z, kernel, hyper, fitJitter)
	if err != nil {
		return hyper, nil, nil, &ModelFitError{Points: len(X), Err: err}
	}

	hyper.NoiseVar += fitJitter

	return hyper, chol, alpha, nil
}

// defaultHyperparameters returns the starting point of the likelihood
// search.
func defaultHyperparameters(d int) hyperparameters {
	ls := make([]float64, d)
	for i := range ls {
		ls[i] = defaultLengthScale
	}

	return hyperparameters{
		LengthScales: ls,
		SignalVar:    defaultSignalVar,
		NoiseVar:     defaultNoiseVar,
	}
}

// hyperparametersFromTheta unpacks a log-space vector, clamping every entry
// into its bounds. theta is not modified.
func hyperparametersFromTheta(theta []float64) hyperparameters {
	d := len(theta) - 2

	ls := make([]float64, d)
	for i := 0; i < d; i++ {
		ls[i] = math.Exp(clampFinite(theta[i], minLogLengthScale, maxLogLengthScale))
	}

	return hyperparameters{
		LengthScales: ls,
		SignalVar:    math.Exp(clampFinite(theta[d], minLogSignalVar, maxLogSignalVar)),
		NoiseVar:     math.Exp(clampFinite(theta[d+1], minLogNoiseVar, maxLogNoiseVar)),
	}
}

//////
// Helper functions.
//////

// matern52 is the Matérn 5/2 correlation at scaled distance r.
func matern52(r float64) float64 {
	s := math.Sqrt(5) * r

	return (1 + s + s*s/3) * math.Exp(-s)
}

// clampFinite clamps v into [lo, hi], mapping NaN to the midpoint.
func clampFinite(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return (lo + hi) / 2
	}

	return clamp(v, lo, hi)
}

// kernelMatrix builds K + (noise + jitter) * I.
func kernelMatrix(X [][]float64, kernel KernelType, h hyperparameters, jitter float64) *mat.SymDense {
	n := len(X)

	K := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		K.SetSym(i, i, h.covariance(kernel, X[i], X[i])+h.NoiseVar+jitter)

		for j := i + 1; j < n; j++ {
			K.SetSym(i, j, h.covariance(kernel, X[i], X[j]))
		}
	}

	return K
}

// solve factorizes the kernel matrix and returns the factor together with
// alpha = K^-1 z.
func solve(X [][]float64, z []float64, kernel KernelType, h hyperparameters, jitter float64) (*mat.Cholesky, *mat.VecDense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(kernelMatrix(X, kernel, h, jitter)); !ok {
		return nil, nil, errNotPositiveDefinite
	}

	alpha := mat.NewVecDense(len(z), nil)
	if err := chol.SolveVecTo(alpha, mat.NewVecDense(len(z), cloneFloats(z))); err != nil {
		return nil, nil, fmt.Errorf("solve kernel system: %w", err)
	}

	return &chol, alpha, nil
}

// negLogLikelihood returns the negative log marginal likelihood of the
// standardized targets z under h, or +Inf when K can not be factorized.
//
//	nll = 0.5 * z^T K^-1 z + 0.5 * log|K| + 0.5 * n * log(2 pi)
func negLogLikelihood(X [][]float64, z []float64, kernel KernelType, h hyperparameters) float64 {
	chol, alpha, err := solve(X, z, kernel, h, 0)
	if err != nil {
		return math.Inf(1)
	}

	n := float64(len(z))

	nll := 0.5*mat.Dot(mat.NewVecDense(len(z), cloneFloats(z)), alpha) +
		0.5*chol.LogDet() +
		0.5*n*math.Log(2*math.Pi)

	if math.IsNaN(nll) {
		return math.Inf(1)
	}

	return nll
}

// maximizeLikelihood runs Nelder-Mead on the negative log marginal
// likelihood from the default hyperparameters and restarts random starts.
// It falls back to the default hyperparameters when no start yields a
// finite likelihood.
func maximizeLikelihood(
	X [][]float64,
	z []float64,
	kernel KernelType,
	rng *rand.Rand,
	restarts int,
) (hyperparameters, float64) {
	d := len(X[0])

	best := defaultHyperparameters(d)
	bestNLL := negLogLikelihood(X, z, kernel, best)

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			return negLogLikelihood(X, z, kernel, hyperparametersFromTheta(theta))
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: 100 * (d + 2),
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-6,
			Relative:   1e-6,
			Iterations: 20,
		},
	}

	starts := make([][]float64, 0, restarts+1)
	starts = append(starts, best.theta())

	for i := 0; i < restarts; i++ {
		theta := make([]float64, d+2)
		for j := 0; j < d; j++ {
			theta[j] = minLogLengthScale + rng.Float64()*(maxLogLengthScale-minLogLengthScale)
		}

		theta[d] = minLogSignalVar + rng.Float64()*(maxLogSignalVar-minLogSignalVar)
		theta[d+1] = minLogNoiseVar + rng.Float64()*(maxLogNoiseVar-minLogNoiseVar)

		starts = append(starts, theta)
	}

	for _, start := range starts {
		// Limits and convergence failures still carry the best location.
		result, _ := optimize.Minimize(problem, start, settings, &optimize.NelderMead{})
		if result == nil {
			continue
		}

		if !math.IsInf(result.F, 0) && !math.IsNaN(result.F) && result.F < bestNLL {
			bestNLL = result.F
			best = hyperparametersFromTheta(result.X)
		}
	}

	return best, bestNLL
}
