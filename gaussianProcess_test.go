package cho

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sineData(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)

	for i := 0; i < n; i++ {
		u := float64(i) / float64(n-1)

		X[i] = []float64{u}
		y[i] = math.Sin(2 * math.Pi * u)
	}

	return X, y
}

func TestFitGaussianProcessInterpolates(t *testing.T) {
	for _, kernel := range []KernelType{Matern52, SquaredExponential} {
		t.Run(kernel.String(), func(t *testing.T) {
			X, y := sineData(9)

			gp, err := fitGaussianProcess(X, y, kernel, rand.New(rand.NewSource(1)), 3, zap.NewNop())
			require.NoError(t, err)

			for i := range X {
				mean, variance := gp.Predict(X[i])

				assert.InDelta(t, y[i], mean, 0.05)
				assert.GreaterOrEqual(t, variance, 0.0)
				assert.Less(t, variance, 0.01)
			}
		})
	}
}

func TestFitGaussianProcessScalesTargets(t *testing.T) {
	X, y := sineData(9)

	// Costs in the 1e-6 range, as produced by harmonic residuals.
	small := make([]float64, len(y))
	for i, v := range y {
		small[i] = 1e-6 * (2 + v)
	}

	gp, err := fitGaussianProcess(X, small, Matern52, rand.New(rand.NewSource(1)), 2, zap.NewNop())
	require.NoError(t, err)

	mean, _ := gp.Predict(X[2])
	assert.InDelta(t, small[2], mean, 1e-7)
}

func TestFitGaussianProcessFlat(t *testing.T) {
	X := [][]float64{{0.1}, {0.5}, {0.9}}
	y := []float64{2.5, 2.5, 2.5}

	gp, err := fitGaussianProcess(X, y, Matern52, rand.New(rand.NewSource(1)), 2, zap.NewNop())
	require.NoError(t, err)

	mean, variance := gp.Predict([]float64{0.3})
	assert.Equal(t, 2.5, mean)
	assert.Zero(t, variance)

	ei := ExpectedImprovement(mean, variance, AcquisitionParams{BestSoFar: 2.5})
	assert.False(t, math.IsNaN(ei))
	assert.Zero(t, ei)
}

func TestFitGaussianProcessNeedsTwoPoints(t *testing.T) {
	_, err := fitGaussianProcess([][]float64{{0.5}}, []float64{1}, Matern52, rand.New(rand.NewSource(1)), 0, zap.NewNop())
	assert.ErrorIs(t, err, ErrInsufficientObservations)
}

func TestFitGaussianProcessDuplicatePoints(t *testing.T) {
	X := [][]float64{{0.2, 0.2}, {0.2, 0.2}, {0.8, 0.1}, {0.5, 0.9}}
	y := []float64{1, 1.1, 3, 2}

	gp, err := fitGaussianProcess(X, y, Matern52, rand.New(rand.NewSource(3)), 2, zap.NewNop())
	require.NoError(t, err)

	mean, variance := gp.Predict([]float64{0.2, 0.2})
	assert.False(t, math.IsNaN(mean))
	assert.GreaterOrEqual(t, variance, 0.0)
}

func TestFitGaussianProcessIsReproducible(t *testing.T) {
	X, y := sineData(7)

	a, err := fitGaussianProcess(X, y, Matern52, rand.New(rand.NewSource(5)), 3, zap.NewNop())
	require.NoError(t, err)

	b, err := fitGaussianProcess(X, y, Matern52, rand.New(rand.NewSource(5)), 3, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, a.hyper, b.hyper)
}

func TestHyperparametersFromThetaClamps(t *testing.T) {
	h := hyperparametersFromTheta([]float64{100, -100, math.NaN()})

	assert.InDelta(t, math.Exp(maxLogLengthScale), h.LengthScales[0], 1e-12)
	assert.InDelta(t, math.Exp(minLogSignalVar), h.SignalVar, 1e-12)
	assert.InDelta(t, math.Exp((minLogNoiseVar+maxLogNoiseVar)/2), h.NoiseVar, 1e-12)
}

func TestKernels(t *testing.T) {
	h := hyperparameters{LengthScales: []float64{0.5, 2}, SignalVar: 3}

	assert.InDelta(t, 3.0, h.RBFKernel([]float64{1, 2}, []float64{1, 2}), 1e-12)
	assert.InDelta(t, 3.0, h.Matern52Kernel([]float64{1, 2}, []float64{1, 2}), 1e-12)

	near := h.Matern52Kernel([]float64{0, 0}, []float64{0.1, 0})
	far := h.Matern52Kernel([]float64{0, 0}, []float64{1, 0})
	assert.Greater(t, near, far)

	// Distance along the long length-scale matters less.
	assert.Greater(t,
		h.RBFKernel([]float64{0, 0}, []float64{0, 0.5}),
		h.RBFKernel([]float64{0, 0}, []float64{0.5, 0}),
	)

	assert.Equal(t, 1.0, matern52(0))

	x1, x2 := []float64{0.1, 0.7}, []float64{0.4, 0.2}
	assert.Equal(t, h.RBFKernel(x1, x2), h.covariance(SquaredExponential, x1, x2))
	assert.Equal(t, h.Matern52Kernel(x1, x2), h.covariance(Matern52, x1, x2))

	assert.Panics(t, func() {
		h.RBFKernel([]float64{1}, []float64{1, 2})
	})
}

func TestFitGaussianProcessModelFitError(t *testing.T) {
	X := [][]float64{{math.NaN()}, {0.5}, {0.9}}

	gp, err := fitGaussianProcess(X, []float64{1, 2, 3}, Matern52, rand.New(rand.NewSource(1)), 0, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, gp)
	assert.True(t, errors.Is(err, ErrModelFit))

	var fitErr *ModelFitError
	require.True(t, errors.As(err, &fitErr))
	assert.Equal(t, 3, fitErr.Points)
	assert.ErrorIs(t, err, errNotPositiveDefinite)
}

func TestFactorizeRetriesWithJitter(t *testing.T) {
	X := [][]float64{{0.1}, {0.5}, {0.9}}
	z := []float64{-1, 0, 1}

	// A negative noise variance makes the diagonal negative.
	broken := hyperparameters{LengthScales: []float64{0.3}, SignalVar: 1, NoiseVar: -2}

	_, _, err := solve(X, z, Matern52, broken, 0)
	require.Error(t, err)

	hyper, chol, alpha, err := factorize(X, z, Matern52, broken, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, chol)
	require.NotNil(t, alpha)

	assert.Equal(t, []float64{defaultLengthScale}, hyper.LengthScales)
	assert.Equal(t, defaultSignalVar, hyper.SignalVar)
	assert.InDelta(t, defaultNoiseVar+fitJitter, hyper.NoiseVar, 1e-15)
}

func TestFactorizeKeepsWorkingHyperparameters(t *testing.T) {
	X := [][]float64{{0.1}, {0.5}, {0.9}}
	h := hyperparameters{LengthScales: []float64{0.3}, SignalVar: 2, NoiseVar: 1e-3}

	hyper, chol, _, err := factorize(X, []float64{-1, 0, 1}, SquaredExponential, h, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, chol)

	assert.Equal(t, h, hyper)
}
