package cho

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

//////
// Const, vars, types.
//////

// run holds the state of a single Minimize call. It is owned by one
// goroutine and never shared.
type run struct {
	config    Config
	space     *Space
	objective *objective
	rng       *rand.Rand
	seed      int64
	logger    *zap.Logger

	state       State
	history     []Observation
	evaluations int

	// best is the index of the best valid observation in history, -1 if none.
	best int
}

//////
// Exported functionalities.
//////

// DefaultConfig returns a default configuration: 50 evaluations of which
// 10 are random, Expected Improvement on a Matérn 5/2 surrogate, and Strict
// sentinel handling.
func DefaultConfig() Config {
	return Config{
		Budget:          50,
		RandomStarts:    10,
		NumCandidates:   1000,
		NumRestarts:     5,
		HyperRestarts:   3,
		Mode:            Strict,
		Penalty:         PenaltyCapped,
		Kernel:          Matern52,
		AcquisitionFunc: ExpectedImprovement,
		AcqParams: AcquisitionParams{
			Beta: 2.0,
			Xi:   0,
		},
		ProgressChan: nil, // Default to no progress updates.
	}
}

// Minimize uses Bayesian optimization to find the parameter vector with the
// lowest cost reported by evaluator. It combines Gaussian Process regression
// with an acquisition function to spend as few evaluations as possible.
//
// Parameters:
// - ctx: Checked between evaluations; cancellation fails the run
// - config: Config controlling the optimization process
// - evaluator: The simulator whose cost is minimized
// - dims: One or more Dimension defining the search space
//
// Returns:
// - *OptimizationResult: Always non-nil. On failure it holds the history
// gathered so far and State is Failed
// - error: Nil when the budget was exhausted, otherwise one of
// *ConfigurationError, *SentinelError, *EvaluationError, *ModelFitError,
// ErrInsufficientObservations or ctx.Err()
//
// Usage example:
//
//	dims := []Dimension{
//	    {Name: "B1_offset", Lower: -0.05, Upper: 0.05},
//	    {Name: "B3_offset", Lower: -0.05, Upper: 0.05},
//	}
//
//	config := DefaultConfig()
//	config.Seed = 42
//
//	result, err := Minimize(ctx, config, simulator, dims...)
//	if err != nil {
//	    return err
//	}
//
//	fmt.Println(result.Best.Params, result.Best.Cost)
//
// How it works:
// 1. Init validates config and dims; nothing is evaluated on error
// 2. RandomPhase evaluates RandomStarts uniform samples
// 3. ModelPhase, until Budget evaluations are done:
//   - Refits the surrogate on every observation so far
//   - Maximizes the acquisition function
//   - Evaluates the proposal and records it
//
// 4. Done: the best valid observation is reported
//
// Important notes:
// - Sequential: the evaluator is never called concurrently
// - Reproducible: the same Seed and dims give the same random phase
// - Every proposal is inside the bounds; an out-of-bounds proposal panics
func Minimize(
	ctx context.Context,
	config Config,
	evaluator Evaluator,
	dims ...Dimension,
) (*OptimizationResult, error) {
	r, err := newRun(config, evaluator, dims)
	if err != nil {
		return &OptimizationResult{State: Failed}, err
	}

	if err := r.loop(ctx); err != nil {
		r.state = Failed

		r.logger.Error("Optimization failed",
			zap.Error(err),
			zap.Int("evaluations", r.evaluations),
		)

		return r.result(), err
	}

	r.state = Done

	fields := []zap.Field{
		zap.Int("evaluations", len(r.history)),
		zap.Int64("seed", r.seed),
	}
	if b := r.bestObservation(); b != nil {
		fields = append(fields, zap.Float64("best_cost", b.Cost), zap.Float64s("best_params", b.Params))
	}

	r.logger.Info("Optimization finished", fields...)

	return r.result(), nil
}

//////
// Methods.
//////

// loop drives the state machine from RandomPhase to the end of the budget.
func (r *run) loop(ctx context.Context) error {
	r.logger.Info("Starting optimization",
		zap.Int("budget", r.config.Budget),
		zap.Int("random_starts", r.config.RandomStarts),
		zap.Int("dimensions", r.space.Len()),
		zap.Int64("seed", r.seed),
		zap.Stringer("mode", r.config.Mode),
		zap.Stringer("kernel", r.config.Kernel),
	)

	r.state = RandomPhase

	for len(r.history) < r.config.Budget {
		if err := ctx.Err(); err != nil {
			return err
		}

		if r.state == RandomPhase && len(r.history) == r.config.RandomStarts {
			if valid := r.validCount(); valid < 2 {
				return fmt.Errorf("%d valid of %d random evaluations: %w",
					valid, len(r.history), ErrInsufficientObservations)
			}

			r.state = ModelPhase
		}

		var x []float64

		if r.state == RandomPhase {
			x = r.space.SampleUniform(r.rng)
		} else {
			next, err := r.propose()
			if err != nil {
				return err
			}

			x = next
		}

		if !r.space.Validate(x) {
			panic(fmt.Sprintf("proposal %v is outside the parameter space", x))
		}

		if err := r.evaluate(ctx, x); err != nil {
			return err
		}
	}

	return nil
}

// propose refits the surrogate and maximizes the acquisition function.
func (r *run) propose() ([]float64, error) {
	X, y := r.trainingSet()

	gp, err := fitGaussianProcess(X, y, r.config.Kernel, r.rng, r.config.HyperRestarts, r.logger.Named("gaussian_process"))
	if err != nil {
		return nil, err
	}

	params := r.config.AcqParams
	params.BestSoFar = r.history[r.best].Cost

	observed := make([][]float64, len(r.history))
	for i, obs := range r.history {
		observed[i] = r.space.Normalize(obs.Params)
	}

	return maximizeAcquisition(
		r.space,
		gp,
		r.config.AcquisitionFunc,
		params,
		observed,
		r.config.NumCandidates,
		r.config.NumRestarts,
		r.rng,
	), nil
}

// trainingSet builds the surrogate inputs from the history, applying the
// penalty rule to invalid observations.
func (r *run) trainingSet() (X [][]float64, y []float64) {
	worst := math.Inf(-1)

	for _, obs := range r.history {
		if obs.Valid && obs.Cost > worst {
			worst = obs.Cost
		}
	}

	for _, obs := range r.history {
		cost := obs.Cost

		if !obs.Valid {
			if r.config.Penalty == PenaltyExclude || math.IsInf(worst, -1) {
				continue
			}

			cost = worst
		}

		X = append(X, r.space.Normalize(obs.Params))
		y = append(y, cost)
	}

	return X, y
}

// evaluate scores x, appends the observation and notifies the recorder, the
// progress channel and the logger.
func (r *run) evaluate(ctx context.Context, x []float64) error {
	n := len(r.history) + 1

	r.evaluations++

	cost, valid, err := r.objective.Evaluate(ctx, n, x)
	if err != nil {
		var rejected *SentinelError
		if !errors.As(err, &rejected) {
			return err
		}
	}

	obs := Observation{
		Evaluation: n,
		Phase:      r.state,
		Params:     cloneFloats(x),
		Cost:       cost,
		Valid:      valid,
	}

	r.history = append(r.history, obs)
	r.updateBest()
	r.log(obs)

	if r.config.Recorder != nil {
		if recErr := r.config.Recorder.Record(copyObservation(obs)); recErr != nil {
			return fmt.Errorf("record evaluation %d: %w", n, recErr)
		}
	}

	r.sendProgress(obs)

	return err
}

// updateBest moves the best index to the last observation if it is valid
// and strictly cheaper. Ties keep the earlier observation.
func (r *run) updateBest() {
	last := len(r.history) - 1
	obs := r.history[last]

	if !obs.Valid {
		return
	}

	if r.best < 0 || obs.Cost < r.history[r.best].Cost {
		r.best = last
	}
}

// validCount returns the number of valid observations.
func (r *run) validCount() int {
	var count int

	for _, obs := range r.history {
		if obs.Valid {
			count++
		}
	}

	return count
}

// bestObservation returns a copy of the best observation, nil if none.
func (r *run) bestObservation() *Observation {
	if r.best < 0 {
		return nil
	}

	best := copyObservation(r.history[r.best])

	return &best
}

// result builds the final OptimizationResult.
func (r *run) result() *OptimizationResult {
	history := make([]Observation, len(r.history))
	for i, obs := range r.history {
		history[i] = copyObservation(obs)
	}

	return &OptimizationResult{
		Best:        r.bestObservation(),
		History:     history,
		State:       r.state,
		Evaluations: r.evaluations,
	}
}

// log writes one info line per evaluation and the harmonic drives at debug.
func (r *run) log(obs Observation) {
	bestCost := math.Inf(1)
	if r.best >= 0 {
		bestCost = r.history[r.best].Cost
	}

	r.logger.Info("Evaluation completed",
		zap.Int("evaluation", obs.Evaluation),
		zap.Stringer("phase", obs.Phase),
		zap.Float64("cost", obs.Cost),
		zap.Bool("valid", obs.Valid),
		zap.Float64("best_cost", bestCost),
	)

	if !r.logger.Core().Enabled(zap.DebugLevel) {
		return
	}

	for _, drive := range r.space.Harmonics(obs.Params) {
		r.logger.Debug("Harmonic drive",
			zap.Int("evaluation", obs.Evaluation),
			zap.String("harmonic", drive.Harmonic),
			zap.Float64("offset", drive.Offset),
			zap.Float64("slope", drive.Slope),
		)
	}
}

// sendProgress publishes a ProgressUpdate without blocking.
func (r *run) sendProgress(obs Observation) {
	if r.config.ProgressChan == nil {
		return
	}

	update := ProgressUpdate{
		Phase:      obs.Phase,
		Evaluation: obs.Evaluation,
		Budget:     r.config.Budget,
		Params:     cloneFloats(obs.Params),
		Cost:       obs.Cost,
		Valid:      obs.Valid,
		BestCost:   math.Inf(1),
	}

	if r.best >= 0 {
		update.BestParams = cloneFloats(r.history[r.best].Params)
		update.BestCost = r.history[r.best].Cost
	}

	select {
	case r.config.ProgressChan <- update:
	default:
		// Skip update if channel is full.
	}
}

//////
// Factory.
//////

// newRun validates the configuration (the Init state) and prepares a run.
func newRun(config Config, evaluator Evaluator, dims []Dimension) (*run, error) {
	if err := validateConfig(config, evaluator); err != nil {
		return nil, err
	}

	space, err := NewSpace(dims...)
	if err != nil {
		return nil, err
	}

	if config.AcquisitionFunc == nil {
		config.AcquisitionFunc = ExpectedImprovement
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &run{
		config:    config,
		space:     space,
		objective: newObjective(evaluator, config.Mode),
		rng:       rand.New(rand.NewSource(seed)),
		seed:      seed,
		logger:    logger,
		state:     Init,
		best:      -1,
	}, nil
}

//////
// Helper functions.
//////

// validateConfig checks the Init invariants that do not depend on the
// dimensions.
func validateConfig(config Config, evaluator Evaluator) error {
	switch {
	case evaluator == nil:
		return &ConfigurationError{Field: "Evaluator", Reason: "must not be nil"}
	case config.RandomStarts < 2:
		return &ConfigurationError{
			Field:  "RandomStarts",
			Reason: fmt.Sprintf("must be at least 2, got %d", config.RandomStarts),
		}
	case config.Budget < config.RandomStarts:
		return &ConfigurationError{
			Field:  "Budget",
			Reason: fmt.Sprintf("must be at least RandomStarts (%d), got %d", config.RandomStarts, config.Budget),
		}
	case config.NumCandidates < 1:
		return &ConfigurationError{
			Field:  "NumCandidates",
			Reason: fmt.Sprintf("must be at least 1, got %d", config.NumCandidates),
		}
	case config.NumRestarts < 0:
		return &ConfigurationError{
			Field:  "NumRestarts",
			Reason: fmt.Sprintf("must not be negative, got %d", config.NumRestarts),
		}
	case config.HyperRestarts < 0:
		return &ConfigurationError{
			Field:  "HyperRestarts",
			Reason: fmt.Sprintf("must not be negative, got %d", config.HyperRestarts),
		}
	case config.Mode != Strict && config.Mode != Tolerant:
		return &ConfigurationError{Field: "Mode", Reason: fmt.Sprintf("unknown sentinel policy %d", int(config.Mode))}
	case config.Penalty != PenaltyCapped && config.Penalty != PenaltyExclude:
		return &ConfigurationError{Field: "Penalty", Reason: fmt.Sprintf("unknown penalty rule %d", int(config.Penalty))}
	case config.Kernel != Matern52 && config.Kernel != SquaredExponential:
		return &ConfigurationError{Field: "Kernel", Reason: fmt.Sprintf("unknown kernel %d", int(config.Kernel))}
	}

	return nil
}

// copyObservation returns obs with its own Params slice.
func copyObservation(obs Observation) Observation {
	obs.Params = cloneFloats(obs.Params)

	return obs
}
