package cho

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

//////
// Const, vars, types.
//////

// Sentinel is the raw value an evaluator returns when it rejects a
// configuration (e.g. overlapping coils). It carries no cost signal.
const Sentinel = -1.0

// State is a stage of the optimization state machine.
//
//	Init -> RandomPhase -> ModelPhase -> Done
//	  \          \             \
//	   `----------`-------------`---> Failed
type State int

const (
	// Init validates the configuration. No evaluation happens here.
	Init State = iota

	// RandomPhase evaluates uniformly sampled points to seed the surrogate.
	RandomPhase

	// ModelPhase refits the surrogate after every observation and evaluates
	// the point that maximizes the acquisition function.
	ModelPhase

	// Done means the evaluation budget is exhausted.
	Done

	// Failed means the run was aborted by a fatal error.
	Failed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case RandomPhase:
		return "random"
	case ModelPhase:
		return "model"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SentinelPolicy decides what happens when the evaluator returns Sentinel.
type SentinelPolicy int

const (
	// Strict aborts the run on the first sentinel.
	Strict SentinelPolicy = iota

	// Tolerant records the evaluation with cost +Inf and keeps going.
	Tolerant
)

// String implements fmt.Stringer.
func (p SentinelPolicy) String() string {
	if p == Tolerant {
		return "tolerant"
	}

	return "strict"
}

// ParseSentinelPolicy parses "strict" or "tolerant" (case-insensitive).
func ParseSentinelPolicy(s string) (SentinelPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return Strict, nil
	case "tolerant":
		return Tolerant, nil
	default:
		return Strict, &ConfigurationError{Field: "Mode", Reason: fmt.Sprintf("unknown sentinel policy %q", s)}
	}
}

// PenaltyRule decides how invalid (tolerant-mode) observations take part in
// the surrogate fit. The rule is fixed for a whole run.
type PenaltyRule int

const (
	// PenaltyCapped fits invalid observations at the worst valid cost seen
	// so far, which marks their region as bad without stretching the range
	// of fitted targets.
	PenaltyCapped PenaltyRule = iota

	// PenaltyExclude leaves invalid observations out of the fit.
	PenaltyExclude
)

// String implements fmt.Stringer.
func (r PenaltyRule) String() string {
	if r == PenaltyExclude {
		return "exclude"
	}

	return "capped"
}

// ParsePenaltyRule parses "capped" or "exclude" (case-insensitive).
func ParsePenaltyRule(s string) (PenaltyRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "capped", "":
		return PenaltyCapped, nil
	case "exclude":
		return PenaltyExclude, nil
	default:
		return PenaltyCapped, &ConfigurationError{Field: "Penalty", Reason: fmt.Sprintf("unknown penalty rule %q", s)}
	}
}

// KernelType selects the covariance function of the surrogate.
type KernelType int

const (
	// Matern52 is the Matérn kernel with smoothness 5/2 and one length-scale
	// per dimension.
	Matern52 KernelType = iota

	// SquaredExponential is the RBF kernel with one length-scale per
	// dimension.
	SquaredExponential
)

// String implements fmt.Stringer.
func (k KernelType) String() string {
	if k == SquaredExponential {
		return "rbf"
	}

	return "matern52"
}

// ParseKernelType parses "matern52" or "rbf" (case-insensitive).
func ParseKernelType(s string) (KernelType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "matern52", "matern", "":
		return Matern52, nil
	case "rbf", "se", "squared_exponential":
		return SquaredExponential, nil
	default:
		return Matern52, &ConfigurationError{Field: "Kernel", Reason: fmt.Sprintf("unknown kernel %q", s)}
	}
}

// Dimension is one tunable, continuous parameter with inclusive bounds.
//
// Fields:
// - Name: Reporting name, e.g. "B3_offset". Not used by the algorithm
// - Lower: Inclusive lower bound, in the physical unit of the parameter
// - Upper: Inclusive upper bound, must be greater than Lower
//
// Usage:
//
//	// Offset of the B1 harmonic drive, +/- 5 mm.
//	b1 := Dimension{Name: "B1_offset", Lower: -0.05, Upper: 0.05}
//
//	// Slope of the B1 harmonic drive, +/- 1e-4 m/coil.
//	b1Slope := Dimension{Name: "B1_slope", Lower: -0.0001, Upper: 0.0001}
type Dimension struct {
	Name  string  `json:"name" yaml:"name"`
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Observation is one completed evaluation.
type Observation struct {
	// Evaluation is the 1-based index of the evaluation within the run.
	Evaluation int

	// Phase is the state that proposed Params (RandomPhase or ModelPhase).
	Phase State

	// Params is the evaluated parameter vector, in Dimension order.
	Params []float64

	// Cost is the raw evaluator score, or +Inf for a tolerated sentinel.
	Cost float64

	// Valid is false when the evaluator rejected Params.
	Valid bool
}

// OptimizationResult is produced exactly once, when the loop ends.
type OptimizationResult struct {
	// Best is the lowest-cost valid observation; ties keep the earliest.
	// Nil when no valid observation exists.
	Best *Observation

	// History holds every observation in evaluation order.
	History []Observation

	// State is Done, or Failed when the run was aborted.
	State State

	// Evaluations is the number of evaluator calls performed.
	Evaluations int
}

// ProgressUpdate represents the current state of the optimization process.
type ProgressUpdate struct {
	// Phase is RandomPhase or ModelPhase
	Phase State

	// Evaluation is the 1-based number of the evaluation just completed
	Evaluation int

	// Budget is the total number of evaluations of the run
	Budget int

	// Params holds the parameter values just evaluated
	Params []float64

	// Cost holds the cost of the last evaluation (+Inf when invalid)
	Cost float64

	// Valid is false when the last evaluation hit the sentinel
	Valid bool

	// BestParams holds the best parameters found so far (nil if none)
	BestParams []float64

	// BestCost holds the best cost found so far (+Inf if none)
	BestCost float64
}

// Evaluator is the capability to score a parameter vector. It wraps the
// external physical simulator.
//
// Contract:
//   - params is ordered like the Dimensions of the run, in physical units
//   - the returned value is minimized; exactly Sentinel (-1.0) means the
//     configuration was rejected
//   - a non-nil error means the evaluator itself broke (process crash,
//     unreadable output) and aborts the run
//
// The optimizer never calls Evaluate concurrently.
type Evaluator interface {
	Evaluate(ctx context.Context, params []float64) (float64, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
//
// Usage example:
//
//	quadratic := EvaluatorFunc(func(_ context.Context, x []float64) (float64, error) {
//	    return x[0] * x[0], nil
//	})
type EvaluatorFunc func(ctx context.Context, params []float64) (float64, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(ctx context.Context, params []float64) (float64, error) {
	return f(ctx, params)
}

// Recorder receives every observation synchronously, right after it is
// appended to the history. A non-nil error aborts the run.
type Recorder interface {
	Record(obs Observation) error
}

// AcquisitionFunc scores a candidate point from the surrogate posterior.
//
// Parameters:
// - mean: The predicted cost at the point (lower is better)
// - variance: The predictive variance at that point
// - params: Additional parameters needed by specific acquisition functions
//
// Returns:
// - float64: Acquisition score; higher values indicate more promising points
//
// Built-in acquisition functions:
// - ExpectedImprovement: Expected magnitude of improvement (default)
// - ProbabilityOfImprovement: Probability of beating the best cost
// - LowerConfidenceBound: Optimistic cost bound, negated
//
// Implementation notes for custom acquisition functions:
// - Must return a finite value for any finite mean and variance >= 0
// - Should be deterministic
type AcquisitionFunc func(mean, variance float64, params AcquisitionParams) float64

// AcquisitionParams holds parameters used by the acquisition functions.
type AcquisitionParams struct {
	// Beta controls the exploration weight of LowerConfidenceBound.
	// Typical values range from 0.1 to 5.0.
	Beta float64

	// Xi is the minimum improvement over BestSoFar that Expected
	// Improvement and Probability of Improvement reward. Zero gives the
	// textbook definitions.
	Xi float64

	// BestSoFar is the lowest valid cost observed so far. It is set by the
	// optimizer before every acquisition search.
	BestSoFar float64
}

// Config holds all configuration parameters for the optimization process.
//
// Fields explanation:
// - Budget: Total number of evaluator calls
// - RandomStarts: Number of uniformly sampled evaluations before the
// surrogate takes over (at least 2, at most Budget)
// - NumCandidates: Random candidates scored per acquisition search
// - NumRestarts: Best candidates refined by local search per acquisition search
// - HyperRestarts: Extra random starts of the marginal-likelihood search
// - Seed: Seed of the run-owned random source (0 picks a time-based seed)
// - Mode: What a sentinel evaluation does to the run
// - Penalty: How tolerated sentinels take part in the surrogate fit
// - Kernel: Covariance function of the surrogate
// - AcquisitionFunc: Strategy for choosing the next point
// - AcqParams: Parameters for the acquisition function
//
// Usage example:
//
//	config := DefaultConfig()
//	config.Budget = 30
//	config.RandomStarts = 5
//	config.Mode = Tolerant
//	config.Seed = 42
type Config struct {
	Budget        int
	RandomStarts  int
	NumCandidates int
	NumRestarts   int
	HyperRestarts int
	Seed          int64

	Mode    SentinelPolicy
	Penalty PenaltyRule
	Kernel  KernelType

	AcquisitionFunc AcquisitionFunc
	AcqParams       AcquisitionParams

	// Logger receives structured logs. Nil disables logging.
	Logger *zap.Logger

	// ProgressChan is used to send progress updates during optimization.
	// If nil, no updates will be sent. Updates are dropped when the channel
	// is full.
	ProgressChan chan<- ProgressUpdate

	// Recorder, if set, receives every observation.
	Recorder Recorder
}
