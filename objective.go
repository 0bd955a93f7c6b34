package cho

import (
	"context"
	"math"
)

//////
// Const, vars, types.
//////

// objective wraps the user Evaluator and applies the sentinel policy of the
// run. It is the only place where raw evaluator values are interpreted.
type objective struct {
	evaluator Evaluator
	policy    SentinelPolicy
}

//////
// Methods.
//////

// Evaluate scores x through the wrapped evaluator.
//
// Parameters:
// - ctx: Passed through to the evaluator
// - n: 1-based evaluation number, used in errors
// - x: Parameter vector in physical units
//
// Returns:
// - cost: The raw evaluator value, or +Inf for a tolerated rejection
// - valid: False when the evaluator rejected x
// - err: *EvaluationError when the evaluator failed, *SentinelError when
// x was rejected in Strict mode
//
// Important notes:
// - A raw value equal to Sentinel is a rejection
// - NaN and infinite raw values carry no cost signal and are handled like
// the sentinel
// - Any other value is returned unchanged
func (o *objective) Evaluate(ctx context.Context, n int, x []float64) (cost float64, valid bool, err error) {
	raw, err := o.evaluator.Evaluate(ctx, cloneFloats(x))
	if err != nil {
		return math.Inf(1), false, &EvaluationError{Evaluation: n, Err: err}
	}

	if !isRejection(raw) {
		return raw, true, nil
	}

	if o.policy == Strict {
		return math.Inf(1), false, &SentinelError{Evaluation: n, Params: cloneFloats(x)}
	}

	return math.Inf(1), false, nil
}

//////
// Factory.
//////

// newObjective returns an objective applying policy to evaluator.
func newObjective(evaluator Evaluator, policy SentinelPolicy) *objective {
	return &objective{
		evaluator: evaluator,
		policy:    policy,
	}
}

//////
// Helper functions.
//////

// isRejection reports whether a raw evaluator value marks a rejected
// configuration.
func isRejection(raw float64) bool {
	return raw == Sentinel || math.IsNaN(raw) || math.IsInf(raw, 0)
}
