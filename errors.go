package cho

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to test for them; the typed errors below
// match the corresponding sentinel.
var (
	// ErrConfiguration is returned before any evaluation when the
	// configuration or the parameter space is invalid.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrEvaluationSentinel is returned in Strict mode when the evaluator
	// rejects a configuration.
	ErrEvaluationSentinel = errors.New("evaluator returned the failure sentinel")

	// ErrEvaluation is returned when the evaluator itself fails.
	ErrEvaluation = errors.New("evaluation failed")

	// ErrModelFit is returned when the surrogate can not be fitted, even
	// after the jitter retry.
	ErrModelFit = errors.New("surrogate model fit failed")

	// ErrInsufficientObservations is returned when fewer than two valid
	// observations are available for modeling.
	ErrInsufficientObservations = errors.New("not enough valid observations to fit the surrogate")
)

// ConfigurationError reports an invalid configuration field.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Field + " " + e.Reason
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// SentinelError is returned in Strict mode for a rejected evaluation.
type SentinelError struct {
	Evaluation int
	Params     []float64
}

func (e *SentinelError) Error() string {
	return fmt.Sprintf("evaluation %d: evaluator returned the failure sentinel for %v", e.Evaluation, e.Params)
}

// Unwrap returns ErrEvaluationSentinel.
func (e *SentinelError) Unwrap() error {
	return ErrEvaluationSentinel
}

// EvaluationError wraps an error returned by the Evaluator.
type EvaluationError struct {
	Evaluation int
	Err        error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation %d: %v", e.Evaluation, e.Err)
}

// Is reports whether target is ErrEvaluation.
func (e *EvaluationError) Is(target error) bool {
	return target == ErrEvaluation
}

// Unwrap returns the evaluator error.
func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// ModelFitError is returned when the surrogate can not be fitted.
type ModelFitError struct {
	// Points is the number of observations the fit was attempted on.
	Points int
	Err    error
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("surrogate fit on %d points: %v", e.Points, e.Err)
}

// Is reports whether target is ErrModelFit.
func (e *ModelFitError) Is(target error) bool {
	return target == ErrModelFit
}

// Unwrap returns the underlying cause.
func (e *ModelFitError) Unwrap() error {
	return e.Err
}
