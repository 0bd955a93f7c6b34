package cho

import "math"

//////
// Available acquisition functions for Bayesian optimization.
// Each function helps decide which points to evaluate next by balancing
// exploration (trying new areas) and exploitation (focusing on known good areas).
// The cost is minimized; every function returns a score where higher is
// more promising.
//////

// ExpectedImprovement (EI) calculates the expected amount by which a point
// improves upon the lowest cost observed so far.
//
// How it works:
// - Combines the probability of improvement with the magnitude of improvement
// - Balances how likely and how large the improvement might be
// - Returns 0 where the model is certain (zero variance)
//
// Parameters:
// - mean: Predicted cost at this point
// - variance: Uncertainty in the prediction
// - params.BestSoFar: Lowest valid cost observed so far
// - params.Xi: Minimum improvement desired (0 for the textbook definition)
//
// Mathematical formula:
//
//	z  = (BestSoFar - mean - Xi) / sigma
//	EI = (BestSoFar - mean - Xi) * Phi(z) + sigma * phi(z)
//
// Example:
//
//	params := AcquisitionParams{
//	    BestSoFar: 1.0e-4, // Current best cost
//	}
//	expected := ExpectedImprovement(0.9e-4, 1e-10, params)
func ExpectedImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(math.Max(variance, 0))
	if sigma == 0 {
		return 0
	}

	improvement := params.BestSoFar - mean - params.Xi

	z := improvement / sigma

	ei := improvement*normalCDF(z) + sigma*normalPDF(z)
	if ei < 0 {
		// Rounding in the far tail.
		return 0
	}

	return ei
}

// ProbabilityOfImprovement (PI) calculates the probability that a point
// beats the lowest cost observed so far by at least Xi.
//
// Parameters:
// - mean: Predicted cost at this point
// - variance: Uncertainty in the prediction
// - params.BestSoFar: Lowest valid cost observed so far
// - params.Xi: Minimum improvement desired
//
// When to use:
// - When you want to be conservative in exploring new points
// - When you're fine with small improvements
//
// Example:
//
//	params := AcquisitionParams{
//	    BestSoFar: 1.0,
//	    Xi: 0.01,
//	}
//	prob := ProbabilityOfImprovement(0.9, 0.2, params)
func ProbabilityOfImprovement(mean, variance float64, params AcquisitionParams) float64 {
	improvement := params.BestSoFar - mean - params.Xi

	sigma := math.Sqrt(math.Max(variance, 0))
	if sigma == 0 {
		if improvement > 0 {
			return 1
		}

		return 0
	}

	return normalCDF(improvement / sigma)
}

// LowerConfidenceBound implements the confidence-bound acquisition function
// for minimization. The optimistic cost bound mean - Beta*sigma is negated
// so that higher scores are better, like the other acquisition functions.
//
// Parameters:
// - mean: Predicted cost at this point
// - variance: Uncertainty in the prediction
// - params.Beta: Exploration weight (higher = more exploration)
//
// Example:
//
//	params := AcquisitionParams{
//	    Beta: 2.0,
//	}
//	score := LowerConfidenceBound(0.5, 0.2, params)
func LowerConfidenceBound(mean, variance float64, params AcquisitionParams) float64 {
	return -(mean - params.Beta*math.Sqrt(math.Max(variance, 0)))
}
