// Package cho minimizes the field-harmonic error of canted-cosine-theta (CCT)
// magnets by Bayesian optimization. An external simulator scores a vector of
// custom-harmonic drive values (offsets in m, slopes in m/coil); a Gaussian
// Process surrogate and an acquisition function decide which vector the
// simulator evaluates next, so that good drives are found in few runs.
//
// # Features
//
// The package includes the following key features:
//
//   - Bayesian Optimization: Gaussian Process regression with a Matérn 5/2 or
//     RBF kernel, one length-scale per dimension, hyperparameters re-estimated
//     by maximum marginal likelihood on every refit
//   - Sentinel Handling: the simulator returns -1.0 for configurations it
//     rejects (e.g. overlapping coils); a run either aborts (Strict) or records
//     the point as invalid and keeps going (Tolerant)
//   - Reproducible Runs: one seeded random source per run drives sampling,
//     hyperparameter restarts and the acquisition search
//   - Progress Monitoring: real-time updates via channels, and a Recorder hook
//     for persisting every observation
//   - Data-driven Spaces: offset-only and offset-plus-slope studies are just
//     different lists of Dimension
//
// # Acquisition Functions
//
// The cost is minimized and every acquisition function scores a candidate so
// that higher is better.
//
// 1. Expected Improvement (EI), the default:
//
//	config := DefaultConfig()
//	config.AcqParams.Xi = 0 // Textbook definition
//
// 2. Probability of Improvement (PI):
//
//	config := DefaultConfig()
//	config.AcquisitionFunc = ProbabilityOfImprovement
//	config.AcqParams.Xi = 1e-6 // Minimum improvement threshold
//
// 3. Lower Confidence Bound (LCB):
//
//	config := DefaultConfig()
//	config.AcquisitionFunc = LowerConfidenceBound
//	config.AcqParams.Beta = 2.0 // Exploration weight
//
// # State Machine
//
// A run moves through Init, RandomPhase, ModelPhase and ends in Done or
// Failed:
//
//   - Init validates Config and the dimensions; nothing is evaluated on error
//   - RandomPhase evaluates RandomStarts uniform samples
//   - ModelPhase needs at least two valid observations; it refits the
//     surrogate and evaluates the acquisition maximizer until Budget
//     evaluations are done
//   - Failed is reached on a strict sentinel, an evaluator error, a surrogate
//     fit failure or context cancellation; the partial result is returned
//     together with the error
//
// # Configuration
//
// The Config struct allows customization of the optimization process:
//
//	type Config struct {
//	    Budget        int            // Total evaluations
//	    RandomStarts  int            // Initial random samples (>= 2)
//	    NumCandidates int            // Candidates per acquisition search
//	    NumRestarts   int            // Local refinements per acquisition search
//	    HyperRestarts int            // Extra likelihood-search starts
//	    Seed          int64          // 0 picks a time-based seed
//	    Mode          SentinelPolicy // Strict or Tolerant
//	    Penalty       PenaltyRule    // How invalid points enter the fit
//	    ...
//	}
//
// Recommended settings:
//   - Budget: 30-200 (each evaluation is a full field simulation)
//   - RandomStarts: 5-20 and at least twice the number of dimensions
//   - NumCandidates: 500-5000
//
// # Thread Safety
//
// A run is strictly sequential: one goroutine owns the history and the
// surrogate, and the Evaluator is never called concurrently. Independent
// runs may execute concurrently with different configs.
package cho
