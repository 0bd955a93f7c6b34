package cho

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/optimize"
)

// tieTolerance is the relative distance to the best acquisition score
// within which candidates count as equally good.
const tieTolerance = 1e-9

// candidate is a point of the unit cube with its acquisition score.
type candidate struct {
	u     []float64
	score float64
}

// maximizeAcquisition proposes the next point to evaluate.
//
// Parameters:
// - space: Parameter space of the run
// - gp: Surrogate fitted on the current observations
// - acq: Acquisition function (higher is better)
// - params: Acquisition parameters, BestSoFar already set
// - observed: Observed points in the unit cube, used for tie-breaking
// - numCandidates: Uniform random candidates scored in the unit cube
// - numRestarts: Best candidates refined by Nelder-Mead
// - rng: Run random source
//
// Returns:
// - []float64: The proposal in physical units, always within bounds
//
// How it works:
// 1. Scores numCandidates uniform random points of the unit cube
// 2. Refines the numRestarts best with Nelder-Mead on the negated score,
// coordinates clamped to [0, 1]
// 3. Picks the highest score; candidates within tieTolerance of it are
// separated by their distance to the closest observed point, farthest
// first
func maximizeAcquisition(
	space *Space,
	gp *gaussianProcess,
	acq AcquisitionFunc,
	params AcquisitionParams,
	observed [][]float64,
	numCandidates int,
	numRestarts int,
	rng *rand.Rand,
) []float64 {
	d := space.Len()

	score := func(u []float64) float64 {
		mean, variance := gp.Predict(u)

		s := acq(mean, variance, params)
		if math.IsNaN(s) {
			return math.Inf(-1)
		}

		return s
	}

	pool := make([]candidate, 0, numCandidates+numRestarts)

	for i := 0; i < numCandidates; i++ {
		u := make([]float64, d)
		for j := range u {
			u[j] = rng.Float64()
		}

		pool = append(pool, candidate{u: u, score: score(u)})
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].score > pool[j].score
	})

	if numRestarts > len(pool) {
		numRestarts = len(pool)
	}

	problem := optimize.Problem{
		Func: func(u []float64) float64 {
			return -score(clampUnit(u))
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: 50 * (d + 1),
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-9,
			Iterations: 20,
		},
	}

	for i := 0; i < numRestarts; i++ {
		result, _ := optimize.Minimize(problem, pool[i].u, settings, &optimize.NelderMead{})
		if result == nil || math.IsNaN(result.F) || math.IsInf(result.F, 0) {
			continue
		}

		u := clampUnit(result.X)
		pool = append(pool, candidate{u: u, score: score(u)})
	}

	return space.Denormalize(selectCandidate(pool, observed))
}

// selectCandidate returns the point with the highest score. Near-ties are
// broken by the largest minimum distance to observed; remaining ties keep
// the earliest candidate.
func selectCandidate(pool []candidate, observed [][]float64) []float64 {
	best := math.Inf(-1)
	for _, c := range pool {
		if c.score > best {
			best = c.score
		}
	}

	threshold := best - tieTolerance*math.Abs(best)
	if math.IsInf(best, 0) {
		threshold = best
	}

	var (
		chosen   []float64
		farthest = -1.0
	)

	for _, c := range pool {
		if c.score < threshold {
			continue
		}

		if dist := minDistance(c.u, observed); dist > farthest {
			farthest = dist
			chosen = c.u
		}
	}

	return chosen
}
