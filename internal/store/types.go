package store

import (
	"math"
	"time"

	"github.com/google/uuid"

	cho "github.com/ThatTilux/CCT-Harmonics-Optimizer"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RunConfig is the copy of the run settings stored with a result.
type RunConfig struct {
	Budget       int      `json:"budget"`
	RandomStarts int      `json:"randomStarts"`
	Seed         int64    `json:"seed"`
	Mode         string   `json:"mode"`
	Penalty      string   `json:"penalty"`
	Kernel       string   `json:"kernel"`
	Acquisition  string   `json:"acquisition"`
	Command      []string `json:"command,omitempty"`
}

// Entry is one evaluation, serialized as a JSON line in trace.jsonl and as
// the best observation in result.json.
type Entry struct {
	// Evaluation is the 1-based evaluation number
	Evaluation int `json:"evaluation"`

	// Phase is "random" or "model"
	Phase string `json:"phase"`

	// Params is the evaluated vector, in dimension order
	Params []float64 `json:"params"`

	// Cost is nil for rejected evaluations, since JSON has no infinity
	Cost *float64 `json:"cost"`

	// Valid is false when the simulator rejected Params
	Valid bool `json:"valid"`

	// Timestamp records when the entry was created
	Timestamp time.Time `json:"timestamp"`
}

// NewEntry converts an observation into an Entry.
func NewEntry(obs cho.Observation) Entry {
	entry := Entry{
		Evaluation: obs.Evaluation,
		Phase:      obs.Phase.String(),
		Params:     append([]float64(nil), obs.Params...),
		Valid:      obs.Valid,
		Timestamp:  time.Now().UTC(),
	}

	if obs.Valid && !math.IsInf(obs.Cost, 0) && !math.IsNaN(obs.Cost) {
		cost := obs.Cost
		entry.Cost = &cost
	}

	return entry
}

// Result is the persisted outcome of a run.
type Result struct {
	RunID      string          `json:"runId"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	State      string          `json:"state"`
	Error      string          `json:"error,omitempty"`
	Config     RunConfig       `json:"config"`
	Dimensions []cho.Dimension `json:"dimensions"`

	// Evaluations is the number of simulator calls
	Evaluations int `json:"evaluations"`

	// Best is nil when no valid evaluation exists
	Best *Entry `json:"best,omitempty"`

	// BestHarmonics groups the best parameters by harmonic
	BestHarmonics []cho.HarmonicDrive `json:"bestHarmonics,omitempty"`
}

// ResultInfo is the summary of a result returned by ListResults.
type ResultInfo struct {
	RunID       string    `json:"runId"`
	FinishedAt  time.Time `json:"finishedAt"`
	State       string    `json:"state"`
	Evaluations int       `json:"evaluations"`
	BestCost    *float64  `json:"bestCost,omitempty"`
}

// NewResult builds the Result of a finished run. runErr is the error
// returned by cho.Minimize, if any.
func NewResult(
	runID string,
	config RunConfig,
	space *cho.Space,
	result *cho.OptimizationResult,
	runErr error,
	startedAt, finishedAt time.Time,
) *Result {
	r := &Result{
		RunID:       runID,
		StartedAt:   startedAt.UTC(),
		FinishedAt:  finishedAt.UTC(),
		State:       result.State.String(),
		Config:      config,
		Evaluations: result.Evaluations,
	}

	if space != nil {
		r.Dimensions = space.Dimensions()
	}

	if runErr != nil {
		r.Error = runErr.Error()
	}

	if result.Best != nil {
		best := NewEntry(*result.Best)
		best.Timestamp = r.FinishedAt
		r.Best = &best

		if space != nil {
			r.BestHarmonics = space.Harmonics(result.Best.Params)
		}
	}

	return r
}

// ToInfo returns the summary of r.
func (r *Result) ToInfo() ResultInfo {
	info := ResultInfo{
		RunID:       r.RunID,
		FinishedAt:  r.FinishedAt,
		State:       r.State,
		Evaluations: r.Evaluations,
	}

	if r.Best != nil {
		info.BestCost = r.Best.Cost
	}

	return info
}
