// Package store persists optimization runs on the filesystem.
//
// Every run lives in <baseDir>/runs/<runID>/ and holds:
//   - trace.jsonl: one line per evaluation, written while the run progresses
//   - result.json: the final outcome, written once when the run ends
package store

// Store defines the interface for result persistence operations.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if the run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveResult atomically saves the result of a run, overwriting any
	// previous result with the same RunID.
	SaveResult(result *Result) error

	// LoadResult retrieves the result of the given run.
	LoadResult(runID string) (*Result, error)

	// ListResults returns summaries of all stored results.
	ListResults() ([]ResultInfo, error)

	// DeleteRun removes the result and the trace of the given run.
	DeleteRun(runID string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}

	return "run not found"
}

// Is reports whether target is a *NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}
