package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// FSStore implements the Store interface using filesystem-based persistence.
// Runs are stored in a directory structure: <baseDir>/runs/<runID>/
//
// Thread-safety: This implementation uses atomic file operations (rename)
// and does not require locks.
type FSStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist. A nil logger disables
// logging.
func NewFSStore(baseDir string, logger *zap.Logger) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &FSStore{
		baseDir: baseDir,
		logger:  logger.Named("store"),
	}, nil
}

// BaseDir returns the root directory of the store.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

// runDir returns the directory path for a given run ID.
func (fs *FSStore) runDir(runID string) string {
	return runDir(fs.baseDir, runID)
}

// resultPath returns the path to the result.json file for a run.
func (fs *FSStore) resultPath(runID string) string {
	return filepath.Join(fs.runDir(runID), "result.json")
}

// SaveResult atomically saves the result of a run.
// Uses temp file + rename pattern to ensure atomicity.
func (fs *FSStore) SaveResult(result *Result) error {
	if result == nil {
		return errors.New("result cannot be nil")
	}

	if result.RunID == "" {
		return errors.New("runID cannot be empty")
	}

	dir := fs.runDir(result.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	finalPath := fs.resultPath(result.RunID)
	tempPath := finalPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp result file: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to rename result file: %w", err)
	}

	fs.logger.Debug("Result saved", zap.String("run_id", result.RunID), zap.String("path", finalPath))

	return nil
}

// LoadResult retrieves the result of the given run.
func (fs *FSStore) LoadResult(runID string) (*Result, error) {
	if runID == "" {
		return nil, errors.New("runID cannot be empty")
	}

	path := fs.resultPath(runID)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &NotFoundError{RunID: runID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize result: %w", err)
	}

	return &result, nil
}

// ListResults returns summaries of all stored results, most recent first.
// Runs without a result (still running or crashed) and unreadable results
// are skipped.
func (fs *FSStore) ListResults() ([]ResultInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if errors.Is(err, os.ErrNotExist) {
		return []ResultInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := make([]ResultInfo, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		result, err := fs.LoadResult(entry.Name())
		if errors.Is(err, ErrNotFound) {
			continue
		}

		if err != nil {
			fs.logger.Warn("Failed to load result for listing", zap.String("run_id", entry.Name()), zap.Error(err))

			continue
		}

		infos = append(infos, result.ToInfo())
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].FinishedAt.After(infos[j].FinishedAt)
	})

	return infos, nil
}

// DeleteRun removes the result, the trace and the directory of a run.
func (fs *FSStore) DeleteRun(runID string) error {
	if runID == "" {
		return errors.New("runID cannot be empty")
	}

	dir := fs.runDir(runID)

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	fs.logger.Debug("Run deleted", zap.String("run_id", runID), zap.String("path", dir))

	return nil
}

// runDir returns <baseDir>/runs/<runID>.
func runDir(baseDir, runID string) string {
	return filepath.Join(baseDir, "runs", runID)
}
