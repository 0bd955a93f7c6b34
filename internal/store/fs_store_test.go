package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cho "github.com/ThatTilux/CCT-Harmonics-Optimizer"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()

	store, err := NewFSStore(tempDir, nil)
	require.NoError(t, err)

	return store, tempDir
}

// createTestResult runs a short optimization and wraps it in a Result.
func createTestResult(t *testing.T, runID string) *Result {
	t.Helper()

	space, err := cho.NewSpace(
		cho.Dimension{Name: "B1_offset", Lower: -0.05, Upper: 0.05},
		cho.Dimension{Name: "B1_slope", Lower: -0.0001, Upper: 0.0001},
	)
	require.NoError(t, err)

	config := cho.DefaultConfig()
	config.Budget = 4
	config.RandomStarts = 4
	config.Seed = 42

	evaluator := cho.EvaluatorFunc(func(_ context.Context, x []float64) (float64, error) {
		return x[0]*x[0] + x[1]*x[1], nil
	})

	result, err := cho.Minimize(context.Background(), config, evaluator, space.Dimensions()...)
	require.NoError(t, err)

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	return NewResult(runID, RunConfig{Budget: 4, RandomStarts: 4, Seed: 42, Mode: "strict"}, space, result, nil, started, started.Add(time.Minute))
}

func TestSaveAndLoadResult(t *testing.T) {
	store, tempDir := setupTestStore(t)

	runID := NewRunID()
	original := createTestResult(t, runID)

	require.NoError(t, store.SaveResult(original))

	expectedPath := filepath.Join(tempDir, "runs", runID, "result.json")
	assert.FileExists(t, expectedPath)
	assert.NoFileExists(t, expectedPath+".tmp")

	loaded, err := store.LoadResult(runID)
	require.NoError(t, err)

	assert.Equal(t, original.RunID, loaded.RunID)
	assert.Equal(t, "done", loaded.State)
	assert.Equal(t, 4, loaded.Evaluations)
	assert.Equal(t, original.Dimensions, loaded.Dimensions)
	require.NotNil(t, loaded.Best)
	require.NotNil(t, loaded.Best.Cost)
	assert.Equal(t, *original.Best.Cost, *loaded.Best.Cost)
	assert.Equal(t, original.Best.Params, loaded.Best.Params)
	require.Len(t, loaded.BestHarmonics, 1)
	assert.Equal(t, "B1", loaded.BestHarmonics[0].Harmonic)
	assert.True(t, original.FinishedAt.Equal(loaded.FinishedAt))
}

func TestSaveResultOverwrite(t *testing.T) {
	store, _ := setupTestStore(t)

	result := createTestResult(t, "run-overwrite")
	require.NoError(t, store.SaveResult(result))

	result.State = "failed"
	result.Error = "simulator crashed"
	require.NoError(t, store.SaveResult(result))

	loaded, err := store.LoadResult("run-overwrite")
	require.NoError(t, err)

	assert.Equal(t, "failed", loaded.State)
	assert.Equal(t, "simulator crashed", loaded.Error)
}

func TestSaveResultValidation(t *testing.T) {
	store, _ := setupTestStore(t)

	assert.Error(t, store.SaveResult(nil))
	assert.Error(t, store.SaveResult(&Result{}))
}

func TestLoadResultNotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadResult("nonexistent-run")
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrNotFound)

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "nonexistent-run", notFound.RunID)

	_, err = store.LoadResult("")
	assert.Error(t, err)
}

func TestListResults(t *testing.T) {
	store, tempDir := setupTestStore(t)

	infos, err := store.ListResults()
	require.NoError(t, err)
	assert.Empty(t, infos)

	older := createTestResult(t, "run-1")
	newer := createTestResult(t, "run-2")
	newer.FinishedAt = older.FinishedAt.Add(time.Hour)

	require.NoError(t, store.SaveResult(older))
	require.NoError(t, store.SaveResult(newer))

	// A run that is still in progress has a trace but no result.
	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "runs", "run-3"), 0o755))

	// A corrupted result is skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "runs", "run-4"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "runs", "run-4", "result.json"), []byte("{"), 0o644))

	infos, err = store.ListResults()
	require.NoError(t, err)

	require.Len(t, infos, 2)
	assert.Equal(t, "run-2", infos[0].RunID)
	assert.Equal(t, "run-1", infos[1].RunID)
	assert.NotNil(t, infos[0].BestCost)
}

func TestDeleteRun(t *testing.T) {
	store, tempDir := setupTestStore(t)

	require.NoError(t, store.SaveResult(createTestResult(t, "run-delete")))
	require.NoError(t, store.DeleteRun("run-delete"))

	assert.NoDirExists(t, filepath.Join(tempDir, "runs", "run-delete"))
	assert.ErrorIs(t, store.DeleteRun("run-delete"), ErrNotFound)
}

func TestNewResultWithoutBest(t *testing.T) {
	result := &cho.OptimizationResult{State: cho.Failed, Evaluations: 3}

	r := NewResult("run", RunConfig{}, nil, result, cho.ErrInsufficientObservations, time.Now(), time.Now())

	assert.Equal(t, "failed", r.State)
	assert.Nil(t, r.Best)
	assert.Nil(t, r.ToInfo().BestCost)
	assert.Contains(t, r.Error, "not enough valid observations")
}
