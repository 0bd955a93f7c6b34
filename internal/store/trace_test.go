package store

import (
	"math"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cho "github.com/ThatTilux/CCT-Harmonics-Optimizer"
)

func TestTraceWriterRecordsObservations(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "run-trace")
	require.NoError(t, err)

	observations := []cho.Observation{
		{Evaluation: 1, Phase: cho.RandomPhase, Params: []float64{0.01}, Cost: 1e-4, Valid: true},
		{Evaluation: 2, Phase: cho.RandomPhase, Params: []float64{0.045}, Cost: math.Inf(1), Valid: false},
		{Evaluation: 3, Phase: cho.ModelPhase, Params: []float64{-0.002}, Cost: 4e-6, Valid: true},
	}

	for _, obs := range observations {
		require.NoError(t, tw.Record(obs))
	}

	// Record flushes, so the trace is readable before Close.
	data, err := os.ReadFile(tw.Path())
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), `"cost":null`)

	require.NoError(t, tw.Close())

	tr, err := NewTraceReader(baseDir, "run-trace")
	require.NoError(t, err)

	defer tr.Close()

	entries, err := tr.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, 1, entries[0].Evaluation)
	assert.Equal(t, "random", entries[0].Phase)
	require.NotNil(t, entries[0].Cost)
	assert.Equal(t, 1e-4, *entries[0].Cost)

	assert.False(t, entries[1].Valid)
	assert.Nil(t, entries[1].Cost)

	assert.Equal(t, "model", entries[2].Phase)
	assert.Equal(t, []float64{-0.002}, entries[2].Params)
}

func TestTraceReaderNotFound(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTraceWriterEmptyRunID(t *testing.T) {
	_, err := NewTraceWriter(t.TempDir(), "")
	assert.Error(t, err)
}

func TestTraceWriterTruncates(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "run")
	require.NoError(t, err)
	require.NoError(t, tw.Record(cho.Observation{Evaluation: 1, Params: []float64{0}, Cost: 1, Valid: true}))
	require.NoError(t, tw.Close())

	tw, err = NewTraceWriter(baseDir, "run")
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	tr, err := NewTraceReader(baseDir, "run")
	require.NoError(t, err)

	defer tr.Close()

	entries, err := tr.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
