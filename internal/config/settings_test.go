package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cho "github.com/ThatTilux/CCT-Harmonics-Optimizer"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 50, s.Budget)
	assert.Equal(t, 10, s.RandomStarts)
	assert.Equal(t, "strict", s.Mode)
	assert.Equal(t, "capped", s.Penalty)
	assert.Equal(t, "matern52", s.Kernel)
	assert.Equal(t, "ei", s.Acquisition)
	assert.Equal(t, "results", s.Out)
	assert.Equal(t, "info", s.LogLevel)
	assert.Empty(t, s.Space)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	path := writeFile(t, "run.yaml", `
budget: 30
random_starts: 5
mode: tolerant
command: [./simulate, --quiet]
timeout: 90s
`)

	t.Setenv("CHO_RANDOM_STARTS", "6")
	t.Setenv("CHO_SEED", "11")

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.Int("budget", 0, "")
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--budget", "40", "--log-level", "debug"}))

	s, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 40, s.Budget)
	assert.Equal(t, 6, s.RandomStarts)
	assert.Equal(t, int64(11), s.Seed)
	assert.Equal(t, "tolerant", s.Mode)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, []string{"./simulate", "--quiet"}, s.Command)
	assert.Equal(t, 90*time.Second, s.Timeout)
	assert.Equal(t, path, s.Space)
}

func TestLoadUnsetFlagKeepsFileValue(t *testing.T) {
	path := writeFile(t, "run.yaml", "budget: 30\nrandom_starts: 5\n")

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.Int("budget", 99, "")
	require.NoError(t, flags.Parse(nil))

	s, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 30, s.Budget)
}

func TestLoadValidation(t *testing.T) {
	path := writeFile(t, "run.yaml", "budget: 4\nrandom_starts: 5\nmode: lenient\n")

	_, err := Load(path, nil)
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)

	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}

	assert.ElementsMatch(t, []string{"random_starts", "mode"}, fields)
	assert.Contains(t, err.Error(), "must be one of: strict tolerant")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestOptimizationConfig(t *testing.T) {
	s := &Settings{
		Budget:        30,
		RandomStarts:  5,
		NumCandidates: 200,
		NumRestarts:   2,
		HyperRestarts: 1,
		Seed:          3,
		Mode:          "tolerant",
		Penalty:       "exclude",
		Kernel:        "rbf",
		Acquisition:   "lcb",
		Beta:          1.5,
	}

	config, err := s.OptimizationConfig()
	require.NoError(t, err)

	assert.Equal(t, 30, config.Budget)
	assert.Equal(t, 5, config.RandomStarts)
	assert.Equal(t, 200, config.NumCandidates)
	assert.Equal(t, int64(3), config.Seed)
	assert.Equal(t, cho.Tolerant, config.Mode)
	assert.Equal(t, cho.PenaltyExclude, config.Penalty)
	assert.Equal(t, cho.SquaredExponential, config.Kernel)
	assert.Equal(t, 1.5, config.AcqParams.Beta)
	assert.InDelta(t, -(1 - 1.5), config.AcquisitionFunc(1, 1, config.AcqParams), 1e-12)

	s.Acquisition = "thompson"

	_, err = s.OptimizationConfig()
	assert.ErrorIs(t, err, cho.ErrConfiguration)
}
