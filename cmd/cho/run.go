package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cho "github.com/ThatTilux/CCT-Harmonics-Optimizer"
	"github.com/ThatTilux/CCT-Harmonics-Optimizer/internal/config"
	"github.com/ThatTilux/CCT-Harmonics-Optimizer/internal/evaluator"
	"github.com/ThatTilux/CCT-Harmonics-Optimizer/internal/logging"
	"github.com/ThatTilux/CCT-Harmonics-Optimizer/internal/store"
)

// runOptions holds the flags of the run command that are not settings.
type runOptions struct {
	configPath string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	defaults := cho.DefaultConfig()

	runCmd := &cobra.Command{
		Use:   "run [flags] -- <simulator command...>",
		Short: "Run a Bayesian optimization against a field simulator",
		Long: `Runs the optimization loop. The simulator is started once per evaluation
with the parameter values appended to its arguments and must print the cost
as the last line of stdout, or -1 to reject the configuration.

The trace (one JSON line per evaluation) and result.json are written to
<out>/runs/<run id>/.

Every setting can also be given in the --config file or as a CHO_*
environment variable (CHO_NUM_CANDIDATES=500); flags take precedence.`,
		Example: `  cho run --config configs/offsets.yaml --seed 42 -- ./simulate --harmonics
  cho run --space space.yaml --budget 40 --mode tolerant -- python field.py`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimization(cmd, args, root, opts)
		},
	}

	runCmd.Flags().StringVar(&opts.configPath, "config", "", "Settings file (YAML)")
	runCmd.Flags().String("space", "", "Parameter space file (YAML, defaults to --config)")
	runCmd.Flags().Int("budget", defaults.Budget, "Total number of simulator evaluations")
	runCmd.Flags().Int("random-starts", defaults.RandomStarts, "Random evaluations before the surrogate is used")
	runCmd.Flags().Int64("seed", 0, "Random seed (0 picks a time-based seed)")
	runCmd.Flags().String("mode", defaults.Mode.String(), "Sentinel handling: strict, tolerant")
	runCmd.Flags().String("penalty", defaults.Penalty.String(), "Rejected points in the surrogate: capped, exclude")
	runCmd.Flags().String("kernel", defaults.Kernel.String(), "Surrogate kernel: matern52, rbf")
	runCmd.Flags().String("acquisition", "ei", "Acquisition function: ei, pi, lcb")
	runCmd.Flags().Float64("xi", defaults.AcqParams.Xi, "Minimum improvement for ei and pi")
	runCmd.Flags().Float64("beta", defaults.AcqParams.Beta, "Exploration weight for lcb")
	runCmd.Flags().Int("num-candidates", defaults.NumCandidates, "Random candidates scored per acquisition search")
	runCmd.Flags().Int("num-restarts", defaults.NumRestarts, "Best candidates refined by Nelder-Mead per search")
	runCmd.Flags().Int("hyper-restarts", defaults.HyperRestarts, "Random starts of the hyperparameter search")
	runCmd.Flags().Duration("timeout", 0, "Timeout of a single simulator run (0 = none)")
	runCmd.Flags().String("out", "results", "Output directory")

	return runCmd
}

func runOptimization(cmd *cobra.Command, args []string, root *rootOptions, opts *runOptions) error {
	settings, err := config.Load(opts.configPath, cmd.Flags())
	if err != nil {
		return err
	}

	if len(args) > 0 {
		settings.Command = args
	}

	if len(settings.Command) == 0 {
		return errors.New("no simulator command: pass it after -- or set command in the settings file")
	}

	if settings.Space == "" {
		return errors.New("no parameter space: set --space or --config")
	}

	logger := root.logger
	if settings.LogLevel != root.logLevel || settings.LogFormat != root.logFormat {
		if logger, err = logging.New(settings.LogLevel, settings.LogFormat, cmd.ErrOrStderr()); err != nil {
			return err
		}
	}

	dims, err := config.LoadSpace(settings.Space)
	if err != nil {
		return err
	}

	space, err := cho.NewSpace(dims...)
	if err != nil {
		return err
	}

	optConfig, err := settings.OptimizationConfig()
	if err != nil {
		return err
	}

	simulator, err := evaluator.NewCommand(settings.Command, settings.Timeout, logger)
	if err != nil {
		return err
	}

	resultStore, err := store.NewFSStore(settings.Out, logger)
	if err != nil {
		return fmt.Errorf("failed to create result store: %w", err)
	}

	runID := store.NewRunID()

	trace, err := store.NewTraceWriter(settings.Out, runID)
	if err != nil {
		return err
	}

	runLogger := logger.With(zap.String("run_id", runID))
	runLogger.Info("Loaded parameter space",
		zap.String("path", settings.Space),
		zap.Int("dimensions", space.Len()),
		zap.Strings("command", settings.Command),
	)

	optConfig.Logger = runLogger
	optConfig.Recorder = trace

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	result, runErr := cho.Minimize(ctx, optConfig, simulator, dims...)
	finishedAt := time.Now()

	if err := trace.Close(); err != nil {
		runLogger.Warn("Failed to close trace", zap.Error(err))
	}

	saved := store.NewResult(runID, runConfig(settings), space, result, runErr, startedAt, finishedAt)
	if err := resultStore.SaveResult(saved); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	printSummary(cmd.OutOrStdout(), saved, resultStore.BaseDir())

	if runErr != nil {
		return fmt.Errorf("optimization failed after %d evaluations: %w", result.Evaluations, runErr)
	}

	return nil
}

// runConfig copies the settings stored with a result.
func runConfig(s *config.Settings) store.RunConfig {
	return store.RunConfig{
		Budget:       s.Budget,
		RandomStarts: s.RandomStarts,
		Seed:         s.Seed,
		Mode:         s.Mode,
		Penalty:      s.Penalty,
		Kernel:       s.Kernel,
		Acquisition:  s.Acquisition,
		Command:      s.Command,
	}
}

func printSummary(w io.Writer, r *store.Result, baseDir string) {
	fmt.Fprintf(w, "Run %s: %s after %d evaluations\n", r.RunID, r.State, r.Evaluations)

	if r.Best == nil || r.Best.Cost == nil {
		fmt.Fprintln(w, "No valid evaluation.")
	} else {
		fmt.Fprintf(w, "Best cost %.6g at evaluation %d\n", *r.Best.Cost, r.Best.Evaluation)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "HARMONIC\tOFFSET\tSLOPE")

		for _, drive := range r.BestHarmonics {
			fmt.Fprintf(tw, "%s\t%.17g\t%.17g\n", drive.Harmonic, drive.Offset, drive.Slope)
		}

		_ = tw.Flush()
	}

	fmt.Fprintf(w, "Wrote %s/runs/%s\n", baseDir, r.RunID)
}
