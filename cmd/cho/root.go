package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ThatTilux/CCT-Harmonics-Optimizer/internal/logging"
)

// rootOptions holds the persistent flags shared by all subcommands.
type rootOptions struct {
	logLevel  string
	logFormat string
	logger    *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "cho",
		Short: "Bayesian optimization of CCT magnet harmonics",
		Long: `CCT-Harmonics-Optimizer tunes the custom-harmonic drives (offsets and
slopes) of a canted-cosine-theta magnet. An external field simulator scores
every drive vector; a Gaussian Process surrogate with Expected Improvement
chooses the next vector to simulate.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(opts.logLevel, opts.logFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			opts.logger = logger

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", logging.FormatJSON, "Log format (json, console)")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newResultsCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
