package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ThatTilux/CCT-Harmonics-Optimizer/internal/store"
)

func newResultsCmd(root *rootOptions) *cobra.Command {
	var outDir string

	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect stored optimization runs",
		Long:  `List, show and delete the runs stored under the output directory.`,
	}

	resultsCmd.PersistentFlags().StringVar(&outDir, "out", "results", "Output directory of the runs")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			resultStore, err := store.NewFSStore(outDir, root.logger)
			if err != nil {
				return fmt.Errorf("failed to create result store: %w", err)
			}

			infos, err := resultStore.ListResults()
			if err != nil {
				return fmt.Errorf("failed to list results: %w", err)
			}

			w := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(w, "No runs found.")
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tFINISHED\tSTATE\tEVALUATIONS\tBEST COST")

			for _, info := range infos {
				bestCost := "-"
				if info.BestCost != nil {
					bestCost = strconv.FormatFloat(*info.BestCost, 'g', 6, 64)
				}

				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					info.RunID,
					info.FinishedAt.Format("2006-01-02 15:04:05"),
					info.State,
					info.Evaluations,
					bestCost,
				)
			}

			_ = tw.Flush()

			fmt.Fprintf(w, "\nTotal runs: %d\n", len(infos))

			return nil
		},
	}

	var showTrace bool

	showCmd := &cobra.Command{
		Use:   "show <run id>",
		Short: "Show the result of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resultStore, err := store.NewFSStore(outDir, root.logger)
			if err != nil {
				return fmt.Errorf("failed to create result store: %w", err)
			}

			result, err := resultStore.LoadResult(args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printSummary(w, result, resultStore.BaseDir())

			if result.Error != "" {
				fmt.Fprintf(w, "Error: %s\n", result.Error)
			}

			if !showTrace {
				return nil
			}

			reader, err := store.NewTraceReader(outDir, args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			entries, err := reader.ReadAll()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "EVALUATION\tPHASE\tCOST\tPARAMS")

			for _, entry := range entries {
				cost := "rejected"
				if entry.Cost != nil {
					cost = strconv.FormatFloat(*entry.Cost, 'g', 6, 64)
				}

				fmt.Fprintf(tw, "%d\t%s\t%s\t%v\n", entry.Evaluation, entry.Phase, cost, entry.Params)
			}

			return tw.Flush()
		},
	}

	showCmd.Flags().BoolVar(&showTrace, "trace", false, "Also print every evaluation of the run")

	deleteCmd := &cobra.Command{
		Use:   "delete <run id>",
		Short: "Delete a run and its trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resultStore, err := store.NewFSStore(outDir, root.logger)
			if err != nil {
				return fmt.Errorf("failed to create result store: %w", err)
			}

			if err := resultStore.DeleteRun(args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("run %s not found", args[0])
				}

				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])

			return nil
		},
	}

	resultsCmd.AddCommand(listCmd, showCmd, deleteCmd)

	return resultsCmd
}
