package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cascadelab/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse stored experiments",
		Long:  `List, show and delete experiments saved with 'cascadelab run --save'.`,
	}
	cmd.AddCommand(
		newHistoryListCmd(),
		newHistoryShowCmd(),
		newHistoryDeleteCmd(),
	)
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored experiments, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			rs, err := storeFromSettings(cmd)
			if err != nil {
				return err
			}
			defer rs.Close()

			summaries, err := rs.ListExperiments(context.Background(), limit)
			if err != nil {
				return fmt.Errorf("list experiments: %w", err)
			}

			if jsonOutput(cmd) {
				if summaries == nil {
					summaries = []store.Summary{}
				}
				return writeJSON(cmd.OutOrStdout(), summaries)
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No experiments stored. Run 'cascadelab run --save' first.")
				return nil
			}
			fmt.Fprintf(out, "%-36s  %-20s  %-4s  %6s  %5s  %5s  %7s  %8s\n",
				"ID", "CREATED", "KIND", "NODES", "ITERS", "RUNS", "REACHED", "MEAN")
			for _, s := range summaries {
				kind := string(s.Topology)
				if kind == "" {
					kind = "file"
				}
				fmt.Fprintf(out, "%-36s  %-20s  %-4s  %6d  %5d  %5d  %7d  %8.1f\n",
					s.ID, s.CreatedAt.Local().Format(time.DateTime), kind, s.Nodes, s.Iterations, s.Runs, s.FinalReach, s.MeanReach)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum experiments to list (0 = all)")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := storeFromSettings(cmd)
			if err != nil {
				return err
			}
			defer rs.Close()

			exp, err := rs.GetExperiment(context.Background(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("experiment not found: %s", args[0])
			}
			if err != nil {
				return fmt.Errorf("load experiment: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), exp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Experiment %s (%s)\n", exp.ID, exp.CreatedAt.Local().Format(time.DateTime))
			printExperiment(out, exp)
			return nil
		},
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := storeFromSettings(cmd)
			if err != nil {
				return err
			}
			defer rs.Close()

			err = rs.DeleteExperiment(context.Background(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("experiment not found: %s", args[0])
			}
			if err != nil {
				return fmt.Errorf("delete experiment: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func storeFromSettings(cmd *cobra.Command) (*store.SQLiteResultStore, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	return openStore(cfg)
}
