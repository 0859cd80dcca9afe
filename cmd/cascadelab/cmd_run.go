package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cascadelab/internal/cascade"
	"github.com/nvandessel/cascadelab/internal/experiment"
	"github.com/nvandessel/cascadelab/internal/export"
	"github.com/nvandessel/cascadelab/internal/logging"
	"github.com/nvandessel/cascadelab/internal/metrics"
	"github.com/nvandessel/cascadelab/internal/montecarlo"
	"github.com/nvandessel/cascadelab/internal/store"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a full cascade experiment",
		Long: `Generate a topology (or read one with --graph), compute its static metrics,
simulate one cascade and a Monte Carlo ensemble, and print the results.

Examples:
  cascadelab run                                  # configured preset
  cascadelab run --topology WS --iterations 50
  cascadelab run --graph net.yaml --keep-attributes --runs 100
  cascadelab run --save --arrow series.arrow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := settingsWithFlags(cmd)
			if err != nil {
				return err
			}
			req, err := experimentRequest(cmd, cfg)
			if err != nil {
				return err
			}
			save, _ := cmd.Flags().GetBool("save")
			arrowPath, _ := cmd.Flags().GetString("arrow")

			logger := newLogger(cmd, cfg)
			trace := logging.NewTraceLogger(cfg.Logging.TraceDir, cfg.Logging.Level)
			defer trace.Close()

			pipeline := &experiment.Pipeline{
				Engine:  cascade.NewEngine().WithTrace(trace),
				Workers: cfg.Ensemble.Workers,
				Logger:  logger,
			}
			if save {
				rs, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer rs.Close()
				pipeline.Store = rs
			}

			ctx, cancel := signalContext(context.Background())
			defer cancel()

			res, err := pipeline.Run(ctx, req)
			if err != nil {
				return err
			}

			if arrowPath != "" {
				if err := writeArrowFile(arrowPath, func(w io.Writer) error {
					return export.WriteTimeSeries(w, res.Experiment.TimeSeries, res.Experiment.Reach)
				}); err != nil {
					return err
				}
				logger.Info("time series written", "path", arrowPath)
			}
			if p := trace.Path(); p != "" {
				logger.Debug("cascade trace written", "path", p)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"experiment": res.Experiment,
					"histogram":  res.Histogram,
					"saved":      save,
				})
			}
			printExperiment(cmd.OutOrStdout(), res.Experiment)
			if save {
				fmt.Fprintf(cmd.OutOrStdout(), "\nSaved as %s\n", res.Experiment.ID)
			}
			return nil
		},
	}

	addTopologyFlags(cmd)
	addCascadeFlags(cmd)
	cmd.Flags().Bool("save", false, "Persist the experiment to the result store")
	cmd.Flags().String("arrow", "", "Write the time series to an Arrow IPC file")

	return cmd
}

func newMontecarloCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "Estimate the final reach distribution over seeded runs",
		Long: `Run the ensemble only: run i uses seed + 17*i, and each outcome is the
number of nodes ever broadcasting or reacting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := settingsWithFlags(cmd)
			if err != nil {
				return err
			}
			req, err := experimentRequest(cmd, cfg)
			if err != nil {
				return err
			}
			arrowPath, _ := cmd.Flags().GetString("arrow")
			logger := newLogger(cmd, cfg)

			g, _, err := experiment.Prepare(req)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(context.Background())
			defer cancel()

			runner := &montecarlo.Runner{Workers: cfg.Ensemble.Workers, Logger: logger}
			outcomes, err := runner.Estimate(ctx, g, req.Cascade, req.Runs)
			if err != nil {
				return err
			}
			dist := montecarlo.Summarize(outcomes)
			hist := montecarlo.Histogram(outcomes, g.NodeCount(), req.HistogramBins)

			if arrowPath != "" {
				if err := writeArrowFile(arrowPath, func(w io.Writer) error {
					return export.WriteOutcomes(w, outcomes, req.Cascade.Seed, g.NodeCount())
				}); err != nil {
					return err
				}
				logger.Info("outcomes written", "path", arrowPath)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"outcomes":     outcomes,
					"distribution": dist,
					"histogram":    hist,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ensemble over %d nodes, %d iterations, base seed %d\n\n", g.NodeCount(), req.Cascade.Iterations, req.Cascade.Seed)
			printDistribution(out, dist)
			fmt.Fprintln(out)
			printHistogram(out, hist)
			return nil
		},
	}

	addTopologyFlags(cmd)
	addCascadeFlags(cmd)
	cmd.Flags().String("arrow", "", "Write outcomes to an Arrow IPC file")

	return cmd
}

// writeArrowFile creates path and writes it with fn, removing it on failure.
func writeArrowFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create arrow file: %w", err)
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write arrow file: %w", err)
	}
	return f.Close()
}

func printExperiment(w io.Writer, exp *store.Experiment) {
	kind := string(exp.Topology.Kind)
	if kind == "" {
		kind = "file"
	}
	fmt.Fprintf(w, "Topology: %s (%d nodes)\n", kind, exp.Topology.Nodes)
	if exp.AttributeMode != "" {
		fmt.Fprintf(w, "Attributes: %s\n", exp.AttributeMode)
	}
	fmt.Fprintln(w)
	printMetrics(w, exp.Metrics)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%5s  %6s  %8s  %6s  %8s  %6s  %7s  %6s\n", "iter", "bcast", "mean", "max", "std", "total", "reached", "frac")
	for i, row := range exp.TimeSeries {
		var reach int
		var frac float64
		if i < len(exp.Reach) {
			reach, frac = exp.Reach[i].TotalReached, exp.Reach[i].ProportionReached
		}
		fmt.Fprintf(w, "%5d  %6d  %8.3f  %6.0f  %8.3f  %6d  %7d  %6.3f\n",
			row.Iteration, row.Broadcasters, row.MeanResponses, row.MaxResponses, row.StdResponses, row.TotalResponses, reach, frac)
	}

	if exp.Runs > 0 {
		fmt.Fprintln(w)
		printDistribution(w, exp.Distribution)
	}
}

func printMetrics(w io.Writer, m metrics.Metrics) {
	fmt.Fprintf(w, "  nodes:                %d\n", m.Nodes)
	fmt.Fprintf(w, "  edges:                %d\n", m.Edges)
	fmt.Fprintf(w, "  avg degree:           %s\n", formatMetric(m.AvgDegree))
	fmt.Fprintf(w, "  max degree:           %s\n", formatMetric(m.MaxDegree))
	fmt.Fprintf(w, "  degree gini:          %s\n", formatMetric(m.DegreeGini))
	fmt.Fprintf(w, "  top 1%% edge share:    %s\n", formatMetric(m.TopEdgeShare))
	fmt.Fprintf(w, "  avg clustering:       %s\n", formatMetric(m.AvgClustering))
	fmt.Fprintf(w, "  degree assortativity: %s\n", formatMetric(m.Assortativity))
}

func formatMetric(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}

func printDistribution(w io.Writer, d montecarlo.Distribution) {
	fmt.Fprintf(w, "Final reach over %d runs:\n", d.Runs)
	fmt.Fprintf(w, "  mean %.1f  std %.1f  min %.0f  p10 %.1f  median %.1f  p90 %.1f  max %.0f\n",
		d.Mean, d.StdDev, d.Min, d.P10, d.Median, d.P90, d.Max)
}

func printHistogram(w io.Writer, bins []montecarlo.Bin) {
	peak := 0
	for _, b := range bins {
		peak = max(peak, b.Count)
	}
	for _, b := range bins {
		bar := 0
		if peak > 0 {
			bar = b.Count * 40 / peak
		}
		fmt.Fprintf(w, "  [%.2f, %.2f)  %4d  %s\n", b.Lower, b.Upper, b.Count, strings.Repeat("#", bar))
	}
}
