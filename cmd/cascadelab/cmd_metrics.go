package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cascadelab/internal/experiment"
	"github.com/nvandessel/cascadelab/internal/metrics"
)

func newMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Compute static metrics of a topology",
		Long:  `Print degree inequality, clustering, assortativity, connected components and the degree distribution.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := settingsWithFlags(cmd)
			if err != nil {
				return err
			}
			req, err := experimentRequest(cmd, cfg)
			if err != nil {
				return err
			}
			g, _, err := experiment.Prepare(req)
			if err != nil {
				return err
			}

			m := metrics.Compute(g)
			components := metrics.Components(g)
			largest := 0
			if len(components) > 0 {
				largest = len(components[0])
			}
			dist := metrics.DegreeDistribution(g)

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"metrics":             m,
					"components":          len(components),
					"largest_component":   largest,
					"degree_distribution": dist,
				})
			}

			out := cmd.OutOrStdout()
			printMetrics(out, m)
			fmt.Fprintf(out, "  components:           %d (largest %d)\n", len(components), largest)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%6s  %6s\n", "degree", "nodes")
			for _, d := range dist {
				fmt.Fprintf(out, "%6d  %6d\n", d.Degree, d.Count)
			}
			return nil
		},
	}

	addTopologyFlags(cmd)
	return cmd
}
