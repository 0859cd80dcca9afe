package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cascadelab/internal/topology"
)

func newTopologiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topologies",
		Short: "List preset topologies",
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := topology.Presets()
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), presets)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-4s  %-16s  %6s  %s\n", "KIND", "LABEL", "NODES", "PARAMETERS")
			for _, p := range presets {
				fmt.Fprintf(out, "%-4s  %-16s  %6d  %s\n", p.Config.Kind, p.Label, p.Config.Nodes, presetParams(p.Config))
			}
			return nil
		},
	}
}

func presetParams(c topology.Config) string {
	switch c.Kind {
	case topology.KindErdosRenyi:
		return fmt.Sprintf("p=%g", c.EdgeProbability)
	case topology.KindWattsStrogatz:
		return fmt.Sprintf("k=%d p=%g", c.Neighbors, c.RewireProbability)
	case topology.KindBarabasiAlbert:
		return fmt.Sprintf("m=%d", c.Attachments)
	case topology.KindHolmeKim:
		return fmt.Sprintf("m=%d p_t=%g", c.Attachments, c.TriangleProbability)
	}
	return ""
}
