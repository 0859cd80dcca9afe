package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cascadelab/internal/config"
	"github.com/nvandessel/cascadelab/internal/experiment"
	"github.com/nvandessel/cascadelab/internal/graph"
	"github.com/nvandessel/cascadelab/internal/topology"
)

// addTopologyFlags registers the graph selection flags. Unset flags fall
// back to the config file.
func addTopologyFlags(cmd *cobra.Command) {
	cmd.Flags().String("topology", "", "Preset topology: ER, WS, BA or HK")
	cmd.Flags().Int("nodes", 0, "Node count override for the preset")
	cmd.Flags().Int64("topology-seed", 0, "Seed for graph generation")
	cmd.Flags().String("graph", "", "Read the graph from a YAML file instead of generating one")
	cmd.Flags().String("attributes", "", "Attribute mode: degree, uniform or pagerank")
	cmd.Flags().Bool("keep-attributes", false, "Use the attributes stored in --graph as-is")
}

// addCascadeFlags registers the cascade and ensemble flags.
func addCascadeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("iterations", 0, "Iterations to simulate")
	cmd.Flags().Int64("seed", 0, "Cascade seed; ensemble run i uses seed + 17*i")
	cmd.Flags().Float64("fraction", 0, "Fraction of nodes seeded as initial broadcasters")
	cmd.Flags().Float64("influence", 0, "Per-edge activation probability for uniform attributes")
	cmd.Flags().StringSlice("broadcasters", nil, "Explicit initial broadcaster IDs")
	cmd.Flags().Int("runs", 0, "Monte Carlo ensemble size")
	cmd.Flags().Int("workers", 0, "Concurrent ensemble runs (0 = GOMAXPROCS)")
	cmd.Flags().Int("bins", 0, "Histogram bins")
}

// applyTopologyFlags overlays the set topology flags on cfg.
func applyTopologyFlags(cmd *cobra.Command, cfg *config.CascadelabConfig) {
	f := cmd.Flags()
	if f.Changed("topology") {
		cfg.Topology.Preset, _ = f.GetString("topology")
		cfg.Topology.GraphFile = ""
	}
	if f.Changed("nodes") {
		cfg.Topology.Nodes, _ = f.GetInt("nodes")
	}
	if f.Changed("topology-seed") {
		cfg.Topology.Seed, _ = f.GetInt64("topology-seed")
	}
	if f.Changed("graph") {
		cfg.Topology.GraphFile, _ = f.GetString("graph")
	}
	if f.Changed("attributes") {
		cfg.Topology.AttributeMode, _ = f.GetString("attributes")
	}
}

// applyCascadeFlags overlays the set cascade and ensemble flags on cfg.
// Flags the command does not define are never Changed.
func applyCascadeFlags(cmd *cobra.Command, cfg *config.CascadelabConfig) {
	f := cmd.Flags()
	if f.Changed("iterations") {
		cfg.Cascade.Iterations, _ = f.GetInt("iterations")
	}
	if f.Changed("seed") {
		cfg.Cascade.Seed, _ = f.GetInt64("seed")
	}
	if f.Changed("fraction") {
		cfg.Cascade.FractionInfected, _ = f.GetFloat64("fraction")
	}
	if f.Changed("influence") {
		cfg.Cascade.InfluenceProbability, _ = f.GetFloat64("influence")
	}
	if f.Changed("broadcasters") {
		cfg.Cascade.InitialBroadcasters, _ = f.GetStringSlice("broadcasters")
	}
	if f.Changed("runs") {
		cfg.Ensemble.Runs, _ = f.GetInt("runs")
	}
	if f.Changed("workers") {
		cfg.Ensemble.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("bins") {
		cfg.Ensemble.HistogramBins, _ = f.GetInt("bins")
	}
}

// settingsWithFlags loads configuration and applies the command's flags.
func settingsWithFlags(cmd *cobra.Command) (*config.CascadelabConfig, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	applyTopologyFlags(cmd, cfg)
	applyCascadeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// experimentRequest builds the pipeline request described by cfg.
func experimentRequest(cmd *cobra.Command, cfg *config.CascadelabConfig) (experiment.Request, error) {
	mode, err := topology.ParseAttributeMode(cfg.Topology.AttributeMode)
	if err != nil {
		return experiment.Request{}, err
	}
	keep, _ := cmd.Flags().GetBool("keep-attributes")

	req := experiment.Request{
		AttributeMode:  mode,
		KeepAttributes: keep,
		Cascade:        cfg.Cascade,
		Runs:           cfg.Ensemble.Runs,
		HistogramBins:  cfg.Ensemble.HistogramBins,
	}

	if cfg.Topology.GraphFile != "" {
		if req.Graph, err = readGraph(cfg.Topology.GraphFile); err != nil {
			return experiment.Request{}, err
		}
		return req, nil
	}
	if keep {
		return experiment.Request{}, fmt.Errorf("--keep-attributes requires --graph")
	}

	if req.Topology, err = cfg.Topology.Resolve(); err != nil {
		return experiment.Request{}, err
	}
	return req, nil
}

func readGraph(path string) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open graph file: %w", err)
	}
	defer f.Close()

	g, err := graph.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("read graph %s: %w", path, err)
	}
	return g, nil
}
