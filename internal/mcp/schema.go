// Package mcp provides an MCP (Model Context Protocol) server for cascadelab.
package mcp

import (
	"github.com/nvandessel/cascadelab/internal/metrics"
	"github.com/nvandessel/cascadelab/internal/montecarlo"
	"github.com/nvandessel/cascadelab/internal/timeseries"
)

// CascadeRunInput defines the input for the cascade_run tool.
type CascadeRunInput struct {
	Topology             string  `json:"topology,omitempty" jsonschema:"Preset topology: ER, WS, BA or HK (default from config)"`
	Nodes                int     `json:"nodes,omitempty" jsonschema:"Node count override for the preset"`
	TopologySeed         int64   `json:"topology_seed,omitempty" jsonschema:"Seed for graph generation (0 uses the configured seed)"`
	AttributeMode        string  `json:"attribute_mode,omitempty" jsonschema:"How activity and influence are assigned: degree, uniform or pagerank"`
	Iterations           int     `json:"iterations,omitempty" jsonschema:"Number of iterations to simulate"`
	Seed                 *int64  `json:"seed,omitempty" jsonschema:"Cascade seed; ensemble run i uses seed + 17*i"`
	FractionInfected     float64 `json:"fraction_infected,omitempty" jsonschema:"Fraction of nodes seeded as initial broadcasters"`
	InfluenceProbability float64 `json:"influence_probability,omitempty" jsonschema:"Per-edge activation probability for uniform attributes"`
	Runs                 *int    `json:"runs,omitempty" jsonschema:"Monte Carlo ensemble size (0 skips the ensemble)"`
	Save                 bool    `json:"save,omitempty" jsonschema:"Persist the experiment to the result store"`
	ArrowFile            string  `json:"arrow_file,omitempty" jsonschema:"Write the time series as Arrow IPC to this file in the export directory"`
}

// CascadeRunOutput defines the output for the cascade_run tool.
type CascadeRunOutput struct {
	ID           string                  `json:"id" jsonschema:"Experiment ID"`
	Topology     string                  `json:"topology" jsonschema:"Topology kind"`
	Metrics      map[string]any          `json:"metrics" jsonschema:"Static graph metrics; null where undefined"`
	TimeSeries   []timeseries.Row        `json:"timeseries" jsonschema:"Per-iteration response statistics"`
	Reach        []timeseries.ReachRow   `json:"reach" jsonschema:"Cumulative reach per iteration"`
	Distribution montecarlo.Distribution `json:"distribution" jsonschema:"Summary of ensemble final reach"`
	Histogram    []montecarlo.Bin        `json:"histogram" jsonschema:"Histogram of ensemble reach fractions"`
	Saved        bool                    `json:"saved" jsonschema:"Whether the experiment was stored"`
	ArrowPath    string                  `json:"arrow_path,omitempty" jsonschema:"Path of the written Arrow file"`
}

// CascadeTimeseriesInput defines the input for the cascade_timeseries tool.
type CascadeTimeseriesInput struct {
	Topology             string  `json:"topology,omitempty" jsonschema:"Preset topology: ER, WS, BA or HK (default from config)"`
	Nodes                int     `json:"nodes,omitempty" jsonschema:"Node count override for the preset"`
	TopologySeed         int64   `json:"topology_seed,omitempty" jsonschema:"Seed for graph generation (0 uses the configured seed)"`
	AttributeMode        string  `json:"attribute_mode,omitempty" jsonschema:"How activity and influence are assigned: degree, uniform or pagerank"`
	Iterations           int     `json:"iterations,omitempty" jsonschema:"Number of iterations to simulate"`
	Seed                 *int64  `json:"seed,omitempty" jsonschema:"Cascade seed"`
	FractionInfected     float64 `json:"fraction_infected,omitempty" jsonschema:"Fraction of nodes seeded as initial broadcasters"`
	InfluenceProbability float64 `json:"influence_probability,omitempty" jsonschema:"Per-edge activation probability for uniform attributes"`
}

// CascadeTimeseriesOutput defines the output for the cascade_timeseries tool.
type CascadeTimeseriesOutput struct {
	Rows              []timeseries.Row      `json:"rows" jsonschema:"Per-iteration response statistics"`
	Reach             []timeseries.ReachRow `json:"reach" jsonschema:"Cumulative reach per iteration"`
	FinalReach        int                   `json:"final_reach" jsonschema:"Nodes ever broadcasting or reacting"`
	MissingAttributes int                   `json:"missing_attributes" jsonschema:"Nodes that ran without attributes"`
}

// CascadeMontecarloInput defines the input for the cascade_montecarlo tool.
type CascadeMontecarloInput struct {
	Topology             string  `json:"topology,omitempty" jsonschema:"Preset topology: ER, WS, BA or HK (default from config)"`
	Nodes                int     `json:"nodes,omitempty" jsonschema:"Node count override for the preset"`
	TopologySeed         int64   `json:"topology_seed,omitempty" jsonschema:"Seed for graph generation (0 uses the configured seed)"`
	AttributeMode        string  `json:"attribute_mode,omitempty" jsonschema:"How activity and influence are assigned: degree, uniform or pagerank"`
	Iterations           int     `json:"iterations,omitempty" jsonschema:"Number of iterations per run"`
	Seed                 *int64  `json:"seed,omitempty" jsonschema:"Base seed; run i uses seed + 17*i"`
	FractionInfected     float64 `json:"fraction_infected,omitempty" jsonschema:"Fraction of nodes seeded as initial broadcasters"`
	InfluenceProbability float64 `json:"influence_probability,omitempty" jsonschema:"Per-edge activation probability for uniform attributes"`
	Runs                 *int    `json:"runs,omitempty" jsonschema:"Ensemble size"`
	Bins                 int     `json:"bins,omitempty" jsonschema:"Histogram bins (default 20)"`
	ArrowFile            string  `json:"arrow_file,omitempty" jsonschema:"Write the outcomes as Arrow IPC to this file in the export directory"`
}

// CascadeMontecarloOutput defines the output for the cascade_montecarlo tool.
type CascadeMontecarloOutput struct {
	Outcomes     []float64               `json:"outcomes" jsonschema:"Final reach of each run, in run order"`
	Distribution montecarlo.Distribution `json:"distribution" jsonschema:"Summary of the outcomes"`
	Histogram    []montecarlo.Bin        `json:"histogram" jsonschema:"Histogram of reach fractions"`
	ArrowPath    string                  `json:"arrow_path,omitempty" jsonschema:"Path of the written Arrow file"`
}

// GraphMetricsInput defines the input for the graph_metrics tool.
type GraphMetricsInput struct {
	Topology     string `json:"topology,omitempty" jsonschema:"Preset topology: ER, WS, BA or HK (default from config)"`
	Nodes        int    `json:"nodes,omitempty" jsonschema:"Node count override for the preset"`
	TopologySeed int64  `json:"topology_seed,omitempty" jsonschema:"Seed for graph generation (0 uses the configured seed)"`
	Distribution bool   `json:"distribution,omitempty" jsonschema:"Include the degree distribution"`
}

// GraphMetricsOutput defines the output for the graph_metrics tool.
type GraphMetricsOutput struct {
	Topology           string                `json:"topology" jsonschema:"Topology kind"`
	Metrics            map[string]any        `json:"metrics" jsonschema:"Static graph metrics; null where undefined"`
	Components         int                   `json:"components" jsonschema:"Number of connected components"`
	LargestComponent   int                   `json:"largest_component" jsonschema:"Node count of the largest connected component"`
	DegreeDistribution []metrics.DegreeCount `json:"degree_distribution,omitempty" jsonschema:"Nodes per degree, ascending"`
}

// topologyParams are the graph selection parameters shared by every tool.
type topologyParams struct {
	Topology     string
	Nodes        int
	TopologySeed int64
}

// cascadeParams are the cascade parameters shared by the simulation tools.
type cascadeParams struct {
	topologyParams
	AttributeMode        string
	Iterations           int
	Seed                 *int64
	FractionInfected     float64
	InfluenceProbability float64
}

func (in CascadeRunInput) params() cascadeParams {
	return cascadeParams{
		topologyParams:       topologyParams{in.Topology, in.Nodes, in.TopologySeed},
		AttributeMode:        in.AttributeMode,
		Iterations:           in.Iterations,
		Seed:                 in.Seed,
		FractionInfected:     in.FractionInfected,
		InfluenceProbability: in.InfluenceProbability,
	}
}

func (in CascadeTimeseriesInput) params() cascadeParams {
	return cascadeParams{
		topologyParams:       topologyParams{in.Topology, in.Nodes, in.TopologySeed},
		AttributeMode:        in.AttributeMode,
		Iterations:           in.Iterations,
		Seed:                 in.Seed,
		FractionInfected:     in.FractionInfected,
		InfluenceProbability: in.InfluenceProbability,
	}
}

func (in CascadeMontecarloInput) params() cascadeParams {
	return cascadeParams{
		topologyParams:       topologyParams{in.Topology, in.Nodes, in.TopologySeed},
		AttributeMode:        in.AttributeMode,
		Iterations:           in.Iterations,
		Seed:                 in.Seed,
		FractionInfected:     in.FractionInfected,
		InfluenceProbability: in.InfluenceProbability,
	}
}
