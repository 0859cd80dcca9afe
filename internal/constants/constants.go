// Package constants provides named constants used throughout the cascadelab codebase.
// This centralizes model parameters and defaults so the engine, the CLI and the
// configuration layer agree on them.
package constants

// Broadcaster dynamics. These control how the broadcaster working set
// evolves from one iteration to the next.
const (
	// PromotionProbability is the chance that a neighbor activated this
	// iteration joins the next iteration's broadcaster working set.
	PromotionProbability = 0.15

	// RetentionProbability is the chance that a current broadcaster stays in
	// the working set for the next iteration.
	RetentionProbability = 0.4

	// PreferentialAmplificationRate is the multiplicative boost applied to a
	// node's influence each time it is newly activated (influence *= 1 + rate).
	PreferentialAmplificationRate = 0.02
)

// Cascade defaults.
const (
	// DefaultFractionInfected is the fraction of nodes seeded as initial broadcasters.
	DefaultFractionInfected = 0.01

	// DefaultInfluenceProbability is the base per-edge activation probability
	// used when attributes are assigned uniformly.
	DefaultInfluenceProbability = 0.05

	// DefaultIterations is the number of simulation ticks per run.
	DefaultIterations = 60

	// MaxIterations bounds the ticks of a single run.
	MaxIterations = 1_000_000

	// DefaultCascadeSeed is the base seed for cascade runs.
	DefaultCascadeSeed = 42

	// DefaultEdgeWeight is the weight of an edge that was added without one.
	DefaultEdgeWeight = 1.0
)

// Ensemble settings.
const (
	// SeedStride separates per-run seeds in a Monte Carlo ensemble:
	// run i uses base + i*SeedStride.
	SeedStride = 17

	// DefaultEnsembleRuns is the number of Monte Carlo runs when none is given.
	DefaultEnsembleRuns = 25

	// MaxEnsembleRuns bounds ensemble size accepted from outer surfaces (CLI, MCP).
	MaxEnsembleRuns = 10000

	// DefaultHistogramBins is the number of bins in a reach-fraction histogram.
	DefaultHistogramBins = 20
)

// Degree-scaled attribute assignment: attr = base + span * degree/maxDegree.
const (
	ActivityBase    = 0.2
	ActivitySpan    = 0.8
	InfluenceBase   = 0.02
	InfluenceSpan   = 0.08
	UniformActivity = 1.0
)

// Topology defaults.
const (
	// DefaultTopologyNodes is the node count of every preset topology.
	DefaultTopologyNodes = 1200

	// DefaultTopologySeed seeds topology generation.
	DefaultTopologySeed = 25

	// TopHubFraction is the share of highest-degree nodes used for the hub
	// edge-share metric (top 1%).
	TopHubFraction = 0.01
)

// MCP work budget, measured in node-iterations (nodes * iterations * runs).
const (
	// DefaultWorkPerSecond refills the budget at roughly one default
	// ensemble (1200 nodes, 60 iterations, 25 runs) per second.
	DefaultWorkPerSecond = 2_000_000

	// DefaultWorkBurst is the largest single request accepted.
	DefaultWorkBurst = 20_000_000
)

// MaxTopologyNodes bounds generated graphs requested over MCP.
const MaxTopologyNodes = 50_000
