package simulation

import (
	"github.com/nvandessel/cascadelab/internal/cascade"
	"github.com/nvandessel/cascadelab/internal/graph"
	"github.com/nvandessel/cascadelab/internal/store"
	"github.com/nvandessel/cascadelab/internal/topology"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name string

	// Topology is generated when Edges is empty.
	Topology topology.Config

	// Nodes and Edges define an explicit graph. Nodes listed here are added
	// first, in order, so they control the engine's node order.
	Nodes    []NodeSpec
	Edges    []EdgeSpec
	Directed bool

	// AttributeMode is applied unless the explicit graph carries attributes
	// on its NodeSpecs.
	AttributeMode topology.AttributeMode

	Cascade cascade.Config
	Runs    int
	Workers int
}

// explicit reports whether the scenario describes its own graph.
func (s Scenario) explicit() bool {
	return len(s.Edges) > 0 || len(s.Nodes) > 0
}

// NodeSpec is a node of an explicit graph. Attributes are set only when
// WithAttributes is true.
type NodeSpec struct {
	ID             string
	Activity       float64
	Influence      float64
	WithAttributes bool
}

// EdgeSpec defines an edge of an explicit graph. A nil Weight means 1.0.
type EdgeSpec struct {
	Source string
	Target string
	Weight *float64
}

// SimulationResult captures one executed scenario and the store it was
// saved to.
type SimulationResult struct {
	Scenario   Scenario
	Graph      *graph.Graph
	Run        *cascade.Result
	Experiment *store.Experiment
	Store      *store.SQLiteResultStore
}
