package simulation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nvandessel/cascadelab/internal/constants"
	"github.com/nvandessel/cascadelab/internal/experiment"
	"github.com/nvandessel/cascadelab/internal/graph"
	"github.com/nvandessel/cascadelab/internal/store"
)

// Runner executes scenarios against the real pipeline and an isolated
// result store.
type Runner struct {
	t     testing.TB
	store *store.SQLiteResultStore
}

// NewRunner creates a simulation runner with an isolated SQLite store
// and sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	s, err := store.NewSQLiteResultStore(filepath.Join(tmpDir, store.DBFileName))
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{t: t, store: s}
}

// Run executes the scenario and returns the collected results. Any
// pipeline error fails the test.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	ctx := context.Background()

	req := experiment.Request{
		Topology:      scenario.Topology,
		AttributeMode: scenario.AttributeMode,
		Cascade:       scenario.Cascade,
		Runs:          scenario.Runs,
	}
	if scenario.explicit() {
		req.Graph = r.buildGraph(scenario)
		req.KeepAttributes = hasAttributes(scenario)
	}

	pipeline := &experiment.Pipeline{Workers: scenario.Workers, Store: r.store}
	res, err := pipeline.Run(ctx, req)
	if err != nil {
		r.t.Fatalf("Run(%s): %v", scenario.Name, err)
	}

	return SimulationResult{
		Scenario:   scenario,
		Graph:      res.Graph,
		Run:        res.Run,
		Experiment: res.Experiment,
		Store:      r.store,
	}
}

// buildGraph creates the explicit graph of a scenario.
func (r *Runner) buildGraph(scenario Scenario) *graph.Graph {
	r.t.Helper()

	g := graph.New(scenario.Directed)
	for _, n := range scenario.Nodes {
		if err := g.AddNode(n.ID); err != nil {
			r.t.Fatalf("buildGraph: AddNode(%s): %v", n.ID, err)
		}
		if n.WithAttributes {
			if err := g.SetAttributes(n.ID, graph.Attributes{Activity: n.Activity, Influence: n.Influence}); err != nil {
				r.t.Fatalf("buildGraph: SetAttributes(%s): %v", n.ID, err)
			}
		}
	}
	for _, e := range scenario.Edges {
		weight := constants.DefaultEdgeWeight
		if e.Weight != nil {
			weight = *e.Weight
		}
		if err := g.AddEdge(e.Source, e.Target, weight); err != nil {
			r.t.Fatalf("buildGraph: AddEdge(%s->%s): %v", e.Source, e.Target, err)
		}
	}
	return g
}

func hasAttributes(scenario Scenario) bool {
	for _, n := range scenario.Nodes {
		if n.WithAttributes {
			return true
		}
	}
	return false
}
