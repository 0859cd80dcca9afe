package simulation

import (
	"context"
	"reflect"
	"testing"

	"github.com/nvandessel/cascadelab/internal/cascade"
)

// AssertWorkingSetNeverEmpty asserts that every iteration has at least one
// broadcasting node.
func AssertWorkingSetNeverEmpty(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, snap := range result.Run.Snapshots {
		if snap.Count(cascade.Broadcasting) == 0 {
			t.Errorf("AssertWorkingSetNeverEmpty: iteration %d has no broadcasters", snap.Iteration)
		}
	}
}

// AssertImpactWithinBroadcasters asserts that impact is only recorded for
// broadcasting nodes and never exceeds their neighbor count.
func AssertImpactWithinBroadcasters(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, snap := range result.Run.Snapshots {
		for id, n := range snap.Impact {
			if snap.States[id] != cascade.Broadcasting {
				t.Errorf("AssertImpactWithinBroadcasters: iteration %d: %s has impact but state %s", snap.Iteration, id, snap.States[id])
			}
			if deg := len(result.Graph.Neighbors(id)); n > deg {
				t.Errorf("AssertImpactWithinBroadcasters: iteration %d: %s impact %d > %d neighbors", snap.Iteration, id, n, deg)
			}
		}
	}
}

// AssertActiveEdgesInGraph asserts that every active edge is a graph edge
// leaving a broadcaster.
func AssertActiveEdgesInGraph(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, snap := range result.Run.Snapshots {
		for _, e := range snap.ActiveEdges {
			if !result.Graph.HasEdge(e.Source, e.Target) {
				t.Errorf("AssertActiveEdgesInGraph: iteration %d: %s->%s is not an edge", snap.Iteration, e.Source, e.Target)
			}
			if snap.States[e.Source] != cascade.Broadcasting {
				t.Errorf("AssertActiveEdgesInGraph: iteration %d: source %s is not broadcasting", snap.Iteration, e.Source)
			}
			if snap.States[e.Target] == cascade.Idle {
				t.Errorf("AssertActiveEdgesInGraph: iteration %d: target %s is idle", snap.Iteration, e.Target)
			}
		}
	}
}

// AssertRowsAligned asserts one time-series row and one reach row per
// snapshot, with matching iterations and broadcaster counts.
func AssertRowsAligned(t *testing.T, result SimulationResult) {
	t.Helper()
	snaps := result.Run.Snapshots
	exp := result.Experiment
	if len(exp.TimeSeries) != len(snaps) || len(exp.Reach) != len(snaps) {
		t.Fatalf("AssertRowsAligned: %d snapshots, %d rows, %d reach rows", len(snaps), len(exp.TimeSeries), len(exp.Reach))
	}
	for i, snap := range snaps {
		row := exp.TimeSeries[i]
		if row.Iteration != snap.Iteration || exp.Reach[i].Iteration != snap.Iteration {
			t.Errorf("AssertRowsAligned: row %d has iteration %d/%d, want %d", i, row.Iteration, exp.Reach[i].Iteration, snap.Iteration)
		}
		if row.Broadcasters != len(snap.Impact) {
			t.Errorf("AssertRowsAligned: row %d broadcasters %d, impact has %d", i, row.Broadcasters, len(snap.Impact))
		}
		if row.TotalResponses != len(snap.ActiveEdges) {
			t.Errorf("AssertRowsAligned: row %d total responses %d, %d active edges", i, row.TotalResponses, len(snap.ActiveEdges))
		}
	}
}

// AssertReachMonotone asserts that cumulative reach never decreases and
// stays within the node count.
func AssertReachMonotone(t *testing.T, result SimulationResult) {
	t.Helper()
	n := result.Graph.NodeCount()
	prev := 0
	for _, r := range result.Experiment.Reach {
		if r.TotalReached < prev {
			t.Errorf("AssertReachMonotone: iteration %d reach %d < previous %d", r.Iteration, r.TotalReached, prev)
		}
		if r.TotalReached > n {
			t.Errorf("AssertReachMonotone: iteration %d reach %d > %d nodes", r.Iteration, r.TotalReached, n)
		}
		if r.NewlyReached != r.TotalReached-prev {
			t.Errorf("AssertReachMonotone: iteration %d newly reached %d, want %d", r.Iteration, r.NewlyReached, r.TotalReached-prev)
		}
		prev = r.TotalReached
	}
}

// AssertOutcomesBounded asserts that every ensemble outcome lies in
// [minReach, node count].
func AssertOutcomesBounded(t *testing.T, result SimulationResult, minReach float64) {
	t.Helper()
	n := float64(result.Graph.NodeCount())
	if len(result.Experiment.Outcomes) != result.Scenario.Runs {
		t.Errorf("AssertOutcomesBounded: %d outcomes, want %d", len(result.Experiment.Outcomes), result.Scenario.Runs)
	}
	for i, o := range result.Experiment.Outcomes {
		if o < minReach || o > n {
			t.Errorf("AssertOutcomesBounded: run %d reach %.0f not in [%.0f, %.0f]", i, o, minReach, n)
		}
	}
}

// AssertSameOutcomes asserts that two results produced identical single
// runs and ensembles.
func AssertSameOutcomes(t *testing.T, a, b SimulationResult) {
	t.Helper()
	if !reflect.DeepEqual(a.Experiment.TimeSeries, b.Experiment.TimeSeries) {
		t.Errorf("AssertSameOutcomes: %s and %s time series differ", a.Scenario.Name, b.Scenario.Name)
	}
	if !reflect.DeepEqual(a.Experiment.Outcomes, b.Experiment.Outcomes) {
		t.Errorf("AssertSameOutcomes: %s and %s outcomes differ: %v vs %v",
			a.Scenario.Name, b.Scenario.Name, a.Experiment.Outcomes, b.Experiment.Outcomes)
	}
}

// AssertStored asserts that the store returns the experiment as it was run.
func AssertStored(t *testing.T, result SimulationResult) {
	t.Helper()
	got, err := result.Store.GetExperiment(context.Background(), result.Experiment.ID)
	if err != nil {
		t.Fatalf("AssertStored: %v", err)
	}
	if !reflect.DeepEqual(got.TimeSeries, result.Experiment.TimeSeries) {
		t.Errorf("AssertStored: stored time series differs")
	}
	if !reflect.DeepEqual(got.Reach, result.Experiment.Reach) {
		t.Errorf("AssertStored: stored reach differs")
	}
	if !reflect.DeepEqual(got.Outcomes, result.Experiment.Outcomes) {
		t.Errorf("AssertStored: stored outcomes differ")
	}
	if got.Distribution != result.Experiment.Distribution {
		t.Errorf("AssertStored: distribution %+v, want %+v", got.Distribution, result.Experiment.Distribution)
	}
}
