package cascade

import (
	"bufio"
	"context"
	"errors"
	"math"
	"os"
	"reflect"
	"testing"

	"github.com/nvandessel/cascadelab/internal/constants"
	"github.com/nvandessel/cascadelab/internal/graph"
	"github.com/nvandessel/cascadelab/internal/logging"
	"github.com/nvandessel/cascadelab/internal/topology"
)

// newPath builds the undirected path A-B-C with activity and influence 1.0.
func newPath(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(false)
	for _, e := range [][2]string{{"A", "B"}, {"B", "C"}} {
		if err := g.Connect(e[0], e[1]); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	for _, id := range g.Nodes() {
		if err := g.SetAttributes(id, graph.Attributes{Activity: 1, Influence: 1}); err != nil {
			t.Fatalf("SetAttributes: %v", err)
		}
	}
	return g
}

// newNetwork builds a seeded scale-free graph with degree-scaled attributes.
func newNetwork(t *testing.T, n int) *graph.Graph {
	t.Helper()
	g, err := topology.Build(topology.Config{Kind: topology.KindBarabasiAlbert, Nodes: n, Attachments: 3, Seed: 11})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := topology.AssignAttributes(g, topology.AttributesDegree, 0); err != nil {
		t.Fatalf("AssignAttributes: %v", err)
	}
	return g
}

func mustRun(t *testing.T, g graph.Provider, cfg Config) *Result {
	t.Helper()
	res, err := Run(context.Background(), g, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

// reach counts nodes that were broadcasting or reacting in any snapshot.
func reach(snaps []Snapshot) int {
	seen := make(map[string]bool)
	for _, s := range snaps {
		for id, st := range s.States {
			if st.Reached() {
				seen[id] = true
			}
		}
	}
	return len(seen)
}

func TestRun_Errors(t *testing.T) {
	g := newPath(t)

	tests := []struct {
		name    string
		graph   graph.Provider
		mutate  func(*Config)
		wantErr error
	}{
		{"zero iterations", g, func(c *Config) { c.Iterations = 0 }, ErrInvalidConfiguration},
		{"iterations above limit", g, func(c *Config) { c.Iterations = constants.MaxIterations + 1 }, ErrInvalidConfiguration},
		{"huge iterations", g, func(c *Config) { c.Iterations = 1 << 60 }, ErrInvalidConfiguration},
		{"negative fraction", g, func(c *Config) { c.FractionInfected = -0.1 }, ErrInvalidConfiguration},
		{"nan fraction", g, func(c *Config) { c.FractionInfected = math.NaN() }, ErrInvalidConfiguration},
		{"promotion above one", g, func(c *Config) { c.PromotionProbability = 1.5 }, ErrInvalidConfiguration},
		{"negative amplification", g, func(c *Config) { c.AmplificationRate = -1 }, ErrInvalidConfiguration},
		{"unknown initial broadcaster", g, func(c *Config) { c.InitialBroadcasters = []string{"Z"} }, ErrInvalidConfiguration},
		{"duplicate initial broadcaster", g, func(c *Config) { c.InitialBroadcasters = []string{"A", "A"} }, ErrInvalidConfiguration},
		{"empty graph", graph.New(false), func(c *Config) {}, ErrEmptyGraph},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			res, err := Run(context.Background(), tt.graph, cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if res != nil {
				t.Error("expected nil result on error")
			}
		})
	}
}

func TestRun_MaxIterationsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultConfig()
	cfg.Iterations = constants.MaxIterations
	res, err := Run(ctx, newPath(t), cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res != nil {
		t.Error("expected nil result on cancellation")
	}
}

func TestRun_Deterministic(t *testing.T) {
	g := newNetwork(t, 300)
	cfg := DefaultConfig()
	cfg.Iterations = 25

	a := mustRun(t, g, cfg)
	b := mustRun(t, g, cfg)

	if !reflect.DeepEqual(a.Snapshots, b.Snapshots) {
		t.Fatal("same seed produced different snapshots")
	}
	if !reflect.DeepEqual(a.Attributes, b.Attributes) {
		t.Fatal("same seed produced different final attributes")
	}

	cfg.Seed++
	c := mustRun(t, g, cfg)
	if reflect.DeepEqual(a.Snapshots, c.Snapshots) {
		t.Error("different seeds produced identical snapshots")
	}
}

func TestRun_SnapshotInvariants(t *testing.T) {
	g := newNetwork(t, 300)
	cfg := DefaultConfig()
	cfg.Iterations = 40
	res := mustRun(t, g, cfg)

	if len(res.Snapshots) != cfg.Iterations {
		t.Fatalf("got %d snapshots, want %d", len(res.Snapshots), cfg.Iterations)
	}

	for i, s := range res.Snapshots {
		if s.Iteration != i {
			t.Errorf("snapshot %d has iteration %d", i, s.Iteration)
		}
		if len(s.States) != g.NodeCount() {
			t.Errorf("iteration %d: %d states, want %d", i, len(s.States), g.NodeCount())
		}
		if s.Count(Broadcasting) == 0 {
			t.Errorf("iteration %d: no broadcasters", i)
		}

		total := 0
		for id, impact := range s.Impact {
			if s.States[id] != Broadcasting {
				t.Errorf("iteration %d: impact key %s is %s", i, id, s.States[id])
			}
			total += impact
		}
		if total != len(s.ActiveEdges) {
			t.Errorf("iteration %d: impact sum %d != active edges %d", i, total, len(s.ActiveEdges))
		}
		if len(s.Impact) != s.Count(Broadcasting) {
			t.Errorf("iteration %d: %d impact entries for %d broadcasters", i, len(s.Impact), s.Count(Broadcasting))
		}

		targets := make(map[string]bool)
		for _, e := range s.ActiveEdges {
			if !g.HasEdge(e.Source, e.Target) {
				t.Errorf("iteration %d: active edge %s->%s not in graph", i, e.Source, e.Target)
			}
			if s.States[e.Source] != Broadcasting {
				t.Errorf("iteration %d: active edge source %s not broadcasting", i, e.Source)
			}
			targets[e.Target] = true
		}
		for id, st := range s.States {
			if st == Reacting && !targets[id] {
				t.Errorf("iteration %d: %s reacting without an active edge", i, id)
			}
		}
	}
}

func TestRun_PrefixProperty(t *testing.T) {
	g := newNetwork(t, 200)
	cfg := DefaultConfig()
	cfg.Iterations = 10
	long := mustRun(t, g, cfg)

	cfg.Iterations = 5
	short := mustRun(t, g, cfg)

	if !reflect.DeepEqual(short.Snapshots, long.Snapshots[:5]) {
		t.Fatal("shorter run is not a prefix of the longer run")
	}
	if reach(short.Snapshots) > reach(long.Snapshots) {
		t.Errorf("reach decreased with more iterations: %d > %d", reach(short.Snapshots), reach(long.Snapshots))
	}
}

func TestRun_ThreePathExample(t *testing.T) {
	g := newPath(t)
	promoted := 0

	for seed := int64(1); seed <= 50; seed++ {
		cfg := DefaultConfig()
		cfg.Iterations = 2
		cfg.Seed = seed
		cfg.InitialBroadcasters = []string{"A"}
		res := mustRun(t, g, cfg)

		first := res.Snapshots[0]
		if first.States["A"] != Broadcasting || first.States["B"] != Reacting || first.States["C"] != Idle {
			t.Fatalf("seed %d: iteration 0 states = %v", seed, first.States)
		}
		if first.Impact["A"] != 1 {
			t.Fatalf("seed %d: A impact = %d, want 1", seed, first.Impact["A"])
		}

		second := res.Snapshots[1]
		got := reach(res.Snapshots)
		switch {
		case second.States["B"] == Broadcasting:
			promoted++
			if second.States["C"] != Reacting && second.States["C"] != Broadcasting {
				t.Errorf("seed %d: B broadcast but C is %s", seed, second.States["C"])
			}
			if got != 3 {
				t.Errorf("seed %d: reach = %d, want 3", seed, got)
			}
		case second.States["C"] == Idle:
			if got != 2 {
				t.Errorf("seed %d: reach = %d, want 2", seed, got)
			}
		}
	}

	if promoted == 0 {
		t.Error("B never broadcast in iteration 1 across 50 seeds")
	}
}

func TestRun_AttributeIsolation(t *testing.T) {
	g := newPath(t)
	cfg := DefaultConfig()
	cfg.Iterations = 20
	cfg.AmplificationRate = 0.5

	res := mustRun(t, g, cfg)

	for _, id := range g.Nodes() {
		attrs, _ := g.Attributes(id)
		if attrs.Influence != 1 {
			t.Errorf("provider influence of %s changed to %f", id, attrs.Influence)
		}
	}

	amplified := false
	for _, a := range res.Attributes {
		if a.Influence > 1 {
			amplified = true
		}
	}
	if !amplified {
		t.Error("expected at least one amplified influence in the result")
	}

	again := mustRun(t, g, cfg)
	if !reflect.DeepEqual(res.Snapshots, again.Snapshots) {
		t.Error("amplification leaked between runs")
	}
}

func TestRun_MissingAttributes(t *testing.T) {
	g := graph.New(false)
	for _, e := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}} {
		if err := g.Connect(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.SetAttributes("a", graph.Attributes{Activity: 1, Influence: 1}); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Iterations = 10
	cfg.InitialBroadcasters = []string{"c"}
	res := mustRun(t, g, cfg)

	if res.MissingAttributes != 3 {
		t.Errorf("MissingAttributes = %d, want 3", res.MissingAttributes)
	}
	for _, s := range res.Snapshots {
		for _, e := range s.ActiveEdges {
			if e.Source != "a" {
				t.Errorf("node %s without attributes activated %s", e.Source, e.Target)
			}
		}
	}
}

func TestRun_ZeroActivityNeverActivates(t *testing.T) {
	g := newPath(t)
	for _, id := range g.Nodes() {
		_ = g.SetAttributes(id, graph.Attributes{Activity: 0, Influence: 1})
	}
	cfg := DefaultConfig()
	cfg.Iterations = 15
	res := mustRun(t, g, cfg)

	for _, s := range res.Snapshots {
		if len(s.ActiveEdges) != 0 {
			t.Fatalf("iteration %d: %d active edges with zero activity", s.Iteration, len(s.ActiveEdges))
		}
		for id, impact := range s.Impact {
			if impact != 0 {
				t.Errorf("iteration %d: %s impact %d", s.Iteration, id, impact)
			}
		}
	}
}

func TestRun_ReseedKeepsWorkingSetSize(t *testing.T) {
	g := newNetwork(t, 100)
	cfg := DefaultConfig()
	cfg.Iterations = 20
	cfg.FractionInfected = 0.05
	cfg.PromotionProbability = 0
	cfg.RetentionProbability = 0

	res := mustRun(t, g, cfg)
	for _, s := range res.Snapshots {
		if got := s.Count(Broadcasting); got != 5 {
			t.Errorf("iteration %d: %d broadcasters, want 5", s.Iteration, got)
		}
	}
}

func TestRun_FullRetentionKeepsBroadcasters(t *testing.T) {
	g := newPath(t)
	cfg := DefaultConfig()
	cfg.Iterations = 5
	cfg.RetentionProbability = 1
	cfg.InitialBroadcasters = []string{"A"}

	res := mustRun(t, g, cfg)
	for _, s := range res.Snapshots {
		if s.States["A"] != Broadcasting {
			t.Errorf("iteration %d: A is %s, want broadcasting", s.Iteration, s.States["A"])
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, newPath(t), DefaultConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestEngine_WithTrace(t *testing.T) {
	dir := t.TempDir()
	tl := logging.NewTraceLogger(dir, "debug")
	if tl == nil {
		t.Fatal("expected trace logger at debug level")
	}

	cfg := DefaultConfig()
	cfg.Iterations = 7
	if _, err := NewEngine().WithTrace(tl).Run(context.Background(), newPath(t), cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}
	tl.Close()

	f, err := os.Open(tl.Path())
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	if lines != cfg.Iterations {
		t.Errorf("trace has %d lines, want %d", lines, cfg.Iterations)
	}
}

func TestSnapshot_Broadcasters(t *testing.T) {
	g := newNetwork(t, 100)
	res := mustRun(t, g, DefaultConfig())

	order := make(map[string]int)
	for i, id := range g.Nodes() {
		order[id] = i
	}
	for _, s := range res.Snapshots {
		b := s.Broadcasters()
		if len(b) != s.Count(Broadcasting) {
			t.Fatalf("iteration %d: %d broadcasters listed, %d counted", s.Iteration, len(b), s.Count(Broadcasting))
		}
		for i := 1; i < len(b); i++ {
			if order[b[i-1]] > order[b[i]] {
				t.Errorf("iteration %d: broadcasters out of node order", s.Iteration)
			}
		}
	}

	manual := Snapshot{Impact: map[string]int{"z": 1, "a": 0}}
	if got := manual.Broadcasters(); !reflect.DeepEqual(got, []string{"a", "z"}) {
		t.Errorf("Broadcasters() = %v, want [a z]", got)
	}
}

func TestAmplify(t *testing.T) {
	if got := amplify(0.5, 0.02); math.Abs(got-0.51) > 1e-12 {
		t.Errorf("amplify(0.5, 0.02) = %f, want 0.51", got)
	}
	if got := amplify(math.MaxFloat64, 1); got != math.MaxFloat64 {
		t.Errorf("amplify did not saturate: %v", got)
	}
}
