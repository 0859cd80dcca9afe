package visualization

import (
	"strings"
	"testing"

	"github.com/nvandessel/cascadelab/internal/cascade"
	"github.com/nvandessel/cascadelab/internal/graph"
)

func pathGraph(t *testing.T, directed bool) *graph.Graph {
	t.Helper()
	g := graph.New(directed)
	for _, e := range [][2]string{{"A", "B"}, {"B", "C"}} {
		if err := g.AddEdge(e[0], e[1], 1); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.SetAttributes("A", graph.Attributes{Activity: 1, Influence: 0.5}); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestRenderDOT_Plain(t *testing.T) {
	dot := RenderDOT(pathGraph(t, false), nil)

	if !strings.HasPrefix(dot, "graph cascade {") {
		t.Errorf("undirected graph should render as 'graph':\n%s", dot)
	}
	for _, want := range []string{`"A" -- "B";`, `"B" -- "C";`, `tooltip="A activity=1.000 influence=0.500"`} {
		if !strings.Contains(dot, want) {
			t.Errorf("missing %q in:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "iteration") {
		t.Error("plain render should not carry an iteration label")
	}
}

func TestRenderDOT_Snapshot(t *testing.T) {
	snap := &cascade.Snapshot{
		Iteration: 3,
		States: map[string]cascade.State{
			"A": cascade.Idle,
			"B": cascade.Broadcasting,
			"C": cascade.Reacting,
		},
		Impact:      map[string]int{"B": 1},
		ActiveEdges: []cascade.Edge{{Source: "B", Target: "C"}},
	}
	dot := RenderDOT(pathGraph(t, false), snap)

	for _, want := range []string{
		`label="iteration 3"`,
		`"B" [fillcolor="tomato"`,
		`"C" [fillcolor="goldenrod"`,
		`"A" [fillcolor="white"`,
		`"B" -- "C" [color=tomato, penwidth=2, dir=forward];`,
		`"A" -- "B";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("missing %q in:\n%s", want, dot)
		}
	}
}

func TestRenderDOT_ReverseActivation(t *testing.T) {
	snap := &cascade.Snapshot{
		States:      map[string]cascade.State{"B": cascade.Broadcasting, "A": cascade.Reacting},
		ActiveEdges: []cascade.Edge{{Source: "B", Target: "A"}},
	}
	dot := RenderDOT(pathGraph(t, false), snap)
	if !strings.Contains(dot, `"A" -- "B" [color=tomato, penwidth=2, dir=back];`) {
		t.Errorf("reverse activation not drawn back:\n%s", dot)
	}
}

func TestRenderDOT_Directed(t *testing.T) {
	dot := RenderDOT(pathGraph(t, true), nil)
	if !strings.HasPrefix(dot, "digraph cascade {") || !strings.Contains(dot, `"A" -> "B";`) {
		t.Errorf("unexpected directed render:\n%s", dot)
	}
}

func TestRenderJSON(t *testing.T) {
	g := pathGraph(t, false)

	plain := RenderJSON(g, nil)
	if plain["node_count"] != 3 || plain["edge_count"] != 2 {
		t.Errorf("counts = %v/%v, want 3/2", plain["node_count"], plain["edge_count"])
	}
	if _, ok := plain["iteration"]; ok {
		t.Error("plain render has an iteration")
	}

	snap := &cascade.Snapshot{
		Iteration:   1,
		States:      map[string]cascade.State{"A": cascade.Broadcasting, "B": cascade.Reacting},
		Impact:      map[string]int{"A": 1},
		ActiveEdges: []cascade.Edge{{Source: "A", Target: "B"}},
	}
	out := RenderJSON(g, snap)

	nodes := out["nodes"].([]map[string]any)
	if nodes[0]["id"] != "A" || nodes[0]["state"] != "broadcasting" || nodes[0]["impact"] != 1 {
		t.Errorf("node A = %v", nodes[0])
	}
	if nodes[2]["state"] != "idle" {
		t.Errorf("node C = %v", nodes[2])
	}
	if _, ok := nodes[1]["activity"]; ok {
		t.Error("node B has no attributes but reported activity")
	}

	edges := out["edges"].([]map[string]any)
	if edges[0]["fired"] != true || edges[1]["fired"] != false {
		t.Errorf("edges = %v", edges)
	}
}
