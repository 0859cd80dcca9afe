// Package visualization renders topologies and cascade snapshots in
// Graphviz DOT and JSON form.
package visualization

import (
	"fmt"
	"strings"

	"github.com/nvandessel/cascadelab/internal/cascade"
	"github.com/nvandessel/cascadelab/internal/graph"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// stateColors maps cascade states to DOT fill colors.
var stateColors = map[cascade.State]string{
	cascade.Idle:         "white",
	cascade.Broadcasting: "tomato",
	cascade.Reacting:     "goldenrod",
}

// RenderDOT produces a Graphviz DOT representation of g. With a snapshot,
// nodes are filled by their state in that iteration and the edges that
// carried an activation are drawn bold in the direction they fired.
func RenderDOT(g *graph.Graph, snap *cascade.Snapshot) string {
	var b strings.Builder
	if g.Directed() {
		b.WriteString("digraph cascade {\n")
	} else {
		b.WriteString("graph cascade {\n")
	}
	b.WriteString("  layout=sfdp;\n")
	b.WriteString("  node [shape=circle, style=filled, label=\"\", width=0.15, fillcolor=white];\n")
	b.WriteString("  edge [color=gray70];\n")
	if snap != nil {
		fmt.Fprintf(&b, "  label=\"iteration %d\";\n", snap.Iteration)
	}
	b.WriteString("\n")

	for _, id := range g.Nodes() {
		attrs := ""
		if a, ok := g.Attributes(id); ok {
			attrs = fmt.Sprintf("activity=%.3f influence=%.3f", a.Activity, a.Influence)
		}
		color := "white"
		if snap != nil {
			color = stateColors[snap.States[id]]
		}
		fmt.Fprintf(&b, "  %q [fillcolor=%q, tooltip=%q];\n", id, color, strings.TrimSpace(id+" "+attrs))
	}
	b.WriteString("\n")

	fired := make(map[cascade.Edge]bool)
	if snap != nil {
		for _, e := range snap.ActiveEdges {
			fired[e] = true
		}
	}

	arrow := "--"
	if g.Directed() {
		arrow = "->"
	}
	for _, e := range g.Edges() {
		switch {
		case fired[cascade.Edge{Source: e.Source, Target: e.Target}]:
			fmt.Fprintf(&b, "  %q %s %q [color=tomato, penwidth=2, dir=forward];\n", e.Source, arrow, e.Target)
		case !g.Directed() && fired[cascade.Edge{Source: e.Target, Target: e.Source}]:
			fmt.Fprintf(&b, "  %q %s %q [color=tomato, penwidth=2, dir=back];\n", e.Source, arrow, e.Target)
		case e.Weight != 1:
			fmt.Fprintf(&b, "  %q %s %q [weight=\"%.2f\"];\n", e.Source, arrow, e.Target, e.Weight)
		default:
			fmt.Fprintf(&b, "  %q %s %q;\n", e.Source, arrow, e.Target)
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces a JSON-ready graph with nodes and edges arrays. With
// a snapshot, nodes carry their state and edges whether they fired.
func RenderJSON(g *graph.Graph, snap *cascade.Snapshot) map[string]any {
	ids := g.Nodes()
	nodes := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		n := map[string]any{"id": id, "degree": g.Degree(id)}
		if a, ok := g.Attributes(id); ok {
			n["activity"] = a.Activity
			n["influence"] = a.Influence
		}
		if snap != nil {
			n["state"] = snap.States[id].String()
			if impact, ok := snap.Impact[id]; ok {
				n["impact"] = impact
			}
		}
		nodes = append(nodes, n)
	}

	fired := make(map[cascade.Edge]bool)
	if snap != nil {
		for _, e := range snap.ActiveEdges {
			fired[e] = true
		}
	}

	graphEdges := g.Edges()
	edges := make([]map[string]any, 0, len(graphEdges))
	for _, e := range graphEdges {
		m := map[string]any{"source": e.Source, "target": e.Target, "weight": e.Weight}
		if snap != nil {
			m["fired"] = fired[cascade.Edge{Source: e.Source, Target: e.Target}] ||
				(!g.Directed() && fired[cascade.Edge{Source: e.Target, Target: e.Source}])
		}
		edges = append(edges, m)
	}

	out := map[string]any{
		"directed":   g.Directed(),
		"nodes":      nodes,
		"edges":      edges,
		"node_count": len(nodes),
		"edge_count": len(edges),
	}
	if snap != nil {
		out["iteration"] = snap.Iteration
	}
	return out
}
