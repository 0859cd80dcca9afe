package topology

import (
	"fmt"

	"github.com/nvandessel/cascadelab/internal/constants"
	"github.com/nvandessel/cascadelab/internal/graph"
	"github.com/nvandessel/cascadelab/internal/metrics"
)

// AttributeMode selects how node activity and influence are derived.
type AttributeMode string

const (
	// AttributesDegree scales both attributes linearly with degree/max degree,
	// so hubs broadcast more often and persuade more strongly.
	AttributesDegree AttributeMode = "degree"

	// AttributesUniform gives every node full activity and the configured
	// per-edge influence probability.
	AttributesUniform AttributeMode = "uniform"

	// AttributesPageRank scales like AttributesDegree but by normalized PageRank.
	AttributesPageRank AttributeMode = "pagerank"
)

// ParseAttributeMode parses a mode name. The empty string means degree.
func ParseAttributeMode(s string) (AttributeMode, error) {
	switch AttributeMode(s) {
	case "", AttributesDegree:
		return AttributesDegree, nil
	case AttributesUniform, AttributesPageRank:
		return AttributeMode(s), nil
	}
	return "", fmt.Errorf("invalid attribute mode: %q (valid: degree, uniform, pagerank)", s)
}

// AssignAttributes sets activity and influence on every node of g.
// influence is only used by AttributesUniform.
func AssignAttributes(g *graph.Graph, mode AttributeMode, influence float64) error {
	var scale map[string]float64
	switch mode {
	case AttributesDegree, "":
		scale = degreeScale(g)
	case AttributesPageRank:
		scale = metrics.PageRank(g, metrics.DefaultPageRankConfig())
	case AttributesUniform:
		attrs := make(map[string]graph.Attributes, g.NodeCount())
		for _, id := range g.Nodes() {
			attrs[id] = graph.Attributes{Activity: constants.UniformActivity, Influence: influence}
		}
		g.ApplyAttributes(attrs)
		return nil
	default:
		return fmt.Errorf("invalid attribute mode: %q", mode)
	}

	attrs := make(map[string]graph.Attributes, len(scale))
	for id, s := range scale {
		attrs[id] = graph.Attributes{
			Activity:  constants.ActivityBase + constants.ActivitySpan*s,
			Influence: constants.InfluenceBase + constants.InfluenceSpan*s,
		}
	}
	g.ApplyAttributes(attrs)
	return nil
}

// degreeScale maps each node to degree/max degree; all zero when the graph
// has no edges.
func degreeScale(g *graph.Graph) map[string]float64 {
	nodes := g.Nodes()
	maxDegree := 0
	for _, id := range nodes {
		if d := g.Degree(id); d > maxDegree {
			maxDegree = d
		}
	}

	scale := make(map[string]float64, len(nodes))
	for _, id := range nodes {
		if maxDegree > 0 {
			scale[id] = float64(g.Degree(id)) / float64(maxDegree)
		} else {
			scale[id] = 0
		}
	}
	return scale
}
