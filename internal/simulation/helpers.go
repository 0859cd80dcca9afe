package simulation

import (
	"strconv"
)

// Path returns the edges of a path over ids in order.
func Path(ids ...string) []EdgeSpec {
	edges := make([]EdgeSpec, 0, len(ids))
	for i := 1; i < len(ids); i++ {
		edges = append(edges, EdgeSpec{Source: ids[i-1], Target: ids[i]})
	}
	return edges
}

// Star returns a hub connected to leaves leaf-1..leaf-n.
func Star(hub string, leaves int) []EdgeSpec {
	edges := make([]EdgeSpec, 0, leaves)
	for i := 1; i <= leaves; i++ {
		edges = append(edges, EdgeSpec{Source: hub, Target: "leaf-" + strconv.Itoa(i)})
	}
	return edges
}

// Complete returns every edge between n nodes named "0".."n-1".
func Complete(n int) []EdgeSpec {
	var edges []EdgeSpec
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			edges = append(edges, EdgeSpec{Source: strconv.Itoa(i), Target: strconv.Itoa(j)})
		}
	}
	return edges
}

// Uniform gives every id full activity and the given influence.
func Uniform(influence float64, ids ...string) []NodeSpec {
	nodes := make([]NodeSpec, len(ids))
	for i, id := range ids {
		nodes[i] = NodeSpec{ID: id, Activity: 1, Influence: influence, WithAttributes: true}
	}
	return nodes
}
