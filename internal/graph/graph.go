// Package graph defines the Provider interface the cascade engine reads
// topology and node attributes from, and an in-memory Graph implementing it.
package graph

import (
	"fmt"
	"math"
	"sync"

	"github.com/nvandessel/cascadelab/internal/constants"
)

// Attributes are the per-node simulation attributes.
type Attributes struct {
	// Activity is the probability that a broadcaster attempts to broadcast in a tick.
	Activity float64 `json:"activity" yaml:"activity"`

	// Influence is the base probability of activating a given neighbor.
	// It may exceed 1.0 after repeated amplification.
	Influence float64 `json:"influence" yaml:"influence"`
}

// Edge is a weighted edge between two nodes.
type Edge struct {
	Source string  `json:"source" yaml:"source"`
	Target string  `json:"target" yaml:"target"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Provider is the read side of a graph as consumed by the cascade engine.
//
// Nodes and Neighbors must return identifiers in a stable order; the engine
// consumes randomness in that order, so reordering changes results.
type Provider interface {
	// Nodes returns every node identifier in stable order.
	Nodes() []string

	// Neighbors returns the neighbors of id in stable order.
	Neighbors(id string) []string

	// EdgeWeight returns the weight of the edge source->target, or 0 if
	// there is no such edge.
	EdgeWeight(source, target string) float64

	// Attributes returns the node's attributes and whether they were set.
	Attributes(id string) (Attributes, bool)
}

type adjacency struct {
	neighbors []string
	weights   []float64
	pos       map[string]int
}

func newAdjacency() *adjacency {
	return &adjacency{pos: make(map[string]int)}
}

// Graph is an in-memory graph with insertion-ordered nodes and adjacency.
// It is safe for concurrent use; ensemble runs read it in parallel.
type Graph struct {
	mu       sync.RWMutex
	directed bool
	order    []string
	index    map[string]int
	adj      map[string]*adjacency
	attrs    map[string]Attributes
	edges    int
}

// New creates an empty graph.
func New(directed bool) *Graph {
	return &Graph{
		directed: directed,
		order:    make([]string, 0),
		index:    make(map[string]int),
		adj:      make(map[string]*adjacency),
		attrs:    make(map[string]Attributes),
	}
}

// Directed reports whether edges are one-way.
func (g *Graph) Directed() bool {
	return g.directed
}

// AddNode adds a node with no attributes. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) error {
	if id == "" {
		return fmt.Errorf("node ID is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.addNodeLocked(id)
	return nil
}

func (g *Graph) addNodeLocked(id string) {
	if _, exists := g.index[id]; exists {
		return
	}
	g.index[id] = len(g.order)
	g.order = append(g.order, id)
	g.adj[id] = newAdjacency()
}

// Connect adds an edge with the default weight (1.0).
func (g *Graph) Connect(source, target string) error {
	return g.AddEdge(source, target, constants.DefaultEdgeWeight)
}

// AddEdge connects source and target, adding missing endpoints. The weight
// is stored as given; a zero-weight edge never fires. Negative or
// non-finite weights and self-loops are rejected. Adding an existing edge
// is a no-op.
func (g *Graph) AddEdge(source, target string, weight float64) error {
	if source == "" || target == "" {
		return fmt.Errorf("edge endpoints are required")
	}
	if source == target {
		return fmt.Errorf("self-loop on %s not allowed", source)
	}
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("edge weight must be finite and non-negative, got %f", weight)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.addNodeLocked(source)
	g.addNodeLocked(target)

	if g.hasEdgeLocked(source, target) {
		return nil
	}

	g.link(source, target, weight)
	if !g.directed {
		g.link(target, source, weight)
	}
	g.edges++
	return nil
}

func (g *Graph) link(from, to string, weight float64) {
	a := g.adj[from]
	a.pos[to] = len(a.neighbors)
	a.neighbors = append(a.neighbors, to)
	a.weights = append(a.weights, weight)
}

func (g *Graph) hasEdgeLocked(source, target string) bool {
	a, ok := g.adj[source]
	if !ok {
		return false
	}
	_, ok = a.pos[target]
	return ok
}

// HasEdge reports whether source->target exists (either direction when undirected).
func (g *Graph) HasEdge(source, target string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasEdgeLocked(source, target)
}

// SetAttributes sets a node's attributes. The node must exist.
func (g *Graph) SetAttributes(id string, attrs Attributes) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.index[id]; !exists {
		return fmt.Errorf("node not found: %s", id)
	}
	g.attrs[id] = attrs
	return nil
}

// ApplyAttributes overwrites attributes for every node present in attrs.
// Unknown node IDs are ignored. Use it to persist the attribute state a
// cascade run returned.
func (g *Graph) ApplyAttributes(attrs map[string]Attributes) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, a := range attrs {
		if _, exists := g.index[id]; exists {
			g.attrs[id] = a
		}
	}
}

// Nodes returns node IDs in insertion order. The slice is a copy.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Neighbors returns the neighbors of id in edge insertion order.
// Returns nil for unknown nodes. The slice is a copy.
func (g *Graph) Neighbors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	a, ok := g.adj[id]
	if !ok {
		return nil
	}
	out := make([]string, len(a.neighbors))
	copy(out, a.neighbors)
	return out
}

// EdgeWeight returns the weight of source->target, or 0 when absent.
func (g *Graph) EdgeWeight(source, target string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	a, ok := g.adj[source]
	if !ok {
		return 0
	}
	if i, ok := a.pos[target]; ok {
		return a.weights[i]
	}
	return 0
}

// Attributes returns the node's attributes and whether any were set.
func (g *Graph) Attributes(id string) (Attributes, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	a, ok := g.attrs[id]
	return a, ok
}

// Degree returns the number of neighbors of id (out-degree when directed).
func (g *Graph) Degree(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if a, ok := g.adj[id]; ok {
		return len(a.neighbors)
	}
	return 0
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// EdgeCount returns the number of edges. An undirected edge counts once.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges
}

// Edges returns every edge once, ordered by source insertion order then
// adjacency order. For undirected graphs each edge is reported from the
// endpoint that was inserted first.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Edge, 0, g.edges)
	for _, src := range g.order {
		a := g.adj[src]
		for i, dst := range a.neighbors {
			if !g.directed && g.index[dst] < g.index[src] {
				continue
			}
			out = append(out, Edge{Source: src, Target: dst, Weight: a.weights[i]})
		}
	}
	return out
}

// Clone returns a deep copy of the graph, attributes included.
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c := New(g.directed)
	c.edges = g.edges
	c.order = append(c.order, g.order...)
	for id, i := range g.index {
		c.index[id] = i
	}
	for id, a := range g.adj {
		pos := make(map[string]int, len(a.pos))
		for n, i := range a.pos {
			pos[n] = i
		}
		c.adj[id] = &adjacency{
			neighbors: append([]string(nil), a.neighbors...),
			weights:   append([]float64(nil), a.weights...),
			pos:       pos,
		}
	}
	for id, a := range g.attrs {
		c.attrs[id] = a
	}
	return c
}

// Subgraph returns a new graph induced by ids, keeping the original node
// order, edge weights and attributes. Unknown IDs are ignored.
func (g *Graph) Subgraph(ids []string) *Graph {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	sub := New(g.directed)
	for _, id := range g.order {
		if !keep[id] {
			continue
		}
		sub.addNodeLocked(id)
		if a, ok := g.attrs[id]; ok {
			sub.attrs[id] = a
		}
	}
	for _, src := range g.order {
		if !keep[src] {
			continue
		}
		a := g.adj[src]
		for i, dst := range a.neighbors {
			if !keep[dst] || (!g.directed && g.index[dst] < g.index[src]) {
				continue
			}
			sub.link(src, dst, a.weights[i])
			if !g.directed {
				sub.link(dst, src, a.weights[i])
			}
			sub.edges++
		}
	}
	return sub
}
