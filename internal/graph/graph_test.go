package graph

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// path builds the undirected path a-b-c.
func path(t *testing.T) *Graph {
	t.Helper()
	g := New(false)
	require.NoError(t, g.Connect("a", "b"))
	require.NoError(t, g.AddEdge("b", "c", 0.5))
	return g
}

func TestGraph_AddNode(t *testing.T) {
	t.Run("empty id rejected", func(t *testing.T) {
		g := New(false)
		assert.Error(t, g.AddNode(""))
	})

	t.Run("duplicate is a no-op", func(t *testing.T) {
		g := New(false)
		require.NoError(t, g.AddNode("a"))
		require.NoError(t, g.AddNode("a"))
		assert.Equal(t, 1, g.NodeCount())
	})

	t.Run("insertion order preserved", func(t *testing.T) {
		g := New(false)
		for _, id := range []string{"z", "a", "m"} {
			require.NoError(t, g.AddNode(id))
		}
		assert.Equal(t, []string{"z", "a", "m"}, g.Nodes())
	})
}

func TestGraph_AddEdge(t *testing.T) {
	t.Run("undirected adjacency is symmetric", func(t *testing.T) {
		g := path(t)
		assert.Equal(t, []string{"b"}, g.Neighbors("a"))
		assert.Equal(t, []string{"a", "c"}, g.Neighbors("b"))
		assert.Equal(t, []string{"b"}, g.Neighbors("c"))
		assert.Equal(t, 2, g.EdgeCount())
		assert.True(t, g.HasEdge("c", "b"))
	})

	t.Run("directed adjacency is one-way", func(t *testing.T) {
		g := New(true)
		require.NoError(t, g.Connect("a", "b"))
		assert.Equal(t, []string{"b"}, g.Neighbors("a"))
		assert.Empty(t, g.Neighbors("b"))
		assert.False(t, g.HasEdge("b", "a"))
	})

	t.Run("default and explicit weights", func(t *testing.T) {
		g := path(t)
		assert.Equal(t, 1.0, g.EdgeWeight("a", "b"))
		assert.Equal(t, 1.0, g.EdgeWeight("b", "a"))
		assert.Equal(t, 0.5, g.EdgeWeight("c", "b"))
		assert.Equal(t, 0.0, g.EdgeWeight("a", "c"))
	})

	t.Run("explicit zero weight kept", func(t *testing.T) {
		g := New(false)
		require.NoError(t, g.AddEdge("a", "b", 0))
		assert.True(t, g.HasEdge("b", "a"))
		assert.Equal(t, 0.0, g.EdgeWeight("a", "b"))
		assert.Equal(t, 0.0, g.EdgeWeight("b", "a"))
	})

	t.Run("weights follow their neighbors on a hub", func(t *testing.T) {
		g := New(false)
		for i := 0; i < 50; i++ {
			require.NoError(t, g.AddEdge("hub", fmt.Sprintf("n%d", i), float64(i)/100))
		}
		for i := 0; i < 50; i++ {
			leaf := fmt.Sprintf("n%d", i)
			assert.Equal(t, float64(i)/100, g.EdgeWeight("hub", leaf))
			assert.Equal(t, float64(i)/100, g.EdgeWeight(leaf, "hub"))
		}
		assert.Equal(t, 0.0, g.EdgeWeight("n1", "n2"))

		c := g.Clone()
		assert.Equal(t, 0.49, c.EdgeWeight("hub", "n49"))
		assert.True(t, c.HasEdge("n49", "hub"))
	})

	t.Run("duplicate edge ignored", func(t *testing.T) {
		g := path(t)
		require.NoError(t, g.AddEdge("b", "a", 0.3))
		assert.Equal(t, 2, g.EdgeCount())
		assert.Equal(t, 1.0, g.EdgeWeight("a", "b"))
	})

	t.Run("invalid edges rejected", func(t *testing.T) {
		g := New(false)
		assert.Error(t, g.AddEdge("a", "a", 1))
		assert.Error(t, g.AddEdge("", "a", 1))
		assert.Error(t, g.AddEdge("a", "b", -1))
		assert.Equal(t, 0, g.EdgeCount())
	})
}

func TestGraph_Attributes(t *testing.T) {
	g := path(t)

	_, ok := g.Attributes("a")
	assert.False(t, ok, "attributes should be unset by default")

	require.NoError(t, g.SetAttributes("a", Attributes{Activity: 0.5, Influence: 0.1}))
	attrs, ok := g.Attributes("a")
	assert.True(t, ok)
	assert.Equal(t, Attributes{Activity: 0.5, Influence: 0.1}, attrs)

	assert.Error(t, g.SetAttributes("missing", Attributes{}))

	g.ApplyAttributes(map[string]Attributes{
		"b":       {Activity: 1, Influence: 2},
		"unknown": {Activity: 1},
	})
	attrs, ok = g.Attributes("b")
	assert.True(t, ok)
	assert.Equal(t, 2.0, attrs.Influence)
	_, ok = g.Attributes("unknown")
	assert.False(t, ok)
}

func TestGraph_Edges(t *testing.T) {
	g := path(t)
	assert.Equal(t, []Edge{
		{Source: "a", Target: "b", Weight: 1},
		{Source: "b", Target: "c", Weight: 0.5},
	}, g.Edges())
}

func TestGraph_Clone(t *testing.T) {
	g := path(t)
	require.NoError(t, g.SetAttributes("a", Attributes{Activity: 1, Influence: 0.2}))

	c := g.Clone()
	require.NoError(t, c.Connect("a", "c"))
	require.NoError(t, c.SetAttributes("a", Attributes{Activity: 0, Influence: 0}))

	assert.False(t, g.HasEdge("a", "c"), "clone edges must not leak into original")
	attrs, _ := g.Attributes("a")
	assert.Equal(t, 0.2, attrs.Influence, "clone attributes must not leak into original")
	assert.Equal(t, 3, c.EdgeCount())
	assert.Equal(t, g.Nodes(), c.Nodes())
}

func TestGraph_Subgraph(t *testing.T) {
	g := path(t)
	require.NoError(t, g.Connect("d", "e"))
	require.NoError(t, g.SetAttributes("b", Attributes{Activity: 0.7}))

	sub := g.Subgraph([]string{"c", "b", "a", "nope"})
	assert.Equal(t, []string{"a", "b", "c"}, sub.Nodes())
	assert.Equal(t, 2, sub.EdgeCount())
	assert.Equal(t, 0.5, sub.EdgeWeight("c", "b"))
	attrs, ok := sub.Attributes("b")
	assert.True(t, ok)
	assert.Equal(t, 0.7, attrs.Activity)
}

func TestGraph_ConcurrentReads(t *testing.T) {
	g := path(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range g.Nodes() {
				for _, n := range g.Neighbors(id) {
					_ = g.EdgeWeight(id, n)
				}
				_, _ = g.Attributes(id)
			}
		}()
	}
	wg.Wait()
}

func TestGraph_ImplementsProvider(t *testing.T) {
	var _ Provider = New(false)
}
