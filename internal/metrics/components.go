package metrics

import (
	"sort"

	"github.com/nvandessel/cascadelab/internal/graph"
)

// Components returns the connected components of g's undirected view,
// largest first. Ties keep discovery order, which follows node order.
// Members are listed in breadth-first order from the component's first node.
func Components(g *graph.Graph) [][]string {
	v := undirected(g)
	seen := make(map[string]bool, len(v.order))

	var comps [][]string
	for _, start := range v.order {
		if seen[start] {
			continue
		}
		seen[start] = true
		comp := []string{start}
		for i := 0; i < len(comp); i++ {
			for _, nbr := range v.nbrs[comp[i]] {
				if !seen[nbr] {
					seen[nbr] = true
					comp = append(comp, nbr)
				}
			}
		}
		comps = append(comps, comp)
	}

	sort.SliceStable(comps, func(i, j int) bool { return len(comps[i]) > len(comps[j]) })
	return comps
}

// LargestComponent returns the subgraph induced by the largest connected
// component. Connectivity ignores edge direction; the returned graph keeps
// it. An empty graph yields an empty graph.
func LargestComponent(g *graph.Graph) *graph.Graph {
	comps := Components(g)
	if len(comps) == 0 {
		return graph.New(g.Directed())
	}
	return g.Subgraph(comps[0])
}
