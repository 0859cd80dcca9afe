// Package metrics computes static structural metrics of a graph. The values
// are descriptive only; nothing in the cascade model reads them.
//
// All metrics use the undirected view of the graph: a directed edge in
// either direction makes two nodes neighbors.
package metrics

import (
	"encoding/json"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/nvandessel/cascadelab/internal/constants"
	"github.com/nvandessel/cascadelab/internal/graph"
)

// Metrics summarizes hub emergence and attention concentration in a graph.
type Metrics struct {
	Nodes     int     `json:"nodes"`
	Edges     int     `json:"edges"`
	AvgDegree float64 `json:"avg_degree"`
	MaxDegree float64 `json:"max_degree"`

	// DegreeGini is the Gini coefficient of the degree sequence.
	DegreeGini float64 `json:"degree_gini"`

	// TopEdgeShare is the fraction of edge endpoints held by the top 1% of
	// nodes by degree (at least one node).
	TopEdgeShare float64 `json:"top_1pct_edge_share"`

	// AvgClustering is the mean local clustering coefficient; 0 when n <= 2.
	AvgClustering float64 `json:"avg_clustering"`

	// Assortativity is the degree assortativity coefficient. NaN when it is
	// undefined (n <= 2, no edges, or every edge joins equal-degree nodes).
	Assortativity float64 `json:"degree_assortativity"`
}

// Map returns the metrics keyed by their JSON names. NaN values map to nil.
func (m Metrics) Map() map[string]any {
	return map[string]any{
		"nodes":                m.Nodes,
		"edges":                m.Edges,
		"avg_degree":           nullable(m.AvgDegree),
		"max_degree":           nullable(m.MaxDegree),
		"degree_gini":          nullable(m.DegreeGini),
		"top_1pct_edge_share":  nullable(m.TopEdgeShare),
		"avg_clustering":       nullable(m.AvgClustering),
		"degree_assortativity": nullable(m.Assortativity),
	}
}

// MarshalJSON encodes NaN metrics as null.
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// DegreeCount is one point of the degree distribution.
type DegreeCount struct {
	Degree int `json:"degree"`
	Count  int `json:"count"`
}

// Compute returns the structural metrics of g. An empty graph yields zero
// values with NaN assortativity.
func Compute(g *graph.Graph) Metrics {
	u := undirected(g)
	n := len(u.order)
	out := Metrics{Nodes: n, Edges: u.edges, Assortativity: math.NaN()}
	if n == 0 {
		return out
	}

	degrees := u.degrees()
	out.AvgDegree = stat.Mean(degrees, nil)
	out.MaxDegree = floats.Max(degrees)
	out.DegreeGini = gini(degrees, out.AvgDegree)
	out.TopEdgeShare = topShare(degrees, u.edges)

	if n > 2 {
		out.AvgClustering = u.avgClustering()
		out.Assortativity = u.assortativity()
	}
	return out
}

// DegreeDistribution returns node counts per degree, ascending by degree.
func DegreeDistribution(g *graph.Graph) []DegreeCount {
	u := undirected(g)
	counts := make(map[int]int)
	for _, id := range u.order {
		counts[len(u.nbrs[id])]++
	}

	out := make([]DegreeCount, 0, len(counts))
	for d, c := range counts {
		out = append(out, DegreeCount{Degree: d, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Degree < out[j].Degree })
	return out
}

// gini uses the sorted-sequence form of the mean absolute difference:
// G = sum_i (2i - n - 1) x_(i) / (n^2 * mean).
func gini(degrees []float64, mean float64) float64 {
	if mean <= 0 {
		return 0
	}
	sorted := append([]float64(nil), degrees...)
	sort.Float64s(sorted)

	n := float64(len(sorted))
	var acc float64
	for i, x := range sorted {
		acc += (2*float64(i+1) - n - 1) * x
	}
	return acc / (n * n * mean)
}

func topShare(degrees []float64, edges int) float64 {
	if edges == 0 {
		return 0
	}
	k := int(constants.TopHubFraction * float64(len(degrees)))
	if k < 1 {
		k = 1
	}
	sorted := append([]float64(nil), degrees...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	return floats.Sum(sorted[:k]) / float64(2*edges)
}

// view is an undirected, deduplicated adjacency over the graph's node order.
// nbrs lists neighbors in edge order; every accumulation iterates it so
// results are reproducible bit for bit. adj answers membership only.
type view struct {
	order []string
	nbrs  map[string][]string
	adj   map[string]map[string]bool
	edges int
}

func undirected(g *graph.Graph) *view {
	v := &view{
		order: g.Nodes(),
		nbrs:  make(map[string][]string),
		adj:   make(map[string]map[string]bool),
	}
	for _, id := range v.order {
		v.adj[id] = make(map[string]bool)
	}
	for _, e := range g.Edges() {
		if v.adj[e.Source][e.Target] {
			continue
		}
		v.adj[e.Source][e.Target] = true
		v.adj[e.Target][e.Source] = true
		v.nbrs[e.Source] = append(v.nbrs[e.Source], e.Target)
		v.nbrs[e.Target] = append(v.nbrs[e.Target], e.Source)
		v.edges++
	}
	return v
}

func (v *view) degrees() []float64 {
	out := make([]float64, len(v.order))
	for i, id := range v.order {
		out[i] = float64(len(v.nbrs[id]))
	}
	return out
}

func (v *view) avgClustering() float64 {
	coeffs := make([]float64, len(v.order))
	for i, id := range v.order {
		nbrs := v.nbrs[id]
		d := len(nbrs)
		if d < 2 {
			continue
		}
		links := 0
		for i, a := range nbrs {
			for _, b := range nbrs[i+1:] {
				if v.adj[a][b] {
					links++
				}
			}
		}
		coeffs[i] = float64(2*links) / float64(d*(d-1))
	}
	return stat.Mean(coeffs, nil)
}

// assortativity is the Pearson correlation of endpoint degrees over every
// edge taken in both directions.
func (v *view) assortativity() float64 {
	if v.edges == 0 {
		return math.NaN()
	}
	x := make([]float64, 0, 2*v.edges)
	y := make([]float64, 0, 2*v.edges)
	for _, a := range v.order {
		for _, b := range v.nbrs[a] {
			x = append(x, float64(len(v.nbrs[a])))
			y = append(y, float64(len(v.nbrs[b])))
		}
	}
	if stat.Variance(x, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}
