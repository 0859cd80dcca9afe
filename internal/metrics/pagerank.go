package metrics

import (
	"math"

	"github.com/nvandessel/cascadelab/internal/graph"
)

// PageRankConfig holds configuration for PageRank computation.
type PageRankConfig struct {
	// DampingFactor (d) is the probability of following an edge vs. teleporting.
	// Standard value: 0.85.
	DampingFactor float64

	// MaxIterations is the maximum number of power iteration steps. Default: 100.
	MaxIterations int

	// Tolerance is the convergence threshold. Default: 1e-6.
	Tolerance float64
}

// DefaultPageRankConfig returns the default PageRank configuration.
func DefaultPageRankConfig() PageRankConfig {
	return PageRankConfig{
		DampingFactor: 0.85,
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

// PageRank scores every node of g by power iteration over the undirected
// view and normalizes so the highest score is 1.0.
//
//	PR(v) = (1-d)/N + d * sum(PR(u)/deg(u)) for all neighbors u of v
//
// Iteration stops when the largest per-node change drops below Tolerance.
// Isolated nodes keep only the teleport term.
func PageRank(g *graph.Graph, config PageRankConfig) map[string]float64 {
	v := undirected(g)
	n := len(v.order)
	scores := make(map[string]float64, n)
	if n == 0 {
		return scores
	}

	d := config.DampingFactor
	nf := float64(n)
	for _, id := range v.order {
		scores[id] = 1.0 / nf
	}

	for iter := 0; iter < config.MaxIterations; iter++ {
		next := make(map[string]float64, n)
		maxDelta := 0.0

		for _, id := range v.order {
			sum := 0.0
			for _, u := range v.nbrs[id] {
				sum += scores[u] / float64(len(v.nbrs[u]))
			}

			score := (1.0-d)/nf + d*sum
			next[id] = score

			if delta := math.Abs(score - scores[id]); delta > maxDelta {
				maxDelta = delta
			}
		}

		scores = next
		if maxDelta < config.Tolerance {
			break
		}
	}

	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore > 0 {
		for id, s := range scores {
			scores[id] = s / maxScore
		}
	}
	return scores
}
