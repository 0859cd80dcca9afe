package topology

import (
	"math/rand"
	"sort"
)

// erdosRenyi adds each possible edge independently with probability p.
func erdosRenyi(b *builder, p float64, rng *rand.Rand) {
	for u := 0; u < b.n; u++ {
		start := u + 1
		if b.directed {
			start = 0
		}
		for v := start; v < b.n; v++ {
			if u == v {
				continue
			}
			if rng.Float64() < p {
				b.add(u, v)
			}
		}
	}
}

// wattsStrogatz builds a ring lattice where each node joins its k/2 nearest
// neighbors on each side, then rewires every lattice edge with probability p
// to a uniformly chosen node that is not already a neighbor.
func wattsStrogatz(b *builder, k int, p float64, rng *rand.Rand) {
	n := b.n
	half := k / 2
	for j := 1; j <= half; j++ {
		for u := 0; u < n; u++ {
			b.add(u, (u+j)%n)
		}
	}

	for j := 1; j <= half; j++ {
		for u := 0; u < n; u++ {
			if rng.Float64() >= p {
				continue
			}
			v := (u + j) % n
			if b.degree(u) >= n-1 {
				continue
			}
			w := rng.Intn(n)
			for w == u || b.has(u, w) {
				w = rng.Intn(n)
			}
			b.remove(u, v)
			b.add(u, w)
		}
	}
}

// barabasiAlbert grows a graph by preferential attachment: starting from a
// star on m+1 nodes, each new node links to m distinct existing nodes chosen
// with probability proportional to degree.
func barabasiAlbert(b *builder, m int, rng *rand.Rand) {
	repeated := make([]int, 0, 2*b.n*m)
	for v := 1; v <= m; v++ {
		b.add(0, v)
		repeated = append(repeated, 0, v)
	}

	for source := m + 1; source < b.n; source++ {
		targets := randomSubset(repeated, m, rng)
		for _, t := range targets {
			b.add(source, t)
		}
		repeated = append(repeated, targets...)
		for i := 0; i < m; i++ {
			repeated = append(repeated, source)
		}
	}
}

// holmeKim grows a power-law graph with tunable clustering. Each new node
// makes one preferential attachment, then for each of its remaining m-1
// edges either closes a triangle through the last target (probability p)
// or makes another preferential attachment.
func holmeKim(b *builder, m int, p float64, rng *rand.Rand) {
	repeated := make([]int, 0, 2*b.n*m)
	for v := 0; v < m; v++ {
		repeated = append(repeated, v)
	}

	for source := m; source < b.n; source++ {
		candidates := randomSubset(repeated, m, rng)

		target := candidates[len(candidates)-1]
		candidates = candidates[:len(candidates)-1]
		b.add(source, target)
		repeated = append(repeated, target)

		for count := 1; count < m; {
			if rng.Float64() < p {
				var hood []int
				for _, nbr := range b.neighbors(target) {
					if nbr != source && !b.has(source, nbr) {
						hood = append(hood, nbr)
					}
				}
				if len(hood) > 0 {
					nbr := hood[rng.Intn(len(hood))]
					b.add(source, nbr)
					repeated = append(repeated, nbr)
					count++
					continue
				}
			}
			target = candidates[len(candidates)-1]
			candidates = candidates[:len(candidates)-1]
			b.add(source, target)
			repeated = append(repeated, target)
			count++
		}

		for i := 0; i < m; i++ {
			repeated = append(repeated, source)
		}
	}
}

// randomSubset draws from seq until m distinct values are collected and
// returns them sorted. seq must contain at least m distinct values.
func randomSubset(seq []int, m int, rng *rand.Rand) []int {
	seen := make(map[int]bool, m)
	out := make([]int, 0, m)
	for len(out) < m {
		x := seq[rng.Intn(len(seq))]
		if seen[x] {
			continue
		}
		seen[x] = true
		out = append(out, x)
	}
	sort.Ints(out)
	return out
}
