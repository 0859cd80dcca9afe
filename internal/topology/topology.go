// Package topology builds random graphs for cascade experiments: Erdos-Renyi,
// Watts-Strogatz, Barabasi-Albert and Holme-Kim (power-law cluster) families.
// Generation is deterministic for a given Config.
package topology

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/nvandessel/cascadelab/internal/constants"
	"github.com/nvandessel/cascadelab/internal/graph"
)

// Kind identifies a random-graph family.
type Kind string

const (
	KindErdosRenyi     Kind = "ER"
	KindWattsStrogatz  Kind = "WS"
	KindBarabasiAlbert Kind = "BA"
	KindHolmeKim       Kind = "HK"
)

// Config describes a topology to generate. Only the parameters relevant to
// Kind are used.
type Config struct {
	Kind  Kind  `json:"kind" yaml:"kind"`
	Nodes int   `json:"nodes" yaml:"nodes"`
	Seed  int64 `json:"seed" yaml:"seed"`

	// EdgeProbability is the Erdos-Renyi edge probability.
	EdgeProbability float64 `json:"edge_probability" yaml:"edge_probability"`

	// Directed makes Erdos-Renyi graphs directed.
	Directed bool `json:"directed" yaml:"directed"`

	// Neighbors is the Watts-Strogatz ring degree k (rounded up to even).
	Neighbors int `json:"neighbors" yaml:"neighbors"`

	// RewireProbability is the Watts-Strogatz rewiring probability.
	RewireProbability float64 `json:"rewire_probability" yaml:"rewire_probability"`

	// Attachments is the number of edges each new node brings (BA and HK).
	Attachments int `json:"attachments" yaml:"attachments"`

	// TriangleProbability is the Holme-Kim triad formation probability.
	TriangleProbability float64 `json:"triangle_probability" yaml:"triangle_probability"`
}

// Preset is a named default topology.
type Preset struct {
	Label  string
	Config Config
}

// Presets returns the default topologies, one per family, in display order.
func Presets() []Preset {
	n := constants.DefaultTopologyNodes
	seed := int64(constants.DefaultTopologySeed)
	return []Preset{
		{Label: "Erdos-Renyi", Config: Config{Kind: KindErdosRenyi, Nodes: n, Seed: seed, EdgeProbability: 0.004}},
		{Label: "Watts-Strogatz", Config: Config{Kind: KindWattsStrogatz, Nodes: n, Seed: seed, Neighbors: 12, RewireProbability: 0.12}},
		{Label: "Barabasi-Albert", Config: Config{Kind: KindBarabasiAlbert, Nodes: n, Seed: seed, Attachments: 3}},
		{Label: "Holme-Kim", Config: Config{Kind: KindHolmeKim, Nodes: n, Seed: seed, Attachments: 3, TriangleProbability: 0.3}},
	}
}

// Lookup finds a preset by label ("Barabasi-Albert") or kind ("BA"),
// case-insensitively.
func Lookup(name string) (Config, bool) {
	for _, p := range Presets() {
		if strings.EqualFold(p.Label, name) || strings.EqualFold(string(p.Config.Kind), name) {
			return p.Config, true
		}
	}
	return Config{}, false
}

// Normalize applies the parameter clamps each family needs to be well formed
// for the node count: WS degree even and within [2, n-1], BA/HK attachments
// within [1, n-1].
func (c Config) Normalize() Config {
	switch c.Kind {
	case KindWattsStrogatz:
		k := c.Neighbors
		if k%2 == 1 {
			k++
		}
		c.Neighbors = clamp(k, 2, c.Nodes-1)
	case KindBarabasiAlbert, KindHolmeKim:
		c.Attachments = clamp(c.Attachments, 1, c.Nodes-1)
	}
	return c
}

// Validate checks that the configuration can be generated.
func (c Config) Validate() error {
	if c.Nodes <= 0 {
		return fmt.Errorf("nodes must be positive, got %d", c.Nodes)
	}
	switch c.Kind {
	case KindErdosRenyi:
		if c.EdgeProbability < 0 || c.EdgeProbability > 1 {
			return fmt.Errorf("edge_probability must be between 0 and 1, got %f", c.EdgeProbability)
		}
	case KindWattsStrogatz:
		if c.Nodes < 3 {
			return fmt.Errorf("watts-strogatz needs at least 3 nodes, got %d", c.Nodes)
		}
		if c.RewireProbability < 0 || c.RewireProbability > 1 {
			return fmt.Errorf("rewire_probability must be between 0 and 1, got %f", c.RewireProbability)
		}
	case KindBarabasiAlbert:
		if c.Nodes < 2 {
			return fmt.Errorf("barabasi-albert needs at least 2 nodes, got %d", c.Nodes)
		}
	case KindHolmeKim:
		if c.Nodes < 2 {
			return fmt.Errorf("holme-kim needs at least 2 nodes, got %d", c.Nodes)
		}
		if c.TriangleProbability < 0 || c.TriangleProbability > 1 {
			return fmt.Errorf("triangle_probability must be between 0 and 1, got %f", c.TriangleProbability)
		}
	default:
		return fmt.Errorf("unknown topology: %q (valid: ER, WS, BA, HK)", c.Kind)
	}
	return nil
}

// Build generates the graph described by cfg after normalizing it.
// Nodes are named "0".."n-1" and inserted in numeric order.
func Build(cfg Config) (*graph.Graph, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	b := newBuilder(cfg.Nodes, cfg.Kind == KindErdosRenyi && cfg.Directed)

	switch cfg.Kind {
	case KindErdosRenyi:
		erdosRenyi(b, cfg.EdgeProbability, rng)
	case KindWattsStrogatz:
		wattsStrogatz(b, cfg.Neighbors, cfg.RewireProbability, rng)
	case KindBarabasiAlbert:
		barabasiAlbert(b, cfg.Attachments, rng)
	case KindHolmeKim:
		holmeKim(b, cfg.Attachments, cfg.TriangleProbability, rng)
	}

	return b.graph()
}

func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// builder accumulates an integer-labelled edge set before it is turned into
// a graph.Graph. Neighbor sets are kept sorted so traversal during
// generation is deterministic.
type builder struct {
	n        int
	directed bool
	adj      []map[int]bool
	edges    [][2]int
}

func newBuilder(n int, directed bool) *builder {
	adj := make([]map[int]bool, n)
	for i := range adj {
		adj[i] = make(map[int]bool)
	}
	return &builder{n: n, directed: directed, adj: adj}
}

func (b *builder) has(u, v int) bool {
	return b.adj[u][v]
}

func (b *builder) add(u, v int) {
	if u == v || b.has(u, v) {
		return
	}
	b.adj[u][v] = true
	if !b.directed {
		b.adj[v][u] = true
	}
	b.edges = append(b.edges, [2]int{u, v})
}

// remove drops u-v. The stale entry in edges is skipped by graph().
func (b *builder) remove(u, v int) {
	delete(b.adj[u], v)
	if !b.directed {
		delete(b.adj[v], u)
	}
}

func (b *builder) degree(u int) int {
	return len(b.adj[u])
}

func (b *builder) neighbors(u int) []int {
	out := make([]int, 0, len(b.adj[u]))
	for v := range b.adj[u] {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func (b *builder) graph() (*graph.Graph, error) {
	g := graph.New(b.directed)
	for i := 0; i < b.n; i++ {
		if err := g.AddNode(nodeID(i)); err != nil {
			return nil, err
		}
	}
	for _, e := range b.edges {
		if !b.has(e[0], e[1]) {
			continue
		}
		if err := g.Connect(nodeID(e[0]), nodeID(e[1])); err != nil {
			return nil, fmt.Errorf("building graph: %w", err)
		}
	}
	return g, nil
}

func nodeID(i int) string {
	return strconv.Itoa(i)
}
