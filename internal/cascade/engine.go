// Package cascade implements the broadcaster/reacting diffusion model.
//
// Each iteration, nodes in the broadcaster working set roll against their
// activity and, on success, try to activate each neighbor with probability
// influence * edge weight. Activated neighbors react for that tick and may be
// promoted into the next working set; current broadcasters are retained with
// a fixed probability. States decay to Idle between ticks, so broadcasting
// and reacting are transient roles rather than epidemic stages.
package cascade

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/nvandessel/cascadelab/internal/graph"
	"github.com/nvandessel/cascadelab/internal/logging"
)

// snapshotPrealloc caps the snapshot capacity reserved before a run starts.
const snapshotPrealloc = 1024

// Engine runs cascades. The zero value is ready to use; an Engine holds no
// per-run state and may run concurrently.
type Engine struct {
	trace *logging.TraceLogger
}

// NewEngine creates a cascade engine.
func NewEngine() *Engine {
	return &Engine{}
}

// WithTrace sets a JSONL trace logger that receives one event per
// iteration. A nil logger disables tracing.
func (e *Engine) WithTrace(t *logging.TraceLogger) *Engine {
	e.trace = t
	return e
}

// Run executes one cascade over g with a zero-value Engine.
func Run(ctx context.Context, g graph.Provider, cfg Config) (*Result, error) {
	return (&Engine{}).Run(ctx, g, cfg)
}

// Run executes one cascade over g. All randomness comes from a single
// source seeded with cfg.Seed and is consumed in node order, then
// adjacency order, so identical inputs give identical results.
//
// Configuration and graph errors are reported before any random draw.
// The provider's attributes are copied at start and never written.
func (e *Engine) Run(ctx context.Context, g graph.Provider, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nodes := g.Nodes()
	if len(nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	index := make(map[string]int, len(nodes))
	for i, id := range nodes {
		index[id] = i
	}

	var initial []int
	if len(cfg.InitialBroadcasters) > 0 {
		initial = make([]int, 0, len(cfg.InitialBroadcasters))
		for _, id := range cfg.InitialBroadcasters {
			i, ok := index[id]
			if !ok {
				return nil, invalid("initial broadcaster %q is not in the graph", id)
			}
			initial = append(initial, i)
		}
	}

	r := &run{
		cfg:       cfg,
		graph:     g,
		nodes:     nodes,
		index:     index,
		seedCount: cfg.SeedCount(len(nodes)),
		attrs:     make(map[string]graph.Attributes, len(nodes)),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
	}

	missing := 0
	for _, id := range nodes {
		a, ok := g.Attributes(id)
		if !ok {
			missing++
		}
		r.attrs[id] = a
	}

	r.working = make([]bool, len(nodes))
	if initial != nil {
		for _, i := range initial {
			r.working[i] = true
		}
	} else {
		r.sample()
	}

	result := &Result{
		Snapshots:         make([]Snapshot, 0, min(cfg.Iterations, snapshotPrealloc)),
		MissingAttributes: missing,
	}
	for it := 0; it < cfg.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, reseeded := r.step(it)
		result.Snapshots = append(result.Snapshots, snap)
		e.traceStep(snap, r.workingSize(), reseeded)
	}

	result.Attributes = r.attrs
	return result, nil
}

// run is the mutable state of one cascade.
type run struct {
	cfg       Config
	graph     graph.Provider
	nodes     []string
	index     map[string]int
	seedCount int
	attrs     map[string]graph.Attributes
	rng       *rand.Rand

	// working flags working-set membership by node index.
	working []bool
}

// sample replaces the working set with seedCount distinct nodes drawn by a
// partial Fisher-Yates shuffle.
func (r *run) sample() {
	n := len(r.nodes)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < r.seedCount; i++ {
		j := i + r.rng.Intn(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}

	for i := range r.working {
		r.working[i] = false
	}
	for _, i := range perm[:r.seedCount] {
		r.working[i] = true
	}
}

func (r *run) workingSize() int {
	n := 0
	for _, in := range r.working {
		if in {
			n++
		}
	}
	return n
}

// step simulates one iteration and advances the working set. It reports
// whether the working set had to be reseeded.
func (r *run) step(iteration int) (Snapshot, bool) {
	snap := Snapshot{
		Iteration:   iteration,
		States:      make(map[string]State, len(r.nodes)),
		Impact:      make(map[string]int),
		ActiveEdges: []Edge{},
		order:       []string{},
	}
	for _, id := range r.nodes {
		snap.States[id] = Idle
	}

	next := make([]bool, len(r.nodes))
	reacting := make([]bool, len(r.nodes))

	for i, id := range r.nodes {
		if !r.working[i] {
			continue
		}
		snap.States[id] = Broadcasting
		snap.Impact[id] = 0
		snap.order = append(snap.order, id)

		a := r.attrs[id]
		if r.rng.Float64() > a.Activity {
			continue
		}

		for _, nbr := range r.graph.Neighbors(id) {
			p := a.Influence * r.graph.EdgeWeight(id, nbr)
			if r.rng.Float64() >= p {
				continue
			}
			j, ok := r.index[nbr]
			if !ok {
				continue
			}
			reacting[j] = true
			snap.Impact[id]++
			snap.ActiveEdges = append(snap.ActiveEdges, Edge{Source: id, Target: nbr})
			if r.rng.Float64() < r.cfg.PromotionProbability {
				next[j] = true
			}
		}
	}

	for j, id := range r.nodes {
		if !reacting[j] || r.working[j] {
			continue
		}
		snap.States[id] = Reacting
		if r.cfg.AmplificationRate > 0 {
			a := r.attrs[id]
			a.Influence = amplify(a.Influence, r.cfg.AmplificationRate)
			r.attrs[id] = a
		}
	}

	for i := range r.nodes {
		if !r.working[i] {
			continue
		}
		if r.rng.Float64() < r.cfg.RetentionProbability {
			next[i] = true
		}
	}

	r.working = next
	if r.workingSize() == 0 {
		r.sample()
		return snap, true
	}
	return snap, false
}

// amplify scales influence by (1 + rate), saturating at MaxFloat64.
func amplify(influence, rate float64) float64 {
	v := influence * (1 + rate)
	if math.IsInf(v, 1) || v > math.MaxFloat64 {
		return math.MaxFloat64
	}
	return v
}

func (e *Engine) traceStep(snap Snapshot, working int, reseeded bool) {
	if e.trace == nil {
		return
	}
	edges := make([]string, 0, len(snap.ActiveEdges))
	for _, ae := range snap.ActiveEdges {
		edges = append(edges, fmt.Sprintf("%s->%s", ae.Source, ae.Target))
	}
	e.trace.Log(map[string]any{
		"event":        "iteration",
		"iteration":    snap.Iteration,
		"broadcasting": snap.Count(Broadcasting),
		"reacting":     snap.Count(Reacting),
		"active_edges": edges,
		"working_set":  working,
		"reseeded":     reseeded,
	})
}
