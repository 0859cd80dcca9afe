// Package experiment wires topology generation, attribute assignment, static
// metrics, a single cascade run and a Monte Carlo ensemble into one pipeline,
// optionally persisting the outcome to a result store.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/cascadelab/internal/cascade"
	"github.com/nvandessel/cascadelab/internal/graph"
	"github.com/nvandessel/cascadelab/internal/logging"
	"github.com/nvandessel/cascadelab/internal/metrics"
	"github.com/nvandessel/cascadelab/internal/montecarlo"
	"github.com/nvandessel/cascadelab/internal/store"
	"github.com/nvandessel/cascadelab/internal/timeseries"
	"github.com/nvandessel/cascadelab/internal/topology"
)

// Request describes one experiment.
type Request struct {
	// Topology is generated when Graph is nil.
	Topology topology.Config

	// Graph, when set, is used instead of generating one. It is cloned, so
	// attribute assignment never touches the caller's graph.
	Graph *graph.Graph

	// AttributeMode selects how activity and influence are assigned.
	AttributeMode topology.AttributeMode

	// KeepAttributes skips attribute assignment for a supplied Graph.
	KeepAttributes bool

	Cascade cascade.Config

	// Runs is the ensemble size. Zero skips the ensemble.
	Runs int

	// HistogramBins is the reach histogram resolution. Zero uses the default.
	HistogramBins int
}

// Result is a finished experiment.
type Result struct {
	Experiment *store.Experiment
	Graph      *graph.Graph
	Run        *cascade.Result
	Histogram  []montecarlo.Bin
}

// Pipeline runs experiments. The zero value runs without tracing,
// logging or persistence.
type Pipeline struct {
	// Engine runs the single detailed cascade. Nil means a plain engine.
	// Ensemble members always use a plain engine so a trace holds one run.
	Engine *cascade.Engine

	// Workers bounds concurrent ensemble runs.
	Workers int

	Logger *slog.Logger

	// Store, when set, receives every finished experiment.
	Store store.ResultStore

	now   func() time.Time
	newID func() string
}

// Prepare returns the graph a request runs on, with attributes assigned,
// and the topology description recorded for it.
func Prepare(req Request) (*graph.Graph, topology.Config, error) {
	var (
		g    *graph.Graph
		topo topology.Config
		err  error
	)
	if req.Graph != nil {
		g = req.Graph.Clone()
		topo = topology.Config{Nodes: g.NodeCount(), Directed: g.Directed()}
	} else {
		topo = req.Topology.Normalize()
		if g, err = topology.Build(topo); err != nil {
			return nil, topo, fmt.Errorf("building topology: %w", err)
		}
	}

	if req.Graph == nil || !req.KeepAttributes {
		mode := req.AttributeMode
		if mode == "" {
			mode = topology.AttributesDegree
		}
		if err := topology.AssignAttributes(g, mode, req.Cascade.InfluenceProbability); err != nil {
			return nil, topo, err
		}
	}
	return g, topo, nil
}

// Run executes the full pipeline: prepare the graph, compute its metrics,
// run one cascade with the request seed, then the ensemble.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	g, topo, err := Prepare(req)
	if err != nil {
		return nil, err
	}
	logger.Debug("graph ready", "kind", topo.Kind, "nodes", g.NodeCount(), "edges", g.EdgeCount())

	engine := p.Engine
	if engine == nil {
		engine = cascade.NewEngine()
	}
	run, err := engine.Run(ctx, g, req.Cascade)
	if err != nil {
		return nil, err
	}
	if run.MissingAttributes > 0 {
		logger.Warn("nodes without attributes defaulted to zero", "count", run.MissingAttributes)
	}

	runner := &montecarlo.Runner{Workers: p.Workers, Logger: logger}
	outcomes, err := runner.Estimate(ctx, g, req.Cascade, req.Runs)
	if err != nil {
		return nil, err
	}

	mode := req.AttributeMode
	if req.Graph != nil && req.KeepAttributes {
		mode = ""
	} else if mode == "" {
		mode = topology.AttributesDegree
	}

	exp := &store.Experiment{
		ID:            p.id(),
		CreatedAt:     p.clock(),
		Topology:      topo,
		AttributeMode: string(mode),
		Cascade:       req.Cascade,
		Runs:          req.Runs,
		Metrics:       metrics.Compute(g),
		TimeSeries:    timeseries.Summarize(run.Snapshots),
		Reach:         timeseries.Reach(run.Snapshots, g.NodeCount()),
		Outcomes:      outcomes,
		Distribution:  montecarlo.Summarize(outcomes),
	}
	logger.Info("experiment complete",
		"id", exp.ID,
		"final_reach", timeseries.FinalReach(run.Snapshots),
		"runs", req.Runs,
		"mean_reach", exp.Distribution.Mean)

	if p.Store != nil {
		if err := p.Store.SaveExperiment(ctx, exp); err != nil {
			return nil, fmt.Errorf("saving experiment: %w", err)
		}
	}

	return &Result{
		Experiment: exp,
		Graph:      g,
		Run:        run,
		Histogram:  montecarlo.Histogram(outcomes, g.NodeCount(), req.HistogramBins),
	}, nil
}

func (p *Pipeline) id() string {
	if p.newID != nil {
		return p.newID()
	}
	return uuid.NewString()
}

func (p *Pipeline) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now().UTC()
}
