package experiment

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nvandessel/cascadelab/internal/cascade"
	"github.com/nvandessel/cascadelab/internal/graph"
	"github.com/nvandessel/cascadelab/internal/store"
	"github.com/nvandessel/cascadelab/internal/topology"
)

func smallRequest() Request {
	cfg := cascade.DefaultConfig()
	cfg.Iterations = 15
	return Request{
		Topology: topology.Config{Kind: topology.KindBarabasiAlbert, Nodes: 150, Seed: 25, Attachments: 3},
		Cascade:  cfg,
		Runs:     6,
	}
}

func fixedPipeline(s store.ResultStore) *Pipeline {
	return &Pipeline{
		Store: s,
		now:   func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) },
		newID: func() string { return "exp-fixed" },
	}
}

func TestPipelineRun(t *testing.T) {
	s := store.NewInMemoryResultStore()
	res, err := fixedPipeline(s).Run(context.Background(), smallRequest())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	exp := res.Experiment
	if exp.ID != "exp-fixed" {
		t.Errorf("ID = %s", exp.ID)
	}
	if exp.AttributeMode != "degree" {
		t.Errorf("AttributeMode = %q, want degree", exp.AttributeMode)
	}
	if len(exp.TimeSeries) != 15 || len(exp.Reach) != 15 {
		t.Errorf("got %d rows and %d reach rows, want 15", len(exp.TimeSeries), len(exp.Reach))
	}
	if len(exp.Outcomes) != 6 || exp.Distribution.Runs != 6 {
		t.Errorf("outcomes = %v, distribution = %+v", exp.Outcomes, exp.Distribution)
	}
	if exp.Metrics.Nodes != 150 {
		t.Errorf("Metrics.Nodes = %d", exp.Metrics.Nodes)
	}
	if len(res.Histogram) == 0 {
		t.Error("expected a histogram")
	}
	if res.Graph.NodeCount() != 150 || len(res.Run.Snapshots) != 15 {
		t.Errorf("graph %d nodes, run %d snapshots", res.Graph.NodeCount(), len(res.Run.Snapshots))
	}

	saved, err := s.GetExperiment(context.Background(), "exp-fixed")
	if err != nil {
		t.Fatalf("experiment not saved: %v", err)
	}
	if !reflect.DeepEqual(saved.Outcomes, exp.Outcomes) {
		t.Errorf("saved outcomes = %v, want %v", saved.Outcomes, exp.Outcomes)
	}
}

func TestPipelineRun_Deterministic(t *testing.T) {
	ctx := context.Background()
	a, err := fixedPipeline(nil).Run(ctx, smallRequest())
	if err != nil {
		t.Fatal(err)
	}
	p := fixedPipeline(nil)
	p.Workers = 1
	b, err := p.Run(ctx, smallRequest())
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(a.Experiment.TimeSeries, b.Experiment.TimeSeries) {
		t.Error("time series differ between identical requests")
	}
	if !reflect.DeepEqual(a.Experiment.Outcomes, b.Experiment.Outcomes) {
		t.Errorf("outcomes differ: %v vs %v", a.Experiment.Outcomes, b.Experiment.Outcomes)
	}
}

func TestPipelineRun_ZeroRuns(t *testing.T) {
	req := smallRequest()
	req.Runs = 0
	res, err := fixedPipeline(nil).Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Experiment.Outcomes == nil || len(res.Experiment.Outcomes) != 0 {
		t.Errorf("Outcomes = %v, want empty non-nil", res.Experiment.Outcomes)
	}
	if len(res.Histogram) != 0 {
		t.Errorf("Histogram = %v, want empty", res.Histogram)
	}
}

func TestPipelineRun_Errors(t *testing.T) {
	ctx := context.Background()

	req := smallRequest()
	req.Cascade.Iterations = 0
	if _, err := fixedPipeline(nil).Run(ctx, req); !errors.Is(err, cascade.ErrInvalidConfiguration) {
		t.Errorf("zero iterations: error = %v, want ErrInvalidConfiguration", err)
	}

	req = smallRequest()
	req.Topology.Kind = "lattice"
	if _, err := fixedPipeline(nil).Run(ctx, req); err == nil {
		t.Error("unknown topology should fail")
	}

	req = smallRequest()
	req.Runs = -1
	if _, err := fixedPipeline(nil).Run(ctx, req); !errors.Is(err, cascade.ErrInvalidConfiguration) {
		t.Errorf("negative runs: error = %v, want ErrInvalidConfiguration", err)
	}

	req = smallRequest()
	req.AttributeMode = "random"
	if _, err := fixedPipeline(nil).Run(ctx, req); err == nil {
		t.Error("unknown attribute mode should fail")
	}
}

func TestPipelineRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fixedPipeline(nil).Run(ctx, smallRequest()); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func pathGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(false)
	for _, e := range [][2]string{{"A", "B"}, {"B", "C"}} {
		if err := g.AddEdge(e[0], e[1], 1); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestPrepare_SuppliedGraphIsCloned(t *testing.T) {
	g := pathGraph(t)

	prepared, topo, err := Prepare(Request{Graph: g, AttributeMode: topology.AttributesUniform, Cascade: cascade.DefaultConfig()})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if topo.Nodes != 3 {
		t.Errorf("topology nodes = %d, want 3", topo.Nodes)
	}
	if _, ok := g.Attributes("A"); ok {
		t.Error("caller's graph received attributes")
	}
	attrs, ok := prepared.Attributes("A")
	if !ok || attrs.Activity != 1 {
		t.Errorf("prepared attributes = %+v, %v", attrs, ok)
	}
}

func TestPrepare_KeepAttributes(t *testing.T) {
	g := pathGraph(t)
	if err := g.SetAttributes("A", graph.Attributes{Activity: 0.5, Influence: 0.25}); err != nil {
		t.Fatal(err)
	}

	prepared, _, err := Prepare(Request{Graph: g, KeepAttributes: true, Cascade: cascade.DefaultConfig()})
	if err != nil {
		t.Fatal(err)
	}
	attrs, _ := prepared.Attributes("A")
	if attrs.Activity != 0.5 || attrs.Influence != 0.25 {
		t.Errorf("attributes = %+v, want file values", attrs)
	}
	if _, ok := prepared.Attributes("B"); ok {
		t.Error("B should stay without attributes")
	}
}
