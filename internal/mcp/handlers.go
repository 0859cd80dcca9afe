package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/cascadelab/internal/cascade"
	"github.com/nvandessel/cascadelab/internal/constants"
	"github.com/nvandessel/cascadelab/internal/experiment"
	"github.com/nvandessel/cascadelab/internal/export"
	"github.com/nvandessel/cascadelab/internal/metrics"
	"github.com/nvandessel/cascadelab/internal/montecarlo"
	"github.com/nvandessel/cascadelab/internal/pathutil"
	"github.com/nvandessel/cascadelab/internal/ratelimit"
	"github.com/nvandessel/cascadelab/internal/store"
	"github.com/nvandessel/cascadelab/internal/timeseries"
	"github.com/nvandessel/cascadelab/internal/topology"
)

const (
	topologiesURI       = "cascadelab://topologies"
	experimentsURI      = "cascadelab://experiments"
	experimentURIPrefix = "cascadelab://experiments/"
)

// registerTools registers all cascadelab MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cascade_run",
		Description: "Run a full cascade experiment: generate a topology, compute its metrics, simulate one cascade and a Monte Carlo ensemble",
	}, s.handleCascadeRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cascade_timeseries",
		Description: "Simulate one cascade and return per-iteration response statistics and cumulative reach",
	}, s.handleCascadeTimeseries)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cascade_montecarlo",
		Description: "Estimate the distribution of final cascade reach over seeded runs",
	}, s.handleCascadeMontecarlo)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "graph_metrics",
		Description: "Compute static metrics of a preset topology (degree inequality, clustering, assortativity, components)",
	}, s.handleGraphMetrics)
}

// registerResources registers the preset listing and, with a store, the
// stored experiment resources.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         topologiesURI,
		Name:        "cascadelab-topologies",
		Description: "Preset topologies and their generator parameters.",
		MIMEType:    "text/markdown",
	}, s.handleTopologiesResource)

	if s.store == nil {
		return
	}

	s.server.AddResource(&sdk.Resource{
		URI:         experimentsURI,
		Name:        "cascadelab-experiments",
		Description: "Recently stored cascade experiments.",
		MIMEType:    "text/markdown",
	}, s.handleExperimentsResource)

	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: experimentURIPrefix + "{id}",
		Name:        "cascadelab-experiment",
		Description: "Full record of a stored experiment as JSON.",
		MIMEType:    "application/json",
	}, s.handleExperimentResource)
}

// resolveTopology applies tool parameters over the configured topology.
func (s *Server) resolveTopology(p topologyParams) (topology.Config, error) {
	tc := s.settings.Topology
	if p.Topology != "" {
		tc.Preset = p.Topology
	}
	if p.Nodes > 0 {
		tc.Nodes = p.Nodes
	}
	if p.TopologySeed != 0 {
		tc.Seed = p.TopologySeed
	}

	topo, err := tc.Resolve()
	if err != nil {
		return topo, err
	}
	topo = topo.Normalize()
	if topo.Nodes > constants.MaxTopologyNodes {
		return topo, fmt.Errorf("nodes must be at most %d, got %d", constants.MaxTopologyNodes, topo.Nodes)
	}
	if err := topo.Validate(); err != nil {
		return topo, err
	}
	return topo, nil
}

// request builds an experiment request from tool parameters, taking
// omitted values from the server settings.
func (s *Server) request(p cascadeParams, runs *int) (experiment.Request, error) {
	topo, err := s.resolveTopology(p.topologyParams)
	if err != nil {
		return experiment.Request{}, err
	}

	modeName := p.AttributeMode
	if modeName == "" {
		modeName = s.settings.Topology.AttributeMode
	}
	mode, err := topology.ParseAttributeMode(modeName)
	if err != nil {
		return experiment.Request{}, err
	}

	if p.Iterations > constants.MaxIterations {
		return experiment.Request{}, fmt.Errorf("iterations must be at most %d, got %d", constants.MaxIterations, p.Iterations)
	}
	cfg := s.settings.Cascade
	if p.Iterations > 0 {
		cfg.Iterations = p.Iterations
	}
	if p.Seed != nil {
		cfg.Seed = *p.Seed
	}
	if p.FractionInfected > 0 {
		cfg.FractionInfected = p.FractionInfected
	}
	if p.InfluenceProbability > 0 {
		cfg.InfluenceProbability = p.InfluenceProbability
	}
	if err := cfg.Validate(); err != nil {
		return experiment.Request{}, err
	}

	n := s.settings.Ensemble.Runs
	if runs != nil {
		n = *runs
	}
	if n < 0 || n > constants.MaxEnsembleRuns {
		return experiment.Request{}, fmt.Errorf("%w: runs must be between 0 and %d, got %d",
			cascade.ErrInvalidConfiguration, constants.MaxEnsembleRuns, n)
	}

	return experiment.Request{
		Topology:      topo,
		AttributeMode: mode,
		Cascade:       cfg,
		Runs:          n,
		HistogramBins: s.settings.Ensemble.HistogramBins,
	}, nil
}

// exportPath resolves a tool-supplied Arrow file name inside the export
// directory. An empty name means no export.
func (s *Server) exportPath(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	if s.exportDir == "" {
		return "", errors.New("no export directory configured, cannot write arrow files")
	}
	return pathutil.ResolveIn(s.exportDir, name)
}

// writeArrow creates path, including missing directories, and fills it
// with fn. A failed write leaves no file behind.
func writeArrow(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create arrow file: %w", err)
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write arrow file %s: %w", pathutil.RedactPath(path), err)
	}
	return f.Close()
}

func cascadeAuditParams(p cascadeParams) map[string]any {
	return map[string]any{
		"topology":              p.Topology,
		"nodes":                 p.Nodes,
		"topology_seed":         p.TopologySeed,
		"attribute_mode":        p.AttributeMode,
		"iterations":            p.Iterations,
		"seed":                  p.Seed,
		"fraction_infected":     p.FractionInfected,
		"influence_probability": p.InfluenceProbability,
	}
}

// handleCascadeRun implements the cascade_run tool.
func (s *Server) handleCascadeRun(ctx context.Context, req *sdk.CallToolRequest, args CascadeRunInput) (_ *sdk.CallToolResult, _ CascadeRunOutput, retErr error) {
	start := time.Now()
	var work int64
	defer func() {
		params := cascadeAuditParams(args.params())
		params["runs"] = args.Runs
		params["save"] = args.Save
		s.auditTool("cascade_run", start, work, retErr, params)
	}()

	expReq, err := s.request(args.params(), args.Runs)
	if err != nil {
		return nil, CascadeRunOutput{}, err
	}
	if args.Save && s.store == nil {
		return nil, CascadeRunOutput{}, errors.New("no result store configured, cannot save")
	}
	arrowPath, err := s.exportPath(args.ArrowFile)
	if err != nil {
		return nil, CascadeRunOutput{}, err
	}

	work = ratelimit.Work(expReq.Topology.Nodes, expReq.Cascade.Iterations, expReq.Runs+1)
	if err := s.toolLimiters.Check("cascade_run", work); err != nil {
		return nil, CascadeRunOutput{}, err
	}

	pipeline := &experiment.Pipeline{Workers: s.settings.Ensemble.Workers, Logger: s.logger}
	if args.Save {
		pipeline.Store = s.store
	}
	res, err := pipeline.Run(ctx, expReq)
	if err != nil {
		return nil, CascadeRunOutput{}, err
	}

	exp := res.Experiment
	if arrowPath != "" {
		if err := writeArrow(arrowPath, func(w io.Writer) error {
			return export.WriteTimeSeries(w, exp.TimeSeries, exp.Reach)
		}); err != nil {
			return nil, CascadeRunOutput{}, err
		}
	}
	return nil, CascadeRunOutput{
		ID:           exp.ID,
		Topology:     string(exp.Topology.Kind),
		Metrics:      exp.Metrics.Map(),
		TimeSeries:   exp.TimeSeries,
		Reach:        exp.Reach,
		Distribution: exp.Distribution,
		Histogram:    res.Histogram,
		Saved:        args.Save,
		ArrowPath:    arrowPath,
	}, nil
}

// handleCascadeTimeseries implements the cascade_timeseries tool.
func (s *Server) handleCascadeTimeseries(ctx context.Context, req *sdk.CallToolRequest, args CascadeTimeseriesInput) (_ *sdk.CallToolResult, _ CascadeTimeseriesOutput, retErr error) {
	start := time.Now()
	var work int64
	defer func() {
		s.auditTool("cascade_timeseries", start, work, retErr, cascadeAuditParams(args.params()))
	}()

	zero := 0
	expReq, err := s.request(args.params(), &zero)
	if err != nil {
		return nil, CascadeTimeseriesOutput{}, err
	}

	work = ratelimit.Work(expReq.Topology.Nodes, expReq.Cascade.Iterations, 1)
	if err := s.toolLimiters.Check("cascade_timeseries", work); err != nil {
		return nil, CascadeTimeseriesOutput{}, err
	}

	g, _, err := experiment.Prepare(expReq)
	if err != nil {
		return nil, CascadeTimeseriesOutput{}, err
	}
	res, err := cascade.Run(ctx, g, expReq.Cascade)
	if err != nil {
		return nil, CascadeTimeseriesOutput{}, err
	}

	return nil, CascadeTimeseriesOutput{
		Rows:              timeseries.Summarize(res.Snapshots),
		Reach:             timeseries.Reach(res.Snapshots, g.NodeCount()),
		FinalReach:        timeseries.FinalReach(res.Snapshots),
		MissingAttributes: res.MissingAttributes,
	}, nil
}

// handleCascadeMontecarlo implements the cascade_montecarlo tool.
func (s *Server) handleCascadeMontecarlo(ctx context.Context, req *sdk.CallToolRequest, args CascadeMontecarloInput) (_ *sdk.CallToolResult, _ CascadeMontecarloOutput, retErr error) {
	start := time.Now()
	var work int64
	defer func() {
		params := cascadeAuditParams(args.params())
		params["runs"] = args.Runs
		params["bins"] = args.Bins
		params["arrow_file"] = args.ArrowFile
		s.auditTool("cascade_montecarlo", start, work, retErr, params)
	}()

	expReq, err := s.request(args.params(), args.Runs)
	if err != nil {
		return nil, CascadeMontecarloOutput{}, err
	}
	if args.Bins < 0 {
		return nil, CascadeMontecarloOutput{}, fmt.Errorf("bins must be non-negative, got %d", args.Bins)
	}
	arrowPath, err := s.exportPath(args.ArrowFile)
	if err != nil {
		return nil, CascadeMontecarloOutput{}, err
	}

	work = ratelimit.Work(expReq.Topology.Nodes, expReq.Cascade.Iterations, expReq.Runs)
	if err := s.toolLimiters.Check("cascade_montecarlo", work); err != nil {
		return nil, CascadeMontecarloOutput{}, err
	}

	g, _, err := experiment.Prepare(expReq)
	if err != nil {
		return nil, CascadeMontecarloOutput{}, err
	}
	runner := &montecarlo.Runner{Workers: s.settings.Ensemble.Workers, Logger: s.logger}
	outcomes, err := runner.Estimate(ctx, g, expReq.Cascade, expReq.Runs)
	if err != nil {
		return nil, CascadeMontecarloOutput{}, err
	}

	if arrowPath != "" {
		if err := writeArrow(arrowPath, func(w io.Writer) error {
			return export.WriteOutcomes(w, outcomes, expReq.Cascade.Seed, g.NodeCount())
		}); err != nil {
			return nil, CascadeMontecarloOutput{}, err
		}
	}

	bins := args.Bins
	if bins == 0 {
		bins = expReq.HistogramBins
	}
	return nil, CascadeMontecarloOutput{
		Outcomes:     outcomes,
		Distribution: montecarlo.Summarize(outcomes),
		Histogram:    montecarlo.Histogram(outcomes, g.NodeCount(), bins),
		ArrowPath:    arrowPath,
	}, nil
}

// handleGraphMetrics implements the graph_metrics tool.
func (s *Server) handleGraphMetrics(ctx context.Context, req *sdk.CallToolRequest, args GraphMetricsInput) (_ *sdk.CallToolResult, _ GraphMetricsOutput, retErr error) {
	start := time.Now()
	var work int64
	defer func() {
		s.auditTool("graph_metrics", start, work, retErr, map[string]any{
			"topology": args.Topology, "nodes": args.Nodes, "topology_seed": args.TopologySeed, "distribution": args.Distribution,
		})
	}()

	topo, err := s.resolveTopology(topologyParams{args.Topology, args.Nodes, args.TopologySeed})
	if err != nil {
		return nil, GraphMetricsOutput{}, err
	}

	work = ratelimit.Work(topo.Nodes, 1, 1)
	if err := s.toolLimiters.Check("graph_metrics", work); err != nil {
		return nil, GraphMetricsOutput{}, err
	}

	g, err := topology.Build(topo)
	if err != nil {
		return nil, GraphMetricsOutput{}, err
	}

	components := metrics.Components(g)
	out := GraphMetricsOutput{
		Topology:   string(topo.Kind),
		Metrics:    metrics.Compute(g).Map(),
		Components: len(components),
	}
	if len(components) > 0 {
		out.LargestComponent = len(components[0])
	}
	if args.Distribution {
		out.DegreeDistribution = metrics.DegreeDistribution(g)
	}
	return nil, out, nil
}

// handleTopologiesResource lists the preset topologies.
func (s *Server) handleTopologiesResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	var sb strings.Builder
	sb.WriteString("# Preset topologies\n\n")
	sb.WriteString("| Kind | Label | Nodes | Parameters |\n|---|---|---|---|\n")
	for _, p := range topology.Presets() {
		fmt.Fprintf(&sb, "| %s | %s | %d | %s |\n", p.Config.Kind, p.Label, p.Config.Nodes, presetParams(p.Config))
	}

	return markdownResult(requestURI(req, topologiesURI), sb.String()), nil
}

func presetParams(c topology.Config) string {
	switch c.Kind {
	case topology.KindErdosRenyi:
		return fmt.Sprintf("p=%g", c.EdgeProbability)
	case topology.KindWattsStrogatz:
		return fmt.Sprintf("k=%d, p=%g", c.Neighbors, c.RewireProbability)
	case topology.KindBarabasiAlbert:
		return fmt.Sprintf("m=%d", c.Attachments)
	case topology.KindHolmeKim:
		return fmt.Sprintf("m=%d, p=%g", c.Attachments, c.TriangleProbability)
	}
	return ""
}

// handleExperimentsResource lists recent stored experiments.
func (s *Server) handleExperimentsResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	summaries, err := s.store.ListExperiments(ctx, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# Stored experiments\n\n")
	if len(summaries) == 0 {
		sb.WriteString("No experiments stored yet. Run cascade_run with save=true.\n")
		return markdownResult(requestURI(req, experimentsURI), sb.String()), nil
	}
	sb.WriteString("| ID | Created | Topology | Nodes | Runs | Final reach | Mean reach |\n|---|---|---|---|---|---|---|\n")
	for _, sum := range summaries {
		fmt.Fprintf(&sb, "| %s | %s | %s | %d | %d | %d | %.1f |\n",
			sum.ID, sum.CreatedAt.Format(time.RFC3339), sum.Topology, sum.Nodes, sum.Runs, sum.FinalReach, sum.MeanReach)
	}
	return markdownResult(requestURI(req, experimentsURI), sb.String()), nil
}

// handleExperimentResource returns one stored experiment as JSON.
func (s *Server) handleExperimentResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := requestURI(req, "")
	if !strings.HasPrefix(uri, experimentURIPrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id := strings.TrimPrefix(uri, experimentURIPrefix)
	if id == "" {
		return nil, fmt.Errorf("experiment ID is required")
	}

	exp, err := s.store.GetExperiment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("experiment not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load experiment: %w", err)
	}

	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode experiment: %w", err)
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{URI: uri, MIMEType: "application/json", Text: string(data)},
		},
	}, nil
}

func markdownResult(uri, text string) *sdk.ReadResourceResult {
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{URI: uri, MIMEType: "text/markdown", Text: text},
		},
	}
}

// requestURI returns the requested URI, or fallback when none was sent.
func requestURI(req *sdk.ReadResourceRequest, fallback string) string {
	if req == nil || req.Params == nil || req.Params.URI == "" {
		return fallback
	}
	return req.Params.URI
}
