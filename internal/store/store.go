// Package store defines the ResultStore interface for persisting cascade
// experiments and provides SQLite and in-memory implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/cascadelab/internal/cascade"
	"github.com/nvandessel/cascadelab/internal/metrics"
	"github.com/nvandessel/cascadelab/internal/montecarlo"
	"github.com/nvandessel/cascadelab/internal/timeseries"
	"github.com/nvandessel/cascadelab/internal/topology"
)

// ErrNotFound is returned when an experiment ID is unknown.
var ErrNotFound = errors.New("experiment not found")

// Experiment is the full record of one pipeline run.
type Experiment struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Topology      topology.Config `json:"topology"`
	AttributeMode string          `json:"attribute_mode"`
	Cascade       cascade.Config  `json:"cascade"`
	Runs          int             `json:"runs"`

	Metrics    metrics.Metrics       `json:"metrics"`
	TimeSeries []timeseries.Row      `json:"timeseries"`
	Reach      []timeseries.ReachRow `json:"reach"`
	Outcomes   []float64             `json:"outcomes"`

	// Distribution is derived from Outcomes and not stored separately.
	Distribution montecarlo.Distribution `json:"distribution"`
}

// Summary is the listing view of an experiment.
type Summary struct {
	ID         string        `json:"id"`
	CreatedAt  time.Time     `json:"created_at"`
	Topology   topology.Kind `json:"topology"`
	Nodes      int           `json:"nodes"`
	Iterations int           `json:"iterations"`
	Runs       int           `json:"runs"`
	FinalReach int           `json:"final_reach"`
	MeanReach  float64       `json:"mean_reach"`
}

// ResultStore persists experiments.
type ResultStore interface {
	// SaveExperiment stores exp, replacing any experiment with the same ID.
	SaveExperiment(ctx context.Context, exp *Experiment) error

	// GetExperiment returns the experiment or ErrNotFound.
	GetExperiment(ctx context.Context, id string) (*Experiment, error)

	// ListExperiments returns summaries, newest first. limit <= 0 means all.
	ListExperiments(ctx context.Context, limit int) ([]Summary, error)

	// DeleteExperiment removes an experiment. Unknown IDs return ErrNotFound.
	DeleteExperiment(ctx context.Context, id string) error

	Close() error
}

func summarize(exp *Experiment) Summary {
	s := Summary{
		ID:         exp.ID,
		CreatedAt:  exp.CreatedAt,
		Topology:   exp.Topology.Kind,
		Nodes:      exp.Topology.Nodes,
		Iterations: exp.Cascade.Iterations,
		Runs:       exp.Runs,
		MeanReach:  exp.Distribution.Mean,
	}
	if n := len(exp.Reach); n > 0 {
		s.FinalReach = exp.Reach[n-1].TotalReached
	}
	return s
}
