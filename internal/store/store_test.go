package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nvandessel/cascadelab/internal/cascade"
	"github.com/nvandessel/cascadelab/internal/metrics"
	"github.com/nvandessel/cascadelab/internal/montecarlo"
	"github.com/nvandessel/cascadelab/internal/timeseries"
	"github.com/nvandessel/cascadelab/internal/topology"
)

func sampleExperiment(id string, created time.Time) *Experiment {
	outcomes := []float64{12, 30, 18}
	return &Experiment{
		ID:            id,
		CreatedAt:     created,
		Topology:      topology.Config{Kind: topology.KindBarabasiAlbert, Nodes: 100, Seed: 25, Attachments: 3},
		AttributeMode: "degree",
		Cascade:       cascade.DefaultConfig(),
		Runs:          len(outcomes),
		Metrics: metrics.Metrics{
			Nodes: 100, Edges: 291, AvgDegree: 5.82, MaxDegree: 31,
			DegreeGini: 0.35, TopEdgeShare: 0.05, AvgClustering: 0.1, Assortativity: math.NaN(),
		},
		TimeSeries: []timeseries.Row{
			{Iteration: 0, Broadcasters: 1, MeanResponses: 2, MaxResponses: 2, TotalResponses: 2},
			{Iteration: 1, Broadcasters: 2, MeanResponses: 1.5, MaxResponses: 2, StdResponses: 0.5, TotalResponses: 3},
		},
		Reach: []timeseries.ReachRow{
			{Iteration: 0, TotalReached: 3, ProportionReached: 0.03, NewlyReached: 3},
			{Iteration: 1, TotalReached: 6, ProportionReached: 0.06, NewlyReached: 3},
		},
		Outcomes:     outcomes,
		Distribution: montecarlo.Summarize(outcomes),
	}
}

// stores returns a fresh instance of each implementation.
func stores(t *testing.T) map[string]ResultStore {
	t.Helper()
	sqlite, err := NewSQLiteResultStore(filepath.Join(t.TempDir(), "nested", DBFileName))
	if err != nil {
		t.Fatalf("NewSQLiteResultStore() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]ResultStore{
		"sqlite": sqlite,
		"memory": NewInMemoryResultStore(),
	}
}

func TestResultStore_SaveGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
			exp := sampleExperiment("exp-1", created)

			if err := s.SaveExperiment(ctx, exp); err != nil {
				t.Fatalf("SaveExperiment() error = %v", err)
			}

			got, err := s.GetExperiment(ctx, "exp-1")
			if err != nil {
				t.Fatalf("GetExperiment() error = %v", err)
			}

			if !got.CreatedAt.Equal(created) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
			}
			if got.Topology != exp.Topology {
				t.Errorf("Topology = %+v, want %+v", got.Topology, exp.Topology)
			}
			if !reflect.DeepEqual(got.Cascade, exp.Cascade) {
				t.Errorf("Cascade = %+v, want %+v", got.Cascade, exp.Cascade)
			}
			if !reflect.DeepEqual(got.TimeSeries, exp.TimeSeries) {
				t.Errorf("TimeSeries = %+v, want %+v", got.TimeSeries, exp.TimeSeries)
			}
			if !reflect.DeepEqual(got.Reach, exp.Reach) {
				t.Errorf("Reach = %+v, want %+v", got.Reach, exp.Reach)
			}
			if !reflect.DeepEqual(got.Outcomes, exp.Outcomes) {
				t.Errorf("Outcomes = %v, want %v", got.Outcomes, exp.Outcomes)
			}
			if got.Distribution != exp.Distribution {
				t.Errorf("Distribution = %+v, want %+v", got.Distribution, exp.Distribution)
			}

			if got.Metrics.Edges != 291 || got.Metrics.AvgDegree != 5.82 {
				t.Errorf("Metrics = %+v", got.Metrics)
			}
			if !math.IsNaN(got.Metrics.Assortativity) {
				t.Errorf("Assortativity = %v, want NaN", got.Metrics.Assortativity)
			}
		})
	}
}

func TestResultStore_SaveReplaces(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exp := sampleExperiment("exp-1", time.Now())
			if err := s.SaveExperiment(ctx, exp); err != nil {
				t.Fatal(err)
			}

			exp.Outcomes = []float64{1}
			exp.TimeSeries = exp.TimeSeries[:1]
			exp.Reach = exp.Reach[:1]
			if err := s.SaveExperiment(ctx, exp); err != nil {
				t.Fatalf("second SaveExperiment() error = %v", err)
			}

			got, err := s.GetExperiment(ctx, "exp-1")
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Outcomes) != 1 || len(got.TimeSeries) != 1 {
				t.Errorf("replacement kept old rows: %d outcomes, %d rows", len(got.Outcomes), len(got.TimeSeries))
			}
		})
	}
}

func TestResultStore_NotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := s.GetExperiment(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetExperiment() error = %v, want ErrNotFound", err)
			}
			if err := s.DeleteExperiment(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("DeleteExperiment() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestResultStore_RequiresID(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.SaveExperiment(context.Background(), sampleExperiment("", time.Now())); err == nil {
				t.Error("expected error for empty ID")
			}
		})
	}
}

func TestResultStore_ListAndDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			for i, id := range []string{"old", "mid", "new"} {
				if err := s.SaveExperiment(ctx, sampleExperiment(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
					t.Fatal(err)
				}
			}

			all, err := s.ListExperiments(ctx, 0)
			if err != nil {
				t.Fatalf("ListExperiments() error = %v", err)
			}
			ids := make([]string, 0, len(all))
			for _, sum := range all {
				ids = append(ids, sum.ID)
			}
			if !reflect.DeepEqual(ids, []string{"new", "mid", "old"}) {
				t.Errorf("order = %v, want newest first", ids)
			}

			first := all[0]
			if first.Topology != topology.KindBarabasiAlbert || first.Nodes != 100 || first.Runs != 3 {
				t.Errorf("summary = %+v", first)
			}
			if first.FinalReach != 6 {
				t.Errorf("FinalReach = %d, want 6", first.FinalReach)
			}
			if first.MeanReach != 20 {
				t.Errorf("MeanReach = %f, want 20", first.MeanReach)
			}

			limited, err := s.ListExperiments(ctx, 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(limited) != 2 {
				t.Errorf("limit 2 returned %d", len(limited))
			}

			if err := s.DeleteExperiment(ctx, "mid"); err != nil {
				t.Fatalf("DeleteExperiment() error = %v", err)
			}
			remaining, _ := s.ListExperiments(ctx, 0)
			if len(remaining) != 2 {
				t.Errorf("after delete: %d experiments, want 2", len(remaining))
			}
		})
	}
}

func TestResultStore_ConcurrentSaves(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			errs := make(chan error, 8)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					id := string(rune('a' + i))
					if err := s.SaveExperiment(ctx, sampleExperiment(id, time.Now())); err != nil {
						errs <- err
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Errorf("concurrent save: %v", err)
			}

			all, err := s.ListExperiments(ctx, 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 8 {
				t.Errorf("got %d experiments, want 8", len(all))
			}
		})
	}
}

func TestInMemoryResultStore_ReturnsCopies(t *testing.T) {
	s := NewInMemoryResultStore()
	ctx := context.Background()
	exp := sampleExperiment("exp-1", time.Now())
	if err := s.SaveExperiment(ctx, exp); err != nil {
		t.Fatal(err)
	}

	exp.Outcomes[0] = 999
	got, _ := s.GetExperiment(ctx, "exp-1")
	if got.Outcomes[0] == 999 {
		t.Error("store shares outcome slice with caller")
	}

	got.TimeSeries[0].Broadcasters = 42
	again, _ := s.GetExperiment(ctx, "exp-1")
	if again.TimeSeries[0].Broadcasters == 42 {
		t.Error("store shares timeseries slice with reader")
	}
}

func TestSQLiteResultStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), DBFileName)
	ctx := context.Background()

	s, err := NewSQLiteResultStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveExperiment(ctx, sampleExperiment("persisted", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteResultStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	if reopened.Path() != path {
		t.Errorf("Path() = %s, want %s", reopened.Path(), path)
	}
	if _, err := reopened.GetExperiment(ctx, "persisted"); err != nil {
		t.Errorf("GetExperiment after reopen: %v", err)
	}
}
