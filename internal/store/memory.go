package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nvandessel/cascadelab/internal/timeseries"
)

// InMemoryResultStore implements ResultStore for testing and one-off runs.
type InMemoryResultStore struct {
	mu          sync.RWMutex
	experiments map[string]*Experiment
}

// NewInMemoryResultStore creates a new in-memory store.
func NewInMemoryResultStore() *InMemoryResultStore {
	return &InMemoryResultStore{
		experiments: make(map[string]*Experiment),
	}
}

// SaveExperiment stores a copy of exp.
func (s *InMemoryResultStore) SaveExperiment(ctx context.Context, exp *Experiment) error {
	if exp.ID == "" {
		return fmt.Errorf("experiment ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.experiments[exp.ID] = copyExperiment(exp)
	return nil
}

// GetExperiment returns a copy of the stored experiment.
func (s *InMemoryResultStore) GetExperiment(ctx context.Context, id string) (*Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.experiments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyExperiment(exp), nil
}

// ListExperiments returns summaries, newest first.
func (s *InMemoryResultStore) ListExperiments(ctx context.Context, limit int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]Summary, 0, len(s.experiments))
	for _, exp := range s.experiments {
		summaries = append(summaries, summarize(exp))
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// DeleteExperiment removes an experiment.
func (s *InMemoryResultStore) DeleteExperiment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.experiments[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.experiments, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryResultStore) Close() error {
	return nil
}

func copyExperiment(exp *Experiment) *Experiment {
	c := *exp
	c.Cascade.InitialBroadcasters = append([]string(nil), exp.Cascade.InitialBroadcasters...)
	c.TimeSeries = append([]timeseries.Row(nil), exp.TimeSeries...)
	c.Reach = append([]timeseries.ReachRow(nil), exp.Reach...)
	c.Outcomes = append([]float64(nil), exp.Outcomes...)
	return &c
}
