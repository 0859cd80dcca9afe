// Package timeseries turns cascade snapshots into per-iteration statistics.
package timeseries

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/nvandessel/cascadelab/internal/cascade"
)

// Row is the response statistics of one iteration. Broadcasters counts
// every node in the impact map, including those whose activity roll failed.
type Row struct {
	Iteration      int     `json:"iteration"`
	Broadcasters   int     `json:"broadcasters"`
	MeanResponses  float64 `json:"mean_responses"`
	MaxResponses   float64 `json:"max_responses"`
	StdResponses   float64 `json:"std_responses"`
	TotalResponses int     `json:"total_responses"`
}

// ReachRow tracks cumulative reach after an iteration.
type ReachRow struct {
	Iteration         int     `json:"iteration"`
	TotalReached      int     `json:"total_reached"`
	ProportionReached float64 `json:"proportion_reached"`
	NewlyReached      int     `json:"newly_reached"`
}

// Summarize returns one Row per snapshot, index-aligned. Each row depends
// only on its own snapshot; an empty impact map yields zero statistics.
func Summarize(snapshots []cascade.Snapshot) []Row {
	rows := make([]Row, len(snapshots))
	for i, s := range snapshots {
		rows[i] = summarizeOne(s)
	}
	return rows
}

func summarizeOne(s cascade.Snapshot) Row {
	row := Row{Iteration: s.Iteration}
	if len(s.Impact) == 0 {
		return row
	}

	values := make([]float64, 0, len(s.Impact))
	for _, id := range s.Broadcasters() {
		values = append(values, float64(s.Impact[id]))
	}

	row.Broadcasters = len(values)
	row.MeanResponses = stat.Mean(values, nil)
	row.MaxResponses = floats.Max(values)
	row.TotalResponses = int(floats.Sum(values))
	if len(values) > 1 {
		row.StdResponses = stat.PopStdDev(values, nil)
	}
	if math.IsNaN(row.StdResponses) {
		row.StdResponses = 0
	}
	return row
}

// Reach returns the cumulative count of distinct nodes that have been
// broadcasting or reacting, after each snapshot. Proportions divide by
// max(1, nodeCount).
func Reach(snapshots []cascade.Snapshot, nodeCount int) []ReachRow {
	denom := nodeCount
	if denom < 1 {
		denom = 1
	}

	seen := make(map[string]bool)
	rows := make([]ReachRow, len(snapshots))
	prev := 0
	for i, s := range snapshots {
		for id, st := range s.States {
			if st.Reached() {
				seen[id] = true
			}
		}
		total := len(seen)
		rows[i] = ReachRow{
			Iteration:         s.Iteration,
			TotalReached:      total,
			ProportionReached: float64(total) / float64(denom),
			NewlyReached:      total - prev,
		}
		prev = total
	}
	return rows
}

// FinalReach returns the number of distinct nodes reached over all snapshots.
func FinalReach(snapshots []cascade.Snapshot) int {
	seen := make(map[string]bool)
	for _, s := range snapshots {
		for id, st := range s.States {
			if st.Reached() {
				seen[id] = true
			}
		}
	}
	return len(seen)
}
