package cascade

import (
	"sort"

	"github.com/nvandessel/cascadelab/internal/graph"
)

// Edge is a directed broadcaster -> neighbor activation.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Snapshot is the recorded outcome of one iteration.
type Snapshot struct {
	Iteration int `json:"iteration"`

	// States holds every node's state for this iteration.
	States map[string]State `json:"states"`

	// Impact maps each broadcaster to the number of neighbors it activated.
	// Broadcasters that failed their activity roll are present with 0.
	Impact map[string]int `json:"impact"`

	// ActiveEdges lists successful activations in the order they happened.
	ActiveEdges []Edge `json:"active_edges"`

	order []string
}

// Count returns how many nodes are in state s.
func (s Snapshot) Count(state State) int {
	n := 0
	for _, st := range s.States {
		if st == state {
			n++
		}
	}
	return n
}

// Broadcasters returns the broadcasting nodes in processing order. For
// snapshots not produced by the engine they are sorted by ID.
func (s Snapshot) Broadcasters() []string {
	if s.order != nil {
		return append([]string(nil), s.order...)
	}
	out := make([]string, 0, len(s.Impact))
	for id := range s.Impact {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Result is the output of one cascade run.
type Result struct {
	// Snapshots has exactly Config.Iterations entries, iteration 0 first.
	Snapshots []Snapshot `json:"snapshots"`

	// Attributes is the run's private attribute state after the last
	// iteration, amplification included. The provider is never modified.
	Attributes map[string]graph.Attributes `json:"attributes"`

	// MissingAttributes counts nodes that had no attributes and ran with
	// activity and influence 0.
	MissingAttributes int `json:"missing_attributes"`
}
