package cascade

import "fmt"

// State is a node's recorded role in one iteration.
type State int

const (
	// Idle nodes neither broadcast nor react this iteration.
	Idle State = iota
	// Broadcasting nodes were in the working set this iteration.
	Broadcasting
	// Reacting nodes were activated by a broadcaster but are not broadcasting.
	Reacting
)

// String returns a string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Broadcasting:
		return "broadcasting"
	case Reacting:
		return "reacting"
	default:
		return "unknown"
	}
}

// Reached reports whether the node took part in the cascade this iteration.
func (s State) Reached() bool {
	return s == Broadcasting || s == Reacting
}

// MarshalText encodes the state by name so JSON maps read naturally.
func (s State) MarshalText() ([]byte, error) {
	switch s {
	case Idle, Broadcasting, Reacting:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("invalid state: %d", int(s))
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = Idle
	case "broadcasting":
		*s = Broadcasting
	case "reacting":
		*s = Reacting
	default:
		return fmt.Errorf("invalid state: %q", string(text))
	}
	return nil
}
