package cascade

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/cascadelab/internal/constants"
)

var (
	// ErrInvalidConfiguration is returned when a Config cannot be run.
	ErrInvalidConfiguration = errors.New("invalid cascade configuration")

	// ErrEmptyGraph is returned when the graph has no nodes to sample.
	ErrEmptyGraph = errors.New("graph has no nodes")
)

// Config holds the parameters of one cascade run. Every field is used as
// given; start from DefaultConfig to get the model constants.
type Config struct {
	// FractionInfected is the fraction of nodes seeded as initial
	// broadcasters. The count is max(1, floor(n * fraction)), capped at n.
	FractionInfected float64 `json:"fraction_infected" yaml:"fraction_infected"`

	// InfluenceProbability is the base per-edge activation probability.
	// The engine reads influence from node attributes; this value is used
	// when attributes are assigned uniformly.
	InfluenceProbability float64 `json:"influence_probability" yaml:"influence_probability"`

	// Iterations is the number of ticks to simulate, at most
	// constants.MaxIterations.
	Iterations int `json:"iterations" yaml:"iterations"`

	// Seed determines every random draw of the run.
	Seed int64 `json:"seed" yaml:"seed"`

	// PromotionProbability is the chance an activated neighbor joins the
	// next working set. Default: 0.15.
	PromotionProbability float64 `json:"promotion_probability" yaml:"promotion_probability"`

	// RetentionProbability is the chance a broadcaster stays in the next
	// working set. Default: 0.4.
	RetentionProbability float64 `json:"retention_probability" yaml:"retention_probability"`

	// AmplificationRate multiplies a newly reacting node's influence by
	// (1 + rate). Zero disables amplification. Default: 0.02.
	AmplificationRate float64 `json:"amplification_rate" yaml:"amplification_rate"`

	// InitialBroadcasters, when set, replaces the initial random sample.
	// Reseeding then samples len(InitialBroadcasters) nodes.
	InitialBroadcasters []string `json:"initial_broadcasters,omitempty" yaml:"initial_broadcasters,omitempty"`
}

// DefaultConfig returns the default cascade configuration.
func DefaultConfig() Config {
	return Config{
		FractionInfected:     constants.DefaultFractionInfected,
		InfluenceProbability: constants.DefaultInfluenceProbability,
		Iterations:           constants.DefaultIterations,
		Seed:                 constants.DefaultCascadeSeed,
		PromotionProbability: constants.PromotionProbability,
		RetentionProbability: constants.RetentionProbability,
		AmplificationRate:    constants.PreferentialAmplificationRate,
	}
}

// Validate checks the configuration independent of any graph.
func (c Config) Validate() error {
	if c.Iterations <= 0 || c.Iterations > constants.MaxIterations {
		return invalid("iterations must be between 1 and %d, got %d", constants.MaxIterations, c.Iterations)
	}
	if !finite(c.FractionInfected) || c.FractionInfected < 0 {
		return invalid("fraction_infected must be a non-negative number, got %v", c.FractionInfected)
	}
	if err := probability("influence_probability", c.InfluenceProbability); err != nil {
		return err
	}
	if err := probability("promotion_probability", c.PromotionProbability); err != nil {
		return err
	}
	if err := probability("retention_probability", c.RetentionProbability); err != nil {
		return err
	}
	if !finite(c.AmplificationRate) || c.AmplificationRate < 0 {
		return invalid("amplification_rate must be a non-negative number, got %v", c.AmplificationRate)
	}

	seen := make(map[string]bool, len(c.InitialBroadcasters))
	for _, id := range c.InitialBroadcasters {
		if seen[id] {
			return invalid("duplicate initial broadcaster %q", id)
		}
		seen[id] = true
	}
	return nil
}

// SeedCount returns the number of broadcasters sampled at start and on
// reseed for a graph of n nodes.
func (c Config) SeedCount(n int) int {
	if len(c.InitialBroadcasters) > 0 {
		return len(c.InitialBroadcasters)
	}
	k := int(math.Floor(float64(n) * c.FractionInfected))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

func probability(name string, v float64) error {
	if !finite(v) || v < 0 || v > 1 {
		return invalid("%s must be between 0 and 1, got %v", name, v)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
