// Package config provides unified configuration loading for cascadelab.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/cascadelab/internal/cascade"
	"github.com/nvandessel/cascadelab/internal/constants"
	"github.com/nvandessel/cascadelab/internal/topology"
	"gopkg.in/yaml.v3"
)

// FileName is the config file name inside the global cascadelab directory.
const FileName = "config.yaml"

// CascadelabConfig contains all cascadelab configuration settings.
type CascadelabConfig struct {
	// Topology selects the graph a run is performed on.
	Topology TopologyConfig `json:"topology" yaml:"topology"`

	// Cascade holds the engine parameters.
	Cascade cascade.Config `json:"cascade" yaml:"cascade"`

	// Ensemble configures Monte Carlo runs.
	Ensemble EnsembleConfig `json:"ensemble" yaml:"ensemble"`

	// Store configures the result database.
	Store StoreConfig `json:"store" yaml:"store"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Limits bounds the work accepted by the MCP server.
	Limits LimitsConfig `json:"limits" yaml:"limits"`
}

// TopologyConfig names a preset and optionally overrides its size and seed.
type TopologyConfig struct {
	// Preset is a preset label or kind: "ER", "WS", "BA", "HK".
	Preset string `json:"preset" yaml:"preset"`

	// Nodes overrides the preset node count when positive.
	Nodes int `json:"nodes" yaml:"nodes"`

	// Seed seeds graph generation.
	Seed int64 `json:"seed" yaml:"seed"`

	// AttributeMode is "degree" (default), "uniform" or "pagerank".
	AttributeMode string `json:"attribute_mode" yaml:"attribute_mode"`

	// GraphFile loads a YAML graph instead of generating one.
	// Supports ${VAR} syntax.
	GraphFile string `json:"graph_file,omitempty" yaml:"graph_file,omitempty"`
}

// Resolve returns the generator config for the preset with overrides applied.
func (t TopologyConfig) Resolve() (topology.Config, error) {
	cfg, ok := topology.Lookup(t.Preset)
	if !ok {
		return topology.Config{}, fmt.Errorf("unknown topology preset: %q", t.Preset)
	}
	if t.Nodes > 0 {
		cfg.Nodes = t.Nodes
	}
	cfg.Seed = t.Seed
	return cfg, nil
}

// EnsembleConfig configures the Monte Carlo runner.
type EnsembleConfig struct {
	// Runs is the number of seeded runs per ensemble.
	Runs int `json:"runs" yaml:"runs"`

	// Workers bounds concurrent runs. 0 means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`

	// HistogramBins is the number of reach-fraction histogram bins.
	HistogramBins int `json:"histogram_bins" yaml:"histogram_bins"`
}

// StoreConfig configures the SQLite result store.
type StoreConfig struct {
	// Path is the database file. Empty means ~/.cascadelab/results.db.
	// Supports ${VAR} syntax.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures cascadelab's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "trace" logs every iteration of every run.
	Level string `json:"level" yaml:"level"`

	// TraceDir, when set, receives a cascade-trace.jsonl file with one
	// line per iteration of single runs. Supports ${VAR} syntax.
	TraceDir string `json:"trace_dir,omitempty" yaml:"trace_dir,omitempty"`
}

// LimitsConfig configures the MCP work budget. Work is measured in
// node-iterations (nodes * iterations * runs).
type LimitsConfig struct {
	// WorkPerSecond is the budget refill rate.
	WorkPerSecond float64 `json:"work_per_second" yaml:"work_per_second"`

	// WorkBurst is the largest single request and the initial budget.
	WorkBurst int64 `json:"work_burst" yaml:"work_burst"`
}

// Default returns a CascadelabConfig with sensible defaults.
func Default() *CascadelabConfig {
	return &CascadelabConfig{
		Topology: TopologyConfig{
			Preset:        string(topology.KindBarabasiAlbert),
			Nodes:         constants.DefaultTopologyNodes,
			Seed:          constants.DefaultTopologySeed,
			AttributeMode: string(topology.AttributesDegree),
		},
		Cascade: cascade.DefaultConfig(),
		Ensemble: EnsembleConfig{
			Runs:          constants.DefaultEnsembleRuns,
			HistogramBins: constants.DefaultHistogramBins,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Limits: LimitsConfig{
			WorkPerSecond: constants.DefaultWorkPerSecond,
			WorkBurst:     constants.DefaultWorkBurst,
		},
	}
}

// GlobalPath returns the default config file path (~/.cascadelab/config.yaml).
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cascadelab", FileName), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.cascadelab/config.yaml -> environment variables
func Load() (*CascadelabConfig, error) {
	config := Default()

	if path, err := GlobalPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			fileConfig, loadErr := LoadFromFile(path)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Fields the
// file leaves out keep their defaults.
func LoadFromFile(path string) (*CascadelabConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Topology.GraphFile = expandEnvVars(config.Topology.GraphFile)
	config.Store.Path = expandEnvVars(config.Store.Path)
	config.Logging.TraceDir = expandEnvVars(config.Logging.TraceDir)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *CascadelabConfig) Validate() error {
	if c.Topology.GraphFile == "" {
		topo, err := c.Topology.Resolve()
		if err != nil {
			return err
		}
		if err := topo.Validate(); err != nil {
			return fmt.Errorf("topology: %w", err)
		}
	}

	if _, err := topology.ParseAttributeMode(c.Topology.AttributeMode); err != nil {
		return err
	}

	if err := c.Cascade.Validate(); err != nil {
		return err
	}

	if c.Ensemble.Runs < 0 || c.Ensemble.Runs > constants.MaxEnsembleRuns {
		return fmt.Errorf("runs must be between 0 and %d, got %d", constants.MaxEnsembleRuns, c.Ensemble.Runs)
	}
	if c.Ensemble.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Ensemble.Workers)
	}
	if c.Ensemble.HistogramBins < 0 {
		return fmt.Errorf("histogram_bins must be non-negative, got %d", c.Ensemble.HistogramBins)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.Limits.WorkPerSecond < 0 {
		return fmt.Errorf("work_per_second must be non-negative, got %f", c.Limits.WorkPerSecond)
	}
	if c.Limits.WorkBurst <= 0 {
		return fmt.Errorf("work_burst must be positive, got %d", c.Limits.WorkBurst)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Malformed numbers are ignored.
func applyEnvOverrides(config *CascadelabConfig) {
	if v := os.Getenv("CASCADELAB_TOPOLOGY"); v != "" {
		config.Topology.Preset = v
	}

	if v := os.Getenv("CASCADELAB_NODES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Topology.Nodes = n
		}
	}

	if v := os.Getenv("CASCADELAB_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Cascade.Iterations = n
		}
	}

	if v := os.Getenv("CASCADELAB_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Cascade.Seed = n
		}
	}

	if v := os.Getenv("CASCADELAB_RUNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Ensemble.Runs = n
		}
	}

	if v := os.Getenv("CASCADELAB_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Ensemble.Workers = n
		}
	}

	if v := os.Getenv("CASCADELAB_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("CASCADELAB_STORE"); v != "" {
		config.Store.Path = expandEnvVars(v)
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
