package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cascadelab/internal/config"
	"github.com/nvandessel/cascadelab/internal/logging"
	"github.com/nvandessel/cascadelab/internal/store"
)

// Set via -ldflags at release time.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cascadelab",
		Short: "Information cascade simulator",
		Long: `cascadelab simulates information cascades on synthetic social graphs.

It generates preset topologies (Erdos-Renyi, Watts-Strogatz, Barabasi-Albert,
Holme-Kim), runs the broadcaster/reacting diffusion model over them, and
summarizes the outcome as per-iteration time series and Monte Carlo reach
distributions.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.cascadelab/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newTopologiesCmd(),
		newRunCmd(),
		newMontecarloCmd(),
		newMetricsCmd(),
		newGraphCmd(),
		newHistoryCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// loadSettings resolves configuration for a command: the --config file or
// the default locations, then the --log-level flag.
func loadSettings(cmd *cobra.Command) (*config.CascadelabConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.CascadelabConfig
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.CascadelabConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// openStore opens the configured SQLite result store.
func openStore(cfg *config.CascadelabConfig) (*store.SQLiteResultStore, error) {
	path := cfg.Store.Path
	if path == "" {
		var err error
		if path, err = store.DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	s, err := store.NewSQLiteResultStore(path)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	return s, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func jsonOutput(cmd *cobra.Command) bool {
	jsonOut, _ := cmd.Flags().GetBool("json")
	return jsonOut
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
