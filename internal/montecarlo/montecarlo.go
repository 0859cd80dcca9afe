// Package montecarlo estimates the distribution of final cascade reach by
// re-running the cascade engine under derived seeds.
package montecarlo

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/cascadelab/internal/cascade"
	"github.com/nvandessel/cascadelab/internal/constants"
	"github.com/nvandessel/cascadelab/internal/graph"
	"github.com/nvandessel/cascadelab/internal/logging"
	"github.com/nvandessel/cascadelab/internal/timeseries"
)

// Runner executes ensemble runs in parallel.
type Runner struct {
	// Workers bounds concurrent runs. Zero or negative means GOMAXPROCS.
	Workers int

	// Engine runs each member. Nil means a plain cascade.Engine.
	Engine *cascade.Engine

	// Logger receives progress at debug level. Nil discards.
	Logger *slog.Logger
}

// Estimate runs the ensemble with default settings.
func Estimate(ctx context.Context, g graph.Provider, cfg cascade.Config, runs int) ([]float64, error) {
	return (&Runner{}).Estimate(ctx, g, cfg, runs)
}

// RunSeed returns the seed of ensemble member i.
func RunSeed(base int64, i int) int64 {
	return base + int64(i)*constants.SeedStride
}

// Estimate returns the final reach of each of runs cascades, in run order.
// Run i uses seed RunSeed(cfg.Seed, i) and its own attribute copy, so
// amplification in one run never affects another. The output does not
// depend on Workers.
func (r *Runner) Estimate(ctx context.Context, g graph.Provider, cfg cascade.Config, runs int) ([]float64, error) {
	if runs < 0 {
		return nil, fmt.Errorf("%w: runs must be non-negative, got %d", cascade.ErrInvalidConfiguration, runs)
	}
	if runs == 0 {
		return []float64{}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := r.Engine
	if engine == nil {
		engine = cascade.NewEngine()
	}
	logger := r.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	outcomes := make([]float64, runs)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i := 0; i < runs; i++ {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			runCfg := cfg
			runCfg.Seed = RunSeed(cfg.Seed, i)
			res, err := engine.Run(egCtx, g, runCfg)
			if err != nil {
				return fmt.Errorf("ensemble run %d: %w", i, err)
			}
			outcomes[i] = float64(timeseries.FinalReach(res.Snapshots))
			logger.Debug("ensemble run complete", "run", i, "seed", runCfg.Seed, "reach", outcomes[i])
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
