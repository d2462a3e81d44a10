// Package runner drives a complete distributed run: the coordinator samples
// the population, scatters it across the workers, every worker moves its
// partition and selects its local best, and the results are reduced to the
// global best.
package runner

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	apperrors "github.com/copyleftdev/sharksmell/internal/errors"
	"github.com/copyleftdev/sharksmell/internal/logging"
	"github.com/copyleftdev/sharksmell/internal/metrics"
	"github.com/copyleftdev/sharksmell/internal/optimization"
	"github.com/copyleftdev/sharksmell/internal/optimization/cluster"
	"github.com/copyleftdev/sharksmell/internal/optimization/gradient"
	"github.com/copyleftdev/sharksmell/internal/optimization/population"
	"github.com/copyleftdev/sharksmell/internal/optimization/sso"
)

// seedStride spreads the worker seeds over the generator state space.
const seedStride uint64 = 0x9E3779B97F4A7C15

// Config describes one run.
type Config struct {
	// Problem is the problem to optimize. It is shared read-only by all
	// workers.
	Problem *optimization.ProblemConfig
	// Population is the total number of candidates (NP).
	Population int
	// Workers is the number of workers the population is split across.
	Workers int
	// Seed is the base seed. Zero seeds from the wall clock.
	Seed int64
	// Reduction selects tree or gather reduction. Empty means tree.
	Reduction cluster.Reduction
	// GradientStep is the central difference increment. Zero means
	// gradient.DefaultStep.
	GradientStep float64
	// MaxElements bounds every matrix allocation. Zero means
	// population.DefaultMaxElements.
	MaxElements int
}

// Validate checks the run configuration. It is called before any worker
// starts.
func (c *Config) Validate() error {
	if err := c.Problem.Validate(); err != nil {
		return err
	}
	switch {
	case c.Population < 1:
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "population must be positive, got %d", c.Population)
	case c.Workers < 1:
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "worker count must be positive, got %d", c.Workers)
	case c.Workers > c.Population:
		return optimization.WrapErrorf(optimization.ErrInvalidConfig,
			"worker count %d exceeds population %d", c.Workers, c.Population)
	case c.Reduction != "" && !c.Reduction.Valid():
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "unknown reduction %q", c.Reduction)
	case c.GradientStep < 0:
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "gradient step must not be negative, got %v", c.GradientStep)
	case c.MaxElements < 0:
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "allocation limit must not be negative, got %d", c.MaxElements)
	}
	return nil
}

// SeedFor derives the generator seed of a worker from the base seed.
func SeedFor(base int64, rank int) int64 {
	return int64(uint64(base) + uint64(rank)*seedStride)
}

// Runner executes runs of one configuration. It implements
// optimization.Optimizer.
type Runner struct {
	cfg     Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	pool    *population.Pool
}

var _ optimization.Optimizer = (*Runner)(nil)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. Workers log with a rank field.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMetrics records run and step metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithPool shares local search scratch matrices with other runners.
func WithPool(pool *population.Pool) Option {
	return func(r *Runner) {
		r.pool = pool
	}
}

// New validates cfg and returns a Runner for it.
func New(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Reduction == "" {
		cfg.Reduction = cluster.ReductionTree
	}
	if cfg.GradientStep == 0 {
		cfg.GradientStep = gradient.DefaultStep
	}

	r := &Runner{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.Nop()
	}
	if r.pool == nil {
		r.pool = population.NewPool(r.allocator())
	}
	return r, nil
}

// Config returns the validated configuration with defaults applied.
func (r *Runner) Config() Config {
	return r.cfg
}

func (r *Runner) allocator() population.Allocator {
	return population.Allocator{MaxElements: r.cfg.MaxElements}
}

// Optimize performs the run and returns the global best. Any worker failure
// aborts the remaining workers and is returned.
func (r *Runner) Optimize(ctx context.Context) (*optimization.OptimizationResult, error) {
	problem := r.cfg.Problem
	base := r.cfg.Seed
	if base == 0 {
		base = time.Now().UnixNano()
	}

	log := r.logger.WithFields(map[string]interface{}{
		"benchmark": problem.Name,
		"seed":      base,
	})
	log.Info("Starting optimization run", map[string]interface{}{
		"population": r.cfg.Population,
		"workers":    r.cfg.Workers,
		"reduction":  string(r.cfg.Reduction),
		"steps":      problem.KMax,
	})

	r.metrics.RunStarted()
	began := time.Now()

	var (
		evaluations atomic.Int64
		best        optimization.ResultRecord
		elapsed     time.Duration
	)
	err := cluster.Run(ctx, r.cfg.Workers, func(ctx context.Context, comm *cluster.Comm) error {
		rng := rand.New(rand.NewSource(SeedFor(base, comm.Rank())))
		wlog := log.WithField("rank", comm.Rank())

		var x *population.Matrix
		if comm.IsRoot() {
			var err error
			x, err = population.New(r.allocator(), r.cfg.Population, problem.Dimensions, problem.Low, problem.High, rng)
			if err != nil {
				return optimization.WrapError(err, "population").WithComponent("runner")
			}
		}

		if err := comm.Barrier(ctx); err != nil {
			return err
		}
		start := time.Now()

		part, err := comm.Scatter(ctx, x, problem.Dimensions)
		if err != nil {
			return err
		}

		engine, err := r.engine(wlog)
		if err != nil {
			return err
		}
		res, err := engine.Run(ctx, part, rng)
		if err != nil {
			return err
		}
		evaluations.Add(res.Evaluations)

		local, err := res.Record(problem.Goal)
		if err != nil {
			return err
		}
		wlog.Debug("Local best selected", map[string]interface{}{
			"candidates": part.Rows(),
			"value":      local.Value,
		})

		global, ok, err := comm.ReduceBest(ctx, problem.Goal, local, r.cfg.Reduction)
		if err != nil {
			return err
		}
		if err := comm.Barrier(ctx); err != nil {
			return err
		}

		if ok {
			best = global.Clone()
			elapsed = time.Since(start)
		}
		return nil
	})
	if err != nil {
		r.metrics.RunFailed(problem.Name, time.Since(began))
		failure := apperrors.Wrapf(err, "optimization run of %s failed", problem.Name).
			WithOperation("optimize").
			WithComponent("runner")
		fields := map[string]interface{}{"stack": failure.StackTrace()}
		if apperrors.Is(err, optimization.ErrAborted) && ctx.Err() != nil {
			log.WithError(err).Warn("Optimization run cancelled", fields)
		} else {
			log.WithError(err).Error("Optimization run failed", fields)
		}
		return nil, failure
	}

	result := &optimization.OptimizationResult{
		Best:        best,
		Workers:     r.cfg.Workers,
		Steps:       problem.KMax,
		Evaluations: evaluations.Load(),
		Elapsed:     elapsed,
		Seed:        base,
	}
	r.metrics.RunSucceeded(problem.Name, elapsed, result.Evaluations, best.Value)
	log.Info("Optimization run completed", map[string]interface{}{
		"value":       best.Value,
		"solution":    []float64(best.Solution),
		"evaluations": result.Evaluations,
		"elapsed_ms":  elapsed.Milliseconds(),
	})
	return result, nil
}

// engine builds the movement engine of one worker.
func (r *Runner) engine(log *logging.Logger) (*sso.Engine, error) {
	name := r.cfg.Problem.Name
	return sso.NewEngine(r.cfg.Problem,
		sso.WithGradient(gradient.New(r.cfg.GradientStep)),
		sso.WithAllocator(r.allocator()),
		sso.WithPool(r.pool),
		sso.WithObserver(func(s sso.StepStats) {
			r.metrics.StepCompleted(name)
			log.Debug("Step completed", map[string]interface{}{
				"step":        s.Step,
				"best":        s.Best,
				"evaluations": s.Evaluations,
			})
		}),
	)
}
