// Package sso implements the movement of the shark smell optimizer: each
// candidate follows the gradient of the objective with a clamped velocity and
// then samples points along its position vector to refine the step.
package sso

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/sharksmell/internal/optimization"
	"github.com/copyleftdev/sharksmell/internal/optimization/gradient"
	"github.com/copyleftdev/sharksmell/internal/optimization/population"
)

// RandomSource yields uniformly distributed values in [0, 1]. *rand.Rand
// satisfies it.
type RandomSource interface {
	Float64() float64
}

// StepStats summarises one completed step of a worker.
type StepStats struct {
	// Step is the zero-based step index.
	Step int
	// R1 and R2 are the step-level random factors shared by every candidate.
	R1, R2 float64
	// Best is the best tracked value across the partition after the step.
	Best float64
	// Evaluations is the number of objective calls made during the step.
	Evaluations int64
}

// StepObserver is notified after every step.
type StepObserver func(StepStats)

// Engine moves one partition of the population for KMax steps.
type Engine struct {
	cfg      *optimization.ProblemConfig
	grad     *gradient.Estimator
	alloc    population.Allocator
	pool     *population.Pool
	observer StepObserver
}

// Option configures an Engine.
type Option func(*Engine)

// WithGradient sets the gradient estimator.
func WithGradient(est *gradient.Estimator) Option {
	return func(e *Engine) {
		e.grad = est
	}
}

// WithAllocator sets the allocator for the velocity matrix and buffers.
func WithAllocator(alloc population.Allocator) Option {
	return func(e *Engine) {
		e.alloc = alloc
	}
}

// WithPool recycles the local search scratch matrix through pool.
func WithPool(pool *population.Pool) Option {
	return func(e *Engine) {
		e.pool = pool
	}
}

// WithObserver registers a per-step callback.
func WithObserver(obs StepObserver) Option {
	return func(e *Engine) {
		e.observer = obs
	}
}

// NewEngine validates cfg and returns an engine for it.
func NewEngine(cfg *optimization.ProblemConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:  cfg,
		grad: gradient.New(gradient.DefaultStep),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pool == nil {
		e.pool = population.NewPool(e.alloc)
	}
	return e, nil
}

// Config returns the problem the engine was built for.
func (e *Engine) Config() *optimization.ProblemConfig {
	return e.cfg
}

// Result is the terminal state of a worker.
type Result struct {
	// Positions is the partition after the last step. It is the matrix that
	// was passed to Run, mutated in place.
	Positions *population.Matrix
	// Velocities holds the final velocity of every candidate.
	Velocities *population.Matrix
	// Best holds the tracked objective value of every candidate's position.
	Best []float64
	// Evaluations counts objective calls.
	Evaluations int64
}

// workspace holds the per-run buffers of one worker.
type workspace struct {
	v     *population.Matrix
	z     *population.Matrix
	y     optimization.Vector
	grad  optimization.Vector
	best  []float64
	evals int64
}

// Run performs KMax steps on x, drawing all randomness from rng. The context
// is checked between steps so a failing peer can stop the worker.
func (e *Engine) Run(ctx context.Context, x *population.Matrix, rng RandomSource) (*Result, error) {
	if x == nil || x.Rows() == 0 {
		return nil, optimization.WrapError(optimization.ErrEmptyPartition, "no positions")
	}
	if x.Cols() != e.cfg.Dimensions {
		return nil, optimization.WrapErrorf(optimization.ErrDimensionMismatch,
			"partition has %d columns, problem has %d dimensions", x.Cols(), e.cfg.Dimensions)
	}

	ws, err := e.newWorkspace(x.Rows())
	if err != nil {
		return nil, err
	}
	defer e.pool.Put(ws.z)

	obj := e.counting(ws)
	for i := 0; i < x.Rows(); i++ {
		ws.best[i] = obj.Evaluate(x.Row(i))
	}

	for k := 0; k < e.cfg.KMax; k++ {
		if err := ctx.Err(); err != nil {
			return nil, optimization.WrapErrorf(optimization.ErrAborted, "stopped before step %d: %v", k, err)
		}

		before := ws.evals
		r1, r2, err := e.step(x, ws, obj, rng)
		if err != nil {
			return nil, optimization.WrapErrorf(err, "step %d", k)
		}

		if e.observer != nil {
			e.observer(StepStats{
				Step:        k,
				R1:          r1,
				R2:          r2,
				Best:        bestOf(e.cfg.Goal, ws.best),
				Evaluations: ws.evals - before,
			})
		}
	}

	return &Result{
		Positions:   x,
		Velocities:  ws.v,
		Best:        ws.best,
		Evaluations: ws.evals,
	}, nil
}

func (e *Engine) newWorkspace(rows int) (*workspace, error) {
	nd := e.cfg.Dimensions

	v, err := e.alloc.Matrix(rows, nd)
	if err != nil {
		return nil, optimization.WrapError(err, "velocity matrix")
	}
	v.Fill(e.cfg.InitialVelocity)

	ws := &workspace{v: v}
	if ws.y, err = e.alloc.Vector(nd); err != nil {
		return nil, optimization.WrapError(err, "forward position")
	}
	if ws.grad, err = e.alloc.Vector(nd); err != nil {
		return nil, optimization.WrapError(err, "gradient buffer")
	}
	if ws.best, err = e.alloc.Vector(rows); err != nil {
		return nil, optimization.WrapError(err, "best values")
	}
	// Taken from the pool last, so no error path holds a pooled matrix.
	if e.cfg.MPoints > 0 {
		if ws.z, err = e.pool.Get(e.cfg.MPoints, nd); err != nil {
			return nil, optimization.WrapError(err, "local search matrix")
		}
	}
	return ws, nil
}

// counting wraps the objective so every call is recorded in ws.
func (e *Engine) counting(ws *workspace) optimization.ObjectiveFunction {
	f := e.cfg.Objective
	return optimization.ObjectiveFunc(func(x optimization.Vector) float64 {
		ws.evals++
		return f.Evaluate(x)
	})
}

// step advances every candidate of x once and returns the shared factors.
func (e *Engine) step(x *population.Matrix, ws *workspace, obj optimization.ObjectiveFunction, rng RandomSource) (float64, float64, error) {
	cfg := e.cfg
	goal := cfg.Goal.Sign()

	r1 := rng.Float64()
	r2 := rng.Float64()

	for i := 0; i < x.Rows(); i++ {
		xi := x.Row(i)
		vi := ws.v.Row(i)
		y := ws.y

		g, err := e.grad.Gradient(ws.grad, obj, xi)
		if err != nil {
			return r1, r2, err
		}

		for j := range xi {
			vel := goal*cfg.Eta*r1*g[j] + cfg.Alpha*r2*vi[j]
			limit := cfg.Beta * vi[j]
			vi[j] = clampVelocity(vel, limit)
		}
		floats.AddScaledTo(y, xi, cfg.DeltaT, vi)

		for m := 0; m < cfg.MPoints; m++ {
			r3 := 2*rng.Float64() - 1
			floats.AddScaledTo(ws.z.Row(m), y, r3, y)
		}

		copy(xi, y)
		ws.best[i] = obj.Evaluate(y)

		for m := 0; m < cfg.MPoints; m++ {
			z := ws.z.Row(m)
			if val := obj.Evaluate(z); cfg.Goal.Better(val, ws.best[i]) {
				copy(xi, z)
				ws.best[i] = val
			}
		}
	}

	return r1, r2, nil
}

// clampVelocity returns whichever of vel and limit has the smaller absolute
// value. On a tie vel is returned.
func clampVelocity(vel, limit float64) float64 {
	if math.Abs(vel) <= math.Abs(limit) {
		return vel
	}
	return limit
}

func bestOf(goal optimization.Goal, values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	best := values[0]
	for _, v := range values[1:] {
		if goal.Better(v, best) {
			best = v
		}
	}
	return best
}
