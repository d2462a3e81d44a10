package optimization

import (
	"context"
	"math"
	"time"
)

// Goal is the direction of the search. Every comparison in the engine and the
// reduction multiplies values by the goal sign so that "greater is better"
// holds in both directions.
type Goal int

const (
	// Minimize searches for the smallest objective value.
	Minimize Goal = -1
	// Maximize searches for the largest objective value.
	Maximize Goal = 1
)

// Sign returns the goal as a float multiplier.
func (g Goal) Sign() float64 {
	return float64(g)
}

// Better reports whether a is strictly better than b under the goal.
func (g Goal) Better(a, b float64) bool {
	return g.Sign()*a > g.Sign()*b
}

// Valid reports whether g is one of Minimize or Maximize.
func (g Goal) Valid() bool {
	return g == Minimize || g == Maximize
}

func (g Goal) String() string {
	switch g {
	case Minimize:
		return "minimize"
	case Maximize:
		return "maximize"
	default:
		return "unknown"
	}
}

// Vector is a point in the search space.
type Vector []float64

// Clone returns a copy of v that does not share storage.
func (v Vector) Clone() Vector {
	return append(Vector(nil), v...)
}

// ObjectiveFunction is the function being optimized. Implementations must be
// pure and safe for concurrent use.
type ObjectiveFunction interface {
	Evaluate(x Vector) float64
}

// ObjectiveFunc adapts a plain function to ObjectiveFunction.
type ObjectiveFunc func(x Vector) float64

// Evaluate calls f(x).
func (f ObjectiveFunc) Evaluate(x Vector) float64 {
	return f(x)
}

// ProblemConfig describes one optimization problem together with the movement
// coefficients of the engine. A ProblemConfig is built once and shared by
// pointer; nothing mutates it after Validate succeeds.
type ProblemConfig struct {
	// Name identifies the problem in logs and metrics.
	Name string
	// Dimensions is the length of every solution vector.
	Dimensions int
	// Low and High bound the initial positions.
	Low  float64
	High float64
	// Goal selects minimization or maximization.
	Goal Goal
	// Objective is evaluated for gradients and selection.
	Objective ObjectiveFunction

	// Eta weights the gradient term of the velocity update.
	Eta float64
	// Alpha weights the momentum term of the velocity update.
	Alpha float64
	// Beta scales the previous velocity into the velocity limit.
	Beta float64
	// DeltaT is the time step of the forward movement.
	DeltaT float64
	// MPoints is the number of local search points per candidate and step.
	MPoints int
	// KMax is the number of steps each worker performs.
	KMax int
	// InitialVelocity fills every velocity component before the first step.
	InitialVelocity float64
}

// Validate checks the configuration for values the engine cannot work with.
func (c *ProblemConfig) Validate() error {
	switch {
	case c == nil:
		return WrapError(ErrInvalidConfig, "problem config is nil")
	case c.Dimensions < 1:
		return WrapErrorf(ErrInvalidConfig, "dimensions must be positive, got %d", c.Dimensions)
	case math.IsNaN(c.Low) || math.IsNaN(c.High) || c.Low > c.High:
		return WrapErrorf(ErrInvalidConfig, "invalid bounds [%v, %v]", c.Low, c.High)
	case !c.Goal.Valid():
		return WrapErrorf(ErrInvalidConfig, "invalid goal %d", int(c.Goal))
	case c.Objective == nil:
		return WrapError(ErrInvalidConfig, "objective function is required")
	case c.MPoints < 0:
		return WrapErrorf(ErrInvalidConfig, "local search points must not be negative, got %d", c.MPoints)
	case c.KMax < 0:
		return WrapErrorf(ErrInvalidConfig, "step count must not be negative, got %d", c.KMax)
	}
	return nil
}

// Optimizer runs a complete search and returns the global best.
type Optimizer interface {
	Optimize(ctx context.Context) (*OptimizationResult, error)
}

// OptimizationResult contains the outcome of a run.
type OptimizationResult struct {
	// Best is the globally best record after the reduction.
	Best ResultRecord
	// Workers is the number of workers that took part.
	Workers int
	// Steps is the number of steps each worker performed.
	Steps int
	// Evaluations counts objective calls across all workers.
	Evaluations int64
	// Elapsed is the wall-clock time between the two barriers.
	Elapsed time.Duration
	// Seed is the base seed the worker generators were derived from.
	Seed int64
}
