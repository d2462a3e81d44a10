// Package gradient estimates gradients of objective functions numerically.
package gradient

import (
	"gonum.org/v1/gonum/diff/fd"

	"github.com/copyleftdev/sharksmell/internal/optimization"
)

// DefaultStep is the central difference increment h.
const DefaultStep = 1e-6

// Estimator computes central-difference gradients
//
//	g[i] = (f(x + h·eᵢ) − f(x − h·eᵢ)) / 2h
//
// with a fixed increment h, costing 2·len(x) objective evaluations per call.
// An Estimator is safe for concurrent use.
type Estimator struct {
	// Step is the increment h. Zero means DefaultStep.
	Step float64
}

// New returns an Estimator with the given step.
func New(step float64) *Estimator {
	return &Estimator{Step: step}
}

func (e *Estimator) step() float64 {
	if e == nil || e.Step <= 0 {
		return DefaultStep
	}
	return e.Step
}

// Gradient writes the gradient of objective at x into dst and returns it. A
// nil dst allocates the result. x is never modified.
func (e *Estimator) Gradient(dst optimization.Vector, objective optimization.ObjectiveFunction, x optimization.Vector) (optimization.Vector, error) {
	if objective == nil {
		return nil, optimization.WrapError(optimization.ErrInvalidConfig, "gradient of nil objective")
	}
	if len(x) == 0 {
		return nil, optimization.WrapError(optimization.ErrAllocation, "gradient scratch buffer for empty point")
	}
	if dst == nil {
		dst = make(optimization.Vector, len(x))
	}
	if len(dst) != len(x) {
		return nil, optimization.WrapErrorf(optimization.ErrAllocation,
			"gradient buffer has length %d, point has %d", len(dst), len(x))
	}

	f := func(p []float64) float64 {
		return objective.Evaluate(p)
	}
	fd.Gradient(dst, f, x, &fd.Settings{
		Formula: fd.Central,
		Step:    e.step(),
	})
	return dst, nil
}
