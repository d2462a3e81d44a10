package gradient

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/sharksmell/internal/optimization"
)

func linear(c optimization.Vector) optimization.ObjectiveFunction {
	return optimization.ObjectiveFunc(func(x optimization.Vector) float64 {
		return floats.Dot(c, x)
	})
}

func TestGradientLinearIsExact(t *testing.T) {
	tests := []struct {
		name string
		c    optimization.Vector
		x    optimization.Vector
	}{
		{"origin", optimization.Vector{3, -2}, optimization.Vector{0, 0}},
		{"offset", optimization.Vector{0.5, 7, -1.25}, optimization.Vector{10, -4, 2.5}},
		{"far", optimization.Vector{-1, 1, 2, 4}, optimization.Vector{90, -75, 33, 1}},
	}

	est := New(DefaultStep)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := est.Gradient(nil, linear(tt.c), tt.x)
			require.NoError(t, err)
			assert.True(t, floats.EqualApprox(g, tt.c, 1e-6), "got %v, want %v", g, tt.c)
		})
	}
}

func TestGradientQuadratic(t *testing.T) {
	// f(x, y) = x² − 4xy + 5y² − 4y + 3
	f := optimization.ObjectiveFunc(func(x optimization.Vector) float64 {
		return x[0]*x[0] - 4*x[0]*x[1] + 5*x[1]*x[1] - 4*x[1] + 3
	})
	x := optimization.Vector{1, 2}

	g, err := New(0).Gradient(nil, f, x)
	require.NoError(t, err)

	assert.InDelta(t, 2*1-4*2, g[0], 1e-5)
	assert.InDelta(t, -4*1+10*2-4, g[1], 1e-5)
}

func TestGradientDoesNotMutateInput(t *testing.T) {
	x := optimization.Vector{1.5, -2.5, 3}
	orig := x.Clone()

	dst := make(optimization.Vector, 3)
	g, err := New(1e-3).Gradient(dst, linear(optimization.Vector{1, 1, 1}), x)
	require.NoError(t, err)

	assert.Equal(t, orig, x)
	assert.Same(t, &dst[0], &g[0], "result is written into dst")
}

func TestGradientEvaluationCount(t *testing.T) {
	calls := 0
	f := optimization.ObjectiveFunc(func(x optimization.Vector) float64 {
		calls++
		return math.Sin(x[0]) + x[1]
	})

	g, err := (&Estimator{}).Gradient(nil, f, optimization.Vector{0.3, 0.4})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.InDelta(t, math.Cos(0.3), g[0], 1e-8)
	assert.InDelta(t, 1, g[1], 1e-8)
}

func TestGradientErrors(t *testing.T) {
	est := New(DefaultStep)
	f := linear(optimization.Vector{1, 2})

	_, err := est.Gradient(nil, nil, optimization.Vector{1, 2})
	assert.ErrorIs(t, err, optimization.ErrInvalidConfig)

	_, err = est.Gradient(make(optimization.Vector, 3), f, optimization.Vector{1, 2})
	assert.ErrorIs(t, err, optimization.ErrAllocation)

	_, err = est.Gradient(nil, f, nil)
	assert.ErrorIs(t, err, optimization.ErrAllocation)
}
