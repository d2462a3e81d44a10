package runner

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/copyleftdev/sharksmell/internal/errors"
	"github.com/copyleftdev/sharksmell/internal/logging"
	"github.com/copyleftdev/sharksmell/internal/metrics"
	"github.com/copyleftdev/sharksmell/internal/optimization"
	"github.com/copyleftdev/sharksmell/internal/optimization/benchmark"
	"github.com/copyleftdev/sharksmell/internal/optimization/cluster"
)

func paraboloid(t *testing.T) *optimization.ProblemConfig {
	t.Helper()
	c, err := benchmark.Lookup(0)
	require.NoError(t, err)
	return &c.Problem
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var sum float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

func TestConfigValidate(t *testing.T) {
	problem := paraboloid(t)
	tests := []struct {
		name string
		cfg  Config
	}{
		{"nil problem", Config{Population: 4, Workers: 1}},
		{"no population", Config{Problem: problem, Population: 0, Workers: 1}},
		{"no workers", Config{Problem: problem, Population: 4, Workers: 0}},
		{"more workers than candidates", Config{Problem: problem, Population: 4, Workers: 5}},
		{"unknown reduction", Config{Problem: problem, Population: 4, Workers: 2, Reduction: "ring"}},
		{"negative gradient step", Config{Problem: problem, Population: 4, Workers: 2, GradientStep: -1}},
		{"negative allocation limit", Config{Problem: problem, Population: 4, Workers: 2, MaxElements: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorIs(t, err, optimization.ErrInvalidConfig)
		})
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	r, err := New(Config{Problem: paraboloid(t), Population: 4, Workers: 4})
	require.NoError(t, err)
	assert.Equal(t, cluster.ReductionTree, r.Config().Reduction)
	assert.Greater(t, r.Config().GradientStep, 0.0)
}

func TestSeedFor(t *testing.T) {
	assert.Equal(t, int64(7), SeedFor(7, 0))
	assert.NotEqual(t, SeedFor(7, 1), SeedFor(7, 2))
	assert.NotEqual(t, SeedFor(7, 1), SeedFor(8, 1))
}

func TestParaboloidConverges(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		for _, workers := range []int{1, 4} {
			r, err := New(Config{Problem: paraboloid(t), Population: 40, Workers: workers, Seed: seed})
			require.NoError(t, err)

			res, err := r.Optimize(context.Background())
			require.NoError(t, err)
			assert.InDelta(t, -1.0, res.Best.Value, 0.05, "seed %d, workers %d", seed, workers)
			assert.Len(t, res.Best.Solution, 2)
			assert.Equal(t, benchmark.EllipticParaboloid(res.Best.Solution), res.Best.Value)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	run := func() *optimization.OptimizationResult {
		r, err := New(Config{Problem: paraboloid(t), Population: 12, Workers: 3, Seed: 99})
		require.NoError(t, err)
		res, err := r.Optimize(context.Background())
		require.NoError(t, err)
		return res
	}
	a, b := run(), run()
	assert.Equal(t, a.Best, b.Best)
	assert.Equal(t, int64(99), a.Seed)
}

func TestReductionsAgree(t *testing.T) {
	results := map[cluster.Reduction]optimization.ResultRecord{}
	for _, mode := range []cluster.Reduction{cluster.ReductionTree, cluster.ReductionGather} {
		r, err := New(Config{Problem: paraboloid(t), Population: 21, Workers: 5, Seed: 3, Reduction: mode})
		require.NoError(t, err)
		res, err := r.Optimize(context.Background())
		require.NoError(t, err)
		results[mode] = res.Best
	}
	assert.Equal(t, results[cluster.ReductionTree], results[cluster.ReductionGather])
}

func TestEvaluationCountAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	problem := paraboloid(t)
	r, err := New(Config{Problem: problem, Population: 40, Workers: 4, Seed: 1},
		WithMetrics(metrics.New(reg)))
	require.NoError(t, err)

	res, err := r.Optimize(context.Background())
	require.NoError(t, err)

	perStep := int64(2*problem.Dimensions + 1 + problem.MPoints)
	want := 40*int64(problem.KMax)*perStep + 40
	assert.Equal(t, want, res.Evaluations)
	assert.Equal(t, 4, res.Workers)
	assert.Equal(t, problem.KMax, res.Steps)

	assert.Equal(t, float64(want), counterValue(t, reg, "sso_objective_evaluations_total"))
	assert.Equal(t, float64(4*problem.KMax), counterValue(t, reg, "sso_worker_steps_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "sso_runs_total"))
}

func TestWorkersEqualToPopulation(t *testing.T) {
	r, err := New(Config{Problem: paraboloid(t), Population: 6, Workers: 6, Seed: 5})
	require.NoError(t, err)
	res, err := r.Optimize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Workers)
}

func TestCancelledRunAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	r, err := New(Config{Problem: paraboloid(t), Population: 8, Workers: 1, Seed: 1},
		WithLogger(logging.New(logging.InfoLevel, &buf)))
	require.NoError(t, err)
	_, err = r.Optimize(ctx)
	assert.ErrorIs(t, err, optimization.ErrAborted)
	assert.Contains(t, buf.String(), "Optimization run cancelled")
	assert.NotContains(t, buf.String(), "Optimization run failed")
}

func TestPanickingObjectiveFailsRun(t *testing.T) {
	problem := *paraboloid(t)
	problem.Objective = optimization.ObjectiveFunc(func(x optimization.Vector) float64 {
		if x[0] > 0 {
			panic("objective exploded")
		}
		return 0
	})

	reg := prometheus.NewRegistry()
	var buf bytes.Buffer
	r, err := New(Config{Problem: &problem, Population: 16, Workers: 4, Seed: 1},
		WithMetrics(metrics.New(reg)),
		WithLogger(logging.New(logging.InfoLevel, &buf)))
	require.NoError(t, err)

	_, err = r.Optimize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "objective exploded")

	var failure *apperrors.Error
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "runner", failure.Component)
	assert.Equal(t, "optimize", failure.Operation)
	assert.NotEmpty(t, failure.StackTrace())
	assert.Contains(t, buf.String(), `"stack"`)
	assert.Equal(t, 1.0, counterValue(t, reg, "sso_runs_total"))
	assert.True(t, strings.Contains(buf.String(), "Optimization run failed"))
}

func TestAllocationLimit(t *testing.T) {
	r, err := New(Config{Problem: paraboloid(t), Population: 40, Workers: 2, Seed: 1, MaxElements: 10})
	require.NoError(t, err)
	_, err = r.Optimize(context.Background())
	assert.ErrorIs(t, err, optimization.ErrAllocation)
}
