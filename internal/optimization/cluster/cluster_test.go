package cluster

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sharksmell/internal/optimization"
	"github.com/copyleftdev/sharksmell/internal/optimization/population"
)

func recordsFor(rng *rand.Rand, n int, distinct bool) []optimization.ResultRecord {
	records := make([]optimization.ResultRecord, n)
	for i := range records {
		value := float64(rng.Intn(4))
		if distinct {
			value = rng.NormFloat64()
		}
		records[i] = optimization.ResultRecord{
			Solution: optimization.Vector{float64(i), float64(-i)},
			Value:    value,
		}
	}
	return records
}

// reduceOnRoot runs one worker per record and returns the root's result.
func reduceOnRoot(t *testing.T, goal optimization.Goal, records []optimization.ResultRecord, mode Reduction) optimization.ResultRecord {
	t.Helper()

	var (
		mu     sync.Mutex
		result optimization.ResultRecord
		got    int
	)
	err := Run(context.Background(), len(records), func(ctx context.Context, comm *Comm) error {
		best, ok, err := comm.ReduceBest(ctx, goal, records[comm.Rank()], mode)
		if err != nil {
			return err
		}
		if ok {
			mu.Lock()
			result = best
			got++
			mu.Unlock()
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, got, "exactly one worker must hold the result")
	return result
}

func TestTreeAndGatherMatchLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, goal := range []optimization.Goal{optimization.Minimize, optimization.Maximize} {
		for size := 1; size <= 9; size++ {
			for trial := 0; trial < 5; trial++ {
				records := recordsFor(rng, size, false)

				want, err := optimization.ReduceAll(goal, records)
				require.NoError(t, err)

				assert.Equal(t, want, reduceOnRoot(t, goal, records, ReductionTree), "tree size=%d %s", size, goal)
				assert.Equal(t, want, reduceOnRoot(t, goal, records, ReductionGather), "gather size=%d %s", size, goal)
			}
		}
	}
}

func TestReductionIndependentOfPartitioning(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	goal := optimization.Minimize
	all := recordsFor(rng, 23, true)

	want, err := optimization.ReduceAll(goal, all)
	require.NoError(t, err)

	for workers := 1; workers <= 6; workers++ {
		// Deal the records to workers in a random order.
		owned := make([][]optimization.ResultRecord, workers)
		for i, idx := range rng.Perm(len(all)) {
			owned[i%workers] = append(owned[i%workers], all[idx])
		}
		local := make([]optimization.ResultRecord, workers)
		for w := range owned {
			local[w], err = optimization.ReduceAll(goal, owned[w])
			require.NoError(t, err)
		}

		assert.Equal(t, want, reduceOnRoot(t, goal, local, ReductionTree), "workers=%d", workers)
		assert.Equal(t, want, reduceOnRoot(t, goal, local, ReductionGather), "workers=%d", workers)
	}
}

func TestScatter(t *testing.T) {
	const rows, cols, size = 10, 3, 4

	m, err := population.NewMatrix(rows, cols)
	require.NoError(t, err)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, float64(i*cols+j))
		}
	}

	blocks := make([]*population.Matrix, size)
	err = Run(context.Background(), size, func(ctx context.Context, comm *Comm) error {
		var src *population.Matrix
		if comm.IsRoot() {
			src = m
		}
		block, err := comm.Scatter(ctx, src, cols)
		if err != nil {
			return err
		}
		blocks[comm.Rank()] = block
		return nil
	})
	require.NoError(t, err)

	var joined []float64
	for rank, b := range blocks {
		assert.Equal(t, population.BlockSize(rank, size, rows), b.Rows())
		joined = append(joined, b.Data()...)
	}
	assert.Equal(t, m.Data(), joined)
}

func TestBarrierIsReusable(t *testing.T) {
	const size, rounds = 5, 20
	var arrived atomic.Int64

	err := Run(context.Background(), size, func(ctx context.Context, comm *Comm) error {
		for r := 1; r <= rounds; r++ {
			arrived.Add(1)
			if err := comm.Barrier(ctx); err != nil {
				return err
			}
			if got := arrived.Load(); got < int64(r*size) {
				return errors.New("barrier released early")
			}
			if err := comm.Barrier(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(size*rounds), arrived.Load())
}

func TestFailingWorkerAbortsPeers(t *testing.T) {
	errBoom := errors.New("boom")

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), 4, func(ctx context.Context, comm *Comm) error {
			if comm.Rank() == 2 {
				return errBoom
			}
			// Peers wait in collectives that can never complete.
			if err := comm.Barrier(ctx); err != nil {
				return err
			}
			_, _, err := comm.ReduceBest(ctx, optimization.Minimize, optimization.ResultRecord{Solution: optimization.Vector{0}}, ReductionTree)
			return err
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errBoom)
	case <-time.After(5 * time.Second):
		t.Fatal("peers stayed blocked after a worker failed")
	}
}

func TestPanickingWorkerBecomesError(t *testing.T) {
	err := Run(context.Background(), 3, func(ctx context.Context, comm *Comm) error {
		if comm.Rank() == 1 {
			panic("out of scratch space")
		}
		return comm.Barrier(ctx)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of scratch space")
}

func TestRunRejectsEmptyGroup(t *testing.T) {
	err := Run(context.Background(), 0, func(ctx context.Context, comm *Comm) error { return nil })
	assert.ErrorIs(t, err, optimization.ErrInvalidConfig)
}

func TestReduceBestUnknownMode(t *testing.T) {
	err := Run(context.Background(), 1, func(ctx context.Context, comm *Comm) error {
		_, _, err := comm.ReduceBest(ctx, optimization.Minimize, optimization.ResultRecord{}, Reduction("ring"))
		return err
	})
	assert.ErrorIs(t, err, optimization.ErrInvalidConfig)
}

func TestLargeGroupUsesLinearMailboxes(t *testing.T) {
	const size = 3000

	positions, err := population.NewMatrix(size, 2)
	require.NoError(t, err)
	for i := 0; i < size; i++ {
		positions.SetRow(i, optimization.Vector{float64(i), float64(size - i)})
	}

	w := newWorld(size)
	var (
		treeBest   optimization.ResultRecord
		gatherBest optimization.ResultRecord
	)
	err = run(context.Background(), w, func(ctx context.Context, comm *Comm) error {
		var src *population.Matrix
		if comm.IsRoot() {
			src = positions
		}
		part, err := comm.Scatter(ctx, src, 2)
		if err != nil {
			return err
		}
		row := part.Row(0)
		rec := optimization.ResultRecord{Solution: row.Clone(), Value: row[0]}

		tree, ok, err := comm.ReduceBest(ctx, optimization.Maximize, rec, ReductionTree)
		if err != nil {
			return err
		}
		if ok {
			treeBest = tree
		}
		gathered, ok, err := comm.ReduceBest(ctx, optimization.Maximize, rec, ReductionGather)
		if err != nil {
			return err
		}
		if ok {
			gatherBest = gathered
		}
		return comm.Barrier(ctx)
	})
	require.NoError(t, err)

	want := optimization.ResultRecord{Solution: optimization.Vector{size - 1, 1}, Value: size - 1}
	assert.Equal(t, want, treeBest)
	assert.Equal(t, want, gatherBest)
	assert.LessOrEqual(t, w.links(), 3*(size-1))
}
