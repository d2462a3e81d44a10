package cluster

import (
	"context"

	"github.com/copyleftdev/sharksmell/internal/optimization"
	"github.com/copyleftdev/sharksmell/internal/optimization/population"
)

// Scatter splits the rows of m across the workers in contiguous blocks and
// returns this worker's block. Only the root's m is read; other workers may
// pass nil. cols is the row length every worker expects.
func (c *Comm) Scatter(ctx context.Context, m *population.Matrix, cols int) (*population.Matrix, error) {
	if !c.IsRoot() {
		data, err := c.recv(ctx, Root)
		if err != nil {
			return nil, err
		}
		return population.FromRows(data, cols)
	}

	if m == nil || m.Cols() != cols {
		return nil, optimization.WrapError(optimization.ErrDimensionMismatch, "scatter source does not match the row length")
	}
	spans, err := population.Spans(c.Size(), m.Rows())
	if err != nil {
		return nil, err
	}

	var own *population.Matrix
	for rank, span := range spans {
		block, err := population.Block(m, span)
		if err != nil {
			return nil, err
		}
		if rank == Root {
			own = block
			continue
		}
		if err := c.send(ctx, rank, block.Data()); err != nil {
			return nil, err
		}
	}
	return own, nil
}

// Reduce combines the records of all workers with op along a binomial tree.
// At every level the lower rank keeps op(lower, higher), so op only has to be
// associative for the result to equal a left-to-right fold in rank order.
// The combined record is returned on the root with ok set; other workers get
// their last partial value and ok unset.
func (c *Comm) Reduce(ctx context.Context, rec optimization.ResultRecord, op optimization.MergeFunc) (result optimization.ResultRecord, ok bool, err error) {
	for mask := 1; mask < c.Size(); mask <<= 1 {
		if c.rank&mask != 0 {
			if err := c.send(ctx, c.rank^mask, rec.Flatten()); err != nil {
				return rec, false, err
			}
			return rec, false, nil
		}

		partner := c.rank | mask
		if partner >= c.Size() {
			continue
		}
		data, err := c.recv(ctx, partner)
		if err != nil {
			return rec, false, err
		}
		other, err := optimization.RecordFromFlat(data)
		if err != nil {
			return rec, false, err
		}
		if len(other.Solution) != len(rec.Solution) {
			return rec, false, optimization.WrapErrorf(optimization.ErrDimensionMismatch,
				"rank %d sent %d values, expected %d", partner, len(other.Solution), len(rec.Solution))
		}
		rec = op(rec, other)
	}
	return rec, c.IsRoot(), nil
}

// Gather collects every worker's record on the root in rank order. Other
// workers get a nil slice.
func (c *Comm) Gather(ctx context.Context, rec optimization.ResultRecord) ([]optimization.ResultRecord, error) {
	if !c.IsRoot() {
		return nil, c.send(ctx, Root, rec.Flatten())
	}

	records := make([]optimization.ResultRecord, c.Size())
	records[Root] = rec
	for rank := 1; rank < c.Size(); rank++ {
		data, err := c.recv(ctx, rank)
		if err != nil {
			return nil, err
		}
		if records[rank], err = optimization.RecordFromFlat(data); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Reduction selects how per-worker records are combined.
type Reduction string

const (
	// ReductionTree combines records pairwise along a binomial tree.
	ReductionTree Reduction = "tree"
	// ReductionGather sends every record to the root, which scans them.
	ReductionGather Reduction = "gather"
)

// Valid reports whether r names a known reduction.
func (r Reduction) Valid() bool {
	return r == ReductionTree || r == ReductionGather
}

// ReduceBest combines rec across all workers under goal using the chosen
// reduction. The global best is returned on the root with ok set.
func (c *Comm) ReduceBest(ctx context.Context, goal optimization.Goal, rec optimization.ResultRecord, mode Reduction) (optimization.ResultRecord, bool, error) {
	switch mode {
	case ReductionGather:
		records, err := c.Gather(ctx, rec)
		if err != nil || !c.IsRoot() {
			return rec, false, err
		}
		best, err := optimization.ReduceAll(goal, records)
		return best, err == nil, err
	case ReductionTree, "":
		return c.Reduce(ctx, rec, optimization.Reducer(goal))
	default:
		return rec, false, optimization.WrapErrorf(optimization.ErrInvalidConfig, "unknown reduction %q", mode)
	}
}
