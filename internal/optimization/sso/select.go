package sso

import (
	"github.com/copyleftdev/sharksmell/internal/optimization"
	"github.com/copyleftdev/sharksmell/internal/optimization/population"
)

// SelectBest returns the candidate of positions whose value in best is the
// goal-adjusted extreme. The first candidate wins ties. The returned record
// owns a copy of the row.
func SelectBest(goal optimization.Goal, positions *population.Matrix, best []float64) (optimization.ResultRecord, error) {
	if positions == nil || len(best) == 0 {
		return optimization.ResultRecord{}, optimization.WrapError(optimization.ErrEmptyPartition, "nothing to select from")
	}
	if positions.Rows() != len(best) {
		return optimization.ResultRecord{}, optimization.WrapErrorf(optimization.ErrDimensionMismatch,
			"%d positions but %d values", positions.Rows(), len(best))
	}

	idx := 0
	for i := 1; i < len(best); i++ {
		if goal.Better(best[i], best[idx]) {
			idx = i
		}
	}

	return optimization.ResultRecord{
		Solution: positions.Row(idx).Clone(),
		Value:    best[idx],
	}, nil
}

// Record runs SelectBest on a worker's result.
func (r *Result) Record(goal optimization.Goal) (optimization.ResultRecord, error) {
	return SelectBest(goal, r.Positions, r.Best)
}
