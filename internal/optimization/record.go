package optimization

// ResultRecord is a solution together with its objective value. It is the
// unit exchanged by the reduction between workers.
type ResultRecord struct {
	Solution Vector  `json:"solution"`
	Value    float64 `json:"value"`
}

// Clone returns a deep copy of r.
func (r ResultRecord) Clone() ResultRecord {
	return ResultRecord{Solution: r.Solution.Clone(), Value: r.Value}
}

// Flatten returns the wire layout of the record: the solution followed by one
// trailing element holding the value.
func (r ResultRecord) Flatten() []float64 {
	flat := make([]float64, len(r.Solution)+1)
	copy(flat, r.Solution)
	flat[len(r.Solution)] = r.Value
	return flat
}

// RecordFromFlat parses the layout produced by Flatten. The returned record
// does not share storage with flat.
func RecordFromFlat(flat []float64) (ResultRecord, error) {
	if len(flat) < 2 {
		return ResultRecord{}, WrapErrorf(ErrDimensionMismatch, "flat record needs at least 2 elements, got %d", len(flat))
	}
	last := len(flat) - 1
	return ResultRecord{
		Solution: Vector(flat[:last]).Clone(),
		Value:    flat[last],
	}, nil
}

// Merge returns the better of a and b under goal. On equal goal-adjusted
// values the left operand wins.
func Merge(goal Goal, a, b ResultRecord) ResultRecord {
	if goal.Sign()*a.Value >= goal.Sign()*b.Value {
		return a
	}
	return b
}

// MergeFunc combines two records into one.
type MergeFunc func(a, b ResultRecord) ResultRecord

// Reducer binds Merge to a goal so it can be handed to a reduction combinator.
func Reducer(goal Goal) MergeFunc {
	return func(a, b ResultRecord) ResultRecord {
		return Merge(goal, a, b)
	}
}

// ReduceAll folds records left to right with Merge. It is the linear scan a
// coordinator performs after gathering every worker's record.
func ReduceAll(goal Goal, records []ResultRecord) (ResultRecord, error) {
	if len(records) == 0 {
		return ResultRecord{}, WrapError(ErrEmptyPartition, "no records to reduce")
	}
	best := records[0]
	for _, r := range records[1:] {
		best = Merge(goal, best, r)
	}
	return best, nil
}
