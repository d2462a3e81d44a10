package population

import (
	"github.com/copyleftdev/sharksmell/internal/optimization"
)

// BlockLow returns the first row owned by worker id when n rows are split
// across p workers.
func BlockLow(id, p, n int) int {
	return id * n / p
}

// BlockHigh returns the last row owned by worker id.
func BlockHigh(id, p, n int) int {
	return BlockLow(id+1, p, n) - 1
}

// BlockSize returns the number of rows owned by worker id. Sizes of two
// workers differ by at most one.
func BlockSize(id, p, n int) int {
	return BlockHigh(id, p, n) - BlockLow(id, p, n) + 1
}

// Span is the half-open row range [Low, High) owned by one worker.
type Span struct {
	Low, High int
}

// Len returns the number of rows in the span.
func (s Span) Len() int {
	return s.High - s.Low
}

// Spans splits n rows across p workers. Every row belongs to exactly one span.
func Spans(p, n int) ([]Span, error) {
	if p < 1 {
		return nil, optimization.WrapErrorf(optimization.ErrInvalidConfig, "worker count must be positive, got %d", p)
	}
	if n < p {
		return nil, optimization.WrapErrorf(optimization.ErrInvalidConfig,
			"population of %d cannot be split across %d workers", n, p)
	}
	spans := make([]Span, p)
	for id := range spans {
		spans[id] = Span{Low: BlockLow(id, p, n), High: BlockHigh(id, p, n) + 1}
	}
	return spans, nil
}

// Block copies the rows of span out of m into a new matrix.
func Block(m *Matrix, span Span) (*Matrix, error) {
	if span.Low < 0 || span.High > m.Rows() || span.Len() < 1 {
		return nil, optimization.WrapErrorf(optimization.ErrDimensionMismatch,
			"span [%d, %d) outside %d rows", span.Low, span.High, m.Rows())
	}
	cols := m.Cols()
	data := make([]float64, 0, span.Len()*cols)
	for i := span.Low; i < span.High; i++ {
		data = append(data, m.Row(i)...)
	}
	return FromRows(data, cols)
}
