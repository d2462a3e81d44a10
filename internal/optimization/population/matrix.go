// Package population holds the dense matrices the optimizer works on: the
// population of candidate positions, their velocities and scratch space.
// Every matrix is one contiguous row-major buffer; rows are views into it.
package population

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/sharksmell/internal/optimization"
)

// DefaultMaxElements caps a single allocation when an Allocator has no limit set.
const DefaultMaxElements = 1 << 28

// Matrix is a rows×cols matrix backed by a single *mat.Dense.
type Matrix struct {
	dense *mat.Dense
}

// Allocator builds matrices and reports oversized or malformed requests as
// optimization.ErrAllocation instead of panicking.
type Allocator struct {
	// MaxElements bounds rows*cols for one matrix. Zero means DefaultMaxElements.
	MaxElements int
}

func (a Allocator) limit() int {
	if a.MaxElements <= 0 {
		return DefaultMaxElements
	}
	return a.MaxElements
}

// Matrix allocates a zeroed rows×cols matrix.
func (a Allocator) Matrix(rows, cols int) (m *Matrix, err error) {
	if rows < 1 || cols < 1 {
		return nil, optimization.WrapErrorf(optimization.ErrAllocation, "invalid matrix shape %dx%d", rows, cols)
	}
	if rows > a.limit()/cols {
		return nil, optimization.WrapErrorf(optimization.ErrAllocation,
			"matrix %dx%d exceeds the %d element limit", rows, cols, a.limit())
	}
	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = optimization.WrapErrorf(optimization.ErrAllocation, "matrix %dx%d: %v", rows, cols, r)
		}
	}()
	return &Matrix{dense: mat.NewDense(rows, cols, nil)}, nil
}

// Vector allocates a zeroed vector of length n.
func (a Allocator) Vector(n int) (optimization.Vector, error) {
	if n < 1 || n > a.limit() {
		return nil, optimization.WrapErrorf(optimization.ErrAllocation, "invalid vector length %d", n)
	}
	return make(optimization.Vector, n), nil
}

// NewMatrix allocates a rows×cols matrix with the default Allocator.
func NewMatrix(rows, cols int) (*Matrix, error) {
	return Allocator{}.Matrix(rows, cols)
}

// FromRows wraps data, laid out row-major with cols columns, as a matrix. The
// matrix takes ownership of data.
func FromRows(data []float64, cols int) (*Matrix, error) {
	if cols < 1 || len(data) == 0 || len(data)%cols != 0 {
		return nil, optimization.WrapErrorf(optimization.ErrDimensionMismatch,
			"%d values do not form rows of %d columns", len(data), cols)
	}
	return &Matrix{dense: mat.NewDense(len(data)/cols, cols, data)}, nil
}

// Rows returns the number of rows. The zero Matrix has none.
func (m *Matrix) Rows() int {
	if m.dense == nil {
		return 0
	}
	r, _ := m.dense.Dims()
	return r
}

// Cols returns the number of columns.
func (m *Matrix) Cols() int {
	if m.dense == nil {
		return 0
	}
	_, c := m.dense.Dims()
	return c
}

// Row returns row i as a vector that aliases the matrix storage.
func (m *Matrix) Row(i int) optimization.Vector {
	return m.dense.RawRowView(i)
}

// At returns the element at (i, j).
func (m *Matrix) At(i, j int) float64 {
	return m.dense.At(i, j)
}

// Set sets the element at (i, j).
func (m *Matrix) Set(i, j int, v float64) {
	m.dense.Set(i, j, v)
}

// SetRow copies src into row i.
func (m *Matrix) SetRow(i int, src optimization.Vector) {
	m.dense.SetRow(i, src)
}

// Fill sets every element to v.
func (m *Matrix) Fill(v float64) {
	raw := m.dense.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
		for j := range row {
			row[j] = v
		}
	}
}

// Data returns the contiguous row-major contents of the matrix. It aliases the
// storage when the matrix is not a strided view.
func (m *Matrix) Data() []float64 {
	raw := m.dense.RawMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data[:raw.Rows*raw.Cols]
	}
	out := make([]float64, 0, raw.Rows*raw.Cols)
	for i := 0; i < raw.Rows; i++ {
		out = append(out, raw.Data[i*raw.Stride:i*raw.Stride+raw.Cols]...)
	}
	return out
}

// Clone returns a deep copy of m.
func (m *Matrix) Clone() *Matrix {
	return &Matrix{dense: mat.DenseCopyOf(m.dense)}
}

// Dense exposes the underlying gonum matrix.
func (m *Matrix) Dense() *mat.Dense {
	return m.dense
}

// Equal reports whether m and o have the same shape and bit-identical values.
func (m *Matrix) Equal(o *Matrix) bool {
	return mat.Equal(m.dense, o.dense)
}

func (m *Matrix) String() string {
	return fmt.Sprintf("%v", mat.Formatted(m.dense, mat.Squeeze()))
}
