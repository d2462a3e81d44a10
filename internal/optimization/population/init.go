package population

// Source yields uniformly distributed values in [0, 1).
type Source interface {
	Float64() float64
}

// InitUniform fills m with values sampled uniformly from [low, high].
func InitUniform(m *Matrix, low, high float64, rng Source) {
	for i := 0; i < m.Rows(); i++ {
		row := m.Row(i)
		for j := range row {
			row[j] = low + (high-low)*rng.Float64()
		}
	}
}

// New allocates an rows×cols population with uniformly sampled positions.
func New(alloc Allocator, rows, cols int, low, high float64, rng Source) (*Matrix, error) {
	m, err := alloc.Matrix(rows, cols)
	if err != nil {
		return nil, err
	}
	InitUniform(m, low, high, rng)
	return m, nil
}
