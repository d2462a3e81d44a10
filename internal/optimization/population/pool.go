package population

import "sync"

type shape struct {
	rows, cols int
}

// Pool recycles scratch matrices of a given shape between runs.
type Pool struct {
	alloc Allocator

	mu   sync.Mutex
	free map[shape][]*Matrix
}

// NewPool creates a Pool that allocates new matrices with alloc.
func NewPool(alloc Allocator) *Pool {
	return &Pool{
		alloc: alloc,
		free:  make(map[shape][]*Matrix),
	}
}

// Get returns a rows×cols matrix from the pool or allocates a new one. The
// contents of a recycled matrix are unspecified.
func (p *Pool) Get(rows, cols int) (*Matrix, error) {
	key := shape{rows, cols}

	p.mu.Lock()
	if list := p.free[key]; len(list) > 0 {
		m := list[len(list)-1]
		p.free[key] = list[:len(list)-1]
		p.mu.Unlock()
		return m, nil
	}
	p.mu.Unlock()

	return p.alloc.Matrix(rows, cols)
}

// Put returns m to the pool.
func (p *Pool) Put(m *Matrix) {
	if m == nil {
		return
	}
	key := shape{m.Rows(), m.Cols()}

	p.mu.Lock()
	p.free[key] = append(p.free[key], m)
	p.mu.Unlock()
}
