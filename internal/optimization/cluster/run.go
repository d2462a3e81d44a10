package cluster

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	apperrors "github.com/copyleftdev/sharksmell/internal/errors"
	"github.com/copyleftdev/sharksmell/internal/optimization"
)

// WorkerFunc is the program every worker executes.
type WorkerFunc func(ctx context.Context, comm *Comm) error

// Run starts size workers executing fn and waits for all of them. The first
// error, or a recovered panic, cancels the context shared by the workers so
// that peers blocked in a collective operation abort, and is returned.
func Run(ctx context.Context, size int, fn WorkerFunc) error {
	if size < 1 {
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "worker count must be positive, got %d", size)
	}

	return run(ctx, newWorld(size), fn)
}

func run(ctx context.Context, w *world, fn WorkerFunc) error {
	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for rank := 0; rank < w.size; rank++ {
		comm := &Comm{rank: rank, world: w}
		p.Go(func(ctx context.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = apperrors.FromPanic(r).
						WithOperation("worker").
						WithComponent("cluster")
				}
			}()
			return fn(ctx, comm)
		})
	}
	return p.Wait()
}
