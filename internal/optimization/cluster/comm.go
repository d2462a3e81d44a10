// Package cluster runs a fixed group of workers in single-program
// multiple-data style and provides the collective operations they use to
// exchange the population and the per-worker results: scatter, barrier,
// tree reduction and gather. Every collective honours the run context, so
// when one worker fails the others return instead of waiting forever.
package cluster

import (
	"context"
	"sync"

	"github.com/copyleftdev/sharksmell/internal/optimization"
)

// Root is the rank that coordinates scatter, reduce and gather.
const Root = 0

// mailboxDepth bounds the number of undelivered messages between two ranks.
const mailboxDepth = 4

// world is the state shared by every Comm of one run.
type world struct {
	size    int
	barrier *barrier

	// mail carries messages from one rank to another in FIFO order. Links
	// are created on first use, so a run holds one per pair that actually
	// communicates: O(size) for scatter, gather and the tree reduction.
	mu   sync.Mutex
	mail map[link]chan []float64
}

type link struct {
	to, from int
}

func newWorld(size int) *world {
	return &world{
		size:    size,
		barrier: newBarrier(size),
		mail:    make(map[link]chan []float64),
	}
}

// mailbox returns the channel carrying messages from one rank to another.
func (w *world) mailbox(to, from int) chan []float64 {
	key := link{to: to, from: from}

	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.mail[key]
	if !ok {
		ch = make(chan []float64, mailboxDepth)
		w.mail[key] = ch
	}
	return ch
}

// links returns the number of mailboxes created so far.
func (w *world) links() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.mail)
}

// Comm is one worker's handle on the group.
type Comm struct {
	rank  int
	world *world
}

// Rank returns the worker's index in [0, Size).
func (c *Comm) Rank() int {
	return c.rank
}

// Size returns the number of workers.
func (c *Comm) Size() int {
	return c.world.size
}

// IsRoot reports whether this worker is the coordinator.
func (c *Comm) IsRoot() bool {
	return c.rank == Root
}

func (c *Comm) send(ctx context.Context, to int, msg []float64) error {
	select {
	case c.world.mailbox(to, c.rank) <- msg:
		return nil
	case <-ctx.Done():
		return aborted(ctx, "send to rank %d", to)
	}
}

func (c *Comm) recv(ctx context.Context, from int) ([]float64, error) {
	select {
	case msg := <-c.world.mailbox(c.rank, from):
		return msg, nil
	case <-ctx.Done():
		return nil, aborted(ctx, "receive from rank %d", from)
	}
}

// Barrier blocks until every worker has called it.
func (c *Comm) Barrier(ctx context.Context) error {
	return c.world.barrier.wait(ctx)
}

type barrier struct {
	mu      sync.Mutex
	n       int
	count   int
	release chan struct{}
}

func newBarrier(n int) *barrier {
	return &barrier{n: n, release: make(chan struct{})}
}

func (b *barrier) wait(ctx context.Context) error {
	b.mu.Lock()
	ch := b.release
	b.count++
	if b.count == b.n {
		b.count = 0
		b.release = make(chan struct{})
		close(ch)
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return aborted(ctx, "barrier")
	}
}

func aborted(ctx context.Context, format string, args ...interface{}) error {
	args = append(args, ctx.Err())
	return optimization.WrapErrorf(optimization.ErrAborted, format+": %v", args...).WithComponent("cluster")
}
