package pianod

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate admits one request at a time onto the connection. Waiting callers
// are admitted in the order they arrived.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate returns an open gate.
func NewGate() *Gate {
	return &Gate{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the caller holds the gate or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release hands the gate to the next waiter.
func (g *Gate) Release() {
	g.sem.Release(1)
}
