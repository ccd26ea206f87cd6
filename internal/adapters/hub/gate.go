package hub

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of outbound requests in flight across the
// whole process. A zero or negative limit disables the bound.
type Gate struct {
	sem *semaphore.Weighted
}

func NewGate(limit int) *Gate {
	if limit <= 0 {
		return &Gate{}
	}
	return &Gate{sem: semaphore.NewWeighted(int64(limit))}
}

// Do runs fn holding one slot. The slot is released on every exit
// path. Acquisition blocks until a slot frees or ctx is cancelled.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if g == nil || g.sem == nil {
		return fn()
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	return fn()
}
