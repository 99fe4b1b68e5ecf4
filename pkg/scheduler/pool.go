package scheduler

import (
	"context"

	"github.com/entityvault/migrator/pkg/entityservice"
)

// pool is the ambient worker pool described in spec.md §9, handed to every
// MultipartCopy call so that nested fan-out inside a copy submits through
// this one instance instead of creating a pool of its own. Its capacity is
// Options.Concurrency. The scheduler's outer dispatch tasks do not run
// through it: they run on their own goroutines, capped separately at half
// of Options.Concurrency (see Scheduler.Run), so outer tasks and nested
// copy work together can exceed Options.Concurrency.
type pool struct {
	sem chan struct{}
}

func newPool(capacity int) *pool {
	if capacity < 1 {
		capacity = 1
	}
	return &pool{sem: make(chan struct{}, capacity)}
}

// Submit blocks until a slot is free, then runs fn on the calling
// goroutine, releasing the slot when fn returns.
func (p *pool) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()
	return fn(ctx)
}

var _ entityservice.Executor = (*pool)(nil)
