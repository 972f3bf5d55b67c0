package reconcile

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Bag scopes a set of operations to one consumer's lifetime. Disposing the
// bag cancels every operation started through it and waits for them to
// return. A failure in one operation does not cancel the others.
type Bag struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group
}

// NewBag creates a bag whose operations end when parent ends or the bag is
// disposed.
func NewBag(parent context.Context) *Bag {
	ctx, cancel := context.WithCancel(parent)

	return &Bag{ctx: ctx, cancel: cancel}
}

// Context is the context handed to operations started by Go.
func (b *Bag) Context() context.Context {
	return b.ctx
}

// Go starts fn in the bag.
func (b *Bag) Go(fn func(ctx context.Context) error) {
	b.group.Go(func() error {
		return fn(b.ctx)
	})
}

// Dispose cancels all operations and waits for them. It returns the first
// error other than cancellation.
func (b *Bag) Dispose() error {
	b.cancel()

	err := b.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
