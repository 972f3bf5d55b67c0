// Package gofer drives a single-model detail screen: one retained model and
// the reconciled list of its field projections and related items. Every
// change to the model or the list happens on the reconcile loop.
package gofer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
	"github.com/CristianUrbainski/teammate-android/internal/logging"
	"github.com/CristianUrbainski/teammate-android/internal/metrics"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
)

// State is where a gofer is in its fetch and watch cycle.
type State int32

const (
	NoPendingChange State = iota
	ChangeDetected
	Fetching
	Error
)

func (s State) String() string {
	switch s {
	case NoPendingChange:
		return "no_pending_change"
	case ChangeDetected:
		return "change_detected"
	case Fetching:
		return "fetching"
	case Error:
		return "error"
	}

	return "unknown"
}

// ChangeEmitter reports whether something the screen depends on changed
// since it was last asked.
type ChangeEmitter func(ctx context.Context) (bool, error)

// Funcs are the persistence operations a gofer delegates to, usually a
// repository's methods.
type Funcs[M any] struct {
	Get    func(ctx context.Context, id string, emit func(M) error) error
	Upsert func(ctx context.Context, m M) (M, error)
	Delete func(ctx context.Context, m M) error
}

// Config wires a gofer.
type Config[M any] struct {
	Name  string
	Loop  *reconcile.Loop
	Funcs Funcs[M]

	// Derive projects the model into list items.
	Derive func(M) []diff.Differentiable

	// Related fetches items shown alongside the model, e.g. an event's
	// guests. Optional.
	Related func(ctx context.Context, m M) ([]diff.Differentiable, error)

	// Merge combines the current items with re-derived ones. Defaults to
	// reconcile.PreserveAscending.
	Merge reconcile.Merge

	Changes ChangeEmitter

	// OnError receives every failure before it is returned.
	OnError func(error)

	Logger *slog.Logger
}

// Gofer holds one model and its item list.
type Gofer[M model.Model[M]] struct {
	name    string
	model   M
	list    *reconcile.List
	loop    *reconcile.Loop
	funcs   Funcs[M]
	derive  func(M) []diff.Differentiable
	related func(ctx context.Context, m M) ([]diff.Differentiable, error)
	merge   reconcile.Merge
	changes ChangeEmitter
	onError func(error)
	logger  *slog.Logger

	state   atomic.Int32
	pending atomic.Bool
}

// New creates a gofer around m. The initial items are derived from m
// immediately; m must not be touched by the caller afterwards.
func New[M model.Model[M]](m M, cfg Config[M]) *Gofer[M] {
	merge := cfg.Merge
	if merge == nil {
		merge = reconcile.PreserveAscending
	}

	g := &Gofer[M]{
		name:    cfg.Name,
		model:   m,
		loop:    cfg.Loop,
		funcs:   cfg.Funcs,
		derive:  cfg.Derive,
		related: cfg.Related,
		merge:   merge,
		changes: cfg.Changes,
		onError: cfg.OnError,
		logger:  logging.Component(cfg.Logger, "gofer").With(slog.String("gofer", cfg.Name), slog.String("id", m.ItemID())),
	}

	initial := merge(nil, g.derive(m))
	g.list = reconcile.NewList("gofer:"+cfg.Name, initial...)

	return g
}

// State returns the current state.
func (g *Gofer[M]) State() State { return State(g.state.Load()) }

func (g *Gofer[M]) setState(s State) { g.state.Store(int32(s)) }

// HasPendingChange reports whether Watch saw a change not yet cleared.
func (g *Gofer[M]) HasPendingChange() bool { return g.pending.Load() }

// ClearChange acknowledges a pending change.
func (g *Gofer[M]) ClearChange() {
	g.pending.Store(false)
	g.state.CompareAndSwap(int32(ChangeDetected), int32(NoPendingChange))
}

// Model returns a copy of the retained model.
func (g *Gofer[M]) Model(ctx context.Context) (M, error) {
	var out M

	err := g.loop.Call(ctx, func() { out = g.model.Clone() })

	return out, err
}

// Items returns a snapshot of the item list.
func (g *Gofer[M]) Items(ctx context.Context) ([]diff.Differentiable, error) {
	var out []diff.Differentiable

	err := g.loop.Call(ctx, func() { out = g.list.Snapshot() })

	return out, err
}

// Edit applies fn to the retained model on the loop and re-derives the
// items, without saving.
func (g *Gofer[M]) Edit(ctx context.Context, fn func(M), deliver func(reconcile.Outcome)) error {
	_, err := reconcile.Mutate(ctx, g.loop, g.list, func(current []diff.Differentiable) []diff.Differentiable {
		fn(g.model)
		return g.merge(current, g.derive(g.model))
	}, deliver)

	return g.fail(err)
}

// Fetch streams the model from its source, applying each copy to the
// retained model and merging the re-derived items. Related items, if
// any, are fetched after the model; a failure there does not undo the
// model's merges.
func (g *Gofer[M]) Fetch(ctx context.Context, deliver func(reconcile.Outcome)) error {
	g.setState(Fetching)

	id, err := g.id(ctx)
	if err != nil {
		return g.fail(err)
	}

	if id == "" {
		g.setState(NoPendingChange)
		return nil
	}

	errs := []error{g.funcs.Get(ctx, id, func(fetched M) error {
		_, err := reconcile.Mutate(ctx, g.loop, g.list, func(current []diff.Differentiable) []diff.Differentiable {
			g.model.Update(fetched)
			return g.merge(current, g.derive(g.model))
		}, deliver)

		return err
	})}

	if g.related != nil {
		errs = append(errs, g.mergeRelated(ctx, deliver))
	}

	err = errors.Join(errs...)
	if err == nil {
		g.setState(NoPendingChange)
	}

	return g.fail(err)
}

func (g *Gofer[M]) mergeRelated(ctx context.Context, deliver func(reconcile.Outcome)) error {
	snap, err := g.Model(ctx)
	if err != nil {
		return err
	}

	return reconcile.Of(ctx, g.loop, reconcile.Once(func(ctx context.Context) ([]diff.Differentiable, error) {
		return g.related(ctx, snap)
	}), g.list, g.merge, deliver)
}

// id reads the model's id on the loop. It is empty until the model is
// first saved.
func (g *Gofer[M]) id(ctx context.Context) (string, error) {
	var id string

	err := g.loop.Call(ctx, func() { id = g.model.ItemID() })

	return id, err
}

// Save sends a copy of the model to Upsert. Only on success is the
// retained model updated and the list re-derived; on failure the
// retained model is unchanged.
func (g *Gofer[M]) Save(ctx context.Context, deliver func(reconcile.Outcome)) error {
	snap, err := g.Model(ctx)
	if err != nil {
		return g.fail(err)
	}

	saved, err := g.funcs.Upsert(ctx, snap)
	if err != nil {
		return g.fail(err)
	}

	return g.Edit(ctx, func(m M) { m.Update(saved) }, deliver)
}

// Remove deletes the model. Callers drop it from any lists they hold.
func (g *Gofer[M]) Remove(ctx context.Context) error {
	snap, err := g.Model(ctx)
	if err != nil {
		return g.fail(err)
	}

	return g.fail(g.funcs.Delete(ctx, snap))
}

// Watch polls the change emitter every interval until ctx ends. A
// detected change sets the pending flag.
func (g *Gofer[M]) Watch(ctx context.Context, interval time.Duration) error {
	if g.changes == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.poll(ctx)
		}
	}
}

func (g *Gofer[M]) poll(ctx context.Context) {
	changed, err := g.changes(ctx)
	if err != nil {
		if ctx.Err() == nil {
			g.logger.Debug("change check failed", slog.String("error", err.Error()))
		}

		return
	}

	if !changed {
		return
	}

	metrics.GoferChanges.WithLabelValues(g.name).Inc()
	g.pending.Store(true)
	g.setState(ChangeDetected)
	g.logger.Info("change detected")
}

// fail routes err to the error consumer and returns it.
func (g *Gofer[M]) fail(err error) error {
	if err == nil {
		return nil
	}

	g.setState(Error)

	if g.onError != nil {
		g.onError(err)
	}

	return err
}
