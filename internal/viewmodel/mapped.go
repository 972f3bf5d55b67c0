// Package viewmodel keeps keyed, reconciled lists of models, e.g. the
// events of every team the user has opened, and pages them in from a
// repository.
package viewmodel

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/CristianUrbainski/teammate-android/internal/api"
	"github.com/CristianUrbainski/teammate-android/internal/diff"
	"github.com/CristianUrbainski/teammate-android/internal/logging"
	"github.com/CristianUrbainski/teammate-android/internal/metrics"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
)

// Repository is the part of a repo.Repo a view model reads and writes
// through.
type Repository[M any] interface {
	Get(ctx context.Context, id string, emit func(M) error) error
	ModelsBefore(ctx context.Context, parent string, before time.Time, emit func([]M) error) error
	CreateOrUpdate(ctx context.Context, m M) (M, error)
	Delete(ctx context.Context, m M) error
}

// FetchFunc streams pages of models under key older than before. A zero
// before asks for the newest page.
type FetchFunc[K comparable, V any] func(ctx context.Context, key K, before time.Time, emit func([]V) error) error

// MappedConfig wires a Mapped.
type MappedConfig[K comparable, V diff.Differentiable] struct {
	Name  string
	Loop  *reconcile.Loop
	Fetch FetchFunc[K, V]

	// Date is the pagination date of a value.
	Date func(V) time.Time

	// Merge combines a list with a fetched page. Defaults to
	// reconcile.PreserveDescending.
	Merge reconcile.Merge

	// Cursor picks the value whose date bounds the next page. Defaults to
	// the last value in the list.
	Cursor func(items []diff.Differentiable) (V, bool)

	// OnInvalidKey runs when a list fetch is rejected for its key. The
	// key's list is dropped either way.
	OnInvalidKey func(key K)

	// OnChange receives outcomes of changes no caller asked for, such as
	// evictions.
	OnChange func(key K, o reconcile.Outcome)

	Logger *slog.Logger
}

// Mapped is a set of reconciled lists of V, one per key. Lists are
// created on first use. Every read and write of a list happens on the
// loop; the map itself is safe from any goroutine.
type Mapped[K comparable, V diff.Differentiable] struct {
	name         string
	loop         *reconcile.Loop
	fetch        FetchFunc[K, V]
	date         func(V) time.Time
	merge        reconcile.Merge
	cursor       func([]diff.Differentiable) (V, bool)
	onInvalidKey func(K)
	onChange     func(K, reconcile.Outcome)
	logger       *slog.Logger

	lists *xsync.MapOf[K, *reconcile.List]
	pulls *xsync.MapOf[K, *atomic.Int64]
}

// NewMapped creates an empty Mapped.
func NewMapped[K comparable, V diff.Differentiable](cfg MappedConfig[K, V]) *Mapped[K, V] {
	m := &Mapped[K, V]{
		name:         cfg.Name,
		loop:         cfg.Loop,
		fetch:        cfg.Fetch,
		date:         cfg.Date,
		merge:        cfg.Merge,
		cursor:       cfg.Cursor,
		onInvalidKey: cfg.OnInvalidKey,
		onChange:     cfg.OnChange,
		logger:       logging.Component(cfg.Logger, "viewmodel").With(slog.String("viewmodel", cfg.Name)),
		lists:        xsync.NewMapOf[K, *reconcile.List](),
		pulls:        xsync.NewMapOf[K, *atomic.Int64](),
	}

	if m.merge == nil {
		m.merge = reconcile.PreserveDescending
	}

	if m.cursor == nil {
		m.cursor = LastOf[V]
	}

	return m
}

// LastOf returns the last item that is a V.
func LastOf[V diff.Differentiable](items []diff.Differentiable) (V, bool) {
	for i := len(items) - 1; i >= 0; i-- {
		if v, ok := items[i].(V); ok {
			return v, true
		}
	}

	var zero V

	return zero, false
}

// FirstOf returns the first item that is a V and satisfies keep.
func FirstOf[V diff.Differentiable](keep func(V) bool) func([]diff.Differentiable) (V, bool) {
	return func(items []diff.Differentiable) (V, bool) {
		for _, item := range items {
			if v, ok := item.(V); ok && keep(v) {
				return v, true
			}
		}

		var zero V

		return zero, false
	}
}

// Name identifies the view model in logs and metrics.
func (m *Mapped[K, V]) Name() string { return m.name }

// Loop is the loop every list is confined to.
func (m *Mapped[K, V]) Loop() *reconcile.Loop { return m.loop }

// List returns the list for key, creating it if needed.
func (m *Mapped[K, V]) List(key K) *reconcile.List {
	list, _ := m.lists.LoadOrCompute(key, func() *reconcile.List {
		return reconcile.NewList(m.name)
	})

	return list
}

// Has reports whether key currently has a list.
func (m *Mapped[K, V]) Has(key K) bool {
	_, ok := m.lists.Load(key)
	return ok
}

// AddLoaded merges v into the lists of those keys that are already loaded.
// Lists that change are reported to OnChange.
func (m *Mapped[K, V]) AddLoaded(ctx context.Context, v V, keys ...K) error {
	for _, key := range keys {
		if !m.Has(key) {
			continue
		}

		if err := m.Add(ctx, key, m.changed(key), v); err != nil {
			return err
		}
	}

	return nil
}

// Keys returns the keys that currently have a list.
func (m *Mapped[K, V]) Keys() []K {
	keys := make([]K, 0, m.lists.Size())
	m.lists.Range(func(k K, _ *reconcile.List) bool {
		keys = append(keys, k)
		return true
	})

	return keys
}

// Items returns a snapshot of key's list.
func (m *Mapped[K, V]) Items(ctx context.Context, key K) ([]diff.Differentiable, error) {
	list := m.List(key)

	var out []diff.Differentiable

	err := m.loop.Call(ctx, func() { out = list.Snapshot() })

	return out, err
}

// Values returns the items of key's list that are a V.
func (m *Mapped[K, V]) Values(ctx context.Context, key K) ([]V, error) {
	items, err := m.Items(ctx, key)
	if err != nil {
		return nil, err
	}

	out := make([]V, 0, len(items))
	for _, item := range items {
		if v, ok := item.(V); ok {
			out = append(out, v)
		}
	}

	return out, nil
}

// GetMany loads the next older page, or refreshes from the top when
// fetchLatest is set.
func (m *Mapped[K, V]) GetMany(ctx context.Context, key K, fetchLatest bool, deliver func(reconcile.Outcome)) error {
	if fetchLatest {
		return m.Refresh(ctx, key, deliver)
	}

	return m.GetMore(ctx, key, deliver)
}

// GetMore pages in values older than the list's cursor value. An empty
// list has no cursor and loads the first page.
func (m *Mapped[K, V]) GetMore(ctx context.Context, key K, deliver func(reconcile.Outcome)) error {
	list := m.List(key)

	var before time.Time

	err := m.loop.Call(ctx, func() {
		if v, ok := m.cursor(list.Snapshot()); ok {
			before = m.date(v)
		}
	})
	if err != nil {
		return err
	}

	err = reconcile.Of(ctx, m.loop, m.source(key, before), list, m.merge, deliver)

	return m.checkInvalidKey(ctx, key, err)
}

// Refresh reloads key from the newest page. Of all refreshes of key in
// flight, only the first emission clears the list, and it does so in the
// same loop step as its merge; every other emission merges. The guard
// resets once a refresh finishes.
func (m *Mapped[K, V]) Refresh(ctx context.Context, key K, deliver func(reconcile.Outcome)) error {
	list := m.List(key)
	pulls, _ := m.pulls.LoadOrCompute(key, func() *atomic.Int64 { return new(atomic.Int64) })

	defer pulls.Store(0)

	err := reconcile.Of(ctx, m.loop, m.source(key, time.Time{}), list, func(current, fetched []diff.Differentiable) []diff.Differentiable {
		if pulls.Add(1) == 1 {
			current = nil
		}

		return m.merge(current, fetched)
	}, deliver)

	return m.checkInvalidKey(ctx, key, err)
}

func (m *Mapped[K, V]) source(key K, before time.Time) reconcile.Source {
	return func(ctx context.Context, emit func([]diff.Differentiable) error) error {
		return m.fetch(ctx, key, before, func(page []V) error {
			return emit(reconcile.Items(page))
		})
	}
}

// Add merges values into key's list.
func (m *Mapped[K, V]) Add(ctx context.Context, key K, deliver func(reconcile.Outcome), values ...V) error {
	return reconcile.Of(ctx, m.loop, reconcile.Once(func(context.Context) ([]diff.Differentiable, error) {
		return reconcile.Items(values), nil
	}), m.List(key), m.merge, deliver)
}

// Mutate runs step on key's list.
func (m *Mapped[K, V]) Mutate(ctx context.Context, key K, step reconcile.Step, deliver func(reconcile.Outcome)) error {
	_, err := reconcile.Mutate(ctx, m.loop, m.List(key), step, deliver)
	return err
}

// RemoveWhere drops matching items from every list. Lists that change are
// reported to OnChange.
func (m *Mapped[K, V]) RemoveWhere(ctx context.Context, drop func(diff.Differentiable) bool) error {
	for _, key := range m.Keys() {
		list, ok := m.lists.Load(key)
		if !ok {
			continue
		}

		_, err := reconcile.Mutate(ctx, m.loop, list, reconcile.Filter(drop), m.changed(key))
		if err != nil {
			return err
		}
	}

	return nil
}

// Remove drops the item with id from every list.
func (m *Mapped[K, V]) Remove(ctx context.Context, id string) error {
	return m.RemoveWhere(ctx, func(d diff.Differentiable) bool { return d.ItemID() == id })
}

// Replace swaps v into every list already holding an item with its id.
func (m *Mapped[K, V]) Replace(ctx context.Context, v V) error {
	for _, key := range m.Keys() {
		list, ok := m.lists.Load(key)
		if !ok {
			continue
		}

		_, err := reconcile.Mutate(ctx, m.loop, list, func(current []diff.Differentiable) []diff.Differentiable {
			for i, item := range current {
				if item.ItemID() == v.ItemID() {
					current[i] = v
				}
			}

			return current
		}, m.changed(key))
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *Mapped[K, V]) changed(key K) func(reconcile.Outcome) {
	return func(o reconcile.Outcome) {
		if m.onChange != nil && !o.Diff.Empty() {
			m.onChange(key, o)
		}
	}
}

// Drop forgets key's list.
func (m *Mapped[K, V]) Drop(key K) {
	m.lists.Delete(key)
	m.pulls.Delete(key)
}

// Clear forgets every list.
func (m *Mapped[K, V]) Clear() {
	m.lists.Clear()
	m.pulls.Clear()
}

// CheckInvalidObject evicts the item with id from every list when err
// says the backend no longer knows it. err is returned unchanged.
func (m *Mapped[K, V]) CheckInvalidObject(ctx context.Context, err error, id string) error {
	if err == nil || !api.IsInvalidObject(err) {
		return err
	}

	metrics.Evictions.WithLabelValues(m.name, "invalid_object").Inc()
	m.logger.Info("evicting invalid object", slog.String("id", id))

	if rmErr := m.Remove(ctx, id); rmErr != nil {
		m.logger.Debug("evicting invalid object", slog.String("error", rmErr.Error()))
	}

	return err
}

// checkInvalidKey drops key when err says the list itself is no longer
// accessible, e.g. the user left the team.
func (m *Mapped[K, V]) checkInvalidKey(ctx context.Context, key K, err error) error {
	if err == nil || ctx.Err() != nil {
		return err
	}

	if _, ok := api.MessageOf(err); !ok || api.IsValidModel(err) {
		return err
	}

	metrics.Evictions.WithLabelValues(m.name, "invalid_key").Inc()
	m.logger.Info("dropping invalid key", slog.Any("key", key), slog.String("error", err.Error()))

	m.Drop(key)

	if m.onInvalidKey != nil {
		m.onInvalidKey(key)
	}

	return err
}
