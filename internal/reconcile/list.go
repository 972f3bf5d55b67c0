package reconcile

import (
	"slices"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
)

// List is a reconciled list. It must only be read or written from jobs on
// the Loop that owns it; it carries no lock of its own.
type List struct {
	name    string
	items   []diff.Differentiable
	version uint64
}

// NewList creates a list. name labels the list in logs and metrics.
func NewList(name string, items ...diff.Differentiable) *List {
	return &List{name: name, items: Unique(slices.Clone(items))}
}

func (l *List) Name() string { return l.name }

// Len returns the number of items.
func (l *List) Len() int { return len(l.items) }

// Version increments on every Replace.
func (l *List) Version() uint64 { return l.version }

// Snapshot returns a copy of the items that later merges will not touch.
func (l *List) Snapshot() []diff.Differentiable {
	return slices.Clone(l.items)
}

// Replace swaps in a new item slice. The list takes ownership of items.
func (l *List) Replace(items []diff.Differentiable) {
	l.items = items
	l.version++
}

// Remove drops the item with the given id without producing a diff. It
// reports whether anything was removed.
func (l *List) Remove(id string) bool {
	return l.RemoveFunc(func(d diff.Differentiable) bool { return d.ItemID() == id }) > 0
}

// RemoveFunc drops every item matching drop and returns how many went.
func (l *List) RemoveFunc(drop func(diff.Differentiable) bool) int {
	before := len(l.items)

	l.items = slices.DeleteFunc(slices.Clone(l.items), drop)
	if removed := before - len(l.items); removed > 0 {
		l.version++
		return removed
	}

	return 0
}

// Find returns the item with the given id.
func (l *List) Find(id string) (diff.Differentiable, bool) {
	if i := l.IndexOf(id); i >= 0 {
		return l.items[i], true
	}

	return nil, false
}

// IndexOf returns the position of id, or -1.
func (l *List) IndexOf(id string) int {
	return slices.IndexFunc(l.items, func(d diff.Differentiable) bool {
		return d.ItemID() == id
	})
}

// Last returns the last item that satisfies match.
func (l *List) Last(match func(diff.Differentiable) bool) (diff.Differentiable, bool) {
	for i := len(l.items) - 1; i >= 0; i-- {
		if match(l.items[i]) {
			return l.items[i], true
		}
	}

	return nil, false
}
