package reconcile

import (
	"slices"
	"strings"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
)

// Dated items are ordered by date within a reconciled list.
type Dated interface {
	SortDate() time.Time
}

// Ranked items carry an explicit position, used for field projections
// whose order is fixed by the model that produced them.
type Ranked interface {
	Rank() int
}

// Merge combines freshly fetched items into the current list. It must be
// pure: it may reorder or drop its inputs but must not retain or mutate
// them.
type Merge func(current, fetched []diff.Differentiable) []diff.Differentiable

// Compare orders ranked items before dated items before anything else.
// Ranks and dates compare ascending; ties break on id so the order is
// total.
func Compare(a, b diff.Differentiable) int {
	if c := orderClass(a) - orderClass(b); c != 0 {
		return c
	}

	if ra, ok := a.(Ranked); ok {
		if c := ra.Rank() - b.(Ranked).Rank(); c != 0 {
			return c
		}
	} else if da, ok := a.(Dated); ok {
		if c := da.SortDate().Compare(b.(Dated).SortDate()); c != 0 {
			return c
		}
	}

	return strings.Compare(a.ItemID(), b.ItemID())
}

func orderClass(d diff.Differentiable) int {
	switch d.(type) {
	case Ranked:
		return 0
	case Dated:
		return 1
	}

	return 2
}

// Descending reverses Compare.
func Descending(a, b diff.Differentiable) int {
	return Compare(b, a)
}

// Preserve returns a merge that keeps every current item, lets fetched
// items replace current ones with the same id, and sorts the result.
func Preserve(cmp func(a, b diff.Differentiable) int) Merge {
	return func(current, fetched []diff.Differentiable) []diff.Differentiable {
		merged := Unique(append(slices.Clone(fetched), current...))
		slices.SortStableFunc(merged, cmp)

		return merged
	}
}

// ReplaceWith returns a merge that discards the current items and keeps
// the fetched ones, sorted.
func ReplaceWith(cmp func(a, b diff.Differentiable) int) Merge {
	return func(_, fetched []diff.Differentiable) []diff.Differentiable {
		merged := Unique(slices.Clone(fetched))
		slices.SortStableFunc(merged, cmp)

		return merged
	}
}

var (
	// PreserveAscending keeps existing items and sorts oldest first.
	PreserveAscending = Preserve(Compare)

	// PreserveDescending keeps existing items and sorts newest first.
	PreserveDescending = Preserve(Descending)

	// Replace keeps only the fetched items, oldest first.
	Replace = ReplaceWith(Compare)
)

// RemoveWhere wraps a merge so that items matching drop are filtered from
// its result, e.g. declined games.
func RemoveWhere(m Merge, drop func(diff.Differentiable) bool) Merge {
	return func(current, fetched []diff.Differentiable) []diff.Differentiable {
		return slices.DeleteFunc(m(current, fetched), drop)
	}
}

// Unique drops later items whose id has already been seen. The input
// slice is reused.
func Unique(items []diff.Differentiable) []diff.Differentiable {
	seen := make(map[string]struct{}, len(items))

	return slices.DeleteFunc(items, func(d diff.Differentiable) bool {
		if _, dup := seen[d.ItemID()]; dup {
			return true
		}

		seen[d.ItemID()] = struct{}{}

		return false
	})
}

// Without returns a step that removes the given ids.
func Without(ids ...string) Step {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	return func(current []diff.Differentiable) []diff.Differentiable {
		return slices.DeleteFunc(current, func(d diff.Differentiable) bool {
			_, ok := drop[d.ItemID()]
			return ok
		})
	}
}

// Filter returns a step that removes items matching drop.
func Filter(drop func(diff.Differentiable) bool) Step {
	return func(current []diff.Differentiable) []diff.Differentiable {
		return slices.DeleteFunc(current, drop)
	}
}
