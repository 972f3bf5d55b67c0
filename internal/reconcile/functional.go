package reconcile

import (
	"context"
	"slices"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
	"github.com/CristianUrbainski/teammate-android/internal/metrics"
)

// Source produces lists asynchronously. It calls emit once per list it
// produces (once for a single-shot fetch, repeatedly for a stream such as
// local-then-remote) and must return emit's error if emit fails.
type Source func(ctx context.Context, emit func([]diff.Differentiable) error) error

// Once adapts a single-shot fetch to a Source.
func Once(fetch func(ctx context.Context) ([]diff.Differentiable, error)) Source {
	return func(ctx context.Context, emit func([]diff.Differentiable) error) error {
		items, err := fetch(ctx)
		if err != nil {
			return err
		}

		return emit(items)
	}
}

// Items lifts a slice of concrete items into a Differentiable slice.
func Items[T diff.Differentiable](items []T) []diff.Differentiable {
	out := make([]diff.Differentiable, len(items))
	for i, item := range items {
		out[i] = item
	}

	return out
}

// Step rewrites the current items. It runs on the loop exactly once per
// Mutate, so it may also update loop-confined state such as a retained
// model, but it must not retain current.
type Step func(current []diff.Differentiable) []diff.Differentiable

// Outcome is what a reconcile step hands back: the post-merge items and
// the diff from the pre-merge snapshot.
type Outcome struct {
	Items []diff.Differentiable
	Diff  diff.Result
}

// Mutate runs step against list on the loop. The pre-step snapshot and the
// post-step items are diffed, the list is replaced, and deliver (if set)
// receives the outcome, all within the same loop job. Duplicate ids in the
// step's result are dropped, first occurrence wins.
func Mutate(ctx context.Context, loop *Loop, list *List, step Step, deliver func(Outcome)) (Outcome, error) {
	var out Outcome

	err := loop.Call(ctx, func() {
		start := time.Now()

		snapshot := list.Snapshot()
		next := Unique(step(slices.Clone(snapshot)))
		result := diff.Calculate(snapshot, next)

		list.Replace(next)
		out = Outcome{Items: slices.Clone(next), Diff: result}

		metrics.ObserveMerge(list.Name(), result, len(next), time.Since(start))

		if deliver != nil {
			deliver(out)
		}
	})

	return out, err
}

// Of is FunctionalDiff: every list src emits is merged into list with
// merge and delivered as an Outcome on the loop. If src fails, its error
// is returned unchanged and nothing further is merged; emissions already
// delivered stay applied. Cancelling ctx drops merges that have not yet
// started on the loop.
//
// Responses are merged in the order they reach the loop, not the order the
// requests were made.
func Of(ctx context.Context, loop *Loop, src Source, list *List, merge Merge, deliver func(Outcome)) error {
	return src(ctx, func(fetched []diff.Differentiable) error {
		fetched = slices.Clone(fetched)

		_, err := Mutate(ctx, loop, list, func(current []diff.Differentiable) []diff.Differentiable {
			return merge(current, fetched)
		}, deliver)

		return err
	})
}
