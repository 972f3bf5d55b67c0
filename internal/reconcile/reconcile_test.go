package reconcile

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
	apperrors "github.com/CristianUrbainski/teammate-android/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	id   string
	at   time.Time
	body string
}

func (e entry) ItemID() string { return e.id }

func (e entry) ContentEqual(other diff.Differentiable) bool {
	o, ok := other.(entry)
	return ok && o.body == e.body && o.at.Equal(e.at)
}

func (e entry) SortDate() time.Time { return e.at }

type field struct {
	id   string
	rank int
}

func (f field) ItemID() string { return f.id }
func (f field) Rank() int      { return f.rank }

func (f field) ContentEqual(o diff.Differentiable) bool {
	return o == diff.Differentiable(f)
}

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func e(id string, d int) entry {
	return entry{id: id, at: day(d), body: "v1"}
}

func startLoop(t *testing.T) *Loop {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	loop := NewLoop(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return loop
}

func idsOf(items []diff.Differentiable) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ItemID()
	}
	return out
}

func snapshot(t *testing.T, loop *Loop, list *List) []diff.Differentiable {
	t.Helper()

	var items []diff.Differentiable
	require.NoError(t, loop.Call(context.Background(), func() { items = list.Snapshot() }))

	return items
}

func emitting(lists ...[]diff.Differentiable) Source {
	return func(ctx context.Context, emit func([]diff.Differentiable) error) error {
		for _, l := range lists {
			if err := emit(l); err != nil {
				return err
			}
		}
		return nil
	}
}

// --- Loop ---

func TestLoop_PostRunsInOrder(t *testing.T) {
	loop := startLoop(t)

	var got []int
	for i := range 5 {
		require.NoError(t, loop.Post(context.Background(), func() { got = append(got, i) }))
	}
	require.NoError(t, loop.Call(context.Background(), func() {}))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoop_CallAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := NewLoop(nil)

	done := make(chan error)
	go func() { done <- loop.Run(ctx) }()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	err := loop.Call(context.Background(), func() { t.Fatal("must not run") })
	assert.ErrorIs(t, err, apperrors.ErrLoopStopped)
}

func TestLoop_CancelledJobNeverRuns(t *testing.T) {
	loop := NewLoop(nil)

	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	require.NoError(t, loop.Post(ctx, func() { ran = true }))
	cancel()

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go loop.Run(runCtx)

	require.NoError(t, loop.Call(context.Background(), func() {}))
	assert.False(t, ran)
}

func TestLoop_CallWaitsForStartedJob(t *testing.T) {
	loop := startLoop(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := false
	err := loop.Call(ctx, func() {
		cancel()
		time.Sleep(20 * time.Millisecond)
		finished = true
	})

	require.NoError(t, err, "a job that ran reports success")
	assert.True(t, finished)
}

func TestLoop_AbandonedJobNeverRuns(t *testing.T) {
	loop := startLoop(t)

	release := make(chan struct{})
	require.NoError(t, loop.Post(context.Background(), func() { <-release }))

	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	errc := make(chan error, 1)

	go func() { errc <- loop.Call(ctx, func() { ran = true }) }()

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	close(release)
	require.NoError(t, loop.Call(context.Background(), func() {}))
	assert.False(t, ran)
}

// --- Of ---

func TestOf_MergesAndDelivers(t *testing.T) {
	loop := startLoop(t)
	list := NewList("test", e("a", 1))

	var outcomes []Outcome
	err := Of(context.Background(), loop,
		emitting([]diff.Differentiable{e("b", 2), e("c", 3)}),
		list, PreserveDescending, func(o Outcome) { outcomes = append(outcomes, o) })
	require.NoError(t, err)

	require.Len(t, outcomes, 1)
	assert.Equal(t, []string{"c", "b", "a"}, idsOf(outcomes[0].Items))
	assert.Equal(t, []string{"c", "b", "a"}, idsOf(snapshot(t, loop, list)))

	inserted, removed, _, _ := outcomes[0].Diff.Counts()
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 0, removed)
}

func TestOf_NoDuplicateIDsAfterMerge(t *testing.T) {
	loop := startLoop(t)
	list := NewList("test", e("a", 1), e("b", 2))

	fetched := []diff.Differentiable{e("b", 2), e("b", 2), e("c", 3), e("a", 1)}
	require.NoError(t, Of(context.Background(), loop, emitting(fetched), list, PreserveAscending, nil))

	got := idsOf(snapshot(t, loop, list))
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestOf_FetchedContentWins(t *testing.T) {
	loop := startLoop(t)
	list := NewList("test", e("a", 1))

	updated := entry{id: "a", at: day(1), body: "v2"}
	var out Outcome
	require.NoError(t, Of(context.Background(), loop,
		emitting([]diff.Differentiable{updated}), list, PreserveAscending,
		func(o Outcome) { out = o }))

	assert.Equal(t, "v2", out.Items[0].(entry).body)
	assert.Equal(t, []diff.Update{{Kind: diff.Change, Position: 0, Count: 1}}, out.Diff.Updates())
}

func TestOf_ProducerErrorLeavesListUntouched(t *testing.T) {
	loop := startLoop(t)
	list := NewList("test", e("a", 1))
	boom := errors.New("boom")

	delivered := false
	err := Of(context.Background(), loop,
		func(ctx context.Context, emit func([]diff.Differentiable) error) error { return boom },
		list, Replace, func(Outcome) { delivered = true })

	assert.Same(t, boom, err)
	assert.False(t, delivered)
	assert.Equal(t, []string{"a"}, idsOf(snapshot(t, loop, list)))
}

func TestOf_ErrorAfterFirstEmissionKeepsIt(t *testing.T) {
	loop := startLoop(t)
	list := NewList("test")
	boom := errors.New("remote failed")

	src := func(ctx context.Context, emit func([]diff.Differentiable) error) error {
		if err := emit([]diff.Differentiable{e("local", 1)}); err != nil {
			return err
		}
		return boom
	}

	err := Of(context.Background(), loop, src, list, PreserveAscending, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"local"}, idsOf(snapshot(t, loop, list)))
}

func TestOf_CancelledBeforeMergeDropsIt(t *testing.T) {
	loop := NewLoop(nil)
	list := NewList("test", e("a", 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Of(ctx, loop, emitting([]diff.Differentiable{e("b", 2)}), list, Replace, nil)
	assert.ErrorIs(t, err, context.Canceled)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go loop.Run(runCtx)

	assert.Equal(t, []string{"a"}, idsOf(snapshot(t, loop, list)))
}

func TestOf_SecondIdenticalLoadIsEmptyDiff(t *testing.T) {
	loop := startLoop(t)
	list := NewList("test", e("c", 5), e("b", 3))
	page := []diff.Differentiable{e("a", 1)}

	var results []diff.Result
	deliver := func(o Outcome) { results = append(results, o.Diff) }

	require.NoError(t, Of(context.Background(), loop, emitting(page), list, PreserveDescending, deliver))
	first := snapshot(t, loop, list)
	require.NoError(t, Of(context.Background(), loop, emitting(page), list, PreserveDescending, deliver))

	require.Len(t, results, 2)
	assert.False(t, results[0].Empty())
	assert.True(t, results[1].Empty())
	assert.Equal(t, idsOf(first), idsOf(snapshot(t, loop, list)))
}

func TestOf_ConcurrentProducersNeverDuplicate(t *testing.T) {
	loop := startLoop(t)
	list := NewList("test")

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			page := []diff.Differentiable{e("shared", 1), e(string(rune('a'+i)), i+2)}
			assert.NoError(t, Of(context.Background(), loop, emitting(page), list, PreserveAscending, nil))
		}()
	}
	wg.Wait()

	got := idsOf(snapshot(t, loop, list))
	assert.Len(t, got, 9)
	assert.Equal(t, "shared", got[0])
}

// --- Mutate ---

func TestMutate_WithoutRemovesAndDiffs(t *testing.T) {
	loop := startLoop(t)
	list := NewList("test", e("a", 1), e("b", 2), e("c", 3))

	out, err := Mutate(context.Background(), loop, list, Without("b"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, idsOf(out.Items))
	assert.Equal(t, []diff.Update{{Kind: diff.Remove, Position: 1, Count: 1}}, out.Diff.Updates())
}

func TestMutate_CancelledMidStepReturnsAppliedOutcome(t *testing.T) {
	loop := startLoop(t)
	list := NewList("test", e("a", 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var delivered []Outcome

	out, err := Mutate(ctx, loop, list, func(current []diff.Differentiable) []diff.Differentiable {
		cancel()
		time.Sleep(20 * time.Millisecond)

		return append(current, e("b", 2))
	}, func(o Outcome) { delivered = append(delivered, o) })

	current := idsOf(snapshot(t, loop, list))

	require.NoError(t, err, "the step was applied, so the merge is the result")
	assert.Equal(t, []string{"a", "b"}, idsOf(out.Items))
	assert.Equal(t, current, idsOf(out.Items))
	require.Len(t, delivered, 1)
	assert.False(t, out.Diff.Empty())
}

func TestMutate_ErrorMeansListUntouched(t *testing.T) {
	loop := startLoop(t)
	list := NewList("test", e("a", 1))

	for range 50 {
		ctx, cancel := context.WithCancel(context.Background())
		go cancel()

		_, err := Mutate(ctx, loop, list, func(current []diff.Differentiable) []diff.Differentiable {
			return append(current, e("b", 2))
		}, nil)

		got := idsOf(snapshot(t, loop, list))
		if err != nil {
			assert.Equal(t, []string{"a"}, got)
		} else {
			assert.Equal(t, []string{"a", "b"}, got)

			_, err = Mutate(context.Background(), loop, list, Without("b"), nil)
			require.NoError(t, err)
		}

		cancel()
	}
}

func TestMutate_VersionAdvances(t *testing.T) {
	loop := startLoop(t)
	list := NewList("test")

	var before, after uint64
	require.NoError(t, loop.Call(context.Background(), func() { before = list.Version() }))
	_, err := Mutate(context.Background(), loop, list, Filter(func(diff.Differentiable) bool { return false }), nil)
	require.NoError(t, err)
	require.NoError(t, loop.Call(context.Background(), func() { after = list.Version() }))

	assert.Equal(t, before+1, after)
}

// --- merges ---

func TestPreserve_FetchedWinsAndSorted(t *testing.T) {
	current := []diff.Differentiable{e("a", 1), entry{id: "b", at: day(2), body: "old"}}
	fetched := []diff.Differentiable{entry{id: "b", at: day(2), body: "new"}, e("c", 3)}

	merged := PreserveAscending(current, fetched)
	assert.Equal(t, []string{"a", "b", "c"}, idsOf(merged))
	assert.Equal(t, "new", merged[1].(entry).body)

	merged = PreserveDescending(current, fetched)
	assert.Equal(t, []string{"c", "b", "a"}, idsOf(merged))
}

func TestReplace_DropsCurrent(t *testing.T) {
	merged := Replace([]diff.Differentiable{e("a", 1)}, []diff.Differentiable{e("c", 3), e("b", 2)})
	assert.Equal(t, []string{"b", "c"}, idsOf(merged))
}

func TestRemoveWhere(t *testing.T) {
	m := RemoveWhere(PreserveAscending, func(d diff.Differentiable) bool { return d.ItemID() == "declined" })
	merged := m([]diff.Differentiable{e("a", 1)}, []diff.Differentiable{e("declined", 2), e("b", 3)})
	assert.Equal(t, []string{"a", "b"}, idsOf(merged))
}

func TestCompare_RankedBeforeDatedThenID(t *testing.T) {
	items := []diff.Differentiable{e("z", 1), field{id: "f2", rank: 2}, e("y", 1), field{id: "f1", rank: 1}}
	slices.SortStableFunc(items, Compare)
	assert.Equal(t, []string{"f1", "f2", "y", "z"}, idsOf(items))
}

func TestUnique_FirstWins(t *testing.T) {
	items := Unique([]diff.Differentiable{entry{id: "a", body: "first"}, entry{id: "a", body: "second"}})
	require.Len(t, items, 1)
	assert.Equal(t, "first", items[0].(entry).body)
}

func TestList_LastAndFind(t *testing.T) {
	list := NewList("test", field{id: "f", rank: 0}, e("a", 1), e("b", 5))

	last, ok := list.Last(func(d diff.Differentiable) bool { _, dated := d.(entry); return dated })
	require.True(t, ok)
	assert.Equal(t, "b", last.ItemID())

	_, ok = list.Find("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, list.IndexOf("a"))
}

func TestList_RemoveBumpsVersion(t *testing.T) {
	list := NewList("test", e("a", 1), e("b", 2), e("c", 3))

	assert.True(t, list.Remove("b"))
	assert.False(t, list.Remove("b"))
	assert.Equal(t, uint64(1), list.Version())

	n := list.RemoveFunc(func(d diff.Differentiable) bool { return d.ItemID() != "x" })
	assert.Equal(t, 2, n)
	assert.Zero(t, list.Len())
	assert.Equal(t, uint64(2), list.Version())
}

// --- Bag ---

func TestBag_DisposeCancelsOperations(t *testing.T) {
	bag := NewBag(context.Background())

	started := make(chan struct{})
	bag.Go(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	assert.NoError(t, bag.Dispose())
	assert.ErrorIs(t, bag.Context().Err(), context.Canceled)
}

func TestBag_DisposeReturnsRealError(t *testing.T) {
	bag := NewBag(context.Background())
	boom := errors.New("boom")
	bag.Go(func(context.Context) error { return boom })

	assert.ErrorIs(t, bag.Dispose(), boom)
}

func TestOnce_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	src := Once(func(context.Context) ([]diff.Differentiable, error) { return nil, boom })
	err := src(context.Background(), func([]diff.Differentiable) error { t.Fatal("emit"); return nil })
	assert.Same(t, boom, err)
}
