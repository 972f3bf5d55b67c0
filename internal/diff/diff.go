// Package diff computes the positional updates that turn one snapshot of a
// list into another. Items are matched by identity; content equality decides
// whether a surviving item is reported as changed.
package diff

import (
	"slices"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Differentiable is the unit of reconciliation: an item with a stable
// identity and a content check against another item with the same id.
type Differentiable interface {
	ItemID() string
	ContentEqual(other Differentiable) bool
}

// Payloader is implemented by items that can describe what changed
// relative to an earlier version of themselves. The payload is passed
// through to Callback.OnChanged.
type Payloader interface {
	ChangePayload(previous Differentiable) any
}

const (
	// surrogateMin and surrogateMax bound the UTF-16 surrogate range.
	// Runes in it are not valid and would be mangled by string conversion
	// inside diffmatchpatch, so the id alphabet skips them.
	surrogateMin = 0xD800
	surrogateMax = 0xDFFF

	// maxAlphabet is the number of distinct ids that can be mapped to
	// valid runes. Beyond it the LCS pass is skipped and every surviving
	// item out of place is reported as a move.
	maxAlphabet = 0x10FFFF - (surrogateMax - surrogateMin + 1)
)

// Calculate returns the updates that transform old into updated. Neither
// slice is modified. Both should be free of duplicate ids; duplicates are
// tolerated but produce a less compact result.
//
// Updates are ordered so that dispatching them in sequence onto a view that
// renders old leaves it rendering updated: removals first (highest index
// first), then moves and inserts walking the new list front to back, then
// content changes at their final positions.
func Calculate(old, updated []Differentiable) Result {
	oldIDs := ids(old)
	newIDs := ids(updated)
	anchors := commonSubsequence(oldIDs, newIDs)

	newIndex := make(map[string]int, len(newIDs))
	for i, id := range newIDs {
		if _, ok := newIndex[id]; !ok {
			newIndex[id] = i
		}
	}

	b := &builder{working: slices.Clone(oldIDs)}

	for i := len(b.working) - 1; i >= 0; i-- {
		if _, ok := newIndex[b.working[i]]; !ok {
			b.remove(i)
		}
	}

	// Items outside the common subsequence are the ones that moved. When
	// one of them sits where an anchor belongs and its predecessor in the
	// new list is itself an anchor, it is pushed forward to just after
	// that predecessor in a single move. Each item is pushed at most once
	// so the walk always terminates.
	pushed := make(map[string]bool)

	for j := 0; j < len(newIDs); {
		want := newIDs[j]
		if j < len(b.working) && b.working[j] == want {
			j++
			continue
		}

		if j < len(b.working) {
			cur := b.working[j]
			if _, isAnchor := anchors[want]; isAnchor && !pushed[cur] {
				if _, curAnchor := anchors[cur]; !curAnchor {
					if dest := b.afterAnchor(newIDs, newIndex[cur], j, anchors); dest > j {
						pushed[cur] = true
						b.move(j, dest)

						continue
					}
				}
			}
		}

		if k := b.indexFrom(want, j+1); k >= 0 {
			b.move(k, j)
		} else {
			b.insert(j, want)
		}

		j++
	}

	if extra := len(b.working) - len(newIDs); extra > 0 {
		b.removeRange(len(newIDs), extra)
	}

	previous := make(map[string]Differentiable, len(old))
	for _, item := range old {
		if _, ok := previous[item.ItemID()]; !ok {
			previous[item.ItemID()] = item
		}
	}

	for j, item := range updated {
		prev, ok := previous[item.ItemID()]
		if !ok || item.ContentEqual(prev) {
			continue
		}

		var payload any
		if p, ok := item.(Payloader); ok {
			payload = p.ChangePayload(prev)
		}

		b.change(j, payload)
	}

	return Result{
		updates: b.updates,
		oldSize: len(old),
		newSize: len(updated),
	}
}

func ids(items []Differentiable) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ItemID()
	}

	return out
}

// commonSubsequence returns the ids on the longest common subsequence of
// the two id sequences. Each distinct id becomes one rune so the Myers
// implementation in diffmatchpatch can run over the id sequences directly.
func commonSubsequence(oldIDs, newIDs []string) map[string]struct{} {
	alphabet := make(map[string]rune, len(oldIDs)+len(newIDs))
	decode := make(map[rune]string, len(oldIDs)+len(newIDs))
	next := rune(1)

	encode := func(seq []string) []rune {
		out := make([]rune, len(seq))
		for i, id := range seq {
			r, ok := alphabet[id]
			if !ok {
				r = next
				alphabet[id] = r
				decode[r] = id
				next = nextRune(next)
			}

			out[i] = r
		}

		return out
	}

	if len(oldIDs)+len(newIDs) > maxAlphabet {
		return map[string]struct{}{}
	}

	a := encode(oldIDs)
	b := encode(newIDs)

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	anchors := make(map[string]struct{})

	for _, d := range dmp.DiffMainRunes(a, b, false) {
		if d.Type != diffmatchpatch.DiffEqual {
			continue
		}

		for _, r := range d.Text {
			anchors[decode[r]] = struct{}{}
		}
	}

	return anchors
}

func nextRune(r rune) rune {
	r++
	if r >= surrogateMin && r <= surrogateMax {
		r = surrogateMax + 1
	}

	return r
}

// builder replays operations on a working copy of the id sequence and
// records them, coalescing adjacent inserts, removes and changes.
type builder struct {
	working []string
	updates []Update
}

func (b *builder) last() *Update {
	if len(b.updates) == 0 {
		return nil
	}

	return &b.updates[len(b.updates)-1]
}

func (b *builder) remove(i int) {
	b.working = slices.Delete(b.working, i, i+1)

	if last := b.last(); last != nil && last.Kind == Remove && last.Position == i+1 {
		last.Position = i
		last.Count++

		return
	}

	b.updates = append(b.updates, Update{Kind: Remove, Position: i, Count: 1})
}

func (b *builder) removeRange(i, count int) {
	b.working = slices.Delete(b.working, i, i+count)
	b.updates = append(b.updates, Update{Kind: Remove, Position: i, Count: count})
}

func (b *builder) insert(i int, id string) {
	b.working = slices.Insert(b.working, i, id)

	if last := b.last(); last != nil && last.Kind == Insert && last.Position+last.Count == i {
		last.Count++
		return
	}

	b.updates = append(b.updates, Update{Kind: Insert, Position: i, Count: 1})
}

func (b *builder) move(from, to int) {
	id := b.working[from]
	b.working = slices.Delete(b.working, from, from+1)
	b.working = slices.Insert(b.working, to, id)
	b.updates = append(b.updates, Update{Kind: Move, From: from, To: to})
}

func (b *builder) change(i int, payload any) {
	if last := b.last(); last != nil && last.Kind == Change && payload == nil &&
		last.Payload == nil && last.Position+last.Count == i {
		last.Count++
		return
	}

	b.updates = append(b.updates, Update{Kind: Change, Position: i, Count: 1, Payload: payload})
}

func (b *builder) indexFrom(id string, start int) int {
	for k := start; k < len(b.working); k++ {
		if b.working[k] == id {
			return k
		}
	}

	return -1
}

// afterAnchor returns the working index just past the anchor that
// precedes target in the new list, or -1 when the predecessor is not an
// anchor or does not sit after start.
func (b *builder) afterAnchor(newIDs []string, target, start int, anchors map[string]struct{}) int {
	if target <= 0 {
		return -1
	}

	pred := newIDs[target-1]
	if _, ok := anchors[pred]; !ok {
		return -1
	}

	return b.indexFrom(pred, start+1)
}
