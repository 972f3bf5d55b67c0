package diff

import "slices"

// Kind identifies a positional update.
type Kind int

const (
	// Insert adds Count items at Position.
	Insert Kind = iota

	// Remove drops Count items starting at Position.
	Remove

	// Move relocates the item at From so that it ends up at To.
	Move

	// Change marks Count items starting at Position as having new content.
	Change
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Remove:
		return "remove"
	case Move:
		return "move"
	case Change:
		return "change"
	}

	return "unknown"
}

// Update is one positional operation. Position and Count apply to
// Insert, Remove and Change; From and To apply to Move.
type Update struct {
	Kind     Kind `json:"kind"`
	Position int  `json:"position,omitempty"`
	Count    int  `json:"count,omitempty"`
	From     int  `json:"from,omitempty"`
	To       int  `json:"to,omitempty"`
	Payload  any  `json:"payload,omitempty"`
}

// Callback receives updates in dispatch order. It mirrors the adapter
// notifications a list view understands.
type Callback interface {
	OnInserted(position, count int)
	OnRemoved(position, count int)
	OnMoved(from, to int)
	OnChanged(position, count int, payload any)
}

// Result is the outcome of Calculate.
type Result struct {
	updates []Update
	oldSize int
	newSize int
}

// Updates returns a copy of the updates in dispatch order.
func (r Result) Updates() []Update {
	return slices.Clone(r.updates)
}

// Empty reports whether the two snapshots were identical.
func (r Result) Empty() bool {
	return len(r.updates) == 0
}

func (r Result) OldSize() int { return r.oldSize }
func (r Result) NewSize() int { return r.newSize }

// Counts tallies the items touched by each kind of update.
func (r Result) Counts() (inserted, removed, moved, changed int) {
	for _, u := range r.updates {
		switch u.Kind {
		case Insert:
			inserted += u.Count
		case Remove:
			removed += u.Count
		case Move:
			moved++
		case Change:
			changed += u.Count
		}
	}

	return inserted, removed, moved, changed
}

// DispatchTo replays the updates onto cb in order.
func (r Result) DispatchTo(cb Callback) {
	for _, u := range r.updates {
		switch u.Kind {
		case Insert:
			cb.OnInserted(u.Position, u.Count)
		case Remove:
			cb.OnRemoved(u.Position, u.Count)
		case Move:
			cb.OnMoved(u.From, u.To)
		case Change:
			cb.OnChanged(u.Position, u.Count, u.Payload)
		}
	}
}

// Funcs adapts plain functions to Callback. Nil fields are skipped.
type Funcs struct {
	Inserted func(position, count int)
	Removed  func(position, count int)
	Moved    func(from, to int)
	Changed  func(position, count int, payload any)
}

func (f Funcs) OnInserted(position, count int) {
	if f.Inserted != nil {
		f.Inserted(position, count)
	}
}

func (f Funcs) OnRemoved(position, count int) {
	if f.Removed != nil {
		f.Removed(position, count)
	}
}

func (f Funcs) OnMoved(from, to int) {
	if f.Moved != nil {
		f.Moved(from, to)
	}
}

func (f Funcs) OnChanged(position, count int, payload any) {
	if f.Changed != nil {
		f.Changed(position, count, payload)
	}
}
