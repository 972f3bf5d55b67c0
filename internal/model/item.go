package model

import "github.com/CristianUrbainski/teammate-android/internal/diff"

// Item is one field of a model projected into a gofer's item list, e.g. an
// event's location. Items are values, so a snapshot taken before a model is
// updated keeps the old field values and diffs report the change.
type Item struct {
	Field    string `json:"field"`
	Position int    `json:"position"`
	Label    string `json:"label"`
	Value    string `json:"value"`
}

func (i Item) ItemID() string { return i.Field }
func (i Item) Rank() int      { return i.Position }

func (i Item) ContentEqual(other diff.Differentiable) bool {
	o, ok := other.(Item)
	return ok && o == i
}

// ChangePayload reports the previous value of a changed field.
func (i Item) ChangePayload(previous diff.Differentiable) any {
	if p, ok := previous.(Item); ok {
		return p.Value
	}

	return nil
}

// Projector is implemented by models a gofer can show field by field.
type Projector interface {
	Items() []Item
}

func items(pairs ...[2]string) []Item {
	out := make([]Item, 0, len(pairs))
	for i, p := range pairs {
		out = append(out, Item{Field: p[0], Position: i, Label: label(p[0]), Value: p[1]})
	}

	return out
}

func label(field string) string {
	switch field {
	case "name":
		return "Name"
	case "notes":
		return "Notes"
	case "location":
		return "Location"
	case "start":
		return "Start"
	case "end":
		return "End"
	case "visibility":
		return "Visibility"
	case "spots":
		return "Spots"
	case "score":
		return "Score"
	case "round":
		return "Round"
	case "ended":
		return "Ended"
	case "description":
		return "Description"
	case "legs":
		return "Legs"
	case "rounds":
		return "Rounds"
	case "single_final":
		return "Single final"
	}

	return field
}
