package model

import (
	"strconv"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
)

// Event is a scheduled team event. Events created for a game carry the
// game's id and are deleted with it.
type Event struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Notes        string    `json:"notes,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	LocationName string    `json:"locationName,omitempty"`
	Visibility   string    `json:"visibility,omitempty"`
	Spots        int       `json:"spots,omitempty"`
	GameID       string    `json:"game,omitempty"`
	Team         Team      `json:"team"`
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
}

func (e *Event) ItemID() string      { return e.ID }
func (e *Event) IsEmpty() bool       { return e.ID == "" }
func (e *Event) SortDate() time.Time { return e.StartDate }
func (e *Event) Update(other *Event) { *e = *other }

func (e *Event) ContentEqual(other diff.Differentiable) bool {
	o, ok := other.(*Event)
	if !ok {
		return e.ID == other.ItemID()
	}

	return e.Name == o.Name &&
		e.Notes == o.Notes &&
		e.ImageURL == o.ImageURL &&
		e.LocationName == o.LocationName &&
		e.Visibility == o.Visibility &&
		e.Spots == o.Spots &&
		e.StartDate.Equal(o.StartDate) &&
		e.EndDate.Equal(o.EndDate)
}

func (e *Event) Clone() *Event {
	c := *e
	return &c
}

// IsPublic reports whether non-members can see the event.
func (e *Event) IsPublic() bool {
	return e.Visibility == VisibilityPublic
}

func (e *Event) Items() []Item {
	return items(
		[2]string{"name", e.Name},
		[2]string{"notes", e.Notes},
		[2]string{"location", e.LocationName},
		[2]string{"start", formatDate(e.StartDate)},
		[2]string{"end", formatDate(e.EndDate)},
		[2]string{"visibility", e.Visibility},
		[2]string{"spots", strconv.Itoa(e.Spots)},
	)
}

// Guest is a user's RSVP to an event.
type Guest struct {
	ID        string    `json:"_id"`
	EventID   string    `json:"event"`
	User      User      `json:"user"`
	Attending bool      `json:"attending"`
	Created   time.Time `json:"created"`
}

func (g *Guest) ItemID() string      { return g.ID }
func (g *Guest) IsEmpty() bool       { return g.ID == "" }
func (g *Guest) SortDate() time.Time { return g.Created }
func (g *Guest) Update(other *Guest) { *g = *other }

func (g *Guest) ContentEqual(other diff.Differentiable) bool {
	o, ok := other.(*Guest)
	return ok && g.Attending == o.Attending && g.User.ID == o.User.ID && g.User.ContentEqual(&o.User)
}

func (g *Guest) Clone() *Guest {
	c := *g
	return &c
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}
