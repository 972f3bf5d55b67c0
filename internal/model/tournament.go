package model

import (
	"strconv"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
)

// Tournament is a competition a team hosts over one or more rounds of
// games.
type Tournament struct {
	ID             string     `json:"_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	ImageURL       string     `json:"imageUrl,omitempty"`
	RefPath        string     `json:"refPath"`
	SportCode      string     `json:"sport,omitempty"`
	Type           string     `json:"type,omitempty"`
	Style          string     `json:"style,omitempty"`
	NumLegs        int        `json:"numLegs"`
	NumRounds      int        `json:"numRounds"`
	CurrentRound   int        `json:"currentRound"`
	NumCompetitors int        `json:"numCompetitors"`
	SingleFinal    bool       `json:"singleFinal"`
	Host           Team       `json:"host"`
	Winner         Competitor `json:"winner"`
	Created        time.Time  `json:"created"`
}

func (t *Tournament) ItemID() string      { return t.ID }
func (t *Tournament) IsEmpty() bool       { return t.ID == "" }
func (t *Tournament) SortDate() time.Time { return t.Created }

func (t *Tournament) ContentEqual(other diff.Differentiable) bool {
	o, ok := other.(*Tournament)
	if !ok {
		return t.ID == other.ItemID()
	}

	return t.Name == o.Name &&
		t.Description == o.Description &&
		t.ImageURL == o.ImageURL &&
		t.CurrentRound == o.CurrentRound &&
		t.NumRounds == o.NumRounds &&
		t.NumCompetitors == o.NumCompetitors &&
		t.Winner.ContentEqual(&o.Winner)
}

func (t *Tournament) Update(other *Tournament) { *t = *other.Clone() }

func (t *Tournament) Clone() *Tournament {
	c := *t
	c.Winner = t.Winner.clone()

	return &c
}

// HasWinner reports whether the tournament has been decided.
func (t *Tournament) HasWinner() bool {
	return !t.Winner.IsEmpty()
}

// HasCompetitors reports whether anyone has been seeded into it yet.
func (t *Tournament) HasCompetitors() bool {
	return t.NumCompetitors > 0
}

func (t *Tournament) Items() []Item {
	return items(
		[2]string{"name", t.Name},
		[2]string{"description", t.Description},
		[2]string{"legs", strconv.Itoa(t.NumLegs)},
		[2]string{"rounds", strconv.Itoa(t.NumRounds)},
		[2]string{"single_final", strconv.FormatBool(t.SingleFinal)},
	)
}
