package model

import (
	"slices"
	"strconv"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
)

// Game is a match between two competitors, optionally part of a tournament
// and optionally hosted by a team. A hosted game owns an event.
type Game struct {
	ID           string     `json:"_id"`
	Name         string     `json:"name,omitempty"`
	RefPath      string     `json:"refPath"`
	Score        string     `json:"score"`
	SportCode    string     `json:"sport,omitempty"`
	Round        int        `json:"round"`
	Leg          int        `json:"leg"`
	Seed         int        `json:"seed"`
	HomeScore    int        `json:"homeScore"`
	AwayScore    int        `json:"awayScore"`
	Ended        bool       `json:"ended"`
	CanDraw      bool       `json:"canDraw"`
	EventID      string     `json:"event,omitempty"`
	TournamentID string     `json:"tournament,omitempty"`
	Host         Team       `json:"host"`
	Home         Competitor `json:"home"`
	Away         Competitor `json:"away"`
	Created      time.Time  `json:"created"`
}

func (g *Game) ItemID() string      { return g.ID }
func (g *Game) IsEmpty() bool       { return g.ID == "" }
func (g *Game) SortDate() time.Time { return g.Created }

func (g *Game) ContentEqual(other diff.Differentiable) bool {
	o, ok := other.(*Game)
	if !ok {
		return g.ID == other.ItemID()
	}

	return g.Score == o.Score &&
		g.Ended == o.Ended &&
		g.Home.ContentEqual(&o.Home) &&
		g.Away.ContentEqual(&o.Away)
}

func (g *Game) Update(other *Game) { *g = *other.Clone() }

func (g *Game) Clone() *Game {
	c := *g
	c.Home = g.Home.clone()
	c.Away = g.Away.clone()

	return &c
}

// IsOneVsOne reports whether users, not teams, compete in the game.
func (g *Game) IsOneVsOne() bool {
	return g.RefPath == RefUsers
}

// IsHosted reports whether a team hosts the game.
func (g *Game) IsHosted() bool {
	return g.Host.ID != ""
}

// IsDeclined reports whether either competitor turned the game down.
func (g *Game) IsDeclined() bool {
	return g.Home.Declined || g.Away.Declined
}

// HasCompetitor reports whether the entity with the given id holds a seat.
func (g *Game) HasCompetitor(id string) bool {
	return g.Home.HasEntity(id) || g.Away.HasEntity(id)
}

// Competitors returns the seats that hold an entity.
func (g *Game) Competitors() []*Competitor {
	out := make([]*Competitor, 0, 2)
	for _, c := range []*Competitor{&g.Home, &g.Away} {
		if !c.IsEmpty() {
			out = append(out, c)
		}
	}

	return out
}

// Parties returns the ids the game is listed under: its host and the
// entities in its seats, without duplicates.
func (g *Game) Parties() []string {
	out := make([]string, 0, 3)
	if g.Host.ID != "" {
		out = append(out, g.Host.ID)
	}

	for _, c := range g.Competitors() {
		if id := c.Entity.ItemID(); id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}

	return out
}

func (g *Game) Items() []Item {
	return items(
		[2]string{"name", g.Name},
		[2]string{"score", g.Score},
		[2]string{"round", strconv.Itoa(g.Round)},
		[2]string{"ended", strconv.FormatBool(g.Ended)},
	)
}
