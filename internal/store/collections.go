package store

import (
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/model"
)

// Collections bundles the DAOs the sync core persists.
type Collections struct {
	Events      *Collection[*model.Event]
	Games       *Collection[*model.Game]
	Stats       *Collection[*model.Stat]
	Chats       *Collection[*model.Chat]
	Tournaments *Collection[*model.Tournament]
	Competitors *Collection[*model.Competitor]
}

// OpenCollections creates every collection on db.
func OpenCollections(db *DB) (*Collections, error) {
	events, err := NewCollection(db, "events", Layout[*model.Event]{
		New:     func() *model.Event { return &model.Event{} },
		Parents: Parent(func(e *model.Event) string { return e.Team.ID }),
		Date:    func(e *model.Event) time.Time { return e.StartDate },
	})
	if err != nil {
		return nil, err
	}

	games, err := NewCollection(db, "games", Layout[*model.Game]{
		New:     func() *model.Game { return &model.Game{} },
		Parents: (*model.Game).Parties,
		Date:    func(g *model.Game) time.Time { return g.Created },
	})
	if err != nil {
		return nil, err
	}

	stats, err := NewCollection(db, "stats", Layout[*model.Stat]{
		New:     func() *model.Stat { return &model.Stat{} },
		Parents: Parent(func(s *model.Stat) string { return s.GameID }),
		Date:    func(s *model.Stat) time.Time { return s.Created },
	})
	if err != nil {
		return nil, err
	}

	chats, err := NewCollection(db, "chats", Layout[*model.Chat]{
		New:     func() *model.Chat { return &model.Chat{} },
		Parents: Parent(func(c *model.Chat) string { return c.Team.ID }),
		Date:    func(c *model.Chat) time.Time { return c.Created },
	})
	if err != nil {
		return nil, err
	}

	tournaments, err := NewCollection(db, "tournaments", Layout[*model.Tournament]{
		New:     func() *model.Tournament { return &model.Tournament{} },
		Parents: Parent(func(t *model.Tournament) string { return t.Host.ID }),
		Date:    func(t *model.Tournament) time.Time { return t.Created },
	})
	if err != nil {
		return nil, err
	}

	competitors, err := NewCollection(db, "competitors", Layout[*model.Competitor]{
		New:     func() *model.Competitor { return &model.Competitor{} },
		Parents: competitorParents,
		Date:    func(c *model.Competitor) time.Time { return c.Created },
	})
	if err != nil {
		return nil, err
	}

	return &Collections{
		Events:      events,
		Games:       games,
		Stats:       stats,
		Chats:       chats,
		Tournaments: tournaments,
		Competitors: competitors,
	}, nil
}

// competitorParents lists a competitor under the tournament or game it
// is seated in, and under model.DeclinedCompetitors once declined.
func competitorParents(c *model.Competitor) []string {
	var out []string

	switch {
	case c.TournamentID != "":
		out = append(out, c.TournamentID)
	case c.GameID != "":
		out = append(out, c.GameID)
	}

	if c.Declined {
		out = append(out, model.DeclinedCompetitors)
	}

	return out
}
