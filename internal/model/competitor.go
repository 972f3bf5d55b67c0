package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
)

// Reference paths naming the collection a competitor entity lives in.
const (
	RefUsers = "users"
	RefTeams = "teams"
)

// DeclinedCompetitors keys the list of seats the signed-in user, or a
// team they manage, turned down.
const DeclinedCompetitors = "declined"

// Competitive is the closed set of things that can compete in a game or
// tournament: *User and *Team. The unexported method keeps the set closed.
type Competitive interface {
	diff.Differentiable
	DisplayName() string
	competitive()
}

// MatchCompetitive dispatches on the concrete competitor kind. A nil
// entity yields the zero value of T.
func MatchCompetitive[T any](c Competitive, onUser func(*User) T, onTeam func(*Team) T) T {
	switch v := c.(type) {
	case *User:
		return onUser(v)
	case *Team:
		return onTeam(v)
	}

	var zero T

	return zero
}

// Competitor is a seat in a game or tournament held by a user or a team.
type Competitor struct {
	ID           string      `json:"_id"`
	RefPath      string      `json:"refPath"`
	TournamentID string      `json:"tournament,omitempty"`
	GameID       string      `json:"game,omitempty"`
	Seed         int         `json:"seed"`
	Accepted     bool        `json:"accepted"`
	Declined     bool        `json:"declined"`
	Created      time.Time   `json:"created"`
	Entity       Competitive `json:"-"`
}

// NewCompetitor wraps an entity in an unsaved competitor.
func NewCompetitor(entity Competitive) Competitor {
	c := Competitor{Entity: entity}
	c.RefPath = MatchCompetitive(entity,
		func(*User) string { return RefUsers },
		func(*Team) string { return RefTeams },
	)

	return c
}

func (c *Competitor) ItemID() string      { return c.ID }
func (c *Competitor) IsEmpty() bool       { return c.ID == "" || c.Entity == nil }
func (c *Competitor) SortDate() time.Time { return c.Created }

func (c *Competitor) ContentEqual(other diff.Differentiable) bool {
	o, ok := other.(*Competitor)
	if !ok {
		return c.ID == other.ItemID()
	}

	if c.Accepted != o.Accepted || c.Declined != o.Declined || c.Seed != o.Seed {
		return false
	}

	if c.Entity == nil || o.Entity == nil {
		return c.Entity == nil && o.Entity == nil
	}

	return c.Entity.ItemID() == o.Entity.ItemID() && c.Entity.ContentEqual(o.Entity)
}

func (c *Competitor) Update(other *Competitor) { *c = other.clone() }

func (c *Competitor) Clone() *Competitor {
	cp := c.clone()
	return &cp
}

// clone copies the competitor and the entity it points at.
func (c Competitor) clone() Competitor {
	c.Entity = MatchCompetitive(c.Entity,
		func(u *User) Competitive { return u.Clone() },
		func(t *Team) Competitive { return t.Clone() },
	)

	return c
}

// DisplayName is the competing entity's name.
func (c *Competitor) DisplayName() string {
	if c.Entity == nil {
		return ""
	}

	return c.Entity.DisplayName()
}

// Respond records the entity's answer to the seat it was offered.
func (c *Competitor) Respond(accept bool) {
	c.Accepted = accept
	c.Declined = !accept
}

// HasNotResponded reports whether the seat is still awaiting an answer.
func (c *Competitor) HasNotResponded() bool {
	return !c.Accepted && !c.Declined
}

// InOneOffGame reports whether the seat is in a standalone game rather
// than a tournament.
func (c *Competitor) InOneOffGame() bool {
	return c.TournamentID == "" && c.GameID != ""
}

// HasEntity reports whether the seat holds the entity with the given id.
func (c *Competitor) HasEntity(id string) bool {
	return c.Entity != nil && c.Entity.ItemID() == id
}

func (c Competitor) MarshalJSON() ([]byte, error) {
	type alias Competitor

	return json.Marshal(struct {
		alias
		Entity Competitive `json:"entity,omitempty"`
	}{alias: alias(c), Entity: c.Entity})
}

func (c *Competitor) UnmarshalJSON(data []byte) error {
	type alias Competitor

	var raw struct {
		alias
		Entity json.RawMessage `json:"entity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = Competitor(raw.alias)

	entity := bytes.TrimSpace(raw.Entity)
	if len(entity) == 0 || bytes.Equal(entity, []byte("null")) {
		return nil
	}

	// Unpopulated references arrive as a bare id string.
	var id string
	if entity[0] == '"' {
		if err := json.Unmarshal(entity, &id); err != nil {
			return fmt.Errorf("decoding competitor entity id: %w", err)
		}
	}

	switch c.RefPath {
	case RefUsers:
		u := &User{ID: id}
		if id == "" {
			if err := json.Unmarshal(entity, u); err != nil {
				return fmt.Errorf("decoding competitor user: %w", err)
			}
		}

		c.Entity = u
	case RefTeams:
		t := &Team{ID: id}
		if id == "" {
			if err := json.Unmarshal(entity, t); err != nil {
				return fmt.Errorf("decoding competitor team: %w", err)
			}
		}

		c.Entity = t
	default:
		return fmt.Errorf("unknown competitor ref path %q", c.RefPath)
	}

	return nil
}
