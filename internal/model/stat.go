package model

import (
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
)

// Stat is a single recorded statistic in a game, e.g. a goal at minute 12.
type Stat struct {
	ID        string    `json:"_id"`
	StatType  string    `json:"name"`
	SportCode string    `json:"sport,omitempty"`
	GameID    string    `json:"game"`
	User      User      `json:"user"`
	Team      Team      `json:"team"`
	Value     int       `json:"value"`
	Time      float64   `json:"time"`
	Created   time.Time `json:"created"`
}

func (s *Stat) ItemID() string      { return s.ID }
func (s *Stat) IsEmpty() bool       { return s.ID == "" }
func (s *Stat) SortDate() time.Time { return s.Created }
func (s *Stat) Update(other *Stat)  { *s = *other }

func (s *Stat) ContentEqual(other diff.Differentiable) bool {
	o, ok := other.(*Stat)
	if !ok {
		return s.ID == other.ItemID()
	}

	return s.StatType == o.StatType &&
		s.Value == o.Value &&
		s.Time == o.Time &&
		s.User.ID == o.User.ID &&
		s.User.ContentEqual(&o.User)
}

func (s *Stat) Clone() *Stat {
	c := *s
	return &c
}
