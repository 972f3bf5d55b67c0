package model

import (
	"strings"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
)

// User is a Teammate account.
type User struct {
	ID           string `json:"_id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	PrimaryEmail string `json:"primaryEmail,omitempty"`
	About        string `json:"about,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
}

func (u *User) ItemID() string { return u.ID }
func (u *User) IsEmpty() bool  { return u.ID == "" }

func (u *User) ContentEqual(other diff.Differentiable) bool {
	o, ok := other.(*User)
	if !ok {
		return u.ID == other.ItemID()
	}

	return u.FirstName == o.FirstName && u.LastName == o.LastName && u.ImageURL == o.ImageURL
}

func (u *User) Update(other *User) { *u = *other }

func (u *User) Clone() *User {
	c := *u
	return &c
}

// DisplayName is the user's full name.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (*User) competitive() {}

// Team is a sports team; most collections are keyed by team id.
type Team struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	SportCode   string    `json:"sport,omitempty"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	StorageUsed int64     `json:"storageUsed,omitempty"`
	MaxStorage  int64     `json:"maxStorage,omitempty"`
	Created     time.Time `json:"created"`
}

func (t *Team) ItemID() string      { return t.ID }
func (t *Team) IsEmpty() bool       { return t.ID == "" }
func (t *Team) SortDate() time.Time { return t.Created }
func (t *Team) DisplayName() string { return t.Name }
func (t *Team) Update(other *Team)  { *t = *other }

// AtMaxStorage reports whether the team can no longer upload media.
func (t *Team) AtMaxStorage() bool {
	return t.MaxStorage > 0 && t.StorageUsed >= t.MaxStorage
}

func (*Team) competitive() {}

func (t *Team) ContentEqual(other diff.Differentiable) bool {
	o, ok := other.(*Team)
	if !ok {
		return t.ID == other.ItemID()
	}

	return t.Name == o.Name && t.City == o.City && t.SportCode == o.SportCode && t.ImageURL == o.ImageURL
}

func (t *Team) Clone() *Team {
	c := *t
	return &c
}

// Role positions that may edit team-owned content.
const (
	PositionAdmin  = "admin"
	PositionCoach  = "coach"
	PositionMember = "member"
)

// Role is a user's position within a team.
type Role struct {
	ID       string    `json:"_id"`
	Position string    `json:"name"`
	User     User      `json:"user"`
	Team     Team      `json:"team"`
	Created  time.Time `json:"created"`
}

func (r *Role) ItemID() string      { return r.ID }
func (r *Role) IsEmpty() bool       { return r.ID == "" }
func (r *Role) SortDate() time.Time { return r.Created }
func (r *Role) Update(other *Role)  { *r = *other }

func (r *Role) ContentEqual(other diff.Differentiable) bool {
	o, ok := other.(*Role)
	return ok && r.Position == o.Position && r.User.ID == o.User.ID && r.Team.ID == o.Team.ID
}

func (r *Role) Clone() *Role {
	c := *r
	return &c
}

// IsPrivileged reports whether the role can manage team content.
func (r *Role) IsPrivileged() bool {
	return r.Position == PositionAdmin || r.Position == PositionCoach
}

// BlockedUser is a user banned from a team.
type BlockedUser struct {
	ID      string    `json:"_id"`
	User    User      `json:"user"`
	Team    Team      `json:"team"`
	Reason  string    `json:"reason,omitempty"`
	Created time.Time `json:"created"`
}

func (b *BlockedUser) ItemID() string      { return b.ID }
func (b *BlockedUser) SortDate() time.Time { return b.Created }

func (b *BlockedUser) ContentEqual(other diff.Differentiable) bool {
	o, ok := other.(*BlockedUser)
	return ok && b.User.ID == o.User.ID && b.Team.ID == o.Team.ID && b.Reason == o.Reason
}
