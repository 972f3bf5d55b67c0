package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
)

// ChatKindText is the only chat kind the backend currently sends.
const ChatKindText = "text"

const localPrefix = "local:"

// Chat is a team chat message. A chat created locally has no server id
// until the backend acknowledges it; until then it is Unsent and keyed by
// its LocalID.
type Chat struct {
	ID      string    `json:"_id"`
	LocalID string    `json:"localId,omitempty"`
	Kind    string    `json:"kind"`
	Content string    `json:"content"`
	User    User      `json:"user"`
	Team    Team      `json:"team"`
	Created time.Time `json:"created"`
	Unsent  bool      `json:"-"`
}

// NewChat builds an unsent text chat from user to team.
func NewChat(content string, user User, team Team) (*Chat, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating chat local id: %w", err)
	}

	return &Chat{
		LocalID: id.String(),
		Kind:    ChatKindText,
		Content: norm.NFC.String(content),
		User:    user,
		Team:    team,
		Created: time.Now().UTC(),
		Unsent:  true,
	}, nil
}

// ItemID is the server id, or a local key while the chat is unacknowledged.
func (c *Chat) ItemID() string {
	if c.ID == "" {
		return localPrefix + c.LocalID
	}

	return c.ID
}

// IsEmpty reports whether the chat has not been acknowledged by the backend.
func (c *Chat) IsEmpty() bool       { return c.Unsent }
func (c *Chat) SortDate() time.Time { return c.Created }

func (c *Chat) ContentEqual(other diff.Differentiable) bool {
	o, ok := other.(*Chat)
	if !ok {
		return c.ItemID() == other.ItemID()
	}

	return c.Content == o.Content && c.Unsent == o.Unsent && c.User.ContentEqual(&o.User)
}

// Update adopts the acknowledged copy. The LocalID is kept so the chat
// can still be matched against its optimistic entry.
func (c *Chat) Update(other *Chat) {
	local := c.LocalID
	*c = *other

	if c.LocalID == "" {
		c.LocalID = local
	}
}

func (c *Chat) Clone() *Chat {
	cp := *c
	return &cp
}

// Normalize puts the content in NFC so identical text typed on different
// devices compares equal.
func (c *Chat) Normalize() {
	c.Content = norm.NFC.String(c.Content)
}

// SameMessage reports whether o is the acknowledged form of c, or the
// same server chat.
func (c *Chat) SameMessage(o *Chat) bool {
	if c.ID != "" && c.ID == o.ID {
		return true
	}

	return c.LocalID != "" && c.LocalID == o.LocalID
}
