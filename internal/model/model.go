// Package model holds the Teammate domain types. They are plain structs
// decoded from the backend's JSON; each implements diff.Differentiable so it
// can live in a reconciled list, and Model so repositories can update a
// retained instance in place.
package model

import (
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
)

// Model is implemented by the pointer type of every persisted entity.
type Model[M any] interface {
	diff.Differentiable

	// IsEmpty reports whether the backend has not yet assigned the model
	// an identity (or, for chats, acknowledged it).
	IsEmpty() bool

	// Update copies other's fields into the receiver, keeping the
	// receiver's address stable for anything already holding it.
	Update(other M)

	// Clone returns an independent copy.
	Clone() M
}

// Visibility values for events.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// farFuture stands in for "no cursor" on local range queries.
var farFuture = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// FutureDate is the cursor used for a first-page local query.
func FutureDate() time.Time { return farFuture }
