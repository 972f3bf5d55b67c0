// Package alert is an in-process bus for cross-cutting model events, such
// as a game being deleted from one screen while another lists its events.
package alert

import (
	"log/slog"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
	"github.com/CristianUrbainski/teammate-android/internal/logging"
	"github.com/CristianUrbainski/teammate-android/internal/model"
)

// Alert is one of Deletion, Creation, Eviction or Blocked.
type Alert interface {
	alert()
}

// Deletion reports that a model was deleted.
type Deletion struct {
	Model diff.Differentiable
}

// Creation reports that a model was created.
type Creation struct {
	Model diff.Differentiable
}

// Eviction reports that a team, and everything under it, was dropped
// from the cache.
type Eviction struct {
	ID string
}

// Blocked reports that a user was banned from a team.
type Blocked struct {
	User *model.BlockedUser
}

func (Deletion) alert() {}
func (Creation) alert() {}
func (Eviction) alert() {}
func (Blocked) alert()  {}

// Bus fans alerts out to subscribers. Subscribers run synchronously on the
// publisher's goroutine and must not block.
type Bus struct {
	subs   *xsync.MapOf[uint64, func(Alert)]
	nextID atomic.Uint64
	logger *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   xsync.NewMapOf[uint64, func(Alert)](),
		logger: logging.Component(logger, "alert"),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Alert)) (unsubscribe func()) {
	id := b.nextID.Add(1)
	b.subs.Store(id, fn)

	return func() { b.subs.Delete(id) }
}

// Publish delivers a to every current subscriber.
func (b *Bus) Publish(a Alert) {
	b.logger.Debug("publishing alert", slog.String("kind", Kind(a)))

	b.subs.Range(func(_ uint64, fn func(Alert)) bool {
		fn(a)
		return true
	})
}

// Len is the number of subscribers.
func (b *Bus) Len() int {
	return b.subs.Size()
}

// Kind names an alert for logs.
func Kind(a Alert) string {
	switch a.(type) {
	case Deletion:
		return "deletion"
	case Creation:
		return "creation"
	case Eviction:
		return "eviction"
	case Blocked:
		return "blocked"
	}

	return "unknown"
}
