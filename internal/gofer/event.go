package gofer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/CristianUrbainski/teammate-android/internal/alert"
	"github.com/CristianUrbainski/teammate-android/internal/diff"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
)

// GuestClient is the remote an EventGofer reads guests from and RSVPs
// through.
type GuestClient interface {
	GetGuests(ctx context.Context, eventID string) ([]*model.Guest, error)
	RSVPEvent(ctx context.Context, eventID string, attending bool) (*model.Guest, error)
}

// RoleClient lists the signed-in user's roles.
type RoleClient interface {
	GetMyRoles(ctx context.Context) ([]*model.Role, error)
}

// EventConfig wires an EventGofer.
type EventConfig struct {
	Loop    *reconcile.Loop
	Funcs   Funcs[*model.Event]
	Guests  GuestClient
	Roles   RoleClient
	OnError func(error)
	Logger  *slog.Logger
}

// EventGofer shows an event's fields and its guests.
type EventGofer struct {
	*Gofer[*model.Event]

	guests GuestClient
	roles  RoleClient

	mu         sync.Mutex
	privileged *bool
}

// NewEventGofer creates a gofer for ev.
func NewEventGofer(ev *model.Event, cfg EventConfig) *EventGofer {
	eg := &EventGofer{guests: cfg.Guests, roles: cfg.Roles}

	var changes ChangeEmitter
	if cfg.Roles != nil {
		changes = eg.privilegeChanged
	}

	eg.Gofer = New(ev, Config[*model.Event]{
		Name:    "event",
		Loop:    cfg.Loop,
		Funcs:   cfg.Funcs,
		Derive:  eventItems,
		Related: eg.fetchGuests,
		Changes: changes,
		OnError: cfg.OnError,
		Logger:  cfg.Logger,
	})

	return eg
}

func eventItems(ev *model.Event) []diff.Differentiable {
	return reconcile.Items(ev.Items())
}

func (eg *EventGofer) fetchGuests(ctx context.Context, ev *model.Event) ([]diff.Differentiable, error) {
	if eg.guests == nil {
		return nil, nil
	}

	guests, err := eg.guests.GetGuests(ctx, ev.ID)
	if err != nil {
		return nil, err
	}

	return reconcile.Items(guests), nil
}

// RSVP records the signed-in user's attendance. The returned guest
// replaces any guest already listed for the same user.
func (eg *EventGofer) RSVP(ctx context.Context, attending bool, deliver func(reconcile.Outcome)) (*model.Guest, error) {
	id, err := eg.id(ctx)
	if err != nil {
		return nil, eg.fail(err)
	}

	guest, err := eg.guests.RSVPEvent(ctx, id, attending)
	if err != nil {
		return nil, eg.fail(err)
	}

	_, err = reconcile.Mutate(ctx, eg.loop, eg.list, func(current []diff.Differentiable) []diff.Differentiable {
		current = reconcile.Filter(guestOf(guest.User.ID))(current)
		return eg.merge(current, []diff.Differentiable{guest})
	}, deliver)

	return guest, eg.fail(err)
}

// Attending reports whether the user is listed as an attending guest.
func (eg *EventGofer) Attending(ctx context.Context, userID string) (bool, error) {
	items, err := eg.Items(ctx)
	if err != nil {
		return false, err
	}

	for _, item := range items {
		if g, ok := item.(*model.Guest); ok && g.User.ID == userID && g.Attending {
			return true, nil
		}
	}

	return false, nil
}

// OnUserBlocked removes the blocked user's guests when the ban is for this
// event's team.
func (eg *EventGofer) OnUserBlocked(ctx context.Context, b *model.BlockedUser, deliver func(reconcile.Outcome)) error {
	_, err := reconcile.Mutate(ctx, eg.loop, eg.list, func(current []diff.Differentiable) []diff.Differentiable {
		if b.Team.ID != eg.model.Team.ID {
			return current
		}

		return reconcile.Filter(guestOf(b.User.ID))(current)
	}, deliver)

	return err
}

// Subscribe removes guests of users blocked on bus until the returned
// function is called.
func (eg *EventGofer) Subscribe(ctx context.Context, bus *alert.Bus, deliver func(reconcile.Outcome)) (unsubscribe func()) {
	return bus.Subscribe(func(a alert.Alert) {
		blocked, ok := a.(alert.Blocked)
		if !ok || blocked.User == nil {
			return
		}

		// Publishers may be on the loop, so the removal cannot block here.
		go func() {
			if err := eg.OnUserBlocked(ctx, blocked.User, deliver); err != nil {
				eg.logger.Debug("dropping blocked guests", slog.String("error", err.Error()))
			}
		}()
	})
}

func guestOf(userID string) func(diff.Differentiable) bool {
	return func(d diff.Differentiable) bool {
		g, ok := d.(*model.Guest)
		return ok && g.User.ID == userID
	}
}

// privilegeChanged flips when the signed-in user gains or loses an admin
// or coach role in the event's team. The first call records a baseline.
func (eg *EventGofer) privilegeChanged(ctx context.Context) (bool, error) {
	ev, err := eg.Model(ctx)
	if err != nil {
		return false, err
	}

	roles, err := eg.roles.GetMyRoles(ctx)
	if err != nil {
		return false, err
	}

	now := false
	for _, r := range roles {
		if r.Team.ID == ev.Team.ID && r.IsPrivileged() {
			now = true
			break
		}
	}

	eg.mu.Lock()
	defer eg.mu.Unlock()

	if eg.privileged == nil {
		eg.privileged = &now
		return false, nil
	}

	changed := *eg.privileged != now
	*eg.privileged = now

	return changed, nil
}

// Privileged reports the last observed privilege status, false before
// the first check.
func (eg *EventGofer) Privileged() bool {
	eg.mu.Lock()
	defer eg.mu.Unlock()

	return eg.privileged != nil && *eg.privileged
}
