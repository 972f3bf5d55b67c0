package viewmodel

import (
	"context"
	"log/slog"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/alert"
	"github.com/CristianUrbainski/teammate-android/internal/diff"
	"github.com/CristianUrbainski/teammate-android/internal/gofer"
	"github.com/CristianUrbainski/teammate-android/internal/logging"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
)

// Deps are what every concrete view model is built from.
type Deps struct {
	Loop *reconcile.Loop
	Bus  *alert.Bus

	// OnInvalidKey runs after a team's list is dropped, e.g. to evict the
	// team from the cache.
	OnInvalidKey func(teamID string)

	OnChange func(key string, o reconcile.Outcome)
	Logger   *slog.Logger
}

// EventViewModel lists each team's events, newest first.
type EventViewModel struct {
	*Mapped[string, *model.Event]

	repo   Repository[*model.Event]
	guests gofer.GuestClient
	roles  gofer.RoleClient
	bus    *alert.Bus
	logger *slog.Logger

	unsubscribe func()
}

// NewEventViewModel creates the event view model and subscribes it to
// game deletions on the bus. Close unsubscribes.
func NewEventViewModel(repo Repository[*model.Event], guests gofer.GuestClient, roles gofer.RoleClient, deps Deps) *EventViewModel {
	vm := &EventViewModel{
		repo:   repo,
		guests: guests,
		roles:  roles,
		bus:    deps.Bus,
		logger: deps.Logger,
	}

	vm.Mapped = NewMapped(MappedConfig[string, *model.Event]{
		Name:         "events",
		Loop:         deps.Loop,
		Fetch:        repo.ModelsBefore,
		Date:         func(ev *model.Event) time.Time { return ev.StartDate },
		Merge:        reconcile.PreserveDescending,
		OnInvalidKey: deps.OnInvalidKey,
		OnChange:     deps.OnChange,
		Logger:       deps.Logger,
	})

	vm.unsubscribe = subscribe(deps.Bus, deps.Logger, vm.onAlert)

	return vm
}

// Close stops listening for alerts and forgets every list.
func (vm *EventViewModel) Close() {
	vm.unsubscribe()
	vm.Clear()
}

// Gofer returns a detail controller for ev. Invalid-object failures evict
// ev from every list.
func (vm *EventViewModel) Gofer(ev *model.Event) *gofer.EventGofer {
	return gofer.NewEventGofer(ev, gofer.EventConfig{
		Loop: vm.Loop(),
		Funcs: gofer.Funcs[*model.Event]{
			Get: func(ctx context.Context, id string, emit func(*model.Event) error) error {
				return vm.CheckInvalidObject(ctx, vm.repo.Get(ctx, id, emit), id)
			},
			Upsert: vm.Save,
			Delete: vm.Delete,
		},
		Guests: vm.guests,
		Roles:  vm.roles,
		Logger: vm.logger,
	})
}

// Save creates or updates ev. A new event is announced as a creation, which
// adds it to its team's list; an update is swapped into every list holding
// it.
func (vm *EventViewModel) Save(ctx context.Context, ev *model.Event) (*model.Event, error) {
	created := ev.IsEmpty()

	saved, err := vm.repo.CreateOrUpdate(ctx, ev)
	if err != nil {
		return saved, vm.CheckInvalidObject(ctx, err, ev.ID)
	}

	if created {
		if vm.bus != nil {
			vm.bus.Publish(alert.Creation{Model: saved.Clone()})
		}

		return saved, nil
	}

	return saved, vm.Replace(ctx, saved.Clone())
}

// Delete removes ev from the backend, the cache and every list, then
// announces the deletion.
func (vm *EventViewModel) Delete(ctx context.Context, ev *model.Event) error {
	if err := vm.repo.Delete(ctx, ev); err != nil {
		return vm.CheckInvalidObject(ctx, err, ev.ID)
	}

	if err := vm.Remove(ctx, ev.ID); err != nil {
		return err
	}

	if vm.bus != nil {
		vm.bus.Publish(alert.Deletion{Model: ev})
	}

	return nil
}

func (vm *EventViewModel) onAlert(ctx context.Context, a alert.Alert) error {
	switch a := a.(type) {
	case alert.Creation:
		if ev, ok := a.Model.(*model.Event); ok {
			return vm.AddLoaded(ctx, ev.Clone(), ev.Team.ID)
		}
	case alert.Deletion:
		if g, ok := a.Model.(*model.Game); ok {
			return vm.RemoveWhere(ctx, eventForGame(g.ID))
		}
	case alert.Eviction:
		vm.Drop(a.ID)
	}

	return nil
}

func eventForGame(gameID string) func(diff.Differentiable) bool {
	return func(d diff.Differentiable) bool {
		ev, ok := d.(*model.Event)
		return ok && ev.GameID != "" && ev.GameID == gameID
	}
}

// subscribe runs handle for every alert on its own goroutine, since
// publishers may be on the loop. A nil bus subscribes to nothing.
func subscribe(bus *alert.Bus, logger *slog.Logger, handle func(context.Context, alert.Alert) error) func() {
	if bus == nil {
		return func() {}
	}

	logger = logging.Component(logger, "viewmodel")

	ctx, cancel := context.WithCancel(context.Background())
	unsubscribe := bus.Subscribe(func(a alert.Alert) {
		go func() {
			if err := handle(ctx, a); err != nil && ctx.Err() == nil {
				logger.Debug("handling alert", slog.String("kind", alert.Kind(a)), slog.String("error", err.Error()))
			}
		}()
	})

	return func() {
		unsubscribe()
		cancel()
	}
}
