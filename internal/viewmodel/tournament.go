package viewmodel

import (
	"context"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/alert"
	"github.com/CristianUrbainski/teammate-android/internal/api"
	"github.com/CristianUrbainski/teammate-android/internal/gofer"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
)

// TournamentViewModel lists the tournaments each team hosts, newest
// first.
type TournamentViewModel struct {
	*Mapped[string, *model.Tournament]

	repo  Repository[*model.Tournament]
	seats gofer.SeatClient
	bus   *alert.Bus
	deps  Deps

	unsubscribe func()
}

func NewTournamentViewModel(repo Repository[*model.Tournament], seats gofer.SeatClient, deps Deps) *TournamentViewModel {
	vm := &TournamentViewModel{
		repo:  repo,
		seats: seats,
		bus:   deps.Bus,
		deps:  deps,
	}

	vm.Mapped = NewMapped(MappedConfig[string, *model.Tournament]{
		Name:         "tournaments",
		Loop:         deps.Loop,
		Fetch:        repo.ModelsBefore,
		Date:         func(t *model.Tournament) time.Time { return t.Created },
		Merge:        reconcile.PreserveDescending,
		OnInvalidKey: deps.OnInvalidKey,
		OnChange:     deps.OnChange,
		Logger:       deps.Logger,
	})

	vm.unsubscribe = subscribe(deps.Bus, deps.Logger, vm.onAlert)

	return vm
}

func (vm *TournamentViewModel) Close() {
	vm.unsubscribe()
	vm.Clear()
}

// Gofer returns a detail controller for t.
func (vm *TournamentViewModel) Gofer(t *model.Tournament) *gofer.TournamentGofer {
	return gofer.NewTournamentGofer(t, gofer.TournamentConfig{
		Loop: vm.Loop(),
		Funcs: gofer.Funcs[*model.Tournament]{
			Get: func(ctx context.Context, id string, emit func(*model.Tournament) error) error {
				return vm.checkInvalid(ctx, vm.repo.Get(ctx, id, emit), &model.Tournament{ID: id})
			},
			Upsert: vm.Save,
			Delete: vm.Delete,
		},
		Seats:  vm.seats,
		Logger: vm.deps.Logger,
	})
}

// Save creates or updates t. A new tournament is announced as a
// creation, which adds it to its host's list.
func (vm *TournamentViewModel) Save(ctx context.Context, t *model.Tournament) (*model.Tournament, error) {
	created := t.IsEmpty()

	saved, err := vm.repo.CreateOrUpdate(ctx, t)
	if err != nil {
		return saved, vm.checkInvalid(ctx, err, t)
	}

	if created {
		vm.publish(alert.Creation{Model: saved.Clone()})
		return saved, nil
	}

	return saved, vm.Replace(ctx, saved.Clone())
}

// Delete removes t from the backend, the cache and every list, then
// announces the deletion.
func (vm *TournamentViewModel) Delete(ctx context.Context, t *model.Tournament) error {
	if err := vm.repo.Delete(ctx, t); err != nil {
		return vm.checkInvalid(ctx, err, t)
	}

	if err := vm.Remove(ctx, t.ID); err != nil {
		return err
	}

	vm.publish(alert.Deletion{Model: t})

	return nil
}

// checkInvalid evicts t when the backend no longer knows it and
// announces it gone, since its games and seats went with it.
func (vm *TournamentViewModel) checkInvalid(ctx context.Context, err error, t *model.Tournament) error {
	err = vm.CheckInvalidObject(ctx, err, t.ID)
	if api.IsInvalidObject(err) {
		vm.publish(alert.Deletion{Model: t})
	}

	return err
}

func (vm *TournamentViewModel) publish(a alert.Alert) {
	if vm.bus != nil {
		vm.bus.Publish(a)
	}
}

func (vm *TournamentViewModel) onAlert(ctx context.Context, a alert.Alert) error {
	switch a := a.(type) {
	case alert.Creation:
		if t, ok := a.Model.(*model.Tournament); ok {
			return vm.AddLoaded(ctx, t.Clone(), t.Host.ID)
		}
	case alert.Deletion:
		if t, ok := a.Model.(*model.Tournament); ok {
			return vm.Remove(ctx, t.ID)
		}
	case alert.Eviction:
		vm.Drop(a.ID)
	}

	return nil
}
