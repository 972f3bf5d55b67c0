package viewmodel

import (
	"context"
	"errors"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/alert"
	"github.com/CristianUrbainski/teammate-android/internal/diff"
	"github.com/CristianUrbainski/teammate-android/internal/gofer"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
)

// GameViewModel lists each team's games, newest first. Games the team
// declined to play away are left out.
type GameViewModel struct {
	*Mapped[string, *model.Game]

	repo     Repository[*model.Game]
	eligible gofer.EligibleTeamClient
	bus      *alert.Bus
	deps     Deps

	unsubscribe func()
}

// NewGameViewModel creates the game view model and subscribes it to game
// deletions on the bus.
func NewGameViewModel(repo Repository[*model.Game], eligible gofer.EligibleTeamClient, deps Deps) *GameViewModel {
	vm := &GameViewModel{
		repo:     repo,
		eligible: eligible,
		bus:      deps.Bus,
		deps:     deps,
	}

	vm.Mapped = NewMapped(MappedConfig[string, *model.Game]{
		Name:         "games",
		Loop:         deps.Loop,
		Fetch:        withoutDeclined(repo.ModelsBefore),
		Date:         func(g *model.Game) time.Time { return g.Created },
		Merge:        reconcile.PreserveDescending,
		OnInvalidKey: deps.OnInvalidKey,
		OnChange:     deps.OnChange,
		Logger:       deps.Logger,
	})

	vm.unsubscribe = subscribe(deps.Bus, deps.Logger, vm.onAlert)

	return vm
}

// withoutDeclined drops games the key team declined as the away side.
func withoutDeclined(fetch FetchFunc[string, *model.Game]) FetchFunc[string, *model.Game] {
	return func(ctx context.Context, teamID string, before time.Time, emit func([]*model.Game) error) error {
		return fetch(ctx, teamID, before, func(games []*model.Game) error {
			kept := make([]*model.Game, 0, len(games))
			for _, g := range games {
				if g.Away.Declined && g.Away.HasEntity(teamID) {
					continue
				}

				kept = append(kept, g)
			}

			return emit(kept)
		})
	}
}

// Close stops listening for alerts and forgets every list.
func (vm *GameViewModel) Close() {
	vm.unsubscribe()
	vm.Clear()
}

// Gofer returns a detail controller for g.
func (vm *GameViewModel) Gofer(g *model.Game) *gofer.GameGofer {
	return gofer.NewGameGofer(g, gofer.GameConfig{
		Loop: vm.Loop(),
		Funcs: gofer.Funcs[*model.Game]{
			Get: func(ctx context.Context, id string, emit func(*model.Game) error) error {
				return vm.CheckInvalidObject(ctx, vm.repo.Get(ctx, id, emit), id)
			},
			Upsert: vm.Save,
			Delete: vm.Delete,
		},
		Eligible: vm.eligible,
		Logger:   vm.deps.Logger,
	})
}

// Save creates or updates g. A new game is announced as a creation, which
// adds it to the list of every team playing in it.
func (vm *GameViewModel) Save(ctx context.Context, g *model.Game) (*model.Game, error) {
	created := g.IsEmpty()

	saved, err := vm.repo.CreateOrUpdate(ctx, g)
	if err != nil {
		return saved, vm.CheckInvalidObject(ctx, err, g.ID)
	}

	if created {
		if vm.bus != nil {
			vm.bus.Publish(alert.Creation{Model: saved.Clone()})
		}

		return saved, nil
	}

	return saved, vm.Replace(ctx, saved.Clone())
}

// EndGame marks g ended and saves it. Lists show the ended copy at once;
// if the save fails the copy is reverted to not ended, and an
// invalid-object rejection also evicts it. g itself is not modified.
func (vm *GameViewModel) EndGame(ctx context.Context, g *model.Game) (*model.Game, error) {
	ended := g.Clone()
	ended.Ended = true

	if err := vm.Replace(ctx, ended.Clone()); err != nil {
		return nil, err
	}

	saved, err := vm.repo.CreateOrUpdate(ctx, ended.Clone())
	if err == nil {
		return saved, vm.Replace(ctx, saved.Clone())
	}

	reverted := ended.Clone()
	reverted.Ended = false

	if rerr := vm.Replace(ctx, reverted.Clone()); rerr != nil {
		return reverted, errors.Join(err, rerr)
	}

	return reverted, vm.CheckInvalidObject(ctx, err, g.ID)
}

// Delete removes g from the backend, the cache and every list, then
// announces the deletion.
func (vm *GameViewModel) Delete(ctx context.Context, g *model.Game) error {
	if err := vm.repo.Delete(ctx, g); err != nil {
		return vm.CheckInvalidObject(ctx, err, g.ID)
	}

	if err := vm.Remove(ctx, g.ID); err != nil {
		return err
	}

	if vm.bus != nil {
		vm.bus.Publish(alert.Deletion{Model: g})
	}

	return nil
}

func (vm *GameViewModel) onAlert(ctx context.Context, a alert.Alert) error {
	switch a := a.(type) {
	case alert.Creation:
		if g, ok := a.Model.(*model.Game); ok {
			return vm.AddLoaded(ctx, g.Clone(), g.Parties()...)
		}
	case alert.Deletion:
		switch m := a.Model.(type) {
		case *model.Game:
			return vm.Remove(ctx, m.ID)
		case *model.Tournament:
			return vm.RemoveWhere(ctx, func(d diff.Differentiable) bool {
				g, ok := d.(*model.Game)
				return ok && g.TournamentID == m.ID
			})
		}
	case alert.Eviction:
		vm.Drop(a.ID)
	}

	return nil
}
