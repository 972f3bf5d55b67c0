package viewmodel

import (
	"context"
	"fmt"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/alert"
	"github.com/CristianUrbainski/teammate-android/internal/diff"
	apperrors "github.com/CristianUrbainski/teammate-android/internal/errors"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
)

// CompetitorViewModel keeps the seats the signed-in user, or a team they
// manage, declined, newest first. Its one list lives under
// model.DeclinedCompetitors.
type CompetitorViewModel struct {
	*Mapped[string, *model.Competitor]

	repo Repository[*model.Competitor]
	bus  *alert.Bus

	unsubscribe func()
}

func NewCompetitorViewModel(repo Repository[*model.Competitor], deps Deps) *CompetitorViewModel {
	vm := &CompetitorViewModel{repo: repo, bus: deps.Bus}

	vm.Mapped = NewMapped(MappedConfig[string, *model.Competitor]{
		Name:     "competitors",
		Loop:     deps.Loop,
		Fetch:    repo.ModelsBefore,
		Date:     func(c *model.Competitor) time.Time { return c.Created },
		Merge:    reconcile.RemoveWhere(reconcile.PreserveDescending, notDeclined),
		OnChange: deps.OnChange,
		Logger:   deps.Logger,
	})

	vm.unsubscribe = subscribe(deps.Bus, deps.Logger, vm.onAlert)

	return vm
}

func notDeclined(d diff.Differentiable) bool {
	c, ok := d.(*model.Competitor)
	return ok && !c.Declined
}

func (vm *CompetitorViewModel) Close() {
	vm.unsubscribe()
	vm.Clear()
}

// Declined returns the loaded declined seats.
func (vm *CompetitorViewModel) Declined(ctx context.Context) ([]*model.Competitor, error) {
	return vm.Values(ctx, model.DeclinedCompetitors)
}

// Fetch returns the freshest copy of the competitor with id, for seats
// not on the declined list.
func (vm *CompetitorViewModel) Fetch(ctx context.Context, id string) (*model.Competitor, error) {
	var last *model.Competitor

	err := vm.repo.Get(ctx, id, func(c *model.Competitor) error {
		last = c
		return nil
	})
	if err != nil {
		return nil, vm.CheckInvalidObject(ctx, err, id)
	}

	if last == nil {
		return nil, fmt.Errorf("competitor %q: %w", id, apperrors.ErrInvalidObject)
	}

	return last, nil
}

// Update refetches c and folds the backend's copy into the declined list,
// dropping it there once it is no longer declined. An unsaved c is a
// no-op.
func (vm *CompetitorViewModel) Update(ctx context.Context, c *model.Competitor) error {
	if c.IsEmpty() {
		return nil
	}

	err := vm.repo.Get(ctx, c.ID, func(fetched *model.Competitor) error {
		return vm.AddLoaded(ctx, fetched.Clone(), model.DeclinedCompetitors)
	})

	return vm.CheckInvalidObject(ctx, err, c.ID)
}

// Respond accepts or declines the seat c was offered. c itself is not
// modified. The saved answer is merged into the declined list, which
// keeps a decline and drops an accept. A decline also announces the game
// or tournament as gone, since the user will no longer see it.
func (vm *CompetitorViewModel) Respond(ctx context.Context, c *model.Competitor, accept bool, deliver func(reconcile.Outcome)) (*model.Competitor, error) {
	answer := c.Clone()
	answer.Respond(accept)

	saved, err := vm.repo.CreateOrUpdate(ctx, answer)
	if err != nil {
		return nil, vm.CheckInvalidObject(ctx, err, c.ID)
	}

	if err := vm.Add(ctx, model.DeclinedCompetitors, deliver, saved.Clone()); err != nil {
		return saved, err
	}

	if accept || vm.bus == nil {
		return saved, nil
	}

	switch {
	case saved.InOneOffGame():
		vm.bus.Publish(alert.Deletion{Model: &model.Game{ID: saved.GameID}})
	case saved.TournamentID != "":
		vm.bus.Publish(alert.Deletion{Model: &model.Tournament{ID: saved.TournamentID}})
	}

	return saved, nil
}

// onAlert forgets declined seats held by an evicted team.
func (vm *CompetitorViewModel) onAlert(ctx context.Context, a alert.Alert) error {
	if e, ok := a.(alert.Eviction); ok {
		return vm.RemoveWhere(ctx, func(d diff.Differentiable) bool {
			c, ok := d.(*model.Competitor)
			return ok && c.HasEntity(e.ID)
		})
	}

	return nil
}
