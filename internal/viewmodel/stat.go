package viewmodel

import (
	"context"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/alert"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
)

// StatViewModel lists each game's stats, newest first.
type StatViewModel struct {
	*Mapped[string, *model.Stat]

	repo        Repository[*model.Stat]
	unsubscribe func()
}

func NewStatViewModel(repo Repository[*model.Stat], deps Deps) *StatViewModel {
	vm := &StatViewModel{repo: repo}

	vm.Mapped = NewMapped(MappedConfig[string, *model.Stat]{
		Name:     "stats",
		Loop:     deps.Loop,
		Fetch:    repo.ModelsBefore,
		Date:     func(s *model.Stat) time.Time { return s.Created },
		Merge:    reconcile.PreserveDescending,
		OnChange: deps.OnChange,
		Logger:   deps.Logger,
	})

	vm.unsubscribe = subscribe(deps.Bus, deps.Logger, vm.onAlert)

	return vm
}

func (vm *StatViewModel) Close() {
	vm.unsubscribe()
	vm.Clear()
}

// Record creates s and merges it into its game's list.
func (vm *StatViewModel) Record(ctx context.Context, s *model.Stat, deliver func(reconcile.Outcome)) (*model.Stat, error) {
	saved, err := vm.repo.CreateOrUpdate(ctx, s)
	if err != nil {
		return nil, err
	}

	return saved, vm.Add(ctx, saved.GameID, deliver, saved.Clone())
}

// Delete removes s from the backend, the cache and every list.
func (vm *StatViewModel) Delete(ctx context.Context, s *model.Stat) error {
	if err := vm.repo.Delete(ctx, s); err != nil {
		return vm.CheckInvalidObject(ctx, err, s.ID)
	}

	return vm.Remove(ctx, s.ID)
}

// onAlert forgets a deleted game's stats.
func (vm *StatViewModel) onAlert(_ context.Context, a alert.Alert) error {
	if d, ok := a.(alert.Deletion); ok {
		if g, ok := d.Model.(*model.Game); ok {
			vm.Drop(g.ID)
		}
	}

	return nil
}
