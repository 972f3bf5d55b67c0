package viewmodel

import (
	"context"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/alert"
	"github.com/CristianUrbainski/teammate-android/internal/diff"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
)

// ChatViewModel lists each team's chats, oldest first, with unsent chats
// shown in place until the backend acknowledges them.
type ChatViewModel struct {
	*Mapped[string, *model.Chat]

	repo        Repository[*model.Chat]
	unsubscribe func()
}

func NewChatViewModel(repo Repository[*model.Chat], deps Deps) *ChatViewModel {
	vm := &ChatViewModel{repo: repo}

	vm.Mapped = NewMapped(MappedConfig[string, *model.Chat]{
		Name:  "chats",
		Loop:  deps.Loop,
		Fetch: repo.ModelsBefore,
		Date:  func(c *model.Chat) time.Time { return c.Created },
		Merge: reconcile.PreserveAscending,
		// Older pages load above the oldest acknowledged chat.
		Cursor:       FirstOf(func(c *model.Chat) bool { return !c.IsEmpty() }),
		OnInvalidKey: deps.OnInvalidKey,
		OnChange:     deps.OnChange,
		Logger:       deps.Logger,
	})

	vm.unsubscribe = subscribe(deps.Bus, deps.Logger, vm.onAlert)

	return vm
}

func (vm *ChatViewModel) Close() {
	vm.unsubscribe()
	vm.Clear()
}

// Post shows chat as unsent in its team's list, then sends it. On
// success chat is updated in place with the acknowledged copy and the
// unsent entry is swapped for it. On failure the unsent entry stays and
// the error is returned.
func (vm *ChatViewModel) Post(ctx context.Context, chat *model.Chat, deliver func(reconcile.Outcome)) error {
	chat.Unsent = true
	chat.Normalize()

	pending := chat.Clone()
	key := chat.Team.ID

	if err := vm.Add(ctx, key, deliver, pending); err != nil {
		return err
	}

	acked, err := vm.repo.CreateOrUpdate(ctx, chat.Clone())
	if err != nil {
		return err
	}

	chat.Update(acked)
	confirmed := chat.Clone()

	return vm.Mutate(ctx, key, func(current []diff.Differentiable) []diff.Differentiable {
		current = reconcile.Filter(sameMessage(confirmed))(current)
		return reconcile.PreserveAscending(current, []diff.Differentiable{confirmed})
	}, deliver)
}

// Receive merges a chat pushed by the backend. An unsent entry for the
// same message is replaced.
func (vm *ChatViewModel) Receive(ctx context.Context, chat *model.Chat, deliver func(reconcile.Outcome)) error {
	chat.Normalize()
	chat.Unsent = false

	return vm.Mutate(ctx, chat.Team.ID, func(current []diff.Differentiable) []diff.Differentiable {
		current = reconcile.Filter(sameMessage(chat))(current)
		return reconcile.PreserveAscending(current, []diff.Differentiable{chat})
	}, deliver)
}

// Unsent returns the team's chats that have not been acknowledged.
func (vm *ChatViewModel) Unsent(ctx context.Context, teamID string) ([]*model.Chat, error) {
	chats, err := vm.Values(ctx, teamID)
	if err != nil {
		return nil, err
	}

	out := chats[:0]
	for _, c := range chats {
		if c.IsEmpty() {
			out = append(out, c)
		}
	}

	return out, nil
}

func sameMessage(c *model.Chat) func(diff.Differentiable) bool {
	return func(d diff.Differentiable) bool {
		o, ok := d.(*model.Chat)
		return ok && o.SameMessage(c)
	}
}

func (vm *ChatViewModel) onAlert(_ context.Context, a alert.Alert) error {
	if e, ok := a.(alert.Eviction); ok {
		vm.Drop(e.ID)
	}

	return nil
}
