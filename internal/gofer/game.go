package gofer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
)

// EligibleTeamClient lists the teams the signed-in user may manage a
// game as.
type EligibleTeamClient interface {
	GetEligibleTeams(ctx context.Context, gameID string) ([]*model.Team, error)
}

// GameConfig wires a GameGofer.
type GameConfig struct {
	Loop     *reconcile.Loop
	Funcs    Funcs[*model.Game]
	Eligible EligibleTeamClient
	OnError  func(error)
	Logger   *slog.Logger
}

// GameGofer shows a game's fields and its competitors.
type GameGofer struct {
	*Gofer[*model.Game]

	eligible EligibleTeamClient

	mu    sync.Mutex
	teams []*model.Team
}

// NewGameGofer creates a gofer for g.
func NewGameGofer(g *model.Game, cfg GameConfig) *GameGofer {
	gg := &GameGofer{eligible: cfg.Eligible}

	var changes ChangeEmitter
	if cfg.Eligible != nil {
		changes = gg.eligibleChanged
	}

	gg.Gofer = New(g, Config[*model.Game]{
		Name:    "game",
		Loop:    cfg.Loop,
		Funcs:   cfg.Funcs,
		Derive:  gameItems,
		Merge:   reconcile.RemoveWhere(reconcile.PreserveAscending, emptyCompetitor),
		Changes: changes,
		OnError: cfg.OnError,
		Logger:  cfg.Logger,
	})

	return gg
}

// gameItems projects the game's fields and clones of its seated
// competitors, so later updates to the game never alias list items.
func gameItems(g *model.Game) []diff.Differentiable {
	out := reconcile.Items(g.Items())
	for _, c := range g.Competitors() {
		out = append(out, c.Clone())
	}

	return out
}

func emptyCompetitor(d diff.Differentiable) bool {
	c, ok := d.(*model.Competitor)
	return ok && c.IsEmpty()
}

// eligibleChanged refreshes the eligible teams and reports whether their
// count changed.
func (gg *GameGofer) eligibleChanged(ctx context.Context) (bool, error) {
	id, err := gg.id(ctx)
	if err != nil || id == "" {
		return false, err
	}

	teams, err := gg.eligible.GetEligibleTeams(ctx, id)
	if err != nil {
		return false, err
	}

	gg.mu.Lock()
	defer gg.mu.Unlock()

	changed := len(gg.teams) != len(teams)
	gg.teams = teams

	return changed, nil
}

// RefreshEligible reloads the eligible teams without touching the pending
// change flag.
func (gg *GameGofer) RefreshEligible(ctx context.Context) error {
	if gg.eligible == nil {
		return nil
	}

	_, err := gg.eligibleChanged(ctx)

	return gg.fail(err)
}

// EligibleTeams returns the teams last loaded by the change check.
func (gg *GameGofer) EligibleTeams() []*model.Team {
	gg.mu.Lock()
	defer gg.mu.Unlock()

	out := make([]*model.Team, len(gg.teams))
	copy(out, gg.teams)

	return out
}

// CanEdit reports whether the game's score may be changed: an unsaved game
// always can; a saved one needs to be ongoing, have an eligible team, and
// have both competitors accepted.
func (gg *GameGofer) CanEdit(ctx context.Context) (bool, error) {
	g, err := gg.Model(ctx)
	if err != nil {
		return false, err
	}

	if g.IsEmpty() {
		return true, nil
	}

	accepted := g.Home.Accepted && g.Away.Accepted

	return !g.Ended && len(gg.EligibleTeams()) > 0 && accepted, nil
}

// CanDelete reports whether user may delete the game. Tournament games
// never can. Games missing a competitor always can. Otherwise the home
// competitor must be the user, or a team the user is eligible for.
func (gg *GameGofer) CanDelete(ctx context.Context, user *model.User) (bool, error) {
	g, err := gg.Model(ctx)
	if err != nil {
		return false, err
	}

	switch {
	case g.TournamentID != "":
		return false, nil
	case g.Home.IsEmpty(), g.Away.IsEmpty():
		return true, nil
	}

	home := g.Home.Entity.ItemID()
	if user != nil && home == user.ID {
		return true, nil
	}

	for _, t := range gg.EligibleTeams() {
		if t.ID == home {
			return true, nil
		}
	}

	return false, nil
}
