package repo

import (
	"errors"
	"math"

	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/store"
)

type (
	EventRepo      = Repo[*model.Event]
	GameRepo       = Repo[*model.Game]
	StatRepo       = Repo[*model.Stat]
	ChatRepo       = Repo[*model.Chat]
	TournamentRepo = Repo[*model.Tournament]
	CompetitorRepo = Repo[*model.Competitor]
)

// NewEventRepo creates the event repository. Deleting an event deletes
// the game it was created for.
func NewEventRepo(c EventClient, cols *store.Collections, cfg Config) *EventRepo {
	return New[*model.Event]("events", eventRemote{c}, cols.Events, cfg, func(ev *model.Event) error {
		if ev.GameID == "" {
			return nil
		}

		return deleteGame(cols, ev.GameID)
	})
}

// NewGameRepo creates the game repository. Deleting a game deletes its
// event and its stats.
func NewGameRepo(c GameClient, cols *store.Collections, cfg Config) *GameRepo {
	return New[*model.Game]("games", gameRemote{c}, cols.Games, cfg, func(g *model.Game) error {
		var errs []error

		if g.EventID != "" {
			_, err := cols.Events.Delete(g.EventID)
			errs = append(errs, err)
		}

		_, err := cols.Stats.DeleteByParent(g.ID)
		errs = append(errs, err)

		return errors.Join(errs...)
	})
}

func NewStatRepo(c StatClient, cols *store.Collections, cfg Config) *StatRepo {
	return New[*model.Stat]("stats", statRemote{c}, cols.Stats, cfg, nil)
}

func NewChatRepo(c ChatClient, cols *store.Collections, cfg Config) *ChatRepo {
	return New[*model.Chat]("chats", chatRemote{c}, cols.Chats, cfg, nil)
}

// NewTournamentRepo creates the tournament repository. Deleting a
// tournament deletes its competitors.
func NewTournamentRepo(c TournamentClient, cols *store.Collections, cfg Config) *TournamentRepo {
	return New[*model.Tournament]("tournaments", tournamentRemote{c}, cols.Tournaments, cfg, func(t *model.Tournament) error {
		_, err := cols.Competitors.DeleteByParent(t.ID)
		return err
	})
}

// NewCompetitorRepo creates the competitor repository. Competitors are
// only ever updated: a response to the seat they were offered.
func NewCompetitorRepo(c CompetitorClient, cols *store.Collections, cfg Config) *CompetitorRepo {
	return New[*model.Competitor]("competitors", competitorRemote{c}, cols.Competitors, cfg, nil)
}

func deleteGame(cols *store.Collections, id string) error {
	if _, err := cols.Games.Delete(id); err != nil {
		return err
	}

	_, err := cols.Stats.DeleteByParent(id)

	return err
}

// EvictTeam drops everything cached for a team the user can no longer
// see: its events, its games and their stats, its tournaments and their
// competitors, and its chats.
func EvictTeam(cols *store.Collections, teamID string) error {
	games, err := cols.Games.Before(teamID, model.FutureDate(), math.MaxInt)
	if err != nil {
		return err
	}

	tournaments, err := cols.Tournaments.Before(teamID, model.FutureDate(), math.MaxInt)
	if err != nil {
		return err
	}

	var errs []error

	for _, g := range games {
		_, err := cols.Stats.DeleteByParent(g.ID)
		errs = append(errs, err)
	}

	for _, t := range tournaments {
		_, err := cols.Competitors.DeleteByParent(t.ID)
		errs = append(errs, err)
	}

	for _, del := range []func(string) (int, error){
		cols.Events.DeleteByParent,
		cols.Games.DeleteByParent,
		cols.Tournaments.DeleteByParent,
		cols.Chats.DeleteByParent,
	} {
		_, err := del(teamID)
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
