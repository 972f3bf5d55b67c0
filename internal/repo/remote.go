package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/model"
)

//go:generate mockgen -source=remote.go -destination=mock_remote.go -package=repo

// Remote is the backend half of a repository. Implementations wrap the
// API client's endpoints for one entity.
type Remote[M any] interface {
	Fetch(ctx context.Context, id string) (M, error)
	Create(ctx context.Context, m M) (M, error)
	Update(ctx context.Context, m M) (M, error)
	Delete(ctx context.Context, m M) error
	Page(ctx context.Context, parent string, before time.Time, limit int) ([]M, error)
}

// EventClient is the subset of the API client the event repository uses.
type EventClient interface {
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	CreateEvent(ctx context.Context, ev *model.Event) (*model.Event, error)
	UpdateEvent(ctx context.Context, ev *model.Event) (*model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	GetEvents(ctx context.Context, teamID string, before time.Time, limit int) ([]*model.Event, error)
}

// GameClient is the subset of the API client the game repository uses.
type GameClient interface {
	GetGame(ctx context.Context, id string) (*model.Game, error)
	CreateGame(ctx context.Context, g *model.Game) (*model.Game, error)
	UpdateGame(ctx context.Context, g *model.Game) (*model.Game, error)
	DeleteGame(ctx context.Context, id string) error
	GetGames(ctx context.Context, teamID string, before time.Time, limit int) ([]*model.Game, error)
}

// StatClient is the subset of the API client the stat repository uses.
type StatClient interface {
	GetStats(ctx context.Context, gameID string, before time.Time, limit int) ([]*model.Stat, error)
	CreateStat(ctx context.Context, s *model.Stat) (*model.Stat, error)
	DeleteStat(ctx context.Context, id string) error
}

// ChatClient is the subset of the API client the chat repository uses.
type ChatClient interface {
	GetChats(ctx context.Context, teamID string, before time.Time, limit int) ([]*model.Chat, error)
	PostChat(ctx context.Context, chat *model.Chat) (*model.Chat, error)
}

// TournamentClient is the subset of the API client the tournament
// repository uses.
type TournamentClient interface {
	GetTournament(ctx context.Context, id string) (*model.Tournament, error)
	CreateTournament(ctx context.Context, t *model.Tournament) (*model.Tournament, error)
	UpdateTournament(ctx context.Context, t *model.Tournament) (*model.Tournament, error)
	DeleteTournament(ctx context.Context, id string) error
	GetTournaments(ctx context.Context, teamID string, before time.Time, limit int) ([]*model.Tournament, error)
}

// CompetitorClient is the subset of the API client the competitor
// repository uses.
type CompetitorClient interface {
	GetCompetitor(ctx context.Context, id string) (*model.Competitor, error)
	UpdateCompetitor(ctx context.Context, c *model.Competitor) (*model.Competitor, error)
	GetTournamentCompetitors(ctx context.Context, tournamentID string) ([]*model.Competitor, error)
	GetDeclinedCompetitors(ctx context.Context, before time.Time, limit int) ([]*model.Competitor, error)
}

type eventRemote struct{ c EventClient }

func (r eventRemote) Fetch(ctx context.Context, id string) (*model.Event, error) {
	return r.c.GetEvent(ctx, id)
}

func (r eventRemote) Create(ctx context.Context, ev *model.Event) (*model.Event, error) {
	return r.c.CreateEvent(ctx, ev)
}

func (r eventRemote) Update(ctx context.Context, ev *model.Event) (*model.Event, error) {
	return r.c.UpdateEvent(ctx, ev)
}

func (r eventRemote) Delete(ctx context.Context, ev *model.Event) error {
	return r.c.DeleteEvent(ctx, ev.ID)
}

func (r eventRemote) Page(ctx context.Context, team string, before time.Time, limit int) ([]*model.Event, error) {
	return r.c.GetEvents(ctx, team, before, limit)
}

type gameRemote struct{ c GameClient }

func (r gameRemote) Fetch(ctx context.Context, id string) (*model.Game, error) {
	return r.c.GetGame(ctx, id)
}

func (r gameRemote) Create(ctx context.Context, g *model.Game) (*model.Game, error) {
	return r.c.CreateGame(ctx, g)
}

func (r gameRemote) Update(ctx context.Context, g *model.Game) (*model.Game, error) {
	return r.c.UpdateGame(ctx, g)
}

func (r gameRemote) Delete(ctx context.Context, g *model.Game) error {
	return r.c.DeleteGame(ctx, g.ID)
}

func (r gameRemote) Page(ctx context.Context, team string, before time.Time, limit int) ([]*model.Game, error) {
	return r.c.GetGames(ctx, team, before, limit)
}

type statRemote struct{ c StatClient }

func (statRemote) Fetch(context.Context, string) (*model.Stat, error) {
	return nil, fmt.Errorf("fetching a single stat: %w", errors.ErrUnsupported)
}

func (r statRemote) Create(ctx context.Context, s *model.Stat) (*model.Stat, error) {
	return r.c.CreateStat(ctx, s)
}

func (statRemote) Update(context.Context, *model.Stat) (*model.Stat, error) {
	return nil, fmt.Errorf("updating a stat: %w", errors.ErrUnsupported)
}

func (r statRemote) Delete(ctx context.Context, s *model.Stat) error {
	return r.c.DeleteStat(ctx, s.ID)
}

func (r statRemote) Page(ctx context.Context, game string, before time.Time, limit int) ([]*model.Stat, error) {
	return r.c.GetStats(ctx, game, before, limit)
}

type chatRemote struct{ c ChatClient }

func (chatRemote) Fetch(context.Context, string) (*model.Chat, error) {
	return nil, fmt.Errorf("fetching a single chat: %w", errors.ErrUnsupported)
}

func (r chatRemote) Create(ctx context.Context, chat *model.Chat) (*model.Chat, error) {
	return r.c.PostChat(ctx, chat)
}

func (chatRemote) Update(context.Context, *model.Chat) (*model.Chat, error) {
	return nil, fmt.Errorf("editing a chat: %w", errors.ErrUnsupported)
}

func (chatRemote) Delete(context.Context, *model.Chat) error {
	return fmt.Errorf("deleting a chat: %w", errors.ErrUnsupported)
}

func (r chatRemote) Page(ctx context.Context, team string, before time.Time, limit int) ([]*model.Chat, error) {
	return r.c.GetChats(ctx, team, before, limit)
}

type tournamentRemote struct{ c TournamentClient }

func (r tournamentRemote) Fetch(ctx context.Context, id string) (*model.Tournament, error) {
	return r.c.GetTournament(ctx, id)
}

func (r tournamentRemote) Create(ctx context.Context, t *model.Tournament) (*model.Tournament, error) {
	return r.c.CreateTournament(ctx, t)
}

func (r tournamentRemote) Update(ctx context.Context, t *model.Tournament) (*model.Tournament, error) {
	return r.c.UpdateTournament(ctx, t)
}

func (r tournamentRemote) Delete(ctx context.Context, t *model.Tournament) error {
	return r.c.DeleteTournament(ctx, t.ID)
}

func (r tournamentRemote) Page(ctx context.Context, team string, before time.Time, limit int) ([]*model.Tournament, error) {
	return r.c.GetTournaments(ctx, team, before, limit)
}

type competitorRemote struct{ c CompetitorClient }

func (r competitorRemote) Fetch(ctx context.Context, id string) (*model.Competitor, error) {
	return r.c.GetCompetitor(ctx, id)
}

func (competitorRemote) Create(context.Context, *model.Competitor) (*model.Competitor, error) {
	return nil, fmt.Errorf("creating a competitor outside its tournament: %w", errors.ErrUnsupported)
}

func (r competitorRemote) Update(ctx context.Context, c *model.Competitor) (*model.Competitor, error) {
	return r.c.UpdateCompetitor(ctx, c)
}

func (competitorRemote) Delete(context.Context, *model.Competitor) error {
	return fmt.Errorf("deleting a competitor: %w", errors.ErrUnsupported)
}

// Page lists the declined seats, paged, or a tournament's seats, which
// come back whole on the first page.
func (r competitorRemote) Page(ctx context.Context, parent string, before time.Time, limit int) ([]*model.Competitor, error) {
	if parent == model.DeclinedCompetitors {
		return r.c.GetDeclinedCompetitors(ctx, before, limit)
	}

	if !before.IsZero() {
		return nil, nil
	}

	return r.c.GetTournamentCompetitors(ctx, parent)
}
