package gofer

import (
	"context"
	"log/slog"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
)

// SeatClient lists the competitors seated in a tournament.
type SeatClient interface {
	GetTournamentCompetitors(ctx context.Context, tournamentID string) ([]*model.Competitor, error)
}

// TournamentConfig wires a TournamentGofer.
type TournamentConfig struct {
	Loop    *reconcile.Loop
	Funcs   Funcs[*model.Tournament]
	Seats   SeatClient
	OnError func(error)
	Logger  *slog.Logger
}

// TournamentGofer shows a tournament's fields and its competitors.
type TournamentGofer struct {
	*Gofer[*model.Tournament]

	seats SeatClient
}

// NewTournamentGofer creates a gofer for t.
func NewTournamentGofer(t *model.Tournament, cfg TournamentConfig) *TournamentGofer {
	tg := &TournamentGofer{seats: cfg.Seats}

	tg.Gofer = New(t, Config[*model.Tournament]{
		Name:    "tournament",
		Loop:    cfg.Loop,
		Funcs:   cfg.Funcs,
		Derive:  tournamentItems,
		Related: tg.fetchSeats,
		Merge:   reconcile.RemoveWhere(reconcile.PreserveAscending, emptyCompetitor),
		OnError: cfg.OnError,
		Logger:  cfg.Logger,
	})

	return tg
}

func tournamentItems(t *model.Tournament) []diff.Differentiable {
	return reconcile.Items(t.Items())
}

func (tg *TournamentGofer) fetchSeats(ctx context.Context, t *model.Tournament) ([]diff.Differentiable, error) {
	if tg.seats == nil {
		return nil, nil
	}

	seats, err := tg.seats.GetTournamentCompetitors(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	return reconcile.Items(seats), nil
}

// HasWinner reports whether the retained tournament has been decided.
func (tg *TournamentGofer) HasWinner(ctx context.Context) (bool, error) {
	t, err := tg.Model(ctx)
	if err != nil {
		return false, err
	}

	return t.HasWinner(), nil
}
