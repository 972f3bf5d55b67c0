// Package syncer keeps every followed team's lists fresh in the
// background: it refreshes them on an interval, announces newly blocked
// users on the alert bus, and signs in again when the session expires.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/CristianUrbainski/teammate-android/internal/alert"
	"github.com/CristianUrbainski/teammate-android/internal/api"
	"github.com/CristianUrbainski/teammate-android/internal/logging"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
)

// maxInFlight bounds concurrent list refreshes per pass.
const maxInFlight = 4

// TeamList is a keyed list refreshed per team. The view models satisfy it.
type TeamList interface {
	Name() string
	GetMany(ctx context.Context, key string, fetchLatest bool, deliver func(reconcile.Outcome)) error
}

// BlockedClient lists the users banned from a team.
type BlockedClient interface {
	GetBlockedUsers(ctx context.Context, teamID string) ([]*model.BlockedUser, error)
}

// Config wires a Syncer.
type Config struct {
	Teams   []string
	Lists   []TeamList
	Blocked BlockedClient
	Bus     *alert.Bus

	// Interval between passes. Zero runs a single pass.
	Interval time.Duration

	// Reauth signs in again after the backend reports the session expired.
	Reauth func(ctx context.Context) error

	// OnChange sees every non-empty outcome of a background refresh.
	OnChange func(list, team string, o reconcile.Outcome)

	Logger *slog.Logger
}

// Syncer refreshes team lists in the background.
type Syncer struct {
	teams    []string
	lists    []TeamList
	blocked  BlockedClient
	bus      *alert.Bus
	interval time.Duration
	reauth   func(ctx context.Context) error
	onChange func(string, string, reconcile.Outcome)
	logger   *slog.Logger

	// seen holds blocked-user ids already announced.
	seen *xsync.MapOf[string, struct{}]

	// forgotten holds teams no longer synced, e.g. after the user left.
	forgotten *xsync.MapOf[string, struct{}]
}

func New(cfg Config) *Syncer {
	return &Syncer{
		teams:     cfg.Teams,
		lists:     cfg.Lists,
		blocked:   cfg.Blocked,
		bus:       cfg.Bus,
		interval:  cfg.Interval,
		reauth:    cfg.Reauth,
		onChange:  cfg.OnChange,
		logger:    logging.Component(cfg.Logger, "syncer"),
		seen:      xsync.NewMapOf[string, struct{}](),
		forgotten: xsync.NewMapOf[string, struct{}](),
	}
}

// Forget stops syncing team from the next pass on. It reports whether the
// team was still being synced.
func (s *Syncer) Forget(team string) bool {
	if _, loaded := s.forgotten.LoadOrStore(team, struct{}{}); loaded {
		return false
	}

	s.logger.Info("no longer syncing team", slog.String("team", team))

	return true
}

// Teams returns the teams still being synced.
func (s *Syncer) Teams() []string {
	out := make([]string, 0, len(s.teams))
	for _, team := range s.teams {
		if _, gone := s.forgotten.Load(team); !gone {
			out = append(out, team)
		}
	}

	return out
}

// Run syncs once, then again every interval until ctx ends. Failed passes
// are logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context) error {
	s.pass(ctx)

	if s.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

func (s *Syncer) pass(ctx context.Context) {
	start := time.Now()

	err := s.SyncOnce(ctx)
	if err == nil {
		s.logger.Debug("sync pass complete", slog.Duration("took", time.Since(start)))
		return
	}

	if ctx.Err() != nil {
		return
	}

	s.logger.Warn("sync pass failed", slog.String("error", err.Error()))

	if api.IsUnauthenticated(err) && s.reauth != nil {
		if rerr := s.reauth(ctx); rerr != nil {
			s.logger.Warn("signing in again", slog.String("error", rerr.Error()))
			return
		}

		s.logger.Info("signed in again")
	}
}

// SyncOnce refreshes every list of every team not forgotten, then checks
// each team's blocked users. Errors from individual refreshes are joined.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)

	teams := s.Teams()
	errs := make([]error, len(teams)*(len(s.lists)+1))

	for ti, team := range teams {
		for li, list := range s.lists {
			slot := ti*(len(s.lists)+1) + li

			g.Go(func() error {
				err := list.GetMany(gctx, team, true, s.deliver(list.Name(), team))
				if err != nil {
					errs[slot] = fmt.Errorf("refreshing %s for team %s: %w", list.Name(), team, err)
				}

				return nil
			})
		}

		if s.blocked == nil {
			continue
		}

		slot := ti*(len(s.lists)+1) + len(s.lists)

		g.Go(func() error {
			if err := s.checkBlocked(gctx, team); err != nil {
				errs[slot] = fmt.Errorf("checking blocked users for team %s: %w", team, err)
			}

			return nil
		})
	}

	_ = g.Wait()

	return errors.Join(errs...)
}

func (s *Syncer) deliver(list, team string) func(reconcile.Outcome) {
	return func(o reconcile.Outcome) {
		if o.Diff.Empty() {
			return
		}

		ins, rem, mov, chg := o.Diff.Counts()
		s.logger.Debug("list changed",
			slog.String("list", list),
			slog.String("team", team),
			slog.Int("inserted", ins),
			slog.Int("removed", rem),
			slog.Int("moved", mov),
			slog.Int("changed", chg),
		)

		if s.onChange != nil {
			s.onChange(list, team, o)
		}
	}
}

// checkBlocked publishes a Blocked alert for every ban not seen before.
func (s *Syncer) checkBlocked(ctx context.Context, team string) error {
	users, err := s.blocked.GetBlockedUsers(ctx, team)
	if err != nil {
		return err
	}

	for _, b := range users {
		if _, loaded := s.seen.LoadOrStore(b.ID, struct{}{}); loaded {
			continue
		}

		if b.Team.ID == "" {
			b.Team.ID = team
		}

		s.logger.Info("user blocked",
			slog.String("team", team),
			slog.String("user", b.User.ID),
		)

		if s.bus != nil {
			s.bus.Publish(alert.Blocked{User: b})
		}
	}

	return nil
}
