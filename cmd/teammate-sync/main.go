package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/CristianUrbainski/teammate-android/internal/alert"
	"github.com/CristianUrbainski/teammate-android/internal/api"
	"github.com/CristianUrbainski/teammate-android/internal/auth"
	"github.com/CristianUrbainski/teammate-android/internal/config"
	"github.com/CristianUrbainski/teammate-android/internal/logging"
	"github.com/CristianUrbainski/teammate-android/internal/mcpserver"
	"github.com/CristianUrbainski/teammate-android/internal/metrics"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/realtime"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
	"github.com/CristianUrbainski/teammate-android/internal/repo"
	"github.com/CristianUrbainski/teammate-android/internal/server"
	"github.com/CristianUrbainski/teammate-android/internal/store"
	"github.com/CristianUrbainski/teammate-android/internal/syncer"
	"github.com/CristianUrbainski/teammate-android/internal/viewmodel"
)

var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	// Handle hash-key subcommand before config loading.
	if len(os.Args) > 1 && os.Args[1] == "hash-key" {
		hashKey()
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// hashKey prints a fresh MCP API key and the bcrypt hash that goes into
// MCP_API_KEYS. The key goes to stdout first, the hash second.
func hashKey() {
	key, err := auth.GenerateAPIKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	hash, err := auth.HashAPIKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr, "API key (give this to the MCP client):")
	fmt.Println(key)
	fmt.Fprintln(os.Stderr, "Hash (add to MCP_API_KEYS as user:hash):")
	fmt.Println(hash)
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLoggerWithLevel(cfg.Environment, cfg.LogLevel)
	logger.Info("teammate-sync starting",
		slog.String("version", Version),
		slog.String("api", cfg.APIURL),
		slog.Bool("chat_feed", cfg.ChatURL != ""),
		slog.Bool("mcp", cfg.EnableMCP),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	db, err := store.Open(cfg.StatePath)
	if err != nil {
		return fmt.Errorf("opening state: %w", err)
	}
	defer db.Close()

	cols, err := store.OpenCollections(db)
	if err != nil {
		return fmt.Errorf("opening collections: %w", err)
	}

	client := api.NewClient(cfg.APIURL, nil)
	sess := &session{cfg: cfg, client: client, db: db, logger: logger}

	if err := sess.authenticate(ctx); err != nil {
		return err
	}

	teams, err := resolveTeams(ctx, client, cfg.Teams)
	if err != nil {
		return err
	}

	logger.Info("following teams", slog.Any("teams", teams))

	loop := reconcile.NewLoop(logger)
	bus := alert.NewBus(logger)

	// Set below, before anything fetches a list.
	var bg *syncer.Syncer

	deps := viewmodel.Deps{
		Loop: loop,
		Bus:  bus,
		OnInvalidKey: func(teamID string) {
			if err := repo.EvictTeam(cols, teamID); err != nil {
				logger.Warn("evicting team from cache",
					slog.String("team", teamID),
					slog.String("error", err.Error()),
				)
			}

			// Every list of the team fails the same way; announce once.
			if bg.Forget(teamID) {
				bus.Publish(alert.Eviction{ID: teamID})
			}
		},
		Logger: logger,
	}

	rcfg := repo.Config{PageSize: cfg.PageSize, Logger: logger}

	events := viewmodel.NewEventViewModel(repo.NewEventRepo(client, cols, rcfg), client, client, deps)
	defer events.Close()

	games := viewmodel.NewGameViewModel(repo.NewGameRepo(client, cols, rcfg), client, deps)
	defer games.Close()

	stats := viewmodel.NewStatViewModel(repo.NewStatRepo(client, cols, rcfg), deps)
	defer stats.Close()

	chats := viewmodel.NewChatViewModel(repo.NewChatRepo(client, cols, rcfg), deps)
	defer chats.Close()

	tournaments := viewmodel.NewTournamentViewModel(repo.NewTournamentRepo(client, cols, rcfg), client, deps)
	defer tournaments.Close()

	competitors := viewmodel.NewCompetitorViewModel(repo.NewCompetitorRepo(client, cols, rcfg), deps)
	defer competitors.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loop.Run(gctx)
	})

	bg = syncer.New(syncer.Config{
		Teams:    teams,
		Lists:    []syncer.TeamList{events, games, tournaments, chats},
		Blocked:  client,
		Bus:      bus,
		Interval: cfg.PollInterval,
		Reauth:   sess.signIn,
		Logger:   logger,
	})

	g.Go(func() error {
		return bg.Run(gctx)
	})

	if cfg.ChatURL != "" {
		g.Go(func() error {
			return runFeed(gctx, cfg, client, teams, chats, logger)
		})
	}

	if cfg.EnableMCP {
		g.Go(func() error {
			return runMCP(gctx, cfg, sess, mcpserver.Deps{
				Events:      events,
				Games:       games,
				Stats:       stats,
				Chats:       chats,
				Tournaments: tournaments,
				Competitors: competitors,
				User:        sess.User,
			}, logger)
		})
	}

	if cfg.MetricsListenAddr != "" {
		g.Go(func() error {
			mux := server.NewMux(server.MuxConfig{Gatherer: reg, Logger: logger})
			return serve(gctx, server.New(cfg.MetricsListenAddr, mux), "metrics", logger)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("teammate-sync stopped")

	return nil
}

// session owns the signed-in account: the client token, the cached token
// in the state file, and the current user.
type session struct {
	cfg    *config.Config
	client *api.Client
	db     *store.DB
	logger *slog.Logger

	user atomic.Pointer[model.User]
}

// authenticate reuses the cached token when the backend still accepts it,
// otherwise signs in fresh.
func (s *session) authenticate(ctx context.Context) error {
	if token := s.db.Token(); token != "" {
		s.logger.Debug("trying cached token")
		s.client.SetToken(token)

		_, err := s.client.GetMyRoles(ctx)
		if err == nil {
			if u, uerr := s.db.User(); uerr == nil && u != nil {
				s.user.Store(u)
			}

			s.logger.Info("authenticated with cached token")

			return nil
		}

		if !api.IsUnauthenticated(err) {
			return fmt.Errorf("checking cached token: %w", err)
		}

		s.logger.Debug("cached token expired, signing in fresh")
	}

	return s.signIn(ctx)
}

func (s *session) signIn(ctx context.Context) error {
	s.logger.Info("signing in", slog.String("email", s.cfg.Email))

	resp, err := s.client.SignIn(ctx, s.cfg.Email, s.cfg.Password)
	if err != nil {
		return fmt.Errorf("signing in: %w", err)
	}

	s.logger.Info("signed in", slog.String("user", resp.User.ID))

	u := resp.User
	s.user.Store(&u)

	if err := s.db.SetToken(resp.Token); err != nil {
		s.logger.Warn("failed to save token", slog.String("error", err.Error()))
	}

	if err := s.db.SetUser(&u); err != nil {
		s.logger.Warn("failed to save user", slog.String("error", err.Error()))
	}

	return nil
}

// User returns the signed-in user, or the zero User before sign-in.
func (s *session) User() model.User {
	if u := s.user.Load(); u != nil {
		return *u
	}

	return model.User{}
}

// resolveTeams returns the configured teams, or every team the user holds
// a role on when none are configured.
func resolveTeams(ctx context.Context, client *api.Client, configured []string) ([]string, error) {
	if len(configured) > 0 {
		return configured, nil
	}

	roles, err := client.GetMyRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}

	seen := make(map[string]struct{}, len(roles))

	var teams []string

	for _, r := range roles {
		if r.Team.ID == "" {
			continue
		}

		if _, dup := seen[r.Team.ID]; dup {
			continue
		}

		seen[r.Team.ID] = struct{}{}
		teams = append(teams, r.Team.ID)
	}

	if len(teams) == 0 {
		return nil, fmt.Errorf("no teams found for this account, set TEAMMATE_TEAMS")
	}

	return teams, nil
}

// runFeed streams pushed chats into the chat lists. A rejected feed is
// logged and the rest of the daemon keeps running on polling alone.
func runFeed(ctx context.Context, cfg *config.Config, client *api.Client, teams []string, chats *viewmodel.ChatViewModel, logger *slog.Logger) error {
	feed := realtime.NewFeed(realtime.Config{
		URL:   cfg.ChatURL,
		Token: client.Token,
		Teams: teams,
		Handler: func(ctx context.Context, c *model.Chat) error {
			return chats.Receive(ctx, c, nil)
		},
		Logger: logger,
	})
	defer feed.Close()

	err := feed.Listen(ctx)
	if err != nil && ctx.Err() == nil {
		logger.Error("chat feed stopped", slog.String("error", err.Error()))
		return nil
	}

	return err
}

// runMCP starts the MCP HTTP server.
func runMCP(ctx context.Context, cfg *config.Config, sess *session, deps mcpserver.Deps, logger *slog.Logger) error {
	keys, err := cfg.ParseMCPAPIKeys()
	if err != nil {
		return fmt.Errorf("parsing MCP API keys: %w", err)
	}

	mcpLogger := logger.With(slog.String("service", "mcp"))

	verifier := auth.NewVerifier(keys, mcpLogger)

	if cfg.MCPAPIKeysFile != "" {
		fileKeys, err := auth.LoadKeyFile(cfg.MCPAPIKeysFile)
		if err != nil {
			return err
		}

		verifier.SetKeys(append(append([]auth.APIKey(nil), keys...), fileKeys...))

		go func() {
			err := auth.WatchKeyFile(ctx, cfg.MCPAPIKeysFile, keys, verifier, mcpLogger)
			if err != nil && ctx.Err() == nil {
				mcpLogger.Warn("key file watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: "teammate-sync-mcp", Version: Version},
		nil,
	)
	mcpserver.RegisterTools(mcpServer, deps)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	mux := server.NewMux(server.MuxConfig{
		Verifier:   verifier,
		MCPHandler: mcpHandler,
		Logger:     mcpLogger,
	})

	mcpLogger.Info("starting MCP server",
		slog.String("listen", cfg.MCPListenAddr),
		slog.Int("keys", verifier.Len()),
		slog.String("user", sess.User().ID),
	)

	return serve(ctx, server.New(cfg.MCPListenAddr, mux), "MCP", mcpLogger)
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, name string, logger *slog.Logger) error {
	go func() {
		<-ctx.Done()
		logger.Info("shutting down " + name + " server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("%s server error: %w", name, err)
	}

	return nil
}
