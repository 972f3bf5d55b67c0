package e2e_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/CristianUrbainski/teammate-android/internal/alert"
	"github.com/CristianUrbainski/teammate-android/internal/api"
	"github.com/CristianUrbainski/teammate-android/internal/auth"
	"github.com/CristianUrbainski/teammate-android/internal/mcpserver"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
	"github.com/CristianUrbainski/teammate-android/internal/repo"
	"github.com/CristianUrbainski/teammate-android/internal/server"
	"github.com/CristianUrbainski/teammate-android/internal/store"
	"github.com/CristianUrbainski/teammate-android/internal/syncer"
	"github.com/CristianUrbainski/teammate-android/internal/viewmodel"
)

const (
	testEmail    = "coach@example.com"
	testPassword = "secret123"
	testToken    = "session-token"
	testTeam     = "t1"
)

var coach = model.User{ID: "u1", FirstName: "Casey", LastName: "Coach"}

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 18, 0, 0, 0, time.UTC)
}

// backend is an in-memory Teammate API. It serves the newest page for
// every list and an empty page for older cursors.
type backend struct {
	mu      sync.Mutex
	events  map[string][]*model.Event
	chats   map[string][]*model.Chat
	blocked map[string][]*model.BlockedUser
	revoked map[string]bool
	nextID  int
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()

	b := &backend{
		events:  map[string][]*model.Event{},
		chats:   map[string][]*model.Chat{},
		blocked: map[string][]*model.BlockedUser{},
		revoked: map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/signIn", b.signIn)
	mux.HandleFunc("GET /api/me/roles", b.authed(b.roles))
	mux.HandleFunc("GET /api/teams/{team}/events", b.authed(b.teamEvents))
	mux.HandleFunc("GET /api/teams/{team}/games", b.authed(b.teamGames))
	mux.HandleFunc("GET /api/teams/{team}/tournaments", b.authed(b.teamTournaments))
	mux.HandleFunc("GET /api/teams/{team}/chats", b.authed(b.teamChats))
	mux.HandleFunc("POST /api/teams/{team}/chats", b.authed(b.postChat))
	mux.HandleFunc("GET /api/teams/{team}/blocked", b.authed(b.teamBlocked))

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return b, ts
}

func (b *backend) setEvents(team string, events ...*model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[team] = events
}

func (b *backend) block(team string, u *model.BlockedUser) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[team] = append(b.blocked[team], u)
}

func (b *backend) revoke(team string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[team] = true
}

func (b *backend) postedChats(team string) []*model.Chat {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]*model.Chat(nil), b.chats[team]...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, api.Message{Text: "rejected", Code: code})
}

// authed rejects requests without the session token, and team requests
// for revoked teams.
func (b *backend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			writeError(w, http.StatusUnauthorized, api.CodeUnauthenticated)
			return
		}

		if team := r.PathValue("team"); team != "" {
			b.mu.Lock()
			revoked := b.revoked[team]
			b.mu.Unlock()

			if revoked {
				writeError(w, http.StatusForbidden, api.CodeIllegalTeamMember)
				return
			}
		}

		next(w, r)
	}
}

func (b *backend) signIn(w http.ResponseWriter, r *http.Request) {
	var req api.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email != testEmail || req.Password != testPassword {
		writeError(w, http.StatusUnauthorized, api.CodeUnauthenticated)
		return
	}

	writeJSON(w, http.StatusOK, api.SignInResponse{Token: testToken, User: coach})
}

func (b *backend) roles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, []*model.Role{
		{ID: "r1", Position: "coach", User: coach, Team: model.Team{ID: testTeam, Name: "Tigers"}},
	})
}

func (b *backend) teamEvents(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("date") != "" {
		writeJSON(w, http.StatusOK, []*model.Event{})
		return
	}

	b.mu.Lock()
	page := b.events[r.PathValue("team")]
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, page)
}

func (b *backend) teamGames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, []*model.Game{})
}

func (b *backend) teamTournaments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, []*model.Tournament{})
}

func (b *backend) teamChats(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("date") != "" {
		writeJSON(w, http.StatusOK, []*model.Chat{})
		return
	}

	writeJSON(w, http.StatusOK, b.postedChats(r.PathValue("team")))
}

func (b *backend) postChat(w http.ResponseWriter, r *http.Request) {
	var c model.Chat
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, api.CodeUnknown)
		return
	}

	b.mu.Lock()
	b.nextID++
	c.ID = fmt.Sprintf("c%d", b.nextID)
	c.Created = day(10).Add(time.Duration(b.nextID) * time.Minute)
	team := r.PathValue("team")
	b.chats[team] = append(b.chats[team], &c)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, &c)
}

func (b *backend) teamBlocked(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	users := b.blocked[r.PathValue("team")]
	b.mu.Unlock()

	if users == nil {
		users = []*model.BlockedUser{}
	}

	writeJSON(w, http.StatusOK, users)
}

// harness holds the full stack: the fake backend, the signed-in client,
// the bbolt cache, the view models, a syncer, and the MCP HTTP server.
type harness struct {
	URL     string
	Key     string
	Client  *http.Client
	Backend *backend
	Cols    *store.Collections
	Sync    *syncer.Syncer
	Bus     *alert.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	ctx, cancel := context.WithCancel(context.Background())

	b, backendSrv := newBackend(t)

	db, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cols, err := store.OpenCollections(db)
	require.NoError(t, err)

	client := api.NewClient(backendSrv.URL, backendSrv.Client())
	_, err = client.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)

	loop := reconcile.NewLoop(logger)
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	bus := alert.NewBus(logger)

	var bg *syncer.Syncer

	deps := viewmodel.Deps{
		Loop: loop,
		Bus:  bus,
		OnInvalidKey: func(teamID string) {
			_ = repo.EvictTeam(cols, teamID)
			if bg.Forget(teamID) {
				bus.Publish(alert.Eviction{ID: teamID})
			}
		},
		Logger: logger,
	}

	rcfg := repo.Config{PageSize: 30, Logger: logger}

	events := viewmodel.NewEventViewModel(repo.NewEventRepo(client, cols, rcfg), client, client, deps)
	games := viewmodel.NewGameViewModel(repo.NewGameRepo(client, cols, rcfg), client, deps)
	stats := viewmodel.NewStatViewModel(repo.NewStatRepo(client, cols, rcfg), deps)
	chats := viewmodel.NewChatViewModel(repo.NewChatRepo(client, cols, rcfg), deps)
	tournaments := viewmodel.NewTournamentViewModel(repo.NewTournamentRepo(client, cols, rcfg), client, deps)
	competitors := viewmodel.NewCompetitorViewModel(repo.NewCompetitorRepo(client, cols, rcfg), deps)

	t.Cleanup(func() {
		events.Close()
		games.Close()
		stats.Close()
		chats.Close()
		tournaments.Close()
		competitors.Close()
	})

	bg = syncer.New(syncer.Config{
		Teams:   []string{testTeam},
		Lists:   []syncer.TeamList{events, games, tournaments, chats},
		Blocked: client,
		Bus:     bus,
		Logger:  logger,
	})

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: "teammate-sync-e2e", Version: "test"},
		nil,
	)
	mcpserver.RegisterTools(mcpServer, mcpserver.Deps{
		Events:      events,
		Games:       games,
		Stats:       stats,
		Chats:       chats,
		Tournaments: tournaments,
		Competitors: competitors,
		User:        func() model.User { return coach },
	})

	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	key, err := auth.GenerateAPIKey()
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)

	verifier := auth.NewVerifier([]auth.APIKey{{UserID: "casey", Hash: string(hash)}}, logger)

	ts := httptest.NewServer(server.NewMux(server.MuxConfig{
		Verifier:   verifier,
		MCPHandler: mcpHandler,
		Logger:     logger,
	}))
	t.Cleanup(ts.Close)

	return &harness{
		URL:     ts.URL,
		Key:     key,
		Client:  ts.Client(),
		Backend: b,
		Cols:    cols,
		Sync:    bg,
		Bus:     bus,
	}
}

// mcpSession creates an MCP client session authenticated with the given
// key. Uses the MCP SDK's StreamableClientTransport with a custom HTTP
// RoundTripper that injects the Authorization header.
func (h *harness) mcpSession(t *testing.T, key string) *mcp.ClientSession {
	t.Helper()

	transport := &mcp.StreamableClientTransport{
		Endpoint: h.URL + "/mcp",
		HTTPClient: &http.Client{
			Transport: &bearerTransport{
				token: key,
				base:  h.Client.Transport,
			},
		},
		DisableStandaloneSSE: true,
	}

	client := mcp.NewClient(
		&mcp.Implementation{Name: "e2e-test-client", Version: "test"},
		nil,
	)

	session, err := client.Connect(t.Context(), transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

// callTool calls name and decodes its JSON text content into dest.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any, dest any) *mcp.CallToolResult {
	t.Helper()

	result, err := session.CallTool(t.Context(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)

	if dest != nil && !result.IsError {
		require.NotEmpty(t, result.Content, "result has no content")

		tc, ok := result.Content[0].(*mcp.TextContent)
		require.True(t, ok, "first content is not TextContent")
		require.NoError(t, json.Unmarshal([]byte(tc.Text), dest))
	}

	return result
}

// doPost performs a POST to path with an optional bearer key.
func (h *harness) doPost(t *testing.T, path, key string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), "POST", h.URL+path, nil)
	require.NoError(t, err)

	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := h.Client.Do(req)
	require.NoError(t, err)

	return resp
}

// bearerTransport is an http.RoundTripper that injects a Bearer token
// into every request's Authorization header.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (bt *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+bt.token)

	return bt.base.RoundTrip(req)
}
