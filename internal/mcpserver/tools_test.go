package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CristianUrbainski/teammate-android/internal/alert"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
	"github.com/CristianUrbainski/teammate-android/internal/viewmodel"
)

func day(d int) time.Time {
	return time.Date(2026, time.January, d, 18, 0, 0, 0, time.UTC)
}

// fakeRepo serves one newest page per parent and saves through saveFn.
type fakeRepo[M model.Model[M]] struct {
	mu     sync.Mutex
	pages  map[string][]M
	byID   map[string]M
	saveFn func(M) (M, error)
}

func newFakeRepo[M model.Model[M]]() *fakeRepo[M] {
	return &fakeRepo[M]{pages: map[string][]M{}, byID: map[string]M{}}
}

func (r *fakeRepo[M]) Get(_ context.Context, id string, emit func(M) error) error {
	r.mu.Lock()
	m, ok := r.byID[id]
	r.mu.Unlock()

	if !ok {
		return nil
	}

	return emit(m.Clone())
}

func (r *fakeRepo[M]) ModelsBefore(_ context.Context, parent string, before time.Time, emit func([]M) error) error {
	if !before.IsZero() {
		return emit(nil)
	}

	r.mu.Lock()
	page := make([]M, 0, len(r.pages[parent]))
	for _, m := range r.pages[parent] {
		page = append(page, m.Clone())
	}
	r.mu.Unlock()

	return emit(page)
}

func (r *fakeRepo[M]) CreateOrUpdate(_ context.Context, m M) (M, error) {
	if r.saveFn != nil {
		return r.saveFn(m)
	}

	return m, nil
}

func (r *fakeRepo[M]) Delete(context.Context, M) error { return nil }

type fakeGuests struct {
	guests []*model.Guest
}

func (f *fakeGuests) GetGuests(context.Context, string) ([]*model.Guest, error) {
	return f.guests, nil
}

func (f *fakeGuests) RSVPEvent(_ context.Context, eventID string, attending bool) (*model.Guest, error) {
	return &model.Guest{ID: "guest-me", EventID: eventID, User: me, Attending: attending, Created: day(9)}, nil
}

var me = model.User{ID: "u-me", FirstName: "Casey", LastName: "Jones"}

type fixture struct {
	session     *mcp.ClientSession
	deps        Deps
	events      *fakeRepo[*model.Event]
	games       *fakeRepo[*model.Game]
	stats       *fakeRepo[*model.Stat]
	chats       *fakeRepo[*model.Chat]
	tournaments *fakeRepo[*model.Tournament]
	competitors *fakeRepo[*model.Competitor]
}

// testSetup builds the view models over fake repos, registers tools on an
// MCP server, and returns a connected client session.
func testSetup(t *testing.T, user model.User) *fixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	loop := reconcile.NewLoop(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	f := &fixture{
		events:      newFakeRepo[*model.Event](),
		games:       newFakeRepo[*model.Game](),
		stats:       newFakeRepo[*model.Stat](),
		chats:       newFakeRepo[*model.Chat](),
		tournaments: newFakeRepo[*model.Tournament](),
		competitors: newFakeRepo[*model.Competitor](),
	}

	vmDeps := viewmodel.Deps{Loop: loop, Bus: alert.NewBus(nil)}
	guests := &fakeGuests{guests: []*model.Guest{
		{ID: "guest-1", EventID: "e1", User: model.User{ID: "u1", FirstName: "Ana"}, Attending: true, Created: day(1)},
	}}

	f.deps = Deps{
		Events:      viewmodel.NewEventViewModel(f.events, guests, nil, vmDeps),
		Games:       viewmodel.NewGameViewModel(f.games, nil, vmDeps),
		Stats:       viewmodel.NewStatViewModel(f.stats, vmDeps),
		Chats:       viewmodel.NewChatViewModel(f.chats, vmDeps),
		Tournaments: viewmodel.NewTournamentViewModel(f.tournaments, nil, vmDeps),
		Competitors: viewmodel.NewCompetitorViewModel(f.competitors, vmDeps),
		User:        func() model.User { return user },
	}

	server := mcp.NewServer(
		&mcp.Implementation{Name: "teammate-sync-test", Version: "test"},
		nil,
	)
	RegisterTools(server, f.deps)

	t1, t2 := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, t1, nil)
	require.NoError(t, err)

	client := mcp.NewClient(
		&mcp.Implementation{Name: "test-client", Version: "test"},
		nil,
	)
	session, err := client.Connect(ctx, t2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	f.session = session

	return f
}

// callTool is a helper that calls a tool and returns the result.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)

	return result
}

// extractJSON unmarshals the first text content from a CallToolResult.
func extractJSON(t *testing.T, result *mcp.CallToolResult, dest any) {
	t.Helper()
	require.NotEmpty(t, result.Content, "result has no content")
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "first content is not TextContent")
	require.NoError(t, json.Unmarshal([]byte(tc.Text), dest))
}

// --- events ---

func TestEvents_NewestFirst(t *testing.T) {
	f := testSetup(t, me)
	f.events.pages["t1"] = []*model.Event{
		{ID: "e1", Name: "Practice", StartDate: day(1), Team: model.Team{ID: "t1"}},
		{ID: "e2", Name: "Final", StartDate: day(3), Team: model.Team{ID: "t1"}},
	}

	result := callTool(t, f.session, "teammate_events", map[string]any{"team_id": "t1"})
	require.False(t, result.IsError)

	var out EventsResult
	extractJSON(t, result, &out)
	require.Len(t, out.Events, 2)
	assert.Equal(t, "e2", out.Events[0].ID)
	assert.Equal(t, "e1", out.Events[1].ID)
	assert.Equal(t, 2, out.Changes.Inserted)

	// Same data again changes nothing.
	result = callTool(t, f.session, "teammate_events", map[string]any{"team_id": "t1"})
	extractJSON(t, result, &out)
	assert.Equal(t, Changes{}, out.Changes)
}

func TestEvent_WithGuests(t *testing.T) {
	f := testSetup(t, me)
	ev := &model.Event{ID: "e1", Name: "Practice", StartDate: day(1), Team: model.Team{ID: "t1"}}
	f.events.pages["t1"] = []*model.Event{ev}

	renamed := ev.Clone()
	renamed.Name = "Practice (moved)"
	f.events.byID["e1"] = renamed

	callTool(t, f.session, "teammate_events", map[string]any{"team_id": "t1"})

	result := callTool(t, f.session, "teammate_event", map[string]any{"team_id": "t1", "event_id": "e1"})
	require.False(t, result.IsError)

	var out EventDetail
	extractJSON(t, result, &out)
	assert.Equal(t, "Practice (moved)", out.Event.Name)
	require.Len(t, out.Guests, 1)
	assert.Equal(t, "u1", out.Guests[0].UserID)
	assert.True(t, out.Guests[0].Attending)
}

func TestEvent_NotLoaded(t *testing.T) {
	f := testSetup(t, me)

	result := callTool(t, f.session, "teammate_event", map[string]any{"team_id": "t1", "event_id": "nope"})
	assert.True(t, result.IsError)
}

func TestRSVP(t *testing.T) {
	f := testSetup(t, me)
	f.events.pages["t1"] = []*model.Event{{ID: "e1", StartDate: day(1), Team: model.Team{ID: "t1"}}}

	callTool(t, f.session, "teammate_events", map[string]any{"team_id": "t1"})

	result := callTool(t, f.session, "teammate_rsvp", map[string]any{"team_id": "t1", "event_id": "e1", "attending": true})
	require.False(t, result.IsError)

	var out GuestView
	extractJSON(t, result, &out)
	assert.Equal(t, "u-me", out.UserID)
	assert.Equal(t, "Casey Jones", out.Name)
	assert.True(t, out.Attending)
}

// --- games ---

func testGame(id string, created time.Time) *model.Game {
	return &model.Game{
		ID:      id,
		Created: created,
		Home:    model.Competitor{ID: id + "-home", Accepted: true, Entity: &model.Team{ID: "t1", Name: "Lions"}},
		Away:    model.Competitor{ID: id + "-away", Accepted: true, Entity: &model.Team{ID: "t2", Name: "Bears"}},
	}
}

func TestGames_List(t *testing.T) {
	f := testSetup(t, me)
	f.games.pages["t1"] = []*model.Game{testGame("g1", day(1)), testGame("g2", day(2))}

	result := callTool(t, f.session, "teammate_games", map[string]any{"team_id": "t1"})
	require.False(t, result.IsError)

	var out GamesResult
	extractJSON(t, result, &out)
	require.Len(t, out.Games, 2)
	assert.Equal(t, "g2", out.Games[0].ID)
	assert.Equal(t, "Lions", out.Games[0].Home)
	assert.Equal(t, "Bears", out.Games[0].Away)
}

func TestEndGame(t *testing.T) {
	f := testSetup(t, me)
	f.games.pages["t1"] = []*model.Game{testGame("g1", day(1))}

	callTool(t, f.session, "teammate_games", map[string]any{"team_id": "t1"})

	result := callTool(t, f.session, "teammate_end_game", map[string]any{"team_id": "t1", "game_id": "g1"})
	require.False(t, result.IsError)

	var out GameView
	extractJSON(t, result, &out)
	assert.True(t, out.Ended)

	games, err := f.deps.Games.Values(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.True(t, games[0].Ended)
}

func TestEndGame_Rejected(t *testing.T) {
	f := testSetup(t, me)
	f.games.pages["t1"] = []*model.Game{testGame("g1", day(1))}
	f.games.saveFn = func(*model.Game) (*model.Game, error) { return nil, errors.New("backend down") }

	callTool(t, f.session, "teammate_games", map[string]any{"team_id": "t1"})

	result := callTool(t, f.session, "teammate_end_game", map[string]any{"team_id": "t1", "game_id": "g1"})
	assert.True(t, result.IsError)

	games, err := f.deps.Games.Values(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.False(t, games[0].Ended)
}

// --- stats ---

func TestStats_List(t *testing.T) {
	f := testSetup(t, me)
	f.stats.pages["g1"] = []*model.Stat{
		{ID: "s1", StatType: "goal", GameID: "g1", Value: 1, Created: day(1), User: me},
		{ID: "s2", StatType: "assist", GameID: "g1", Value: 1, Created: day(2)},
	}

	result := callTool(t, f.session, "teammate_stats", map[string]any{"game_id": "g1"})
	require.False(t, result.IsError)

	var out StatsResult
	extractJSON(t, result, &out)
	require.Len(t, out.Stats, 2)
	assert.Equal(t, "s2", out.Stats[0].ID)
	assert.Equal(t, "Casey Jones", out.Stats[1].User)
}

// --- chats ---

func TestPostChat(t *testing.T) {
	f := testSetup(t, me)
	f.chats.saveFn = func(c *model.Chat) (*model.Chat, error) {
		acked := c.Clone()
		acked.ID = "srv-1"
		acked.Unsent = false

		return acked, nil
	}

	result := callTool(t, f.session, "teammate_post_chat", map[string]any{"team_id": "t1", "content": "see you at 6"})
	require.False(t, result.IsError)

	var out ChatView
	extractJSON(t, result, &out)
	assert.Equal(t, "srv-1", out.ID)
	assert.Equal(t, "Casey Jones", out.Author)
	assert.False(t, out.Unsent)

	chats, err := f.deps.Chats.Values(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "srv-1", chats[0].ID)
}

func TestPostChat_NotSignedIn(t *testing.T) {
	f := testSetup(t, model.User{})

	result := callTool(t, f.session, "teammate_post_chat", map[string]any{"team_id": "t1", "content": "hi"})
	assert.True(t, result.IsError)
}

func TestChats_OldestFirst(t *testing.T) {
	f := testSetup(t, me)
	f.chats.pages["t1"] = []*model.Chat{
		{ID: "c2", Content: "second", Created: day(2), Team: model.Team{ID: "t1"}},
		{ID: "c1", Content: "first", Created: day(1), Team: model.Team{ID: "t1"}},
	}

	result := callTool(t, f.session, "teammate_chats", map[string]any{"team_id": "t1"})
	require.False(t, result.IsError)

	var out ChatsResult
	extractJSON(t, result, &out)
	require.Len(t, out.Chats, 2)
	assert.Equal(t, "c1", out.Chats[0].ID)
	assert.Equal(t, "c2", out.Chats[1].ID)
}

// --- tournaments and competitors ---

func TestTournaments_List(t *testing.T) {
	f := testSetup(t, me)
	f.tournaments.pages["t1"] = []*model.Tournament{
		{ID: "tr1", Name: "Spring Cup", NumRounds: 3, Host: model.Team{ID: "t1"}, Created: day(1)},
		{ID: "tr2", Name: "Summer Cup", NumRounds: 2, Host: model.Team{ID: "t1"}, Created: day(2),
			Winner: model.Competitor{ID: "k1", Entity: &model.Team{ID: "t2", Name: "Lions"}}},
	}

	var got TournamentsResult
	extractJSON(t, callTool(t, f.session, "teammate_tournaments", map[string]any{"team_id": "t1"}), &got)

	require.Len(t, got.Tournaments, 2)
	assert.Equal(t, "tr2", got.Tournaments[0].ID)
	assert.Equal(t, "Lions", got.Tournaments[0].Winner)
	assert.Equal(t, 2, got.Changes.Inserted)
}

func TestRespond_AcceptTakesSeatOffDeclined(t *testing.T) {
	f := testSetup(t, me)
	f.competitors.pages[model.DeclinedCompetitors] = []*model.Competitor{
		{ID: "k1", RefPath: model.RefUsers, GameID: "g1", Declined: true, Entity: &me, Created: day(1)},
	}

	var declined DeclinedResult
	extractJSON(t, callTool(t, f.session, "teammate_declined", map[string]any{}), &declined)
	require.Len(t, declined.Competitors, 1)
	assert.Equal(t, "Casey Jones", declined.Competitors[0].Name)

	var got CompetitorView
	extractJSON(t, callTool(t, f.session, "teammate_respond", map[string]any{"competitor_id": "k1", "accept": true}), &got)
	assert.True(t, got.Accepted)

	remaining, err := f.deps.Competitors.Declined(context.Background())
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRespond_UnlistedSeatIsFetched(t *testing.T) {
	f := testSetup(t, me)
	f.competitors.byID["k2"] = &model.Competitor{ID: "k2", RefPath: model.RefUsers, TournamentID: "tr1", Entity: &me, Created: day(2)}

	var got CompetitorView
	extractJSON(t, callTool(t, f.session, "teammate_respond", map[string]any{"competitor_id": "k2", "accept": false}), &got)
	assert.True(t, got.Declined)
	assert.Equal(t, "tr1", got.TournamentID)

	declined, err := f.deps.Competitors.Declined(context.Background())
	require.NoError(t, err)
	require.Len(t, declined, 1)
	assert.Equal(t, "k2", declined[0].ID)
}
