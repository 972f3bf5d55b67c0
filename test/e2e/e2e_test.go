package e2e_test

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CristianUrbainski/teammate-android/internal/alert"
	"github.com/CristianUrbainski/teammate-android/internal/mcpserver"
	"github.com/CristianUrbainski/teammate-android/internal/model"
)

func seedEvents(h *harness) {
	h.Backend.setEvents(testTeam,
		&model.Event{ID: "e1", Name: "Practice", StartDate: day(1), EndDate: day(1), Team: model.Team{ID: testTeam}},
		&model.Event{ID: "e2", Name: "Final", StartDate: day(3), EndDate: day(3), Team: model.Team{ID: testTeam}},
	)
}

// --- background sync ---

func TestSync_CachesTeamLists(t *testing.T) {
	h := newHarness(t)
	seedEvents(h)

	require.NoError(t, h.Sync.SyncOnce(t.Context()))

	cached, err := h.Cols.Events.Before(testTeam, model.FutureDate(), 10)
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestSync_MCPListsSyncedEvents(t *testing.T) {
	h := newHarness(t)
	seedEvents(h)

	require.NoError(t, h.Sync.SyncOnce(t.Context()))

	session := h.mcpSession(t, h.Key)

	var out mcpserver.EventsResult
	result := callTool(t, session, "teammate_events", map[string]any{"team_id": testTeam}, &out)
	require.False(t, result.IsError)

	require.Len(t, out.Events, 2)
	assert.Equal(t, "e2", out.Events[0].ID, "newest first")
	assert.Equal(t, "e1", out.Events[1].ID)
}

func TestSync_RevokedTeamEvicted(t *testing.T) {
	h := newHarness(t)
	seedEvents(h)

	require.NoError(t, h.Sync.SyncOnce(t.Context()))

	var mu sync.Mutex
	var evicted []string

	h.Bus.Subscribe(func(a alert.Alert) {
		if e, ok := a.(alert.Eviction); ok {
			mu.Lock()
			evicted = append(evicted, e.ID)
			mu.Unlock()
		}
	})

	h.Backend.revoke(testTeam)
	require.Error(t, h.Sync.SyncOnce(t.Context()))

	cached, err := h.Cols.Events.Before(testTeam, model.FutureDate(), 10)
	require.NoError(t, err)
	assert.Empty(t, cached, "revoked team is evicted from the cache")

	assert.Empty(t, h.Sync.Teams(), "revoked team is no longer synced")
	require.NoError(t, h.Sync.SyncOnce(t.Context()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{testTeam}, evicted, "evicted once")
}

func TestSync_AnnouncesBlockedUserOnce(t *testing.T) {
	h := newHarness(t)
	h.Backend.block(testTeam, &model.BlockedUser{ID: "b1", User: model.User{ID: "u9"}, Team: model.Team{ID: testTeam}})

	var mu sync.Mutex
	var blocked []string

	h.Bus.Subscribe(func(a alert.Alert) {
		if b, ok := a.(alert.Blocked); ok {
			mu.Lock()
			blocked = append(blocked, b.User.User.ID)
			mu.Unlock()
		}
	})

	require.NoError(t, h.Sync.SyncOnce(t.Context()))
	require.NoError(t, h.Sync.SyncOnce(t.Context()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"u9"}, blocked)
}

// --- chats ---

func TestPostChat_ReachesBackend(t *testing.T) {
	h := newHarness(t)
	session := h.mcpSession(t, h.Key)

	result := callTool(t, session, "teammate_post_chat", map[string]any{
		"team_id": testTeam,
		"content": "see you at practice",
	}, nil)
	require.False(t, result.IsError)

	posted := h.Backend.postedChats(testTeam)
	require.Len(t, posted, 1)
	assert.Equal(t, "see you at practice", posted[0].Content)
	assert.Equal(t, coach.ID, posted[0].User.ID)
	assert.NotEmpty(t, posted[0].LocalID)

	var out mcpserver.ChatsResult
	result = callTool(t, session, "teammate_chats", map[string]any{"team_id": testTeam}, &out)
	require.False(t, result.IsError)

	require.Len(t, out.Chats, 1, "the acknowledged chat replaces the pending one")
	assert.Equal(t, "see you at practice", out.Chats[0].Content)
	assert.False(t, out.Chats[0].Unsent)
}

// --- authentication ---

func TestMCP_MissingKeyReturns401(t *testing.T) {
	h := newHarness(t)

	resp := h.doPost(t, "/mcp", "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
}

func TestMCP_UnknownKeyReturns401(t *testing.T) {
	h := newHarness(t)

	resp := h.doPost(t, "/mcp", "tm_0000000000000000000000000000000000000000000000000000000000000000")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "invalid_token")
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	resp, err := h.Client.Get(h.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
