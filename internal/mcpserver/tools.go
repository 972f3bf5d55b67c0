// Package mcpserver registers MCP tools that expose the synced team lists.
// It adapts the view models to the MCP SDK's tool handler interface.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
	apperrors "github.com/CristianUrbainski/teammate-android/internal/errors"
	"github.com/CristianUrbainski/teammate-android/internal/model"
	"github.com/CristianUrbainski/teammate-android/internal/reconcile"
	"github.com/CristianUrbainski/teammate-android/internal/viewmodel"
)

// Deps are the view models the tools read and write through.
type Deps struct {
	Events      *viewmodel.EventViewModel
	Games       *viewmodel.GameViewModel
	Stats       *viewmodel.StatViewModel
	Chats       *viewmodel.ChatViewModel
	Tournaments *viewmodel.TournamentViewModel
	Competitors *viewmodel.CompetitorViewModel

	// User returns the signed-in user, the author of posted chats.
	User func() model.User
}

// RegisterTools adds all teammate tools to the given MCP server.
func RegisterTools(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "teammate_events",
		Description: "List a team's events, newest first. Refreshes from the backend unless more is set, in which case the next older page is appended.",
	}, eventsHandler(d))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "teammate_event",
		Description: "Fetch one loaded event with its guest list.",
	}, eventHandler(d))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "teammate_rsvp",
		Description: "RSVP the signed-in user to a loaded event.",
	}, rsvpHandler(d))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "teammate_games",
		Description: "List a team's games, newest first. Games the team declined are left out.",
	}, gamesHandler(d))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "teammate_end_game",
		Description: "Mark a loaded game as ended. The list shows it ended at once and reverts if the backend rejects it.",
	}, endGameHandler(d))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "teammate_stats",
		Description: "List the stats recorded for a game, newest first.",
	}, statsHandler(d))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "teammate_chats",
		Description: "List a team's chat, oldest first. Unsent messages are flagged.",
	}, chatsHandler(d))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "teammate_post_chat",
		Description: "Post a chat message to a team as the signed-in user.",
	}, postChatHandler(d))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "teammate_tournaments",
		Description: "List the tournaments a team hosts, newest first.",
	}, tournamentsHandler(d))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "teammate_declined",
		Description: "List the game and tournament seats the signed-in user or their teams declined, newest first.",
	}, declinedHandler(d))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "teammate_respond",
		Description: "Accept or decline a game or tournament seat. Declining hides the game or tournament; accepting a declined seat takes it off the declined list.",
	}, respondHandler(d))
}

// --- Input types ---
// The MCP SDK infers JSON schema from these struct types via jsonschema tags.

// ListInput holds parameters for the team list tools.
type ListInput struct {
	TeamID string `json:"team_id" jsonschema:"required,team id"`
	More   bool   `json:"more,omitempty" jsonschema:"load the next older page instead of refreshing"`
}

// StatsInput holds parameters for teammate_stats.
type StatsInput struct {
	GameID string `json:"game_id" jsonschema:"required,game id"`
	More   bool   `json:"more,omitempty" jsonschema:"load the next older page instead of refreshing"`
}

// EventInput holds parameters for teammate_event.
type EventInput struct {
	TeamID  string `json:"team_id" jsonschema:"required,team id"`
	EventID string `json:"event_id" jsonschema:"required,event id"`
}

// RSVPInput holds parameters for teammate_rsvp.
type RSVPInput struct {
	TeamID    string `json:"team_id" jsonschema:"required,team id"`
	EventID   string `json:"event_id" jsonschema:"required,event id"`
	Attending bool   `json:"attending" jsonschema:"whether the user will attend"`
}

// GameInput holds parameters for teammate_end_game.
type GameInput struct {
	TeamID string `json:"team_id" jsonschema:"required,team id"`
	GameID string `json:"game_id" jsonschema:"required,game id"`
}

// PostChatInput holds parameters for teammate_post_chat.
type PostChatInput struct {
	TeamID  string `json:"team_id" jsonschema:"required,team id"`
	Content string `json:"content" jsonschema:"required,message text"`
}

// DeclinedInput holds parameters for teammate_declined.
type DeclinedInput struct {
	More bool `json:"more,omitempty" jsonschema:"load the next older page instead of refreshing"`
}

// RespondInput holds parameters for teammate_respond.
type RespondInput struct {
	CompetitorID string `json:"competitor_id" jsonschema:"required,competitor id"`
	Accept       bool   `json:"accept" jsonschema:"accept the seat, or decline it when false"`
}

// --- Output types ---

// Changes counts the list updates a call produced.
type Changes struct {
	Inserted int `json:"inserted"`
	Removed  int `json:"removed"`
	Moved    int `json:"moved"`
	Changed  int `json:"changed"`
}

// tally accumulates outcome counts. deliver runs on the loop goroutine.
type tally struct {
	mu sync.Mutex
	Changes
}

func (t *tally) add(o reconcile.Outcome) {
	ins, rem, mov, chg := o.Diff.Counts()

	t.mu.Lock()
	t.Inserted += ins
	t.Removed += rem
	t.Moved += mov
	t.Changed += chg
	t.mu.Unlock()
}

func (t *tally) result() Changes {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.Changes
}

type EventView struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location string    `json:"location,omitempty"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	GameID   string    `json:"game_id,omitempty"`
}

type GuestView struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Attending bool   `json:"attending"`
}

type GameView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Home      string    `json:"home"`
	Away      string    `json:"away"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
	Ended     bool      `json:"ended"`
	Created   time.Time `json:"created"`
}

type StatView struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	User    string    `json:"user,omitempty"`
	Value   int       `json:"value"`
	Time    float64   `json:"time"`
	Created time.Time `json:"created"`
}

type ChatView struct {
	ID      string    `json:"id"`
	Author  string    `json:"author"`
	Content string    `json:"content"`
	Created time.Time `json:"created"`
	Unsent  bool      `json:"unsent,omitempty"`
}

type TournamentView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Rounds       int       `json:"rounds"`
	CurrentRound int       `json:"current_round"`
	Competitors  int       `json:"competitors"`
	Winner       string    `json:"winner,omitempty"`
	Created      time.Time `json:"created"`
}

type CompetitorView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	GameID       string `json:"game_id,omitempty"`
	TournamentID string `json:"tournament_id,omitempty"`
	Accepted     bool   `json:"accepted"`
	Declined     bool   `json:"declined"`
}

type EventsResult struct {
	TeamID  string      `json:"team_id"`
	Events  []EventView `json:"events"`
	Changes Changes     `json:"changes"`
}

type EventDetail struct {
	Event  EventView   `json:"event"`
	Guests []GuestView `json:"guests"`
}

type GamesResult struct {
	TeamID  string     `json:"team_id"`
	Games   []GameView `json:"games"`
	Changes Changes    `json:"changes"`
}

type StatsResult struct {
	GameID  string     `json:"game_id"`
	Stats   []StatView `json:"stats"`
	Changes Changes    `json:"changes"`
}

type ChatsResult struct {
	TeamID  string     `json:"team_id"`
	Chats   []ChatView `json:"chats"`
	Changes Changes    `json:"changes"`
}

type TournamentsResult struct {
	TeamID      string           `json:"team_id"`
	Tournaments []TournamentView `json:"tournaments"`
	Changes     Changes          `json:"changes"`
}

type DeclinedResult struct {
	Competitors []CompetitorView `json:"competitors"`
	Changes     Changes          `json:"changes"`
}

func eventView(ev *model.Event) EventView {
	return EventView{
		ID:       ev.ID,
		Name:     ev.Name,
		Location: ev.LocationName,
		Start:    ev.StartDate,
		End:      ev.EndDate,
		GameID:   ev.GameID,
	}
}

func guestView(g *model.Guest) GuestView {
	return GuestView{UserID: g.User.ID, Name: fullName(g.User), Attending: g.Attending}
}

func gameView(g *model.Game) GameView {
	return GameView{
		ID:        g.ID,
		Name:      g.Name,
		Home:      g.Home.DisplayName(),
		Away:      g.Away.DisplayName(),
		HomeScore: g.HomeScore,
		AwayScore: g.AwayScore,
		Ended:     g.Ended,
		Created:   g.Created,
	}
}

func statView(s *model.Stat) StatView {
	return StatView{
		ID:      s.ID,
		Type:    s.StatType,
		User:    fullName(s.User),
		Value:   s.Value,
		Time:    s.Time,
		Created: s.Created,
	}
}

func chatView(c *model.Chat) ChatView {
	return ChatView{
		ID:      c.ItemID(),
		Author:  fullName(c.User),
		Content: c.Content,
		Created: c.Created,
		Unsent:  c.Unsent,
	}
}

func tournamentView(t *model.Tournament) TournamentView {
	return TournamentView{
		ID:           t.ID,
		Name:         t.Name,
		Rounds:       t.NumRounds,
		CurrentRound: t.CurrentRound,
		Competitors:  t.NumCompetitors,
		Winner:       t.Winner.DisplayName(),
		Created:      t.Created,
	}
}

func competitorView(c *model.Competitor) CompetitorView {
	return CompetitorView{
		ID:           c.ID,
		Name:         c.DisplayName(),
		GameID:       c.GameID,
		TournamentID: c.TournamentID,
		Accepted:     c.Accepted,
		Declined:     c.Declined,
	}
}

func fullName(u model.User) string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}

	return u.FirstName + " " + u.LastName
}

func mapViews[V, O any](in []V, fn func(V) O) []O {
	out := make([]O, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}

	return out
}

// page refreshes or extends key's list and returns its values.
func page[V diff.Differentiable](ctx context.Context, m *viewmodel.Mapped[string, V], key string, more bool) ([]V, Changes, error) {
	var t tally

	if err := m.GetMany(ctx, key, !more, t.add); err != nil {
		return nil, Changes{}, err
	}

	values, err := m.Values(ctx, key)
	if err != nil {
		return nil, Changes{}, err
	}

	return values, t.result(), nil
}

// find returns the loaded value with id in key's list.
func find[V diff.Differentiable](ctx context.Context, m *viewmodel.Mapped[string, V], key, id string) (V, error) {
	var zero V

	values, err := m.Values(ctx, key)
	if err != nil {
		return zero, err
	}

	for _, v := range values {
		if v.ItemID() == id {
			return v, nil
		}
	}

	return zero, fmt.Errorf("%s %q in %q: %w", m.Name(), id, key, apperrors.ErrNotLoaded)
}

// --- Handlers ---

func eventsHandler(d Deps) mcp.ToolHandlerFor[ListInput, *EventsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, *EventsResult, error) {
		events, changes, err := page(ctx, d.Events.Mapped, input.TeamID, input.More)
		if err != nil {
			return nil, nil, err
		}

		result := &EventsResult{TeamID: input.TeamID, Events: mapViews(events, eventView), Changes: changes}

		return textResult(result), result, nil
	}
}

func eventHandler(d Deps) mcp.ToolHandlerFor[EventInput, *EventDetail] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EventInput) (*mcp.CallToolResult, *EventDetail, error) {
		ev, err := find(ctx, d.Events.Mapped, input.TeamID, input.EventID)
		if err != nil {
			return nil, nil, err
		}

		g := d.Events.Gofer(ev.Clone())
		if err := g.Fetch(ctx, nil); err != nil {
			return nil, nil, err
		}

		fetched, err := g.Model(ctx)
		if err != nil {
			return nil, nil, err
		}

		items, err := g.Items(ctx)
		if err != nil {
			return nil, nil, err
		}

		result := &EventDetail{Event: eventView(fetched), Guests: []GuestView{}}

		for _, it := range items {
			if guest, ok := it.(*model.Guest); ok {
				result.Guests = append(result.Guests, guestView(guest))
			}
		}

		return textResult(result), result, nil
	}
}

func rsvpHandler(d Deps) mcp.ToolHandlerFor[RSVPInput, *GuestView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RSVPInput) (*mcp.CallToolResult, *GuestView, error) {
		ev, err := find(ctx, d.Events.Mapped, input.TeamID, input.EventID)
		if err != nil {
			return nil, nil, err
		}

		guest, err := d.Events.Gofer(ev.Clone()).RSVP(ctx, input.Attending, nil)
		if err != nil {
			return nil, nil, err
		}

		result := guestView(guest)

		return textResult(result), &result, nil
	}
}

func gamesHandler(d Deps) mcp.ToolHandlerFor[ListInput, *GamesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, *GamesResult, error) {
		games, changes, err := page(ctx, d.Games.Mapped, input.TeamID, input.More)
		if err != nil {
			return nil, nil, err
		}

		result := &GamesResult{TeamID: input.TeamID, Games: mapViews(games, gameView), Changes: changes}

		return textResult(result), result, nil
	}
}

func endGameHandler(d Deps) mcp.ToolHandlerFor[GameInput, *GameView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GameInput) (*mcp.CallToolResult, *GameView, error) {
		g, err := find(ctx, d.Games.Mapped, input.TeamID, input.GameID)
		if err != nil {
			return nil, nil, err
		}

		ended, err := d.Games.EndGame(ctx, g)
		if err != nil {
			return nil, nil, err
		}

		result := gameView(ended)

		return textResult(result), &result, nil
	}
}

func statsHandler(d Deps) mcp.ToolHandlerFor[StatsInput, *StatsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input StatsInput) (*mcp.CallToolResult, *StatsResult, error) {
		stats, changes, err := page(ctx, d.Stats.Mapped, input.GameID, input.More)
		if err != nil {
			return nil, nil, err
		}

		result := &StatsResult{GameID: input.GameID, Stats: mapViews(stats, statView), Changes: changes}

		return textResult(result), result, nil
	}
}

func chatsHandler(d Deps) mcp.ToolHandlerFor[ListInput, *ChatsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, *ChatsResult, error) {
		chats, changes, err := page(ctx, d.Chats.Mapped, input.TeamID, input.More)
		if err != nil {
			return nil, nil, err
		}

		result := &ChatsResult{TeamID: input.TeamID, Chats: mapViews(chats, chatView), Changes: changes}

		return textResult(result), result, nil
	}
}

func postChatHandler(d Deps) mcp.ToolHandlerFor[PostChatInput, *ChatView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PostChatInput) (*mcp.CallToolResult, *ChatView, error) {
		if input.Content == "" {
			return nil, nil, fmt.Errorf("content is required")
		}

		var user model.User
		if d.User != nil {
			user = d.User()
		}

		if user.ID == "" {
			return nil, nil, apperrors.ErrNotSignedIn
		}

		chat, err := model.NewChat(input.Content, user, model.Team{ID: input.TeamID})
		if err != nil {
			return nil, nil, err
		}

		if err := d.Chats.Post(ctx, chat, nil); err != nil {
			return nil, nil, err
		}

		result := chatView(chat)

		return textResult(result), &result, nil
	}
}

func tournamentsHandler(d Deps) mcp.ToolHandlerFor[ListInput, *TournamentsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, *TournamentsResult, error) {
		tournaments, changes, err := page(ctx, d.Tournaments.Mapped, input.TeamID, input.More)
		if err != nil {
			return nil, nil, err
		}

		result := &TournamentsResult{TeamID: input.TeamID, Tournaments: mapViews(tournaments, tournamentView), Changes: changes}

		return textResult(result), result, nil
	}
}

func declinedHandler(d Deps) mcp.ToolHandlerFor[DeclinedInput, *DeclinedResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeclinedInput) (*mcp.CallToolResult, *DeclinedResult, error) {
		declined, changes, err := page(ctx, d.Competitors.Mapped, model.DeclinedCompetitors, input.More)
		if err != nil {
			return nil, nil, err
		}

		result := &DeclinedResult{Competitors: mapViews(declined, competitorView), Changes: changes}

		return textResult(result), result, nil
	}
}

// respondHandler answers a seat. A seat not on the declined list is
// fetched first so its game or tournament is known.
func respondHandler(d Deps) mcp.ToolHandlerFor[RespondInput, *CompetitorView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RespondInput) (*mcp.CallToolResult, *CompetitorView, error) {
		c, err := find(ctx, d.Competitors.Mapped, model.DeclinedCompetitors, input.CompetitorID)
		if errors.Is(err, apperrors.ErrNotLoaded) {
			c, err = d.Competitors.Fetch(ctx, input.CompetitorID)
		}

		if err != nil {
			return nil, nil, err
		}

		saved, err := d.Competitors.Respond(ctx, c, input.Accept, nil)
		if err != nil {
			return nil, nil, err
		}

		result := competitorView(saved)

		return textResult(result), &result, nil
	}
}

// textResult builds a CallToolResult with JSON text content from any value.
// This provides the unstructured content alongside the structured output
// that the SDK populates automatically.
func textResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("error marshaling result: %v", err)}},
			IsError: true,
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
