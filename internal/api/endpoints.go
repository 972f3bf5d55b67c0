package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/CristianUrbainski/teammate-android/internal/model"
)

// SignInRequest is the body of POST /api/signIn.
type SignInRequest struct {
	Email    string `json:"primaryEmail"`
	Password string `json:"password"`
}

// SignInResponse carries the session token and the signed-in user.
type SignInResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// RSVPRequest is the body of POST /api/events/{id}/rsvp.
type RSVPRequest struct {
	Attending bool `json:"attending"`
}

// pageQuery encodes a page cursor. A zero before means the first page.
func pageQuery(before time.Time, limit int) url.Values {
	q := url.Values{}
	if !before.IsZero() {
		q.Set("date", before.UTC().Format(time.RFC3339Nano))
	}

	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	return q
}

func esc(id string) string { return url.PathEscape(id) }

// SignIn authenticates and stores the returned token on the client.
func (c *Client) SignIn(ctx context.Context, email, password string) (*SignInResponse, error) {
	var resp SignInResponse
	if err := c.do(ctx, http.MethodPost, "/api/signIn", nil, SignInRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}

	c.SetToken(resp.Token)

	return &resp, nil
}

// --- Events ---

func (c *Client) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var ev model.Event
	if err := c.do(ctx, http.MethodGet, "/api/events/"+esc(id), nil, nil, &ev); err != nil {
		return nil, fmt.Errorf("getting event %s: %w", id, err)
	}

	return &ev, nil
}

func (c *Client) CreateEvent(ctx context.Context, ev *model.Event) (*model.Event, error) {
	var out model.Event
	if err := c.do(ctx, http.MethodPost, "/api/teams/"+esc(ev.Team.ID)+"/events", nil, ev, &out); err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}

	return &out, nil
}

func (c *Client) UpdateEvent(ctx context.Context, ev *model.Event) (*model.Event, error) {
	var out model.Event
	if err := c.do(ctx, http.MethodPut, "/api/events/"+esc(ev.ID), nil, ev, &out); err != nil {
		return nil, fmt.Errorf("updating event %s: %w", ev.ID, err)
	}

	return &out, nil
}

func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/events/"+esc(id), nil, nil, nil); err != nil {
		return fmt.Errorf("deleting event %s: %w", id, err)
	}

	return nil
}

// GetEvents pages a team's events, newest first, strictly before the
// cursor.
func (c *Client) GetEvents(ctx context.Context, teamID string, before time.Time, limit int) ([]*model.Event, error) {
	var out []*model.Event
	if err := c.do(ctx, http.MethodGet, "/api/teams/"+esc(teamID)+"/events", pageQuery(before, limit), nil, &out); err != nil {
		return nil, fmt.Errorf("listing events for team %s: %w", teamID, err)
	}

	return out, nil
}

func (c *Client) RSVPEvent(ctx context.Context, eventID string, attending bool) (*model.Guest, error) {
	var out model.Guest
	if err := c.do(ctx, http.MethodPost, "/api/events/"+esc(eventID)+"/rsvp", nil, RSVPRequest{Attending: attending}, &out); err != nil {
		return nil, fmt.Errorf("rsvp to event %s: %w", eventID, err)
	}

	return &out, nil
}

func (c *Client) GetGuests(ctx context.Context, eventID string) ([]*model.Guest, error) {
	var out []*model.Guest
	if err := c.do(ctx, http.MethodGet, "/api/events/"+esc(eventID)+"/guests", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("listing guests for event %s: %w", eventID, err)
	}

	return out, nil
}

// --- Games ---

func (c *Client) GetGame(ctx context.Context, id string) (*model.Game, error) {
	var g model.Game
	if err := c.do(ctx, http.MethodGet, "/api/games/"+esc(id), nil, nil, &g); err != nil {
		return nil, fmt.Errorf("getting game %s: %w", id, err)
	}

	return &g, nil
}

func (c *Client) CreateGame(ctx context.Context, g *model.Game) (*model.Game, error) {
	var out model.Game
	if err := c.do(ctx, http.MethodPost, "/api/games", nil, g, &out); err != nil {
		return nil, fmt.Errorf("creating game: %w", err)
	}

	return &out, nil
}

func (c *Client) UpdateGame(ctx context.Context, g *model.Game) (*model.Game, error) {
	var out model.Game
	if err := c.do(ctx, http.MethodPut, "/api/games/"+esc(g.ID), nil, g, &out); err != nil {
		return nil, fmt.Errorf("updating game %s: %w", g.ID, err)
	}

	return &out, nil
}

func (c *Client) DeleteGame(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/games/"+esc(id), nil, nil, nil); err != nil {
		return fmt.Errorf("deleting game %s: %w", id, err)
	}

	return nil
}

func (c *Client) GetGames(ctx context.Context, teamID string, before time.Time, limit int) ([]*model.Game, error) {
	var out []*model.Game
	if err := c.do(ctx, http.MethodGet, "/api/teams/"+esc(teamID)+"/games", pageQuery(before, limit), nil, &out); err != nil {
		return nil, fmt.Errorf("listing games for team %s: %w", teamID, err)
	}

	return out, nil
}

// GetEligibleTeams lists the teams the signed-in user may host a game
// with.
func (c *Client) GetEligibleTeams(ctx context.Context, gameID string) ([]*model.Team, error) {
	var out []*model.Team
	if err := c.do(ctx, http.MethodGet, "/api/games/"+esc(gameID)+"/eligible-teams", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("listing eligible teams for game %s: %w", gameID, err)
	}

	return out, nil
}

// --- Tournaments ---

func (c *Client) GetTournament(ctx context.Context, id string) (*model.Tournament, error) {
	var t model.Tournament
	if err := c.do(ctx, http.MethodGet, "/api/tournaments/"+esc(id), nil, nil, &t); err != nil {
		return nil, fmt.Errorf("getting tournament %s: %w", id, err)
	}

	return &t, nil
}

func (c *Client) CreateTournament(ctx context.Context, t *model.Tournament) (*model.Tournament, error) {
	var out model.Tournament
	if err := c.do(ctx, http.MethodPost, "/api/teams/"+esc(t.Host.ID)+"/tournaments", nil, t, &out); err != nil {
		return nil, fmt.Errorf("creating tournament: %w", err)
	}

	return &out, nil
}

func (c *Client) UpdateTournament(ctx context.Context, t *model.Tournament) (*model.Tournament, error) {
	var out model.Tournament
	if err := c.do(ctx, http.MethodPut, "/api/tournaments/"+esc(t.ID), nil, t, &out); err != nil {
		return nil, fmt.Errorf("updating tournament %s: %w", t.ID, err)
	}

	return &out, nil
}

func (c *Client) DeleteTournament(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/tournaments/"+esc(id), nil, nil, nil); err != nil {
		return fmt.Errorf("deleting tournament %s: %w", id, err)
	}

	return nil
}

func (c *Client) GetTournaments(ctx context.Context, teamID string, before time.Time, limit int) ([]*model.Tournament, error) {
	var out []*model.Tournament
	if err := c.do(ctx, http.MethodGet, "/api/teams/"+esc(teamID)+"/tournaments", pageQuery(before, limit), nil, &out); err != nil {
		return nil, fmt.Errorf("listing tournaments for team %s: %w", teamID, err)
	}

	return out, nil
}

// --- Competitors ---

func (c *Client) GetCompetitor(ctx context.Context, id string) (*model.Competitor, error) {
	var out model.Competitor
	if err := c.do(ctx, http.MethodGet, "/api/competitors/"+esc(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("getting competitor %s: %w", id, err)
	}

	return &out, nil
}

// UpdateCompetitor sends a competitor's accepted and declined flags.
func (c *Client) UpdateCompetitor(ctx context.Context, comp *model.Competitor) (*model.Competitor, error) {
	var out model.Competitor
	if err := c.do(ctx, http.MethodPut, "/api/competitors/"+esc(comp.ID), nil, comp, &out); err != nil {
		return nil, fmt.Errorf("updating competitor %s: %w", comp.ID, err)
	}

	return &out, nil
}

func (c *Client) GetTournamentCompetitors(ctx context.Context, tournamentID string) ([]*model.Competitor, error) {
	var out []*model.Competitor
	if err := c.do(ctx, http.MethodGet, "/api/tournaments/"+esc(tournamentID)+"/competitors", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("listing competitors for tournament %s: %w", tournamentID, err)
	}

	return out, nil
}

// GetDeclinedCompetitors pages the seats the signed-in user, or a team
// they manage, turned down.
func (c *Client) GetDeclinedCompetitors(ctx context.Context, before time.Time, limit int) ([]*model.Competitor, error) {
	var out []*model.Competitor
	if err := c.do(ctx, http.MethodGet, "/api/me/competitors/declined", pageQuery(before, limit), nil, &out); err != nil {
		return nil, fmt.Errorf("listing declined competitors: %w", err)
	}

	return out, nil
}

// --- Stats ---

func (c *Client) GetStats(ctx context.Context, gameID string, before time.Time, limit int) ([]*model.Stat, error) {
	var out []*model.Stat
	if err := c.do(ctx, http.MethodGet, "/api/games/"+esc(gameID)+"/stats", pageQuery(before, limit), nil, &out); err != nil {
		return nil, fmt.Errorf("listing stats for game %s: %w", gameID, err)
	}

	return out, nil
}

func (c *Client) CreateStat(ctx context.Context, s *model.Stat) (*model.Stat, error) {
	var out model.Stat
	if err := c.do(ctx, http.MethodPost, "/api/games/"+esc(s.GameID)+"/stats", nil, s, &out); err != nil {
		return nil, fmt.Errorf("creating stat: %w", err)
	}

	return &out, nil
}

func (c *Client) DeleteStat(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/stats/"+esc(id), nil, nil, nil); err != nil {
		return fmt.Errorf("deleting stat %s: %w", id, err)
	}

	return nil
}

// --- Chats ---

func (c *Client) GetChats(ctx context.Context, teamID string, before time.Time, limit int) ([]*model.Chat, error) {
	var out []*model.Chat
	if err := c.do(ctx, http.MethodGet, "/api/teams/"+esc(teamID)+"/chats", pageQuery(before, limit), nil, &out); err != nil {
		return nil, fmt.Errorf("listing chats for team %s: %w", teamID, err)
	}

	return out, nil
}

func (c *Client) PostChat(ctx context.Context, chat *model.Chat) (*model.Chat, error) {
	var out model.Chat
	if err := c.do(ctx, http.MethodPost, "/api/teams/"+esc(chat.Team.ID)+"/chats", nil, chat, &out); err != nil {
		return nil, fmt.Errorf("posting chat: %w", err)
	}

	return &out, nil
}

// --- Roles ---

func (c *Client) GetMyRoles(ctx context.Context) ([]*model.Role, error) {
	var out []*model.Role
	if err := c.do(ctx, http.MethodGet, "/api/me/roles", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}

	return out, nil
}

func (c *Client) GetBlockedUsers(ctx context.Context, teamID string) ([]*model.BlockedUser, error) {
	var out []*model.BlockedUser
	if err := c.do(ctx, http.MethodGet, "/api/teams/"+esc(teamID)+"/blocked", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("listing blocked users for team %s: %w", teamID, err)
	}

	return out, nil
}
