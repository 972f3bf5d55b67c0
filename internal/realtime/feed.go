// Package realtime keeps a websocket open to the chat service and hands
// every pushed chat to a handler, reconnecting with backoff when the
// connection drops.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/tidwall/gjson"

	"github.com/CristianUrbainski/teammate-android/internal/logging"
	"github.com/CristianUrbainski/teammate-android/internal/metrics"
	"github.com/CristianUrbainski/teammate-android/internal/model"
)

const (
	// reconnectMin is the first delay after a dropped connection.
	reconnectMin = 5 * time.Second

	// reconnectMax caps the reconnect delay.
	reconnectMax = 5 * time.Minute

	// reconnectBackoffMultiplier is the growth factor applied after each
	// consecutive failed reconnect.
	reconnectBackoffMultiplier = 2

	// jitterDivisor bounds the random jitter to [0, backoff/jitterDivisor).
	jitterDivisor = 2

	// readLimit caps a single frame. Chats are short text.
	readLimit = 1 << 20

	opChat = "chat"
	opPing = "ping"
	opPong = "pong"
)

// wsConn abstracts the websocket so Feed can be tested without a server.
// *websocket.Conn satisfies it.
//
//go:generate mockgen -source=feed.go -destination=mock_conn_test.go -package=realtime -mock_names=wsConn=MockWSConn
type wsConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
	SetReadLimit(n int64)
}

// dialFunc opens a connection to url.
type dialFunc func(ctx context.Context, url string, header http.Header) (wsConn, error)

// Frame is the envelope of every message on the chat socket.
type Frame struct {
	Op   string      `json:"op"`
	Chat *model.Chat `json:"chat,omitempty"`
}

// Handler receives each chat pushed by the backend.
type Handler func(ctx context.Context, chat *model.Chat) error

// Config wires a Feed.
type Config struct {
	// URL is the chat service base, e.g. wss://chat.example.com/chat.
	URL string

	// Token returns the bearer token for each dial, so a token refreshed
	// by a sign-in is picked up on reconnect.
	Token func() string

	Teams   []string
	Handler Handler
	Logger  *slog.Logger
}

// Feed is a reconnecting chat subscription.
type Feed struct {
	url     string
	token   func() string
	teams   []string
	handler Handler
	dial    dialFunc
	logger  *slog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	mu        sync.Mutex
	conn      wsConn
	connected atomic.Bool
}

// NewFeed creates a feed. Nothing is dialled until Connect or Listen.
func NewFeed(cfg Config) *Feed {
	return &Feed{
		url:        cfg.URL,
		token:      cfg.Token,
		teams:      cfg.Teams,
		handler:    cfg.Handler,
		dial:       dialWebsocket,
		logger:     logging.Component(cfg.Logger, "realtime"),
		minBackoff: reconnectMin,
		maxBackoff: reconnectMax,
	}
}

func dialWebsocket(ctx context.Context, u string, header http.Header) (wsConn, error) {
	conn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPHeader: header}) //nolint:bodyclose // websocket.Dial closes the response body internally
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// endpoint is the feed URL with one team query parameter per team.
func (f *Feed) endpoint() (string, error) {
	u, err := url.Parse(f.url)
	if err != nil {
		return "", fmt.Errorf("parsing chat url: %w", err)
	}

	q := u.Query()
	for _, team := range f.teams {
		q.Add("team", team)
	}

	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Connect dials the chat service.
func (f *Feed) Connect(ctx context.Context) error {
	endpoint, err := f.endpoint()
	if err != nil {
		return err
	}

	header := http.Header{}
	if f.token != nil {
		if tok := f.token(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	f.logger.Debug("connecting", slog.String("url", endpoint))

	conn, err := f.dial(ctx, endpoint, header)
	if err != nil {
		return fmt.Errorf("dialing chat websocket: %w", err)
	}

	conn.SetReadLimit(readLimit)

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	f.connected.Store(true)
	f.logger.Info("chat feed connected", slog.Int("teams", len(f.teams)))

	return nil
}

// Connected reports whether a connection is currently open.
func (f *Feed) Connected() bool { return f.connected.Load() }

// Listen reads frames until ctx ends, reconnecting after failures with
// exponential backoff and jitter. It returns early only when the service
// refuses the credentials.
func (f *Feed) Listen(ctx context.Context) error {
	backoff := f.minBackoff

	for {
		err := f.session(ctx)

		f.connected.Store(false)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if isPermanent(err) {
			return fmt.Errorf("chat feed rejected: %w", err)
		}

		f.logger.Warn("chat feed lost, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff),
		)

		jitter := time.Duration(rand.Int64N(int64(backoff)/jitterDivisor + 1)) //nolint:gosec // G404: jitter has no security impact

		timer := time.NewTimer(backoff + jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = min(backoff*reconnectBackoffMultiplier, f.maxBackoff)
	}
}

// session runs one connection: dial if needed, then read until it fails.
func (f *Feed) session(ctx context.Context) error {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()

	if conn == nil {
		if err := f.Connect(ctx); err != nil {
			return err
		}
	}

	err := f.readLoop(ctx)

	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close(websocket.StatusGoingAway, "reconnecting")
		f.conn = nil
	}
	f.mu.Unlock()

	return err
}

func (f *Feed) readLoop(ctx context.Context) error {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("reading frame: %w", err)
		}

		if typ != websocket.MessageText {
			f.logger.Debug("ignoring binary frame", slog.Int("bytes", len(data)))
			continue
		}

		if err := f.handleFrame(ctx, data); err != nil {
			return err
		}
	}
}

// handleFrame dispatches one text frame. Malformed chats and handler
// failures are logged and skipped; only a failed pong ends the session.
func (f *Feed) handleFrame(ctx context.Context, data []byte) error {
	if !gjson.ValidBytes(data) {
		f.logger.Debug("ignoring malformed frame", slog.Int("bytes", len(data)))
		return nil
	}

	switch op := gjson.GetBytes(data, "op").String(); op {
	case opChat:
		metrics.ChatFrames.WithLabelValues("in").Inc()

		var chat model.Chat
		if err := json.Unmarshal([]byte(gjson.GetBytes(data, "chat").Raw), &chat); err != nil {
			f.logger.Warn("decoding chat frame", slog.String("error", err.Error()))
			return nil
		}

		chat.Normalize()

		if f.handler == nil {
			return nil
		}

		if err := f.handler(ctx, &chat); err != nil && ctx.Err() == nil {
			f.logger.Warn("handling chat",
				slog.String("id", chat.ID),
				slog.String("error", err.Error()),
			)
		}

	case opPing:
		return f.write(ctx, Frame{Op: opPong})

	default:
		f.logger.Debug("ignoring frame", slog.String("op", op))
	}

	return nil
}

// Send pushes chat to the service over the open connection.
func (f *Feed) Send(ctx context.Context, chat *model.Chat) error {
	c := chat.Clone()
	c.Normalize()

	if err := f.write(ctx, Frame{Op: opChat, Chat: c}); err != nil {
		return err
	}

	metrics.ChatFrames.WithLabelValues("out").Inc()

	return nil
}

var errNotConnected = errors.New("chat feed not connected")

func (f *Feed) write(ctx context.Context, frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshalling frame: %w", err)
	}

	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()

	if conn == nil {
		return errNotConnected
	}

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}

	return nil
}

// Close closes the connection, if any.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connected.Store(false)

	if f.conn == nil {
		return nil
	}

	err := f.conn.Close(websocket.StatusNormalClosure, "bye")
	f.conn = nil

	return err
}

// isPermanent reports whether the service closed the socket because the
// client is not allowed to connect.
func isPermanent(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusPolicyViolation, websocket.StatusCode(4001):
		return true
	}

	return false
}
