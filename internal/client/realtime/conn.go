package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
	eventQueue = 64
)

// Conn is a reconnecting websocket EventSource for /v1/ws.
type Conn struct {
	endpoint string
	token    func() string
	dialer   *websocket.Dialer
	events   chan domain.RealtimeFrame

	minBackoff time.Duration
	maxBackoff time.Duration
}

type ConnOption func(*Conn)

func WithDialer(d *websocket.Dialer) ConnOption {
	return func(c *Conn) { c.dialer = d }
}

func WithBackoff(initial, limit time.Duration) ConnOption {
	return func(c *Conn) { c.minBackoff, c.maxBackoff = initial, limit }
}

// NewConn targets baseURL (the REST base such as "https://api.example/v1").
// token is read on every dial so a refreshed session is picked up.
func NewConn(baseURL string, token func() string, opts ...ConnOption) (*Conn, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/ws")
	if err != nil {
		return nil, fmt.Errorf("realtime url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("realtime url: unsupported scheme %q", u.Scheme)
	}
	c := &Conn{
		endpoint:   u.String(),
		token:      token,
		dialer:     websocket.DefaultDialer,
		events:     make(chan domain.RealtimeFrame, eventQueue),
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Conn) Events() <-chan domain.RealtimeFrame {
	return c.events
}

// Run keeps a connection open until ctx ends, then closes Events.
func (c *Conn) Run(ctx context.Context) error {
	defer close(c.events)
	backoff := c.minBackoff
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = c.minBackoff
		}
		slog.Warn("realtime connection lost", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// session dials once and reads until the connection fails.
func (c *Conn) session(ctx context.Context) (bool, error) {
	u := c.endpoint + "?token=" + url.QueryEscape(c.token())
	ws, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer ws.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			ws.Close()
		case <-stop:
		}
	}()

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPingHandler(func(data string) error {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return true, err
		}
		var frame domain.RealtimeFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			slog.Warn("realtime frame not json", "error", err)
			continue
		}
		select {
		case c.events <- frame:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}
