package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is a board subscriber that keeps reconnecting until its context
// ends. Signals published while it is disconnected are not recovered; after
// a reconnect the caller should refetch whatever it displays.
type Client struct {
	URL       string
	Token     string
	ProjectID int64

	// OnSignal is called from the read loop for every BoardUpdated frame.
	OnSignal func(projectID int64)
	// OnConnect, if set, is called after every successful dial.
	OnConnect func()

	MinBackoff time.Duration
	MaxBackoff time.Duration
	Dialer     *websocket.Dialer
	Logger     *zap.Logger
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parse hub url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if c.ProjectID != AllProjects {
		q := u.Query()
		q.Set("projectId", strconv.FormatInt(c.ProjectID, 10))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Run blocks until ctx is done and returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	minBackoff, maxBackoff := c.MinBackoff, c.MaxBackoff
	if minBackoff <= 0 {
		minBackoff = 500 * time.Millisecond
	}
	if maxBackoff < minBackoff {
		maxBackoff = 30 * time.Second
	}

	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}

	backoff := minBackoff
	for {
		ws, resp, err := dialer.DialContext(ctx, endpoint, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err == nil {
			backoff = minBackoff
			logger.Info("Connected to board hub", zap.String("url", endpoint))
			if c.OnConnect != nil {
				c.OnConnect()
			}
			err = c.read(ctx, ws)
			logger.Warn("Board hub connection lost", zap.Error(err))
		} else {
			logger.Warn("Board hub dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) read(ctx context.Context, ws *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = ws.Close()
		case <-done:
		}
	}()
	defer ws.Close()

	// the server pings; answering resets our deadline too
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPingHandler(func(data string) error {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Type != TypeBoardUpdated {
			continue
		}
		id, err := ParseProjectID(msg.ProjectID)
		if err != nil {
			continue
		}
		if c.OnSignal != nil {
			c.OnSignal(id)
		}
	}
}
