package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trackit/pkg/metrics"
	"trackit/pkg/util"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(token string) (util.Identity, error)
}

// Authorizer checks that a user owns a project.
type Authorizer interface {
	Authorize(ctx context.Context, userID, projectID int64) error
}

// Throttle admits the first request for a key within a window.
// *util.Deduper satisfies it.
type Throttle interface {
	AcquireOnce(ctx context.Context, key string) bool
}

type ServerConfig struct {
	RequireAuth    bool
	AllowedOrigins []string
}

// Server upgrades board connections and pumps hub signals to them.
type Server struct {
	hub      *Hub
	notifier Notifier
	auth     Authenticator
	authz    Authorizer
	throttle Throttle
	cfg      ServerConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer wires the websocket endpoint. notifier receives client
// UpdateBoard requests; throttle may be nil.
func NewServer(hub *Hub, notifier Notifier, auth Authenticator, authz Authorizer, throttle Throttle, cfg ServerConfig, logger *zap.Logger) *Server {
	s := &Server{
		hub:      hub,
		notifier: notifier,
		auth:     auth,
		authz:    authz,
		throttle: throttle,
		cfg:      cfg,
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// identify returns the caller, or ok=false for an anonymous connection.
// A token that is present but invalid is an error.
func (s *Server) identify(r *http.Request) (util.Identity, bool, error) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		token = util.ExtractToken(r)
	}
	if token == "" {
		return util.Identity{}, false, nil
	}
	id, err := s.auth.Authenticate(token)
	if err != nil {
		return util.Identity{}, false, err
	}
	return id, true, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, authed, err := s.identify(r)
	if err != nil || (!authed && s.cfg.RequireAuth) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	filter := AllProjects
	if raw := r.URL.Query().Get("projectId"); raw != "" {
		if filter, err = ParseProjectID(raw); err != nil {
			http.Error(w, `{"error":"invalid projectId"}`, http.StatusBadRequest)
			return
		}
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response
		s.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}

	c := &conn{
		server:   s,
		ws:       ws,
		sub:      s.hub.Subscribe(filter),
		replies:  make(chan Message, 4),
		identity: identity,
		authed:   authed,
	}
	c.logger = s.logger.With(
		zap.String("subscription_id", c.sub.ID),
		zap.Int64("user_id", identity.UserID),
		zap.Int64("project_filter", filter),
	)
	c.logger.Debug("Board subscriber connected")

	go c.writePump()
	c.readPump(r.Context())
}

type conn struct {
	server   *Server
	ws       *websocket.Conn
	sub      *Subscription
	replies  chan Message
	identity util.Identity
	authed   bool
	logger   *zap.Logger
}

// readPump owns the read side and unregisters the subscriber on exit, which
// in turn stops writePump.
func (c *conn) readPump(ctx context.Context) {
	defer func() {
		c.server.hub.Unsubscribe(c.sub)
		_ = c.ws.Close()
		c.logger.Debug("Board subscriber disconnected")
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("Board connection read error", zap.Error(err))
			}
			return
		}

		var msg Message
		reply, ok := errorMessage("malformed message"), true
		if err := json.Unmarshal(data, &msg); err == nil {
			reply, ok = c.handle(ctx, msg)
		}
		if ok {
			select {
			case c.replies <- reply:
			default:
				c.logger.Warn("Reply buffer full, dropping reply", zap.String("type", reply.Type))
			}
		}
	}
}

// handle processes one client frame and returns an optional reply.
func (c *conn) handle(ctx context.Context, msg Message) (Message, bool) {
	if msg.Type != TypeUpdateBoard {
		return errorMessage(fmt.Sprintf("unsupported message type %q", msg.Type)), true
	}
	if !c.authed {
		return errorMessage("authentication required"), true
	}
	projectID, err := ParseProjectID(msg.ProjectID)
	if err != nil {
		return errorMessage(err.Error()), true
	}
	if err := c.server.authz.Authorize(ctx, c.identity.UserID, projectID); err != nil {
		c.logger.Info("UpdateBoard rejected", zap.Int64("project_id", projectID), zap.Error(err))
		return errorMessage("project not found"), true
	}

	if t := c.server.throttle; t != nil {
		key := "board:" + strconv.FormatInt(c.identity.UserID, 10) + ":" + strconv.FormatInt(projectID, 10)
		if !t.AcquireOnce(ctx, key) {
			return Message{}, false
		}
	}

	metrics.IncrementBroadcast("client")
	c.server.notifier.BoardChanged(ctx, projectID)
	return Message{}, false
}

// writePump is the only writer on the connection.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case projectID, ok := <-c.sub.C():
			if !ok {
				_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.write(boardUpdated(projectID)); err != nil {
				return
			}
		case reply := <-c.replies:
			if err := c.write(reply); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *conn) write(msg Message) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.ws.WriteJSON(msg)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug("Board connection write failed", zap.Error(err))
	}
	return err
}
