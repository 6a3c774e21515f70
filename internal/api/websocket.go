package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/herpkeeper/herpkeeper-core/internal/auth"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/config"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/logging"
	"github.com/herpkeeper/herpkeeper-core/internal/messaging"
)

// WebSocket message types.
const (
	WSTypeAuthenticate   = "authenticate"
	WSTypeError          = "error"
	WSTypeProfileUpdated = "profile_updated"
)

// Fixed payloads for the authentication exchange.
const (
	wsAuthSuccess = "Success"
	wsAuthFailure = "Failed to authenticate"
)

// Connection defaults, used when the config leaves a field unset.
const (
	defaultWSPathPrefix     = "/ws"
	defaultWSMaxMessageSize = 64 << 10
	defaultWSPingInterval   = 30 // seconds
	defaultWSPongTimeout    = 60 // seconds

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage is the envelope for every message in either direction.
//
// Client to server, the only meaningful type is "authenticate" with the JWT
// as a JSON string payload. Server to client the types are "authenticate"
// (payload "Success"), "error" (payload "Failed to authenticate"), and
// "profile_updated" (payload is the profile update).
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub manages WebSocket sessions and fans profile updates out to each
// user's live connections.
//
// Sessions start unauthenticated. A session joins the per-user registry only
// after it presents a verifiable token in-band; until then it receives
// nothing. One user may hold any number of concurrent sessions.
type Hub struct {
	cfg       config.WebSocketConfig
	jwtSecret string
	logger    *logging.Logger

	mu       sync.RWMutex
	sessions map[*WSClient]struct{}
	byUser   map[string]map[*WSClient]struct{}
	started  bool
}

// WSClient represents a connected WebSocket session.
type WSClient struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// username is empty until the session authenticates. Guarded by hub.mu.
	username string
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// Compile-time check: the hub is the local delivery target for bus facts.
var _ messaging.Deliverer = (*Hub)(nil)

// NewHub creates a new WebSocket hub. Sessions authenticate in-band with a
// JWT verified against jwtSecret.
func NewHub(cfg config.WebSocketConfig, jwtSecret string, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:       cfg,
		jwtSecret: jwtSecret,
		logger:    logger,
		sessions:  make(map[*WSClient]struct{}),
		byUser:    make(map[string]map[*WSClient]struct{}),
	}
}

// Start marks the hub ready to accept sessions. Calling Start on a running
// hub is a no-op.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}
	h.started = true
	h.logger.Info("websocket hub started", "path_prefix", h.pathPrefix())
	return nil
}

// Stop disconnects every session and stops accepting new ones. Calling Stop
// on a stopped hub is a no-op.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return nil
	}

	for client := range h.sessions {
		close(client.send)
		client.conn.Close() //nolint:errcheck // best effort teardown
		delete(h.sessions, client)
	}
	h.byUser = make(map[string]map[*WSClient]struct{})
	h.started = false
	h.logger.Info("websocket hub stopped")
	return nil
}

// AcceptUpgrade handles a WebSocket upgrade request.
//
// Upgrades are only honoured on paths under the configured prefix. Anything
// else gets its underlying connection torn down without an HTTP response:
// upgrade requests on other paths are either probes or misconfigured
// clients, and neither deserves a handshake.
func (h *Hub) AcceptUpgrade(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, h.pathPrefix()) {
		h.logger.Warn("websocket upgrade outside reserved path", "path", r.URL.Path)
		destroyConnection(w)
		return
	}

	h.mu.RLock()
	started := h.started
	h.mu.RUnlock()
	if !started {
		writeUnavailable(w, "websocket hub is not running")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}

	h.mu.Lock()
	h.sessions[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("websocket session opened", "session_id", client.id)

	go client.writePump()
	go client.readPump()
}

// DeliverProfileUpdate fans a profile update out to every live session the
// named user holds. A user with no sessions is a no-op.
//
// The session set is snapshotted under the read lock before sending, so a
// session closing mid-delivery cannot corrupt the fan-out.
func (h *Hub) DeliverProfileUpdate(update messaging.ProfileUpdate) {
	data, err := marshalEnvelope(WSTypeProfileUpdated, update)
	if err != nil {
		h.logger.Error("encoding profile update for fan-out", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.byUser[update.Username]))
	for client := range h.byUser[update.Username] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.trySend(data)
	}

	if len(targets) > 0 {
		h.logger.Debug("profile update delivered",
			"username", update.Username,
			"sessions", len(targets),
		)
	}
}

// SessionCount returns the number of open sessions, authenticated or not.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// UserSessionCount returns the number of authenticated sessions a user holds.
func (h *Hub) UserSessionCount(username string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[username])
}

// authenticate binds a session to a username. A session re-authenticating
// under a different identity moves between registries; the old binding is
// dropped first.
func (h *Hub) authenticate(client *WSClient, username string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.username == username {
		return
	}
	if client.username != "" {
		h.removeUserBindingLocked(client)
	}

	client.username = username
	set, ok := h.byUser[username]
	if !ok {
		set = make(map[*WSClient]struct{})
		h.byUser[username] = set
	}
	set[client] = struct{}{}

	h.logger.Info("websocket session authenticated",
		"session_id", client.id,
		"username", username,
	)
}

// unregister removes a session from the hub.
// Only the goroutine that successfully removes the session from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.sessions[client]
	delete(h.sessions, client)
	h.removeUserBindingLocked(client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket session closed", "session_id", client.id)
}

// removeUserBindingLocked drops the session from its user's registry and
// prunes the set when it empties. Caller holds h.mu.
func (h *Hub) removeUserBindingLocked(client *WSClient) {
	if client.username == "" {
		return
	}
	set := h.byUser[client.username]
	delete(set, client)
	if len(set) == 0 {
		delete(h.byUser, client.username)
	}
	client.username = ""
}

// pathPrefix returns the reserved upgrade path prefix.
func (h *Hub) pathPrefix() string {
	if h.cfg.PathPrefix != "" {
		return h.cfg.PathPrefix
	}
	return defaultWSPathPrefix
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close() //nolint:errcheck // best effort teardown
	}()

	maxSize := c.hub.cfg.MaxMessageSize
	if maxSize <= 0 {
		maxSize = defaultWSMaxMessageSize
	}
	c.conn.SetReadLimit(int64(maxSize))

	deadline := c.hub.keepaliveWindow()
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "session_id", c.id, "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "session_id", c.id)
			}
			return
		}
		// Any client message resets the read deadline (keeps connection alive
		// even if browser doesn't respond to protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *WSClient) writePump() {
	pingInterval := c.hub.pingInterval()
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // best effort teardown
	}()

	writeWait := c.hub.pongTimeout()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
//
// Messages that are not JSON envelopes, and envelopes of unrecognised type,
// are logged and dropped. The session stays open either way.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.logger.Debug("discarding malformed websocket message", "session_id", c.id)
		return
	}

	switch msg.Type {
	case WSTypeAuthenticate:
		c.handleAuthenticate(msg.Payload)
	default:
		c.hub.logger.Debug("unrecognised websocket message type",
			"session_id", c.id, "type", msg.Type)
	}
}

// handleAuthenticate verifies the in-band token and registers the session
// under the token's subject.
//
// Expiry is deliberately ignored: the session may have been sitting behind
// a sleeping tab since the token was minted, and a stale-but-genuine token
// still proves who the user is. Signature, issuer, and audience are always
// enforced. Failure keeps the session open so the client can retry with a
// fresher token.
func (c *WSClient) handleAuthenticate(payload json.RawMessage) {
	var token string
	if err := json.Unmarshal(payload, &token); err != nil || token == "" {
		c.sendEnvelope(WSTypeError, wsAuthFailure)
		return
	}

	claims, err := auth.ParseTokenIgnoreExpiration(token, c.hub.jwtSecret)
	if err != nil {
		c.hub.logger.Warn("websocket authentication failed",
			"session_id", c.id, "error", err)
		c.sendEnvelope(WSTypeError, wsAuthFailure)
		return
	}

	c.hub.authenticate(c, claims.Subject)
	c.sendEnvelope(WSTypeAuthenticate, wsAuthSuccess)
}

// trySend attempts to send data to the client's send channel.
// It silently handles closed channels (client disconnected during fan-out)
// and full buffers (slow client).
func (c *WSClient) trySend(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			// Only the send-on-closed-channel race is expected here.
			c.hub.logger.Debug("dropped message for closing session",
				"session_id", c.id, "panic", r)
		}
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}

// sendEnvelope marshals and sends a typed message to this session.
// Routes through trySend to safely handle closed channels during shutdown.
func (c *WSClient) sendEnvelope(msgType string, payload any) {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return
	}
	c.trySend(data)
}

// marshalEnvelope builds the wire form of a typed message.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return json.Marshal(WSMessage{Type: msgType, Payload: raw})
}

// keepaliveWindow is how long a session may stay silent before the read
// side gives up on it.
func (h *Hub) keepaliveWindow() time.Duration {
	return h.pingInterval() + h.pongTimeout()
}

func (h *Hub) pingInterval() time.Duration {
	if h.cfg.PingInterval > 0 {
		return time.Duration(h.cfg.PingInterval) * time.Second
	}
	return defaultWSPingInterval * time.Second
}

func (h *Hub) pongTimeout() time.Duration {
	if h.cfg.PongTimeout > 0 {
		return time.Duration(h.cfg.PongTimeout) * time.Second
	}
	return defaultWSPongTimeout * time.Second
}

// destroyConnection hijacks the underlying TCP connection and closes it
// without writing an HTTP response.
func destroyConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		// HTTP/2 and test recorders cannot be hijacked; refuse politely.
		w.WriteHeader(http.StatusNotFound)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close() //nolint:errcheck // the teardown is the point
}
