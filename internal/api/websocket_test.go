package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/herpkeeper/herpkeeper-core/internal/auth"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/config"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/logging"
	"github.com/herpkeeper/herpkeeper-core/internal/messaging"
)

const testSecret = "test-secret-test-secret-test-secret-1234"

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

// startHub returns a running hub with short keepalive timings.
func startHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub(config.WebSocketConfig{
		PathPrefix:   "/ws",
		PingInterval: 1,
		PongTimeout:  2,
	}, testSecret, testLogger())
	if err := hub.Start(); err != nil {
		t.Fatalf("starting hub: %v", err)
	}
	t.Cleanup(func() {
		hub.Stop() //nolint:errcheck // test cleanup
	})
	return hub
}

// wsServer serves upgrade requests through the hub, everything else 404s.
func wsServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			hub.AcceptUpgrade(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// dialWS opens a WebSocket connection to the given path on the test server.
func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialling %s: %v", url, err)
	}
	t.Cleanup(func() {
		conn.Close() //nolint:errcheck // test cleanup
	})
	return conn
}

// sendEnvelope writes a typed message on the connection.
func sendEnvelope(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encoding payload: %v", err)
	}
	if err := conn.WriteJSON(WSMessage{Type: msgType, Payload: raw}); err != nil {
		t.Fatalf("writing message: %v", err)
	}
}

// readEnvelope reads the next message, failing the test after a timeout.
func readEnvelope(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // deterministic in tests
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading message: %v", err)
	}
	return msg
}

// memberToken mints a valid access token for the given username.
func memberToken(t *testing.T, username string) string {
	t.Helper()

	token, err := auth.GenerateAccessToken(username, auth.RoleMember, testSecret, 5)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	return token
}

// expiredToken mints a token that expired an hour ago but is otherwise valid.
func expiredToken(t *testing.T, username string) string {
	t.Helper()

	claims := auth.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.TokenIssuer,
			Audience:  jwt.ClaimStrings{auth.TokenAudience},
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Role: auth.RoleMember,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing expired token: %v", err)
	}
	return signed
}

// authenticateConn runs the in-band authentication exchange and returns the
// server's reply.
func authenticateConn(t *testing.T, conn *websocket.Conn, token string) WSMessage {
	t.Helper()

	sendEnvelope(t, conn, WSTypeAuthenticate, token)
	return readEnvelope(t, conn)
}

// waitFor polls cond until it returns true or the timeout passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestHub_StartStopIdempotent(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testSecret, testLogger())

	// Stop before Start is a no-op.
	if err := hub.Stop(); err != nil {
		t.Fatalf("Stop() before Start error: %v", err)
	}

	if err := hub.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := hub.Start(); err != nil {
		t.Fatalf("second Start() error: %v", err)
	}

	if err := hub.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if err := hub.Stop(); err != nil {
		t.Fatalf("second Stop() error: %v", err)
	}
}

func TestHub_AuthenticateSuccess(t *testing.T) {
	hub := startHub(t)
	srv := wsServer(t, hub)
	conn := dialWS(t, srv, "/ws")

	reply := authenticateConn(t, conn, memberToken(t, "caitlyn"))
	if reply.Type != WSTypeAuthenticate {
		t.Fatalf("reply type = %q, want %q", reply.Type, WSTypeAuthenticate)
	}

	var payload string
	if err := json.Unmarshal(reply.Payload, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload != "Success" {
		t.Errorf("payload = %q, want %q", payload, "Success")
	}

	if got := hub.UserSessionCount("caitlyn"); got != 1 {
		t.Errorf("UserSessionCount = %d, want 1", got)
	}
}

func TestHub_AuthenticateFailureKeepsSessionOpen(t *testing.T) {
	hub := startHub(t)
	srv := wsServer(t, hub)
	conn := dialWS(t, srv, "/ws")

	reply := authenticateConn(t, conn, "not-a-token")
	if reply.Type != WSTypeError {
		t.Fatalf("reply type = %q, want %q", reply.Type, WSTypeError)
	}

	var payload string
	if err := json.Unmarshal(reply.Payload, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload != "Failed to authenticate" {
		t.Errorf("payload = %q, want %q", payload, "Failed to authenticate")
	}
	if got := hub.UserSessionCount("caitlyn"); got != 0 {
		t.Errorf("UserSessionCount after failure = %d, want 0", got)
	}

	// The session survives the failure; a retry with a good token succeeds.
	reply = authenticateConn(t, conn, memberToken(t, "caitlyn"))
	if reply.Type != WSTypeAuthenticate {
		t.Fatalf("retry reply type = %q, want %q", reply.Type, WSTypeAuthenticate)
	}
}

func TestHub_ExpiredTokenAccepted(t *testing.T) {
	hub := startHub(t)
	srv := wsServer(t, hub)
	conn := dialWS(t, srv, "/ws")

	reply := authenticateConn(t, conn, expiredToken(t, "caitlyn"))
	if reply.Type != WSTypeAuthenticate {
		t.Fatalf("reply type = %q, want %q (expired-but-genuine tokens pass)", reply.Type, WSTypeAuthenticate)
	}
	if got := hub.UserSessionCount("caitlyn"); got != 1 {
		t.Errorf("UserSessionCount = %d, want 1", got)
	}
}

func TestHub_WrongSecretTokenRejected(t *testing.T) {
	hub := startHub(t)
	srv := wsServer(t, hub)
	conn := dialWS(t, srv, "/ws")

	token, err := auth.GenerateAccessToken("caitlyn", auth.RoleMember, "another-secret-another-secret-12", 5)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	reply := authenticateConn(t, conn, token)
	if reply.Type != WSTypeError {
		t.Errorf("reply type = %q, want %q", reply.Type, WSTypeError)
	}
}

func TestHub_MalformedMessageIgnored(t *testing.T) {
	hub := startHub(t)
	srv := wsServer(t, hub)
	conn := dialWS(t, srv, "/ws")

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("writing garbage: %v", err)
	}
	sendEnvelope(t, conn, "mystery", map[string]string{"a": "b"})

	// Neither message draws a reply or kills the session.
	reply := authenticateConn(t, conn, memberToken(t, "caitlyn"))
	if reply.Type != WSTypeAuthenticate {
		t.Fatalf("reply type = %q, want %q", reply.Type, WSTypeAuthenticate)
	}
}

func TestHub_PathGating(t *testing.T) {
	hub := startHub(t)
	srv := wsServer(t, hub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/health"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil) //nolint:bodyclose // handshake fails, no response body
	if err == nil {
		conn.Close() //nolint:errcheck // test cleanup
		t.Fatal("upgrade outside /ws succeeded, want handshake failure")
	}
}

func TestHub_FanOutToUserSessions(t *testing.T) {
	hub := startHub(t)
	srv := wsServer(t, hub)

	alice1 := dialWS(t, srv, "/ws")
	alice2 := dialWS(t, srv, "/ws")
	bob := dialWS(t, srv, "/ws")

	authenticateConn(t, alice1, memberToken(t, "alice"))
	authenticateConn(t, alice2, memberToken(t, "alice"))
	authenticateConn(t, bob, memberToken(t, "bob"))

	if got := hub.UserSessionCount("alice"); got != 2 {
		t.Fatalf("alice sessions = %d, want 2", got)
	}

	update := messaging.ProfileUpdate{
		ProfileID: "prof-1",
		Username:  "alice",
		Timestamp: time.Now().UTC(),
	}
	hub.DeliverProfileUpdate(update)

	for i, conn := range []*websocket.Conn{alice1, alice2} {
		msg := readEnvelope(t, conn)
		if msg.Type != WSTypeProfileUpdated {
			t.Errorf("alice session %d: type = %q, want %q", i+1, msg.Type, WSTypeProfileUpdated)
		}
		var got messaging.ProfileUpdate
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatalf("alice session %d: decoding payload: %v", i+1, err)
		}
		if got.ProfileID != "prof-1" || got.Username != "alice" {
			t.Errorf("alice session %d: payload = %+v", i+1, got)
		}
	}

	// Bob must not see alice's update.
	bob.SetReadDeadline(time.Now().Add(200 * time.Millisecond)) //nolint:errcheck // deterministic in tests
	if _, _, err := bob.ReadMessage(); err == nil {
		t.Error("bob received a message, want none")
	}
}

func TestHub_DeliverToOfflineUserIsNoOp(t *testing.T) {
	hub := startHub(t)

	// No sessions at all; delivery must not panic or block.
	hub.DeliverProfileUpdate(messaging.ProfileUpdate{
		ProfileID: "prof-1",
		Username:  "nobody",
		Timestamp: time.Now().UTC(),
	})
}

func TestHub_ClosePrunesRegistry(t *testing.T) {
	hub := startHub(t)
	srv := wsServer(t, hub)
	conn := dialWS(t, srv, "/ws")

	authenticateConn(t, conn, memberToken(t, "caitlyn"))
	if got := hub.UserSessionCount("caitlyn"); got != 1 {
		t.Fatalf("UserSessionCount = %d, want 1", got)
	}

	conn.Close() //nolint:errcheck // deliberate disconnect

	if !waitFor(t, 2*time.Second, func() bool {
		return hub.UserSessionCount("caitlyn") == 0 && hub.SessionCount() == 0
	}) {
		t.Errorf("registry not pruned: sessions=%d user=%d",
			hub.SessionCount(), hub.UserSessionCount("caitlyn"))
	}

	// Delivery after the close is a clean no-op.
	hub.DeliverProfileUpdate(messaging.ProfileUpdate{
		ProfileID: "prof-1",
		Username:  "caitlyn",
		Timestamp: time.Now().UTC(),
	})
}

func TestHub_ReauthenticateReplacesBinding(t *testing.T) {
	hub := startHub(t)
	srv := wsServer(t, hub)
	conn := dialWS(t, srv, "/ws")

	authenticateConn(t, conn, memberToken(t, "alice"))
	authenticateConn(t, conn, memberToken(t, "bob"))

	if got := hub.UserSessionCount("alice"); got != 0 {
		t.Errorf("alice sessions after re-auth = %d, want 0", got)
	}
	if got := hub.UserSessionCount("bob"); got != 1 {
		t.Errorf("bob sessions after re-auth = %d, want 1", got)
	}

	hub.DeliverProfileUpdate(messaging.ProfileUpdate{
		ProfileID: "prof-2",
		Username:  "bob",
		Timestamp: time.Now().UTC(),
	})

	msg := readEnvelope(t, conn)
	if msg.Type != WSTypeProfileUpdated {
		t.Errorf("type = %q, want %q", msg.Type, WSTypeProfileUpdated)
	}
}

func TestClient_SendAfterCloseIsDropped(t *testing.T) {
	hub := startHub(t)

	c := &WSClient{id: "session-1", hub: hub, send: make(chan []byte, 1)}
	close(c.send)

	// The closed-channel race during fan-out must be absorbed, not escape.
	c.trySend([]byte(`{"type":"profile_updated"}`))
}

func TestHub_StoppedHubRefusesUpgrade(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{PathPrefix: "/ws"}, testSecret, testLogger())
	srv := wsServer(t, hub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil) //nolint:bodyclose // handshake fails, no response body
	if err == nil {
		conn.Close() //nolint:errcheck // test cleanup
		t.Fatal("upgrade on stopped hub succeeded, want refusal")
	}
}
