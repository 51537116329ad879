package session

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/pkg/config"
)

func startWSServer(t *testing.T, cfg *config.Config) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(cfg, zap.NewNop())
	t.Cleanup(hub.Stop)

	handler := NewHandler(hub, cfg, zap.NewNop())
	router := gin.New()
	router.GET("/ws", handler.ServeWS)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) ServerMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ServerMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestWebsocketSubscribeAndReceive(t *testing.T) {
	hub, url := startWSServer(t, testConfig(false))
	hub.RegisterJob("req-1", OwnerRecord{SessionID: "anonymous"})

	ws := dial(t, url)
	require.NoError(t, ws.WriteJSON(ClientMessage{Type: TypeSubscribe, Channel: "search", RequestID: "req-1"}))

	ack := readFrame(t, ws)
	assert.Equal(t, TypeSubAck, ack.Type)
	assert.Equal(t, ProtocolVersion, ack.V)

	hub.Publish(ChannelSearch, "req-1", NewStatus("req-1", StatusCompleted))

	status := readFrame(t, ws)
	assert.Equal(t, TypeStatus, status.Type)
	assert.Equal(t, StatusCompleted, status.Status)
}

func TestWebsocketPingPong(t *testing.T) {
	_, url := startWSServer(t, testConfig(false))

	ws := dial(t, url)
	require.NoError(t, ws.WriteJSON(ClientMessage{Type: TypePing}))

	pong := readFrame(t, ws)
	assert.Equal(t, TypePong, pong.Type)
}

func TestWebsocketMalformedFrameClosesWithPolicy(t *testing.T) {
	_, url := startWSServer(t, testConfig(false))

	ws := dial(t, url)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, ClosePolicy, closeErr.Code)
	assert.Equal(t, PolicyInvalidRequest, closeErr.Text)
}

func TestWebsocketRequiresAuth(t *testing.T) {
	cfg := testConfig(true)
	cfg.JWTSecret = "test-secret-test-secret-test-secret"
	_, url := startWSServer(t, cfg)

	ws := dial(t, url)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, ClosePolicy, closeErr.Code)
	assert.Equal(t, PolicyNotAuthorized, closeErr.Text)
}

func TestWebsocketHeartbeatTerminatesDeadPeer(t *testing.T) {
	cfg := testConfig(false)
	cfg.Session.HeartbeatInterval = 20 * time.Millisecond
	cfg.Session.WriteTimeout = 100 * time.Millisecond
	_, url := startWSServer(t, cfg)

	ws := dial(t, url)
	// Swallow pings instead of answering them, like a hung peer.
	ws.SetPingHandler(func(string) error { return nil })

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, CloseGoingAway, closeErr.Code)
}
