package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/membership-gin/internal/auth"
	"github.com/mautops/membership-gin/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) (*Hub, *auth.TokenManager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := testutil.NewLogger()

	hub := NewHub(logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	tokens := auth.NewTokenManager("secret", time.Hour)
	router := gin.New()
	router.GET("/ws/notifications", WebSocketHandler(hub, tokens, NewUpgrader(nil)))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return hub, tokens, server
}

func wsURL(server *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/notifications?token=" + token
}

func TestWebSocket_AdminReceivesPush(t *testing.T) {
	hub, tokens, server := setupServer(t)

	token, _, err := tokens.Issue(auth.Identity{ActorID: "admin-1", ActorType: auth.ActorAdmin, Role: "reviewer"})
	require.NoError(t, err)

	conn, _, err := gorillaWS.DefaultDialer.Dial(wsURL(server, token), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.PublishToAdmins(map[string]string{"type": "registration_submitted"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"registration_submitted"}`, string(message))
}

func TestWebSocket_RejectsMissingAndInvalidToken(t *testing.T) {
	_, _, server := setupServer(t)

	_, resp, err := gorillaWS.DefaultDialer.Dial(wsURL(server, ""), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other := auth.NewTokenManager("other-secret", time.Hour)
	token, _, err := other.Issue(auth.Identity{ActorID: "m1", ActorType: auth.ActorMember, Role: auth.ActorMember})
	require.NoError(t, err)
	_, resp, err = gorillaWS.DefaultDialer.Dial(wsURL(server, token), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_MemberReceivesOwnPushOnly(t *testing.T) {
	hub, tokens, server := setupServer(t)

	token, _, err := tokens.Issue(auth.Identity{ActorID: "m1", ActorType: auth.ActorMember, Role: auth.ActorMember})
	require.NoError(t, err)

	conn, _, err := gorillaWS.DefaultDialer.Dial(wsURL(server, token), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	// 管理员广播和其他会员的消息不会送达
	require.NoError(t, hub.PublishToAdmins(map[string]string{"type": "registration_submitted"}))
	require.NoError(t, hub.PublishToUser("m2", map[string]string{"type": "application_rejected"}))
	require.NoError(t, hub.PublishToUser("m1", map[string]string{"type": "application_approved"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"application_approved"}`, string(message))
}

func TestHub_PublishToUserSkipsOthers(t *testing.T) {
	logger, _ := testutil.NewLogger()
	hub := NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	a := &Client{ID: "c1", UserID: "u1", ActorType: auth.ActorAdmin, Hub: hub, Send: make(chan []byte, 1)}
	b := &Client{ID: "c2", UserID: "u2", ActorType: auth.ActorMember, Hub: hub, Send: make(chan []byte, 1)}
	hub.Register <- a
	hub.Register <- b
	require.Eventually(t, func() bool { return hub.GetClientCount() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.PublishToUser("u2", "hello"))
	assert.Len(t, a.Send, 0)
	assert.Equal(t, `"hello"`, string(<-b.Send))

	require.NoError(t, hub.PublishToAdmins("admins"))
	assert.Equal(t, `"admins"`, string(<-a.Send))
	assert.Len(t, b.Send, 0)
}
