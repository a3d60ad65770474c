package routes_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	config "github.com/anjiri1684/guild_social/configs"
	"github.com/anjiri1684/guild_social/database/memstore"
	"github.com/anjiri1684/guild_social/models"
	"github.com/anjiri1684/guild_social/routes"
	"github.com/anjiri1684/guild_social/services"
	"github.com/anjiri1684/guild_social/websocket"
)

const secret = "routes-test-secret"

type testApp struct {
	t     *testing.T
	app   *fiber.App
	users []models.User
	convs *services.ConversationService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	store := memstore.New()
	users, err := store.SeedDemo("changeme")
	require.NoError(t, err)

	log := zap.NewNop()
	convs := services.NewConversationService(store, log)
	lastSeen := services.NewMemoryLastSeen()
	gw := websocket.NewGateway(websocket.Config{}, &websocket.Services{
		Identity:      services.NewJWTVerifier(secret, store),
		Conversations: convs,
		Friends:       services.NewFriendService(store, log),
		Alliances:     services.NewAllianceService(store),
		LastSeen:      lastSeen,
	}, log)

	deps := routes.Deps{
		Config:        &config.Settings{JWTSecret: secret},
		Store:         store,
		Conversations: convs,
		LastSeen:      lastSeen,
		Gateway:       gw,
		Logger:        log,
	}

	app := fiber.New()
	routes.PublicRoutes(app, deps)
	routes.AuthRoutes(app, deps)
	routes.MessagingRoutes(app, deps)

	return &testApp{t: t, app: app, users: users, convs: convs}
}

func (a *testApp) do(method, path, token, body string) (int, []byte) {
	a.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp.StatusCode, raw
}

func (a *testApp) token(u models.User) string {
	a.t.Helper()
	token, err := services.IssueToken(secret, &u, time.Hour)
	require.NoError(a.t, err)
	return token
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	status, _ = a.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestLogin(t *testing.T) {
	a := newTestApp(t)

	status, _ := a.do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"ari@demo.guild","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = a.do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := a.do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"ARI@demo.guild","password":"changeme"}`)
	require.Equal(t, http.StatusOK, status, string(body))

	var resp struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, a.users[0].ID, resp.User.ID)

	// the issued token opens the protected routes
	status, _ = a.do(http.MethodGet, "/api/v1/conversations", resp.Token, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestConversationRoutes(t *testing.T) {
	a := newTestApp(t)
	ari, bex, cai := a.users[0], a.users[1], a.users[2]

	status, _ := a.do(http.MethodGet, "/api/v1/conversations", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = a.do(http.MethodGet, "/api/v1/conversations", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	ctx := context.Background()
	var convID uuid.UUID
	for _, text := range []string{"one", "two", "three"} {
		d, err := a.convs.SendMessage(ctx, services.SendMessageInput{SenderID: ari.ID, ReceiverID: &bex.ID, Text: text})
		require.NoError(t, err)
		convID = d.Conversation.ID
	}

	status, body := a.do(http.MethodGet, "/api/v1/conversations", a.token(bex), "")
	require.Equal(t, http.StatusOK, status)
	var convs []models.Conversation
	require.NoError(t, json.Unmarshal(body, &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, convID, convs[0].ID)

	path := "/api/v1/conversations/" + convID.String() + "/messages?after_seq=1&limit=1"
	status, body = a.do(http.MethodGet, path, a.token(bex), "")
	require.Equal(t, http.StatusOK, status)
	var page []models.Message
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page, 1)
	assert.Equal(t, "two", page[0].Content)

	status, _ = a.do(http.MethodGet, path, a.token(cai), "")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = a.do(http.MethodGet, "/api/v1/conversations/nope/messages", a.token(bex), "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPresenceRoute(t *testing.T) {
	a := newTestApp(t)
	ari, bex := a.users[0], a.users[1]

	status, body := a.do(http.MethodGet, "/api/v1/presence/"+bex.ID.String(), a.token(ari), "")
	require.Equal(t, http.StatusOK, status)
	var resp struct {
		Online   bool       `json:"online"`
		LastSeen *time.Time `json:"last_seen"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.False(t, resp.Online)
	assert.Nil(t, resp.LastSeen)

	status, _ = a.do(http.MethodGet, "/api/v1/presence/"+bex.ID.String(), "", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWebSocketRouteRequiresUpgrade(t *testing.T) {
	a := newTestApp(t)
	status, _ := a.do(http.MethodGet, "/api/v1/ws", "", "")
	assert.Equal(t, http.StatusUpgradeRequired, status)
}
