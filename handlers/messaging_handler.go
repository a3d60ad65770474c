package handlers

import (
	"strings"

	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/anjiri1684/guild_social/middleware"
	"github.com/anjiri1684/guild_social/services"
	"github.com/anjiri1684/guild_social/websocket"
)

const tokenLocal = "ws_token"

func GetUserConversations(convs *services.ConversationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.UserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}

		conversations, err := convs.ListForUser(c.UserContext(), userID)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(conversations)
	}
}

// GetConversationMessages pages through history by sequence number:
// ?after_seq=<last seen seq>&limit=<n>.
func GetConversationMessages(convs *services.ConversationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.UserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}
		conversationID, err := uuid.Parse(c.Params("conversationId"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
		}

		afterSeq := c.QueryInt("after_seq", 0)
		limit := c.QueryInt("limit", 0)

		messages, err := convs.History(c.UserContext(), conversationID, userID, int64(afterSeq), limit)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(messages)
	}
}

// WebSocketUpgrade rejects plain HTTP requests on the websocket route and
// stashes a bearer token from the Authorization header for ServeWs.
func WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocketcontrib.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		c.Locals(tokenLocal, strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
	}
	return c.Next()
}

// ServeWs hands an upgraded connection to the gateway. The token is taken
// from ?token= or the Authorization header; without either the client must
// send an auth frame first.
func ServeWs(gw *websocket.Gateway) func(*websocketcontrib.Conn) {
	return func(c *websocketcontrib.Conn) {
		token := c.Query("token")
		if token == "" {
			token, _ = c.Locals(tokenLocal).(string)
		}
		gw.Serve(c, token)
	}
}
