package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/anjiri1684/guild_social/handlers"
	"github.com/anjiri1684/guild_social/middleware"
)

func MessagingRoutes(app *fiber.App, d Deps) {
	api := app.Group("/api/v1")
	protected := middleware.Protected(d.Config.JWTSecret)

	conversations := api.Group("/conversations", protected)
	conversations.Get("", handlers.GetUserConversations(d.Conversations))
	conversations.Get("/:conversationId/messages", handlers.GetConversationMessages(d.Conversations))

	api.Get("/presence/:userId", protected, handlers.GetPresence(d.Gateway, d.LastSeen, d.Logger))

	api.Use("/ws", handlers.WebSocketUpgrade)
	api.Get("/ws", websocket.New(handlers.ServeWs(d.Gateway)))
}
