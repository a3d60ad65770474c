package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/anjiri1684/guild_social/handlers"
)

const loginTokenTTL = 24 * time.Hour

func AuthRoutes(app *fiber.App, d Deps) {
	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/login", handlers.LoginUser(d.Store, d.Config.JWTSecret, loginTokenTTL))
}
