package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anjiri1684/guild_social/handlers"
)

func PublicRoutes(app *fiber.App, d Deps) {
	app.Get("/health", handlers.Health(d.Store))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
