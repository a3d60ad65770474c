package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/anjiri1684/guild_social/services"
)

var validate = validator.New()

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginUser exchanges demo credentials for a bearer token usable on the
// websocket handshake and the REST routes.
func LoginUser(store services.UserStore, secret string, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		token, user, err := services.Login(c.UserContext(), store, secret, req.Email, req.Password, ttl)
		if err != nil {
			return writeError(c, err)
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user":  user,
		})
	}
}
