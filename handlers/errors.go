package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/anjiri1684/guild_social/services"
)

var statusByKind = map[services.ErrorKind]int{
	services.KindAuth:          fiber.StatusUnauthorized,
	services.KindValidation:    fiber.StatusBadRequest,
	services.KindAuthorization: fiber.StatusForbidden,
	services.KindConflict:      fiber.StatusConflict,
	services.KindNotFound:      fiber.StatusNotFound,
	services.KindStorage:       fiber.StatusInternalServerError,
}

func writeError(c *fiber.Ctx, err error) error {
	kind := services.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{
		"error": services.PublicMessage(err),
		"code":  kind,
	})
}
