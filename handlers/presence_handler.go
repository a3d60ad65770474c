package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anjiri1684/guild_social/services"
	"github.com/anjiri1684/guild_social/websocket"
)

type PresenceResponse struct {
	UserID   uuid.UUID  `json:"user_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

func GetPresence(gw *websocket.Gateway, lastSeen services.LastSeenStore, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := uuid.Parse(c.Params("userId"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
		}

		resp := PresenceResponse{UserID: userID, Online: gw.IsOnline(userID)}
		if !resp.Online {
			seen, ok, err := lastSeen.LastSeen(c.UserContext(), userID)
			if err != nil {
				logger.Warn("read last seen", zap.String("user_id", userID.String()), zap.Error(err))
			} else if ok {
				resp.LastSeen = &seen
			}
		}
		return c.JSON(resp)
	}
}
