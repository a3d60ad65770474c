package routes

import (
	"go.uber.org/zap"

	config "github.com/anjiri1684/guild_social/configs"
	"github.com/anjiri1684/guild_social/services"
	"github.com/anjiri1684/guild_social/websocket"
)

// Deps is everything the route groups hand to their handlers.
type Deps struct {
	Config        *config.Settings
	Store         services.Store
	Conversations *services.ConversationService
	LastSeen      services.LastSeenStore
	Gateway       *websocket.Gateway
	Logger        *zap.Logger
}
