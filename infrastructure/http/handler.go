// Package http exposes the chat core over a gin REST surface plus one
// WebSocket endpoint for event push. Handlers translate between transport
// DTOs and service calls; no domain rule lives here.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"roomcore/auth"
	"roomcore/contract"
	"roomcore/observability"
	"roomcore/repositories"
	"roomcore/services"
)

type Handler struct {
	Members    services.IMembershipManager
	Moderation services.IModerationEngine
	Invites    services.IInviteLinkService
	Bus        services.IMessageBus
	Media      *repositories.MediaRepository
	Registry   contract.SessionRegistry
	Monitor    *observability.Monitor
	Log        *slog.Logger
}

// NewRouter wires all routes. Everything except health and stats requires a
// verified identity.
func NewRouter(h *Handler, jwtSecret []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/stats", h.GetStats)

	api := r.Group("/api", auth.Middleware(jwtSecret))
	{
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms/:id", h.GetRoom)
		api.PUT("/rooms/:id/settings", h.UpdateSettings)
		api.DELETE("/rooms/:id", h.DeleteRoom)

		api.POST("/rooms/:id/join", h.Join)
		api.POST("/rooms/:id/leave", h.Leave)
		api.GET("/rooms/:id/members", h.ListMembers)
		api.PUT("/rooms/:id/members/:userId/role", h.SetRole)

		api.POST("/rooms/:id/messages", h.SendMessage)
		api.GET("/rooms/:id/messages", h.ListMessages)
		api.GET("/rooms/:id/search", h.SearchMessages)
		api.PUT("/messages/:id/reaction", h.React)
		api.PUT("/messages/:id", h.EditMessage)
		api.DELETE("/messages/:id", h.DeleteMessage)

		api.POST("/rooms/:id/invites", h.CreateInvite)
		api.POST("/invites/:code/redeem", h.RedeemInvite)
		api.DELETE("/invites/:code", h.DeactivateInvite)

		api.POST("/rooms/:id/kick", h.Kick)
		api.POST("/rooms/:id/ban", h.Ban)
		api.POST("/rooms/:id/unban", h.Unban)
		api.POST("/rooms/:id/mute", h.Mute)
		api.POST("/rooms/:id/unmute", h.Unmute)
		api.POST("/rooms/:id/moderators", h.AddModerator)
		api.DELETE("/rooms/:id/moderators/:userId", h.RemoveModerator)

		api.POST("/rooms/:id/media", h.UploadMedia)
		api.GET("/media/:id", h.GetMedia)

		api.GET("/ws", h.Attach)
	}
	return r
}

func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(200, h.Monitor.Snapshot())
}
