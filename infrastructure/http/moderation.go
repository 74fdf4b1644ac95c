package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"roomcore/auth"
)

type targetRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Reason string `json:"reason" validate:"max=512"`
}

func (h *Handler) bindTarget(c *gin.Context) (targetRequest, bool) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": err.Error()})
		return req, false
	}
	if err := auth.ValidateStruct(req); err != nil {
		h.fail(c, err)
		return req, false
	}
	return req, true
}

func (h *Handler) Kick(c *gin.Context) {
	req, ok := h.bindTarget(c)
	if !ok {
		return
	}
	identity := auth.FromContext(c)
	if err := h.Moderation.Kick(c.Param("id"), identity.UserID, req.UserID, req.Reason); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Ban(c *gin.Context) {
	req, ok := h.bindTarget(c)
	if !ok {
		return
	}
	identity := auth.FromContext(c)
	if err := h.Moderation.Ban(c.Param("id"), identity.UserID, req.UserID, req.Reason); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Unban(c *gin.Context) {
	req, ok := h.bindTarget(c)
	if !ok {
		return
	}
	identity := auth.FromContext(c)
	if err := h.Moderation.Unban(c.Param("id"), identity.UserID, req.UserID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type muteRequest struct {
	UserID          string `json:"user_id" validate:"required"`
	DurationMinutes *int   `json:"duration_minutes" validate:"omitempty,gt=0"`
}

func (h *Handler) Mute(c *gin.Context) {
	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": err.Error()})
		return
	}
	if err := auth.ValidateStruct(req); err != nil {
		h.fail(c, err)
		return
	}
	var duration *time.Duration
	if req.DurationMinutes != nil {
		d := time.Duration(*req.DurationMinutes) * time.Minute
		duration = &d
	}
	identity := auth.FromContext(c)
	until, err := h.Moderation.Mute(c.Param("id"), identity.UserID, req.UserID, duration)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted_until": until})
}

func (h *Handler) Unmute(c *gin.Context) {
	req, ok := h.bindTarget(c)
	if !ok {
		return
	}
	identity := auth.FromContext(c)
	if err := h.Moderation.Unmute(c.Param("id"), identity.UserID, req.UserID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddModerator(c *gin.Context) {
	req, ok := h.bindTarget(c)
	if !ok {
		return
	}
	identity := auth.FromContext(c)
	if err := h.Moderation.AddModerator(c.Param("id"), identity.UserID, req.UserID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RemoveModerator(c *gin.Context) {
	identity := auth.FromContext(c)
	if err := h.Moderation.RemoveModerator(c.Param("id"), identity.UserID, c.Param("userId")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
