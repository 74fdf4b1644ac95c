package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"roomcore/auth"
	"roomcore/domain"
	"roomcore/services"
)

const defaultPageSize = 50

type sendMessageRequest struct {
	Content string  `json:"content" validate:"required"`
	Type    string  `json:"type" validate:"omitempty,oneof=text media"`
	MediaID *string `json:"media_id"`
	ReplyTo *string `json:"reply_to" validate:"omitempty,uuid"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": err.Error()})
		return
	}
	if err := auth.ValidateStruct(req); err != nil {
		h.fail(c, err)
		return
	}
	var replyTo *uuid.UUID
	if req.ReplyTo != nil {
		id, err := uuid.Parse(*req.ReplyTo)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": "invalid reply_to"})
			return
		}
		replyTo = &id
	}
	identity := auth.FromContext(c)
	msg, err := h.Bus.Send(c.Param("id"), identity.UserID, services.SendParams{
		Content: req.Content,
		Type:    domain.MessageType(req.Type),
		MediaID: req.MediaID,
		ReplyTo: replyTo,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.Monitor != nil {
		h.Monitor.MessageSent()
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) ListMessages(c *gin.Context) {
	identity := auth.FromContext(c)
	var cursor *string
	if v := c.Query("cursor"); v != "" {
		cursor = &v
	}
	limit := defaultPageSize
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": "invalid limit"})
			return
		}
		limit = n
	}
	messages, next, err := h.Bus.ListMessages(c.Param("id"), identity.UserID, cursor, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "next_cursor": next})
}

func (h *Handler) SearchMessages(c *gin.Context) {
	identity := auth.FromContext(c)
	limit := defaultPageSize
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	hits, total, err := h.Bus.SearchMessages(c.Request.Context(), c.Param("id"), identity.UserID, c.Query("q"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits, "total": total})
}

type reactRequest struct {
	Emoji *string `json:"emoji" validate:"omitempty,max=16"`
}

func (h *Handler) React(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": "invalid message id"})
		return
	}
	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": err.Error()})
		return
	}
	identity := auth.FromContext(c)
	if err := h.Bus.React(messageID, identity.UserID, req.Emoji); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type editMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

func (h *Handler) EditMessage(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": "invalid message id"})
		return
	}
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": err.Error()})
		return
	}
	if err := auth.ValidateStruct(req); err != nil {
		h.fail(c, err)
		return
	}
	identity := auth.FromContext(c)
	msg, err := h.Bus.Edit(messageID, identity.UserID, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": "invalid message id"})
		return
	}
	identity := auth.FromContext(c)
	if err := h.Bus.DeleteMessage(messageID, identity.UserID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
