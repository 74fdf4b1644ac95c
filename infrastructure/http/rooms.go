package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"roomcore/auth"
	"roomcore/domain"
	"roomcore/services"
)

type settingsRequest struct {
	MaxMembers       int  `json:"max_members" validate:"gte=0"`
	AllowInvites     bool `json:"allow_invites"`
	AllowFileSharing bool `json:"allow_file_sharing"`
	RequireApproval  bool `json:"require_approval"`
}

func (r settingsRequest) toDomain() domain.Settings {
	return domain.Settings{
		MaxMembers:       r.MaxMembers,
		AllowInvites:     r.AllowInvites,
		AllowFileSharing: r.AllowFileSharing,
		RequireApproval:  r.RequireApproval,
	}
}

type createRoomRequest struct {
	Name        string          `json:"name" validate:"required,max=128"`
	Description string          `json:"description" validate:"max=1024"`
	Visibility  string          `json:"visibility" validate:"required,oneof=public private direct"`
	Settings    settingsRequest `json:"settings"`
}

type roomResponse struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Visibility   string              `json:"visibility"`
	CreatorID    string              `json:"creator_id"`
	Settings     domain.Settings     `json:"settings"`
	LastMessage  *domain.LastMessage `json:"last_message,omitempty"`
	MemberCount  int                 `json:"member_count"`
	MessageCount int64               `json:"message_count"`
	CreatedAt    time.Time           `json:"created_at"`
}

func toRoomResponse(room *domain.Chatroom) roomResponse {
	return roomResponse{
		ID:           room.ID,
		Name:         room.Name,
		Description:  room.Description,
		Visibility:   string(room.Visibility),
		CreatorID:    room.CreatorID,
		Settings:     room.Settings,
		LastMessage:  room.LastMessage,
		MemberCount:  len(room.Members),
		MessageCount: room.MessageCount,
		CreatedAt:    room.CreatedAt,
	}
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": err.Error()})
		return
	}
	if err := auth.ValidateStruct(req); err != nil {
		h.fail(c, err)
		return
	}
	identity := auth.FromContext(c)
	room, err := h.Members.CreateRoom(identity.UserID, services.CreateRoomParams{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  domain.Visibility(req.Visibility),
		Settings:    req.Settings.toDomain(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.Monitor != nil {
		h.Monitor.RoomCreated()
	}
	c.JSON(http.StatusCreated, toRoomResponse(room))
}

func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.Members.GetRoom(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toRoomResponse(room))
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": err.Error()})
		return
	}
	if err := auth.ValidateStruct(req); err != nil {
		h.fail(c, err)
		return
	}
	identity := auth.FromContext(c)
	if err := h.Members.UpdateSettings(c.Param("id"), identity.UserID, req.toDomain()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	identity := auth.FromContext(c)
	if err := h.Members.DeleteRoom(c.Param("id"), identity.UserID); err != nil {
		h.fail(c, err)
		return
	}
	if h.Monitor != nil {
		h.Monitor.RoomDeleted()
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Join(c *gin.Context) {
	identity := auth.FromContext(c)
	membership, err := h.Members.Join(c.Param("id"), identity.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, membership)
}

func (h *Handler) Leave(c *gin.Context) {
	identity := auth.FromContext(c)
	if err := h.Members.Leave(c.Param("id"), identity.UserID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type memberResponse struct {
	UserID   string     `json:"user_id"`
	Role     string     `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
	Muted    bool       `json:"muted"`
	MutedTil *time.Time `json:"muted_until,omitempty"`
}

func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.Members.ListMembers(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	now := time.Now().UTC()
	c.JSON(http.StatusOK, gin.H{"members": lo.Map(members, func(m domain.Membership, _ int) memberResponse {
		return memberResponse{
			UserID:   m.UserID,
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt,
			Muted:    m.IsMuted(now),
			MutedTil: m.MuteUntil,
		}
	})})
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin moderator member"`
}

func (h *Handler) SetRole(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": err.Error()})
		return
	}
	if err := auth.ValidateStruct(req); err != nil {
		h.fail(c, err)
		return
	}
	identity := auth.FromContext(c)
	if err := h.Members.SetRole(c.Param("id"), identity.UserID, c.Param("userId"), domain.Role(req.Role)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
