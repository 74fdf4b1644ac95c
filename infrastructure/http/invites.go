package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomcore/auth"
	"roomcore/domain"
	"roomcore/services"
)

type createInviteRequest struct {
	MaxUses        *int   `json:"max_uses" validate:"omitempty,gt=0"`
	ExpiresInHours *int   `json:"expires_in_hours" validate:"omitempty,gt=0"`
	GrantedRole    string `json:"granted_role" validate:"omitempty,oneof=moderator member"`
}

func (h *Handler) CreateInvite(c *gin.Context) {
	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": err.Error()})
		return
	}
	if err := auth.ValidateStruct(req); err != nil {
		h.fail(c, err)
		return
	}
	role := domain.RoleMember
	if req.GrantedRole != "" {
		role = domain.Role(req.GrantedRole)
	}
	identity := auth.FromContext(c)
	link, url, err := h.Invites.Create(c.Param("id"), identity.UserID, services.CreateInviteParams{
		MaxUses:        req.MaxUses,
		ExpiresInHours: req.ExpiresInHours,
		GrantedRole:    role,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invite": link, "url": url})
}

func (h *Handler) RedeemInvite(c *gin.Context) {
	identity := auth.FromContext(c)
	membership, err := h.Invites.Redeem(c.Param("code"), identity.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, membership)
}

func (h *Handler) DeactivateInvite(c *gin.Context) {
	identity := auth.FromContext(c)
	if err := h.Invites.Deactivate(c.Param("code"), identity.UserID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
