package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"roomcore/auth"
	"roomcore/roomerr"
)

// UploadMedia accepts a raw payload, sniffs its type server-side and stores
// it. Sharing must be enabled on the room and the uploader must be a member.
func (h *Handler) UploadMedia(c *gin.Context) {
	roomID := c.Param("id")
	identity := auth.FromContext(c)

	room, err := h.Members.GetRoom(roomID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, ok := room.Member(identity.UserID); !ok {
		h.fail(c, roomerr.ErrNotMember)
		return
	}
	if !room.Settings.AllowFileSharing {
		h.fail(c, roomerr.E(roomerr.KindForbidden, "file sharing is disabled for room %s", roomID))
		return
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.fail(c, roomerr.E(roomerr.KindValidation, "unreadable payload"))
		return
	}
	media, err := h.Media.Store(roomID, identity.UserID, data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, media)
}

func (h *Handler) GetMedia(c *gin.Context) {
	media, data, err := h.Media.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, media.ContentType, data)
}
