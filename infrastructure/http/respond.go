package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomcore/roomerr"
)

// statusForKind maps the error taxonomy onto HTTP statuses. Unknown kinds are
// internal by definition.
func statusForKind(kind roomerr.Kind) int {
	switch kind {
	case roomerr.KindNotFound:
		return http.StatusNotFound
	case roomerr.KindForbidden, roomerr.KindNotMember, roomerr.KindBanned,
		roomerr.KindMuted, roomerr.KindApprovalRequired:
		return http.StatusForbidden
	case roomerr.KindAlreadyMember, roomerr.KindConflict:
		return http.StatusConflict
	case roomerr.KindExpired, roomerr.KindExhausted:
		return http.StatusGone
	case roomerr.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. Internal errors are logged server-side and
// reported without detail so storage internals never leak.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := roomerr.KindOf(err)
	message := err.Error()
	if kind == roomerr.KindInternal {
		h.Log.Error("request failed", "path", c.FullPath(), "error", err)
		message = "internal error"
	}
	c.AbortWithStatusJSON(statusForKind(kind), gin.H{
		"code":    string(kind),
		"message": message,
	})
}
