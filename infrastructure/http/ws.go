package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"

	"roomcore/auth"
	"roomcore/infrastructure/ws"
)

// Attach upgrades to a push-only WebSocket and subscribes the session to the
// rooms named in the rooms query parameter, skipping any the caller is not a
// member of. The connection lives until the client closes or drops it.
func (h *Handler) Attach(c *gin.Context) {
	identity := auth.FromContext(c)

	var roomIDs []string
	for _, id := range strings.Split(c.Query("rooms"), ",") {
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		room, err := h.Members.GetRoom(id)
		if err != nil {
			continue
		}
		if _, ok := room.Member(identity.UserID); ok {
			roomIDs = append(roomIDs, id)
		}
	}
	if len(roomIDs) == 0 {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "not_member", "message": "no subscribable rooms"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.Log.Warn("websocket accept failed", "user", identity.UserID, "error", err)
		return
	}

	session := ws.NewSession(identity, conn, h.Log)
	for _, id := range roomIDs {
		h.Registry.Subscribe(id, session)
	}
	if h.Monitor != nil {
		h.Monitor.SessionOpened()
	}
	h.Log.Info("session attached", "session", session.SessionID(), "user", identity.UserID, "rooms", len(roomIDs))

	// Push-only: CloseRead rejects incoming frames and cancels when the peer
	// goes away.
	ctx := conn.CloseRead(c.Request.Context())
	<-ctx.Done()

	for _, id := range roomIDs {
		h.Registry.Unsubscribe(id, session.SessionID())
	}
	if h.Monitor != nil {
		h.Monitor.SessionClosed()
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.Log.Info("session detached", "session", session.SessionID(), "user", identity.UserID)
}
