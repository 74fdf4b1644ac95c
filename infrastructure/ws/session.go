// Package ws adapts a live WebSocket connection into an event sink the
// fan-out can deliver to. Connections are push-only: the server never reads
// application frames, clients act through the HTTP surface.
package ws

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"roomcore/auth"
	"roomcore/domain/event"
)

// Envelope is the wire shape of one pushed event.
type Envelope struct {
	Event   string            `json:"event"`
	Room    string            `json:"room"`
	Payload event.DomainEvent `json:"payload"`
}

type Session struct {
	id       string
	identity auth.Identity
	conn     *websocket.Conn
	log      *slog.Logger
}

func NewSession(identity auth.Identity, conn *websocket.Conn, log *slog.Logger) *Session {
	return &Session{
		id:       uuid.NewString(),
		identity: identity,
		conn:     conn,
		log:      log,
	}
}

func (s *Session) SessionID() string { return s.id }

func (s *Session) Identity() auth.Identity { return s.identity }

// Consume pushes one event to the client. The fan-out bounds ctx; a write
// that cannot finish in time fails here and is dropped there.
func (s *Session) Consume(ctx context.Context, e event.DomainEvent) error {
	err := wsjson.Write(ctx, s.conn, Envelope{
		Event:   e.Name(),
		Room:    e.RoomID(),
		Payload: e,
	})
	if err != nil {
		s.log.Debug("websocket push failed", "session", s.id, "user", s.identity.UserID, "event", e.Name(), "error", err)
	}
	return err
}
