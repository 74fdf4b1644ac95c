//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"

	"roomcore/domain/event"
)

// EventSink consumes one fan-out event. Implementations must be safe for
// concurrent use; a slow or failing sink never blocks the originating mutation.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Session is a live client connection subscribed to one or more rooms.
type Session interface {
	EventSink
	SessionID() string
}

// Publisher delivers an event to every session currently subscribed to the
// room. Delivery is best-effort and at-most-once per connected session.
type Publisher interface {
	Publish(roomID string, e event.DomainEvent)
}

// SessionRegistry tracks per-room subscriber sets. Subscribe and Unsubscribe
// are idempotent.
type SessionRegistry interface {
	Subscribe(roomID string, s Session)
	Unsubscribe(roomID, sessionID string)
	Sessions(roomID string) []Session
}
