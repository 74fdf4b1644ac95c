package realtime

import (
	"context"
	"log/slog"
	"time"

	"roomcore/contract"
	"roomcore/domain/event"
)

// Fanout broadcasts a committed event to every session subscribed to the room.
//
// It provides best-effort delivery with no guarantees regarding ordering
// across rooms, durability, or retries. A sink error or timeout is logged and
// swallowed: the state change already committed, the client recovers by
// re-fetching.
type Fanout struct {
	log         *slog.Logger
	registry    contract.SessionRegistry
	sinkTimeout time.Duration
	delivered   func(n int) // optional stats hook
	dropped     func(n int)
}

func NewFanout(log *slog.Logger, registry contract.SessionRegistry, sinkTimeout time.Duration) *Fanout {
	return &Fanout{log: log, registry: registry, sinkTimeout: sinkTimeout}
}

// WithCounters installs delivery counters, used by observability.
func (f *Fanout) WithCounters(delivered, dropped func(n int)) *Fanout {
	f.delivered = delivered
	f.dropped = dropped
	return f
}

// Publish delivers e to the sessions subscribed at the time of the call.
// Each sink gets its own bounded context so one stuck connection cannot
// delay the others.
func (f *Fanout) Publish(roomID string, e event.DomainEvent) {
	sessions := f.registry.Sessions(roomID)
	for _, s := range sessions {
		ctx, cancel := context.WithTimeout(context.Background(), f.sinkTimeout)
		err := s.Consume(ctx, e)
		cancel()
		if err != nil {
			f.log.Warn("fanout delivery failed",
				"room", roomID, "event", e.Name(), "session", s.SessionID(), "error", err)
			if f.dropped != nil {
				f.dropped(1)
			}
			continue
		}
		if f.delivered != nil {
			f.delivered(1)
		}
	}
}
