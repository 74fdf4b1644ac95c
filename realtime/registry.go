// Package realtime maintains per-room subscriber sets and delivers committed
// events to live sessions. It is pure pub/sub: no replay, no backfill, no
// durability. Clients fetch history separately after subscribing.
package realtime

import (
	"sync"

	"roomcore/contract"
)

type sessionSet map[string]contract.Session

// Registry tracks which live sessions are subscribed to which rooms.
// Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]sessionSet
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]sessionSet)}
}

// Subscribe adds the session to the room's subscriber set. Subscribing twice
// with the same session ID is a no-op overwrite.
func (r *Registry) Subscribe(roomID string, s contract.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.rooms[roomID]
	if !ok {
		set = make(sessionSet)
		r.rooms[roomID] = set
	}
	set[s.SessionID()] = s
}

// Unsubscribe removes the session from the room. Unknown sessions and rooms
// are ignored. Empty sets are dropped so long-dead rooms don't accumulate.
func (r *Registry) Unsubscribe(roomID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(r.rooms, roomID)
	}
}

// Sessions snapshots the subscriber set at the time of the call. Sessions
// subscribing afterwards do not receive the event being published.
func (r *Registry) Sessions(roomID string) []contract.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	sessions := make([]contract.Session, 0, len(set))
	for _, s := range set {
		sessions = append(sessions, s)
	}
	return sessions
}
