// Package projection builds local timelines from observed events.
// Handles ordering, deduplication, and projections.
// Does not emit events or interact with UI directly.
package projection

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"roomcore/domain/event"
)

// Entry is one projected message.
type Entry struct {
	ID       uuid.UUID
	SenderID string
	Content  string
	Seq      int64
	Deleted  bool
}

// Timeline is an in-process read model of one room's message stream. It
// implements the event sink contract so it can subscribe to the fan-out like
// any remote session would.
type Timeline struct {
	mu      sync.Mutex
	id      string
	entries map[uuid.UUID]*Entry
}

func NewTimeline() *Timeline {
	return &Timeline{
		id:      uuid.NewString(),
		entries: make(map[uuid.UUID]*Entry),
	}
}

func (t *Timeline) SessionID() string { return t.id }

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch evt := e.(type) {
	case event.NewMessage:
		// at-most-once delivery still guards against local double-apply
		if _, ok := t.entries[evt.ID]; ok {
			return nil
		}
		t.entries[evt.ID] = &Entry{
			ID:       evt.ID,
			SenderID: evt.SenderID,
			Content:  evt.Content,
			Seq:      evt.Seq,
		}
	case event.MessageEdited:
		if entry, ok := t.entries[evt.MessageID]; ok {
			entry.Content = evt.Content
		}
	case event.MessageDeleted:
		if entry, ok := t.entries[evt.MessageID]; ok {
			entry.Deleted = true
		}
	}
	return nil
}

// Messages returns the live entries in room sequence order.
func (t *Timeline) Messages() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.entries))
	for _, entry := range t.entries {
		if !entry.Deleted {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
