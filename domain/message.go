package domain

import (
	"time"

	"github.com/google/uuid"

	"roomcore/roomerr"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageMedia MessageType = "media"
)

// Message is immutable except for reactions and a single edit. A dangling
// ReplyTo after the parent is deleted is tolerated, never an error.
type Message struct {
	ID        uuid.UUID            `json:"id"`
	RoomID    string               `json:"room_id"`
	SenderID  string               `json:"sender_id"`
	Content   string               `json:"content"`
	Type      MessageType          `json:"type"`
	MediaID   *string              `json:"media_id,omitempty"`
	ReplyTo   *uuid.UUID           `json:"reply_to,omitempty"`
	Reactions map[string]string    `json:"reactions,omitempty"` // user -> emoji, one per user
	Lang      string               `json:"lang,omitempty"`      // ISO 639-1 tag, best effort
	Seq       int64                `json:"seq"`
	CreatedAt time.Time            `json:"created_at"`
	Edited    bool                 `json:"edited"`
	EditedAt  *time.Time           `json:"edited_at,omitempty"`
}

// React upserts the user's single reaction; a nil emoji removes it.
func (m *Message) React(userID string, emoji *string) {
	if emoji == nil {
		delete(m.Reactions, userID)
		return
	}
	if m.Reactions == nil {
		m.Reactions = make(map[string]string)
	}
	m.Reactions[userID] = *emoji
}

// Edit replaces the content. Only the original sender may edit.
func (m *Message) Edit(actorID, content string, now time.Time) error {
	if m.SenderID != actorID {
		return roomerr.ErrForbidden
	}
	m.Content = content
	m.Edited = true
	m.EditedAt = &now
	return nil
}
