// Package event defines the fan-out events emitted after a room mutation has
// durably committed. Payloads carry the room ID plus the minimal fields a
// client needs to update its local state.
package event

import (
	"time"

	"github.com/google/uuid"
)

type DomainEvent interface {
	RoomID() string
	Name() string
}

type MemberJoined struct {
	Room   string
	UserID string
	Role   string
	At     time.Time
}

func (e MemberJoined) RoomID() string { return e.Room }
func (e MemberJoined) Name() string   { return "member_joined" }

type MemberLeft struct {
	Room   string
	UserID string
	At     time.Time
}

func (e MemberLeft) RoomID() string { return e.Room }
func (e MemberLeft) Name() string   { return "member_left" }

type MemberKicked struct {
	Room    string
	UserID  string
	ActorID string
	Reason  string
	At      time.Time
}

func (e MemberKicked) RoomID() string { return e.Room }
func (e MemberKicked) Name() string   { return "member_kicked" }

// KickNotice is the direct notification intent for the kicked user; delivery
// beyond live sessions is an external collaborator's concern.
type KickNotice struct {
	Room   string
	UserID string
	Reason string
}

func (e KickNotice) RoomID() string { return e.Room }
func (e KickNotice) Name() string   { return "kick_notice" }

type MemberBanned struct {
	Room    string
	UserID  string
	ActorID string
	Reason  string
	At      time.Time
}

func (e MemberBanned) RoomID() string { return e.Room }
func (e MemberBanned) Name() string   { return "member_banned" }

type MemberMuted struct {
	Room      string
	UserID    string
	ActorID   string
	MuteUntil *time.Time // nil means indefinite
}

func (e MemberMuted) RoomID() string { return e.Room }
func (e MemberMuted) Name() string   { return "member_muted" }

type MemberUnmuted struct {
	Room    string
	UserID  string
	ActorID string
}

func (e MemberUnmuted) RoomID() string { return e.Room }
func (e MemberUnmuted) Name() string   { return "member_unmuted" }

type ModeratorAdded struct {
	Room   string
	UserID string
}

func (e ModeratorAdded) RoomID() string { return e.Room }
func (e ModeratorAdded) Name() string   { return "moderator_added" }

type ModeratorRemoved struct {
	Room   string
	UserID string
}

func (e ModeratorRemoved) RoomID() string { return e.Room }
func (e ModeratorRemoved) Name() string   { return "moderator_removed" }

type NewMessage struct {
	Room     string
	ID       uuid.UUID
	SenderID string
	Content  string
	Type     string
	ReplyTo  *uuid.UUID
	Seq      int64
	At       time.Time
}

func (e NewMessage) RoomID() string { return e.Room }
func (e NewMessage) Name() string   { return "new_message" }

type MessageReaction struct {
	Room      string
	MessageID uuid.UUID
	UserID    string
	Emoji     *string // nil means the reaction was removed
}

func (e MessageReaction) RoomID() string { return e.Room }
func (e MessageReaction) Name() string   { return "message_reaction" }

type MessageEdited struct {
	Room      string
	MessageID uuid.UUID
	Content   string
	At        time.Time
}

func (e MessageEdited) RoomID() string { return e.Room }
func (e MessageEdited) Name() string   { return "message_edited" }

type MessageDeleted struct {
	Room      string
	MessageID uuid.UUID
	ActorID   string
}

func (e MessageDeleted) RoomID() string { return e.Room }
func (e MessageDeleted) Name() string   { return "message_deleted" }

type ChatroomUpdated struct {
	Room     string
	RoomName string
	At       time.Time
}

func (e ChatroomUpdated) RoomID() string { return e.Room }
func (e ChatroomUpdated) Name() string   { return "chatroom_updated" }

type ChatroomDeleted struct {
	Room string
	At   time.Time
}

func (e ChatroomDeleted) RoomID() string { return e.Room }
func (e ChatroomDeleted) Name() string   { return "chatroom_deleted" }
