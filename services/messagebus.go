package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"roomcore/contract"
	"roomcore/domain"
	"roomcore/domain/event"
	"roomcore/moderation"
	"roomcore/repositories"
	"roomcore/roomerr"
)

type SendParams struct {
	Content string
	Type    domain.MessageType
	MediaID *string
	ReplyTo *uuid.UUID
}

type IMessageBus interface {
	Send(roomID, senderID string, params SendParams) (domain.Message, error)
	React(messageID uuid.UUID, userID string, emoji *string) error
	Edit(messageID uuid.UUID, actorID, content string) (domain.Message, error)
	DeleteMessage(messageID uuid.UUID, actorID string) error
	ListMessages(roomID, userID string, cursor *string, limit int) ([]domain.Message, *string, error)
	SearchMessages(ctx context.Context, roomID, userID, terms string, limit int) ([]repositories.SearchHit, uint64, error)
}

// MessageBus validates, censors, persists and fans out messages. The
// permission checks, sequence assignment, room summary and message append
// commit in one storage transaction; search indexing and fan-out follow,
// so a failure past the commit costs at most a missed live notification,
// never an inconsistent room.
type MessageBus struct {
	rooms      repositories.IRoomRepository
	messages   repositories.IMessageRepository
	search     *repositories.SearchRepository
	media      *repositories.MediaRepository
	censor     *moderation.Censor
	publisher  contract.Publisher
	log        *slog.Logger
	maxContent int
	now        func() time.Time
}

func NewMessageBus(rooms repositories.IRoomRepository, messages repositories.IMessageRepository,
	search *repositories.SearchRepository, media *repositories.MediaRepository,
	censor *moderation.Censor, publisher contract.Publisher, log *slog.Logger, maxContent int) *MessageBus {
	return &MessageBus{
		rooms:      rooms,
		messages:   messages,
		search:     search,
		media:      media,
		censor:     censor,
		publisher:  publisher,
		log:        log,
		maxContent: maxContent,
		now:        time.Now,
	}
}

func (s *MessageBus) WithClock(now func() time.Time) *MessageBus {
	s.now = now
	return s
}

// Send persists a message and returns it with its server-assigned ID,
// sequence and timestamp.
func (s *MessageBus) Send(roomID, senderID string, params SendParams) (domain.Message, error) {
	if params.Content == "" {
		return domain.Message{}, roomerr.E(roomerr.KindValidation, "message content is empty")
	}
	if s.maxContent > 0 && len(params.Content) > s.maxContent {
		return domain.Message{}, roomerr.E(roomerr.KindValidation, "message exceeds %d bytes", s.maxContent)
	}
	if params.Type == "" {
		params.Type = domain.MessageText
	}

	content := params.Content
	if s.censor != nil {
		var masked bool
		content, masked = s.censor.Apply(content)
		if masked {
			s.log.Debug("message content censored", "room", roomID, "sender", senderID)
		}
	}

	now := s.now().UTC()
	info := whatlanggo.Detect(content)
	msg := domain.Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		Type:      params.Type,
		MediaID:   params.MediaID,
		ReplyTo:   params.ReplyTo,
		Lang:      info.Lang.Iso6391(),
		CreatedAt: now,
	}
	// The message append shares the room's transaction: the summary and
	// counter can never reference a message that failed to persist.
	_, err := s.rooms.MutateTxn(roomID, func(txn *badger.Txn, room *domain.Chatroom) error {
		if !room.Active {
			return roomerr.E(roomerr.KindNotFound, "room %s is deleted", roomID)
		}
		member, ok := room.Member(senderID)
		if !ok {
			return roomerr.ErrNotMember
		}
		if member.IsMuted(now) {
			return roomerr.ErrMuted
		}
		if !member.Can(domain.CapSend, now) {
			return roomerr.ErrForbidden
		}
		if params.MediaID != nil {
			if !room.Settings.AllowFileSharing {
				return roomerr.E(roomerr.KindForbidden, "file sharing is disabled for room %s", roomID)
			}
			if s.media == nil || !s.media.Exists(*params.MediaID) {
				return roomerr.E(roomerr.KindValidation, "unknown media %s", *params.MediaID)
			}
		}
		msg.Seq = room.RecordMessage(senderID, content, now)
		return s.messages.AppendTxn(txn, msg)
	})
	if err != nil {
		return domain.Message{}, err
	}

	if s.search != nil {
		if err := s.search.Index(msg); err != nil {
			s.log.Warn("search indexing failed", "message", msg.ID, "error", err)
		}
	}
	s.publisher.Publish(roomID, event.NewMessage{
		Room: roomID, ID: msg.ID, SenderID: senderID, Content: content,
		Type: string(msg.Type), ReplyTo: msg.ReplyTo, Seq: msg.Seq, At: now,
	})
	return msg, nil
}

// React upserts or removes the user's single reaction; a nil emoji removes it.
func (s *MessageBus) React(messageID uuid.UUID, userID string, emoji *string) error {
	msg, err := s.messages.Get(messageID)
	if err != nil {
		return err
	}
	if err := s.requireMember(msg.RoomID, userID); err != nil {
		return err
	}
	if _, err := s.messages.Update(messageID, func(m *domain.Message) error {
		m.React(userID, emoji)
		return nil
	}); err != nil {
		return err
	}
	s.publisher.Publish(msg.RoomID, event.MessageReaction{
		Room: msg.RoomID, MessageID: messageID, UserID: userID, Emoji: emoji,
	})
	return nil
}

// Edit applies the single permitted content edit. Only the sender may edit.
func (s *MessageBus) Edit(messageID uuid.UUID, actorID, content string) (domain.Message, error) {
	if content == "" {
		return domain.Message{}, roomerr.E(roomerr.KindValidation, "message content is empty")
	}
	if s.maxContent > 0 && len(content) > s.maxContent {
		return domain.Message{}, roomerr.E(roomerr.KindValidation, "message exceeds %d bytes", s.maxContent)
	}
	if s.censor != nil {
		content, _ = s.censor.Apply(content)
	}
	now := s.now().UTC()
	msg, err := s.messages.Update(messageID, func(m *domain.Message) error {
		return m.Edit(actorID, content, now)
	})
	if err != nil {
		return domain.Message{}, err
	}
	if s.search != nil {
		if err := s.search.Index(msg); err != nil {
			s.log.Warn("search reindex failed", "message", msg.ID, "error", err)
		}
	}
	s.publisher.Publish(msg.RoomID, event.MessageEdited{
		Room: msg.RoomID, MessageID: messageID, Content: content, At: now,
	})
	return msg, nil
}

// DeleteMessage removes the message when the actor is its sender or holds
// delete-others in the room. Replies keep their dangling reference; renderers
// show a deleted-parent placeholder instead of failing.
func (s *MessageBus) DeleteMessage(messageID uuid.UUID, actorID string) error {
	msg, err := s.messages.Get(messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != actorID {
		room, err := s.rooms.Get(msg.RoomID)
		if err != nil {
			return err
		}
		if !room.HasPermission(actorID, domain.CapDeleteOthers, s.now().UTC()) {
			return roomerr.ErrForbidden
		}
	}
	if err := s.messages.Delete(messageID); err != nil {
		return err
	}
	if s.search != nil {
		if err := s.search.Delete(messageID); err != nil {
			s.log.Warn("search delete failed", "message", messageID, "error", err)
		}
	}
	s.publisher.Publish(msg.RoomID, event.MessageDeleted{
		Room: msg.RoomID, MessageID: messageID, ActorID: actorID,
	})
	return nil
}

// ListMessages pages through room history in display order.
func (s *MessageBus) ListMessages(roomID, userID string, cursor *string, limit int) ([]domain.Message, *string, error) {
	if err := s.requireMember(roomID, userID); err != nil {
		return nil, nil, err
	}
	return s.messages.List(roomID, cursor, limit)
}

// SearchMessages runs a member-only full-text query over the room's history.
func (s *MessageBus) SearchMessages(ctx context.Context, roomID, userID, terms string, limit int) ([]repositories.SearchHit, uint64, error) {
	if terms == "" {
		return nil, 0, roomerr.E(roomerr.KindValidation, "search terms are empty")
	}
	if err := s.requireMember(roomID, userID); err != nil {
		return nil, 0, err
	}
	if s.search == nil {
		return nil, 0, nil
	}
	return s.search.Search(ctx, roomID, terms, limit)
}

func (s *MessageBus) requireMember(roomID, userID string) error {
	room, err := s.rooms.Get(roomID)
	if err != nil {
		return err
	}
	if !room.Active {
		return roomerr.E(roomerr.KindNotFound, "room %s is deleted", roomID)
	}
	if _, ok := room.Member(userID); !ok {
		return roomerr.ErrNotMember
	}
	return nil
}
