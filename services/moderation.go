package services

import (
	"log/slog"
	"time"

	"roomcore/contract"
	"roomcore/domain"
	"roomcore/domain/event"
	"roomcore/repositories"
)

type IModerationEngine interface {
	Kick(roomID, actorID, targetID, reason string) error
	Ban(roomID, actorID, targetID, reason string) error
	Unban(roomID, actorID, targetID string) error
	Mute(roomID, actorID, targetID string, duration *time.Duration) (*time.Time, error)
	Unmute(roomID, actorID, targetID string) error
	AddModerator(roomID, actorID, targetID string) error
	RemoveModerator(roomID, actorID, targetID string) error
}

// ModerationEngine applies kicks, bans, mutes and moderator changes. Each
// action is one atomic room update; concurrent actions on the same target are
// last-write-wins by commit order. An action that removes the final admin is
// allowed and logged, never blocked.
type ModerationEngine struct {
	rooms     repositories.IRoomRepository
	publisher contract.Publisher
	log       *slog.Logger
	now       func() time.Time

	// directNotify forwards the notification intent for the affected user to
	// an external delivery collaborator. Optional.
	directNotify func(userID string, e event.DomainEvent)
}

func NewModerationEngine(rooms repositories.IRoomRepository, publisher contract.Publisher, log *slog.Logger) *ModerationEngine {
	return &ModerationEngine{rooms: rooms, publisher: publisher, log: log, now: time.Now}
}

func (s *ModerationEngine) WithClock(now func() time.Time) *ModerationEngine {
	s.now = now
	return s
}

func (s *ModerationEngine) WithDirectNotifier(fn func(userID string, e event.DomainEvent)) *ModerationEngine {
	s.directNotify = fn
	return s
}

func (s *ModerationEngine) Kick(roomID, actorID, targetID, reason string) error {
	now := s.now().UTC()
	room, err := s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		return room.Kick(actorID, targetID, now)
	})
	if err != nil {
		return err
	}
	s.warnIfOrphaned(room, "kick")
	s.publisher.Publish(roomID, event.MemberKicked{
		Room: roomID, UserID: targetID, ActorID: actorID, Reason: reason, At: now,
	})
	if s.directNotify != nil {
		s.directNotify(targetID, event.KickNotice{Room: roomID, UserID: targetID, Reason: reason})
	}
	return nil
}

func (s *ModerationEngine) Ban(roomID, actorID, targetID, reason string) error {
	now := s.now().UTC()
	room, err := s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		return room.Ban(actorID, targetID, reason, now)
	})
	if err != nil {
		return err
	}
	s.warnIfOrphaned(room, "ban")
	s.publisher.Publish(roomID, event.MemberBanned{
		Room: roomID, UserID: targetID, ActorID: actorID, Reason: reason, At: now,
	})
	return nil
}

func (s *ModerationEngine) Unban(roomID, actorID, targetID string) error {
	_, err := s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		return room.Unban(actorID, targetID)
	})
	return err
}

// Mute silences the target for the duration, indefinitely when nil. Expiry is
// lazy: nothing is scheduled, every later permission check compares the
// stored deadline against its own clock.
func (s *ModerationEngine) Mute(roomID, actorID, targetID string, duration *time.Duration) (*time.Time, error) {
	now := s.now().UTC()
	var until *time.Time
	_, err := s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		var err error
		until, err = room.Mute(actorID, targetID, duration, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(roomID, event.MemberMuted{
		Room: roomID, UserID: targetID, ActorID: actorID, MuteUntil: until,
	})
	return until, nil
}

func (s *ModerationEngine) Unmute(roomID, actorID, targetID string) error {
	_, err := s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		return room.Unmute(actorID, targetID)
	})
	if err != nil {
		return err
	}
	s.publisher.Publish(roomID, event.MemberUnmuted{Room: roomID, UserID: targetID, ActorID: actorID})
	return nil
}

func (s *ModerationEngine) AddModerator(roomID, actorID, targetID string) error {
	_, err := s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		return room.AddModerator(actorID, targetID)
	})
	if err != nil {
		return err
	}
	s.publisher.Publish(roomID, event.ModeratorAdded{Room: roomID, UserID: targetID})
	return nil
}

func (s *ModerationEngine) RemoveModerator(roomID, actorID, targetID string) error {
	_, err := s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		return room.RemoveModerator(actorID, targetID)
	})
	if err != nil {
		return err
	}
	s.publisher.Publish(roomID, event.ModeratorRemoved{Room: roomID, UserID: targetID})
	return nil
}

// warnIfOrphaned flags a room left without any admin. Self-targeted actions
// by the sole admin are deliberately permitted; this is the product decision
// marker, not a guard.
func (s *ModerationEngine) warnIfOrphaned(room *domain.Chatroom, action string) {
	if room != nil && room.AdminCount() == 0 {
		s.log.Warn("room left without an admin", "room", room.ID, "action", action)
	}
}
