package services

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"roomcore/contract"
	"roomcore/domain"
	"roomcore/domain/event"
	"roomcore/repositories"
	"roomcore/roomerr"
)

type CreateRoomParams struct {
	Name        string
	Description string
	Visibility  domain.Visibility
	Settings    domain.Settings
}

type IMembershipManager interface {
	CreateRoom(creatorID string, params CreateRoomParams) (*domain.Chatroom, error)
	GetRoom(roomID string) (*domain.Chatroom, error)
	Join(roomID, userID string) (*domain.Membership, error)
	Leave(roomID, userID string) error
	HasPermission(roomID, userID string, c domain.Capability) bool
	SetRole(roomID, actorID, targetID string, role domain.Role) error
	ListMembers(roomID string) ([]domain.Membership, error)
	UpdateSettings(roomID, actorID string, settings domain.Settings) error
	DeleteRoom(roomID, actorID string) error
}

// MembershipManager owns room lifecycle, join/leave/role transitions and
// permission evaluation. Every mutation commits through one atomic room
// update before its event is fanned out.
type MembershipManager struct {
	rooms     repositories.IRoomRepository
	messages  repositories.IMessageRepository
	search    *repositories.SearchRepository
	publisher contract.Publisher
	log       *slog.Logger
	now       func() time.Time
}

func NewMembershipManager(rooms repositories.IRoomRepository, messages repositories.IMessageRepository,
	search *repositories.SearchRepository, publisher contract.Publisher, log *slog.Logger) *MembershipManager {
	return &MembershipManager{
		rooms:     rooms,
		messages:  messages,
		search:    search,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// WithClock overrides the time source, used by tests to simulate expiry.
func (s *MembershipManager) WithClock(now func() time.Time) *MembershipManager {
	s.now = now
	return s
}

func (s *MembershipManager) CreateRoom(creatorID string, params CreateRoomParams) (*domain.Chatroom, error) {
	if params.Name == "" {
		return nil, roomerr.E(roomerr.KindValidation, "room name is required")
	}
	if !params.Visibility.Valid() {
		return nil, roomerr.E(roomerr.KindValidation, "unknown visibility %q", params.Visibility)
	}
	settings := params.Settings
	if params.Visibility == domain.VisibilityDirect {
		// direct rooms are fixed two-member conversations
		settings.MaxMembers = 2
		settings.AllowInvites = false
	}
	room := domain.NewChatroom(uuid.NewString(), params.Name, params.Description,
		params.Visibility, creatorID, settings, s.now().UTC())
	if err := s.rooms.Create(room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *MembershipManager) GetRoom(roomID string) (*domain.Chatroom, error) {
	return s.rooms.Get(roomID)
}

func (s *MembershipManager) Join(roomID, userID string) (*domain.Membership, error) {
	now := s.now().UTC()
	var membership *domain.Membership
	_, err := s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		var err error
		membership, err = room.Join(userID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(roomID, event.MemberJoined{
		Room: roomID, UserID: userID, Role: string(membership.Role), At: now,
	})
	return membership, nil
}

// Leave is not an error when the user was never a member; the event is only
// emitted when a membership was actually removed.
func (s *MembershipManager) Leave(roomID, userID string) error {
	left := false
	_, err := s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		left = room.Leave(userID)
		return nil
	})
	if err != nil {
		return err
	}
	if left {
		s.publisher.Publish(roomID, event.MemberLeft{Room: roomID, UserID: userID, At: s.now().UTC()})
	}
	return nil
}

// HasPermission returns false, never an error, for unknown rooms and
// non-members.
func (s *MembershipManager) HasPermission(roomID, userID string, c domain.Capability) bool {
	room, err := s.rooms.Get(roomID)
	if err != nil {
		return false
	}
	return room.HasPermission(userID, c, s.now().UTC())
}

func (s *MembershipManager) SetRole(roomID, actorID, targetID string, role domain.Role) error {
	_, err := s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		return room.SetRole(actorID, targetID, role)
	})
	return err
}

func (s *MembershipManager) ListMembers(roomID string) ([]domain.Membership, error) {
	room, err := s.rooms.Get(roomID)
	if err != nil {
		return nil, err
	}
	members := make([]domain.Membership, 0, len(room.Members))
	for _, m := range room.Members {
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members, nil
}

func (s *MembershipManager) UpdateSettings(roomID, actorID string, settings domain.Settings) error {
	now := s.now().UTC()
	var name string
	_, err := s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		name = room.Name
		return room.UpdateSettings(actorID, settings, now)
	})
	if err != nil {
		return err
	}
	s.publisher.Publish(roomID, event.ChatroomUpdated{Room: roomID, RoomName: name, At: now})
	return nil
}

// DeleteRoom soft-deletes the room document, then hard-deletes its message
// history and search entries as a cascade. Subscribers get exactly one
// chatroom_deleted event.
func (s *MembershipManager) DeleteRoom(roomID, actorID string) error {
	_, err := s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		return room.SoftDelete(actorID)
	})
	if err != nil {
		return err
	}
	deleted, err := s.messages.DeleteRoom(roomID)
	if err != nil {
		// The room is already gone for clients; the leftover history is an
		// operational cleanup, not a caller problem.
		s.log.Error("message cascade failed", "room", roomID, "error", err)
	}
	if s.search != nil {
		s.search.DeleteRoom(deleted)
	}
	s.publisher.Publish(roomID, event.ChatroomDeleted{Room: roomID, At: s.now().UTC()})
	return nil
}
