package services

import (
	"fmt"
	"log/slog"
	"time"

	"roomcore/contract"
	"roomcore/domain"
	"roomcore/domain/event"
	"roomcore/repositories"
)

type CreateInviteParams struct {
	MaxUses        *int
	ExpiresInHours *int
	GrantedRole    domain.Role
}

type IInviteLinkService interface {
	Create(roomID, issuerID string, params CreateInviteParams) (*domain.InviteLink, string, error)
	Redeem(code, userID string) (*domain.Membership, error)
	Deactivate(code, actorID string) error
}

// InviteLinkService issues and redeems time/usage-bounded invite tokens.
// Redemption runs inside the room's atomic update, so the used-count
// increment and the max-uses check commit together: N concurrent redemptions
// of a maxUses=N link yield exactly N memberships and the rest Exhausted.
type InviteLinkService struct {
	rooms     repositories.IRoomRepository
	publisher contract.Publisher
	baseURL   string
	log       *slog.Logger
	now       func() time.Time
}

func NewInviteLinkService(rooms repositories.IRoomRepository, publisher contract.Publisher, baseURL string, log *slog.Logger) *InviteLinkService {
	return &InviteLinkService{rooms: rooms, publisher: publisher, baseURL: baseURL, log: log, now: time.Now}
}

func (s *InviteLinkService) WithClock(now func() time.Time) *InviteLinkService {
	s.now = now
	return s
}

// Create issues a link and returns it with its shareable URL.
func (s *InviteLinkService) Create(roomID, issuerID string, params CreateInviteParams) (*domain.InviteLink, string, error) {
	now := s.now().UTC()
	var expiresIn *time.Duration
	if params.ExpiresInHours != nil {
		d := time.Duration(*params.ExpiresInHours) * time.Hour
		expiresIn = &d
	}
	var link *domain.InviteLink
	_, err := s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		var err error
		link, err = room.CreateInvite(issuerID, params.MaxUses, expiresIn, params.GrantedRole, now)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return link, s.InviteURL(link.Code), nil
}

// Redeem resolves the code to its room and attempts the membership grant.
// Redeeming while already a member is idempotent success and leaves the
// usage counter untouched.
func (s *InviteLinkService) Redeem(code, userID string) (*domain.Membership, error) {
	roomID, err := s.rooms.RoomIDForInvite(code)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	var membership *domain.Membership
	var wasMember bool
	_, err = s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		_, wasMember = room.Member(userID)
		var err error
		membership, err = room.RedeemInvite(code, userID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !wasMember {
		s.publisher.Publish(roomID, event.MemberJoined{
			Room: roomID, UserID: userID, Role: string(membership.Role), At: now,
		})
	}
	return membership, nil
}

// Deactivate turns the link off; already-redeemed memberships are unaffected.
func (s *InviteLinkService) Deactivate(code, actorID string) error {
	roomID, err := s.rooms.RoomIDForInvite(code)
	if err != nil {
		return err
	}
	_, err = s.rooms.Mutate(roomID, func(room *domain.Chatroom) error {
		return room.DeactivateInvite(code, actorID)
	})
	return err
}

func (s *InviteLinkService) InviteURL(code string) string {
	return fmt.Sprintf("%s/invite/%s", s.baseURL, code)
}
