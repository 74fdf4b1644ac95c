package test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"roomcore/domain"
	"roomcore/domain/event"
	"roomcore/moderation"
	"roomcore/projection"
	"roomcore/realtime"
	"roomcore/repositories"
	"roomcore/roomerr"
	"roomcore/services"
)

type stack struct {
	rooms    *repositories.RoomRepository
	messages *repositories.MessageRepository
	registry *realtime.Registry
	members  *services.MembershipManager
	engine   *services.ModerationEngine
	invites  *services.InviteLinkService
	bus      *services.MessageBus
}

func newStack(t *testing.T) *stack {
	t.Helper()
	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	rooms := repositories.NewRoomRepository(db, log)
	messages := repositories.NewMessageRepository(db, log)
	search := repositories.NewSearchRepository(writer, log)
	media := repositories.NewMediaRepository(db, log, 1<<20)

	censor, err := moderation.NewCensor([]string{"badger"}, '*')
	require.NoError(t, err)

	registry := realtime.NewRegistry()
	fanout := realtime.NewFanout(log, registry, time.Second)

	return &stack{
		rooms:    rooms,
		messages: messages,
		registry: registry,
		members:  services.NewMembershipManager(rooms, messages, search, fanout, log),
		engine:   services.NewModerationEngine(rooms, fanout, log),
		invites:  services.NewInviteLinkService(rooms, fanout, "https://chat.example.com", log),
		bus:      services.NewMessageBus(rooms, messages, search, media, censor, fanout, log, 1024),
	}
}

// countingSink records every event name it receives.
type countingSink struct {
	mu     sync.Mutex
	id     string
	events []string
}

func (s *countingSink) SessionID() string { return s.id }

func (s *countingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e.Name())
	return nil
}

func (s *countingSink) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, got := range s.events {
		if got == name {
			n++
		}
	}
	return n
}

// A full moderation pass: promotion, kick semantics, ban beating every join
// path, mute expiring lazily while messages keep flowing in order.
func Test_Scenario_Moderation(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	base := time.Now().UTC()
	clock := base
	s.members.WithClock(func() time.Time { return clock })
	s.engine.WithClock(func() time.Time { return clock })
	s.bus.WithClock(func() time.Time { return clock })

	room, err := s.members.CreateRoom("alice", services.CreateRoomParams{
		Name:       "ops",
		Visibility: domain.VisibilityPublic,
		Settings:   domain.Settings{MaxMembers: 10, AllowInvites: true},
	})
	req.NoError(err)

	_, err = s.members.Join(room.ID, "bob")
	req.NoError(err)
	req.NoError(s.engine.AddModerator(room.ID, "alice", "bob"))

	// moderator kick of an absent user is not-found, never forbidden
	err = s.engine.Kick(room.ID, "bob", "ghost", "")
	req.Equal(roomerr.KindNotFound, roomerr.KindOf(err))

	// pre-emptive ban, then both join paths stay shut
	req.NoError(s.engine.Ban(room.ID, "alice", "mallory", "spam bot"))
	_, err = s.members.Join(room.ID, "mallory")
	req.ErrorIs(err, roomerr.ErrBanned)

	maxUses := 3
	link, _, err := s.invites.Create(room.ID, "alice", services.CreateInviteParams{MaxUses: &maxUses})
	req.NoError(err)
	_, err = s.invites.Redeem(link.Code, "mallory")
	req.ErrorIs(err, roomerr.ErrBanned)

	fetched, err := s.rooms.Get(room.ID)
	req.NoError(err)
	req.Equal(0, fetched.Invites[link.Code].UsedCount, "the blocked redemption consumed nothing")

	// mute bob for a minute; expiry needs no unmute call
	duration := time.Minute
	_, err = s.engine.Mute(room.ID, "alice", "bob", &duration)
	req.NoError(err)
	_, err = s.bus.Send(room.ID, "bob", services.SendParams{Content: "gagged"})
	req.ErrorIs(err, roomerr.ErrMuted)

	clock = base.Add(61 * time.Second)
	_, err = s.bus.Send(room.ID, "bob", services.SendParams{Content: "M1"})
	req.NoError(err)
	_, err = s.bus.Send(room.ID, "bob", services.SendParams{Content: "that badger ruined it"})
	req.NoError(err)

	history, _, err := s.bus.ListMessages(room.ID, "alice", nil, 10)
	req.NoError(err)
	req.Len(history, 2)
	req.Equal("M1", history[0].Content)
	req.Equal("that ****** ruined it", history[1].Content)
}

// Deleting a room cascades the history and notifies each subscriber exactly
// once, while live timelines keep projecting until the end.
func Test_Scenario_Room_Deletion_Broadcast(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	room, err := s.members.CreateRoom("alice", services.CreateRoomParams{
		Name:       "doomed",
		Visibility: domain.VisibilityPublic,
		Settings:   domain.Settings{MaxMembers: 10},
	})
	req.NoError(err)
	_, err = s.members.Join(room.ID, "bob")
	req.NoError(err)

	timeline := projection.NewTimeline()
	observer := &countingSink{id: "observer"}
	s.registry.Subscribe(room.ID, timeline)
	s.registry.Subscribe(room.ID, observer)

	for _, content := range []string{"M1", "M2", "M3"} {
		_, err := s.bus.Send(room.ID, "alice", services.SendParams{Content: content})
		req.NoError(err)
	}
	req.Len(timeline.Messages(), 3)
	req.Equal("M1", timeline.Messages()[0].Content)

	req.NoError(s.members.DeleteRoom(room.ID, "alice"))

	req.Equal(1, observer.count("chatroom_deleted"), "subscribers get exactly one deletion event")
	req.Equal(3, observer.count("new_message"))

	history, _, err := s.messages.List(room.ID, nil, 0)
	req.NoError(err)
	req.Empty(history)

	_, err = s.bus.Send(room.ID, "alice", services.SendParams{Content: "too late"})
	req.Equal(roomerr.KindNotFound, roomerr.KindOf(err))
}
