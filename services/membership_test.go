package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"roomcore/domain"
	"roomcore/domain/event"
	"roomcore/mocks"
	"roomcore/repositories"
	"roomcore/roomerr"
)

type fixture struct {
	rooms    *repositories.RoomRepository
	messages *repositories.MessageRepository
	search   *repositories.SearchRepository
	media    *repositories.MediaRepository
	pub      *mocks.MockPublisher
}

func newFixture(t *testing.T, ctrl *gomock.Controller) fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	log := slog.Default()
	return fixture{
		rooms:    repositories.NewRoomRepository(db, log),
		messages: repositories.NewMessageRepository(db, log),
		search:   repositories.NewSearchRepository(writer, log),
		media:    repositories.NewMediaRepository(db, log, 1<<20),
		pub:      mocks.NewMockPublisher(ctrl),
	}
}

func (f fixture) membership() *MembershipManager {
	return NewMembershipManager(f.rooms, f.messages, f.search, f.pub, slog.Default())
}

func createRoom(t *testing.T, svc *MembershipManager, creator string) *domain.Chatroom {
	t.Helper()
	room, err := svc.CreateRoom(creator, CreateRoomParams{
		Name:       "general",
		Visibility: domain.VisibilityPublic,
		Settings:   domain.Settings{MaxMembers: 100, AllowInvites: true, AllowFileSharing: true},
	})
	require.NoError(t, err)
	return room
}

func Test_CreateRoom_Validation(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	svc := newFixture(t, ctrl).membership()

	_, err := svc.CreateRoom("alice", CreateRoomParams{Visibility: domain.VisibilityPublic})
	req.Equal(roomerr.KindValidation, roomerr.KindOf(err))

	_, err = svc.CreateRoom("alice", CreateRoomParams{Name: "x", Visibility: "secret"})
	req.Equal(roomerr.KindValidation, roomerr.KindOf(err))
}

func Test_CreateRoom_Direct_Forces_Two_Member_Cap(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	svc := newFixture(t, ctrl).membership()

	room, err := svc.CreateRoom("alice", CreateRoomParams{
		Name:       "alice-bob",
		Visibility: domain.VisibilityDirect,
		Settings:   domain.Settings{MaxMembers: 50, AllowInvites: true},
	})
	req.NoError(err)
	req.Equal(2, room.Settings.MaxMembers)
	req.False(room.Settings.AllowInvites)
}

func Test_Join_Publishes_Event(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	svc := f.membership()
	room := createRoom(t, svc, "alice")

	f.pub.EXPECT().Publish(room.ID, gomock.AssignableToTypeOf(event.MemberJoined{})).Times(1)
	membership, err := svc.Join(room.ID, "bob")
	req.NoError(err)
	req.Equal(domain.RoleMember, membership.Role)
}

func Test_Leave_NonMember_Publishes_Nothing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	svc := f.membership()
	room := createRoom(t, svc, "alice")

	// no Publish expectation: a no-op leave must not emit member_left
	req.NoError(svc.Leave(room.ID, "stranger"))
}

func Test_HasPermission_Never_Errors(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	svc := f.membership()
	room := createRoom(t, svc, "alice")

	req.False(svc.HasPermission("no-such-room", "alice", domain.CapSend))
	req.False(svc.HasPermission(room.ID, "stranger", domain.CapSend))
	req.True(svc.HasPermission(room.ID, "alice", domain.CapManageRoles))
}

func Test_ListMembers_Sorted_By_Join_Time(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	svc := f.membership()

	base := time.Now().UTC()
	clock := base
	svc.WithClock(func() time.Time { return clock })
	room := createRoom(t, svc, "alice")

	f.pub.EXPECT().Publish(room.ID, gomock.Any()).Times(2)
	clock = base.Add(time.Minute)
	_, err := svc.Join(room.ID, "bob")
	req.NoError(err)
	clock = base.Add(2 * time.Minute)
	_, err = svc.Join(room.ID, "carol")
	req.NoError(err)

	members, err := svc.ListMembers(room.ID)
	req.NoError(err)
	req.Len(members, 3)
	req.Equal("alice", members[0].UserID)
	req.Equal("bob", members[1].UserID)
	req.Equal("carol", members[2].UserID)
}

func Test_UpdateSettings_Publishes_Event(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	svc := f.membership()
	room := createRoom(t, svc, "alice")

	f.pub.EXPECT().Publish(room.ID, gomock.AssignableToTypeOf(event.ChatroomUpdated{})).Times(1)
	req.NoError(svc.UpdateSettings(room.ID, "alice", domain.Settings{MaxMembers: 5}))

	fetched, err := svc.GetRoom(room.ID)
	req.NoError(err)
	req.Equal(5, fetched.Settings.MaxMembers)
}

func Test_DeleteRoom_Cascades_And_Publishes_Once(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	svc := f.membership()
	room := createRoom(t, svc, "alice")

	bus := NewMessageBus(f.rooms, f.messages, f.search, f.media, nil, f.pub, slog.Default(), 0)
	f.pub.EXPECT().Publish(room.ID, gomock.AssignableToTypeOf(event.NewMessage{})).Times(2)
	_, err := bus.Send(room.ID, "alice", SendParams{Content: "one"})
	req.NoError(err)
	_, err = bus.Send(room.ID, "alice", SendParams{Content: "two"})
	req.NoError(err)

	f.pub.EXPECT().Publish(room.ID, gomock.AssignableToTypeOf(event.ChatroomDeleted{})).Times(1)
	req.NoError(svc.DeleteRoom(room.ID, "alice"))

	// the document survives as a soft-deleted tombstone
	fetched, err := svc.GetRoom(room.ID)
	req.NoError(err)
	req.False(fetched.Active)

	// the history is gone
	history, _, err := f.messages.List(room.ID, nil, 0)
	req.NoError(err)
	req.Empty(history)

	// and nothing further can be sent
	_, err = bus.Send(room.ID, "alice", SendParams{Content: "three"})
	req.Equal(roomerr.KindNotFound, roomerr.KindOf(err))
}

func Test_DeleteRoom_Requires_Admin(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	svc := f.membership()
	room := createRoom(t, svc, "alice")

	f.pub.EXPECT().Publish(room.ID, gomock.Any()).Times(1)
	_, err := svc.Join(room.ID, "bob")
	req.NoError(err)

	err = svc.DeleteRoom(room.ID, "bob")
	req.ErrorIs(err, roomerr.ErrForbidden)
}
