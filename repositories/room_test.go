package repositories

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"roomcore/domain"
	"roomcore/roomerr"
)

func testDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedRoom(t *testing.T, repo *RoomRepository) *domain.Chatroom {
	t.Helper()
	room := domain.NewChatroom("room-1", "general", "", domain.VisibilityPublic, "alice",
		domain.Settings{MaxMembers: 100, AllowInvites: true}, time.Now().UTC())
	require.NoError(t, repo.Create(room))
	return room
}

func Test_Create_And_Get_Room(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(testDB(t), slog.Default())
	room := seedRoom(t, repo)

	fetched, err := repo.Get(room.ID)
	req.NoError(err)
	req.Equal(room.Name, fetched.Name)
	req.Contains(fetched.Members, "alice")

	err = repo.Create(room)
	req.Equal(roomerr.KindConflict, roomerr.KindOf(err))

	_, err = repo.Get("nope")
	req.Equal(roomerr.KindNotFound, roomerr.KindOf(err))
}

func Test_Mutate_Persists_Changes(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(testDB(t), slog.Default())
	room := seedRoom(t, repo)

	_, err := repo.Mutate(room.ID, func(r *domain.Chatroom) error {
		_, err := r.Join("bob", time.Now().UTC())
		return err
	})
	req.NoError(err)

	fetched, err := repo.Get(room.ID)
	req.NoError(err)
	req.Contains(fetched.Members, "bob")
}

func Test_Mutate_Error_Aborts_Write(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(testDB(t), slog.Default())
	room := seedRoom(t, repo)

	_, err := repo.Mutate(room.ID, func(r *domain.Chatroom) error {
		_, _ = r.Join("bob", time.Now().UTC())
		return roomerr.ErrForbidden
	})
	req.ErrorIs(err, roomerr.ErrForbidden)

	fetched, err := repo.Get(room.ID)
	req.NoError(err)
	req.NotContains(fetched.Members, "bob")
}

func Test_Invite_Index_Written_With_Room(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(testDB(t), slog.Default())
	room := seedRoom(t, repo)

	var code string
	_, err := repo.Mutate(room.ID, func(r *domain.Chatroom) error {
		link, err := r.CreateInvite("alice", nil, nil, domain.RoleMember, time.Now().UTC())
		if err != nil {
			return err
		}
		code = link.Code
		return nil
	})
	req.NoError(err)

	roomID, err := repo.RoomIDForInvite(code)
	req.NoError(err)
	req.Equal(room.ID, roomID)

	_, err = repo.RoomIDForInvite("unknown-code")
	req.ErrorIs(err, roomerr.ErrNotFound)
}

// Concurrent joins hammer the same room document; the retry loop must
// serialize them so every join lands.
func Test_Mutate_Concurrent_Joins(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(testDB(t), slog.Default())
	room := seedRoom(t, repo)

	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	var wg sync.WaitGroup
	errs := make(chan error, len(users))
	for _, u := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := repo.Mutate(room.ID, func(r *domain.Chatroom) error {
				_, err := r.Join(userID, time.Now().UTC())
				return err
			})
			errs <- err
		}(u)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	fetched, err := repo.Get(room.ID)
	req.NoError(err)
	req.Len(fetched.Members, len(users)+1)
}

// N concurrent redemptions of a maxUses=N link must yield exactly N
// memberships; the used-count increment and its bound commit together.
func Test_Mutate_Concurrent_Invite_Redemption_Is_Exact(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(testDB(t), slog.Default())
	room := seedRoom(t, repo)

	maxUses := 3
	var code string
	_, err := repo.Mutate(room.ID, func(r *domain.Chatroom) error {
		link, err := r.CreateInvite("alice", &maxUses, nil, domain.RoleMember, time.Now().UTC())
		if err != nil {
			return err
		}
		code = link.Code
		return nil
	})
	req.NoError(err)

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := string(rune('a'+n)) + "-redeemer"
			_, err := repo.Mutate(room.ID, func(r *domain.Chatroom) error {
				_, err := r.RedeemInvite(code, userID, time.Now().UTC())
				return err
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded, exhausted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case roomerr.KindOf(err) == roomerr.KindExhausted:
			exhausted++
		default:
			req.NoError(err)
		}
	}
	req.Equal(maxUses, succeeded)
	req.Equal(attempts-maxUses, exhausted)

	fetched, err := repo.Get(room.ID)
	req.NoError(err)
	req.Len(fetched.Members, maxUses+1)
	req.Equal(maxUses, fetched.Invites[code].UsedCount)
}

func Test_MutateTxn_Commits_Room_And_Message_Together(t *testing.T) {
	req := require.New(t)
	db := testDB(t)
	rooms := NewRoomRepository(db, slog.Default())
	messages := NewMessageRepository(db, slog.Default())
	room := seedRoom(t, rooms)
	now := time.Now().UTC()

	msg := domain.Message{ID: uuid.New(), RoomID: room.ID, SenderID: "alice", Content: "hello", CreatedAt: now}
	_, err := rooms.MutateTxn(room.ID, func(txn *badger.Txn, r *domain.Chatroom) error {
		msg.Seq = r.RecordMessage("alice", msg.Content, now)
		return messages.AppendTxn(txn, msg)
	})
	req.NoError(err)

	fetched, err := rooms.Get(room.ID)
	req.NoError(err)
	req.Equal(int64(1), fetched.MessageCount)
	stored, err := messages.Get(msg.ID)
	req.NoError(err)
	req.Equal("hello", stored.Content)

	// a failing closure rolls back the summary and the message write together
	doomed := domain.Message{ID: uuid.New(), RoomID: room.ID, SenderID: "alice", Content: "never", CreatedAt: now}
	_, err = rooms.MutateTxn(room.ID, func(txn *badger.Txn, r *domain.Chatroom) error {
		doomed.Seq = r.RecordMessage("alice", doomed.Content, now)
		if err := messages.AppendTxn(txn, doomed); err != nil {
			return err
		}
		return roomerr.ErrForbidden
	})
	req.ErrorIs(err, roomerr.ErrForbidden)

	fetched, err = rooms.Get(room.ID)
	req.NoError(err)
	req.Equal(int64(1), fetched.MessageCount, "summary never points at an unpersisted message")
	_, err = messages.Get(doomed.ID)
	req.Equal(roomerr.KindNotFound, roomerr.KindOf(err))

	history, _, err := messages.List(room.ID, nil, 0)
	req.NoError(err)
	req.Len(history, 1)
}
