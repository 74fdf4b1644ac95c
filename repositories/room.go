package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"roomcore/domain"
	"roomcore/roomerr"
)

// mutateRetries bounds the optimistic-concurrency retry loop before a
// Conflict is surfaced to the caller.
const mutateRetries = 16

type IRoomRepository interface {
	Create(room *domain.Chatroom) error
	Get(roomID string) (*domain.Chatroom, error)
	Mutate(roomID string, fn func(*domain.Chatroom) error) (*domain.Chatroom, error)
	MutateTxn(roomID string, fn func(*badger.Txn, *domain.Chatroom) error) (*domain.Chatroom, error)
	RoomIDForInvite(code string) (string, error)
}

// RoomRepository stores each room as one JSON document under "room:{id}".
// Mutate runs the caller's closure inside a single serializable BadgerDB
// transaction and retries the whole read-modify-write on conflict, so all
// mutations to one room are serialized while different rooms never block
// each other.
type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) *RoomRepository {
	return &RoomRepository{db: db, log: log}
}

func roomKey(roomID string) []byte {
	return []byte("room:" + roomID)
}

func inviteIdxKey(code string) []byte {
	return []byte("idx:invite:" + code)
}

func (r *RoomRepository) Create(room *domain.Chatroom) error {
	key := roomKey(room.ID)
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return roomerr.E(roomerr.KindConflict, "room %s already exists", room.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return writeRoom(txn, room)
	})
}

func (r *RoomRepository) Get(roomID string) (*domain.Chatroom, error) {
	var room *domain.Chatroom
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		room, err = readRoom(txn, roomID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// Mutate applies fn to the freshest read of the room document and commits the
// result atomically. fn returning an error aborts without writing. A closure
// losing the commit race re-runs against the new state; after mutateRetries
// losses the caller gets Conflict.
func (r *RoomRepository) Mutate(roomID string, fn func(*domain.Chatroom) error) (*domain.Chatroom, error) {
	return r.MutateTxn(roomID, func(_ *badger.Txn, room *domain.Chatroom) error {
		return fn(room)
	})
}

// MutateTxn is Mutate with the transaction exposed, so callers can commit
// related keys (a message append) together with the room document. Writes fn
// issues through txn abort and retry with the room write.
func (r *RoomRepository) MutateTxn(roomID string, fn func(*badger.Txn, *domain.Chatroom) error) (*domain.Chatroom, error) {
	for attempt := 0; attempt < mutateRetries; attempt++ {
		var room *domain.Chatroom
		err := r.db.Update(func(txn *badger.Txn) error {
			var err error
			room, err = readRoom(txn, roomID)
			if err != nil {
				return err
			}
			if err := fn(txn, room); err != nil {
				return err
			}
			return writeRoom(txn, room)
		})
		if errors.Is(err, badger.ErrConflict) {
			r.log.Debug("room mutation lost commit race, retrying", "room", roomID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		return room, nil
	}
	return nil, roomerr.ErrConflict
}

// RoomIDForInvite resolves an opaque invite code to its owning room.
func (r *RoomRepository) RoomIDForInvite(code string) (string, error) {
	var roomID string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(inviteIdxKey(code))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return roomerr.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			roomID = string(v)
			return nil
		})
	})
	return roomID, err
}

func readRoom(txn *badger.Txn, roomID string) (*domain.Chatroom, error) {
	item, err := txn.Get(roomKey(roomID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, roomerr.E(roomerr.KindNotFound, "room %s not found", roomID)
	}
	if err != nil {
		return nil, err
	}
	var room domain.Chatroom
	err = item.Value(func(v []byte) error {
		return json.Unmarshal(v, &room)
	})
	if err != nil {
		return nil, fmt.Errorf("decoding room %s: %w", roomID, err)
	}
	return &room, nil
}

func writeRoom(txn *badger.Txn, room *domain.Chatroom) error {
	bytes, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encoding room %s: %w", room.ID, err)
	}
	if err := txn.Set(roomKey(room.ID), bytes); err != nil {
		return err
	}
	// Invite codes created during this mutation are indexed in the same
	// transaction, so code lookup and room state can never disagree.
	for _, code := range room.TakeNewInviteCodes() {
		if err := txn.Set(inviteIdxKey(code), []byte(room.ID)); err != nil {
			return err
		}
	}
	return nil
}
