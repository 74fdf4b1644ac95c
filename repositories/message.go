package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"roomcore/domain"
	"roomcore/roomerr"
)

type IMessageRepository interface {
	Append(msg domain.Message) error
	AppendTxn(txn *badger.Txn, msg domain.Message) error
	Get(messageID uuid.UUID) (domain.Message, error)
	Update(messageID uuid.UUID, fn func(*domain.Message) error) (domain.Message, error)
	Delete(messageID uuid.UUID) error
	List(roomID string, cursor *string, limit int) ([]domain.Message, *string, error)
	DeleteRoom(roomID string) ([]uuid.UUID, error)
}

// MessageRepository persists messages in BadgerDB.
// The primary key is "msg:{room_id}:{seq_padded}:{uuid}":
//  1. The 19-digit zero-padded sequence makes a lexicographic prefix scan
//     return messages in display order.
//  2. The UUID suffix disambiguates should two writers ever race the same
//     sequence number.
//
// A secondary index "idx:msg:{uuid}" maps a message ID to its primary key for
// by-ID reads, edits and deletes.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

func msgPrefix(roomID string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", roomID))
}

func msgKey(roomID string, seq int64, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", roomID, seq, id))
}

func msgIdxKey(id uuid.UUID) []byte {
	return []byte("idx:msg:" + id.String())
}

func (m *MessageRepository) Append(msg domain.Message) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return m.AppendTxn(txn, msg)
	})
}

// AppendTxn writes the message and its ID index inside the caller's
// transaction, letting a room mutation and its message commit as one.
func (m *MessageRepository) AppendTxn(txn *badger.Txn, msg domain.Message) error {
	key := msgKey(msg.RoomID, msg.Seq, msg.ID)
	bytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := txn.Set(key, bytes); err != nil {
		return err
	}
	return txn.Set(msgIdxKey(msg.ID), key)
}

func (m *MessageRepository) Get(messageID uuid.UUID) (domain.Message, error) {
	var msg domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		msg, _, err = readMessage(txn, messageID)
		return err
	})
	return msg, err
}

// Update applies fn to the message inside one transaction, retrying lost
// commit races the same way room mutations do.
func (m *MessageRepository) Update(messageID uuid.UUID, fn func(*domain.Message) error) (domain.Message, error) {
	for attempt := 0; attempt < mutateRetries; attempt++ {
		var msg domain.Message
		err := m.db.Update(func(txn *badger.Txn) error {
			var key []byte
			var err error
			msg, key, err = readMessage(txn, messageID)
			if err != nil {
				return err
			}
			if err := fn(&msg); err != nil {
				return err
			}
			bytes, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			return txn.Set(key, bytes)
		})
		if errors.Is(err, badger.ErrConflict) {
			m.log.Debug("message update lost commit race, retrying", "message", messageID, "attempt", attempt)
			continue
		}
		if err != nil {
			return domain.Message{}, err
		}
		return msg, nil
	}
	return domain.Message{}, roomerr.ErrConflict
}

func (m *MessageRepository) Delete(messageID uuid.UUID) error {
	return m.db.Update(func(txn *badger.Txn) error {
		_, key, err := readMessage(txn, messageID)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(msgIdxKey(messageID))
	})
}

// List returns up to limit messages in display order starting after cursor.
// The returned cursor is the key suffix of the last message, nil when the
// room history is exhausted.
func (m *MessageRepository) List(roomID string, cursor *string, limit int) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastSuffix string
	prefix := msgPrefix(roomID)

	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.PrefetchSize = limit
		it := txn.NewIterator(opts)
		defer it.Close()

		seekKey := prefix
		if cursor != nil {
			seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
		}
		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next() // the cursor names the last already-delivered message
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			item := it.Item()
			lastSuffix = string(item.Key()[len(prefix):])
			err := item.Value(func(v []byte) error {
				var msg domain.Message
				if err := json.Unmarshal(v, &msg); err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(messages) == 0 || (limit > 0 && len(messages) < limit) {
		return messages, nil, nil
	}
	return messages, &lastSuffix, nil
}

// DeleteRoom hard-deletes every message of the room and its index entries,
// returning the deleted IDs so the search index can purge them too.
func (m *MessageRepository) DeleteRoom(roomID string) ([]uuid.UUID, error) {
	prefix := msgPrefix(roomID)
	var deleted []uuid.UUID

	// Collect first: deleting while iterating the same transaction is
	// undefined for prefetched iterators.
	type doomed struct {
		key []byte
		id  uuid.UUID
	}
	var keys []doomed
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			err := item.Value(func(v []byte) error {
				var msg domain.Message
				if err := json.Unmarshal(v, &msg); err != nil {
					return err
				}
				keys = append(keys, doomed{key: key, id: msg.ID})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Batches keep each transaction under badger's size limits for big rooms.
	const batchSize = 512
	for start := 0; start < len(keys); start += batchSize {
		end := min(start+batchSize, len(keys))
		err := m.db.Update(func(txn *badger.Txn) error {
			for _, d := range keys[start:end] {
				if err := txn.Delete(d.key); err != nil {
					return err
				}
				if err := txn.Delete(msgIdxKey(d.id)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return deleted, err
		}
		for _, d := range keys[start:end] {
			deleted = append(deleted, d.id)
		}
	}
	return deleted, nil
}

func readMessage(txn *badger.Txn, messageID uuid.UUID) (domain.Message, []byte, error) {
	idxItem, err := txn.Get(msgIdxKey(messageID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, nil, roomerr.E(roomerr.KindNotFound, "message %s not found", messageID)
	}
	if err != nil {
		return domain.Message{}, nil, err
	}
	key, err := idxItem.ValueCopy(nil)
	if err != nil {
		return domain.Message{}, nil, err
	}
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, nil, roomerr.E(roomerr.KindNotFound, "message %s not found", messageID)
	}
	if err != nil {
		return domain.Message{}, nil, err
	}
	var msg domain.Message
	err = item.Value(func(v []byte) error {
		return json.Unmarshal(v, &msg)
	})
	if err != nil {
		return domain.Message{}, nil, err
	}
	return msg, key, nil
}
