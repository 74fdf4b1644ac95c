package repositories

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"roomcore/roomerr"
)

// allowedMediaTypes is the closed set of content types accepted for sharing.
var allowedMediaTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"application/pdf",
	"audio/mpeg",
	"audio/wav",
}

// Media describes one stored blob. The blob itself lives under a separate key
// so metadata listings never load payloads.
type Media struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"room_id"`
	UploaderID  string    `json:"uploader_id"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	At          time.Time `json:"at"`
}

// MediaRepository stores shared files in BadgerDB. The content type is
// sniffed from the payload, never trusted from the client.
type MediaRepository struct {
	db      *badger.DB
	log     *slog.Logger
	maxSize int
}

func NewMediaRepository(db *badger.DB, log *slog.Logger, maxSize int) *MediaRepository {
	return &MediaRepository{db: db, log: log, maxSize: maxSize}
}

func mediaKey(id string) []byte     { return []byte("media:" + id) }
func mediaMetaKey(id string) []byte { return []byte("mediameta:" + id) }

// Store sniffs and validates the payload, then persists blob and metadata in
// one transaction.
func (m *MediaRepository) Store(roomID, uploaderID string, data []byte) (Media, error) {
	if len(data) == 0 {
		return Media{}, roomerr.E(roomerr.KindValidation, "empty media payload")
	}
	if m.maxSize > 0 && len(data) > m.maxSize {
		return Media{}, roomerr.E(roomerr.KindValidation, "media exceeds %d bytes", m.maxSize)
	}
	detected := mimetype.Detect(data)
	if !mimetype.EqualsAny(detected.String(), allowedMediaTypes...) {
		return Media{}, roomerr.E(roomerr.KindValidation, "unsupported media type %s", detected.String())
	}

	media := Media{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		UploaderID:  uploaderID,
		ContentType: detected.String(),
		Size:        len(data),
		At:          time.Now().UTC(),
	}
	meta, err := json.Marshal(media)
	if err != nil {
		return Media{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(mediaKey(media.ID), data); err != nil {
			return err
		}
		return txn.Set(mediaMetaKey(media.ID), meta)
	})
	if err != nil {
		return Media{}, err
	}
	return media, nil
}

func (m *MediaRepository) Get(id string) (Media, []byte, error) {
	var media Media
	var data []byte
	err := m.db.View(func(txn *badger.Txn) error {
		metaItem, err := txn.Get(mediaMetaKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return roomerr.E(roomerr.KindNotFound, "media %s not found", id)
		}
		if err != nil {
			return err
		}
		if err := metaItem.Value(func(v []byte) error { return json.Unmarshal(v, &media) }); err != nil {
			return err
		}
		blobItem, err := txn.Get(mediaKey(id))
		if err != nil {
			return err
		}
		data, err = blobItem.ValueCopy(nil)
		return err
	})
	if err != nil {
		return Media{}, nil, err
	}
	return media, data, nil
}

// Exists is the cheap check the message bus runs before accepting a media
// reference.
func (m *MediaRepository) Exists(id string) bool {
	err := m.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(mediaMetaKey(id))
		return err
	})
	return err == nil
}
