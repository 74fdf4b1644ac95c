package repositories

import (
	"context"
	"log/slog"
	"sync"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"roomcore/domain"
)

// SearchHit is one full-text match inside a room's history.
type SearchHit struct {
	MessageID uuid.UUID
	SenderID  string
	Content   string
}

// SearchRepository maintains a bluge full-text index over message content,
// scoped per room through a keyword field. Indexing is best-effort relative
// to the message append: a failed index write is logged, never surfaced to
// the sender.
type SearchRepository struct {
	mu     sync.Mutex
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchRepository(writer *bluge.Writer, log *slog.Logger) *SearchRepository {
	return &SearchRepository{writer: writer, log: log}
}

func (s *SearchRepository) Index(msg domain.Message) error {
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewKeywordField("room", msg.RoomID)).
		AddField(bluge.NewTextField("content", msg.Content).StoreValue()).
		AddField(bluge.NewKeywordField("sender", msg.SenderID).StoreValue())

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Update(doc.ID(), doc)
}

func (s *SearchRepository) Delete(messageID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Delete(bluge.Identifier(messageID.String()))
}

// DeleteRoom purges the index entries of a cascade-deleted room.
func (s *SearchRepository) DeleteRoom(messageIDs []uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range messageIDs {
		if err := s.writer.Delete(bluge.Identifier(id.String())); err != nil {
			s.log.Warn("search purge failed", "message", id, "error", err)
		}
	}
}

// Search returns the best matches for terms within one room, newest-ranked by
// relevance, plus the total hit count.
func (s *SearchRepository) Search(ctx context.Context, roomID, terms string, limit int) ([]SearchHit, uint64, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Warn("closing search reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(roomID).SetField("room"))

	request := bluge.NewTopNSearch(limit, query).WithStandardAggregations()
	iter, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, err
	}

	var hits []SearchHit
	for {
		match, err := iter.Next()
		if err != nil {
			return nil, 0, err
		}
		if match == nil {
			break
		}
		var hit SearchHit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					hit.MessageID = id
				}
			case "content":
				hit.Content = string(value)
			case "sender":
				hit.SenderID = string(value)
			}
			return true
		})
		if err != nil {
			return nil, 0, err
		}
		hits = append(hits, hit)
	}
	return hits, iter.Aggregations().Count(), nil
}
