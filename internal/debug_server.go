package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"roomcore/domain"
)

//go:embed inspect.html
var templatesFS embed.FS

// InspectRow is one decoded store entry rendered by the debug view.
type InspectRow struct {
	Key    string
	Kind   string
	ID     string
	Status string
	Detail string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type inspectPage struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// InspectHandler renders the key space under ?prefix= as an HTML table,
// decoding room and message documents through mapper. Operators use it to
// eyeball live state without stopping the server.
func InspectHandler(db *badger.DB, mapper RowMapper, stats StatsProvider) http.Handler {
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))
	if mapper == nil {
		mapper = RoomMapper
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "room:"
		}

		page := inspectPage{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}
		if stats != nil {
			page.Stats = stats()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					page.Items = append(page.Items, mapper(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, page)
	})
}

// StartDebugServer serves the inspect view on its own port, off the public
// router, and never blocks startup. A listen failure only loses the view.
func StartDebugServer(db *badger.DB, port int, mapper RowMapper, stats StatsProvider, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/inspect", InspectHandler(db, mapper, stats))

	address := fmt.Sprintf("0.0.0.0:%d", port)
	go func() {
		log.Info("Debug inspector listening", "address", address, "path", "/inspect")
		if err := http.ListenAndServe(address, mux); err != nil {
			log.Warn("debug inspector stopped", "error", err)
		}
	}()
}

// RoomMapper decodes room, message and index entries into display rows.
// Unrecognized keys fall back to a raw size row.
func RoomMapper(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:    key,
		Kind:   "raw",
		Detail: fmt.Sprintf("%d bytes", len(val)),
	}
	switch {
	case strings.HasPrefix(key, "room:"):
		var room domain.Chatroom
		if json.Unmarshal(val, &room) != nil {
			return row
		}
		row.Kind = "room"
		row.ID = room.ID
		row.Status = "active"
		if !room.Active {
			row.Status = "deleted"
		}
		row.Detail = fmt.Sprintf("%s, %d members, %d messages", room.Name, len(room.Members), room.MessageCount)
	case strings.HasPrefix(key, "msg:"):
		var msg domain.Message
		if json.Unmarshal(val, &msg) != nil {
			return row
		}
		row.Kind = "message"
		row.ID = msg.ID.String()
		row.Status = fmt.Sprintf("seq %d", msg.Seq)
		row.Detail = msg.SenderID + ": " + snippet(msg.Content)
	case strings.HasPrefix(key, "idx:"):
		row.Kind = "index"
		row.Detail = string(val)
	}
	return row
}

func snippet(content string) string {
	const maxRunes = 48
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	return string(runes[:maxRunes]) + "..."
}
