package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"roomcore/auth"
	"roomcore/moderation"
	"roomcore/observability"
	"roomcore/realtime"
	"roomcore/repositories"
	"roomcore/services"
)

var jwtSecret = []byte("test-secret")

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	rooms := repositories.NewRoomRepository(db, log)
	messages := repositories.NewMessageRepository(db, log)
	search := repositories.NewSearchRepository(writer, log)
	media := repositories.NewMediaRepository(db, log, 1<<20)

	censor, err := moderation.NewCensor([]string{"badger"}, '*')
	require.NoError(t, err)

	monitor := observability.NewMonitor(log)
	registry := realtime.NewRegistry()
	fanout := realtime.NewFanout(log, registry, time.Second).
		WithCounters(monitor.EventsDelivered, monitor.EventsDropped)

	handler := &Handler{
		Members:    services.NewMembershipManager(rooms, messages, search, fanout, log),
		Moderation: services.NewModerationEngine(rooms, fanout, log),
		Invites:    services.NewInviteLinkService(rooms, fanout, "https://chat.example.com", log),
		Bus:        services.NewMessageBus(rooms, messages, search, media, censor, fanout, log, 1024),
		Media:      media,
		Registry:   registry,
		Monitor:    monitor,
		Log:        log,
	}
	return NewRouter(handler, jwtSecret)
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwtSecret)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		r.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func createTestRoom(t *testing.T, router *gin.Engine, creator string) string {
	t.Helper()
	w := do(t, router, http.MethodPost, "/api/rooms", creator, gin.H{
		"name":       "general",
		"visibility": "public",
		"settings":   gin.H{"max_members": 100, "allow_invites": true},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID
}

func Test_Room_Lifecycle_Over_HTTP(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(t)

	roomID := createTestRoom(t, router, "alice")

	w := do(t, router, http.MethodGet, "/api/rooms/"+roomID, "bob", nil)
	req.Equal(http.StatusOK, w.Code)

	w = do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/join", "bob", nil)
	req.Equal(http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/rooms/"+roomID+"/members", "bob", nil)
	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "alice")
	req.Contains(w.Body.String(), "bob")

	w = do(t, router, http.MethodDelete, "/api/rooms/"+roomID, "bob", nil)
	req.Equal(http.StatusForbidden, w.Code)

	w = do(t, router, http.MethodDelete, "/api/rooms/"+roomID, "alice", nil)
	req.Equal(http.StatusNoContent, w.Code)
}

func Test_Messages_Over_HTTP(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(t)
	roomID := createTestRoom(t, router, "alice")

	w := do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/messages", "alice",
		gin.H{"content": "that badger again"})
	req.Equal(http.StatusCreated, w.Code)
	req.Contains(w.Body.String(), "that ****** again")

	// non-members can neither send nor read
	w = do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/messages", "stranger",
		gin.H{"content": "hi"})
	req.Equal(http.StatusForbidden, w.Code)
	req.Contains(w.Body.String(), "not_member")

	w = do(t, router, http.MethodGet, "/api/rooms/"+roomID+"/messages", "alice", nil)
	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "that ****** again")

	w = do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/messages", "alice",
		gin.H{"content": ""})
	req.Equal(http.StatusBadRequest, w.Code)
}

func Test_Invite_Flow_Over_HTTP(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(t)
	roomID := createTestRoom(t, router, "alice")

	w := do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/invites", "alice",
		gin.H{"max_uses": 1})
	req.Equal(http.StatusCreated, w.Code)
	var created struct {
		Invite struct {
			Code string `json:"code"`
		} `json:"invite"`
		URL string `json:"url"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &created))
	req.Contains(created.URL, "/invite/"+created.Invite.Code)

	w = do(t, router, http.MethodPost, "/api/invites/"+created.Invite.Code+"/redeem", "bob", nil)
	req.Equal(http.StatusOK, w.Code)

	w = do(t, router, http.MethodPost, "/api/invites/"+created.Invite.Code+"/redeem", "carol", nil)
	req.Equal(http.StatusGone, w.Code)
	req.Contains(w.Body.String(), "exhausted")
}

func Test_Moderation_Status_Mapping(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(t)
	roomID := createTestRoom(t, router, "alice")

	w := do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/join", "bob", nil)
	req.Equal(http.StatusOK, w.Code)

	// kicking a non-member maps to 404, not 403
	w = do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/kick", "alice",
		gin.H{"user_id": "ghost"})
	req.Equal(http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/ban", "alice",
		gin.H{"user_id": "bob", "reason": "spam"})
	req.Equal(http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/join", "bob", nil)
	req.Equal(http.StatusForbidden, w.Code)
	req.Contains(w.Body.String(), "banned")

	w = do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/mute", "bob",
		gin.H{"user_id": "alice"})
	req.Equal(http.StatusForbidden, w.Code)
}

func Test_Stats_And_Health_Are_Public(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/health", "", nil)
	req.Equal(http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/stats", "", nil)
	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "rooms_created")
}

func Test_Unauthenticated_Requests_Rejected(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/api/rooms/whatever", "", nil)
	req.Equal(http.StatusUnauthorized, w.Code)
}
