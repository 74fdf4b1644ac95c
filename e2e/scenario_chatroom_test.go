package e2e

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ChatroomSuite struct {
	BaseHTTPSuite
}

func TestChatroomSuite(t *testing.T) {
	suite.Run(t, new(ChatroomSuite))
}

// One pass over the public surface: room creation, membership, invites,
// messaging and moderation against a live deployment.
func (s *ChatroomSuite) TestChatroomLifecycle() {
	t := s.T()

	s.Step("Create room")
	var room struct {
		ID string `json:"id"`
	}
	code := s.Do(t, http.MethodPost, "/api/rooms", "e2e-alice", map[string]any{
		"name":       "e2e-room",
		"visibility": "public",
		"settings":   map[string]any{"max_members": 10, "allow_invites": true},
	}, &room)
	s.Require().Equal(http.StatusCreated, code)
	s.Require().NotEmpty(room.ID)

	s.Step("Join and send")
	code = s.Do(t, http.MethodPost, "/api/rooms/"+room.ID+"/join", "e2e-bob", nil, nil)
	s.Require().Equal(http.StatusOK, code)

	var msg struct {
		ID  string `json:"id"`
		Seq int64  `json:"seq"`
	}
	code = s.Do(t, http.MethodPost, "/api/rooms/"+room.ID+"/messages", "e2e-bob",
		map[string]any{"content": "hello from e2e"}, &msg)
	s.Require().Equal(http.StatusCreated, code)
	s.Require().Equal(int64(1), msg.Seq)

	s.Step("Invite flow")
	var invite struct {
		Invite struct {
			Code string `json:"code"`
		} `json:"invite"`
	}
	code = s.Do(t, http.MethodPost, "/api/rooms/"+room.ID+"/invites", "e2e-alice",
		map[string]any{"max_uses": 1}, &invite)
	s.Require().Equal(http.StatusCreated, code)

	code = s.Do(t, http.MethodPost, "/api/invites/"+invite.Invite.Code+"/redeem", "e2e-carol", nil, nil)
	s.Require().Equal(http.StatusOK, code)
	code = s.Do(t, http.MethodPost, "/api/invites/"+invite.Invite.Code+"/redeem", "e2e-dave", nil, nil)
	s.Require().Equal(http.StatusGone, code)

	s.Step("Moderation")
	code = s.Do(t, http.MethodPost, "/api/rooms/"+room.ID+"/ban", "e2e-alice",
		map[string]any{"user_id": "e2e-carol", "reason": "e2e cleanup"}, nil)
	s.Require().Equal(http.StatusNoContent, code)
	code = s.Do(t, http.MethodPost, "/api/rooms/"+room.ID+"/join", "e2e-carol", nil, nil)
	s.Require().Equal(http.StatusForbidden, code)

	s.Step("Delete room")
	code = s.Do(t, http.MethodDelete, "/api/rooms/"+room.ID, "e2e-alice", nil, nil)
	s.Require().Equal(http.StatusNoContent, code)
	code = s.Do(t, http.MethodGet, "/api/rooms/"+room.ID+"/messages", "e2e-alice", nil, nil)
	s.Require().Equal(http.StatusNotFound, code)
}
