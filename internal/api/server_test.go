package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshershub/internal/hub"
	"freshershub/pkg/types"
)

type mockHub struct {
	notified  map[string]*types.Notification
	broadcast []string
}

func newMockHub() *mockHub { return &mockHub{notified: map[string]*types.Notification{}} }

func (m *mockHub) Stats() hub.Stats {
	return hub.Stats{Connections: 3, Rooms: 1, Members: map[string]int{"r1": 2}}
}

func (m *mockHub) Notify(userID string, n *types.Notification) error {
	if userID == "offline" {
		return hub.ErrUserNotConnected
	}
	n.ID = "n1"
	m.notified[userID] = n
	return nil
}

func (m *mockHub) SystemBroadcast(severity, message string) int {
	m.broadcast = append(m.broadcast, severity+":"+message)
	return 3
}

type mockHistory struct{ err error }

func (m mockHistory) History(_ context.Context, roomID string) ([]types.ChatMessage, error) {
	if m.err != nil {
		return nil, m.err
	}
	if roomID != "r1" {
		return nil, nil
	}
	return []types.ChatMessage{{ID: "m1", RoomID: "r1", Message: "hi", MessageType: "text"}}, nil
}

type mockAuth struct{}

var testUsers = map[string]*types.Identity{
	"tok-student": {ID: "s1", Name: "Sam", Role: types.RoleStudent, Courses: []string{"cs101"}},
	"tok-staff":   {ID: "t1", Name: "Tess", Role: types.RoleStaff},
}

func (mockAuth) Authenticate(_ context.Context, token string) (*types.Identity, error) {
	if id, ok := testUsers[token]; ok {
		return id, nil
	}
	return nil, errors.New("unknown token")
}

type mockHealth struct{ err error }

func (m mockHealth) HealthCheck(context.Context) error { return m.err }

func do(t *testing.T, s *Server, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	s := NewServer(newMockHub(), mockHistory{}, mockHealth{}, mockAuth{}, "", nil)
	w := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 3, resp.Connections)

	s = NewServer(newMockHub(), mockHistory{}, mockHealth{err: errors.New("locked")}, mockAuth{}, "", nil)
	w = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_Stats(t *testing.T) {
	s := NewServer(newMockHub(), mockHistory{}, nil, mockAuth{}, "", nil)
	w := do(t, s, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats hub.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Members["r1"])
}

func TestServer_RoomMessages(t *testing.T) {
	s := NewServer(newMockHub(), mockHistory{}, nil, mockAuth{}, "", nil)
	student := []string{"Authorization", "Bearer tok-student"}

	w := do(t, s, http.MethodGet, "/api/rooms/r1/messages", "", student...)
	require.Equal(t, http.StatusOK, w.Code)
	var resp HistoryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "r1", resp.RoomID)
	assert.Len(t, resp.Messages, 1)

	w = do(t, s, http.MethodGet, "/api/rooms/empty/messages", "", student...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"messages":[]`)

	s = NewServer(newMockHub(), mockHistory{err: errors.New("boom")}, nil, mockAuth{}, "", nil)
	w = do(t, s, http.MethodGet, "/api/rooms/r1/messages", "", student...)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServer_RoomMessagesRequireUser(t *testing.T) {
	s := NewServer(newMockHub(), mockHistory{}, nil, mockAuth{}, "", nil)

	w := do(t, s, http.MethodGet, "/api/rooms/r1/messages", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "hi")

	w = do(t, s, http.MethodGet, "/api/rooms/r1/messages", "", "Authorization", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s = NewServer(newMockHub(), mockHistory{}, nil, nil, "", nil)
	w = do(t, s, http.MethodGet, "/api/rooms/r1/messages", "", "Authorization", "Bearer tok-student")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_RoomMessagesAccessPolicy(t *testing.T) {
	s := NewServer(newMockHub(), mockHistory{}, nil, mockAuth{}, "", nil)
	tests := []struct {
		name  string
		token string
		room  string
		want  int
	}{
		{"enrolled course", "tok-student", "course:cs101", http.StatusOK},
		{"other course", "tok-student", "course:math200", http.StatusForbidden},
		{"staff any course", "tok-staff", "course:math200", http.StatusOK},
		{"post room", "tok-student", "post:42", http.StatusOK},
		{"empty course id", "tok-student", "course:", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodGet, "/api/rooms/"+tt.room+"/messages", "", "Authorization", "Bearer "+tt.token)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestServer_Notify(t *testing.T) {
	h := newMockHub()
	s := NewServer(h, mockHistory{}, nil, mockAuth{}, "secret", nil)
	body := `{"userId":"u1","type":"event","title":"Welcome","message":"Fair at 10"}`

	w := do(t, s, http.MethodPost, "/api/notify", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, s, http.MethodPost, "/api/notify", body, "Authorization", "Bearer secret")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Contains(t, h.notified, "u1")
	assert.Equal(t, "Welcome", h.notified["u1"].Title)

	w = do(t, s, http.MethodPost, "/api/notify", `{"userId":"offline","type":"x","title":"t"}`, "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/api/notify", `{"userId":"u1"}`, "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/notify", `not json`, "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_SystemMessage(t *testing.T) {
	h := newMockHub()
	s := NewServer(h, mockHistory{}, nil, mockAuth{}, "", nil)

	w := do(t, s, http.MethodPost, "/api/system-message", `{"type":"warning","message":"Wi-Fi maintenance"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"warning:Wi-Fi maintenance"}, h.broadcast)

	w = do(t, s, http.MethodPost, "/api/system-message", `{"type":"loud","message":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_CORSPreflightAndMethods(t *testing.T) {
	s := NewServer(newMockHub(), mockHistory{}, nil, mockAuth{}, "", nil)

	w := do(t, s, http.MethodOptions, "/api/notify", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, s, http.MethodDelete, "/api/stats", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
