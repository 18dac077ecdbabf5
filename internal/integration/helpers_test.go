package integration

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"freshershub/internal/app"
	"freshershub/internal/bus"
	"freshershub/internal/config"
	"freshershub/internal/realtime"
	"freshershub/pkg/interfaces"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

const waitFor = 3 * time.Second

var identities = map[string]types.Identity{
	"tok-alice": {ID: "alice", Name: "Alice", Role: types.RoleStudent, Courses: []string{"cs101"}},
	"tok-bob":   {ID: "bob", Name: "Bob", Role: types.RoleStudent},
	"tok-staff": {ID: "tutor", Name: "Tutor", Role: types.RoleStaff},
}

type server struct {
	app     *app.Application
	httpURL string
	wsURL   string
}

// startServer runs the full application on a loopback port
func startServer(t *testing.T) *server {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database.DatabasePath = filepath.Join(dir, "hub.db")
	cfg.Database.RetryDelay = 10 * time.Millisecond
	cfg.Auth.Tokens = identities
	cfg.Auth.AdminToken = "admin"

	application, err := app.NewApplication(cfg, logger.NewNop())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	base := "http://" + ln.Addr().String()
	return &server{
		app:     application,
		httpURL: base,
		wsURL:   "ws" + strings.TrimPrefix(base, "http") + "/ws",
	}
}

// memoryStore is a CredentialStore for clients that do not need persistence
type memoryStore struct {
	mu    sync.Mutex
	token string
}

func (m *memoryStore) Token(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", interfaces.ErrNotFound
	}
	return m.token, nil
}

func (m *memoryStore) SetToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memoryStore) ClearToken(context.Context) error {
	return m.SetToken(context.Background(), "")
}

// client is a realtime session plus a log of every bus event it saw
type client struct {
	session *realtime.Session
	events  *bus.Bus

	mu   sync.Mutex
	seen map[types.EventName][]any
}

func newClient(t *testing.T, srv *server, token string) *client {
	t.Helper()
	events := bus.New(logger.NewNop())
	c := &client{events: events, seen: make(map[types.EventName][]any)}

	names := []types.EventName{
		types.EventAuthenticated, types.EventAuthError, types.EventForceDisconnect,
		types.EventConnectionEstablished, types.EventConnectionLost, types.EventConnectionFailed,
		types.EventSystemMessage, types.EventUserStatusChange, types.EventJoinedRoom,
		types.EventNotification, types.EventProgressUpdate, types.EventGoalAchievement,
	}
	for _, name := range names {
		name := name
		events.On(name, func(data any) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.seen[name] = append(c.seen[name], data)
		})
	}

	store := &memoryStore{token: token}
	c.session = realtime.NewSession(
		realtime.NewWebSocketDialer(srv.wsURL, logger.NewNop()),
		store,
		events,
		realtime.WithConfig(realtime.Config{
			BaseDelay:   20 * time.Millisecond,
			MaxAttempts: 3,
			DialTimeout: time.Second,
		}),
	)
	t.Cleanup(c.session.Disconnect)
	return c
}

func (c *client) count(name types.EventName) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen[name])
}

func (c *client) last(name types.EventName) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.seen[name]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// connect dials and waits until the session is authenticated
func (c *client) connect(t *testing.T) {
	t.Helper()
	c.session.Connect(context.Background())
	require.Eventually(t, c.session.IsAuthenticated, waitFor, 10*time.Millisecond, "client never authenticated")
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, waitFor, 10*time.Millisecond, msg)
}
