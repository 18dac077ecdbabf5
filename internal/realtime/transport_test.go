package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshershub/pkg/interfaces"
	"freshershub/pkg/logger"
)

// echoServer writes back every text frame it receives
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type chanHandler struct {
	mu      sync.Mutex
	opened  bool
	frames  chan []byte
	closed  chan error
	ordered bool
}

func newChanHandler() *chanHandler {
	return &chanHandler{frames: make(chan []byte, 10), closed: make(chan error, 2), ordered: true}
}

func (h *chanHandler) OnOpen(conn interfaces.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = true
}

func (h *chanHandler) OnFrame(frame []byte) {
	h.mu.Lock()
	if !h.opened {
		h.ordered = false
	}
	h.mu.Unlock()
	h.frames <- frame
}

func (h *chanHandler) OnClose(err error) { h.closed <- err }

func TestWebSocketDialer_RoundTrip(t *testing.T) {
	srv := echoServer(t)
	d := NewWebSocketDialer(wsURL(srv), logger.NewNop())
	h := newChanHandler()

	conn, err := d.Dial(context.Background(), h)
	require.NoError(t, err)
	require.NoError(t, conn.Send([]byte(`{"event":"ping"}`)))

	select {
	case frame := <-h.frames:
		assert.JSONEq(t, `{"event":"ping"}`, string(frame))
	case <-time.After(2 * time.Second):
		t.Fatal("no echo received")
	}
	assert.True(t, h.ordered, "OnOpen precedes OnFrame")

	require.NoError(t, conn.Close())
	select {
	case <-h.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called")
	}
	assert.ErrorIs(t, conn.Send([]byte("x")), ErrConnectionClosed)
	assert.NoError(t, conn.Close(), "second close is a no-op")

	select {
	case <-h.closed:
		t.Fatal("OnClose called twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebSocketDialer_ServerDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.Close()
	}))
	defer srv.Close()

	h := newChanHandler()
	_, err := NewWebSocketDialer(wsURL(srv), nil).Dial(context.Background(), h)
	require.NoError(t, err)

	select {
	case err := <-h.closed:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called after server drop")
	}
}

func TestWebSocketDialer_Refused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewWebSocketDialer(wsURL(srv), nil).Dial(context.Background(), newChanHandler())
	assert.Error(t, err)
}

func TestSession_OverWebSocket(t *testing.T) {
	srv := echoServer(t)
	s := NewSession(NewWebSocketDialer(wsURL(srv), nil), nil, nil, WithConfig(noHeartbeat()))

	s.Connect(context.Background())
	require.Equal(t, StateConnected, s.State())

	got := make(chan struct{}, 1)
	s.Bus().On("pong", func(any) { got <- struct{}{} })

	// the echo server reflects ping as ping, which is not inbound; send a pong frame raw
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	require.NoError(t, conn.Send([]byte(`{"event":"pong","data":{"timestamp":"2026-09-21T09:00:00Z"}}`)))

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("pong not dispatched")
	}
	s.Disconnect()
	assert.Equal(t, StateDisconnected, s.State())
}
