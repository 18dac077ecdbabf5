// Package wstest builds server-side Connections whose outgoing frames can be
// read back in tests.
package wstest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"freshershub/internal/websocket"
	"freshershub/pkg/types"
)

var upgrader = gorillaws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// Peer is a Connection plus the frames that reached its far end
type Peer struct {
	Conn   *websocket.Connection
	frames chan *types.Envelope
}

// NewPeer dials a sink server and wraps the client socket in a Connection
// authenticated as identity. A nil identity leaves it unauthenticated.
func NewPeer(t testing.TB, identity *types.Identity) *Peer {
	t.Helper()
	frames := make(chan *types.Envelope, 64)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			env, err := types.DecodeEnvelope(data)
			if err != nil {
				continue
			}
			frames <- env
		}
	}))
	t.Cleanup(srv.Close)

	ws, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial sink: %v", err)
	}
	conn := websocket.NewConnection(ws)
	t.Cleanup(func() { _ = conn.Close() })
	if identity != nil {
		conn.SetIdentity(identity)
	}
	return &Peer{Conn: conn, frames: frames}
}

// Next waits for the next frame
func (p *Peer) Next(t testing.TB) *types.Envelope {
	t.Helper()
	select {
	case env := <-p.frames:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

// Expect waits for the next frame, checks its name and decodes it into dst
func (p *Peer) Expect(t testing.TB, name types.EventName, dst any) *types.Envelope {
	t.Helper()
	env := p.Next(t)
	if env.Event != name {
		t.Fatalf("expected %s, got %s (%s)", name, env.Event, string(env.Data))
	}
	if dst != nil {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
	}
	return env
}

// Quiet asserts no frame arrives within d
func (p *Peer) Quiet(t testing.TB, d time.Duration) {
	t.Helper()
	select {
	case env := <-p.frames:
		t.Fatalf("unexpected frame %s (%s)", env.Event, string(env.Data))
	case <-time.After(d):
	}
}
