package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"freshershub/internal/bus"
	"freshershub/internal/clock"
	"freshershub/pkg/interfaces"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

var errRefused = errors.New("connection refused")

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// sent returns the envelopes written so far
func (c *fakeConn) sent(t *testing.T) []*types.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		env, err := types.DecodeEnvelope(f)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) sentNames(t *testing.T) []types.EventName {
	var names []types.EventName
	for _, env := range c.sent(t) {
		names = append(names, env.Event)
	}
	return names
}

// fakeDialer opens fakeConns synchronously, or fails while fail is set
type fakeDialer struct {
	mu      sync.Mutex
	fail    bool
	dials   int
	conns   []*fakeConn
	handler interfaces.FrameHandler
}

func (d *fakeDialer) Dial(ctx context.Context, h interfaces.FrameHandler) (interfaces.Conn, error) {
	d.mu.Lock()
	d.dials++
	if d.fail {
		d.mu.Unlock()
		return nil, errRefused
	}
	conn := &fakeConn{}
	d.conns = append(d.conns, conn)
	d.handler = h
	d.mu.Unlock()

	h.OnOpen(conn)
	return conn, nil
}

func (d *fakeDialer) setFail(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = fail
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) current() interfaces.FrameHandler {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handler
}

// deliver pushes a server envelope through the current connection
func (d *fakeDialer) deliver(t *testing.T, name types.EventName, payload any, roomID string) {
	t.Helper()
	env, err := types.NewEnvelope(name, payload, roomID)
	require.NoError(t, err)
	frame, err := env.Encode()
	require.NoError(t, err)
	d.current().OnFrame(frame)
}

// drop simulates the transport going away underneath the session
func (d *fakeDialer) drop(err error) {
	d.current().OnClose(err)
}

type fakeStore struct {
	mu    sync.Mutex
	token string
}

func (s *fakeStore) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", interfaces.ErrNotFound
	}
	return s.token, nil
}

func (s *fakeStore) SetToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *fakeStore) ClearToken(ctx context.Context) error {
	return s.SetToken(ctx, "")
}

// recorder captures every payload emitted for the names it watches
type recorder struct {
	mu     sync.Mutex
	events map[types.EventName][]any
}

func record(b *bus.Bus, names ...types.EventName) *recorder {
	r := &recorder{events: make(map[types.EventName][]any)}
	for _, name := range names {
		name := name
		b.On(name, func(data any) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events[name] = append(r.events[name], data)
		})
	}
	return r
}

func (r *recorder) count(name types.EventName) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[name])
}

func (r *recorder) last(name types.EventName) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.events[name]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

type harness struct {
	session *Session
	dialer  *fakeDialer
	store   *fakeStore
	clock   *clock.Virtual
	bus     *bus.Bus
}

func newHarness(t *testing.T, token string, cfg Config) *harness {
	t.Helper()
	h := &harness{
		dialer: &fakeDialer{},
		store:  &fakeStore{token: token},
		clock:  clock.NewVirtual(time.Date(2026, 9, 21, 9, 0, 0, 0, time.UTC)),
		bus:    bus.New(logger.NewNop()),
	}
	h.session = NewSession(h.dialer, h.store, h.bus,
		WithConfig(cfg),
		WithScheduler(h.clock),
		WithLogger(logger.NewNop()),
	)
	return h
}

// noHeartbeat is the reconnect policy with the ping timer disabled so the
// virtual clock only holds reconnect timers
func noHeartbeat() Config {
	return Config{BaseDelay: time.Second, MaxAttempts: 5}
}
