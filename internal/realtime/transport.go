package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"freshershub/pkg/interfaces"
	"freshershub/pkg/logger"
)

const (
	sendBuffer   = 100
	writeTimeout = 5 * time.Second
)

// WebSocketDialer opens gorilla websocket connections to the hub server
type WebSocketDialer struct {
	URL    string
	Header http.Header
	dialer *websocket.Dialer
	log    logger.Logger
}

// NewWebSocketDialer returns a Dialer for url (ws:// or wss://)
func NewWebSocketDialer(url string, log logger.Logger) *WebSocketDialer {
	if log == nil {
		log = logger.NewNop()
	}
	return &WebSocketDialer{
		URL:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		log:    log,
	}
}

// Dial connects and starts the reader. handler.OnOpen runs before the
// first OnFrame; OnClose runs exactly once when the reader stops.
func (d *WebSocketDialer) Dial(ctx context.Context, handler interfaces.FrameHandler) (interfaces.Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, d.URL, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}

	c := newWSConn(ws, d.log)
	handler.OnOpen(c)
	go c.readLoop(handler)
	return c, nil
}

// wsConn serialises writes through a single goroutine.
// ARCHITECTURAL DISCOVERY: gorilla connections support one concurrent writer
type wsConn struct {
	ws        *websocket.Conn
	writeCh   chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	log       logger.Logger
}

func newWSConn(ws *websocket.Conn, log logger.Logger) *wsConn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		ws:      ws,
		writeCh: make(chan []byte, sendBuffer),
		ctx:     ctx,
		cancel:  cancel,
		log:     log,
	}
	go c.writeLoop()
	return c
}

func (c *wsConn) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				c.Close()
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *wsConn) readLoop(handler interfaces.FrameHandler) {
	var closeErr error
	defer func() {
		c.Close()
		handler.OnClose(closeErr)
	}()

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				closeErr = err
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		handler.OnFrame(data)
	}
}

// Send queues a frame without blocking the caller for longer than the
// write timeout
func (c *wsConn) Send(frame []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- frame:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Close stops the writer and closes the socket; the reader then reports
// OnClose
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}
