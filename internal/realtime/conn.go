package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// ErrClosed is returned by Emit after the connection has been closed.
var ErrClosed = errors.New("realtime: connection closed")

// Conn is an authenticated websocket connection to the event channel.
// Reads happen on the goroutine running Run; Emit is safe for concurrent use.
type Conn struct {
	ws  *websocket.Conn
	hub *Hub
	log zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to rawURL authenticating with a bearer token. Inbound events
// are delivered to hub once Run is called.
func Dial(ctx context.Context, rawURL, token string, hub *Hub, log zerolog.Logger) (*Conn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Proxy:            http.ProxyFromEnvironment,
	}
	ws, resp, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: http %d: %w", rawURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	return &Conn{
		ws:   ws,
		hub:  hub,
		log:  log,
		done: make(chan struct{}),
	}, nil
}

// Emit sends one event.
func (c *Conn) Emit(ev Event, payload any) error {
	f, err := NewFrame(ev, payload)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(f); err != nil {
		return fmt.Errorf("emit %s: %w", ev, err)
	}
	return nil
}

// Run reads frames until the connection fails, ctx is cancelled or Close is
// called. A local disconnect event is dispatched on exit.
func (c *Conn) Run(ctx context.Context) error {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.keepalive(ctx)
	defer c.hub.Dispatch(Frame{Event: EventDisconnect})
	defer c.Close()

	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				c.log.Warn().Err(err).Msg("dropping malformed frame")
				continue
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if f.Event == "" {
			c.log.Warn().Msg("dropping frame without event name")
			continue
		}
		c.hub.Dispatch(f)
	}
}

func (c *Conn) keepalive(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				c.log.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

// Close sends a close frame and releases the connection. It is idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
