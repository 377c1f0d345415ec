package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"social-realtime/internal/auth"
	"social-realtime/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

// Client is one socket. Its identity comes from the handshake token; its
// registration lives in the Registry.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	claims  *auth.Claims
	info    ConnInfo
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
}

// NewClient wraps a socket. conn may be nil for in-process clients.
func NewClient(id string, conn *websocket.Conn, claims *auth.Claims, info ConnInfo, limiter *rate.Limiter) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		claims:  claims,
		info:    info,
		limiter: limiter,
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// UserID returns the authenticated user.
func (c *Client) UserID() int {
	if c.claims == nil {
		return 0
	}
	return c.claims.UserID
}

// IsAdmin reports whether the handshake token carried the admin role.
func (c *Client) IsAdmin() bool { return c.claims.IsAdmin() }

// Send queues a frame. Frames for closed or saturated clients are dropped.
func (c *Client) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		log.Warn().Str("conn_id", c.id).Msg("send buffer full, dropping frame")
		return false
	}
}

// Close stops further sends and lets the write pump finish.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// readPump processes inbound frames one at a time so events from the same
// connection are handled in order. It returns the error that ended the read loop.
func (c *Client) readPump(ctx context.Context, d *Dispatcher) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			log.Debug().Str("conn_id", c.id).Msg("dropping malformed frame")
			continue
		}
		d.Handle(ctx, c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
