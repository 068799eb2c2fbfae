package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Conn represents one live WebSocket connection to a participant. The
// registry holds a non-owning reference; the pumps own the socket lifetime.
type Conn struct {
	ID       string
	Username string

	ws          *websocket.Conn
	send        chan []byte
	coordinator *Coordinator

	// sendMu orders trySend against close so a fanout holding a stale
	// snapshot can never write to a closed channel.
	sendMu sync.Mutex
	closed bool

	ConnectedAt time.Time
	LastPing    time.Time
}

// close shuts the send channel exactly once, releasing the write pump.
func (c *Conn) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

func newConn(ws *websocket.Conn, username string, c *Coordinator) *Conn {
	return &Conn{
		ID:          uuid.New().String(),
		Username:    username,
		ws:          ws,
		send:        make(chan []byte, c.config.SendBufferSize),
		coordinator: c,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}
}

// trySend queues data without blocking. A full buffer means the client is
// slow or dead; the connection is torn down rather than stalling fanout.
func (c *Conn) trySend(data []byte) bool {
	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return false
	}
	select {
	case c.send <- data:
		c.sendMu.Unlock()
		return true
	default:
		c.sendMu.Unlock()
		log.Warn().
			Str("connection_id", c.ID).
			Str("username", c.Username).
			Msg("connection send buffer full, closing connection")
		c.coordinator.drop(c)
		return false
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Conn) writePump() {
	cfg := c.coordinator.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				// Channel was closed
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Conn) readPump() {
	cfg := c.coordinator.config
	defer func() {
		c.coordinator.disconnect(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.coordinator.handleClientMessage(c, message)
		c.ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}
