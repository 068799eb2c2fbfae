package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gavelhouse/gavel/internal/auction"
	"github.com/gavelhouse/gavel/internal/auction/events"
	"github.com/gavelhouse/gavel/internal/storage"
)

// TokenValidator is what the coordinator needs from the auth collaborator:
// it verifies an opaque, time-bounded token and yields the caller identity.
type TokenValidator interface {
	ValidateToken(token string) (username string, err error)
}

// BidSubmitter is what the coordinator needs from the bid arbiter.
type BidSubmitter interface {
	SubmitBid(ctx context.Context, req auction.BidRequest) (*auction.BidResult, error)
}

// Coordinator owns the connection lifecycle and routes inbound requests. It
// holds no business logic of its own: bids go to the arbiter, chat goes to
// the fanout, presence is lifecycle bookkeeping.
type Coordinator struct {
	config   ConnectionConfig
	registry *Registry
	fanout   *Fanout
	arbiter  BidSubmitter
	store    storage.Store
	auth     TokenValidator
	upgrader websocket.Upgrader
}

// NewCoordinator wires the connection lifecycle handler.
func NewCoordinator(config ConnectionConfig, registry *Registry, fanout *Fanout, arbiter BidSubmitter, store storage.Store, auth TokenValidator) *Coordinator {
	return &Coordinator{
		config:   config,
		registry: registry,
		fanout:   fanout,
		arbiter:  arbiter,
		store:    store,
		auth:     auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
	}
}

// HandleAuction upgrades an authenticated HTTP request to a WebSocket
// connection. The token is checked before the upgrade; an absent, invalid or
// expired token rejects the connection before any event routing occurs.
func (c *Coordinator) HandleAuction(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		http.Error(w, "authorization token is required", http.StatusUnauthorized)
		return
	}

	username, err := c.auth.ValidateToken(token)
	if err != nil {
		log.Warn().Err(err).Msg("websocket handshake rejected")
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	conn := newConn(ws, username, c)
	if stale := c.registry.Register(username, conn); stale != nil {
		stale.close()
		stale.ws.Close()
	}

	go conn.writePump()
	go conn.readPump()

	c.setOnline(r.Context(), username, true)
	c.broadcastPresence(events.TypeUserJoined, username)

	log.Info().
		Str("connection_id", conn.ID).
		Str("username", username).
		Int("live_connections", c.registry.Len()).
		Msg("WebSocket connection established")
}

// handleClientMessage validates and routes one inbound message. Malformed
// payloads are dropped here and never reach the arbiter.
func (c *Coordinator) handleClientMessage(conn *Conn, raw []byte) {
	msgType, payload, err := events.DecodeClientMessage(raw)
	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", conn.ID).
			Str("username", conn.Username).
			Msg("dropping malformed client message")
		return
	}

	switch p := payload.(type) {
	case events.AnnouncePayload:
		// The authenticated identity is authoritative; the payload username
		// is informational only.
		if p.Username != conn.Username {
			log.Warn().
				Str("username", conn.Username).
				Str("claimed", p.Username).
				Msg("presence announce for mismatched identity")
		}
		c.setOnline(context.Background(), conn.Username, true)
		c.broadcastPresence(events.TypeUserJoined, conn.Username)

	case events.PlaceBidPayload:
		_, err := c.arbiter.SubmitBid(context.Background(), auction.BidRequest{
			ItemID: p.ItemID,
			Bidder: conn.Username,
			Amount: p.Amount,
			BuyNow: p.BuyNow,
		})
		if err != nil {
			log.Error().
				Err(err).
				Str("item_id", p.ItemID.String()).
				Str("bidder", conn.Username).
				Msg("bid submission failed")
		}

	case events.SendMessagePayload:
		event, err := events.New(events.TypeChatMessage, events.ChatMessagePayload{
			Sender: conn.Username,
			Body:   p.Body,
			SentAt: time.Now().UTC(),
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to build chat event")
			return
		}
		c.fanout.SendTo(p.Receiver, event)

	default:
		log.Debug().Str("type", string(msgType)).Msg("unhandled client message type")
	}
}

// disconnect tears down a connection. Unregistering is prompt and idempotent;
// a superseded connection going away must not evict its replacement or
// broadcast a departure.
func (c *Coordinator) disconnect(conn *Conn) {
	wasCurrent := c.registry.Unregister(conn)
	conn.close()

	if !wasCurrent {
		return
	}

	c.setOnline(context.Background(), conn.Username, false)
	c.broadcastPresence(events.TypeUserLeft, conn.Username)

	log.Info().
		Str("connection_id", conn.ID).
		Str("username", conn.Username).
		Msg("connection closed")
}

// drop force-closes a connection that can no longer keep up.
func (c *Coordinator) drop(conn *Conn) {
	c.disconnect(conn)
	conn.ws.Close()
}

func (c *Coordinator) broadcastPresence(eventType events.Type, username string) {
	event, err := events.New(eventType, events.PresencePayload{Username: username})
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build presence event")
		return
	}
	c.fanout.Broadcast(event)
}

// setOnline records the presence flag on the user record. Failures are
// logged only; presence bookkeeping never interrupts the connection.
func (c *Coordinator) setOnline(ctx context.Context, username string, online bool) {
	user, err := c.store.GetUserByUsername(ctx, username)
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("failed to load user for presence update")
		return
	}
	user.Online = online
	if err := c.store.SaveUser(ctx, user); err != nil {
		log.Warn().Err(err).Str("username", username).Msg("failed to persist presence update")
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
