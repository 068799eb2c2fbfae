package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gavelhouse/gavel/internal/auction"
	"github.com/gavelhouse/gavel/internal/auction/events"
	"github.com/gavelhouse/gavel/internal/models"
	"github.com/gavelhouse/gavel/internal/storage/memory"
)

// staticValidator maps fixed tokens to identities.
type staticValidator struct {
	tokens map[string]string
}

func (v *staticValidator) ValidateToken(token string) (string, error) {
	username, ok := v.tokens[token]
	if !ok {
		return "", errors.New("invalid or expired token")
	}
	return username, nil
}

type gatewayFixture struct {
	server   *httptest.Server
	store    *memory.Storage
	registry *Registry
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	store := memory.New()
	for _, username := range []string{"alice", "bob"} {
		require.NoError(t, store.SaveUser(context.Background(), &models.User{
			ID:       uuid.New(),
			Username: username,
			Email:    username + "@example.com",
		}))
	}

	registry := NewRegistry()
	fanout := NewFanout(registry)
	locks := auction.NewItemLocks()
	arbiter := auction.NewArbiter(store, locks, fanout)

	validator := &staticValidator{tokens: map[string]string{
		"alice-token": "alice",
		"bob-token":   "bob",
	}}

	coordinator := NewCoordinator(DefaultConnectionConfig(), registry, fanout, arbiter, store, validator)
	server := httptest.NewServer(http.HandlerFunc(coordinator.HandleAuction))
	t.Cleanup(server.Close)

	return &gatewayFixture{server: server, store: store, registry: registry}
}

func (f *gatewayFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// waitForEvent reads frames until an event of the wanted type arrives,
// skipping unrelated broadcasts.
func waitForEvent(t *testing.T, ws *websocket.Conn, want events.Type) *events.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, ws.SetReadDeadline(deadline))

	for time.Now().Before(deadline) {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", want)

		var event events.Event
		require.NoError(t, json.Unmarshal(data, &event))
		if event.Type == want {
			return &event
		}
	}
	t.Fatalf("timed out waiting for %s", want)
	return nil
}

func sendClient(t *testing.T, ws *websocket.Conn, msgType events.ClientMessageType, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	msg, err := json.Marshal(events.ClientMessage{Type: msgType, Data: data})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, msg))
}

func TestHandshakeRejectsMissingOrBadToken(t *testing.T) {
	f := newGatewayFixture(t)
	base := "ws" + strings.TrimPrefix(f.server.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"?token=forged", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnectBroadcastsJoinAndSetsOnline(t *testing.T) {
	f := newGatewayFixture(t)
	ws := f.dial(t, "alice-token")

	event := waitForEvent(t, ws, events.TypeUserJoined)
	payload, err := events.ParsePayload(event)
	require.NoError(t, err)
	assert.Equal(t, "alice", payload.(events.PresencePayload).Username)

	require.Eventually(t, func() bool {
		user, err := f.store.GetUserByUsername(context.Background(), "alice")
		return err == nil && user.Online
	}, time.Second, 5*time.Millisecond)

	_, ok := f.registry.Resolve("alice")
	assert.True(t, ok)
}

func TestBidRoundTrip(t *testing.T) {
	f := newGatewayFixture(t)

	item := &models.Item{
		ID:            uuid.New(),
		Description:   "vintage clock",
		CurrentBid:    decimal.RequireFromString("10.00"),
		BuyNowPrice:   decimal.RequireFromString("100.00"),
		RemainingTime: 60,
		Owner:         "alice",
	}
	require.NoError(t, f.store.SaveItem(context.Background(), item))

	alice := f.dial(t, "alice-token")
	bob := f.dial(t, "bob-token")
	waitForEvent(t, alice, events.TypeUserJoined)
	waitForEvent(t, bob, events.TypeUserJoined)

	sendClient(t, bob, events.ClientTypePlaceBid, events.PlaceBidPayload{
		ItemID: item.ID,
		Amount: decimal.RequireFromString("25.00"),
	})

	for _, ws := range []*websocket.Conn{alice, bob} {
		event := waitForEvent(t, ws, events.TypeBidUpdate)
		payload, err := events.ParsePayload(event)
		require.NoError(t, err)
		update := payload.(events.BidUpdatePayload)
		assert.Equal(t, item.ID, update.ItemID)
		assert.Equal(t, "bob", update.WinningUser, "bidder identity comes from the connection")
		assert.True(t, update.CurrentBid.Equal(decimal.RequireFromString("25.00")))
	}
}

func TestRejectedBidOnlyReachesBidder(t *testing.T) {
	f := newGatewayFixture(t)

	item := &models.Item{
		ID:            uuid.New(),
		Description:   "vintage clock",
		CurrentBid:    decimal.RequireFromString("50.00"),
		BuyNowPrice:   decimal.RequireFromString("100.00"),
		RemainingTime: 60,
		Owner:         "alice",
	}
	require.NoError(t, f.store.SaveItem(context.Background(), item))

	bob := f.dial(t, "bob-token")
	waitForEvent(t, bob, events.TypeUserJoined)

	sendClient(t, bob, events.ClientTypePlaceBid, events.PlaceBidPayload{
		ItemID: item.ID,
		Amount: decimal.RequireFromString("10.00"),
	})

	event := waitForEvent(t, bob, events.TypeBidRejected)
	payload, err := events.ParsePayload(event)
	require.NoError(t, err)
	rejected := payload.(events.BidRejectedPayload)
	assert.Equal(t, item.ID, rejected.ItemID)
	assert.NotEmpty(t, rejected.Reason)
}

func TestChatDelivery(t *testing.T) {
	f := newGatewayFixture(t)

	alice := f.dial(t, "alice-token")
	bob := f.dial(t, "bob-token")
	waitForEvent(t, alice, events.TypeUserJoined)
	waitForEvent(t, bob, events.TypeUserJoined)

	sendClient(t, alice, events.ClientTypeSendMessage, events.SendMessagePayload{
		Receiver: "bob",
		Body:     "going once",
	})

	event := waitForEvent(t, bob, events.TypeChatMessage)
	payload, err := events.ParsePayload(event)
	require.NoError(t, err)
	msg := payload.(events.ChatMessagePayload)
	assert.Equal(t, "alice", msg.Sender, "sender identity comes from the connection")
	assert.Equal(t, "going once", msg.Body)
}

func TestChatToOfflineReceiverIsDropped(t *testing.T) {
	f := newGatewayFixture(t)

	alice := f.dial(t, "alice-token")
	waitForEvent(t, alice, events.TypeUserJoined)

	sendClient(t, alice, events.ClientTypeSendMessage, events.SendMessagePayload{
		Receiver: "bob",
		Body:     "anyone there?",
	})

	// The connection stays healthy; a follow-up round trip still works.
	sendClient(t, alice, events.ClientTypeNewUser, events.AnnouncePayload{Username: "alice"})
	waitForEvent(t, alice, events.TypeUserJoined)
}

func TestMalformedMessagesAreDropped(t *testing.T) {
	f := newGatewayFixture(t)

	alice := f.dial(t, "alice-token")
	waitForEvent(t, alice, events.TypeUserJoined)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not json at all")))
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"send:bid","data":{}}`)))

	// The connection survives malformed input.
	sendClient(t, alice, events.ClientTypeNewUser, events.AnnouncePayload{Username: "alice"})
	waitForEvent(t, alice, events.TypeUserJoined)
}

func TestReconnectSupersedesOldConnection(t *testing.T) {
	f := newGatewayFixture(t)

	first := f.dial(t, "alice-token")
	waitForEvent(t, first, events.TypeUserJoined)

	second := f.dial(t, "alice-token")
	waitForEvent(t, second, events.TypeUserJoined)

	// The stale connection gets closed by the server.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	require.Eventually(t, func() bool {
		return f.registry.Len() == 1
	}, time.Second, 5*time.Millisecond)

	conn, ok := f.registry.Resolve("alice")
	require.True(t, ok)

	// The replacement stays registered and usable.
	sendClient(t, second, events.ClientTypeNewUser, events.AnnouncePayload{Username: "alice"})
	waitForEvent(t, second, events.TypeUserJoined)
	assert.NotNil(t, conn)
}

func TestDisconnectBroadcastsLeave(t *testing.T) {
	f := newGatewayFixture(t)

	alice := f.dial(t, "alice-token")
	bob := f.dial(t, "bob-token")
	waitForEvent(t, alice, events.TypeUserJoined)
	waitForEvent(t, bob, events.TypeUserJoined)

	require.NoError(t, bob.Close())

	event := waitForEvent(t, alice, events.TypeUserLeft)
	payload, err := events.ParsePayload(event)
	require.NoError(t, err)
	assert.Equal(t, "bob", payload.(events.PresencePayload).Username)

	require.Eventually(t, func() bool {
		user, err := f.store.GetUserByUsername(context.Background(), "bob")
		return err == nil && !user.Online
	}, time.Second, 5*time.Millisecond)
}
