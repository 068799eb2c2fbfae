package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gavelhouse/gavel/internal/models"
)

// Event is the envelope shared by every server-to-client event.
type Event struct {
	ID        string          `json:"id"`        // Event UUID
	Type      Type            `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// Type identifies an outbound auction event.
type Type string

const (
	TypeItemsUpdate Type = "items:update"
	TypeBidUpdate   Type = "bid:update"
	TypeItemSold    Type = "item:sold"
	TypeBidRejected Type = "bid:rejected"
	TypeChatMessage Type = "chat:message"
	TypeUserJoined  Type = "user:joined"
	TypeUserLeft    Type = "user:left"
)

// ItemsUpdatePayload carries the full batch of items touched by one clock
// tick. One broadcast per tick regardless of item count.
type ItemsUpdatePayload struct {
	Items    []*models.Item `json:"items"`
	TickedAt time.Time      `json:"ticked_at"`
}

// BidUpdatePayload announces an accepted bid.
type BidUpdatePayload struct {
	ItemID      uuid.UUID       `json:"item_id"`
	CurrentBid  decimal.Decimal `json:"current_bid"`
	WinningUser string          `json:"winning_user"`
}

// ItemSoldPayload announces a completed sale.
type ItemSoldPayload struct {
	ItemID      uuid.UUID       `json:"item_id"`
	Description string          `json:"description"`
	WinningUser string          `json:"winning_user"`
	FinalPrice  decimal.Decimal `json:"final_price"`
}

// BidRejectedPayload is delivered only to the bidder whose bid failed.
type BidRejectedPayload struct {
	ItemID uuid.UUID `json:"item_id"`
	Reason string    `json:"reason"`
}

// ChatMessagePayload is delivered only to the receiver.
type ChatMessagePayload struct {
	Sender string    `json:"sender"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// PresencePayload announces a participant joining or leaving.
type PresencePayload struct {
	Username string `json:"username"`
}

// New builds an event envelope around the given payload.
func New(eventType Type, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// ParsePayload parses event data into the payload struct for its type.
func ParsePayload(event *Event) (any, error) {
	switch event.Type {
	case TypeItemsUpdate:
		return parseAs[ItemsUpdatePayload](event)
	case TypeBidUpdate:
		return parseAs[BidUpdatePayload](event)
	case TypeItemSold:
		return parseAs[ItemSoldPayload](event)
	case TypeBidRejected:
		return parseAs[BidRejectedPayload](event)
	case TypeChatMessage:
		return parseAs[ChatMessagePayload](event)
	case TypeUserJoined, TypeUserLeft:
		return parseAs[PresencePayload](event)
	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}
}

func parseAs[T any](event *Event) (T, error) {
	var payload T
	err := json.Unmarshal(event.Data, &payload)
	return payload, err
}
