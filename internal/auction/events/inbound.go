package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClientMessage is the envelope for every client-to-server message.
type ClientMessage struct {
	Type ClientMessageType `json:"type"`
	Data json.RawMessage   `json:"data"`
}

// ClientMessageType identifies an inbound message.
type ClientMessageType string

const (
	ClientTypeNewUser     ClientMessageType = "newUser"
	ClientTypePlaceBid    ClientMessageType = "send:bid"
	ClientTypeSendMessage ClientMessageType = "send:message"
)

// ErrMalformedMessage is returned for messages that fail schema validation.
var ErrMalformedMessage = errors.New("malformed client message")

// AnnouncePayload marks the sender's identity online.
type AnnouncePayload struct {
	Username string `json:"username"`
}

// PlaceBidPayload is a bid or buy-now attempt. The bidder identity is taken
// from the authenticated connection, never from the payload.
type PlaceBidPayload struct {
	ItemID uuid.UUID       `json:"item_id"`
	Amount decimal.Decimal `json:"amount"`
	BuyNow bool            `json:"buy_now"`
}

// SendMessagePayload is a point-to-point chat message.
type SendMessagePayload struct {
	Receiver string `json:"receiver"`
	Body     string `json:"body"`
}

// DecodeClientMessage parses raw bytes into a validated, typed payload.
// Malformed messages are rejected here, before any routing happens.
func DecodeClientMessage(raw []byte) (ClientMessageType, any, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.Type {
	case ClientTypeNewUser:
		var payload AnnouncePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return msg.Type, nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if payload.Username == "" {
			return msg.Type, nil, fmt.Errorf("%w: username is required", ErrMalformedMessage)
		}
		return msg.Type, payload, nil

	case ClientTypePlaceBid:
		var payload PlaceBidPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return msg.Type, nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if payload.ItemID == uuid.Nil {
			return msg.Type, nil, fmt.Errorf("%w: item_id is required", ErrMalformedMessage)
		}
		if payload.Amount.IsNegative() {
			return msg.Type, nil, fmt.Errorf("%w: amount must not be negative", ErrMalformedMessage)
		}
		return msg.Type, payload, nil

	case ClientTypeSendMessage:
		var payload SendMessagePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return msg.Type, nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if payload.Receiver == "" || payload.Body == "" {
			return msg.Type, nil, fmt.Errorf("%w: receiver and body are required", ErrMalformedMessage)
		}
		return msg.Type, payload, nil

	default:
		return msg.Type, nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, msg.Type)
	}
}
