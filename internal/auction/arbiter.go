package auction

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/gavelhouse/gavel/internal/auction/events"
	"github.com/gavelhouse/gavel/internal/storage"
)

// Broadcaster is what the auction core needs from the event fanout.
type Broadcaster interface {
	// Broadcast delivers an event to every live connection.
	Broadcast(event *events.Event)
	// SendTo delivers an event to the one connection mapped to identity,
	// dropping it silently when the identity is offline.
	SendTo(identity string, event *events.Event)
}

// RejectReason explains why a bid was not accepted.
type RejectReason string

const (
	ReasonItemNotFound RejectReason = "item not found"
	ReasonItemClosed   RejectReason = "item is no longer open"
	ReasonOwnItem      RejectReason = "cannot bid on your own item"
	ReasonBidTooLow    RejectReason = "bid must exceed the current bid"
)

// BidRequest is a single bid or buy-now attempt.
type BidRequest struct {
	ItemID uuid.UUID
	Bidder string
	Amount decimal.Decimal
	BuyNow bool
}

// BidResult reports the outcome of a bid to the originating caller. A
// rejection never changes ledger state and is never broadcast; only the
// bidder learns about it.
type BidResult struct {
	Accepted bool
	Reason   RejectReason
	Sold     bool
}

// Arbiter validates and applies bids against the item ledger. All item
// mutations happen under the per-item lock it shares with the auction clock,
// so every accepted bid is evaluated against the latest persisted state.
type Arbiter struct {
	store  storage.Store
	locks  *ItemLocks
	fanout Broadcaster
}

// NewArbiter creates a bid arbiter sharing the given lock set.
func NewArbiter(store storage.Store, locks *ItemLocks, fanout Broadcaster) *Arbiter {
	return &Arbiter{
		store:  store,
		locks:  locks,
		fanout: fanout,
	}
}

// SubmitBid arbitrates one bid. Preconditions are checked in order and the
// first failure short-circuits: item exists, item is open, bidder is not the
// owner, and the amount beats the current bid unless this is a buy-now.
//
// On acceptance the bid is persisted and a bid:update broadcast goes out; if
// the bid is a buy-now, or the item ran out of time while the bid was in
// flight, the sale is completed in the same critical section and an
// item:sold broadcast follows. Events are emitted after the lock is
// released.
func (a *Arbiter) SubmitBid(ctx context.Context, req BidRequest) (*BidResult, error) {
	mu := a.locks.Get(req.ItemID)
	mu.Lock()

	item, err := a.store.GetItem(ctx, req.ItemID)
	if err != nil {
		mu.Unlock()
		if errors.Is(err, storage.ErrItemNotFound) {
			return a.reject(req, ReasonItemNotFound), nil
		}
		return nil, fmt.Errorf("failed to load item for bid: %w", err)
	}

	if !item.Open() {
		mu.Unlock()
		return a.reject(req, ReasonItemClosed), nil
	}
	if item.Owner == req.Bidder {
		mu.Unlock()
		return a.reject(req, ReasonOwnItem), nil
	}
	if !req.BuyNow && req.Amount.LessThanOrEqual(item.CurrentBid) {
		mu.Unlock()
		return a.reject(req, ReasonBidTooLow), nil
	}

	item.CurrentBid = req.Amount
	item.WinningUser = req.Bidder

	sold := req.BuyNow || item.RemainingTime <= 0
	if sold {
		item.Sold = true
		item.RemainingTime = 0
	}

	if err := a.store.SaveItem(ctx, item); err != nil {
		mu.Unlock()
		log.Error().Err(err).
			Str("item_id", req.ItemID.String()).
			Str("bidder", req.Bidder).
			Msg("failed to persist accepted bid")
		return nil, fmt.Errorf("failed to persist bid: %w", err)
	}
	mu.Unlock()

	log.Info().
		Str("item_id", item.ID.String()).
		Str("bidder", req.Bidder).
		Str("amount", req.Amount.String()).
		Bool("buy_now", req.BuyNow).
		Bool("sold", sold).
		Msg("bid accepted")

	a.broadcast(events.TypeBidUpdate, events.BidUpdatePayload{
		ItemID:      item.ID,
		CurrentBid:  item.CurrentBid,
		WinningUser: item.WinningUser,
	})

	if sold {
		a.broadcast(events.TypeItemSold, events.ItemSoldPayload{
			ItemID:      item.ID,
			Description: item.Description,
			WinningUser: item.WinningUser,
			FinalPrice:  item.CurrentBid,
		})
	}

	return &BidResult{Accepted: true, Sold: sold}, nil
}

// FinalizeExpired completes the sale of an item whose clock ran out while it
// had an active bid. An expired item that was never bid on stays unsold and
// permanently closed.
func (a *Arbiter) FinalizeExpired(ctx context.Context, itemID uuid.UUID) error {
	mu := a.locks.Get(itemID)
	mu.Lock()

	item, err := a.store.GetItem(ctx, itemID)
	if err != nil {
		mu.Unlock()
		if errors.Is(err, storage.ErrItemNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load expired item: %w", err)
	}

	if item.Sold || item.RemainingTime > 0 || !item.HasBid() {
		mu.Unlock()
		return nil
	}

	item.Sold = true
	item.RemainingTime = 0

	if err := a.store.SaveItem(ctx, item); err != nil {
		mu.Unlock()
		log.Error().Err(err).
			Str("item_id", itemID.String()).
			Msg("failed to persist expiry sale")
		return fmt.Errorf("failed to persist expiry sale: %w", err)
	}
	mu.Unlock()

	log.Info().
		Str("item_id", item.ID.String()).
		Str("winning_user", item.WinningUser).
		Str("final_price", item.CurrentBid.String()).
		Msg("item sold on expiry")

	a.broadcast(events.TypeItemSold, events.ItemSoldPayload{
		ItemID:      item.ID,
		Description: item.Description,
		WinningUser: item.WinningUser,
		FinalPrice:  item.CurrentBid,
	})
	return nil
}

func (a *Arbiter) reject(req BidRequest, reason RejectReason) *BidResult {
	log.Debug().
		Str("item_id", req.ItemID.String()).
		Str("bidder", req.Bidder).
		Str("reason", string(reason)).
		Msg("bid rejected")

	event, err := events.New(events.TypeBidRejected, events.BidRejectedPayload{
		ItemID: req.ItemID,
		Reason: string(reason),
	})
	if err == nil {
		a.fanout.SendTo(req.Bidder, event)
	}
	return &BidResult{Accepted: false, Reason: reason}
}

func (a *Arbiter) broadcast(eventType events.Type, payload any) {
	event, err := events.New(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	a.fanout.Broadcast(event)
}
