package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item represents an auction listing.
//
// CurrentBid is monotonically non-decreasing while the item is open.
// Once Sold flips true the item is terminal: CurrentBid, WinningUser and
// RemainingTime must not change again, with RemainingTime pinned at 0.
type Item struct {
	ID            uuid.UUID       `json:"id"`
	Description   string          `json:"description"`
	CurrentBid    decimal.Decimal `json:"current_bid"`
	BuyNowPrice   decimal.Decimal `json:"buy_now_price"`
	RemainingTime int             `json:"remaining_time"` // seconds
	WinningUser   string          `json:"winning_user,omitempty"`
	Owner         string          `json:"owner"`
	Sold          bool            `json:"sold"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Open reports whether the item can still accept bids.
func (i *Item) Open() bool {
	return !i.Sold && i.RemainingTime > 0
}

// HasBid reports whether at least one bid has been accepted for the item.
func (i *Item) HasBid() bool {
	return i.WinningUser != ""
}
