package items

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/gavelhouse/gavel/internal/models"
	"github.com/gavelhouse/gavel/internal/storage"
)

// Validation and authorization errors.
var (
	ErrMissingDescription = errors.New("description is required")
	ErrInvalidStartingBid = errors.New("starting bid must not be negative")
	ErrInvalidBuyNow      = errors.New("buy-now price must exceed the starting bid")
	ErrInvalidDuration    = errors.New("auction duration must be positive")
	ErrNotOwner           = errors.New("only the owner can remove an item")
	ErrItemSold           = errors.New("a sold item cannot be removed")
)

// App handles item listing business logic.
type App struct {
	store storage.Store
}

// NewApp creates a new items App.
func NewApp(store storage.Store) *App {
	return &App{store: store}
}

// CreateItemRequest carries a new listing submission. Owner comes from the
// authenticated session, never from the client payload.
type CreateItemRequest struct {
	Description string
	StartingBid decimal.Decimal
	BuyNowPrice decimal.Decimal
	DurationSec int
	Owner       string
}

// CreateItem validates and stores a new listing. The item starts open with
// no winning user and the countdown initialized to the requested duration.
func (a *App) CreateItem(ctx context.Context, req CreateItemRequest) (*models.Item, error) {
	if req.Description == "" {
		return nil, ErrMissingDescription
	}
	if req.StartingBid.IsNegative() {
		return nil, ErrInvalidStartingBid
	}
	if req.BuyNowPrice.LessThanOrEqual(req.StartingBid) {
		return nil, ErrInvalidBuyNow
	}
	if req.DurationSec <= 0 {
		return nil, ErrInvalidDuration
	}

	item := &models.Item{
		ID:            uuid.New(),
		Description:   req.Description,
		CurrentBid:    req.StartingBid,
		BuyNowPrice:   req.BuyNowPrice,
		RemainingTime: req.DurationSec,
		Owner:         req.Owner,
		CreatedAt:     time.Now().UTC(),
	}

	if err := a.store.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	log.Info().
		Str("item_id", item.ID.String()).
		Str("owner", item.Owner).
		Str("starting_bid", item.CurrentBid.String()).
		Int("duration_sec", item.RemainingTime).
		Msg("item listed")
	return item, nil
}

// GetItem retrieves a single item.
func (a *App) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	return a.store.GetItem(ctx, id)
}

// ListItems returns every item, open and closed.
func (a *App) ListItems(ctx context.Context) ([]*models.Item, error) {
	return a.store.ListItems(ctx)
}

// RemoveItem deletes a listing. Only the owner may remove it, and a sold
// item stays on record.
func (a *App) RemoveItem(ctx context.Context, id uuid.UUID, requester string) error {
	item, err := a.store.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item.Owner != requester {
		return ErrNotOwner
	}
	if item.Sold {
		return ErrItemSold
	}

	if err := a.store.DeleteItem(ctx, id); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	log.Info().Str("item_id", id.String()).Str("owner", requester).Msg("item removed")
	return nil
}
