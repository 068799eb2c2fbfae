package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/gavelhouse/gavel/internal/auction/events"
	"github.com/gavelhouse/gavel/internal/models"
	"github.com/gavelhouse/gavel/internal/storage"
)

// DefaultTickInterval is the period of the shared auction countdown.
const DefaultTickInterval = time.Second

// Clock is the single global driver that advances the countdown of every
// open item. Each tick decrements remaining time by one second under the
// per-item lock, persists the change, and emits one items:update broadcast
// carrying the whole batch. Items that reach zero are handed to the arbiter
// for expiry finalization.
type Clock struct {
	store    storage.Store
	locks    *ItemLocks
	fanout   Broadcaster
	arbiter  *Arbiter
	clock    clockwork.Clock
	interval time.Duration
}

// NewClock creates the auction clock. Pass clockwork.NewRealClock() in
// production and a FakeClock in tests.
func NewClock(store storage.Store, locks *ItemLocks, fanout Broadcaster, arbiter *Arbiter, clk clockwork.Clock, interval time.Duration) *Clock {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Clock{
		store:    store,
		locks:    locks,
		fanout:   fanout,
		arbiter:  arbiter,
		clock:    clk,
		interval: interval,
	}
}

// Run drives ticks at the configured interval until the context is
// cancelled. Per-item failures never stop the driver.
func (c *Clock) Run(ctx context.Context) error {
	log.Info().Dur("interval", c.interval).Msg("auction clock started")

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("auction clock shutting down")
			return nil
		case <-ticker.Chan():
			c.Tick(ctx)
		}
	}
}

// Tick advances every open item by one second.
func (c *Clock) Tick(ctx context.Context) {
	items, err := c.store.ListOpenItems(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list open items for tick")
		return
	}

	batch := make([]*models.Item, 0, len(items))
	var expired []uuid.UUID

	for _, snapshot := range items {
		item, ok := c.decrement(ctx, snapshot.ID)
		if !ok {
			continue
		}
		batch = append(batch, item)
		if item.RemainingTime == 0 {
			expired = append(expired, item.ID)
		}
	}

	if len(batch) > 0 {
		event, err := events.New(events.TypeItemsUpdate, events.ItemsUpdatePayload{
			Items:    batch,
			TickedAt: c.clock.Now().UTC(),
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to build items:update event")
		} else {
			c.fanout.Broadcast(event)
		}
	}

	for _, id := range expired {
		if err := c.arbiter.FinalizeExpired(ctx, id); err != nil {
			log.Error().Err(err).Str("item_id", id.String()).Msg("failed to finalize expired item")
		}
	}
}

// decrement applies one tick to a single item under its lock. The item is
// re-read inside the critical section because a bid may have closed it since
// the snapshot was taken. A persistence failure skips the item for this
// tick; the next tick retries it.
func (c *Clock) decrement(ctx context.Context, id uuid.UUID) (*models.Item, bool) {
	mu := c.locks.Get(id)
	mu.Lock()
	defer mu.Unlock()

	item, err := c.store.GetItem(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("item_id", id.String()).Msg("skipping item for this tick")
		return nil, false
	}
	if !item.Open() {
		return nil, false
	}

	item.RemainingTime--
	if item.RemainingTime < 0 {
		item.RemainingTime = 0
	}

	if err := c.store.SaveItem(ctx, item); err != nil {
		log.Warn().Err(err).Str("item_id", id.String()).Msg("failed to persist tick, retrying next tick")
		return nil, false
	}
	return item, true
}
