package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
	"auction-core/pkg/utils"
)

// mutation inspects a fresh snapshot of one auction and returns the change
// to commit plus the events to publish once it is committed. A nil change
// means there is nothing to write.
type mutation func(auction *domain.Auction, ledger *domain.Ledger, now time.Time) (*domain.Change, []*domain.AuctionEvent, error)

// auctionGuard linearizes all operations on one auction: a per-auction lock
// serializes callers in this process and the store's version check catches
// writers in other processes. Version conflicts are retried from a fresh
// read up to maxRetries times.
type auctionGuard struct {
	store      domain.AuctionStore
	locker     domain.AuctionLocker
	publisher  domain.EventPublisher
	clock      domain.Clock
	maxRetries int
	log        logger.Logger
}

func (g *auctionGuard) mutate(ctx context.Context, auctionID string, fn mutation) (*domain.Auction, error) {
	unlock, err := g.locker.Lock(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("lock auction %s: %w", auctionID, err)
	}

	defer unlock()

	auction, events, err := g.commitWithRetry(ctx, auctionID, fn)
	if err != nil {
		return nil, err
	}

	// Published under the lock so consumers see events in commit order.
	g.publish(ctx, events)
	return auction, nil
}

func (g *auctionGuard) commitWithRetry(ctx context.Context, auctionID string, fn mutation) (*domain.Auction, []*domain.AuctionEvent, error) {
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		auction, ledger, err := g.load(ctx, auctionID)
		if err != nil {
			return nil, nil, err
		}

		change, events, err := fn(auction, ledger, g.clock.Now())
		if err != nil {
			return nil, nil, err
		}
		if change == nil {
			return auction, nil, nil
		}

		err = g.store.Apply(ctx, change)
		if err == nil {
			return change.Auction, events, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, nil, fmt.Errorf("commit auction %s: %w", auctionID, err)
		}
		g.log.Warn("Version conflict, retrying", "auction_id", auctionID, "attempt", attempt+1)
	}

	g.log.Error("Giving up after repeated version conflicts", "auction_id", auctionID, "retries", g.maxRetries)
	return nil, nil, domain.ErrConflict
}

// read runs fn against one locked snapshot without writing anything.
func (g *auctionGuard) read(ctx context.Context, auctionID string, fn func(auction *domain.Auction, ledger *domain.Ledger)) error {
	unlock, err := g.locker.Lock(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("lock auction %s: %w", auctionID, err)
	}
	defer unlock()

	auction, ledger, err := g.load(ctx, auctionID)
	if err != nil {
		return err
	}
	fn(auction, ledger)
	return nil
}

func (g *auctionGuard) load(ctx context.Context, auctionID string) (*domain.Auction, *domain.Ledger, error) {
	auction, err := g.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, nil, err
	}
	bids, err := g.store.ListBids(ctx, auctionID)
	if err != nil {
		return nil, nil, fmt.Errorf("list bids for auction %s: %w", auctionID, err)
	}
	return auction, domain.NewLedger(bids), nil
}

// publish runs after the commit. A failed publish is logged and never
// undoes the committed state.
func (g *auctionGuard) publish(ctx context.Context, events []*domain.AuctionEvent) {
	if g.publisher == nil {
		return
	}
	for _, event := range events {
		if event.ID == "" {
			event.ID = utils.GenerateID("evt")
		}
		if err := g.publisher.PublishAuctionEvent(ctx, event); err != nil {
			g.log.Error("Failed to publish event", "type", event.Type, "auction_id", event.AuctionID, "error", err)
		}
	}
}
