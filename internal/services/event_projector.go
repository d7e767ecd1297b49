package services

import (
	"context"
	"fmt"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
)

// EventProjector consumes the auction event stream and maintains the
// derived read models: the event log and the per-auction counters. The
// bidding path never writes these directly.
type EventProjector struct {
	eventLog domain.EventLogRepository
	counters domain.CounterStore
	log      logger.Logger
}

func NewEventProjector(eventLog domain.EventLogRepository, counters domain.CounterStore, log logger.Logger) *EventProjector {
	return &EventProjector{
		eventLog: eventLog,
		counters: counters,
		log:      log,
	}
}

func (p *EventProjector) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	p.log.Info("Starting event projector")
	return subscriber.SubscribeToAuctionEvents(ctx, func(event *domain.AuctionEvent) error {
		return p.Handle(ctx, event)
	})
}

func (p *EventProjector) Handle(ctx context.Context, event *domain.AuctionEvent) error {
	p.log.Debug("Handling auction event", "type", event.Type, "auction_id", event.AuctionID)

	if p.eventLog != nil {
		if err := p.eventLog.SaveEvent(ctx, event); err != nil {
			return fmt.Errorf("save event %s: %w", event.ID, err)
		}
	}
	if p.counters == nil {
		return nil
	}

	switch event.Type {
	case domain.EventBidPlaced:
		return p.counters.Increment(ctx, event.AuctionID, domain.CounterBidsPlaced, 1)
	case domain.EventBidSuperseded:
		return p.counters.Increment(ctx, event.AuctionID, domain.CounterBidsSuperseded, 1)
	case domain.EventBidWithdrawn:
		return p.counters.Increment(ctx, event.AuctionID, domain.CounterBidsWithdrawn, 1)
	case domain.EventAuctionStatusChanged:
		return p.counters.Increment(ctx, event.AuctionID, domain.CounterStatusChanges, 1)
	case domain.EventAuctionFinalized:
		return p.counters.MarkFinalized(ctx, event.AuctionID)
	}

	return fmt.Errorf("unknown event type %q", event.Type)
}

func (p *EventProjector) Counters(ctx context.Context, auctionID string) (*domain.AuctionCounters, error) {
	return p.counters.GetCounters(ctx, auctionID)
}
