package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
	"auction-core/pkg/utils"

	"golang.org/x/sync/singleflight"
)

type ManagerConfig struct {
	MaxCommitRetries   int
	MinAuctionDuration time.Duration
}

type AuctionManager struct {
	guard       *auctionGuard
	scheduler   domain.AuctionScheduler
	minDuration time.Duration
	closes      singleflight.Group
	log         logger.Logger
}

func NewAuctionManager(
	store domain.AuctionStore,
	locker domain.AuctionLocker,
	eventPub domain.EventPublisher,
	scheduler domain.AuctionScheduler,
	clock domain.Clock,
	cfg ManagerConfig,
	log logger.Logger,
) *AuctionManager {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &AuctionManager{
		guard: &auctionGuard{
			store:      store,
			locker:     locker,
			publisher:  eventPub,
			clock:      clock,
			maxRetries: cfg.MaxCommitRetries,
			log:        log,
		},
		scheduler:   scheduler,
		minDuration: cfg.MinAuctionDuration,
		log:         log,
	}
}

func (am *AuctionManager) SetScheduler(scheduler domain.AuctionScheduler) {
	am.scheduler = scheduler
}

type CreateAuctionRequest struct {
	Title               string
	Seller              domain.Identity
	StartsAt            time.Time
	EndsAt              time.Time
	BasePrice           domain.Money
	MinIncrementPercent int
	Visibility          domain.Visibility
	InvitedBidders      []domain.Identity
}

func (am *AuctionManager) CreateAuction(ctx context.Context, req CreateAuctionRequest) (*domain.Auction, error) {
	auction, err := domain.NewAuction(domain.NewAuctionParams{
		ID:                  utils.GenerateID("auction"),
		Title:               req.Title,
		Seller:              req.Seller,
		StartsAt:            req.StartsAt,
		EndsAt:              req.EndsAt,
		BasePrice:           req.BasePrice,
		MinIncrementPercent: req.MinIncrementPercent,
		Visibility:          req.Visibility,
		InvitedBidders:      req.InvitedBidders,
	}, am.guard.clock.Now(), am.minDuration)
	if err != nil {
		return nil, err
	}

	if err := am.guard.store.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}

	if am.scheduler != nil {
		if err := am.scheduler.ScheduleAuctionClose(ctx, auction.ID, auction.EndsAt); err != nil {
			// The sweep still finds the auction through ListDueAuctions.
			am.log.Error("Failed to schedule auction close", "auction_id", auction.ID, "error", err)
		}
	}

	am.log.Info("Auction created", "auction_id", auction.ID, "seller", auction.Seller,
		"status", auction.Status.String(), "base_price", auction.BasePrice.String(),
		"min_increment", auction.MinIncrementAmount.String())
	return auction, nil
}

// GetAuction returns the auction, closing it first if its end time passed.
func (am *AuctionManager) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	auction, err := am.guard.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return am.closeIfDue(ctx, auction)
}

func (am *AuctionManager) ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	if _, err := am.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	var bids []*domain.Bid
	err := am.guard.read(ctx, auctionID, func(_ *domain.Auction, ledger *domain.Ledger) {
		bids = ledger.Bids()
	})
	return bids, err
}

// GetBidStatistics aggregates one locked snapshot of the ledger.
func (am *AuctionManager) GetBidStatistics(ctx context.Context, auctionID string, filter domain.BidFilter) (*domain.BidStatistics, error) {
	if _, err := am.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	var stats domain.BidStatistics
	err := am.guard.read(ctx, auctionID, func(_ *domain.Auction, ledger *domain.Ledger) {
		stats = ledger.Statistics(filter)
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

const lazyCloseTimeout = 10 * time.Second

// closeIfDue is the lazy close path taken on reads. Concurrent readers of
// the same auction share one close attempt.
func (am *AuctionManager) closeIfDue(ctx context.Context, auction *domain.Auction) (*domain.Auction, error) {
	if !auction.IsDueForClose(am.guard.clock.Now()) {
		return auction, nil
	}

	// The shared attempt outlives any single caller; each caller still
	// stops waiting when its own ctx ends.
	ch := am.closes.DoChan(auction.ID, func() (interface{}, error) {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lazyCloseTimeout)
		defer cancel()
		return am.CloseAuction(closeCtx, auction.ID)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	v, err := res.Val, res.Err
	if err != nil {
		if domain.ErrorKind(err) == domain.KindValidation {
			// Status moved away from active meanwhile; report what is stored.
			return am.guard.store.GetAuction(ctx, auction.ID)
		}
		am.log.Error("Lazy close failed", "auction_id", auction.ID, "error", err)
		return nil, err
	}
	return v.(*domain.Auction), nil
}

// TransitionAuction applies a seller-initiated status change. Moving an
// active auction to finalized closes it early and determines the winner.
func (am *AuctionManager) TransitionAuction(ctx context.Context, auctionID string, target domain.AuctionStatus, actor domain.Identity) (*domain.Auction, error) {
	am.log.Info("Transitioning auction", "auction_id", auctionID, "target", target.String(), "actor", actor)

	auction, err := am.guard.mutate(ctx, auctionID, func(auction *domain.Auction, ledger *domain.Ledger, now time.Time) (*domain.Change, []*domain.AuctionEvent, error) {
		if err := auction.CheckTransition(target, actor); err != nil {
			return nil, nil, err
		}
		if target == domain.AuctionFinalized {
			change, events := finalize(auction, ledger, now, actor)
			return change, events, nil
		}

		next := auction.Clone()
		next.Status = target
		next.UpdatedAt = now
		return &domain.Change{Auction: next, ExpectedVersion: auction.Version},
			[]*domain.AuctionEvent{statusChanged(auction, target, actor, now)}, nil
	})
	if err != nil {
		am.log.Warn("Transition rejected", "auction_id", auctionID, "target", target.String(), "error", err)
		return nil, err
	}

	if target.IsTerminal() && am.scheduler != nil {
		if err := am.scheduler.CancelSchedule(ctx, auctionID); err != nil {
			am.log.Error("Failed to cancel scheduled jobs", "auction_id", auctionID, "error", err)
		}
	}
	return auction, nil
}

// CloseAuction finalizes an active auction whose end time has passed. It is
// idempotent: closing a finalized auction returns it unchanged.
func (am *AuctionManager) CloseAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	closed := false
	auction, err := am.guard.mutate(ctx, auctionID, func(auction *domain.Auction, ledger *domain.Ledger, now time.Time) (*domain.Change, []*domain.AuctionEvent, error) {
		switch {
		case auction.Status == domain.AuctionFinalized:
			return nil, nil, nil
		case auction.Status == domain.AuctionCancelled:
			return nil, nil, fmt.Errorf("%w: auction was cancelled", domain.ErrInvalidTransition)
		case auction.Status != domain.AuctionActive:
			return nil, nil, domain.ErrAuctionNotActive
		case now.Before(auction.EndsAt):
			return nil, nil, domain.ErrAuctionNotEnded
		}
		closed = true
		change, events := finalize(auction, ledger, now, "")
		return change, events, nil
	})
	if err != nil {
		return nil, err
	}

	if closed {
		am.log.Info("Auction closed", "auction_id", auctionID, "winning_bid_id", auction.WinningBidID,
			"final_price", auction.CurrentPrice.String())
		if am.scheduler != nil {
			if err := am.scheduler.CancelSchedule(ctx, auctionID); err != nil {
				am.log.Error("Failed to cancel scheduled jobs", "auction_id", auctionID, "error", err)
			}
		}
	}
	return auction, nil
}

// CloseDueAuctions closes every auction past its end time and reports how
// many were closed. Used by the periodic sweep.
func (am *AuctionManager) CloseDueAuctions(ctx context.Context) (int, error) {
	due, err := am.guard.store.ListDueAuctions(ctx, am.guard.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("list due auctions: %w", err)
	}

	closed := 0
	for _, auction := range due {
		if _, err := am.CloseAuction(ctx, auction.ID); err != nil {
			if errors.Is(err, domain.ErrAuctionNotActive) || errors.Is(err, domain.ErrAuctionNotEnded) {
				continue
			}
			am.log.Error("Failed to close auction", "auction_id", auction.ID, "error", err)
			continue
		}
		closed++
	}
	return closed, nil
}

// finalize selects the highest active bid as winner and moves the auction
// to finalized.
func finalize(auction *domain.Auction, ledger *domain.Ledger, now time.Time, actor domain.Identity) (*domain.Change, []*domain.AuctionEvent) {
	next := auction.Clone()
	next.Status = domain.AuctionFinalized
	next.UpdatedAt = now

	change := &domain.Change{Auction: next, ExpectedVersion: auction.Version}
	finalized := &domain.AuctionEvent{
		Type:      domain.EventAuctionFinalized,
		AuctionID: auction.ID,
		SellerID:  auction.Seller,
		Timestamp: now,
	}

	if winner := ledger.Leader(); winner != nil {
		next.WinningBidID = winner.ID
		change.BidStatusUpdates = []domain.BidStatusUpdate{{BidID: winner.ID, Status: domain.BidWinning}}
		finalized.WinnerBidID = winner.ID
		finalized.WinnerID = winner.Bidder
		finalized.Amount = winner.Amount.Ref()
	}

	return change, []*domain.AuctionEvent{
		statusChanged(auction, domain.AuctionFinalized, actor, now),
		finalized,
	}
}

func statusChanged(auction *domain.Auction, target domain.AuctionStatus, actor domain.Identity, now time.Time) *domain.AuctionEvent {
	return &domain.AuctionEvent{
		Type:       domain.EventAuctionStatusChanged,
		AuctionID:  auction.ID,
		SellerID:   auction.Seller,
		Timestamp:  now,
		FromStatus: auction.Status.String(),
		ToStatus:   target.String(),
		ActorID:    actor,
	}
}
