package services

import (
	"context"
	"fmt"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
	"auction-core/pkg/utils"
)

const DefaultWithdrawalWindow = 30 * time.Minute

type BidService struct {
	auctionManager   *AuctionManager
	directory        domain.IdentityDirectory
	withdrawalWindow time.Duration
	log              logger.Logger
}

func NewBidService(
	auctionManager *AuctionManager,
	directory domain.IdentityDirectory,
	withdrawalWindow time.Duration,
	log logger.Logger,
) *BidService {
	if withdrawalWindow <= 0 {
		withdrawalWindow = DefaultWithdrawalWindow
	}
	return &BidService{
		auctionManager:   auctionManager,
		directory:        directory,
		withdrawalWindow: withdrawalWindow,
		log:              log,
	}
}

// PlaceBid runs the admission protocol. Checks run in a fixed order and the
// first failure is returned; an accepted bid supersedes every other active
// bid and becomes the new price in one commit.
func (s *BidService) PlaceBid(ctx context.Context, auctionID string, bidder domain.Identity, amount domain.Money, message string) (*domain.Bid, error) {
	s.log.Info("Placing bid", "auction_id", auctionID, "bidder_id", bidder, "amount", amount.String())

	// Let an expired auction close before the bid is judged against it.
	if _, err := s.auctionManager.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	if message == "" {
		message = s.defaultMessage(ctx, bidder, amount)
	}

	var placed *domain.Bid
	_, err := s.auctionManager.guard.mutate(ctx, auctionID, func(auction *domain.Auction, ledger *domain.Ledger, now time.Time) (*domain.Change, []*domain.AuctionEvent, error) {
		if err := checkAdmission(auction, ledger, bidder, amount, now); err != nil {
			return nil, nil, err
		}

		bid := &domain.Bid{
			ID:            utils.GenerateID("bid"),
			AuctionID:     auction.ID,
			Bidder:        bidder,
			Amount:        amount,
			PreviousPrice: auction.CurrentPrice,
			Status:        domain.BidActive,
			Sequence:      int64(auction.BidCount) + 1,
			PlacedAt:      now,
		}

		next := auction.Clone()
		next.CurrentPrice = amount
		next.BidCount++
		next.UpdatedAt = now

		change := &domain.Change{
			Auction:         next,
			ExpectedVersion: auction.Version,
			NewBids:         []*domain.Bid{bid},
		}

		placedEvent := &domain.AuctionEvent{
			Type:          domain.EventBidPlaced,
			AuctionID:     auction.ID,
			SellerID:      auction.Seller,
			Timestamp:     now,
			BidID:         bid.ID,
			BidderID:      bidder,
			Amount:        amount.Ref(),
			PreviousPrice: auction.CurrentPrice.Ref(),
			Message:       message,
		}
		if leader := ledger.Leader(); leader != nil {
			placedEvent.PreviousLeaderBidID = leader.ID
			placedEvent.PreviousLeaderID = leader.Bidder
		}
		events := []*domain.AuctionEvent{placedEvent}

		for _, active := range ledger.ActiveBids() {
			change.BidStatusUpdates = append(change.BidStatusUpdates,
				domain.BidStatusUpdate{BidID: active.ID, Status: domain.BidSuperseded})
			events = append(events, &domain.AuctionEvent{
				Type:                 domain.EventBidSuperseded,
				AuctionID:            auction.ID,
				SellerID:             auction.Seller,
				Timestamp:            now,
				BidID:                active.ID,
				BidderID:             active.Bidder,
				Amount:               active.Amount.Ref(),
				SupersededByBidID:    bid.ID,
				SupersededByBidderID: bidder,
			})
		}

		placed = bid
		return change, events, nil
	})
	if err != nil {
		s.log.Info("Bid rejected", "auction_id", auctionID, "bidder_id", bidder, "amount", amount.String(), "error", err)
		return nil, err
	}

	s.log.Info("Bid accepted", "auction_id", auctionID, "bid_id", placed.ID, "bidder_id", bidder,
		"amount", amount.String(), "previous_price", placed.PreviousPrice.String())
	return placed, nil
}

func checkAdmission(auction *domain.Auction, ledger *domain.Ledger, bidder domain.Identity, amount domain.Money, now time.Time) error {
	if err := auction.CheckAdmissible(now); err != nil {
		return err
	}
	if bidder == auction.Seller {
		return domain.ErrSelfBidForbidden
	}
	if !auction.AdmitsBidder(bidder) {
		return fmt.Errorf("%w: auction is private", domain.ErrForbidden)
	}
	if minimum := auction.MinimumNextBid(); amount.LessThan(minimum) {
		return &domain.BidTooLowError{MinRequired: minimum}
	}
	if standing := ledger.StandingBidOf(bidder); standing != nil && !standing.Amount.LessThan(amount) {
		return domain.ErrRedundantBid
	}
	return nil
}

func (s *BidService) defaultMessage(ctx context.Context, bidder domain.Identity, amount domain.Money) string {
	name := string(bidder)
	if s.directory != nil {
		resolved, err := s.directory.DisplayName(ctx, bidder)
		if err != nil {
			s.log.Warn("Failed to resolve display name", "bidder_id", bidder, "error", err)
		} else if resolved != "" {
			name = resolved
		}
	}
	return BidPlacedMessage(name, amount)
}

// BidPlacedMessage is the user-facing text attached to a bid when the
// caller supplies none.
func BidPlacedMessage(displayName string, amount domain.Money) string {
	return fmt.Sprintf("%s just bid %s, they're winning!!!", displayName, amount.String())
}

// WithdrawBid withdraws a non-leading active bid placed within the
// withdrawal window. The auction price is left as is.
func (s *BidService) WithdrawBid(ctx context.Context, bidID string, actor domain.Identity) error {
	s.log.Info("Withdrawing bid", "bid_id", bidID, "actor", actor)

	stored, err := s.auctionManager.guard.store.GetBid(ctx, bidID)
	if err != nil {
		return err
	}
	if stored.Bidder != actor {
		return fmt.Errorf("%w: bid belongs to another bidder", domain.ErrForbidden)
	}

	_, err = s.auctionManager.guard.mutate(ctx, stored.AuctionID, func(auction *domain.Auction, ledger *domain.Ledger, now time.Time) (*domain.Change, []*domain.AuctionEvent, error) {
		bid := ledger.Find(bidID)
		if bid == nil {
			return nil, nil, fmt.Errorf("bid %s: %w", bidID, domain.ErrNotFound)
		}
		if bid.Status != domain.BidActive {
			return nil, nil, fmt.Errorf("%w: status is %s", domain.ErrNotWithdrawable, bid.Status)
		}
		if bid.Amount.Equal(auction.CurrentPrice) {
			return nil, nil, domain.ErrCannotWithdrawLeadingBid
		}
		if now.Sub(bid.PlacedAt) > s.withdrawalWindow {
			return nil, nil, domain.ErrWithdrawalWindowExpired
		}

		next := auction.Clone()
		next.UpdatedAt = now
		return &domain.Change{
				Auction:          next,
				ExpectedVersion:  auction.Version,
				BidStatusUpdates: []domain.BidStatusUpdate{{BidID: bid.ID, Status: domain.BidWithdrawn}},
			}, []*domain.AuctionEvent{{
				Type:      domain.EventBidWithdrawn,
				AuctionID: auction.ID,
				SellerID:  auction.Seller,
				Timestamp: now,
				BidID:     bid.ID,
				BidderID:  bid.Bidder,
				Amount:    bid.Amount.Ref(),
				ActorID:   actor,
			}}, nil
	})
	if err != nil {
		s.log.Info("Withdrawal rejected", "bid_id", bidID, "actor", actor, "error", err)
		return err
	}

	s.log.Info("Bid withdrawn", "bid_id", bidID, "auction_id", stored.AuctionID)
	return nil
}
