package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-core/internal/domain"
)

// AuctionStore keeps auctions and bids in process memory. It enforces the
// same version check as the SQL stores and hands out copies only.
type AuctionStore struct {
	mu       sync.RWMutex
	auctions map[string]*domain.Auction
	bids     map[string]*domain.Bid
	byAuc    map[string][]string
}

func NewAuctionStore() *AuctionStore {
	return &AuctionStore{
		auctions: make(map[string]*domain.Auction),
		bids:     make(map[string]*domain.Bid),
		byAuc:    make(map[string][]string),
	}
}

func (s *AuctionStore) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.auctions[auction.ID]; exists {
		return fmt.Errorf("auction %s already exists", auction.ID)
	}
	s.auctions[auction.ID] = auction.Clone()
	return nil
}

func (s *AuctionStore) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", auctionID, domain.ErrNotFound)
	}
	return auction.Clone(), nil
}

func (s *AuctionStore) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bid, ok := s.bids[bidID]
	if !ok {
		return nil, fmt.Errorf("bid %s: %w", bidID, domain.ErrNotFound)
	}
	return bid.Clone(), nil
}

func (s *AuctionStore) ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byAuc[auctionID]
	bids := make([]*domain.Bid, 0, len(ids))
	for _, id := range ids {
		bids = append(bids, s.bids[id].Clone())
	}
	return bids, nil
}

func (s *AuctionStore) ListDueAuctions(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*domain.Auction
	for _, auction := range s.auctions {
		if auction.IsDueForClose(now) {
			due = append(due, auction.Clone())
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].EndsAt.Before(due[j].EndsAt) })
	return due, nil
}

func (s *AuctionStore) Apply(ctx context.Context, change *domain.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.auctions[change.Auction.ID]
	if !ok {
		return fmt.Errorf("auction %s: %w", change.Auction.ID, domain.ErrNotFound)
	}
	if stored.Version != change.ExpectedVersion {
		return domain.ErrVersionConflict
	}
	for _, update := range change.BidStatusUpdates {
		if bid, ok := s.bids[update.BidID]; !ok || bid.AuctionID != stored.ID {
			return fmt.Errorf("bid %s: %w", update.BidID, domain.ErrNotFound)
		}
	}

	for _, update := range change.BidStatusUpdates {
		s.bids[update.BidID].Status = update.Status
	}
	for _, bid := range change.NewBids {
		s.bids[bid.ID] = bid.Clone()
		s.byAuc[bid.AuctionID] = append(s.byAuc[bid.AuctionID], bid.ID)
	}

	change.Auction.Version = change.ExpectedVersion + 1
	s.auctions[change.Auction.ID] = change.Auction.Clone()
	return nil
}

// SeedBid inserts a bid directly, bypassing admission. It exists for
// importing legacy ledgers and for tests that need states admission
// never produces.
func (s *AuctionStore) SeedBid(bid *domain.Bid) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bids[bid.ID] = bid.Clone()
	s.byAuc[bid.AuctionID] = append(s.byAuc[bid.AuctionID], bid.ID)
}
