package memory

import (
	"context"
	"sync"

	"auction-core/internal/domain"
)

type CounterStore struct {
	mu       sync.Mutex
	counters map[string]*domain.AuctionCounters
}

func NewCounterStore() *CounterStore {
	return &CounterStore{counters: make(map[string]*domain.AuctionCounters)}
}

func (s *CounterStore) entry(auctionID string) *domain.AuctionCounters {
	c, ok := s.counters[auctionID]
	if !ok {
		c = &domain.AuctionCounters{AuctionID: auctionID}
		s.counters[auctionID] = c
	}
	return c
}

func (s *CounterStore) Increment(ctx context.Context, auctionID, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.entry(auctionID)
	switch field {
	case domain.CounterBidsPlaced:
		c.BidsPlaced += delta
	case domain.CounterBidsSuperseded:
		c.BidsSuperseded += delta
	case domain.CounterBidsWithdrawn:
		c.BidsWithdrawn += delta
	case domain.CounterStatusChanges:
		c.StatusChanges += delta
	}
	return nil
}

func (s *CounterStore) MarkFinalized(ctx context.Context, auctionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(auctionID).Finalized = true
	return nil
}

func (s *CounterStore) GetCounters(ctx context.Context, auctionID string) (*domain.AuctionCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.entry(auctionID)
	return &copied, nil
}

// Directory is a fixed identity -> display name map.
type Directory map[domain.Identity]string

func (d Directory) DisplayName(ctx context.Context, identity domain.Identity) (string, error) {
	if name, ok := d[identity]; ok {
		return name, nil
	}
	return string(identity), nil
}
