// Package storetest holds behaviour every domain.AuctionStore must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/utils"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Run exercises store against the AuctionStore contract. Every auction it
// creates gets a fresh id so it can run against a shared database.
func Run(t *testing.T, store domain.AuctionStore) {
	t.Run("create and get", func(t *testing.T) { testCreateAndGet(t, store) })
	t.Run("apply commits atomically", func(t *testing.T) { testApply(t, store) })
	t.Run("apply rejects stale version", func(t *testing.T) { testVersionConflict(t, store) })
	t.Run("apply rolls back on unknown bid", func(t *testing.T) { testRollback(t, store) })
	t.Run("list due auctions", func(t *testing.T) { testListDue(t, store) })
}

func newAuction(t *testing.T, store domain.AuctionStore, edit func(*domain.NewAuctionParams)) *domain.Auction {
	t.Helper()
	params := domain.NewAuctionParams{
		ID:                  utils.GenerateID("auction"),
		Title:               "Store test",
		Seller:              "seller",
		StartsAt:            base,
		EndsAt:              base.Add(2 * time.Hour),
		BasePrice:           domain.NewMoney(1000),
		MinIncrementPercent: 5,
	}
	if edit != nil {
		edit(&params)
	}
	auction, err := domain.NewAuction(params, base, time.Hour)
	assert.NoError(t, err)
	assert.NoError(t, store.CreateAuction(context.Background(), auction))
	return auction
}

func placeBid(auction *domain.Auction, bidder domain.Identity, amount int64) (*domain.Change, *domain.Bid) {
	bid := &domain.Bid{
		ID:            utils.GenerateID("bid"),
		AuctionID:     auction.ID,
		Bidder:        bidder,
		Amount:        domain.NewMoney(amount),
		PreviousPrice: auction.CurrentPrice,
		Status:        domain.BidActive,
		Sequence:      int64(auction.BidCount) + 1,
		PlacedAt:      base.Add(time.Duration(auction.BidCount+1) * time.Minute),
	}
	next := auction.Clone()
	next.CurrentPrice = bid.Amount
	next.BidCount++
	return &domain.Change{Auction: next, ExpectedVersion: auction.Version, NewBids: []*domain.Bid{bid}}, bid
}

func testCreateAndGet(t *testing.T, store domain.AuctionStore) {
	ctx := context.Background()
	created := newAuction(t, store, func(p *domain.NewAuctionParams) {
		p.Visibility = domain.VisibilityPrivate
		p.InvitedBidders = []domain.Identity{"alice", "bob"}
	})

	got, err := store.GetAuction(ctx, created.ID)
	assert.NoError(t, err)
	check.Equal(t, created.ID, got.ID)
	check.Equal(t, created.Seller, got.Seller)
	check.Equal(t, created.Status, got.Status)
	check.Equal(t, created.Version, got.Version)
	check.Equal(t, "1000", got.CurrentPrice.String())
	check.Equal(t, "50", got.MinIncrementAmount.String())
	check.True(t, created.EndsAt.Equal(got.EndsAt))
	check.Equal(t, domain.VisibilityPrivate, got.Visibility)
	check.Equal(t, []domain.Identity{"alice", "bob"}, got.InvitedBidders)

	_, err = store.GetAuction(ctx, "auction_does_not_exist")
	check.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = store.GetBid(ctx, "bid_does_not_exist")
	check.True(t, errors.Is(err, domain.ErrNotFound))
}

func testApply(t *testing.T, store domain.AuctionStore) {
	ctx := context.Background()
	auction := newAuction(t, store, nil)

	change, first := placeBid(auction, "alice", 1050)
	assert.NoError(t, store.Apply(ctx, change))
	check.Equal(t, auction.Version+1, change.Auction.Version)

	auction, err := store.GetAuction(ctx, auction.ID)
	assert.NoError(t, err)
	change, second := placeBid(auction, "bob", 1100)
	change.BidStatusUpdates = []domain.BidStatusUpdate{{BidID: first.ID, Status: domain.BidSuperseded}}
	assert.NoError(t, store.Apply(ctx, change))

	got, err := store.GetAuction(ctx, auction.ID)
	assert.NoError(t, err)
	check.Equal(t, "1100", got.CurrentPrice.String())
	check.Equal(t, 2, got.BidCount)
	check.Equal(t, int64(3), got.Version)

	bids, err := store.ListBids(ctx, auction.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(bids))
	check.Equal(t, first.ID, bids[0].ID)
	check.Equal(t, domain.BidSuperseded, bids[0].Status)
	check.Equal(t, second.ID, bids[1].ID)
	check.Equal(t, domain.BidActive, bids[1].Status)
	check.Equal(t, "1050", bids[1].PreviousPrice.String())

	bid, err := store.GetBid(ctx, second.ID)
	assert.NoError(t, err)
	check.Equal(t, domain.Identity("bob"), bid.Bidder)
	check.Equal(t, int64(2), bid.Sequence)
}

func testVersionConflict(t *testing.T, store domain.AuctionStore) {
	ctx := context.Background()
	auction := newAuction(t, store, nil)

	winner, _ := placeBid(auction, "alice", 1050)
	loser, _ := placeBid(auction, "bob", 1060)

	assert.NoError(t, store.Apply(ctx, winner))
	err := store.Apply(ctx, loser)
	check.True(t, errors.Is(err, domain.ErrVersionConflict))

	bids, err := store.ListBids(ctx, auction.ID)
	assert.NoError(t, err)
	check.Equal(t, 1, len(bids))

	orphan := auction.Clone()
	orphan.ID = "auction_does_not_exist"
	err = store.Apply(ctx, &domain.Change{Auction: orphan, ExpectedVersion: 1})
	check.True(t, errors.Is(err, domain.ErrNotFound))
}

func testRollback(t *testing.T, store domain.AuctionStore) {
	ctx := context.Background()
	auction := newAuction(t, store, nil)

	change, _ := placeBid(auction, "alice", 1050)
	change.BidStatusUpdates = []domain.BidStatusUpdate{{BidID: "bid_does_not_exist", Status: domain.BidSuperseded}}
	err := store.Apply(ctx, change)
	check.True(t, errors.Is(err, domain.ErrNotFound))

	got, err := store.GetAuction(ctx, auction.ID)
	assert.NoError(t, err)
	check.Equal(t, auction.Version, got.Version)
	check.Equal(t, "1000", got.CurrentPrice.String())

	bids, err := store.ListBids(ctx, auction.ID)
	assert.NoError(t, err)
	check.Equal(t, 0, len(bids))
}

func testListDue(t *testing.T, store domain.AuctionStore) {
	ctx := context.Background()
	due := newAuction(t, store, nil)
	later := newAuction(t, store, func(p *domain.NewAuctionParams) {
		p.EndsAt = base.Add(100 * 24 * time.Hour)
	})
	paused := newAuction(t, store, nil)
	next := paused.Clone()
	next.Status = domain.AuctionPaused
	assert.NoError(t, store.Apply(ctx, &domain.Change{Auction: next, ExpectedVersion: paused.Version}))

	auctions, err := store.ListDueAuctions(ctx, base.Add(3*time.Hour))
	assert.NoError(t, err)

	ids := make(map[string]bool)
	for _, a := range auctions {
		check.Equal(t, domain.AuctionActive, a.Status)
		ids[a.ID] = true
	}
	check.True(t, ids[due.ID])
	check.False(t, ids[later.ID])
	check.False(t, ids[paused.ID])
}
