package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"auction-core/internal/domain"
	"auction-core/internal/infrastructure/memory"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"golang.org/x/sync/errgroup"
)

func TestPlaceBidIncrementScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := env.createAuction(t)
	check.Equal(t, "50", auction.MinIncrementAmount.String())

	first := env.placeBid(t, auction.ID, "alice", 1050)
	check.Equal(t, domain.BidActive, first.Status)
	check.Equal(t, "1000", first.PreviousPrice.String())

	current, err := env.manager.GetAuction(ctx, auction.ID)
	assert.NoError(t, err)
	check.Equal(t, "1050", current.CurrentPrice.String())

	_, err = env.bids.PlaceBid(ctx, auction.ID, "bob", domain.NewMoney(1060), "")
	var tooLow *domain.BidTooLowError
	if !errors.As(err, &tooLow) {
		t.Fatalf("expected BidTooLowError, got %v", err)
	}
	check.Equal(t, "1100", tooLow.MinRequired.String())
	check.True(t, errors.Is(err, domain.ErrBidTooLow))

	second := env.placeBid(t, auction.ID, "bob", 1100)
	check.Equal(t, "1050", second.PreviousPrice.String())
	check.Equal(t, int64(2), second.Sequence)

	current, err = env.manager.GetAuction(ctx, auction.ID)
	assert.NoError(t, err)
	check.Equal(t, "1100", current.CurrentPrice.String())
	check.Equal(t, 2, current.BidCount)

	ledger := env.ledger(t, auction.ID)
	check.Equal(t, domain.BidSuperseded, ledger.Find(first.ID).Status)
	check.Equal(t, domain.BidActive, ledger.Find(second.ID).Status)
	check.Equal(t, second.ID, ledger.Leader().ID)

	superseded := env.events.EventsOfType(domain.EventBidSuperseded)
	assert.Equal(t, 1, len(superseded))
	check.Equal(t, first.ID, superseded[0].BidID)
	check.Equal(t, second.ID, superseded[0].SupersededByBidID)
	check.Equal(t, domain.Identity("bob"), superseded[0].SupersededByBidderID)

	placed := env.events.EventsOfType(domain.EventBidPlaced)
	assert.Equal(t, 2, len(placed))
	check.Equal(t, first.ID, placed[1].PreviousLeaderBidID)
	check.Equal(t, domain.Identity("alice"), placed[1].PreviousLeaderID)
	check.Equal(t, "1050", placed[1].PreviousPrice.String())
}

func TestPlaceBidDefaultMessage(t *testing.T) {
	env := newTestEnv(t)
	auction := env.createAuction(t)

	env.placeBid(t, auction.ID, "alice", 1050)
	_, err := env.bids.PlaceBid(context.Background(), auction.ID, "bob", domain.NewMoney(1100), "mine now")
	assert.NoError(t, err)

	placed := env.events.EventsOfType(domain.EventBidPlaced)
	assert.Equal(t, 2, len(placed))
	check.Equal(t, "Alice just bid 1050, they're winning!!!", placed[0].Message)
	check.Equal(t, "mine now", placed[1].Message)

	fractional, err := domain.ParseMoney("12.5")
	assert.NoError(t, err)
	check.Equal(t, "bob just bid 12.5, they're winning!!!", BidPlacedMessage("bob", fractional))
}

func TestPlaceBidRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	public := env.createAuction(t)
	private := env.createAuctionWith(t, func(r *CreateAuctionRequest) {
		r.Visibility = domain.VisibilityPrivate
		r.InvitedBidders = []domain.Identity{"alice"}
	})
	upcoming := env.createAuctionWith(t, func(r *CreateAuctionRequest) {
		r.StartsAt = epoch.Add(time.Hour)
		r.EndsAt = epoch.Add(3 * time.Hour)
	})
	env.placeBid(t, public.ID, "alice", 1050)

	tests := []struct {
		name      string
		auctionID string
		bidder    domain.Identity
		amount    int64
		want      error
	}{
		{"unknown auction", "auction_missing", "alice", 2000, domain.ErrNotFound},
		{"not started", upcoming.ID, "alice", 2000, domain.ErrAuctionNotStarted},
		{"seller bids on own auction", public.ID, "seller", 2000, domain.ErrSelfBidForbidden},
		{"not invited", private.ID, "bob", 2000, domain.ErrForbidden},
		{"below minimum", public.ID, "bob", 1099, domain.ErrBidTooLow},
		{"leader raises below own standing bid", public.ID, "alice", 1040, domain.ErrBidTooLow},
		{"invited bidder below base", private.ID, "alice", 999, domain.ErrBidTooLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.bids.PlaceBid(ctx, tt.auctionID, tt.bidder, domain.NewMoney(tt.amount), "")
			if !errors.Is(err, tt.want) {
				t.Errorf("PlaceBid() error = %v, want %v", err, tt.want)
			}
		})
	}

	current, err := env.manager.GetAuction(ctx, public.ID)
	assert.NoError(t, err)
	check.Equal(t, 1, current.BidCount)
	check.Equal(t, "1050", current.CurrentPrice.String())
}

func TestPlaceBidCheckOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := env.createAuctionWith(t, func(r *CreateAuctionRequest) {
		r.Visibility = domain.VisibilityPrivate
	})

	// Seller on a private auction with a too-low amount: self-bid wins.
	_, err := env.bids.PlaceBid(ctx, auction.ID, "seller", domain.NewMoney(1), "")
	check.True(t, errors.Is(err, domain.ErrSelfBidForbidden))

	// Uninvited and too low: visibility is checked first.
	_, err = env.bids.PlaceBid(ctx, auction.ID, "mallory", domain.NewMoney(1), "")
	check.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = env.manager.TransitionAuction(ctx, auction.ID, domain.AuctionPaused, "seller")
	assert.NoError(t, err)

	// Paused and self-bid: the window and status come first.
	_, err = env.bids.PlaceBid(ctx, auction.ID, "seller", domain.NewMoney(1), "")
	check.True(t, errors.Is(err, domain.ErrAuctionNotActive))
}

func TestPlaceBidRedundant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := env.createAuction(t)

	// A legacy ledger where alice still holds an active bid below the
	// current leader.
	env.placeBid(t, auction.ID, "bob", 1300)
	env.store.SeedBid(&domain.Bid{
		ID:        "bid_legacy",
		AuctionID: auction.ID,
		Bidder:    "alice",
		Amount:    domain.NewMoney(1400),
		Status:    domain.BidActive,
		PlacedAt:  epoch,
	})

	_, err := env.bids.PlaceBid(ctx, auction.ID, "alice", domain.NewMoney(1350), "")
	check.True(t, errors.Is(err, domain.ErrRedundantBid))

	bid, err := env.bids.PlaceBid(ctx, auction.ID, "alice", domain.NewMoney(1500), "")
	assert.NoError(t, err)
	check.Equal(t, 1, countStatus(env.ledger(t, auction.ID), domain.BidActive))
	check.Equal(t, bid.ID, env.ledger(t, auction.ID).Leader().ID)
}

func TestPlaceBidAfterEndRegardlessOfStatus(t *testing.T) {
	ctx := context.Background()

	for _, status := range []domain.AuctionStatus{domain.AuctionActive, domain.AuctionPaused, domain.AuctionDraft, domain.AuctionCancelled} {
		t.Run(status.String(), func(t *testing.T) {
			env := newTestEnv(t)
			auction := env.createAuction(t)

			stored, err := env.store.GetAuction(ctx, auction.ID)
			assert.NoError(t, err)
			next := stored.Clone()
			next.Status = status
			assert.NoError(t, env.store.Apply(ctx, &domain.Change{Auction: next, ExpectedVersion: stored.Version}))

			env.clock.Advance(3 * time.Hour)

			_, err = env.bids.PlaceBid(ctx, auction.ID, "alice", domain.NewMoney(5000), "")
			if !errors.Is(err, domain.ErrAuctionEnded) {
				t.Errorf("PlaceBid() error = %v, want %v", err, domain.ErrAuctionEnded)
			}
		})
	}
}

func TestPlaceBidClosesExpiredAuction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := env.createAuction(t)
	leader := env.placeBid(t, auction.ID, "alice", 1200)

	env.clock.Advance(2 * time.Hour)

	_, err := env.bids.PlaceBid(ctx, auction.ID, "bob", domain.NewMoney(5000), "")
	check.True(t, errors.Is(err, domain.ErrAuctionEnded))

	stored, err := env.store.GetAuction(ctx, auction.ID)
	assert.NoError(t, err)
	check.Equal(t, domain.AuctionFinalized, stored.Status)
	check.Equal(t, leader.ID, stored.WinningBidID)
}

func TestWithdrawBid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := env.createAuction(t)

	leader := env.placeBid(t, auction.ID, "bob", 1100)
	seed := func(id string, status domain.BidStatus, age time.Duration) {
		env.store.SeedBid(&domain.Bid{
			ID:        id,
			AuctionID: auction.ID,
			Bidder:    "alice",
			Amount:    domain.NewMoney(1050),
			Status:    status,
			PlacedAt:  env.clock.Now().Add(-age),
		})
	}
	seed("bid_fresh", domain.BidActive, 10*time.Minute)
	seed("bid_edge", domain.BidActive, 30*time.Minute)
	seed("bid_stale", domain.BidActive, 31*time.Minute)
	seed("bid_old", domain.BidSuperseded, time.Minute)

	tests := []struct {
		name  string
		bidID string
		actor domain.Identity
		want  error
	}{
		{"unknown bid", "bid_missing", "alice", domain.ErrNotFound},
		{"someone else's bid", "bid_fresh", "carol", domain.ErrForbidden},
		{"superseded bid", "bid_old", "alice", domain.ErrNotWithdrawable},
		{"leading bid", leader.ID, "bob", domain.ErrCannotWithdrawLeadingBid},
		{"outside window", "bid_stale", "alice", domain.ErrWithdrawalWindowExpired},
		{"inside window", "bid_fresh", "alice", nil},
		{"window boundary", "bid_edge", "alice", nil},
		{"already withdrawn", "bid_fresh", "alice", domain.ErrNotWithdrawable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.bids.WithdrawBid(ctx, tt.bidID, tt.actor)
			if tt.want == nil {
				check.NoError(t, err)
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("WithdrawBid() error = %v, want %v", err, tt.want)
			}
		})
	}

	ledger := env.ledger(t, auction.ID)
	check.Equal(t, domain.BidWithdrawn, ledger.Find("bid_fresh").Status)
	check.Equal(t, leader.ID, ledger.Leader().ID)

	current, err := env.manager.GetAuction(ctx, auction.ID)
	assert.NoError(t, err)
	check.Equal(t, "1100", current.CurrentPrice.String())
	check.Equal(t, 1, current.BidCount)

	withdrawn := env.events.EventsOfType(domain.EventBidWithdrawn)
	assert.Equal(t, 2, len(withdrawn))
	check.Equal(t, "bid_fresh", withdrawn[0].BidID)
	check.Equal(t, domain.Identity("alice"), withdrawn[0].ActorID)
}

func TestWithdrawnBidNeverWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := env.createAuction(t)

	env.placeBid(t, auction.ID, "bob", 1100)
	env.store.SeedBid(&domain.Bid{
		ID:        "bid_alice",
		AuctionID: auction.ID,
		Bidder:    "alice",
		Amount:    domain.NewMoney(1050),
		Status:    domain.BidActive,
		PlacedAt:  env.clock.Now(),
	})
	assert.NoError(t, env.bids.WithdrawBid(ctx, "bid_alice", "alice"))

	env.clock.Advance(2 * time.Hour)
	closed, err := env.manager.CloseAuction(ctx, auction.ID)
	assert.NoError(t, err)
	check.NotEqual(t, "bid_alice", closed.WinningBidID)
	check.Equal(t, domain.BidWithdrawn, env.ledger(t, auction.ID).Find("bid_alice").Status)
}

func TestConcurrentBidsAreLinearizable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := env.createAuction(t)

	const k = 25
	var g errgroup.Group
	var largest int64

	for i := 0; i < k; i++ {
		bidder := domain.Identity(fmt.Sprintf("bidder-%d", i))
		g.Go(func() error {
			// Keep outbidding the observed price until this bidder gets in.
			for {
				current, err := env.manager.GetAuction(ctx, auction.ID)
				if err != nil {
					return err
				}
				amount := current.MinimumNextBid()
				bid, err := env.bids.PlaceBid(ctx, auction.ID, bidder, amount, "")
				if errors.Is(err, domain.ErrBidTooLow) {
					continue
				}
				if err != nil {
					return err
				}
				for {
					prev := atomic.LoadInt64(&largest)
					v := bid.Amount.Decimal().IntPart()
					if v <= prev || atomic.CompareAndSwapInt64(&largest, prev, v) {
						break
					}
				}
				return nil
			}
		})
	}
	assert.NoError(t, g.Wait())

	current, err := env.manager.GetAuction(ctx, auction.ID)
	assert.NoError(t, err)
	check.Equal(t, k, current.BidCount)
	check.Equal(t, fmt.Sprint(largest), current.CurrentPrice.String())
	check.Equal(t, int64(k+1), current.Version)

	ledger := env.ledger(t, auction.ID)
	assert.Equal(t, k, ledger.Len())
	check.Equal(t, 1, countStatus(ledger, domain.BidActive))
	check.Equal(t, k-1, countStatus(ledger, domain.BidSuperseded))

	// previousPrice forms an unbroken audit chain in commit order.
	price := auction.BasePrice
	for i, b := range ledger.Bids() {
		check.Equal(t, int64(i+1), b.Sequence)
		check.Equal(t, price.String(), b.PreviousPrice.String())
		check.True(t, b.Amount.GreaterThanOrEqual(price.Add(auction.MinIncrementAmount)))
		price = b.Amount
	}

	check.Equal(t, k, len(env.events.EventsOfType(domain.EventBidPlaced)))
	check.Equal(t, k-1, len(env.events.EventsOfType(domain.EventBidSuperseded)))
}

func TestConcurrentBidsAcrossAuctions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const auctions = 8
	ids := make([]string, auctions)
	for i := range ids {
		ids[i] = env.createAuction(t).ID
	}

	var g errgroup.Group
	for _, id := range ids {
		id := id
		for j := 0; j < 5; j++ {
			bidder := domain.Identity(fmt.Sprintf("bidder-%d", j))
			amount := domain.NewMoney(int64(1100 + j*100))
			g.Go(func() error {
				_, err := env.bids.PlaceBid(ctx, id, bidder, amount, "")
				if errors.Is(err, domain.ErrBidTooLow) {
					return nil
				}
				return err
			})
		}
	}
	assert.NoError(t, g.Wait())

	for _, id := range ids {
		current, err := env.manager.GetAuction(ctx, id)
		assert.NoError(t, err)
		// The highest amount always clears every lower price plus increment.
		check.Equal(t, "1500", current.CurrentPrice.String())
		check.Equal(t, 1, countStatus(env.ledger(t, id), domain.BidActive))
	}
}

func TestPlaceBidRetriesOnVersionConflict(t *testing.T) {
	var wrapped *conflictStore
	env := newTestEnvWithStore(t, func(s *memory.AuctionStore) domain.AuctionStore {
		wrapped = &conflictStore{AuctionStore: s, remaining: 2}
		return wrapped
	})
	auction := env.createAuction(t)

	bid := env.placeBid(t, auction.ID, "alice", 1050)
	check.Equal(t, int32(3), atomic.LoadInt32(&wrapped.applies))
	check.Equal(t, int64(1), bid.Sequence)
}

func TestPlaceBidGivesUpAfterRetries(t *testing.T) {
	var wrapped *conflictStore
	env := newTestEnvWithStore(t, func(s *memory.AuctionStore) domain.AuctionStore {
		wrapped = &conflictStore{AuctionStore: s, remaining: 100}
		return wrapped
	})
	auction := env.createAuction(t)

	_, err := env.bids.PlaceBid(context.Background(), auction.ID, "alice", domain.NewMoney(1050), "")
	check.True(t, errors.Is(err, domain.ErrConflict))
	check.Equal(t, domain.KindConflict, domain.ErrorKind(err))
	// One attempt plus three retries.
	check.Equal(t, int32(4), atomic.LoadInt32(&wrapped.applies))
	check.Equal(t, 0, len(env.events.Events()))
}

func TestPlaceBidRevalidatesAfterForeignCommit(t *testing.T) {
	ctx := context.Background()
	var env *testEnv
	var auctionID string

	env = newTestEnvWithStore(t, func(s *memory.AuctionStore) domain.AuctionStore {
		return &racingStore{AuctionStore: s, interfere: func() {
			// Another instance admits a 1200 bid between our read and write.
			stored, err := s.GetAuction(ctx, auctionID)
			if err != nil {
				t.Errorf("interfere: %v", err)
				return
			}
			next := stored.Clone()
			next.CurrentPrice = domain.NewMoney(1200)
			next.BidCount++
			err = s.Apply(ctx, &domain.Change{
				Auction:         next,
				ExpectedVersion: stored.Version,
				NewBids: []*domain.Bid{{
					ID:            "bid_foreign",
					AuctionID:     auctionID,
					Bidder:        "carol",
					Amount:        domain.NewMoney(1200),
					PreviousPrice: stored.CurrentPrice,
					Status:        domain.BidActive,
					Sequence:      1,
					PlacedAt:      epoch,
				}},
			})
			if err != nil {
				t.Errorf("interfere: %v", err)
			}
		}}
	})
	auctionID = env.createAuction(t).ID

	_, err := env.bids.PlaceBid(ctx, auctionID, "alice", domain.NewMoney(1100), "")
	var tooLow *domain.BidTooLowError
	if !errors.As(err, &tooLow) {
		t.Fatalf("expected BidTooLowError, got %v", err)
	}
	check.Equal(t, "1250", tooLow.MinRequired.String())

	current, err := env.store.GetAuction(ctx, auctionID)
	assert.NoError(t, err)
	check.Equal(t, "1200", current.CurrentPrice.String())
	check.Equal(t, 1, current.BidCount)
}
