package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"auction-core/internal/domain"
	"auction-core/internal/infrastructure/memory"
	"auction-core/pkg/logger"

	"github.com/peterldowns/testy/assert"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// conflictStore fails the first n Apply calls with a version conflict.
type conflictStore struct {
	*memory.AuctionStore
	remaining int32
	applies   int32
}

func (s *conflictStore) Apply(ctx context.Context, change *domain.Change) error {
	atomic.AddInt32(&s.applies, 1)
	if atomic.AddInt32(&s.remaining, -1) >= 0 {
		return domain.ErrVersionConflict
	}
	return s.AuctionStore.Apply(ctx, change)
}

// racingStore runs interfere once, right before the first Apply, to mimic
// a writer in another process committing in between read and write.
type racingStore struct {
	*memory.AuctionStore
	once      sync.Once
	interfere func()
}

func (s *racingStore) Apply(ctx context.Context, change *domain.Change) error {
	s.once.Do(s.interfere)
	return s.AuctionStore.Apply(ctx, change)
}

type testEnv struct {
	store     *memory.AuctionStore
	events    *memory.EventRecorder
	jobs      *memory.SchedulerRepository
	clock     *fakeClock
	manager   *AuctionManager
	bids      *BidService
	scheduler *CronAuctionScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, nil)
}

// newTestEnvWithStore wires the services on top of a memory store. wrap,
// when set, decorates the store the services see.
func newTestEnvWithStore(t *testing.T, wrap func(*memory.AuctionStore) domain.AuctionStore) *testEnv {
	t.Helper()

	env := &testEnv{
		store:  memory.NewAuctionStore(),
		events: memory.NewEventRecorder(),
		jobs:   memory.NewSchedulerRepository(),
		clock:  &fakeClock{now: epoch},
	}

	var store domain.AuctionStore = env.store
	if wrap != nil {
		store = wrap(env.store)
	}

	log := logger.NewNop()
	env.manager = NewAuctionManager(store, NewKeyedLocker(), env.events, nil, env.clock, ManagerConfig{
		MaxCommitRetries:   3,
		MinAuctionDuration: time.Hour,
	}, log)
	env.scheduler = NewCronAuctionScheduler("@every 1s", env.jobs, env.manager, nil, "test-instance", env.clock, log)
	env.manager.SetScheduler(env.scheduler)
	env.bids = NewBidService(env.manager, memory.Directory{"alice": "Alice"}, DefaultWithdrawalWindow, log)
	return env
}

// createAuction opens a public auction at base price 1000 with a 5%
// increment, running for two hours from now.
func (env *testEnv) createAuction(t *testing.T) *domain.Auction {
	t.Helper()
	return env.createAuctionWith(t, func(*CreateAuctionRequest) {})
}

func (env *testEnv) createAuctionWith(t *testing.T, edit func(*CreateAuctionRequest)) *domain.Auction {
	t.Helper()
	req := CreateAuctionRequest{
		Title:               "Vintage camera",
		Seller:              "seller",
		StartsAt:            env.clock.Now(),
		EndsAt:              env.clock.Now().Add(2 * time.Hour),
		BasePrice:           domain.NewMoney(1000),
		MinIncrementPercent: 5,
	}
	edit(&req)
	auction, err := env.manager.CreateAuction(context.Background(), req)
	assert.NoError(t, err)
	return auction
}

func (env *testEnv) placeBid(t *testing.T, auctionID string, bidder domain.Identity, amount int64) *domain.Bid {
	t.Helper()
	bid, err := env.bids.PlaceBid(context.Background(), auctionID, bidder, domain.NewMoney(amount), "")
	assert.NoError(t, err)
	return bid
}

func (env *testEnv) ledger(t *testing.T, auctionID string) *domain.Ledger {
	t.Helper()
	bids, err := env.store.ListBids(context.Background(), auctionID)
	assert.NoError(t, err)
	return domain.NewLedger(bids)
}

func countStatus(ledger *domain.Ledger, status domain.BidStatus) int {
	n := 0
	for _, b := range ledger.Bids() {
		if b.Status == status {
			n++
		}
	}
	return n
}
