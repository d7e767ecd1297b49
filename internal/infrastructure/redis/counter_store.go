package redis

import (
	"context"
	"fmt"
	"strconv"

	"auction-core/internal/domain"

	"github.com/go-redis/redis/v8"
)

const finalizedField = "finalized"

// RedisCounterStore keeps the per-auction counters in one hash.
type RedisCounterStore struct {
	client *redis.Client
}

func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func countersKey(auctionID string) string {
	return fmt.Sprintf("auction:%s:counters", auctionID)
}

func (r *RedisCounterStore) Increment(ctx context.Context, auctionID, field string, delta int64) error {
	return r.client.HIncrBy(ctx, countersKey(auctionID), field, delta).Err()
}

func (r *RedisCounterStore) MarkFinalized(ctx context.Context, auctionID string) error {
	return r.client.HSet(ctx, countersKey(auctionID), finalizedField, 1).Err()
}

func (r *RedisCounterStore) GetCounters(ctx context.Context, auctionID string) (*domain.AuctionCounters, error) {
	result, err := r.client.HGetAll(ctx, countersKey(auctionID)).Result()
	if err != nil {
		return nil, err
	}

	counters := &domain.AuctionCounters{AuctionID: auctionID}
	for field, raw := range result {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s of %s: %w", field, auctionID, err)
		}
		switch field {
		case domain.CounterBidsPlaced:
			counters.BidsPlaced = n
		case domain.CounterBidsSuperseded:
			counters.BidsSuperseded = n
		case domain.CounterBidsWithdrawn:
			counters.BidsWithdrawn = n
		case domain.CounterStatusChanges:
			counters.StatusChanges = n
		case finalizedField:
			counters.Finalized = n == 1
		}
	}
	return counters, nil
}
