package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var releaseScript = redis.NewScript(`
    if redis.call("GET", KEYS[1]) == ARGV[1] then
        return redis.call("DEL", KEYS[1])
    else
        return 0
    end
`)

// RedisAuctionLocker serializes work on one auction across instances with
// a SET NX PX lease. The lease expires after ttl if its holder dies.
type RedisAuctionLocker struct {
	client    *redis.Client
	ttl       time.Duration
	retryWait time.Duration
}

func NewRedisAuctionLocker(client *redis.Client, ttl time.Duration) *RedisAuctionLocker {
	return &RedisAuctionLocker{
		client:    client,
		ttl:       ttl,
		retryWait: 10 * time.Millisecond,
	}
}

func lockKey(auctionID string) string {
	return fmt.Sprintf("auction:%s:lock", auctionID)
}

func (r *RedisAuctionLocker) Lock(ctx context.Context, auctionID string) (func(), error) {
	key := lockKey(auctionID)
	token := uuid.New().String()

	wait := r.retryWait
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		if wait < 200*time.Millisecond {
			wait *= 2
		}
	}

	return func() {
		// Released on a fresh context so a cancelled request still frees the lease.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err()
	}, nil
}
