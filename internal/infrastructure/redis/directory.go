package redis

import (
	"context"

	"auction-core/internal/domain"

	"github.com/go-redis/redis/v8"
)

const displayNamesKey = "identity:display_names"

// RedisIdentityDirectory reads display names maintained by the identity
// service. Unknown identities resolve to the raw id.
type RedisIdentityDirectory struct {
	client *redis.Client
}

func NewRedisIdentityDirectory(client *redis.Client) *RedisIdentityDirectory {
	return &RedisIdentityDirectory{client: client}
}

func (r *RedisIdentityDirectory) DisplayName(ctx context.Context, identity domain.Identity) (string, error) {
	name, err := r.client.HGet(ctx, displayNamesKey, string(identity)).Result()
	if err == redis.Nil {
		return string(identity), nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}
