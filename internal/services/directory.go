package services

import (
	"context"

	"auction-core/internal/domain"

	lru "github.com/hashicorp/golang-lru"
)

// CachedDirectory keeps recently resolved display names in an LRU cache.
type CachedDirectory struct {
	next  domain.IdentityDirectory
	cache *lru.Cache
}

func NewCachedDirectory(next domain.IdentityDirectory, size int) (*CachedDirectory, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedDirectory{next: next, cache: cache}, nil
}

func (d *CachedDirectory) DisplayName(ctx context.Context, identity domain.Identity) (string, error) {
	if v, ok := d.cache.Get(identity); ok {
		return v.(string), nil
	}

	name, err := d.next.DisplayName(ctx, identity)
	if err != nil {
		return "", err
	}
	d.cache.Add(identity, name)
	return name, nil
}

// Forget drops a cached name, e.g. after the user renamed themselves.
func (d *CachedDirectory) Forget(identity domain.Identity) {
	d.cache.Remove(identity)
}
