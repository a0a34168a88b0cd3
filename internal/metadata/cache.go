package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const packCachePrefix = "metadata:packs:"

// PackCache keeps standard pack listings in Redis. The guard never reads
// through this cache; it only serves the reference-data listing endpoint.
type PackCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPackCache instantiates the cache helper. A nil client disables caching.
func NewPackCache(client *redis.Client, ttl time.Duration) *PackCache {
	return &PackCache{client: client, ttl: ttl}
}

// Fetch loads the cached listing for a domain or populates it via the loader.
func (c *PackCache) Fetch(ctx context.Context, domain string, loader func(context.Context) ([]StandardPack, error)) ([]StandardPack, error) {
	if loader == nil {
		return nil, errors.New("metadata: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := packCachePrefix + domain
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var packs []StandardPack
		if err := json.Unmarshal(payload, &packs); err == nil {
			return packs, nil
		}
		// fall through on a corrupt entry and rebuild it
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	packs, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(packs)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, err
	}
	return packs, nil
}

// Invalidate drops the cached listing for a domain.
func (c *PackCache) Invalidate(ctx context.Context, domain string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, packCachePrefix+domain).Err()
}
