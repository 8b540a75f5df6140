package fx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/landed-cost/internal/obs"
)

// Cache stores resolved rates in Redis as JSON.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCache constructs a rate cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, prefix: "fx:rate:"}
}

func (c *Cache) key(base, quote string) string {
	return c.prefix + base + ":" + quote
}

// Get returns the cached rate and whether the key existed.
func (c *Cache) Get(ctx context.Context, base, quote string) (Rate, bool, error) {
	if c == nil || c.client == nil {
		return Rate{}, false, nil
	}
	data, err := c.client.Get(ctx, c.key(base, quote)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Rate{}, false, nil
		}
		return Rate{}, false, err
	}
	var rate Rate
	if err := json.Unmarshal(data, &rate); err != nil {
		return Rate{}, false, err
	}
	return rate, true, nil
}

// Set stores the rate with the configured TTL.
func (c *Cache) Set(ctx context.Context, rate Rate) error {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(rate)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(rate.Base, rate.Quote), data, c.ttl).Err()
}

// Cached serves live rates from Cache before delegating to Next. Cache errors
// are logged and never returned.
type Cached struct {
	Next   Resolver
	Cache  *Cache
	Logger zerolog.Logger
}

// Resolve implements Resolver.
func (c Cached) Resolve(ctx context.Context, base, quote string) (Rate, error) {
	base, err := NormalizeCode(base)
	if err != nil {
		return Rate{}, err
	}
	quote, err = NormalizeCode(quote)
	if err != nil {
		return Rate{}, err
	}

	rate, hit, err := c.Cache.Get(ctx, base, quote)
	if err != nil {
		c.Logger.Warn().Err(err).Str("base", base).Str("quote", quote).Msg("fx_cache_read_failed")
	}
	if hit {
		recordCache("hit")
		return rate, nil
	}
	recordCache("miss")

	rate, err = c.Next.Resolve(ctx, base, quote)
	if err != nil {
		return Rate{}, err
	}
	if rate.Source != SourceIdentity {
		if err := c.Cache.Set(ctx, rate); err != nil {
			c.Logger.Warn().Err(err).Str("base", base).Str("quote", quote).Msg("fx_cache_write_failed")
		}
	}
	return rate, nil
}

func recordCache(result string) {
	if obs.FXCacheTotal != nil {
		obs.FXCacheTotal.WithLabelValues(result).Inc()
	}
}
