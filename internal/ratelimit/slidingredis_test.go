package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newSlidingWindow(t *testing.T) (SlidingWindow, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return SlidingWindow{Client: client, Prefix: KeyPrefix}, mr
}

func TestAllowersShareQuoteLimitContract(t *testing.T) {
	sliding, _ := newSlidingWindow(t)
	allowers := map[string]Allower{
		"redis sliding window": sliding,
		"memory store":         NewMemoryStore(KeyPrefix),
	}

	for name, allower := range allowers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "ip:203.0.113.7"
			max := 2

			for i := 0; i < max; i++ {
				allowed, remaining, reset, err := allower.Allow(ctx, key, time.Minute, max)
				require.NoError(t, err)
				require.True(t, allowed, "request %d", i)
				require.Equal(t, max-(i+1), remaining)
				require.True(t, reset.After(time.Now()))
			}

			allowed, remaining, _, err := allower.Allow(ctx, key, time.Minute, max)
			require.NoError(t, err)
			require.False(t, allowed)
			require.Zero(t, remaining)

			allowed, _, _, err = allower.Allow(ctx, "ip:198.51.100.1", time.Minute, max)
			require.NoError(t, err)
			require.True(t, allowed)
		})
	}
}

func TestSlidingWindowStoresUnderPrefixAndExpires(t *testing.T) {
	limiter, mr := newSlidingWindow(t)
	ctx := context.Background()
	window := 2 * time.Second

	_, _, _, err := limiter.Allow(ctx, "ip:203.0.113.7", window, 1)
	require.NoError(t, err)
	require.True(t, mr.Exists(KeyPrefix+"ip:203.0.113.7"))
	require.Equal(t, window, mr.TTL(KeyPrefix+"ip:203.0.113.7"))

	allowed, _, _, err := limiter.Allow(ctx, "ip:203.0.113.7", window, 1)
	require.NoError(t, err)
	require.False(t, allowed)

	mr.FastForward(window)
	require.False(t, mr.Exists(KeyPrefix+"ip:203.0.113.7"))

	allowed, _, _, err = limiter.Allow(ctx, "ip:203.0.113.7", window, 1)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestAllowersPassThroughWhenUnconfigured(t *testing.T) {
	var nilStore *MemoryStore
	for name, allower := range map[string]Allower{
		"no redis client": SlidingWindow{},
		"nil memory":      nilStore,
	} {
		allowed, remaining, _, err := allower.Allow(context.Background(), "ip:192.0.2.1", time.Minute, 5)
		require.NoError(t, err, name)
		require.True(t, allowed, name)
		require.Equal(t, 5, remaining, name)
	}

	allowed, _, _, err := NewMemoryStore(KeyPrefix).Allow(context.Background(), "ip:192.0.2.1", time.Minute, 0)
	require.NoError(t, err)
	require.True(t, allowed)
}
