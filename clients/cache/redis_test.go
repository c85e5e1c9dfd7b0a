package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/body-rewrite-proxy/clients/cache"
	"github.com/kava-labs/body-rewrite-proxy/logging"
)

func TestUnitTestNewRedisCacheRequiresAddress(t *testing.T) {
	logger, err := logging.New("ERROR")
	require.NoError(t, err)

	_, err = cache.NewRedisCache(&cache.RedisConfig{}, &logger)
	require.Error(t, err)
}

func TestE2ETestRedisCacheRoundTrip(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_ENDPOINT_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_ENDPOINT_URL not set")
	}

	logger, err := logging.New("ERROR")
	require.NoError(t, err)

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Address:  redisURL,
		Password: os.Getenv("REDIS_PASSWORD"),
	}, &logger)
	require.NoError(t, err)
	defer redisCache.Close()

	ctx := context.Background()
	require.NoError(t, redisCache.Healthcheck(ctx))

	require.NoError(t, redisCache.Set(ctx, "body-rewrite-proxy:test", []byte("value"), time.Minute))

	value, err := redisCache.Get(ctx, "body-rewrite-proxy:test")
	require.NoError(t, err)
	require.Equal(t, []byte("value"), value)

	require.NoError(t, redisCache.Delete(ctx, "body-rewrite-proxy:test"))

	_, err = redisCache.Get(ctx, "body-rewrite-proxy:test")
	require.ErrorIs(t, err, cache.ErrNotFound)
}
