package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "7d0c5a8e-2f65-4a51-9d55-54d2b8c1d1f0:deposit:top-up-1"
	value := []byte(`{"id":"abc","type":"DEPOSIT","amount":5000}`)

	// Get before set => nil
	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result)

	err = cache.Set(ctx, key, value, 24*time.Hour)
	require.NoError(t, err)

	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result)
	assert.True(t, s.Exists("mkt:idem:"+key))
}

func TestIdempotencyCache_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "user-1:withdraw:payout-9"

	err := cache.Set(ctx, key, []byte(`{"amount":100}`), time.Second)
	require.NoError(t, err)

	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result, "expired key should return nil")
}

func TestIdempotencyCache_OperationsAreSeparate(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-1:deposit:ref-1", []byte("deposit"), time.Hour))

	result, err := cache.Get(ctx, "user-1:withdraw:ref-1")
	require.NoError(t, err)
	assert.Nil(t, result, "same reference under another operation must not replay")
}

func TestIdempotencyCache_RedisDown(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)
	s.Close()

	_, err := cache.Get(context.Background(), "user-1:deposit:ref-1")
	assert.Error(t, err)
}

func TestIdempotencyCache_FirstWriteWins(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "user-1:deposit:card-topup-7"
	require.NoError(t, cache.Set(ctx, key, []byte(`{"id":"first"}`), time.Hour))
	s.FastForward(30 * time.Minute)
	require.NoError(t, cache.Set(ctx, key, []byte(`{"id":"second"}`), time.Hour))

	result, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"first"}`, string(result))
	assert.Equal(t, 30*time.Minute, s.TTL(idempotencyPrefix+key), "replay does not extend the TTL")
}
