package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func TestRedisKV(t *testing.T) {
	mr := miniredis.RunT(t)
	kv := NewRedisKV(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	_, err := kv.Get(ctx, "census:preview:missing")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "census:preview:tok", `{"rows":[]}`, 30*time.Minute))
	val, err := kv.Get(ctx, "census:preview:tok")
	require.NoError(t, err)
	require.Equal(t, `{"rows":[]}`, val)

	// TTL 到期后视为 miss
	mr.FastForward(31 * time.Minute)
	_, err = kv.Get(ctx, "census:preview:tok")
	require.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_Del(t *testing.T) {
	mr := miniredis.RunT(t)
	kv := NewRedisKV(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", 0))
	require.NoError(t, kv.Del(ctx, "k"))
	_, err := kv.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "k", "v", 0))
	val, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", val)

	require.NoError(t, kv.Del(ctx, "k"))
	_, err = kv.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemoryKV_TTL(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)
	_, err := kv.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}
