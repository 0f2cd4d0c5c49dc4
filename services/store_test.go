package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreGet(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, mr.Set("present", "value"))
	val, err := store.Get(ctx, "present")
	require.NoError(t, err)
	assert.Equal(t, "value", val)
}

func TestRedisStoreApply(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	err := store.Apply(ctx,
		SetKey("a", "1", time.Minute),
		IncrKey("counter"),
		ExpireKey("counter", time.Minute),
	)
	require.NoError(t, err)

	val, err := mr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", val)
	assert.Equal(t, time.Minute, mr.TTL("a"))

	count, err := mr.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, "1", count)
	assert.Equal(t, time.Minute, mr.TTL("counter"))

	// Keys with an expiry actually disappear.
	mr.FastForward(time.Minute + time.Second)
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("counter"))
}

func TestRedisStoreApplyDelete(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("doomed", "x"))
	require.NoError(t, store.Apply(ctx, DeleteKey("doomed"), SetKey("kept", "y", time.Minute)))

	assert.False(t, mr.Exists("doomed"))
	assert.True(t, mr.Exists("kept"))
}

func TestRedisStoreIncr(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	n, err := store.Incr(ctx, "fails", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, mr.TTL("fails"))

	// Later increments do not reset the expiry.
	mr.FastForward(30 * time.Second)
	n, err = store.Incr(ctx, "fails", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 30*time.Second, mr.TTL("fails"))
}

func TestRedisStoreDelete(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("a", "1"))
	require.NoError(t, mr.Set("b", "2"))

	require.NoError(t, store.Delete(ctx, "a", "b", "never-existed"))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))

	require.NoError(t, store.Delete(ctx))
}
