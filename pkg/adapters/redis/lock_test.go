package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/mahi1722/ticketflow/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "task_1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)

	assert.True(t, mr.Exists("test:lock:task_1"), "Lock key should be set in Redis")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:task_1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	_, client := newClient(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker1.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = locker2.Lock(ctxTimeout, "shared", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.WithinDuration(t, start.Add(500*time.Millisecond), time.Now(), 150*time.Millisecond, "Should block until timeout")

	require.NoError(t, unlock1(ctx))

	unlock2, err := locker2.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	assert.NoError(t, unlock2(ctx))
}

func TestRedisLocker_StaleUnlockKeepsNewOwner(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	staleUnlock, err := locker.Lock(ctx, "task_2", time.Second)
	require.NoError(t, err)

	// The first holder's TTL runs out and someone else takes over.
	mr.FastForward(2 * time.Second)
	unlock, err := locker.Lock(ctx, "task_2", 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, staleUnlock(ctx))
	assert.True(t, mr.Exists("test:lock:task_2"), "stale unlock must not release a lock it no longer owns")
	require.NoError(t, unlock(ctx))
}

func TestRedisLocker_RenewsWhileHeld(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "task_3", 300*time.Millisecond)
	require.NoError(t, err)

	// Five TTL-sized jumps of Redis time; the holder keeps renewing.
	for i := 0; i < 5; i++ {
		mr.FastForward(200 * time.Millisecond)
		time.Sleep(150 * time.Millisecond)
		require.True(t, mr.Exists("test:lock:task_3"), "lock expired while still held (iteration %d)", i)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctxTimeout, "task_3", 300*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a second holder must keep waiting")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:task_3"))

	// Renewal stops with the unlock.
	require.NoError(t, client.Set(ctx, "test:lock:task_3", "other", 300*time.Millisecond).Err())
	time.Sleep(150 * time.Millisecond)
	mr.FastForward(400 * time.Millisecond)
	assert.False(t, mr.Exists("test:lock:task_3"))
}
