package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mahi1722/ticketflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// pollInterval is how often a blocked Lock retries SET NX.
const pollInterval = 100 * time.Millisecond

// unlockScript deletes the lock only if it still carries our token.
var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// renewScript extends the lock TTL only if it still carries our token.
var renewScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

// Locker implements ports.DistributedLocker using Redis.
type Locker struct {
	client *backend.Client
	prefix string
}

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
	}
}

// Lock acquires a distributed lock for the given key using SET NX with a TTL.
// It polls until the lock is free or ctx is done. While held, the lease is
// renewed every ttl/3, so a run longer than ttl keeps the instance; the TTL
// only bounds how long a crashed holder blocks others.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	if err := l.acquire(ctx, lockKey, token, ttl); err != nil {
		return nil, err
	}

	renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.renew(renewCtx, lockKey, token, ttl)
	}()

	var once sync.Once
	unlock := func(ctx context.Context) error {
		var err error
		once.Do(func() {
			stop()
			wg.Wait()
			err = unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err()
		})
		return err
	}
	return unlock, nil
}

func (l *Locker) acquire(ctx context.Context, lockKey, token string, ttl time.Duration) error {
	acquired, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis error acquiring lock: %w", err)
	}
	if acquired {
		return nil
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			acquired, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
			if err != nil {
				return fmt.Errorf("redis error acquiring lock: %w", err)
			}
			if acquired {
				return nil
			}
		}
	}
}

// renew extends the lease until ctx is cancelled or the lock is lost.
// Transient Redis errors are retried on the next tick.
func (l *Locker) renew(ctx context.Context, lockKey, token string, ttl time.Duration) {
	interval := ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := renewScript.Run(ctx, l.client, []string{lockKey}, token, ttl.Milliseconds()).Int()
			if errors.Is(err, backend.ErrClosed) || (err == nil && ok == 0) {
				return
			}
		}
	}
}
