package sessionlock

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionLock guards the shared automation session across processes. The
// target portal tolerates exactly one live session, so whichever process
// holds the lock owns the session until it releases or the TTL lapses.
type SessionLock struct {
	client redis.UniversalClient
	key    string
	holder string // only the holder may release or extend
}

func NewSessionLock(client redis.UniversalClient, key, holder string) *SessionLock {
	return &SessionLock{
		client: client,
		key:    key,
		holder: holder,
	}
}

// Acquire takes the session for ttl. It does not wait; callers that can
// block should use AcquireWait.
func (l *SessionLock) Acquire(ctx context.Context, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, l.key, l.holder, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s is held by another process", l.key)
	}
	return nil
}

// AcquireWait retries Acquire with jittered sleeps until waitTimeout runs
// out.
func (l *SessionLock) AcquireWait(ctx context.Context, ttl, waitTimeout time.Duration) error {
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if err := l.Acquire(ctx, ttl); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(rand.Intn(100)) * time.Millisecond):
		}
	}
	return fmt.Errorf("could not acquire session %s within %s", l.key, waitTimeout)
}

// Release frees the session. The delete is conditional on the holder value
// so an expired lock reacquired elsewhere is never released by us.
func (l *SessionLock) Release(ctx context.Context) error {
	script := "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.holder).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("release of session %s failed, lock expired or held elsewhere", l.key)
	}
	return nil
}

// Extend pushes the TTL out while a long batch is still running.
func (l *SessionLock) Extend(ctx context.Context, extension time.Duration) error {
	script := "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('pexpire', KEYS[1], ARGV[2]) else return 0 end"
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.holder, fmt.Sprintf("%d", extension.Milliseconds())).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("extension of session %s failed, lock expired or held elsewhere", l.key)
	}
	return nil
}
