package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker serializes mutations that touch one project's column lists.
// The returned unlock func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ProjectLockKey is the lock key for a project id.
func ProjectLockKey(projectID string) string {
	return "lock:project:" + projectID
}

// LocalLocker is an in-process keyed mutex. Waiting honours ctx and the timeout.
type LocalLocker struct {
	mu      sync.Mutex
	slots   map[string]*lockSlot
	timeout time.Duration
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates a keyed mutex. timeout <= 0 waits until ctx is done.
func NewLocalLocker(timeout time.Duration) *LocalLocker {
	return &LocalLocker{
		slots:   make(map[string]*lockSlot),
		timeout: timeout,
	}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, slot, false)
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, slot, true) })
	}, nil
}

func (l *LocalLocker) release(key string, slot *lockSlot, held bool) {
	if held {
		<-slot.ch
	}
	l.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}

// RedisLocker is a lock shared by every instance using the same Redis.
type RedisLocker struct {
	redis   *RedisService
	ttl     time.Duration
	timeout time.Duration
	retry   time.Duration
}

// NewRedisLocker creates a distributed locker. Locks expire after ttl if never released.
func NewRedisLocker(redisService *RedisService, ttl, timeout time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		redis:   redisService,
		ttl:     ttl,
		timeout: timeout,
		retry:   25 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	token := uuid.New().String()
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		acquired, err := l.redis.AcquireLock(ctx, key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if acquired {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			released, err := l.redis.ReleaseLock(releaseCtx, key, token)
			if err != nil {
				slog.Warn("failed to release lock", "key", key, "error", err)
			} else if !released {
				slog.Warn("lock expired before release", "key", key)
			}
		})
	}, nil
}
