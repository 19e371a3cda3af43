// Package redislock serializes work per key, across processes through Redis
// or inside one process when Redis is not configured.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

type Locker interface {
	// Lock blocks until key is held or ctx ends. The returned func releases
	// it and is safe to call more than once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*MemoryLocker)(nil)
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		retry:  25 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("acquire %s: %w", key, ErrLockTimeout)
		}

		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's ctx may already be cancelled
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, l.client, []string{key}, token).Err()
		})
	}, nil
}

type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*memLock
}

type memLock struct {
	ch   chan struct{}
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*memLock)}
}

func (m *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &memLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			m.release(key, l)
		})
	}, nil
}

func (m *MemoryLocker) release(key string, l *memLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

func OrderKey(orderID string) string {
	return "lock:order:" + orderID
}
