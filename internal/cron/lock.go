package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iamnithishraja/klinic-sub000/pkg/instance"
)

// defaultLockTTL bounds how long a crashed worker can hold the cycle.
const defaultLockTTL = 10 * time.Minute

// Lock makes a cron cycle exclusive across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// withLock runs fn only when the lock is won and releases it afterwards. A
// release failure is joined onto fn's error.
func withLock(ctx context.Context, l Lock, fn func() error) (ran bool, err error) {
	won, err := l.Acquire(ctx)
	if err != nil || !won {
		return false, err
	}
	defer func() {
		if relErr := l.Release(ctx); relErr != nil {
			err = errors.Join(err, fmt.Errorf("release cron lock: %w", relErr))
		}
	}()
	return true, fn()
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock is SET NX with an owner token. The token names the instance so
// an operator can see who holds the key.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	token string
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("redis client required for lock")
	case key == "":
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := instance.ID() + "/" + uuid.NewString()
	won, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if won {
		l.token = token
	}
	return won, nil
}

// Release only deletes the key while it still holds our token. A lock that
// expired and was taken by another replica is left alone.
func (l *RedisLock) Release(ctx context.Context) error {
	token := l.token
	if token == "" {
		return nil
	}
	l.token = ""

	current, err := l.store.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) || (err == nil && current != token) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read lock owner: %w", err)
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
