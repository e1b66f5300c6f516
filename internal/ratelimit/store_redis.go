package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	failureKeyPrefix = "token_probe:"
	lockKeyPrefix    = "token_probe_lock:"
)

// RedisStore shares failure counters across gateway replicas. The counter
// key carries the window TTL; a separate lock key carries the lockout TTL so
// both expire on their own.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) RecordFailure(ctx context.Context, key string, cfg Config) (*Lockout, error) {
	counterKey := failureKeyPrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, counterKey)
	pipe.ExpireNX(ctx, counterKey, cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("record probe failure: %w", err)
	}

	count := int(incr.Val())
	now := time.Now()
	rec := &Lockout{Key: key, FailureCount: count, LastFailureAt: now}
	if count >= cfg.MaxFailures {
		until := now.Add(cfg.LockFor)
		if err := s.client.Set(ctx, lockKeyPrefix+key, until.Unix(), cfg.LockFor).Err(); err != nil {
			return nil, fmt.Errorf("set probe lock: %w", err)
		}
		rec.LockedUntil = &until
	}
	return rec, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Lockout, error) {
	lockUnix, err := s.client.Get(ctx, lockKeyPrefix+key).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get probe lock: %w", err)
	}

	count, err := s.client.Get(ctx, failureKeyPrefix+key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			count = 0
		} else {
			return nil, fmt.Errorf("get probe counter: %w", err)
		}
	}

	if count == 0 && lockUnix == 0 {
		return nil, nil
	}
	rec := &Lockout{Key: key, FailureCount: count}
	if lockUnix > 0 {
		until := time.Unix(lockUnix, 0)
		rec.LockedUntil = &until
	}
	// Window tracking is delegated to the key TTL; FirstFailureAt stays zero
	// so the service's in-window check defers to LockedUntil.
	return rec, nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, failureKeyPrefix+key, lockKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("clear probe counter: %w", err)
	}
	return nil
}
