package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// RedisLease hands out short exclusive leases so that background jobs run on
// one replica at a time.
type RedisLease struct {
	rdb    *goredis.Client
	holder string
}

func NewRedisLease(ctx context.Context, url string) (*RedisLease, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second

	rdb := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisLease{rdb: rdb, holder: uuid.NewString()}, nil
}

// Acquire returns true when this process now holds key for ttl. The lease is
// never released early; it simply expires.
func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, key, l.holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	return ok, nil
}

func (l *RedisLease) Close() error {
	return l.rdb.Close()
}
