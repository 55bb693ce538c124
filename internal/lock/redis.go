package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
)

// ErrNilClient is returned when NewRedis is called without a client.
var ErrNilClient = errors.New("redis client is nil")

// RedisOptions tunes distributed lock acquisition.
type RedisOptions struct {
	// Prefix is prepended to every key.
	Prefix string
	// Expiry bounds how long a crashed holder can keep the lock.
	Expiry time.Duration
	// Tries is the number of acquisition attempts before giving up.
	Tries int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
}

// DefaultRedisOptions suits settlement-length critical sections.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Prefix:     "groupexchange:lock:",
		Expiry:     30 * time.Second,
		Tries:      60,
		RetryDelay: 250 * time.Millisecond,
	}
}

// Redis is a distributed keyed lock built on redsync.
type Redis struct {
	rs   *redsync.Redsync
	opts RedisOptions
}

// NewRedis creates a distributed lock over client.
// It pings the server so misconfiguration surfaces at startup.
func NewRedis(ctx context.Context, client goredislib.UniversalClient, opts RedisOptions) (*Redis, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	defaults := DefaultRedisOptions()
	if opts.Expiry <= 0 {
		opts.Expiry = defaults.Expiry
	}
	if opts.Tries <= 0 {
		opts.Tries = defaults.Tries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaults.RetryDelay
	}

	return &Redis{
		rs:   redsync.New(goredis.NewPool(client)),
		opts: opts,
	}, nil
}

// Lock acquires key across all instances sharing the Redis server.
func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	name := r.opts.Prefix + key
	mutex := r.rs.NewMutex(name,
		redsync.WithExpiry(r.opts.Expiry),
		redsync.WithTries(r.opts.Tries),
		redsync.WithRetryDelay(r.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// Unlock must run even if the caller's context is already done.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			slog.Warn("Failed to release lock", "key", name, "error", err)
		}
	}, nil
}
