// Package lock provides a Redis-backed numerator.Locker for deployments
// running more than one server or worker process.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"docseries/internal/core/numerator"
	"docseries/pkg/logger"
)

// ErrLockTimeout is returned when the lock could not be taken within WaitTimeout.
var ErrLockTimeout = errors.New("series lock wait timed out")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisConfig configures RedisLocker.
type RedisConfig struct {
	KeyPrefix    string        // default "docseries:lock:"
	TTL          time.Duration // default 10s; bounds a crashed holder
	WaitTimeout  time.Duration // default 5s
	PollInterval time.Duration // default 25ms
}

// RedisLocker serializes allocations on a series across processes with SET NX PX.
type RedisLocker struct {
	rc  *redis.Client
	cfg RedisConfig
}

var _ numerator.Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(rc *redis.Client, cfg RedisConfig) *RedisLocker {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "docseries:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 5 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 25 * time.Millisecond
	}
	return &RedisLocker{rc: rc, cfg: cfg}
}

// Key returns the Redis key guarding a series.
func (l *RedisLocker) Key(seriesID string) string {
	return l.cfg.KeyPrefix + seriesID
}

// Lock implements numerator.Locker.
func (l *RedisLocker) Lock(ctx context.Context, seriesID string) (func(), error) {
	key := l.Key(seriesID)
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	deadline := time.NewTimer(l.cfg.WaitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.rc.SetNX(ctx, key, token, l.cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, seriesID)
		case <-ticker.C:
		}
	}

	return func() {
		// Release even if the caller's context is already done.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rc, []string{key}, token).Err(); err != nil {
			logger.Warn(ctx, "release series lock failed", "key", key, "error", err)
		}
	}, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Connect parses url, connects and pings.
func Connect(ctx context.Context, url string, db int) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if db > 0 {
		opt.DB = db
	}

	rc := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rc, nil
}
