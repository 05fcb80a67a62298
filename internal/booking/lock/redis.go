package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClient is the subset of the go-redis client the lock needs
type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLocker holds locks across processes with SET NX PX and a token-checked release.
// A lock that outlives TTL expires on its own; storage compare-and-swap still
// rejects a writer that lost its lock this way.
type RedisLocker struct {
	client    RedisClient
	prefix    string
	ttl       time.Duration
	retryWait time.Duration
	logger    *slog.Logger
}

// RedisLockerConfig holds RedisLocker settings
type RedisLockerConfig struct {
	Prefix    string
	TTL       time.Duration
	RetryWait time.Duration
}

// NewRedisLocker creates a new RedisLocker
func NewRedisLocker(client RedisClient, cfg RedisLockerConfig, logger *slog.Logger) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 25 * time.Millisecond
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "booking:lock:"
	}

	return &RedisLocker{
		client:    client,
		prefix:    cfg.Prefix,
		ttl:       cfg.TTL,
		retryWait: cfg.RetryWait,
		logger:    logger,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
		case <-time.After(l.retryWait):
		}
	}

	return func() {
		// Release must run even when the command's context is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()

		deleted, err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Error("Failed to release lock",
				slog.String("key", redisKey),
				slog.Any("error", err),
			)
			return
		}
		if deleted == 0 {
			l.logger.Warn("Lock expired before release",
				slog.String("key", redisKey),
				slog.Duration("ttl", l.ttl),
			)
		}
	}, nil
}
