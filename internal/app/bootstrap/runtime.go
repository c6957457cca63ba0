package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/opd-console/internal/config"
	"github.com/wolfman30/opd-console/internal/console"
	"github.com/wolfman30/opd-console/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *config.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, falling back to in-memory sessions", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore picks the Redis session store when a client is available
// and the in-process store otherwise.
func BuildSessionStore(redisClient *redis.Client, cfg *config.Config, logger *logging.Logger) console.Store {
	if logger == nil {
		logger = logging.Default()
	}
	var (
		limit int
		ttl   time.Duration
	)
	if cfg != nil {
		limit = cfg.SessionLogLimit
		ttl = cfg.SessionTTL
	}
	if redisClient != nil {
		logger.Info("console sessions stored in redis", "ttl", ttl.String(), "log_limit", limit)
		return console.NewRedisStore(redisClient, limit, ttl)
	}
	logger.Info("console sessions stored in memory", "log_limit", limit)
	return console.NewMemoryStore(limit, ttl)
}
