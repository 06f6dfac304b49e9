package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/careconnect-platform/internal/config"
	"github.com/wolfman30/careconnect-platform/internal/preferences"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore keeps sessions in Redis when a client is available and
// in process memory otherwise.
func BuildSessionStore[T any](client *redis.Client, flow string, ttl time.Duration) wizard.Store[T] {
	if client == nil {
		return wizard.NewMemoryStore[T](ttl)
	}
	return wizard.NewRedisStore[T](client, flow, ttl)
}

// BuildPreferenceStore mirrors BuildSessionStore for the remember-email
// preference.
func BuildPreferenceStore(client *redis.Client, ttl time.Duration) preferences.Store {
	if client == nil {
		return preferences.NewMemoryStore()
	}
	return preferences.NewRedisStore(client, ttl)
}
