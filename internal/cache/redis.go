// Package cache provides result cache backends keyed by request fingerprint.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pageaudit/pageaudit/internal/audit"
)

// Redis stores serialized reports in Redis with a backend-enforced TTL.
type Redis struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedis constructs a Redis cache against the given address.
func NewRedis(addr, prefix string, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}),
		prefix: prefix,
		logger: logger,
	}
}

// Ping verifies backend connectivity for readiness checks.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *Redis) Close() error {
	return c.client.Close()
}

// Get loads a cached report. Any backend failure is treated as a miss so the
// caller always falls through to re-computation.
func (c *Redis) Get(ctx context.Context, fingerprint string) (*audit.Report, bool) {
	val, err := c.client.Get(ctx, c.prefix+fingerprint).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		}
		return nil, false
	}
	var report audit.Report
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		c.logger.Warn("cache entry corrupt", zap.String("fingerprint", fingerprint), zap.Error(err))
		return nil, false
	}
	return &report, true
}

// Put writes a report with the given TTL. Failures are logged and swallowed.
func (c *Redis) Put(ctx context.Context, fingerprint string, report *audit.Report, ttl time.Duration) {
	payload, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.prefix+fingerprint, payload, ttl).Err(); err != nil {
		c.logger.Warn("cache put failed", zap.String("fingerprint", fingerprint), zap.Error(err))
	}
}
