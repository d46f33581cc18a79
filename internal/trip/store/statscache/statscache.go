// Package statscache caches assembled organization statistics in Redis.
//
// The dashboard rollup is a read-heavy aggregate over two tables; a short TTL
// keeps it cheap without a separate invalidation protocol. The cache fails
// open: any Redis error is logged and treated as a miss so statistics stay
// available when Redis is down.
package statscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"rihla/internal/trip/models"
	id "rihla/pkg/domain"
)

// DefaultTTL bounds staleness of the cached rollup.
const DefaultTTL = 30 * time.Second

const keyPrefix = "rihla:stats:org:"

// Cache is a read-through cache for per-organization statistics.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New constructs a statistics cache on an existing Redis client.
func New(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Get returns the cached statistics for the organization, or ok=false on a
// miss. Redis errors and corrupt entries count as misses.
func (c *Cache) Get(ctx context.Context, orgID id.OrgID) (*models.Statistics, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+orgID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "stats cache read failed", "error", err)
		return nil, false
	}
	var stats models.Statistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		c.logger.WarnContext(ctx, "stats cache entry corrupt", "error", err)
		return nil, false
	}
	return &stats, true
}

// Set stores the statistics with the configured TTL. Failures are logged and
// swallowed; the caller already has the fresh value.
func (c *Cache) Set(ctx context.Context, orgID id.OrgID, stats *models.Statistics) {
	raw, err := json.Marshal(stats)
	if err != nil {
		c.logger.WarnContext(ctx, "stats cache marshal failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, keyPrefix+orgID.String(), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "stats cache write failed", "error", err)
	}
}

// Invalidate drops the cached entry. Called after writes that change the
// rollup so dashboards converge faster than the TTL.
func (c *Cache) Invalidate(ctx context.Context, orgID id.OrgID) {
	if err := c.client.Del(ctx, keyPrefix+orgID.String()).Err(); err != nil {
		c.logger.WarnContext(ctx, "stats cache invalidate failed", "error", err)
	}
}
