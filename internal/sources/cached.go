package sources

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/cache"
	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/profile"
)

type cached struct {
	Source
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// WithCache serves repeated fetches for the same (source, profile, limit)
// from c until ttl elapses. Records come back exactly as first fetched.
// Cache failures are logged and fall through to a live fetch.
func WithCache(src Source, c cache.Cache, ttl time.Duration, logger *zap.Logger) Source {
	if c == nil || ttl <= 0 {
		return src
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cached{Source: src, cache: c, ttl: ttl, logger: logger}
}

// CacheKey identifies one cached batch.
func CacheKey(sourceID string, p profile.Canonical, limit int) string {
	return fmt.Sprintf("source:%s:%s:%d", sourceID, p.Hash(), limit)
}

func (c *cached) Fetch(ctx context.Context, p profile.Canonical, limit int) ([]listing.Record, error) {
	key := CacheKey(c.ID(), p, limit)

	var records []listing.Record
	hit, err := c.cache.GetJSON(ctx, key, &records)
	if err != nil {
		c.logger.Warn("reading cached source response", zap.String("source", c.ID()), zap.Error(err))
	}
	if hit {
		c.logger.Debug("serving source from cache", zap.String("source", c.ID()), zap.Int("records", len(records)))
		return records, nil
	}

	records, err = c.Source.Fetch(ctx, p, limit)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetJSON(ctx, key, records, c.ttl); err != nil {
		c.logger.Warn("storing source response", zap.String("source", c.ID()), zap.Error(err))
	}
	return records, nil
}
