package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agrostack/mandi-engine/internal/metrics"
)

// CachedSource wraps a Source with a Redis read-through cache. Only
// non-empty answers are cached so an outage is not remembered past the
// outage itself. Redis errors degrade to a direct primary read.
type CachedSource struct {
	primary Source
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedSource creates a cached wrapper around a primary source.
func NewCachedSource(primary Source, rdb *redis.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedSource) Records(ctx context.Context, commodity string, limit int) ([]Record, error) {
	key := recordsKey(commodity, limit)

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var records []Record
		if json.Unmarshal(data, &records) == nil {
			metrics.UpstreamCalls.WithLabelValues("price_feed", metrics.OutcomeCacheHit).Inc()
			return records, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("price cache read failed", "key", key, "err", err)
	}

	// Cache miss: read from primary.
	records, err := s.primary.Records(ctx, commodity, limit)
	if err != nil || len(records) == 0 {
		return records, err
	}

	if data, err := json.Marshal(records); err == nil {
		if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
			slog.Warn("price cache write failed", "key", key, "err", err)
		}
	}
	return records, nil
}

func recordsKey(commodity string, limit int) string {
	return fmt.Sprintf("pricefeed:%s:%d", commodity, limit)
}
