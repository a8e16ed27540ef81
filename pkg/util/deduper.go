package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper guards side effects that should fire at most once per key, backed
// by redis SetNX. It fails open: when redis is unavailable the effect runs.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// AcquireOnce tries to acquire a dedup lock for a given channel + detection.
// Returns true if this is the first time, false on a duplicate.
func (d *Deduper) AcquireOnce(ctx context.Context, channel string, detectionID int) bool {
	if d == nil || d.rdb == nil {
		return true
	}

	key := fmt.Sprintf("dedup:%s:%d", channel, detectionID)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("Redis dedup check failed, allowing processing",
				zap.String("channel", channel),
				zap.Int("detection_id", detectionID),
				zap.Error(err),
			)
		}
		return true
	}

	if !ok && d.logger != nil {
		d.logger.Info("Skipped duplicated notification",
			zap.String("channel", channel),
			zap.Int("detection_id", detectionID),
			zap.String("dedup_key", key),
		)
	}

	return ok
}
