package dedup

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator records which epochs have been announced so a restart or an
// overlapping deployment does not repeat a report. It fails open: when
// Redis is unreachable the guard reads as "not sent" and the announcement
// proceeds.
type Deduplicator struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// New creates a Deduplicator backed by Redis.
func New(redisURL, password string, logger *slog.Logger) (*Deduplicator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Deduplicator{rdb: rdb, logger: logger.With("component", "dedup")}, nil
}

// Close shuts down the Redis connection.
func (d *Deduplicator) Close() error {
	return d.rdb.Close()
}

// AlreadySent reports whether key was recorded. Guard outages read as
// "not sent" so a Redis failure never silences a report.
func (d *Deduplicator) AlreadySent(ctx context.Context, key string) bool {
	exists, err := d.rdb.Exists(ctx, key).Result()
	if err != nil {
		d.logger.Warn("dedup check failed, proceeding without guard", "key", key, "error", err)
		return false
	}
	return exists > 0
}

// Record marks key as announced permanently (no expiry).
func (d *Deduplicator) Record(ctx context.Context, key string) {
	if err := d.rdb.Set(ctx, key, "1", 0).Err(); err != nil {
		d.logger.Warn("dedup record failed", "key", key, "error", err)
	}
}
