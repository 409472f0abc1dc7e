// Package analytics keeps per-owner notification counters in Redis,
// bucketed by time window, so operators can see which owners generate
// notification traffic. Counters expire after the retention period.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event records one notification attempt for an owner.
type Event struct {
	OwnerID    string
	Outcome    string
	OccurredAt time.Time
}

type RedisSink struct {
	client    *redis.Client
	window    time.Duration
	retention time.Duration
}

func NewRedisSink(client *redis.Client, window, retention time.Duration) *RedisSink {
	if window <= 0 {
		window = time.Minute
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &RedisSink{client: client, window: window, retention: retention}
}

// Write increments the counter for the event's owner, outcome and time
// bucket. The counter's TTL is refreshed to the retention period.
func (s *RedisSink) Write(ctx context.Context, ev Event) error {
	key := buildKey(ev.OwnerID, ev.Outcome, ev.OccurredAt, s.window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func buildKey(ownerID, outcome string, t time.Time, window time.Duration) string {
	return fmt.Sprintf("rmd:o:%s:%s:%s", ownerID, outcome, truncateToBucket(t, window))
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	default:
		return t.Format("200601021504")
	}
}
