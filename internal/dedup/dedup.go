package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "timeoff:slack-event:"

// RedisDeduper remembers Slack event IDs so retried deliveries are processed once.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// FirstSeen records id and reports whether this is its first delivery.
func (d *RedisDeduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, keyPrefix+id, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: set %s: %w", id, err)
	}
	return ok, nil
}

// Forget removes id, e.g. when enqueueing the event failed and Slack should retry.
func (d *RedisDeduper) Forget(ctx context.Context, id string) error {
	if err := d.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("dedup: delete %s: %w", id, err)
	}
	return nil
}
