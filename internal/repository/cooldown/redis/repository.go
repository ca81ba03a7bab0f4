package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRepo(rc *redis.Client, ttl time.Duration) *repo {
	return &repo{
		rc:  rc,
		ttl: ttl,
	}
}

func (r repo) getCooldownKey(key string) string {
	return "cooldown:" + key
}

// Acquire starts a cooldown for key and reports true, or reports false while one is running.
func (r repo) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := r.rc.SetNX(ctx, r.getCooldownKey(key), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire cooldown: %w", err)
	}

	return ok, nil
}
