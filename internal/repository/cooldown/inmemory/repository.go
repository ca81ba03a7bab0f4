package inmemory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type repo struct {
	mu      sync.Mutex
	clock   clock.Clock
	ttl     time.Duration
	expires map[string]time.Time
	logger  *slog.Logger
}

func NewRepo(c clock.Clock, ttl time.Duration, logger *slog.Logger) *repo {
	return &repo{
		clock:   c,
		ttl:     ttl,
		expires: make(map[string]time.Time),
		logger:  logger,
	}
}

// Acquire starts a cooldown for key and reports true, or reports false while one is running.
func (r *repo) Acquire(ctx context.Context, key string) (bool, error) {
	funcName := "cooldown.inmemory.Acquire"
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.logger.DebugContext(ctx, funcName, "key", key)
	if exp, ok := r.expires[key]; ok && now.Before(exp) {
		r.logger.DebugContext(ctx, funcName, "result", "cooling down", "expires_at", exp)
		return false, nil
	}

	r.sweep(now)
	r.expires[key] = now.Add(r.ttl)

	r.logger.DebugContext(ctx, funcName, "result", "OK")
	return true, nil
}

func (r *repo) sweep(now time.Time) {
	for k, exp := range r.expires {
		if !now.Before(exp) {
			delete(r.expires, k)
		}
	}
}
