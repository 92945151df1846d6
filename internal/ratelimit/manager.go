// Package ratelimit keeps per-client request counters in Redis so that every
// API replica shares the same budget.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const window = time.Minute

// Manager provides Redis-backed fixed-window rate limiting
type Manager struct {
	redis *redis.Client
	rpm   int
}

// NewManager returns a limiter allowing rpm requests per client per minute
func NewManager(client *redis.Client, rpm int) *Manager {
	return &Manager{redis: client, rpm: rpm}
}

// Limit returns the configured requests per minute
func (m *Manager) Limit() int { return m.rpm }

func windowKey(client string, now time.Time) string {
	return fmt.Sprintf("rl:%s:%d", client, now.Unix()/int64(window.Seconds()))
}

// Allow counts one request for client in the current minute. It reports
// whether the request fits the budget, the remaining budget and the seconds
// until the window resets.
func (m *Manager) Allow(ctx context.Context, client string) (allowed bool, remaining, resetSec int, err error) {
	now := time.Now().UTC()
	key := windowKey(client, now)

	pipe := m.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, 0, 0, fmt.Errorf("rate counter: %w", err)
	}

	count := int(incr.Val())
	resetSec = int(window.Seconds()) - int(now.Unix()%int64(window.Seconds()))
	remaining = max(m.rpm-count, 0)
	return count <= m.rpm, remaining, resetSec, nil
}

// Count returns the requests seen from client in the current window
func (m *Manager) Count(ctx context.Context, client string) (int, error) {
	val, err := m.redis.Get(ctx, windowKey(client, time.Now().UTC())).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}
