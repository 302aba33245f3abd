package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Manager provides Redis-backed posting quota accounting per platform.
// Platforms enforce their own limits server-side; this keeps the client
// from burning through a quota window when the scheduler runs hot. With
// no Redis configured every check is allowed.
type Manager struct {
	redis *redis.Client
	// posts allowed per platform per window
	limit  int
	window time.Duration
}

// NewManager creates a quota manager. An empty redisURL yields a pass-through
// manager that allows everything.
func NewManager(redisURL string) (*Manager, error) {
	m := &Manager{limit: 50, window: 15 * time.Minute}
	if redisURL == "" {
		return m, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	m.redis = client
	return m, nil
}

// SetLimit allows tests to override the per-window limit.
func (m *Manager) SetLimit(limit int, window time.Duration) {
	m.limit = limit
	m.window = window
}

// Close releases the Redis connection.
func (m *Manager) Close() error {
	if m.redis == nil {
		return nil
	}
	return m.redis.Close()
}

// CheckPost returns allowed=false when the platform's posting window is
// exhausted, plus seconds until the window resets.
func (m *Manager) CheckPost(ctx context.Context, platform string) (allowed bool, resetSec int, err error) {
	if m.redis == nil {
		return true, 0, nil
	}

	now := time.Now().UTC()
	windowSec := int64(m.window / time.Second)
	window := now.Unix() / windowSec
	key := fmt.Sprintf("quota:post:%s:%d", platform, window)

	pipe := m.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, m.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	count := int(incr.Val())
	if count > m.limit {
		secPassed := int(now.Unix() % windowSec)
		return false, int(windowSec) - secPassed, nil
	}
	return true, 0, nil
}

// PostsInWindow returns the current count for a platform's active window.
func (m *Manager) PostsInWindow(ctx context.Context, platform string) (int, error) {
	if m.redis == nil {
		return 0, nil
	}

	windowSec := int64(m.window / time.Second)
	window := time.Now().UTC().Unix() / windowSec
	key := fmt.Sprintf("quota:post:%s:%d", platform, window)

	val, err := m.redis.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}
