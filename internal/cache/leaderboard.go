// Package cache keeps short-lived copies of expensive read models in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	leaderboardPrefix = "kenhavate:leaderboard:"
	leaderboardIndex  = "kenhavate:leaderboard:keys"
)

// Connect opens a Redis client from a redis:// URL and pings it.
func Connect(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("redis connected", "addr", opts.Addr)
	return client, nil
}

// Leaderboard caches computed leaderboards. A nil *Leaderboard, or one
// without a client, is a valid cache that never hits.
type Leaderboard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboard(client *redis.Client, ttl time.Duration) *Leaderboard {
	return &Leaderboard{client: client, ttl: ttl}
}

func (l *Leaderboard) enabled() bool {
	return l != nil && l.client != nil
}

// Get loads a cached value into dest and reports whether it was found.
func (l *Leaderboard) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !l.enabled() {
		return false, nil
	}
	raw, err := l.client.Get(ctx, leaderboardPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Leaderboard) Set(ctx context.Context, key string, value interface{}) error {
	if !l.enabled() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	pipe := l.client.TxPipeline()
	pipe.Set(ctx, leaderboardPrefix+key, raw, l.ttl)
	pipe.SAdd(ctx, leaderboardIndex, leaderboardPrefix+key)
	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate drops every cached leaderboard.
func (l *Leaderboard) Invalidate(ctx context.Context) error {
	if !l.enabled() {
		return nil
	}
	keys, err := l.client.SMembers(ctx, leaderboardIndex).Result()
	if err != nil {
		return err
	}
	keys = append(keys, leaderboardIndex)
	return l.client.Del(ctx, keys...).Err()
}
