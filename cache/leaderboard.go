// Package cache keeps computed leaderboards in Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/models"
)

const keyPrefix = "qq:leaderboard:"

// Leaderboard caches leaderboard responses by kind ("score", "speed").
// Failures are logged and read as misses.
type Leaderboard interface {
	Get(ctx context.Context, kind string) (*models.Leaderboard, bool)
	Set(ctx context.Context, kind string, lb *models.Leaderboard)
	Invalidate(ctx context.Context)
}

// Kinds lists every cached leaderboard.
var Kinds = []string{"score", "speed"}

func key(kind string) string {
	return keyPrefix + kind
}

// client is the part of *redis.Client the cache uses.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisLeaderboard stores leaderboards as JSON strings with a TTL.
type RedisLeaderboard struct {
	client client
	ttl    time.Duration
}

// NewRedisLeaderboard connects and pings the server.
func NewRedisLeaderboard(addr, password string, db int, ttl time.Duration) (*RedisLeaderboard, error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Log.Infof("Redis leaderboard cache at %s (ttl %s)", addr, ttl)
	return &RedisLeaderboard{client: rdb, ttl: ttl}, nil
}

func (c *RedisLeaderboard) Get(ctx context.Context, kind string) (*models.Leaderboard, bool) {
	val, err := c.client.Get(ctx, key(kind)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warnf("leaderboard cache get %s: %v", kind, err)
		}
		return nil, false
	}
	var lb models.Leaderboard
	if err := json.Unmarshal(val, &lb); err != nil {
		logger.Log.Warnf("leaderboard cache decode %s: %v", kind, err)
		return nil, false
	}
	return &lb, true
}

func (c *RedisLeaderboard) Set(ctx context.Context, kind string, lb *models.Leaderboard) {
	data, err := json.Marshal(lb)
	if err != nil {
		logger.Log.Warnf("leaderboard cache encode %s: %v", kind, err)
		return
	}
	if err := c.client.Set(ctx, key(kind), data, c.ttl).Err(); err != nil {
		logger.Log.Warnf("leaderboard cache set %s: %v", kind, err)
	}
}

func (c *RedisLeaderboard) Invalidate(ctx context.Context) {
	keys := make([]string, len(Kinds))
	for i, k := range Kinds {
		keys[i] = key(k)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Log.Warnf("leaderboard cache invalidate: %v", err)
	}
}

func (c *RedisLeaderboard) Close() error {
	return c.client.Close()
}

// Noop never caches.
type Noop struct{}

func (Noop) Get(context.Context, string) (*models.Leaderboard, bool) { return nil, false }
func (Noop) Set(context.Context, string, *models.Leaderboard)        {}
func (Noop) Invalidate(context.Context)                              {}

var (
	_ Leaderboard = (*RedisLeaderboard)(nil)
	_ Leaderboard = Noop{}
)
