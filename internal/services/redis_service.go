package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisService provides the optional Redis connection used for cross-instance
// issuance rate limiting. The service runs fine without it; callers must
// tolerate a nil *RedisService.
type RedisService struct {
	client *redis.Client
	mu     sync.RWMutex
}

// NewRedisService connects to Redis and verifies the connection.
func NewRedisService(redisURL string) (*RedisService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("✅ Redis connection established")
	return &RedisService{client: client}, nil
}

// Client returns the underlying Redis client
func (r *RedisService) Client() *redis.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.client
}

// Incr atomically increments a counter key
func (r *RedisService) Incr(ctx context.Context, key string) (int64, error) {
	return r.Client().Incr(ctx, key).Result()
}

// Expire sets a TTL in seconds on a key
func (r *RedisService) Expire(ctx context.Context, key string, seconds int) error {
	return r.Client().Expire(ctx, key, time.Duration(seconds)*time.Second).Err()
}

// Close closes the Redis connection
func (r *RedisService) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// IssueLimiter bounds how many capability tokens a single client may mint
// per minute. Backed by Redis so the bound holds across instances; with no
// Redis configured every request is allowed.
type IssueLimiter struct {
	redis     *RedisService
	perMinute int64
}

// NewIssueLimiter creates an issuance limiter. redisService may be nil.
func NewIssueLimiter(redisService *RedisService, perMinute int64) *IssueLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &IssueLimiter{redis: redisService, perMinute: perMinute}
}

// Allow reports whether clientID may issue another token right now.
// Redis errors fail open: losing rate limiting is better than losing issuance.
func (l *IssueLimiter) Allow(ctx context.Context, clientID string) bool {
	if l.redis == nil {
		return true
	}

	key := "ratelimit:issue:" + clientID
	count, err := l.redis.Incr(ctx, key)
	if err != nil {
		log.Printf("⚠️ [RATE-LIMIT] Redis error: %v", err)
		return true
	}

	if count == 1 {
		l.redis.Expire(ctx, key, 60)
	}

	return count <= l.perMinute
}
