package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/campuscore/backend-go/internal/config"
)

// RateLimiter throttles auth endpoint attempts per client IP using Redis
type RateLimiter interface {
	// Allow reports whether the given client may make another attempt,
	// and the number of attempts used in the current window.
	Allow(ctx context.Context, clientIP string) (bool, int64, error)

	// Close closes the Redis connection
	Close() error
}

type redisRateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	logger *slog.Logger
}

// NewRateLimiter creates a new Redis-based rate limiter
func NewRateLimiter(cfg *config.Config, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       int(cfg.RedisDB),
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("❌ [RateLimiter] Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("✅ [RateLimiter] Connected to Redis",
		"host", cfg.RedisHost,
		"port", cfg.RedisPort,
	)

	return &redisRateLimiter{
		client: client,
		limit:  cfg.AuthRateLimit,
		window: time.Duration(cfg.AuthRateWindowSecs) * time.Second,
		logger: logger,
	}, nil
}

// NewRateLimiterWithClient creates a rate limiter with a provided redis
// client (for testing)
func NewRateLimiterWithClient(client *redis.Client, limit int64, window time.Duration, logger *slog.Logger) RateLimiter {
	return &redisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// attemptKey generates the Redis key for one client's attempt counter
// Format: auth:attempts:{ip}
func attemptKey(clientIP string) string {
	return fmt.Sprintf("auth:attempts:%s", clientIP)
}

func (r *redisRateLimiter) Allow(ctx context.Context, clientIP string) (bool, int64, error) {
	if r.limit <= 0 {
		return true, 0, nil
	}

	key := attemptKey(clientIP)

	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("❌ [RateLimiter] Redis error", "error", err)
		return false, 0, err
	}

	count := incr.Val()
	if count > r.limit {
		r.logger.Warn("⚠️ [RateLimiter] Client throttled", "ip", clientIP, "attempts", count)
		return false, count, nil
	}
	return true, count, nil
}

func (r *redisRateLimiter) Close() error {
	return r.client.Close()
}

// noOpRateLimiter allows everything; used when Redis is unavailable so
// auth keeps working without throttling.
type noOpRateLimiter struct {
	logger *slog.Logger
}

// NewNoOpRateLimiter creates a rate limiter that never throttles
func NewNoOpRateLimiter(logger *slog.Logger) RateLimiter {
	logger.Warn("⚠️ [RateLimiter] Using no-op rate limiter")
	return &noOpRateLimiter{logger: logger}
}

func (n *noOpRateLimiter) Allow(ctx context.Context, clientIP string) (bool, int64, error) {
	return true, 0, nil
}

func (n *noOpRateLimiter) Close() error {
	return nil
}

// Throttle is the gin middleware wrapping a RateLimiter. On a Redis
// failure the request is allowed through: availability over strictness
// for an auth endpoint that is already credential-gated.
func Throttle(limiter RateLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, _, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many attempts. Try again later."})
			c.Abort()
			return
		}
		c.Next()
	}
}
