package middleware_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuscore/backend-go/internal/middleware"
)

func newTestLimiter(t *testing.T, limit int64, window time.Duration) middleware.RateLimiter {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return middleware.NewRateLimiterWithClient(client, limit, window, log)
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	limiter := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		allowed, count, err := limiter.Allow(ctx, "192.0.2.1")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i, count)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	limiter := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "192.0.2.1")
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, count, err := limiter.Allow(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(3), count)
}

func TestRateLimiter_CountsPerClient(t *testing.T) {
	limiter := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	allowed, _, err := limiter.Allow(ctx, "192.0.2.1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = limiter.Allow(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, allowed)

	// A different client has its own window.
	allowed, _, err = limiter.Allow(ctx, "192.0.2.2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiter_ZeroLimitDisablesThrottling(t *testing.T) {
	limiter := newTestLimiter(t, 0, time.Minute)

	allowed, _, err := limiter.Allow(context.Background(), "192.0.2.1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestThrottleMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := newTestLimiter(t, 1, time.Minute)

	r := gin.New()
	r.Use(middleware.Throttle(limiter, log))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}

func TestThrottleMiddlewareFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := middleware.NewRateLimiterWithClient(client, 1, time.Minute, log)

	// Redis down: requests pass through unthrottled.
	mr.Close()
	client.Close()

	r := gin.New()
	r.Use(middleware.Throttle(limiter, log))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
