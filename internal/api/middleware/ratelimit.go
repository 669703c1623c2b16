package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Redis client for storing rate limit data
	RedisClient *redis.Client

	// Default rate limits
	DefaultLimit rate.Limit
	DefaultBurst int

	// Endpoint-specific limits
	EndpointLimits map[string]EndpointLimit
}

// EndpointLimit defines rate limits for specific endpoints
type EndpointLimit struct {
	Limit  rate.Limit
	Burst  int
	Window time.Duration
}

// Default rate limit configurations
var defaultEndpointLimits = map[string]EndpointLimit{
	// Authentication endpoints - stricter limits
	"POST:/api/v1/auth/login": {
		Limit:  5.0 / 60.0, // 5 requests per minute
		Burst:  3,
		Window: time.Minute,
	},
	"POST:/api/v1/auth/register": {
		Limit:  3.0 / 3600.0, // 3 requests per hour
		Burst:  1,
		Window: time.Hour,
	},
	"POST:/api/v1/auth/refresh": {
		Limit:  10.0 / 60.0, // 10 requests per minute
		Burst:  5,
		Window: time.Minute,
	},

	// File upload and imports - stricter limits
	"POST:/api/v1/files/upload": {
		Limit:  20.0 / 60.0, // 20 requests per minute
		Burst:  10,
		Window: time.Minute,
	},
	"POST:/api/v1/imports/contacts": {
		Limit:  10.0 / 60.0, // 10 requests per minute
		Burst:  5,
		Window: time.Minute,
	},

	// Tracking endpoints - high limits (hit by email clients, not people)
	"GET:/t/open/:id": {
		Limit:  1000.0 / 60.0, // 1000 requests per minute
		Burst:  500,
		Window: time.Minute,
	},
	"GET:/t/click/:id": {
		Limit:  1000.0 / 60.0, // 1000 requests per minute
		Burst:  500,
		Window: time.Minute,
	},
}

// RateLimiter creates a new rate limiting middleware
func RateLimiter(config RateLimitConfig) echo.MiddlewareFunc {
	// Set default values if not provided
	if config.DefaultLimit == 0 {
		config.DefaultLimit = 100.0 / 60.0 // 100 requests per minute
	}
	if config.DefaultBurst == 0 {
		config.DefaultBurst = 50
	}
	if config.EndpointLimits == nil {
		config.EndpointLimits = defaultEndpointLimits
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clientID := getClientID(c)
			endpointKey := getEndpointKey(c)
			limitConfig := getLimitConfig(endpointKey, config)

			allowed, remaining, reset, retryAfter := checkRateLimit(
				c.Request().Context(),
				config.RedisClient,
				clientID,
				endpointKey,
				limitConfig,
			)

			setRateLimitHeaders(c, limitConfig, remaining, reset)

			if !allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":       "rate_limit_exceeded",
					"message":     "Rate limit exceeded. Try again later.",
					"retry_after": retryAfter,
					"limit":       windowLimit(limitConfig),
					"window":      limitConfig.Window.Seconds(),
				})
			}

			return next(c)
		}
	}
}

// getClientID returns a unique identifier for the client. Authenticated
// requests are limited per user so NAT'd offices don't share a bucket.
func getClientID(c echo.Context) string {
	if userID := GetUserID(c); userID != "" {
		return fmt.Sprintf("user:%s", userID)
	}
	return fmt.Sprintf("ip:%s", getClientIP(c))
}

// getClientIP returns the client's IP address
func getClientIP(c echo.Context) string {
	// Check for X-Forwarded-For header (for proxy setups)
	if forwardedFor := c.Request().Header.Get("X-Forwarded-For"); forwardedFor != "" {
		ips := strings.Split(forwardedFor, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check for X-Real-IP header
	if realIP := c.Request().Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	return c.RealIP()
}

// getEndpointKey returns a unique key for the endpoint
func getEndpointKey(c echo.Context) string {
	return fmt.Sprintf("%s:%s", c.Request().Method, normalizePath(c.Request().URL.Path))
}

// normalizePath collapses identifier segments so every instance of a route
// shares one limit bucket.
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if _, err := uuid.Parse(segment); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

// getLimitConfig returns the rate limit configuration for an endpoint
func getLimitConfig(endpointKey string, config RateLimitConfig) EndpointLimit {
	if limit, exists := config.EndpointLimits[endpointKey]; exists {
		return limit
	}

	return EndpointLimit{
		Limit:  config.DefaultLimit,
		Burst:  config.DefaultBurst,
		Window: time.Minute,
	}
}

func windowLimit(cfg EndpointLimit) int {
	return int(float64(cfg.Limit) * cfg.Window.Seconds())
}

// checkRateLimit applies a fixed-window counter in Redis. The first hit in a
// window creates the key and arms its expiry; the window boundary is whenever
// the key falls out.
func checkRateLimit(
	ctx context.Context,
	redisClient *redis.Client,
	clientID string,
	endpointKey string,
	limitConfig EndpointLimit,
) (allowed bool, remaining int, reset time.Time, retryAfter int) {
	key := fmt.Sprintf("rate_limit:%s:%s", clientID, endpointKey)
	limit := windowLimit(limitConfig)

	count, err := redisClient.Incr(ctx, key).Result()
	if err != nil {
		// Redis trouble should not take the API down with it
		return true, limit, time.Now().Add(limitConfig.Window), 0
	}
	if count == 1 {
		redisClient.Expire(ctx, key, limitConfig.Window)
	}

	ttl, err := redisClient.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = limitConfig.Window
	}
	reset = time.Now().Add(ttl)

	if int(count) > limit {
		return false, 0, reset, int(ttl.Seconds())
	}

	return true, limit - int(count), reset, 0
}

// setRateLimitHeaders sets rate limit headers in the response
func setRateLimitHeaders(c echo.Context, cfg EndpointLimit, remaining int, reset time.Time) {
	c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(windowLimit(cfg)))
	c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Response().Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}

// CreateDefaultRateLimitConfig creates a default rate limit configuration
func CreateDefaultRateLimitConfig(redisClient *redis.Client) RateLimitConfig {
	return RateLimitConfig{
		RedisClient:    redisClient,
		DefaultLimit:   100.0 / 60.0, // 100 requests per minute
		DefaultBurst:   50,
		EndpointLimits: defaultEndpointLimits,
	}
}
