package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/food-box-reservation/internal/config"
)

// tokenBucket takes one token from the bucket at KEYS[1].  Tokens accrue
// continuously at ARGV[3] per ARGV[4] ms up to ARGV[2].  The reply is
// {allowed (0|1), whole tokens left, ms until the next token}.
var tokenBucket = redis.NewScript(`
local cap, rate_n, per_ms, ttl = tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local now = tonumber(ARGV[1])
local b = redis.call('HMGET', KEYS[1], 'level', 'at')
local level = tonumber(b[1]) or cap
local at = tonumber(b[2]) or now

local per_token = per_ms / rate_n
level = math.min(cap, level + math.max(0, now - at) / per_token)

local ok, wait = 0, 0
if level >= 1 then
  ok = 1
  level = level - 1
else
  wait = math.ceil((1 - level) * per_token)
end

redis.call('HSET', KEYS[1], 'level', tostring(level), 'at', now)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, math.floor(level), wait}
`)

// bucketState is the script reply.
type bucketState struct {
	allowed   bool
	remaining int64
	wait      time.Duration
}

func takeToken(ctx context.Context, rdb *redis.Client, cfg config.RateLimitConfig, key string) (bucketState, error) {
	vals, err := tokenBucket.Run(ctx, rdb, []string{key},
		time.Now().UnixMilli(),
		cfg.Capacity,
		cfg.RefillTokens,
		cfg.RefillInterval.Milliseconds(),
		int64(cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return bucketState{}, err
	}
	if len(vals) != 3 {
		return bucketState{}, fmt.Errorf("token bucket: unexpected reply %v", vals)
	}
	return bucketState{
		allowed:   vals[0] == 1,
		remaining: vals[1],
		wait:      time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits how often a caller may hit the wrapped routes.  Redis
// errors fail open: the request is served and the error logged.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = zap.NewNop()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			st, err := takeToken(c.Request().Context(), rdb, cfg, key)
			if err != nil {
				log.Warn("rate limit check skipped", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(st.remaining, 10))
			if st.allowed {
				return next(c)
			}

			secs := int(math.Ceil(st.wait.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			log.Info("rate limited", zap.String("key", key), zap.Duration("wait", st.wait))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"errors":      []string{"too many saves, try again shortly"},
				"retry_after": secs,
			})
		}
	}
}

// buildRateKey scopes a bucket.  Unknown strategies fall back to the
// narrowest key: ip, user and route together.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	parts := map[string]string{
		"ip":    ip,
		"user":  userID(c),
		"route": c.Request().Method + " " + c.Path(),
	}

	var fields []string
	switch s := strings.ToLower(cfg.KeyStrategy); s {
	case "ip", "user", "route":
		fields = []string{s}
	case "ip_user":
		fields = []string{"ip", "user"}
	case "user_route":
		fields = []string{"user", "route"}
	default:
		fields = []string{"ip", "user", "route"}
	}

	key := []string{cfg.Prefix}
	for _, f := range fields {
		key = append(key, f, parts[f])
	}
	return strings.Join(key, ":")
}
