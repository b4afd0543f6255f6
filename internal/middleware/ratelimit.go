package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/court-booking/internal/config"
)

// takeToken refills the bucket by whole intervals, then takes one token.
// Returns {allowed, remaining, retry_after_ms}.
var takeToken = redis.NewScript(`
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local last = tonumber(redis.call('HGET', KEYS[1], 'last'))
if tokens == nil or last == nil then
  tokens = capacity
  last = now
end

local steps = math.floor(math.max(0, now - last) / interval)
if steps > 0 then
  tokens = math.min(capacity, tokens + steps * refill)
  last = last + steps * interval
end

local allowed, wait = 0, 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.max(0, interval - (now - last))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last', last)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, tokens, wait}
`)

type bucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
}

func (b bucket) take(ctx context.Context, key string, now time.Time) (allowed bool, remaining int64, retry time.Duration, err error) {
	res, err := takeToken.Run(ctx, b.rdb, []string{key},
		now.UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		b.cfg.TTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(res) != 3 {
		return false, 0, 0, errors.New("rate limit: unexpected script reply")
	}
	return res[0] == 1, res[1], time.Duration(res[2]) * time.Millisecond, nil
}

// NewTokenBucket limits booking writes with a Redis token bucket. Callers
// are keyed by IP, player phone and route; when Redis misbehaves the
// request goes through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log logrus.FieldLogger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	b := bucket{cfg: cfg, rdb: rdb}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			allowed, remaining, retry, err := b.take(c.Request().Context(), key, time.Now())
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("rate limit check failed, letting request through")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if allowed {
				return next(c)
			}

			secs := int((retry + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			log.WithFields(logrus.Fields{"key": key, "retry_after": secs}).Info("rate limited")
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"ok":          false,
				"reason":      "rate_limited",
				"error":       "too many booking requests, try again shortly",
				"retry_after": secs,
			})
		}
	}
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	phone := callerPhone(c)

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "phone":
		parts = append(parts, "phone", phone)
	case "ip_phone":
		parts = append(parts, "ip", ip, "phone", phone)
	default:
		parts = append(parts, "ip", ip, "phone", phone, "route", c.Request().Method+" "+c.Path())
	}
	return strings.Join(parts, ":")
}
