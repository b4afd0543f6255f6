package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/court-booking/internal/config"
)

// SkipCacheKey is set on the echo context by a handler whose response must
// not be stored, e.g. a day view assembled while a calendar was failing.
const SkipCacheKey = "cache.skip"

// SkipCache marks the current response as not cacheable.
func SkipCache(c echo.Context) { c.Set(SkipCacheKey, true) }

type cachedView struct {
	Status      int    `json:"s"`
	ContentType string `json:"ct"`
	Body        []byte `json:"b"`
}

// teeWriter forwards the response and keeps up to limit bytes of it.
type teeWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (w *teeWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
	if !w.truncated {
		if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
			w.truncated = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// cacheKeyFrom namespaces entries by the requested day so a booking
// mutation can purge exactly the views it changed:
// <prefix>:<date>:<sha1(route?query)>.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
	day := c.Param("date")
	if day == "" {
		day = c.QueryParam("date")
	}
	if day == "" {
		day = "any"
	}
	sum := sha1.Sum([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
	return fmt.Sprintf("%s:%s:%x", cfg.Prefix, day, sum[:])
}

// PurgeDay drops every cached view of day (YYYY-MM-DD).
func PurgeDay(ctx context.Context, rdb *redis.Client, cfg config.CacheConfig, day string) error {
	if rdb == nil || !cfg.Enabled {
		return nil
	}
	var keys []string
	iter := rdb.Scan(ctx, 0, cfg.Prefix+":"+day+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}

// NewRedisCache serves repeated GETs of the day view from Redis for
// cfg.TTL. Only complete 200 responses are stored.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKeyFrom(cfg, c)

			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var v cachedView
				if json.Unmarshal(raw, &v) == nil {
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(v.Status, v.ContentType, v.Body)
				}
			}

			w := &teeWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = w
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}

			if skip, _ := c.Get(SkipCacheKey).(bool); skip || w.status != http.StatusOK || w.truncated {
				return nil
			}
			raw, err := json.Marshal(cachedView{
				Status:      w.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        w.buf.Bytes(),
			})
			if err == nil {
				_ = rdb.Set(context.WithoutCancel(ctx), key, raw, ttl).Err()
			}
			return nil
		}
	}
}
