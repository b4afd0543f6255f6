package config

// Redis backs the optional pieces of the service: rate limiting, the day
// view cache, per-reservation locks and short action links. Each of them
// degrades to a no-op when NewRedisClient returns nil.

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisOptions reads the connection settings:
//
//	REDIS_ADDR     – host:port (REDIS_HOST + REDIS_PORT take precedence)
//	REDIS_PASSWORD – optional password
//	REDIS_DB       – database number (default 0)
//	REDIS_TLS      – "true" or "1" enables TLS
func RedisOptions() *redis.Options {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	var tlsConf *tls.Config
	if v := os.Getenv("REDIS_TLS"); strings.EqualFold(v, "true") || v == "1" {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	db, _ := strconv.Atoi(envStr("REDIS_DB", "0"))
	return &redis.Options{
		Addr:      addr,
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        db,
		TLSConfig: tlsConf,
	}
}

// NewRedisClient connects and pings. It returns nil when REDIS_DISABLED is
// set or the server does not answer within two seconds.
func NewRedisClient(log logrus.FieldLogger) *redis.Client {
	if envBool("REDIS_DISABLED", false) {
		return nil
	}
	opts := RedisOptions()
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).WithField("addr", opts.Addr).Warn("redis unavailable, running without cache, rate limit and locks")
		_ = client.Close()
		return nil
	}
	return client
}
