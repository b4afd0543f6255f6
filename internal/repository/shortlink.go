package repository

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/court-booking/internal/model"
)

const codeAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ShortLinks maps short codes to action URLs in Redis.
type ShortLinks struct {
	rdb    *redis.Client
	prefix string
	length int
}

func NewShortLinks(rdb *redis.Client, prefix string) *ShortLinks {
	return &ShortLinks{rdb: rdb, prefix: prefix, length: 7}
}

// Shorten stores target under a fresh code that expires after ttl.
func (s *ShortLinks) Shorten(ctx context.Context, target string, ttl time.Duration) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := randomCode(s.length)
		if err != nil {
			return "", err
		}
		ok, err := s.rdb.SetNX(ctx, s.key(code), target, ttl).Result()
		if err != nil {
			return "", model.Upstream("short link store", err)
		}
		if ok {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a short code")
}

// Resolve returns the target of code, or model.ErrNotFound.
func (s *ShortLinks) Resolve(ctx context.Context, code string) (string, error) {
	target, err := s.rdb.Get(ctx, s.key(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", model.ErrNotFound
	}
	if err != nil {
		return "", model.Upstream("short link store", err)
	}
	return target, nil
}

func (s *ShortLinks) key(code string) string { return s.prefix + ":" + code }

func randomCode(n int) (string, error) {
	b := make([]byte, n)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[v.Int64()]
	}
	return string(b), nil
}
