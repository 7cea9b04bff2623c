package router

import (
	"net"
	"strconv"

	"github.com/gofiber/storage/redis"
	goredis "github.com/redis/go-redis/v9"
)

// limiterDatabase keeps rate limit counters apart from the cache (DB 0).
const limiterDatabase = 2

// NewLimiterStorage builds the rate limiter storage on the same Redis
// server as the cache client.
func NewLimiterStorage(cacheClient *goredis.Client) *redis.Storage {
	return redis.New(limiterConfig(cacheClient))
}

func limiterConfig(cacheClient *goredis.Client) redis.Config {
	cfg := redis.Config{
		Host:     "localhost",
		Port:     6379,
		Database: limiterDatabase,
		Reset:    false,
	}
	if cacheClient == nil {
		return cfg
	}
	opts := cacheClient.Options()
	if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
		cfg.Host = h
		if v, err := strconv.Atoi(p); err == nil {
			cfg.Port = v
		}
	}
	cfg.Password = opts.Password
	return cfg
}
