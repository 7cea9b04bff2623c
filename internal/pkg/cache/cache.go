package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/Bizdir/internal/pkg/env"
)

// Options returns the Redis connection settings from the environment.
func Options() *redis.Options {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		Password:     env.GetEnv("CACHE_PASSWORD", ""),
		DB:           env.GetEnvInt("CACHE_DB", 0),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// New connects to the Dragonfly/Redis cache. An unreachable cache is only
// logged: every caller falls back to the database.
func New(log logrus.FieldLogger) *redis.Client {
	client := redis.NewClient(Options())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.WithError(err).Warn("could not connect to cache")
	} else {
		log.Infof("connected to cache: %s", pong)
	}
	return client
}
