package config

import (
	"context"
	"log"
	"os"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// NewRedisClient builds a Redis client from environment variables.
// Returns nil when REDIS_ADDR is unset, in which case callers fall back
// to the in-process change feed.
func NewRedisClient() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     os.Getenv("REDIS_USERNAME"),
		Password:     os.Getenv("REDIS_PASSWORD"),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis unreachable at %s: %v", addr, err)
	}

	return client
}
