// Package redis constructs the shared go-redis client used by the cache
// layer and the active session registry.
package redis

import (
	"context"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/learnstack/backend/internal/config"
)

const connectTimeout = 5 * time.Second

// NewClient connects and verifies the connection with a ping before
// returning, so a bad address fails startup instead of the first request.
func NewClient(cfg config.RedisConfig) (*redislib.Client, error) {
	opts, err := redislib.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := redislib.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
