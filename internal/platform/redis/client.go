package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// backend names Redis in store errors
const backend = "redis"

// Connect parses url, opens a client and verifies it with PING
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := goredis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
