package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/coursevault-api/pkg/config"
)

const connectTimeout = 5 * time.Second

// ErrDisabled is returned when no Redis host is configured.
var ErrDisabled = errors.New("redis disabled: no host configured")

// NewRedis connects to the quiz session store and pings it once. The ping is
// bounded by ctx and by connectTimeout, whichever ends first.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, ErrDisabled
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: connectTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}

	return client, nil
}
