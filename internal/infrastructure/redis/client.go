package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/config"
)

// defaultPingTimeout bounds the connect and health check pings.
const defaultPingTimeout = 5 * time.Second

// Client is a site-scoped Redis connection. It is safe for concurrent use.
type Client struct {
	rdb    *goredis.Client
	prefix string
}

// Connect opens a connection and verifies it with a ping.
func Connect(ctx context.Context, cfg config.RedisConfig, site string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if site == "" {
		return nil, ErrNoSite
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "gateway"
	}
	return &Client{rdb: rdb, prefix: prefix + ":" + site}, nil
}

// Key joins parts under the client's namespace.
func (c *Client) Key(parts ...string) string {
	return c.prefix + ":" + strings.Join(parts, ":")
}

// Redis returns the underlying go-redis client.
func (c *Client) Redis() *goredis.Client {
	return c.rdb
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := c.rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
