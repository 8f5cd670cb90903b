package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// Options selects the server and the logger the client reports through.
type Options struct {
	Addr     string
	Password string
	DB       int
	Logger   *zap.SugaredLogger
}

// Client is a go-redis client that has answered a PING.
type Client struct {
	*redis.Client
	log *zap.SugaredLogger
}

// NewClient connects and pings the server, giving up when ctx ends or after
// five seconds.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  pingTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		log.Warnw("redis unreachable", "addr", opts.Addr, "db", opts.DB, "error", err)
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	log.Infow("redis connected", "addr", opts.Addr, "db", opts.DB)
	return &Client{Client: rdb, log: log}, nil
}

func (c *Client) Close() error {
	if err := c.Client.Close(); err != nil {
		c.log.Warnw("redis close failed", "error", err)
		return err
	}
	c.log.Debugw("redis connection closed")
	return nil
}
