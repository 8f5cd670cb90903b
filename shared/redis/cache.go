package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Namespace is a string key/value view over Redis where every key lives under
// a common prefix. A TTL of 0 keeps keys until they are deleted.
type Namespace struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewNamespace(client goredis.UniversalClient, prefix string, ttl time.Duration) *Namespace {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	return &Namespace{client: client, prefix: prefix + ":", ttl: ttl}
}

// Get returns (value, true) on a hit and ("", false) on a miss or any error.
func (n *Namespace) Get(ctx context.Context, key string) (string, bool) {
	v, err := n.client.Get(ctx, n.prefix+key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (n *Namespace) Set(ctx context.Context, key, value string) error {
	if err := n.client.Set(ctx, n.prefix+key, value, n.ttl).Err(); err != nil {
		return fmt.Errorf("redis write %s: %w", key, err)
	}
	return nil
}

func (n *Namespace) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = n.prefix + k
	}
	if err := n.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Keys lists the keys of the namespace with the prefix stripped.
func (n *Namespace) Keys(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	for {
		batch, next, err := n.client.Scan(ctx, cursor, n.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, k := range batch {
			out = append(out, strings.TrimPrefix(k, n.prefix))
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}
