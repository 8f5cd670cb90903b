// Package storage persists the small amount of client state that must
// survive a restart: the session token and the selected account.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eaglebank/webclient/internal/config"
	sharedredis "github.com/eaglebank/webclient/shared/redis"
)

// Durable keys.
const (
	KeyAuthToken        = "authToken"
	KeyCurrentAccountID = "currentAccountId"
)

// Store is a string key/value store. Get reports misses and read failures
// alike as absent.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) ([]string, error)
}

// New builds the backend selected by cfg.StorageBackend. log may be nil.
func New(cfg *config.Config, log *zap.SugaredLogger) (Store, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return NewMemory(), nil
	case config.StorageFile, "":
		return NewFile(cfg.StoragePath)
	case config.StorageRedis:
		client, err := sharedredis.NewClient(context.Background(), sharedredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		return NewRedis(client.Client, cfg.StorageRedisPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}

// Memory keeps everything in process memory.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.data), nil
}

// Redis stores keys under a prefix in Redis.
type Redis struct {
	ns     *sharedredis.Namespace
	client goredis.UniversalClient
}

func NewRedis(client goredis.UniversalClient, prefix string) *Redis {
	return &Redis{ns: sharedredis.NewNamespace(client, prefix, 0), client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	return r.ns.Get(ctx, key)
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.ns.Set(ctx, key, value)
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	return r.ns.Delete(ctx, keys...)
}

func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.ns.Keys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
