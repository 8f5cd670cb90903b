package storage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/eaglebank/webclient/internal/config"
)

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, "eaglebank:session"), mr
}

func TestStores_Contract(t *testing.T) {
	ctx := context.Background()

	fileStore, err := NewFile(filepath.Join(t.TempDir(), "nested", "session.json"))
	if err != nil {
		t.Fatalf("NewFile err=%v", err)
	}
	redisStore, _ := newRedisStore(t)

	stores := []struct {
		name  string
		store Store
	}{
		{"memory", NewMemory()},
		{"file", fileStore},
		{"redis", redisStore},
	}

	for _, tt := range stores {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.store
			if _, ok := s.Get(ctx, KeyAuthToken); ok {
				t.Fatal("expected empty store")
			}
			if err := s.Set(ctx, KeyAuthToken, "tok"); err != nil {
				t.Fatalf("Set err=%v", err)
			}
			if err := s.Set(ctx, KeyCurrentAccountID, "acc-1"); err != nil {
				t.Fatalf("Set err=%v", err)
			}
			if v, ok := s.Get(ctx, KeyAuthToken); !ok || v != "tok" {
				t.Fatalf("Get = %q, %v", v, ok)
			}

			keys, err := s.Keys(ctx)
			if err != nil {
				t.Fatalf("Keys err=%v", err)
			}
			if want := []string{KeyAuthToken, KeyCurrentAccountID}; !reflect.DeepEqual(keys, want) {
				t.Fatalf("Keys = %v, want %v", keys, want)
			}

			if err := s.Delete(ctx, KeyAuthToken, KeyCurrentAccountID, "missing"); err != nil {
				t.Fatalf("Delete err=%v", err)
			}
			keys, _ = s.Keys(ctx)
			if len(keys) != 0 {
				t.Fatalf("expected no keys after delete, got %v", keys)
			}
		})
	}
}

func TestFile_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	first, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile err=%v", err)
	}
	if err := first.Set(ctx, KeyAuthToken, "persisted"); err != nil {
		t.Fatalf("Set err=%v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}

	second, err := NewFile(path)
	if err != nil {
		t.Fatalf("reopen err=%v", err)
	}
	if v, ok := second.Get(ctx, KeyAuthToken); !ok || v != "persisted" {
		t.Fatalf("expected persisted token, got %q %v", v, ok)
	}
}

func TestFile_CorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFile(path); err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
}

func TestRedis_KeysArePrefixed(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	if err := s.Set(ctx, KeyAuthToken, "tok"); err != nil {
		t.Fatalf("Set err=%v", err)
	}
	if !mr.Exists("eaglebank:session:" + KeyAuthToken) {
		t.Fatalf("expected prefixed key, have %v", mr.Keys())
	}
	mr.Set("other:authToken", "foreign")
	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys err=%v", err)
	}
	if !reflect.DeepEqual(keys, []string{KeyAuthToken}) {
		t.Fatalf("Keys = %v", keys)
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.Config
		want    string
		wantErr bool
	}{
		{"memory", config.Config{StorageBackend: config.StorageMemory}, "*storage.Memory", false},
		{"file", config.Config{StorageBackend: config.StorageFile, StoragePath: filepath.Join(t.TempDir(), "s.json")}, "*storage.File", false},
		{"redis", config.Config{StorageBackend: config.StorageRedis, RedisAddr: mr.Addr(), StorageRedisPrefix: "p"}, "*storage.Redis", false},
		{"unknown", config.Config{StorageBackend: "etcd"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(&tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New err=%v", err)
			}
			if got := reflect.TypeOf(s).String(); got != tt.want {
				t.Fatalf("backend = %s, want %s", got, tt.want)
			}
			if r, ok := s.(*Redis); ok {
				r.Close()
			}
		})
	}
}
