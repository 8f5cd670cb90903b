// Package config loads client and sandbox settings from the environment,
// an optional .env file and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// Config holds the client configuration.
type Config struct {
	APIBaseURL           string        `mapstructure:"API_BASE_URL"`
	SocketURL            string        `mapstructure:"SOCKET_URL"`
	StorageBackend       string        `mapstructure:"STORAGE_BACKEND"`
	StoragePath          string        `mapstructure:"STORAGE_PATH"`
	StorageRedisPrefix   string        `mapstructure:"STORAGE_REDIS_PREFIX"`
	RedisAddr            string        `mapstructure:"REDIS_ADDR"`
	RedisPassword        string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB              int           `mapstructure:"REDIS_DB"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ReconnectAttempts    int           `mapstructure:"RECONNECT_ATTEMPTS"`
	ReconnectDelay       time.Duration `mapstructure:"RECONNECT_DELAY"`
	DialTimeout          time.Duration `mapstructure:"DIAL_TIMEOUT"`
	ToastWindow          time.Duration `mapstructure:"TOAST_WINDOW"`
	SessionCheckSchedule string        `mapstructure:"SESSION_CHECK_SCHEDULE"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	VideoDomain          string        `mapstructure:"VIDEO_DOMAIN"`
}

// SandboxConfig holds the configuration of the local development server.
type SandboxConfig struct {
	Port           string        `mapstructure:"PORT"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	OpeningBalance string        `mapstructure:"OPENING_BALANCE"`
	AutoVerify     bool          `mapstructure:"AUTO_VERIFY"`
	VideoBaseURL   string        `mapstructure:"VIDEO_BASE_URL"`
	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	RedisPassword  string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int           `mapstructure:"REDIS_DB"`
	TokenTTL       time.Duration `mapstructure:"TOKEN_TTL"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
}

var clientKeys = []string{
	"API_BASE_URL", "SOCKET_URL", "STORAGE_BACKEND", "STORAGE_PATH", "STORAGE_REDIS_PREFIX",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REQUEST_TIMEOUT", "RECONNECT_ATTEMPTS",
	"RECONNECT_DELAY", "DIAL_TIMEOUT", "TOAST_WINDOW", "SESSION_CHECK_SCHEDULE", "LOG_LEVEL",
	"VIDEO_DOMAIN",
}

var sandboxKeys = []string{
	"PORT", "JWT_SECRET", "OPENING_BALANCE", "AUTO_VERIFY", "VIDEO_BASE_URL",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "TOKEN_TTL", "LOG_LEVEL",
}

// ClientFlags registers the flags that override client settings. Flag names
// are the lower-kebab form of the env keys (api-base-url, storage-backend...).
func ClientFlags(fs *pflag.FlagSet) {
	fs.String("api-base-url", "", "REST API base URL")
	fs.String("socket-url", "", "real-time socket URL (defaults to the API host)")
	fs.String("storage-backend", "", "session storage backend: memory, file or redis")
	fs.String("storage-path", "", "session file used by the file backend")
	fs.String("log-level", "", "log level")
}

// LoadConfig reads the client configuration. fs may be nil.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	viper.SetDefault("API_BASE_URL", "http://localhost:3001/api")
	viper.SetDefault("STORAGE_BACKEND", StorageFile)
	viper.SetDefault("STORAGE_PATH", ".eaglebank/session.json")
	viper.SetDefault("STORAGE_REDIS_PREFIX", "eaglebank:session")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	viper.SetDefault("RECONNECT_ATTEMPTS", 5)
	viper.SetDefault("RECONNECT_DELAY", time.Second)
	viper.SetDefault("DIAL_TIMEOUT", 20*time.Second)
	viper.SetDefault("TOAST_WINDOW", 10*time.Second)
	viper.SetDefault("SESSION_CHECK_SCHEDULE", "@every 1m")
	viper.SetDefault("LOG_LEVEL", "warn")
	viper.SetDefault("VIDEO_DOMAIN", "meet.jit.si")
	viper.AutomaticEnv()

	for _, key := range clientKeys {
		_ = viper.BindEnv(key)
	}
	if err := bindFlags(fs, clientKeys); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.SocketURL == "" {
		cfg.SocketURL = SocketURLFromAPI(cfg.APIBaseURL)
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	switch cfg.StorageBackend {
	case StorageMemory, StorageFile:
	case StorageRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("REDIS_ADDR is required for the redis storage backend")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if cfg.ReconnectAttempts < 0 {
		return nil, errors.New("RECONNECT_ATTEMPTS must not be negative")
	}
	if cfg.ToastWindow <= 0 {
		cfg.ToastWindow = 10 * time.Second
	}

	return &cfg, nil
}

// LoadSandboxConfig reads the sandbox server configuration. A variable set to
// the empty string counts as set, so JWT_SECRET= is rejected rather than
// replaced by the default secret.
func LoadSandboxConfig() (*SandboxConfig, error) {
	_ = godotenv.Load()

	viper.AllowEmptyEnv(true)
	viper.SetDefault("PORT", "3001")
	viper.SetDefault("JWT_SECRET", "sandbox-secret")
	viper.SetDefault("OPENING_BALANCE", "100.00")
	viper.SetDefault("AUTO_VERIFY", false)
	viper.SetDefault("VIDEO_BASE_URL", "https://meet.jit.si")
	viper.SetDefault("TOKEN_TTL", 24*time.Hour)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.AutomaticEnv()

	for _, key := range sandboxKeys {
		_ = viper.BindEnv(key)
	}

	var cfg SandboxConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if _, err := decimal.NewFromString(cfg.OpeningBalance); err != nil {
		return nil, fmt.Errorf("invalid OPENING_BALANCE %q: %w", cfg.OpeningBalance, err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET must not be empty")
	}
	cfg.VideoBaseURL = strings.TrimRight(cfg.VideoBaseURL, "/")
	return &cfg, nil
}

// OpeningBalanceAmount returns the parsed opening balance.
func (c *SandboxConfig) OpeningBalanceAmount() decimal.Decimal {
	d, _ := decimal.NewFromString(c.OpeningBalance)
	return d
}

// SocketURLFromAPI strips the /api suffix from the REST base URL, which is
// where the socket server listens by default.
func SocketURLFromAPI(apiBase string) string {
	return strings.TrimSuffix(strings.TrimRight(apiBase, "/"), "/api")
}

func bindFlags(fs *pflag.FlagSet, keys []string) error {
	if fs == nil {
		return nil
	}
	for _, key := range keys {
		name := strings.ToLower(strings.ReplaceAll(key, "_", "-"))
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
