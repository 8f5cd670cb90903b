package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/webclient/internal/config"
	"github.com/eaglebank/webclient/internal/sandbox"
	"github.com/eaglebank/webclient/shared/logger"
	redisClient "github.com/eaglebank/webclient/shared/redis"
)

func main() {
	cfg, err := config.LoadSandboxConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logr, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logr.Sync() }()

	gin.SetMode(gin.ReleaseMode)

	opts := sandbox.Options{Logger: logr}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis is optional: without it notifications go straight to the hub.
	if cfg.RedisAddr != "" {
		redis, err := redisClient.NewClient(ctx, redisClient.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Logger:   logr.Named("redis"),
		})
		if err != nil {
			logr.Fatalw("Failed to connect to Redis", "addr", cfg.RedisAddr, "error", err)
		}
		defer redis.Close()
		opts.Redis = redis.Client
		logr.Infow("notifications relayed through redis stream", "addr", cfg.RedisAddr)
	}

	srv := sandbox.New(cfg, opts)
	if err := srv.Run(ctx); err != nil {
		logr.Fatalw("Sandbox stopped", "error", err)
	}
}
