// Package sandbox is a local stand-in for the banking API and its socket
// server. It keeps everything in memory and is used for development and for
// end-to-end tests of the client.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eaglebank/webclient/internal/config"
	"github.com/eaglebank/webclient/internal/sandbox/command"
	"github.com/eaglebank/webclient/internal/sandbox/handler"
	"github.com/eaglebank/webclient/internal/sandbox/query"
	"github.com/eaglebank/webclient/internal/sandbox/realtime"
	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/events"
	"github.com/eaglebank/webclient/shared/middleware"
)

const subscriberGroup = "sandbox-socket"

type Options struct {
	Logger *zap.SugaredLogger
	// Redis, when set, carries notifications through a stream between the
	// REST handlers and the socket hub.
	Redis  *goredis.Client
	Stream string
}

type Server struct {
	Router *gin.Engine
	Hub    *realtime.Hub
	Users  *repository.UserRepository
	Ledger *repository.Ledger

	cfg        *config.SandboxConfig
	log        *zap.SugaredLogger
	subscriber *events.Subscriber
	redis      *goredis.Client
	stream     string
}

func New(cfg *config.SandboxConfig, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	stream := opts.Stream
	if stream == "" {
		stream = events.NotificationStream
	}

	s := &Server{
		Hub:    realtime.NewHub(realtime.DefaultBacklog),
		Users:  repository.NewUserRepository(),
		Ledger: repository.NewLedger(),
		cfg:    cfg,
		log:    log,
		redis:  opts.Redis,
		stream: stream,
	}

	// --- CQRS wiring ---
	var notifier command.Notifier = s.Hub
	if opts.Redis != nil {
		notifier = events.NewPublisher(opts.Redis, stream)
		s.subscriber = events.NewSubscriber(opts.Redis, events.SubscriberConfig{
			Group:         subscriberGroup,
			Consumer:      "socket-hub",
			Stream:        stream,
			Handler:       s.Hub.Publish,
			BlockDuration: time.Second,
			Logger:        log.Named("subscriber"),
		})
	}

	authCmd := command.NewAuthCommandService(s.Users, cfg.AutoVerify, log.Named("auth"))
	authQry := query.NewAuthQueryService(s.Users, []byte(cfg.JWTSecret), cfg.TokenTTL)
	accountCmd := command.NewAccountCommandService(s.Ledger, cfg.OpeningBalanceAmount(), log.Named("accounts"))
	accountQry := query.NewAccountQueryService(s.Ledger)
	txCmd := command.NewTransactionCommandService(s.Ledger, s.Users, notifier, cfg.VideoBaseURL, log.Named("transactions"))
	txQry := query.NewTransactionQueryService(s.Ledger, s.Users)
	userCmd := command.NewUserCommandService(s.Users, log.Named("users"))
	userQry := query.NewUserQueryService(s.Users)

	s.Router = NewRouter(RouterDeps{
		Secret:       []byte(cfg.JWTSecret),
		Logger:       log,
		Auth:         handler.NewAuthHandler(authCmd, authQry),
		Accounts:     handler.NewAccountHandler(accountCmd, accountQry),
		Transactions: handler.NewTransactionHandler(txCmd, txQry),
		Users:        handler.NewUserHandler(userCmd, userQry),
		Socket:       realtime.NewHandler(s.Hub, log.Named("socket")),
	})
	return s
}

type RouterDeps struct {
	Secret       []byte
	Logger       *zap.SugaredLogger
	Auth         *handler.AuthHandler
	Accounts     *handler.AccountHandler
	Transactions *handler.TransactionHandler
	Users        *handler.UserHandler
	Socket       *realtime.Handler
}

func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(d.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	auth := api.Group("/auth")
	{
		auth.POST("/signup", d.Auth.Signup)
		auth.POST("/login", d.Auth.Login)
		auth.GET("/verify-account", d.Auth.VerifyAccount)
	}

	protected := api.Group("", middleware.AuthMiddleware(d.Secret))
	{
		protected.POST("/accounts", d.Accounts.CreateAccount)
		protected.GET("/accounts", d.Accounts.ListAccounts)
		protected.GET("/accounts/:id", d.Accounts.GetAccount)
		protected.PUT("/accounts/:id", d.Accounts.SetDefaultAccount)

		protected.POST("/transactions", d.Transactions.CreateTransaction)
		protected.GET("/transactions", d.Transactions.ListTransactions)

		protected.GET("/users/:id", d.Users.GetUser)
		protected.PUT("/users/:id", d.Users.UpdateUser)
	}

	socket := router.Group("/socket", middleware.AuthMiddleware(d.Secret))
	{
		socket.GET("/ws", d.Socket.WebSocket)
		socket.GET("/poll", d.Socket.Poll)
	}
	return router
}

// Start runs the stream subscriber when Redis is configured. The consumer
// group is created before Start returns so no notification published
// afterwards is missed.
func (s *Server) Start(ctx context.Context) error {
	if s.subscriber == nil {
		return nil
	}
	err := s.redis.XGroupCreateMkStream(ctx, s.stream, subscriberGroup, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	go func() {
		if err := s.subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warnw("subscriber stopped", "error", err)
		}
	}()
	return nil
}

// Run serves on cfg.Port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("sandbox listening", "port", s.cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Infow("sandbox shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
