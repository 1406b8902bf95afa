package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trackit/internal/handler"
	"trackit/internal/httpserver"
	"trackit/internal/realtime"
	"trackit/internal/repository"
	"trackit/internal/repository/sqlite"
	"trackit/internal/service/auth"
	"trackit/internal/service/board"
	"trackit/internal/service/project"
	"trackit/internal/service/task"
	"trackit/internal/store"
	"trackit/internal/store/memstore"
	"trackit/pkg/circuitbreaker"
	"trackit/pkg/config"
	"trackit/pkg/db"
	"trackit/pkg/logger"
	"trackit/pkg/mq"
	"trackit/pkg/otel"
	pkgredis "trackit/pkg/redis"
	"trackit/pkg/util"
)

func serveCmd() *cobra.Command {
	var env, configDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the board hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env, configDir)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&env, "env", "e", config.GetConfigEnv(), "Config environment (base.yaml is overlaid with <env>.yaml)")
	cmd.Flags().StringVarP(&configDir, "config-dir", "c", "config", "Directory holding the yaml and secrets.env files")

	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	shutdownOtel, err := otel.Init(cfg.Otel, log)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer shutdownOtel()

	log.Info("Starting trackit...",
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("relay", cfg.Realtime.Relay),
	)

	// Store
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	checks := []httpserver.ReadyCheck{{Name: "store", Check: st.Ping}}

	// Redis (optional): throttle for client UpdateBoard and the redis relay
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = pkgredis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		defer rdb.Close()
		checks = append(checks, httpserver.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		log.Info("Redis connection established", zap.String("addr", cfg.Redis.Addr))
	}

	hub := realtime.NewHub(cfg.Realtime.SendBuffer, log)
	defer hub.Close()

	notifier, relayChecks, closeRelay, err := startRelay(ctx, cfg, hub, rdb, log)
	if err != nil {
		return err
	}
	defer closeRelay()
	checks = append(checks, relayChecks...)

	// Services
	authSvc := auth.NewService(st, util.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	}, log)
	projectSvc := project.NewService(st, notifier, log)
	taskSvc := task.NewService(st, notifier, log)
	boardSvc := board.NewService(st, st)

	var throttle realtime.Throttle
	if rdb != nil && cfg.Realtime.UpdateThrottle > 0 {
		throttle = util.NewDeduper(rdb, cfg.Realtime.UpdateThrottle, log)
	}
	boardHub := realtime.NewServer(hub, notifier, authSvc, projectSvc, throttle, realtime.ServerConfig{
		RequireAuth:    cfg.Realtime.RequireAuth,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, log)

	router := httpserver.NewRouter(httpserver.Deps{
		Auth:           handler.NewAuthHandler(authSvc, log),
		Projects:       handler.NewProjectHandler(projectSvc, boardSvc, log),
		Tasks:          handler.NewTaskHandler(taskSvc, log),
		Board:          boardHub,
		Authenticator:  authSvc,
		ReadyChecks:    checks,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// 优雅退出
	log.Info("Shutting down trackit gracefully...")

	// hijacked websocket connections are not tracked by Shutdown
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	log.Info("trackit shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := db.NewConnection(ctx, cfg.DB, log)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		s := repository.NewStore(pool, log)
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		log.Info("Database connection established", zap.String("host", cfg.DB.Host))
		return s, nil
	case "sqlite", "":
		s, err := sqlite.Open(cfg.Storage.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		log.Info("SQLite store opened", zap.String("path", cfg.Storage.SQLitePath))
		return s, nil
	case "memory":
		log.Warn("Using in-memory store, data is lost on exit")
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// startRelay picks the Notifier handed to the services. Without a relay the
// hub is the notifier and every signal stays on this instance.
func startRelay(ctx context.Context, cfg *config.Config, hub *realtime.Hub, rdb *redis.Client, log *zap.Logger) (realtime.Notifier, []httpserver.ReadyCheck, func(), error) {
	instanceID := uuid.NewString()
	noop := func() {}

	switch cfg.Realtime.Relay {
	case "none", "":
		return hub, nil, noop, nil

	case "rabbitmq":
		publisher, err := mq.NewPublisher(cfg.MQ.URL, mq.BoardExchange)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("init mq publisher: %w", err)
		}
		dial := func() (realtime.Consumer, error) {
			c, err := mq.NewConsumer(cfg.MQ.URL, mq.BoardExchange, log)
			if err != nil {
				return nil, err
			}
			return c, nil
		}

		breakerCfg := circuitbreaker.DefaultConfig()
		breakerCfg.OnStateChange = func(from, to circuitbreaker.State) {
			log.Warn("Board relay circuit breaker state changed",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
		relay := realtime.NewMQRelay(hub, publisher, dial, circuitbreaker.NewCircuitBreaker(breakerCfg), instanceID, log)

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = relay.Run(runCtx)
		}()

		checks := []httpserver.ReadyCheck{{Name: "mq", Check: func(context.Context) error {
			if !relay.Consuming() || !publisher.IsConnected() {
				return errors.New("rabbitmq disconnected")
			}
			return nil
		}}}
		log.Info("Board relay started", zap.String("relay", "rabbitmq"), zap.String("instance", instanceID))
		return relay, checks, func() {
			cancel()
			<-done
			publisher.Close()
		}, nil

	case "redis":
		if rdb == nil {
			return nil, nil, noop, errors.New("redis relay needs redis.addr")
		}
		relay := realtime.NewRedisRelay(hub, rdb, instanceID, log)

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = relay.Run(runCtx)
		}()

		checks := []httpserver.ReadyCheck{{Name: "relay", Check: func(context.Context) error {
			if !relay.Subscribed() {
				return errors.New("redis relay not subscribed")
			}
			return nil
		}}}
		log.Info("Board relay started", zap.String("relay", "redis"), zap.String("instance", instanceID))
		return relay, checks, func() {
			cancel()
			<-done
		}, nil

	default:
		return nil, nil, noop, fmt.Errorf("unknown realtime relay %q", cfg.Realtime.Relay)
	}
}
