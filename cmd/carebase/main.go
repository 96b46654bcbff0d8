package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"carebase/internal/auth"
	"carebase/internal/config"
	"carebase/internal/db"
	"carebase/internal/httpserver"
	"carebase/internal/logging"
	"carebase/internal/patients"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "carebase: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.String())
	for _, key := range cfg.Insecure() {
		logger.Warn("using development fallback, do not deploy like this", "setting", key)
	}

	dbConn, err := db.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer dbConn.Close()

	if err := db.Migrate(ctx, dbConn, cfg.DBDriver); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	hasher, err := auth.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	userStore := auth.NewStore(dbConn, hasher)
	if _, err := auth.EnsureAdmin(ctx, userStore, auth.AdminAccount{
		Email:     cfg.Admin.Email,
		Password:  cfg.Admin.Password,
		FirstName: cfg.Admin.FirstName,
		LastName:  cfg.Admin.LastName,
	}, logger); err != nil {
		return err
	}

	codec, err := auth.NewTokenCodec([]byte(cfg.JWTSecret))
	if err != nil {
		return err
	}
	throttle, closeThrottle, err := newThrottle(ctx, cfg.Throttle, logger)
	if err != nil {
		return err
	}
	defer closeThrottle()
	authSvc := auth.NewService(userStore, codec, throttle, logger)

	handler := httpserver.NewRouter(httpserver.Deps{
		Logger:        logger,
		Auth:          authSvc,
		Verifier:      codec,
		Users:         userStore,
		Patients:      patients.NewStore(dbConn),
		FrontendURL:   cfg.FrontendURL,
		SecureCookies: cfg.Production(),
	})
	server := httpserver.New(cfg.HTTPAddr, handler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newThrottle uses Redis when an address is configured so every replica
// shares one count, and in-process limiters otherwise.
func newThrottle(ctx context.Context, cfg config.ThrottleConfig, logger *slog.Logger) (auth.LoginThrottle, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("login throttle: in-process",
			"max_attempts", cfg.MaxAttempts, "max_client_attempts", cfg.MaxClientAttempts, "window", cfg.Window)
		return auth.LoginThrottle{
			Account: auth.NewLocalThrottle(cfg.MaxAttempts, cfg.Window),
			Client:  auth.NewLocalThrottle(cfg.MaxClientAttempts, cfg.Window),
		}, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return auth.LoginThrottle{}, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("login throttle: redis", "addr", cfg.RedisAddr,
		"max_attempts", cfg.MaxAttempts, "max_client_attempts", cfg.MaxClientAttempts, "window", cfg.Window)
	return auth.LoginThrottle{
		Account: auth.NewRedisThrottle(client, "carebase:login:account:", cfg.MaxAttempts, cfg.Window),
		Client:  auth.NewRedisThrottle(client, "carebase:login:client:", cfg.MaxClientAttempts, cfg.Window),
	}, func() { _ = client.Close() }, nil
}
