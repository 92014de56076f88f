package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/KairamCabral/terravik-sub002/internal/cache"
	"github.com/KairamCabral/terravik-sub002/internal/config"
	"github.com/KairamCabral/terravik-sub002/internal/httpapi"
	"github.com/KairamCabral/terravik-sub002/internal/logging"
	"github.com/KairamCabral/terravik-sub002/internal/metrics"
	"github.com/KairamCabral/terravik-sub002/internal/service"
	"github.com/KairamCabral/terravik-sub002/internal/shipping"
	"github.com/KairamCabral/terravik-sub002/internal/store"
	"github.com/KairamCabral/terravik-sub002/internal/store/memory"
	pgstore "github.com/KairamCabral/terravik-sub002/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		if err := pg.Migrate(logger); err != nil {
			logger.Fatal("schema migration failed", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info("repository ready", zap.String("backend", "postgres"))
	} else {
		repo = memory.NewSeeded(logger)
		logger.Info("repository ready", zap.String("backend", "memory"))
	}

	addressCache := cache.AddressCache(cache.NewMemoryAddressCache())
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisAddressCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using in-process address cache", zap.Error(err))
		} else {
			addressCache = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("address cache ready", zap.String("backend", "redis"))
		}
	}

	reg := metrics.New()
	cepClient := shipping.NewCEPClient(shipping.CEPClientConfig{
		BaseURL:  cfg.CEPBaseURL,
		Timeout:  cfg.CEPTimeout(),
		Cache:    addressCache,
		CacheTTL: cfg.AddressCacheTTL(),
		Logger:   logger,
		Metrics:  reg,
	})

	svc := service.New(repo, cepClient, logger, reg)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo, logger)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger, reg)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("storefront api listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AllowedOrigin == "" {
		return fmt.Errorf("ALLOWED_ORIGIN must not be empty")
	}
	return nil
}
