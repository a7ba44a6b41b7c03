package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lojaju/backend/internal/cache"
	"lojaju/backend/internal/config"
	"lojaju/backend/internal/httpapi"
	"lojaju/backend/internal/logging"
	"lojaju/backend/internal/service"
	"lojaju/backend/internal/store"
	"lojaju/backend/internal/store/memory"
	pgstore "lojaju/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Warn("unknown shop timezone, using UTC", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closers, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("repository unavailable", zap.Error(err))
	}
	dashboardCache, cacheCloser := openDashboardCache(ctx, cfg, logger)
	if cacheCloser != nil {
		closers = append(closers, cacheCloser)
	}

	gin.SetMode(gin.ReleaseMode)
	svc := service.New(repo, dashboardCache, loc, cfg.DashboardTTL(), logger)
	api := httpapi.New(svc, logger.Named("http"))

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("ledger backend listening", zap.String("addr", cfg.Address()))
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

// openRepository picks postgres when DATABASE_URL is set and refuses to fall
// back to memory if it cannot be reached.
func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Repository, []func() error, error) {
	closers := make([]func() error, 0, 2)
	if cfg.DatabaseURL == "" {
		logger.Info("repository: in-memory", zap.Bool("seeded", cfg.SeedDemo))
		if cfg.SeedDemo {
			return memory.NewSeeded(), closers, nil
		}
		return memory.New(), closers, nil
	}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL, logger.Named("postgres"))
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	closers = append(closers, pg.Close)
	logger.Info("repository: postgres")
	return pg, closers, nil
}

func openDashboardCache(ctx context.Context, cfg config.Config, logger *zap.Logger) (cache.DashboardCache, func() error) {
	if cfg.RedisAddr == "" {
		logger.Info("cache: noop")
		return cache.NoopDashboardCache{}, nil
	}
	redisCache := cache.NewRedisDashboardCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, using noop cache", zap.Error(err))
		_ = redisCache.Close()
		return cache.NoopDashboardCache{}, nil
	}
	logger.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
	return redisCache, redisCache.Close
}
