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

	"github.com/franzego/partnernotify/internal/cache"
	"github.com/franzego/partnernotify/internal/config"
	"github.com/franzego/partnernotify/internal/handlers"
	"github.com/franzego/partnernotify/internal/logger"
	"github.com/franzego/partnernotify/internal/metrics"
	"github.com/franzego/partnernotify/internal/queue"
	"github.com/franzego/partnernotify/internal/repository"
	"github.com/franzego/partnernotify/internal/selector"
	"github.com/franzego/partnernotify/internal/services"
	"github.com/franzego/partnernotify/internal/store"
	"github.com/franzego/partnernotify/pkg/redis"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	zl, err := logger.New(cfg.App, cfg.Log)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("application error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	var backend store.NotificationStore
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := repository.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		backend = repository.NewPostgresRepository(pool, cfg.Postgres.QueryTimeout)
	default:
		backend = services.NewSupabaseClient(cfg.Supabase, logger)
	}
	logger.Info("notification store ready", zap.String("driver", cfg.Store.Driver))

	var cachePinger handlers.Pinger
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.InitRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		active := cache.NewActiveCache(redisClient, cfg.Redis.ActiveTTL)
		backend = store.NewCachedStore(backend, active, logger)
		cachePinger = active
	} else {
		logger.Warn("no redis address configured, active notifications are not cached")
	}

	publisher, closePublisher := queue.NewPublisher(cfg.RabbitMQ, cfg.MockServices, logger)
	defer closePublisher()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	notificationHandler := handlers.NewNotificationHandler(
		backend,
		selector.New(nil),
		publisher,
		metrics.New(reg),
		logger,
	)
	healthHandler := handlers.NewHealthHandler(backend, cachePinger, publisher, cfg.App.Version)

	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := handlers.NewRouter(handlers.RouterConfig{
		JWTSecret:   cfg.Auth.JWTSecret,
		RateRPS:     cfg.RateLimit.RPS,
		RateBurst:   cfg.RateLimit.Burst,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ServiceName: cfg.App.Name,
	}, notificationHandler, healthHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
