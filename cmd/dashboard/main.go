package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yanisfaquir/weatherboard/internal/cache"
	"github.com/yanisfaquir/weatherboard/internal/config"
	"github.com/yanisfaquir/weatherboard/internal/httpapi"
	"github.com/yanisfaquir/weatherboard/internal/kvstore"
	"github.com/yanisfaquir/weatherboard/internal/lifecycle"
	"github.com/yanisfaquir/weatherboard/internal/observability"
	"github.com/yanisfaquir/weatherboard/internal/remote"
	"github.com/yanisfaquir/weatherboard/internal/settings"
	"github.com/yanisfaquir/weatherboard/internal/syncer"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer observability.FlushLogs(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	var kv kvstore.Store
	var redisCloser *kvstore.RedisStore
	switch cfg.StorageBackend {
	case "redis":
		rs := kvstore.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTimeout, logger)
		redisCloser = rs
		kv = rs
		logger.Info("storage backend: redis", zap.String("addr", cfg.RedisAddr))
	default:
		kv = kvstore.NewFileStore(cfg.StorageDir, logger)
		logger.Info("storage backend: file", zap.String("dir", cfg.StorageDir))
	}

	var cacheStore cache.Store
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, logger)
		memcacheCloser = mc
		cacheStore = mc
		if err := mc.Ping(); err != nil {
			logger.Warn("memcached unreachable at startup, operating as a cache miss", zap.Error(err))
		}
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheStore = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	client, err := remote.NewRESTClientWithRetry(
		cfg.RemoteBaseURL,
		cfg.RequestTimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		logger.Fatal("remote client", zap.Error(err))
	}

	sync := syncer.New(kv, cacheStore, client, logger, syncer.Options{
		Ceiling:         cfg.RequestCeiling,
		WarnPct:         cfg.BudgetWarnPct,
		CacheTTL:        cfg.CacheTTL,
		Coalesce:        cfg.CoalesceEnabled,
		CoalesceTimeout: cfg.CoalesceTimeout,
	})
	settingsSvc := settings.NewService(kv, logger)

	if cfg.WarmCache {
		resources := []string{syncer.ResourceWeatherData, syncer.ResourceCities}
		warmer := cache.NewWarmer(sync, logger)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx, resources); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
		if cfg.WarmInterval > 0 {
			go func() {
				if err := warmer.WarmPeriodic(context.Background(), resources, cfg.WarmInterval); err != nil && err != context.Canceled {
					logger.Error("periodic cache warming stopped", zap.Error(err))
				}
			}()
		}
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httpapi.NewHandler(sync, settingsSvc, logger)
	router := httpapi.NewRouter(handler, logger, limiter, cfg.HTTPRequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTPRequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	if redisCloser != nil {
		if err := redisCloser.Close(); err != nil {
			logger.Error("redis close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
