// Package main wires together the audit service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pageaudit/pageaudit/internal/api"
	"github.com/pageaudit/pageaudit/internal/audit"
	"github.com/pageaudit/pageaudit/internal/cache"
	"github.com/pageaudit/pageaudit/internal/clock/system"
	"github.com/pageaudit/pageaudit/internal/config"
	"github.com/pageaudit/pageaudit/internal/engine"
	"github.com/pageaudit/pageaudit/internal/logging"
	"github.com/pageaudit/pageaudit/internal/metrics"
	"github.com/pageaudit/pageaudit/internal/ratelimit"
	"github.com/pageaudit/pageaudit/internal/scheduler"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	clock := system.New()

	var (
		resultCache audit.Cache
		pinger      api.Pinger
	)
	switch cfg.Cache.Provider {
	case "redis":
		redisCache := cache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.KeyPrefix, logger)
		defer func() {
			if closeErr := redisCache.Close(); closeErr != nil {
				logger.Warn("redis close failed", zap.Error(closeErr))
			}
		}()
		resultCache = redisCache
		pinger = redisCache
		logger.Info("using redis result cache", zap.String("addr", cfg.Cache.RedisAddr))
	default:
		resultCache = cache.NewMemory(clock)
		logger.Info("using in-memory result cache")
	}

	auditEngine, err := engine.New(engine.Config{
		UserAgent:         cfg.Engine.UserAgent,
		NavigationTimeout: time.Duration(cfg.Engine.NavTimeoutSeconds) * time.Second,
		ProbeTimeout:      time.Duration(cfg.Engine.ProbeTimeoutSeconds) * time.Second,
		HostRPS:           cfg.Engine.HostRPS,
		HostBurst:         cfg.Engine.HostBurst,
	}, logger)
	if err != nil {
		logger.Fatal("engine init failed", zap.Error(err))
	}
	defer auditEngine.Close()

	sched := scheduler.New(auditEngine, resultCache, clock, scheduler.Config{
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
		MaxQueue:      cfg.Scheduler.MaxQueue,
		JobTimeout:    cfg.JobTimeout(),
		CacheTTL:      cfg.CacheTTL(),
	}, logger)

	limiter := ratelimit.New(ratelimit.Config{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateWindow(),
	}, clock)

	server := api.NewServer(sched, resultCache, limiter, pinger, cfg, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("audit service listening", zap.Int("port", cfg.Server.Port))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
}
