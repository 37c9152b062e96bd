package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/charmforge/charmforge-backend/internal/cart"
	"github.com/charmforge/charmforge-backend/internal/cartgateway"
	"github.com/charmforge/charmforge-backend/internal/cron"
	"github.com/charmforge/charmforge-backend/pkg/config"
	"github.com/charmforge/charmforge-backend/pkg/db"
	"github.com/charmforge/charmforge-backend/pkg/logger"
	"github.com/charmforge/charmforge-backend/pkg/metrics"
	"github.com/charmforge/charmforge-backend/pkg/redis"
	"github.com/charmforge/charmforge-backend/pkg/retry"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	localDB, err := db.OpenLocal(ctx, cfg.LocalStore, logg)
	if err != nil {
		logg.Error(ctx, "failed to open local fallback store", err)
		os.Exit(1)
	}

	exec, err := retry.NewExecutor(retry.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
	}, logg)
	if err != nil {
		logg.Error(ctx, "failed to create retry executor", err)
		os.Exit(1)
	}

	pricing, err := cart.PricingPolicyFromConfig(cfg.Pricing)
	if err != nil {
		logg.Error(ctx, "failed to load pricing policy", err)
		os.Exit(1)
	}

	remote, err := cartgateway.NewRedisStore(redisClient, cfg.GuestCarts.TTL)
	if err != nil {
		logg.Error(ctx, "failed to create remote cart store", err)
		os.Exit(1)
	}
	local, err := cartgateway.NewSQLiteStore(localDB)
	if err != nil {
		logg.Error(ctx, "failed to create local cart store", err)
		os.Exit(1)
	}
	cartGateway, err := cartgateway.NewService(remote, local, exec, pricing, cfg.GuestCarts.TTL, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cart gateway", err)
		os.Exit(1)
	}

	sweeperMetrics := metrics.NewSweeperMetrics(prometheus.DefaultRegisterer)

	sweepJob, err := cron.NewGuestCartSweepJob(cartGateway, sweeperMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create guest cart sweep job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.GuestCarts.SweepLockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create worker lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob),
		Lock:     lock,
		Metrics:  sweeperMetrics,
		Interval: cfg.GuestCarts.SweepInterval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}
