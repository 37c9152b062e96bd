package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/charmforge/charmforge-backend/api/routes"
	"github.com/charmforge/charmforge-backend/internal/cart"
	"github.com/charmforge/charmforge-backend/internal/cartgateway"
	checkoutsvc "github.com/charmforge/charmforge-backend/internal/checkout"
	"github.com/charmforge/charmforge-backend/internal/inventory"
	"github.com/charmforge/charmforge-backend/internal/notifications"
	"github.com/charmforge/charmforge-backend/internal/orders"
	"github.com/charmforge/charmforge-backend/pkg/config"
	"github.com/charmforge/charmforge-backend/pkg/db"
	"github.com/charmforge/charmforge-backend/pkg/logger"
	"github.com/charmforge/charmforge-backend/pkg/metrics"
	"github.com/charmforge/charmforge-backend/pkg/migrate"
	"github.com/charmforge/charmforge-backend/pkg/payments"
	"github.com/charmforge/charmforge-backend/pkg/pubsub"
	"github.com/charmforge/charmforge-backend/pkg/redis"
	"github.com/charmforge/charmforge-backend/pkg/retry"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})
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
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	var closers []func() error
	defer func() {
		var closeErr error
		for i := len(closers) - 1; i >= 0; i-- {
			closeErr = multierr.Append(closeErr, closers[i]())
		}
		if closeErr != nil {
			logg.Error(ctx, "error closing resources", closeErr)
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	closers = append(closers, dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	localDB, err := db.OpenLocal(ctx, cfg.LocalStore, logg)
	if err != nil {
		logg.Error(ctx, "failed to open local fallback store", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	closers = append(closers, redisClient.Close)

	var notifier notifications.Publisher = notifications.NopPublisher{}
	if cfg.GCP.ProjectID != "" {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		closers = append(closers, psClient.Close)
		notifier, err = notifications.NewPubSubPublisher(psClient.NotificationPublisher(), logg)
		if err != nil {
			logg.Error(ctx, "failed to create notification publisher", err)
			os.Exit(1)
		}
	}

	var gateway payments.Gateway
	if cfg.Square.AccessToken != "" {
		squareGateway, err := payments.NewSquareGateway(ctx, cfg.Square, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap square", err)
			os.Exit(1)
		}
		gateway = squareGateway
	} else {
		logg.Warn(ctx, "square not configured; orders will stay pending")
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
	carts := cart.NewManager(cart.LimitsFromConfig(cfg.Cart), pricing)

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

	ordersRepo := orders.NewRepository(dbClient.DB())
	checkoutService, err := checkoutsvc.NewService(
		dbClient,
		ordersRepo,
		inventory.NewRepository(dbClient.DB()),
		gateway,
		notifier,
		exec,
		orders.NewNumberGenerator(cfg.Orders.NumberPrefix),
		metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer),
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Carts:    carts,
			Gateway:  cartGateway,
			Checkout: checkoutService,
			Orders:   ordersRepo,
			Notifier: notifier,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
