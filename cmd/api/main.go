package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pixsoft/tienda-backend/api/routes"
	"github.com/pixsoft/tienda-backend/internal/addresses"
	"github.com/pixsoft/tienda-backend/internal/cart"
	"github.com/pixsoft/tienda-backend/internal/inventory"
	"github.com/pixsoft/tienda-backend/internal/orders"
	"github.com/pixsoft/tienda-backend/internal/payments"
	"github.com/pixsoft/tienda-backend/internal/products"
	"github.com/pixsoft/tienda-backend/internal/users"
	"github.com/pixsoft/tienda-backend/pkg/config"
	"github.com/pixsoft/tienda-backend/pkg/db"
	"github.com/pixsoft/tienda-backend/pkg/logger"
	"github.com/pixsoft/tienda-backend/pkg/mercadopago"
	"github.com/pixsoft/tienda-backend/pkg/metrics"
	"github.com/pixsoft/tienda-backend/pkg/migrate"
	"github.com/pixsoft/tienda-backend/pkg/redis"
	"github.com/pixsoft/tienda-backend/pkg/shipping"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	mpClient, err := mercadopago.New(cfg.MercadoPago)
	if err != nil {
		logg.Error(context.Background(), "failed to create mercadopago client", err)
		os.Exit(1)
	}

	var quoter payments.ShippingQuoter
	if cfg.Shipping.ClientID != "" && cfg.Shipping.ClientSecret != "" {
		shippingClient, err := shipping.NewClient(
			cfg.Shipping.ClientID,
			cfg.Shipping.ClientSecret,
			shipping.Origin{
				PostalCode: cfg.Shipping.OriginPostalCode,
				City:       cfg.Shipping.OriginCity,
				State:      cfg.Shipping.OriginState,
			},
			shipping.WithBaseURL(cfg.Shipping.BaseURL),
		)
		if err != nil {
			logg.Error(context.Background(), "failed to create shipping client", err)
			os.Exit(1)
		}
		quoter = shippingClient
	} else {
		logg.Warn(context.Background(), "shipping credentials missing, summaries use the fallback price")
	}

	orderRepo := orders.NewRepository(dbClient.DB())
	productRepo := products.NewRepository(dbClient.DB())
	addressRepo := addresses.NewRepository(dbClient.DB())
	userRepo := users.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())

	cartService, err := cart.NewService(cartRepo, productRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(
		orderRepo,
		productRepo,
		addressRepo,
		inventory.NewAdjuster(),
		orders.NewCartClearer(cartRepo),
		dbClient,
		cfg.Checkout,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(
		orderRepo,
		orderService,
		cartService,
		userRepo,
		mpClient,
		quoter,
		payments.NewAddressResolver(addressRepo),
		dbClient,
		cfg.Checkout,
		cfg.Shipping,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	webhookGuard, err := payments.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, "mercadopago")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.New(routes.Deps{
			Config:       cfg,
			Logger:       logg,
			Orders:       orderService,
			Cart:         cartService,
			Payments:     paymentService,
			WebhookGuard: webhookGuard,
			HTTPMetrics:  httpMetrics,
			Registry:     registry,
			DBPinger:     dbClient,
			CachePinger:  redisClient,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
