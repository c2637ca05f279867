package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fleetdesk/fleetdesk-backend/api/controllers"
	"github.com/fleetdesk/fleetdesk-backend/api/routes"
	"github.com/fleetdesk/fleetdesk-backend/internal/agents"
	"github.com/fleetdesk/fleetdesk-backend/internal/drafts"
	"github.com/fleetdesk/fleetdesk-backend/internal/drivers"
	"github.com/fleetdesk/fleetdesk-backend/internal/managers"
	"github.com/fleetdesk/fleetdesk-backend/internal/parks"
	"github.com/fleetdesk/fleetdesk-backend/pkg/agentcheck"
	"github.com/fleetdesk/fleetdesk-backend/pkg/config"
	"github.com/fleetdesk/fleetdesk-backend/pkg/db"
	"github.com/fleetdesk/fleetdesk-backend/pkg/fleet"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
	"github.com/fleetdesk/fleetdesk-backend/pkg/metrics"
	"github.com/fleetdesk/fleetdesk-backend/pkg/migrate"
	"github.com/fleetdesk/fleetdesk-backend/pkg/redis"
	"github.com/fleetdesk/fleetdesk-backend/pkg/security"
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

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	var redisClient *redis.Client
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured, bot surface runs unthrottled")
	}

	vault, err := security.NewVault(cfg.Vault, cfg.App.IsProd())
	if err != nil {
		logg.Error(context.Background(), "failed to initialize vault", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	upstreamMetrics := metrics.NewUpstreamMetrics(registry)

	fleetClient, err := fleet.NewClient(
		cfg.Fleet.BaseURL,
		cfg.Fleet.Timeout,
		fleet.WithRetry(cfg.Fleet.RetryLimit, cfg.Fleet.RetryDelay),
		fleet.WithLogger(logg),
		fleet.WithMetrics(upstreamMetrics),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build fleet client", err)
		os.Exit(1)
	}

	var checker *agentcheck.Client
	if cfg.AgentCheck.Enabled() {
		checker, err = agentcheck.NewClient(cfg.AgentCheck)
		if err != nil {
			logg.Error(context.Background(), "failed to build agent check client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "agent check webhook not configured, unknown phones cannot be linked")
	}

	managersRepo := managers.NewRepository(dbClient.DB())
	managerSvc, err := managers.NewService(managersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create manager service", err)
		os.Exit(1)
	}

	parkSvc, err := parks.NewService(parks.NewRepository(dbClient.DB()), managersRepo, vault, fleetClient, cfg.Fleet, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create park service", err)
		os.Exit(1)
	}

	var agentSvc agents.Service
	if checker != nil {
		agentSvc, err = agents.NewService(agents.NewRepository(dbClient.DB()), checker, logg)
	} else {
		agentSvc, err = agents.NewService(agents.NewRepository(dbClient.DB()), nil, logg)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to create agent service", err)
		os.Exit(1)
	}

	driverSvc, err := drivers.NewService(
		parkSvc,
		fleetClient,
		drivers.NewRepository(dbClient.DB()),
		drivers.NewListCache(nil),
		cfg.Cache,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create driver service", err)
		os.Exit(1)
	}

	draftSvc, err := drafts.NewService(drafts.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create draft service", err)
		os.Exit(1)
	}

	probes := map[string]controllers.Pinger{"database": dbClient}
	deps := routes.Deps{
		Config:   cfg,
		Logger:   logg,
		Probes:   probes,
		Metrics:  registry,
		Managers: managerSvc,
		Agents:   agentSvc,
		Parks:    parkSvc,
		Drivers:  driverSvc,
		Drafts:   draftSvc,
	}
	if redisClient != nil {
		probes["redis"] = redisClient
		deps.Limiter = redisClient
	}

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
		Addr:    addr,
		Handler: routes.NewRouter(deps),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		graceCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
