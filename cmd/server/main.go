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

	"github.com/bidmesh/auctioncore/internal/adapters"
	"github.com/bidmesh/auctioncore/internal/api"
	"github.com/bidmesh/auctioncore/internal/auction"
	"github.com/bidmesh/auctioncore/internal/config"
	"github.com/bidmesh/auctioncore/internal/db"
	"github.com/bidmesh/auctioncore/internal/floors"
	"github.com/bidmesh/auctioncore/internal/geoip"
	"github.com/bidmesh/auctioncore/internal/landscape"
	"github.com/bidmesh/auctioncore/internal/observability"
	"github.com/bidmesh/auctioncore/internal/waterfall"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdownTracing, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TracingEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdownTracing()
	}

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()

	store, err := db.InitRedis(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	defer store.Close()

	metricsRegistry := observability.NewPrometheusRegistry()

	sink, err := landscape.InitClickHouse(cfg.ClickHouseDSN, cfg.CHMaxOpenConns, cfg.CHMaxIdleConns)
	if err != nil {
		return fmt.Errorf("failed to connect clickhouse: %w", err)
	}
	defer sink.Close()

	geoSvc, err := geoip.Init(cfg.GeoIPDB)
	if err != nil {
		return fmt.Errorf("failed to load geoip db: %w", err)
	}
	defer func() { _ = geoSvc.Close() }()

	adapterConfigs, err := pg.LoadAdapterConfigs()
	if err != nil {
		return fmt.Errorf("load adapter configs: %w", err)
	}
	registry := adapters.NewRegistryFromConfigs(adapterConfigs, logger)

	tiers, err := pg.LoadWaterfallPriorities()
	if err != nil {
		return fmt.Errorf("load waterfall priorities: %w", err)
	}

	floorStore := floors.NewRedisStore(store)
	optimizer := floors.NewOptimizer(cfg.FloorCandidates, floorStore, cfg.FloorExplorationRate, cfg.FloorWarmupTrials, metricsRegistry, logger)

	lds := landscape.NewLogger(sink, landscape.Config{
		QueueSize:     cfg.LandscapeQueueSize,
		Workers:       cfg.LandscapeWorkers,
		BatchSize:     cfg.LandscapeBatchSize,
		FlushInterval: cfg.LandscapeFlushInterval,
		MaxRetries:    cfg.LandscapeMaxRetries,
	}, metricsRegistry, logger)
	lds.Start()
	defer lds.Close()

	breakers := auction.NewBreakerSet(cfg.BreakerThreshold, cfg.BreakerResetTimeout, metricsRegistry)
	engine := auction.NewEngine(registry, breakers, optimizer, lds, metricsRegistry, logger, auction.Config{
		DefaultTimeout: cfg.AuctionTimeout,
		BidIncrement:   cfg.BidIncrement,
		BaseCurrency:   cfg.BaseCurrency,
	})

	perf := waterfall.NewPerformanceTracker(store.Client, logger)
	cascade := waterfall.NewCascade(registry, optimizer, perf, metricsRegistry, logger)

	srvDeps := api.NewServer(logger, engine, cascade, lds, geoSvc, metricsRegistry, cfg)
	srvDeps.SetWaterfallTiers(tiers)

	addr := ":" + cfg.Port

	srv := &http.Server{
		Addr:         addr,
		Handler:      srvDeps.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("auction server running", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	if cfg.ReloadInterval > 0 {
		ticker := time.NewTicker(cfg.ReloadInterval)
		go func() {
			for {
				select {
				case <-ticker.C:
					configs, err := pg.LoadAdapterConfigs()
					if err != nil {
						logger.Error("auto reload adapters", zap.Error(err))
						continue
					}
					registry.Replace(configs, logger)

					tiers, err := pg.LoadWaterfallPriorities()
					if err != nil {
						logger.Error("auto reload waterfall tiers", zap.Error(err))
						continue
					}
					srvDeps.SetWaterfallTiers(tiers)
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
