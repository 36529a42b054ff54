package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	pyroscope "github.com/grafana/pyroscope-go"

	"tradecore/internal/cache"
	"tradecore/internal/exchange"
	"tradecore/internal/ingest"
	"tradecore/internal/obs"
	"tradecore/internal/ops"
	"tradecore/internal/order"
	"tradecore/internal/risk"
	"tradecore/internal/state"
	"tradecore/internal/storage"
	"tradecore/pkg/conn"
)

const defaultPaperBalance = 10000

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if cfg.Profiling.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "tradecore.trader",
			ServerAddress:   cfg.Profiling.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer profiler.Stop()
	}

	pg, err := conn.New(conn.Option{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatalf("postgres connect failed: %v", err)
	}
	defer pg.Close()

	store := storage.New(pg.DB())
	if err := store.Migrate(); err != nil {
		log.Fatalf("schema migration failed: %v", err)
	}

	cacheClient, err := cache.New(cache.Config{
		Host:     cfg.Cache.Host,
		Port:     cfg.Cache.Port,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	if err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}
	defer cacheClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := exchange.DefaultRegistry()
	book := state.NewBook()
	metrics := obs.NewMetrics()

	riskManager := risk.NewManager(cfg.Risk, book, store, cacheClient, metrics, cfg.CacheTTL)
	if err := riskManager.Initialize(ctx); err != nil {
		log.Fatalf("risk manager init failed: %v", err)
	}

	gateways, feeds := buildExchanges(registry, cfg)

	executor := order.NewExecutor(gateways, riskManager, store, metrics, cfg.PollInterval, cfg.ErrorBackoff)
	if err := executor.Initialize(ctx); err != nil {
		log.Fatalf("order executor init failed: %v", err)
	}

	ingestor := ingest.New(ingest.Config{
		Registry:     registry,
		Feeds:        feeds,
		Pairs:        cfg.Pairs,
		Cache:        cacheClient,
		Store:        store,
		Metrics:      metrics,
		CacheTTL:     cfg.CacheTTL,
		Reconnect:    cfg.ReconnectInterval,
		MockInterval: cfg.MockInterval,
		ForceMock:    cfg.ForceMock,
	})
	ingestor.Initialize()
	ingestor.Start(ctx)

	go executor.ManageOpenPositions(ctx)

	<-ctx.Done()

	ingestor.Stop()
	executor.Stop()

	snapshot := metrics.Snapshot()
	log.Printf("shutdown: points=%d drops=%d executed=%d rejected=%d filled=%d cancelled=%d",
		snapshot.MarketDataPoints, snapshot.MarketDataDrops,
		snapshot.TradesExecuted, snapshot.TradesRejected,
		snapshot.OrdersFilled, snapshot.OrdersCancelled)
}

// buildExchanges resolves configured exchanges against the adapter registry
// and returns order gateways plus ingestion feeds. Exchanges without
// credentials fall back to a paper gateway so the execution path still works.
func buildExchanges(registry *exchange.Registry, cfg ops.Loaded) (map[string]order.Gateway, []ingest.Feed) {
	gateways := make(map[string]order.Gateway, len(cfg.Exchanges))
	feeds := make([]ingest.Feed, 0, len(cfg.Exchanges))

	for _, ex := range cfg.Exchanges {
		adapter, err := registry.Resolve(ex.Name)
		if err != nil {
			log.Printf("skipping exchange: %v", err)
			continue
		}
		creds := exchange.Credentials{Key: ex.APIKey, Secret: ex.APISecret}

		if cfg.PaperTrading || creds.Empty() {
			gateways[ex.Name] = exchange.NewPaper(ex.Name, defaultPaperBalance)
		} else {
			gateways[ex.Name] = exchange.NewGateway(adapter, creds, ex.RestURL, cfg.HTTPTimeout)
		}

		feeds = append(feeds, ingest.Feed{
			Adapter:   adapter,
			Creds:     creds,
			StreamURL: ex.WSURL,
		})
	}
	return gateways, feeds
}
