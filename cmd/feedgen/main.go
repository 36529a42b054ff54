package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"tradecore/internal/cache"
	"tradecore/internal/exchange"
	"tradecore/internal/ingest"
	"tradecore/internal/obs"
	"tradecore/internal/ops"
	"tradecore/internal/storage"
	"tradecore/pkg/conn"
)

// feedgen runs the synthetic market-data generator on its own, feeding the
// cache and storage sinks so downstream consumers can be exercised without
// exchange credentials.
func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	pairsFlag := flag.String("pairs", "", "Comma-separated pairs overriding the config")
	interval := flag.Duration("interval", 0, "Tick interval overriding the config")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	pairs := cfg.Pairs
	if *pairsFlag != "" {
		pairs = splitPairs(*pairsFlag)
	}
	mockInterval := cfg.MockInterval
	if *interval > 0 {
		mockInterval = *interval
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

	metrics := obs.NewMetrics()
	ingestor := ingest.New(ingest.Config{
		Registry:     exchange.DefaultRegistry(),
		Pairs:        pairs,
		Cache:        cacheClient,
		Store:        store,
		Metrics:      metrics,
		CacheTTL:     cfg.CacheTTL,
		MockInterval: mockInterval,
		ForceMock:    true,
	})
	ingestor.Initialize()
	ingestor.Start(ctx)

	<-ctx.Done()
	ingestor.Stop()

	snapshot := metrics.Snapshot()
	log.Printf("feedgen done: points=%d drops=%d", snapshot.MarketDataPoints, snapshot.MarketDataDrops)
}

func splitPairs(raw string) []string {
	parts := strings.Split(raw, ",")
	pairs := make([]string, 0, len(parts))
	for _, part := range parts {
		if pair := strings.TrimSpace(part); pair != "" {
			pairs = append(pairs, pair)
		}
	}
	return pairs
}
