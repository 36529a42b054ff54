package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"

	"tradecore/internal/exchange"
	"tradecore/internal/model"
	"tradecore/internal/obs"
)

const (
	cacheKeyFormat = "market_data:%s:%s"
	updatesTopic   = "market_updates"
)

// Cache is the short-TTL key store plus pub/sub fanout for live data.
type Cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Publish(ctx context.Context, topic string, message any) error
}

// Store appends normalized points to durable storage.
type Store interface {
	AppendMarketData(ctx context.Context, point model.MarketDataPoint) error
}

// Feed pairs an exchange adapter with its credentials and optional stream
// endpoint override.
type Feed struct {
	Adapter   exchange.Adapter
	Creds     exchange.Credentials
	StreamURL string
}

// Ingestor owns one stream per (exchange, pair), normalizes raw messages into
// canonical points and fans them out to cache, pub/sub and storage. When no
// exchange has usable credentials it degrades to a synthetic feed instead of
// idling.
type Ingestor struct {
	registry *exchange.Registry
	feeds    []Feed
	pairs    []string
	cache    Cache
	store    Store
	metrics  *obs.Metrics

	cacheTTL     time.Duration
	reconnect    time.Duration
	mockInterval time.Duration
	forceMock    bool

	active   []Feed
	mockMode bool

	mu    sync.Mutex
	conns map[string]*websocket.Conn

	running  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// Config wires an ingestor.
type Config struct {
	Registry     *exchange.Registry
	Feeds        []Feed
	Pairs        []string
	Cache        Cache
	Store        Store
	Metrics      *obs.Metrics
	CacheTTL     time.Duration
	Reconnect    time.Duration
	MockInterval time.Duration
	ForceMock    bool
}

// New creates an ingestor from the given configuration.
func New(cfg Config) *Ingestor {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Second
	}
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = 5 * time.Second
	}
	if cfg.MockInterval <= 0 {
		cfg.MockInterval = time.Second
	}
	return &Ingestor{
		registry:     cfg.Registry,
		feeds:        cfg.Feeds,
		pairs:        cfg.Pairs,
		cache:        cfg.Cache,
		store:        cfg.Store,
		metrics:      cfg.Metrics,
		cacheTTL:     cfg.CacheTTL,
		reconnect:    cfg.Reconnect,
		mockInterval: cfg.MockInterval,
		forceMock:    cfg.ForceMock,
		conns:        make(map[string]*websocket.Conn),
		stop:         make(chan struct{}),
	}
}

// Initialize partitions the configured feeds into the active set. Feeds
// without credentials are excluded with a warning, never an error. An empty
// active set flips the ingestor into mock mode.
func (i *Ingestor) Initialize() {
	i.active = i.active[:0]
	for _, feed := range i.feeds {
		if feed.Creds.Empty() {
			logs.Warnf("exchange %s has no credentials, excluded from ingestion", feed.Adapter.Name())
			continue
		}
		i.active = append(i.active, feed)
	}

	i.mockMode = i.forceMock || len(i.active) == 0
	if i.mockMode {
		logs.Warn("no usable exchanges, falling back to synthetic market data")
		return
	}
	logs.Infof("ingesting from %d exchanges across %d pairs", len(i.active), len(i.pairs))
}

// Start launches one goroutine per (exchange, pair) stream, or the synthetic
// generator in mock mode. Safe to call once; subsequent calls are no-ops.
func (i *Ingestor) Start(ctx context.Context) {
	if !i.running.CompareAndSwap(false, true) {
		return
	}

	if i.mockMode {
		i.wg.Add(1)
		go i.runMock(ctx)
		return
	}

	for _, feed := range i.active {
		for _, pair := range i.pairs {
			i.wg.Add(1)
			go i.runStream(ctx, feed, pair)
		}
	}
}

// runStream holds one subscription open, reconnecting after a fixed backoff
// until stopped. Messages from one stream are processed in arrival order.
func (i *Ingestor) runStream(ctx context.Context, feed Feed, pair string) {
	defer i.wg.Done()

	name := feed.Adapter.Name()
	streamURL := feed.StreamURL
	if streamURL == "" {
		streamURL = feed.Adapter.StreamURL()
	}
	connKey := name + ":" + pair

	for {
		select {
		case <-ctx.Done():
			return
		case <-i.stop:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
		if err != nil {
			logs.Warnf("dial %s for %s: %v, retrying in %s", name, pair, err, i.reconnect)
			if !i.wait(ctx) {
				return
			}
			continue
		}

		if payload := feed.Adapter.SubscribePayload(pair); payload != nil {
			if err := conn.WriteJSON(payload); err != nil {
				logs.Warnf("subscribe %s %s: %v", name, pair, err)
				conn.Close()
				if !i.wait(ctx) {
					return
				}
				continue
			}
		}

		// Stop may have run while we were dialing; registering now would
		// leak a socket no one closes, so re-check under the same mutex
		// Stop uses to sweep connections.
		i.mu.Lock()
		select {
		case <-i.stop:
			i.mu.Unlock()
			conn.Close()
			return
		default:
			i.conns[connKey] = conn
		}
		i.mu.Unlock()
		logs.Infof("subscribed %s %s", name, pair)

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-i.stop:
				case <-ctx.Done():
				default:
					logs.Warnf("stream %s %s dropped: %v, reconnecting in %s", name, pair, err, i.reconnect)
				}
				break
			}
			i.ProcessMessage(ctx, name, pair, raw)
		}

		i.mu.Lock()
		delete(i.conns, connKey)
		i.mu.Unlock()
		conn.Close()

		if !i.wait(ctx) {
			return
		}
	}
}

// ProcessMessage normalizes one raw message and fans it out. Messages that
// fail normalization are dropped silently; downstream write failures are
// logged and never block ingestion.
func (i *Ingestor) ProcessMessage(ctx context.Context, exchangeName, pair string, raw []byte) {
	start := time.Now()

	adapter, ok := i.registry.Lookup(exchangeName)
	if !ok {
		i.metrics.IncMarketDataDrop()
		return
	}
	point, ok := adapter.Normalize(raw)
	if !ok {
		i.metrics.IncMarketDataDrop()
		return
	}

	key := fmt.Sprintf(cacheKeyFormat, exchangeName, pair)
	if err := i.cache.Set(ctx, key, point, i.cacheTTL); err != nil {
		logs.Errorf("cache %s: %v", key, err)
	}
	update := model.MarketUpdate{Exchange: exchangeName, TradingPair: pair, Data: point}
	if err := i.cache.Publish(ctx, updatesTopic, update); err != nil {
		logs.Errorf("publish %s %s: %v", exchangeName, pair, err)
	}
	if err := i.store.AppendMarketData(ctx, point); err != nil {
		logs.Errorf("append %s %s: %v", exchangeName, pair, err)
	}

	i.metrics.IncMarketData()
	i.metrics.ObserveIngest(time.Since(start))
}

// Stop flips the stop channel, closes every open connection and waits for the
// stream goroutines to drain. Safe to call more than once.
func (i *Ingestor) Stop() {
	i.stopOnce.Do(func() { close(i.stop) })

	i.mu.Lock()
	for key, conn := range i.conns {
		conn.Close()
		delete(i.conns, key)
	}
	i.mu.Unlock()

	i.wg.Wait()
}

func (i *Ingestor) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-i.stop:
		return false
	case <-time.After(i.reconnect):
		return true
	}
}
