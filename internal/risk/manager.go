package risk

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tradecore/internal/model"
	"tradecore/internal/obs"
	"tradecore/internal/state"
)

const (
	// snapshotKey is where the latest risk snapshot is published for readers
	// outside the process.
	snapshotKey = "risk_metrics"

	// drawdownWindow bounds the closed-trade history feeding the drawdown
	// computation.
	drawdownWindow = 30 * 24 * time.Hour

	sizePrecision = 5
)

// Store is the persistence surface the risk manager needs.
type Store interface {
	OpenPositions(ctx context.Context, statuses ...model.Status) ([]model.Position, error)
	ClosedTradesSince(ctx context.Context, since time.Time) ([]model.Position, error)
	SaveRiskSnapshot(ctx context.Context, snapshot model.RiskSnapshot) error
}

// Cache publishes derived risk state for out-of-process readers.
type Cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Manager gates and sizes every trade against static limits, tracks daily
// counters and exposure through the shared position book, and keeps a cached
// drawdown snapshot over recent closed trades.
type Manager struct {
	limits  model.RiskLimits
	book    *state.Book
	store   Store
	cache   Cache
	metrics *obs.Metrics

	snapshotTTL time.Duration

	mu       sync.RWMutex
	snapshot model.RiskSnapshot
}

// NewManager creates a risk manager. The cache is optional; pass nil to skip
// snapshot publication.
func NewManager(limits model.RiskLimits, book *state.Book, store Store, cache Cache, metrics *obs.Metrics, snapshotTTL time.Duration) *Manager {
	return &Manager{
		limits:      limits,
		book:        book,
		store:       store,
		cache:       cache,
		metrics:     metrics,
		snapshotTTL: snapshotTTL,
	}
}

// Initialize hydrates the position book from persisted open positions and
// computes the first snapshot. A persistence failure here is fatal: trading
// with unknown exposure is worse than not starting.
func (m *Manager) Initialize(ctx context.Context) error {
	positions, err := m.store.OpenPositions(ctx, model.StatusFilled)
	if err != nil {
		return errors.Wrap(err, "hydrate open positions")
	}
	m.book.Hydrate(positions)
	logs.Infof("risk manager hydrated %d open positions, exposure %.2f", len(positions), m.book.Exposure())

	if err := m.refreshSnapshot(ctx); err != nil {
		return errors.Wrap(err, "compute initial risk snapshot")
	}
	return nil
}

// Limits returns the static limit configuration.
func (m *Manager) Limits() model.RiskLimits {
	return m.limits
}

// ValidateTrade runs the independent pre-trade checks. Every failure path
// resolves to false; nothing here panics or propagates.
func (m *Manager) ValidateTrade(signal model.TradeSignal) bool {
	start := time.Now()
	defer func() { m.metrics.ObserveRiskEval(time.Since(start)) }()

	if err := signal.Validate(); err != nil {
		logs.Warnf("reject %s %s: %v", signal.Symbol, signal.Direction, err)
		return false
	}

	now := time.Now().UTC()
	if count := m.book.DailyCount(signal.Symbol, now); count >= m.limits.MaxDailyTrades {
		logs.Warnf("reject %s: daily trade limit reached (%d/%d)", signal.Symbol, count, m.limits.MaxDailyTrades)
		return false
	}

	exposure := m.book.Exposure()
	if exposure+signal.Notional() > m.limits.MaxPositionSize {
		logs.Warnf("reject %s: projected exposure %.2f exceeds %.2f", signal.Symbol, exposure+signal.Notional(), m.limits.MaxPositionSize)
		return false
	}

	distance := math.Abs(signal.EntryPrice-signal.StopLoss) / signal.EntryPrice
	if distance > m.limits.StopLossPercentage {
		logs.Warnf("reject %s: stop distance %.4f exceeds %.4f", signal.Symbol, distance, m.limits.StopLossPercentage)
		return false
	}

	if m.limits.MaxDrawdown > 0 && m.Snapshot().MaxDrawdown >= m.limits.MaxDrawdown {
		logs.Warnf("reject %s: drawdown %.2f at or over limit %.2f", signal.Symbol, m.Snapshot().MaxDrawdown, m.limits.MaxDrawdown)
		return false
	}

	return true
}

// PositionSize computes the deterministic size for a signal: the account risk
// budget divided by the per-unit risk, capped at the max position size and
// rounded half-even to five decimal places.
func (m *Manager) PositionSize(signal model.TradeSignal, accountBalance float64) (float64, error) {
	if signal.EntryPrice <= 0 {
		return 0, model.ErrInvalidEntry
	}
	if signal.StopLoss == signal.EntryPrice {
		return 0, errors.New("stop loss equals entry price")
	}

	entry := decimal.NewFromFloat(signal.EntryPrice)
	stop := decimal.NewFromFloat(signal.StopLoss)
	riskAmount := decimal.NewFromFloat(accountBalance).
		Mul(decimal.NewFromFloat(m.limits.StopLossPercentage))
	riskPerUnit := entry.Sub(stop).Abs().Div(entry)

	size := riskAmount.Div(riskPerUnit)
	limit := decimal.NewFromFloat(m.limits.MaxPositionSize)
	if size.GreaterThan(limit) {
		size = limit
	}
	return size.RoundBank(sizePrecision).InexactFloat64(), nil
}

// UpdateMetrics records an accepted trade: bumps the daily counter, folds the
// position into the book, and recomputes the snapshot.
func (m *Manager) UpdateMetrics(ctx context.Context, position model.Position) {
	m.book.IncrementDaily(position.Symbol, time.Now().UTC())
	m.applyPosition(position)
	if err := m.refreshSnapshot(ctx); err != nil {
		logs.Errorf("refresh risk snapshot: %v", err)
	}
}

// SyncPosition folds a reconciliation or close update into the book without
// touching the daily counter, then recomputes the snapshot.
func (m *Manager) SyncPosition(ctx context.Context, position model.Position) {
	m.applyPosition(position)
	if err := m.refreshSnapshot(ctx); err != nil {
		logs.Errorf("refresh risk snapshot: %v", err)
	}
}

// CheckLimits reports whether each policy dimension is still within bounds.
func (m *Manager) CheckLimits() model.LimitStatus {
	now := time.Now().UTC()
	snapshot := m.Snapshot()
	return model.LimitStatus{
		DailyTrades: m.book.MaxDailyCount(now) < m.limits.MaxDailyTrades,
		Drawdown:    m.limits.MaxDrawdown <= 0 || snapshot.MaxDrawdown < m.limits.MaxDrawdown,
		Exposure:    m.book.Exposure() <= m.limits.MaxPositionSize,
	}
}

// Snapshot returns the latest cached risk snapshot.
func (m *Manager) Snapshot() model.RiskSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

func (m *Manager) applyPosition(position model.Position) {
	if position.Open() {
		m.book.Upsert(position)
		return
	}
	m.book.Remove(position.ID)
}

func (m *Manager) refreshSnapshot(ctx context.Context) error {
	since := time.Now().UTC().Add(-drawdownWindow)
	closed, err := m.store.ClosedTradesSince(ctx, since)
	if err != nil {
		return errors.Wrap(err, "load closed trades")
	}

	pnls := make([]float64, 0, len(closed))
	for _, trade := range closed {
		if trade.PnL != nil {
			pnls = append(pnls, *trade.PnL)
		}
	}

	snapshot := model.RiskSnapshot{
		MaxDrawdown:     MaxDrawdown(pnls),
		CurrentExposure: m.book.Exposure(),
		ActivePositions: m.book.Len(),
		ComputedAt:      time.Now().UTC(),
	}

	m.mu.Lock()
	m.snapshot = snapshot
	m.mu.Unlock()

	if err := m.store.SaveRiskSnapshot(ctx, snapshot); err != nil {
		logs.Errorf("persist risk snapshot: %v", err)
	}
	if m.cache != nil {
		if err := m.cache.Set(ctx, snapshotKey, snapshot, m.snapshotTTL); err != nil {
			logs.Errorf("publish risk snapshot: %v", err)
		}
	}
	return nil
}

// MaxDrawdown walks a chronological PnL sequence tracking cumulative PnL
// against its running peak and returns the largest gap observed.
func MaxDrawdown(pnls []float64) float64 {
	var cumulative, peak, maxDD float64
	for _, pnl := range pnls {
		cumulative += pnl
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
