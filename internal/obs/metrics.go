package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters and latency stats for the trading
// pipeline. All methods are safe for concurrent use and nil receivers.
type Metrics struct {
	marketDataPoints uint64
	marketDataDrops  uint64
	tradesExecuted   uint64
	tradesRejected   uint64
	ordersFilled     uint64
	ordersCancelled  uint64

	ingestLatency   LatencyStats
	orderLatency    LatencyStats
	riskEvalLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	MarketDataPoints uint64
	MarketDataDrops  uint64
	TradesExecuted   uint64
	TradesRejected   uint64
	OrdersFilled     uint64
	OrdersCancelled  uint64
	IngestLatency    LatencySnapshot
	OrderLatency     LatencySnapshot
	RiskEvalLatency  LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncMarketData records one normalized market data point.
func (m *Metrics) IncMarketData() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.marketDataPoints, 1)
}

// IncMarketDataDrop records a raw message that failed normalization.
func (m *Metrics) IncMarketDataDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.marketDataDrops, 1)
}

// IncTradeExecuted records a signal that passed risk checks and was placed.
func (m *Metrics) IncTradeExecuted() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.tradesExecuted, 1)
}

// IncTradeRejected records a signal rejected by validation or risk checks.
func (m *Metrics) IncTradeRejected() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.tradesRejected, 1)
}

// IncOrderFilled records a pending order observed as filled.
func (m *Metrics) IncOrderFilled() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersFilled, 1)
}

// IncOrderCancelled records a pending order observed as cancelled or rejected.
func (m *Metrics) IncOrderCancelled() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersCancelled, 1)
}

// ObserveIngest measures message receive-to-publish latency.
func (m *Metrics) ObserveIngest(d time.Duration) {
	if m == nil {
		return
	}
	m.ingestLatency.Observe(d)
}

// ObserveOrder measures end-to-end order placement latency.
func (m *Metrics) ObserveOrder(d time.Duration) {
	if m == nil {
		return
	}
	m.orderLatency.Observe(d)
}

// ObserveRiskEval measures risk evaluation latency.
func (m *Metrics) ObserveRiskEval(d time.Duration) {
	if m == nil {
		return
	}
	m.riskEvalLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		MarketDataPoints: atomic.LoadUint64(&m.marketDataPoints),
		MarketDataDrops:  atomic.LoadUint64(&m.marketDataDrops),
		TradesExecuted:   atomic.LoadUint64(&m.tradesExecuted),
		TradesRejected:   atomic.LoadUint64(&m.tradesRejected),
		OrdersFilled:     atomic.LoadUint64(&m.ordersFilled),
		OrdersCancelled:  atomic.LoadUint64(&m.ordersCancelled),
		IngestLatency:    m.ingestLatency.Snapshot(),
		OrderLatency:     m.orderLatency.Snapshot(),
		RiskEvalLatency:  m.riskEvalLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
