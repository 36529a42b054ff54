package ingest

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"
)

const mockExchange = "mock"

// basePrices seeds plausible levels per pair; unknown pairs start at 100.
var basePrices = map[string]float64{
	"BTC-USD": 50000,
	"ETH-USD": 2000,
}

// syntheticTick is the wire shape the generator emits. It matches the flat
// candle layout the mock adapter normalizes, so synthetic data exercises the
// exact same path as live data.
type syntheticTick struct {
	Symbol string  `json:"s"`
	TimeMs int64   `json:"T"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

// runMock synthesizes one OHLCV tick per pair on a fixed interval. Prices
// random-walk within 0.1% per tick so downstream consumers see movement.
func (i *Ingestor) runMock(ctx context.Context) {
	defer i.wg.Done()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	last := make(map[string]float64, len(i.pairs))
	for _, pair := range i.pairs {
		last[pair] = basePrice(pair)
	}

	ticker := time.NewTicker(i.mockInterval)
	defer ticker.Stop()

	logs.Infof("synthetic feed running for %d pairs every %s", len(i.pairs), i.mockInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-i.stop:
			return
		case now := <-ticker.C:
			for _, pair := range i.pairs {
				tick := nextTick(rng, pair, last, now)
				raw, err := sonic.ConfigFastest.Marshal(tick)
				if err != nil {
					logs.Errorf("marshal synthetic tick for %s: %v", pair, err)
					continue
				}
				i.ProcessMessage(ctx, mockExchange, pair, raw)
			}
		}
	}
}

func nextTick(rng *rand.Rand, pair string, last map[string]float64, now time.Time) syntheticTick {
	open := last[pair]
	jitter := func() float64 { return 1 + (rng.Float64()*2-1)*0.001 }

	closePrice := open * jitter()
	high := closePrice
	if open > high {
		high = open
	}
	high *= jitter()
	low := closePrice
	if open < low {
		low = open
	}
	low /= jitter()
	last[pair] = closePrice

	return syntheticTick{
		Symbol: pair,
		TimeMs: now.UTC().UnixMilli(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: 1 + rng.Float64()*99,
	}
}

func basePrice(pair string) float64 {
	if price, ok := basePrices[pair]; ok {
		return price
	}
	upper := strings.ToUpper(pair)
	if price, ok := basePrices[upper]; ok {
		return price
	}
	return 100
}
