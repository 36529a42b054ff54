package exchange

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"tradecore/internal/model"
)

var errMockTrading = errors.New("mock exchange has no trading API")

// Mock normalizes synthetic ticks so generated data flows through the same
// pipeline as live data. Points carry the "mock" exchange tag so downstream
// consumers can always tell them from live data.
type Mock struct{}

// NewMock creates the mock adapter.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Name() string                { return "mock" }
func (m *Mock) StreamURL() string           { return "" }
func (m *Mock) SubscribePayload(string) any { return nil }
func (m *Mock) Endpoints() Endpoints        { return Endpoints{} }

// mockTick mirrors the binance flat candle shape with numeric fields, which
// is what the generator emits.
type mockTick struct {
	Symbol string  `json:"s"`
	TimeMs int64   `json:"T"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

func (m *Mock) Normalize(raw []byte) (model.MarketDataPoint, bool) {
	var tick mockTick
	if err := sonic.ConfigFastest.Unmarshal(raw, &tick); err != nil {
		return model.MarketDataPoint{}, false
	}
	if tick.Symbol == "" || tick.TimeMs == 0 {
		return model.MarketDataPoint{}, false
	}
	return model.MarketDataPoint{
		Exchange:  m.Name(),
		Symbol:    tick.Symbol,
		Timestamp: time.UnixMilli(tick.TimeMs).UTC(),
		Open:      tick.Open,
		High:      tick.High,
		Low:       tick.Low,
		Close:     tick.Close,
		Volume:    tick.Volume,
	}, true
}

func (m *Mock) OrderPayload(model.TradeSignal, float64) map[string]any { return nil }

func (m *Mock) AuthHeaders(Credentials) map[string]string { return nil }

func (m *Mock) DecodeOrderAck([]byte) (OrderAck, error) {
	return OrderAck{}, errMockTrading
}

func (m *Mock) DecodeOrderStatus([]byte) (model.Status, error) {
	return "", errMockTrading
}

func (m *Mock) DecodeBalance([]byte) (float64, error) {
	return 0, errMockTrading
}
