package exchange

import (
	"testing"
	"time"

	"tradecore/internal/model"
)

func TestBinanceNormalize(t *testing.T) {
	b := NewBinance()
	raw := []byte(`{"s":"BTCUSDT","T":1700000000000,"o":"49900.5","h":"50100","l":"49800","c":"50000","v":"12.5"}`)

	point, ok := b.Normalize(raw)
	if !ok {
		t.Fatal("well-formed message should normalize")
	}
	if point.Exchange != "binance" || point.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected identity: %+v", point)
	}
	want := time.UnixMilli(1700000000000).UTC()
	if !point.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", point.Timestamp, want)
	}
	if point.Open != 49900.5 || point.High != 50100 || point.Low != 49800 || point.Close != 50000 || point.Volume != 12.5 {
		t.Fatalf("ohlcv mismatch: %+v", point)
	}
}

func TestBinanceNormalizeDropsBadMessages(t *testing.T) {
	b := NewBinance()
	testCases := []struct {
		desc string
		raw  string
	}{
		{"not json", `{{{{`},
		{"missing symbol", `{"T":1700000000000,"o":"1","h":"1","l":"1","c":"1","v":"1"}`},
		{"missing timestamp", `{"s":"BTCUSDT","o":"1","h":"1","l":"1","c":"1","v":"1"}`},
		{"non-numeric price", `{"s":"BTCUSDT","T":1700000000000,"o":"x","h":"1","l":"1","c":"1","v":"1"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if _, ok := b.Normalize([]byte(tc.raw)); ok {
				t.Fatal("malformed message should be dropped")
			}
		})
	}
}

func TestDeribitNormalize(t *testing.T) {
	d := NewDeribit()
	raw := []byte(`{"instrument_name":"BTC-PERPETUAL","timestamp":1700000000000,"open":49900,"high":50100,"low":49800,"close":50000,"volume":3.25}`)

	point, ok := d.Normalize(raw)
	if !ok {
		t.Fatal("well-formed message should normalize")
	}
	if point.Exchange != "deribit" || point.Symbol != "BTC-PERPETUAL" {
		t.Fatalf("unexpected identity: %+v", point)
	}
	if point.Close != 50000 || point.Volume != 3.25 {
		t.Fatalf("ohlcv mismatch: %+v", point)
	}
	if _, ok := d.Normalize([]byte(`{"open":1}`)); ok {
		t.Fatal("message without instrument should be dropped")
	}
}

func TestMockNormalizeTagsExchange(t *testing.T) {
	m := NewMock()
	raw := []byte(`{"s":"BTC-USD","T":1700000000000,"o":50000,"h":50050,"l":49950,"c":50025,"v":42}`)

	point, ok := m.Normalize(raw)
	if !ok {
		t.Fatal("synthetic tick should normalize")
	}
	if point.Exchange != "mock" {
		t.Fatalf("exchange tag = %q, want mock", point.Exchange)
	}
	if point.Close != 50025 {
		t.Fatalf("close = %v, want 50025", point.Close)
	}
}

func TestBinanceOrderPayload(t *testing.T) {
	b := NewBinance()
	sig := model.TradeSignal{
		Symbol:     "BTCUSDT",
		Direction:  model.DirectionShort,
		EntryPrice: 50000,
		StopLoss:   51000,
		TakeProfit: 48000,
	}

	payload := b.OrderPayload(sig, 0.5)
	if payload["side"] != "SELL" {
		t.Fatalf("side = %v, want SELL", payload["side"])
	}
	if payload["symbol"] != "BTCUSDT" || payload["quantity"] != 0.5 || payload["price"] != float64(50000) {
		t.Fatalf("payload mismatch: %+v", payload)
	}
}

func TestBinanceDecodeOrderAck(t *testing.T) {
	b := NewBinance()

	ack, err := b.DecodeOrderAck([]byte(`{"orderId":12345,"status":"FILLED","price":"50000.5"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ack.OrderID != "12345" || ack.Status != model.StatusFilled || ack.FilledPrice != 50000.5 {
		t.Fatalf("ack mismatch: %+v", ack)
	}

	if _, err := b.DecodeOrderAck([]byte(`{"status":"NEW"}`)); err == nil {
		t.Fatal("missing orderId should error")
	}
}

func TestDeribitDecodeOrderAck(t *testing.T) {
	d := NewDeribit()

	ack, err := d.DecodeOrderAck([]byte(`{"result":{"order":{"order_id":"ETH-123","order_state":"open","average_price":2000}}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ack.OrderID != "ETH-123" || ack.Status != model.StatusPending || ack.FilledPrice != 2000 {
		t.Fatalf("ack mismatch: %+v", ack)
	}

	status, err := d.DecodeOrderStatus([]byte(`{"result":{"order_state":"filled"}}`))
	if err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status != model.StatusFilled {
		t.Fatalf("status = %s, want filled", status)
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := DefaultRegistry()
	for _, name := range []string{"binance", "deribit", "mock"} {
		if _, ok := reg.Lookup(name); !ok {
			t.Fatalf("registry missing %s", name)
		}
	}
	if _, ok := reg.Lookup("kraken"); ok {
		t.Fatal("unknown exchange should not resolve")
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := DefaultRegistry()

	adapter, err := reg.Resolve("binance")
	if err != nil {
		t.Fatalf("resolve binance: %v", err)
	}
	if adapter.Name() != "binance" {
		t.Fatalf("resolved wrong adapter %s", adapter.Name())
	}

	if _, err := reg.Resolve("kraken"); err == nil {
		t.Fatal("unknown exchange should error")
	}
}

func TestPaperGateway(t *testing.T) {
	p := NewPaper("binance", 10000)
	sig := model.TradeSignal{
		Symbol:     "BTC-USD",
		Direction:  model.DirectionLong,
		EntryPrice: 50000,
		StopLoss:   49000,
		TakeProfit: 52000,
	}

	balance, err := p.AccountBalance(t.Context())
	if err != nil || balance != 10000 {
		t.Fatalf("balance = %v, %v", balance, err)
	}

	ack, err := p.PlaceOrder(t.Context(), sig, 0.1)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if ack.Status != model.StatusFilled || ack.FilledPrice != 50000 || ack.OrderID == "" {
		t.Fatalf("ack mismatch: %+v", ack)
	}

	status, err := p.OrderStatus(t.Context(), ack.OrderID)
	if err != nil || status != model.StatusFilled {
		t.Fatalf("status = %v, %v", status, err)
	}
	status, err = p.OrderStatus(t.Context(), "unknown")
	if err != nil || status != model.StatusCancelled {
		t.Fatalf("unknown order status = %v, %v", status, err)
	}
}
