package exchange

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"tradecore/internal/model"
)

const (
	binanceWSURL   = "wss://stream.binance.com:9443/ws"
	binanceRestURL = "https://api.binance.com"
)

// Binance maps Binance's native stream and REST formats.
type Binance struct{}

// NewBinance creates the binance adapter.
func NewBinance() *Binance {
	return &Binance{}
}

func (b *Binance) Name() string      { return "binance" }
func (b *Binance) StreamURL() string { return binanceWSURL }

func (b *Binance) Endpoints() Endpoints {
	return Endpoints{
		Rest:    binanceRestURL,
		Order:   "/api/v3/order",
		Status:  "/api/v3/order",
		Balance: "/api/v3/account",
	}
}

type binanceSubscribe struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

func (b *Binance) SubscribePayload(pair string) any {
	return binanceSubscribe{
		Method: "SUBSCRIBE",
		Params: []string{fmt.Sprintf("%s@kline_1m", strings.ToLower(strings.ReplaceAll(pair, "-", "")))},
		ID:     1,
	}
}

// binanceTick is the flat candle shape on the stream. Prices arrive as
// strings; the event time is milliseconds since epoch.
type binanceTick struct {
	Symbol string `json:"s"`
	TimeMs int64  `json:"T"`
	Open   string `json:"o"`
	High   string `json:"h"`
	Low    string `json:"l"`
	Close  string `json:"c"`
	Volume string `json:"v"`
}

func (b *Binance) Normalize(raw []byte) (model.MarketDataPoint, bool) {
	var tick binanceTick
	if err := sonic.ConfigFastest.Unmarshal(raw, &tick); err != nil {
		return model.MarketDataPoint{}, false
	}
	if tick.Symbol == "" || tick.TimeMs == 0 {
		return model.MarketDataPoint{}, false
	}
	open, err1 := strconv.ParseFloat(tick.Open, 64)
	high, err2 := strconv.ParseFloat(tick.High, 64)
	low, err3 := strconv.ParseFloat(tick.Low, 64)
	closing, err4 := strconv.ParseFloat(tick.Close, 64)
	volume, err5 := strconv.ParseFloat(tick.Volume, 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return model.MarketDataPoint{}, false
	}
	return model.MarketDataPoint{
		Exchange:  b.Name(),
		Symbol:    tick.Symbol,
		Timestamp: time.UnixMilli(tick.TimeMs).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closing,
		Volume:    volume,
	}, true
}

func (b *Binance) OrderPayload(sig model.TradeSignal, size float64) map[string]any {
	side := "BUY"
	if sig.Direction == model.DirectionShort {
		side = "SELL"
	}
	return map[string]any{
		"symbol":      sig.Symbol,
		"side":        side,
		"type":        "LIMIT",
		"quantity":    size,
		"price":       sig.EntryPrice,
		"timeInForce": "GTC",
		"stopPrice":   sig.StopLoss,
		"takeProfit":  sig.TakeProfit,
	}
}

func (b *Binance) AuthHeaders(creds Credentials) map[string]string {
	if creds.Empty() {
		return nil
	}
	return map[string]string{"X-MBX-APIKEY": creds.Key}
}

type binanceOrderResponse struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
	Price   string `json:"price"`
}

func (b *Binance) DecodeOrderAck(body []byte) (OrderAck, error) {
	var resp binanceOrderResponse
	if err := sonic.ConfigFastest.Unmarshal(body, &resp); err != nil {
		return OrderAck{}, errors.Wrap(err, "decode binance order response")
	}
	if resp.OrderID == 0 {
		return OrderAck{}, errors.New("binance order response missing orderId")
	}
	price, _ := strconv.ParseFloat(resp.Price, 64)
	return OrderAck{
		OrderID:     strconv.FormatInt(resp.OrderID, 10),
		Status:      model.StatusFromExchange(resp.Status),
		FilledPrice: price,
	}, nil
}

func (b *Binance) DecodeOrderStatus(body []byte) (model.Status, error) {
	var resp binanceOrderResponse
	if err := sonic.ConfigFastest.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(err, "decode binance order status")
	}
	if resp.Status == "" {
		return "", errors.New("binance status response missing status")
	}
	return model.StatusFromExchange(resp.Status), nil
}

type binanceAccount struct {
	Balances []struct {
		Asset string `json:"asset"`
		Free  string `json:"free"`
	} `json:"balances"`
}

func (b *Binance) DecodeBalance(body []byte) (float64, error) {
	var acct binanceAccount
	if err := sonic.ConfigFastest.Unmarshal(body, &acct); err != nil {
		return 0, errors.Wrap(err, "decode binance account")
	}
	var total float64
	for _, bal := range acct.Balances {
		switch bal.Asset {
		case "USDT", "USD", "USDC":
			free, err := strconv.ParseFloat(bal.Free, 64)
			if err != nil {
				continue
			}
			total += free
		}
	}
	return total, nil
}
