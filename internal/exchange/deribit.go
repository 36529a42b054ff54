package exchange

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"tradecore/internal/model"
)

const (
	deribitWSURL   = "wss://www.deribit.com/ws/api/v2"
	deribitRestURL = "https://www.deribit.com/api/v2"
)

// Deribit maps Deribit's native stream and REST formats.
type Deribit struct{}

// NewDeribit creates the deribit adapter.
func NewDeribit() *Deribit {
	return &Deribit{}
}

func (d *Deribit) Name() string      { return "deribit" }
func (d *Deribit) StreamURL() string { return deribitWSURL }

func (d *Deribit) Endpoints() Endpoints {
	return Endpoints{
		Rest:    deribitRestURL,
		Order:   "/private/buy",
		Status:  "/private/get_order_state",
		Balance: "/private/get_account_summary",
	}
}

type deribitSubscribe struct {
	Method string `json:"method"`
	Params struct {
		Channels []string `json:"channels"`
	} `json:"params"`
}

func (d *Deribit) SubscribePayload(pair string) any {
	var msg deribitSubscribe
	msg.Method = "public/subscribe"
	msg.Params.Channels = []string{fmt.Sprintf("chart.trades.%s.1", pair)}
	return msg
}

// deribitTick carries numeric OHLCV and a millisecond timestamp.
type deribitTick struct {
	Instrument string  `json:"instrument_name"`
	TimeMs     int64   `json:"timestamp"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
}

func (d *Deribit) Normalize(raw []byte) (model.MarketDataPoint, bool) {
	var tick deribitTick
	if err := sonic.ConfigFastest.Unmarshal(raw, &tick); err != nil {
		return model.MarketDataPoint{}, false
	}
	if tick.Instrument == "" || tick.TimeMs == 0 {
		return model.MarketDataPoint{}, false
	}
	return model.MarketDataPoint{
		Exchange:  d.Name(),
		Symbol:    tick.Instrument,
		Timestamp: time.UnixMilli(tick.TimeMs).UTC(),
		Open:      tick.Open,
		High:      tick.High,
		Low:       tick.Low,
		Close:     tick.Close,
		Volume:    tick.Volume,
	}, true
}

func (d *Deribit) OrderPayload(sig model.TradeSignal, size float64) map[string]any {
	return map[string]any{
		"instrument_name": sig.Symbol,
		"amount":          size,
		"type":            "limit",
		"price":           sig.EntryPrice,
		"stop_loss":       sig.StopLoss,
		"take_profit":     sig.TakeProfit,
	}
}

func (d *Deribit) AuthHeaders(creds Credentials) map[string]string {
	if creds.Empty() {
		return nil
	}
	return map[string]string{"Authorization": "Basic " + creds.Key + ":" + creds.Secret}
}

type deribitOrderResponse struct {
	Result struct {
		Order struct {
			OrderID      string  `json:"order_id"`
			OrderState   string  `json:"order_state"`
			AveragePrice float64 `json:"average_price"`
		} `json:"order"`
	} `json:"result"`
}

func (d *Deribit) DecodeOrderAck(body []byte) (OrderAck, error) {
	var resp deribitOrderResponse
	if err := sonic.ConfigFastest.Unmarshal(body, &resp); err != nil {
		return OrderAck{}, errors.Wrap(err, "decode deribit order response")
	}
	if resp.Result.Order.OrderID == "" {
		return OrderAck{}, errors.New("deribit order response missing order_id")
	}
	return OrderAck{
		OrderID:     resp.Result.Order.OrderID,
		Status:      model.StatusFromExchange(resp.Result.Order.OrderState),
		FilledPrice: resp.Result.Order.AveragePrice,
	}, nil
}

type deribitStateResponse struct {
	Result struct {
		OrderState string `json:"order_state"`
	} `json:"result"`
}

func (d *Deribit) DecodeOrderStatus(body []byte) (model.Status, error) {
	var resp deribitStateResponse
	if err := sonic.ConfigFastest.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(err, "decode deribit order state")
	}
	if resp.Result.OrderState == "" {
		return "", errors.New("deribit state response missing order_state")
	}
	return model.StatusFromExchange(resp.Result.OrderState), nil
}

type deribitSummaryResponse struct {
	Result struct {
		Equity float64 `json:"equity"`
	} `json:"result"`
}

func (d *Deribit) DecodeBalance(body []byte) (float64, error) {
	var resp deribitSummaryResponse
	if err := sonic.ConfigFastest.Unmarshal(body, &resp); err != nil {
		return 0, errors.Wrap(err, "decode deribit account summary")
	}
	return resp.Result.Equity, nil
}
