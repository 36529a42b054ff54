package exchange

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"tradecore/internal/model"
)

// Gateway performs the REST half of one exchange: order placement, status
// polls and balance reads. Every call is bounded by the client timeout on
// top of the caller's context.
type Gateway struct {
	adapter Adapter
	creds   Credentials
	baseURL string
	client  *http.Client
}

// NewGateway creates a REST gateway for one exchange. An empty restURL falls
// back to the adapter's default endpoint set.
func NewGateway(adapter Adapter, creds Credentials, restURL string, timeout time.Duration) *Gateway {
	if restURL == "" {
		restURL = adapter.Endpoints().Rest
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		adapter: adapter,
		creds:   creds,
		baseURL: restURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the exchange identifier this gateway talks to.
func (g *Gateway) Name() string {
	return g.adapter.Name()
}

// PlaceOrder submits a sized signal as an order and returns the normalized
// acknowledgment.
func (g *Gateway) PlaceOrder(ctx context.Context, sig model.TradeSignal, size float64) (OrderAck, error) {
	payload := g.adapter.OrderPayload(sig, size)
	body, err := sonic.ConfigFastest.Marshal(payload)
	if err != nil {
		return OrderAck{}, errors.Wrap(err, "marshal order payload")
	}

	endpoint := g.baseURL + g.adapter.Endpoints().Order
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return OrderAck{}, errors.Wrap(err, "build order request")
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range g.adapter.AuthHeaders(g.creds) {
		req.Header.Set(key, value)
	}

	respBody, err := g.do(req)
	if err != nil {
		return OrderAck{}, errors.Wrap(err, "place order")
	}
	return g.adapter.DecodeOrderAck(respBody)
}

// OrderStatus polls the exchange-side state of one order.
func (g *Gateway) OrderStatus(ctx context.Context, orderID string) (model.Status, error) {
	endpoint := g.baseURL + g.adapter.Endpoints().Status
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, "build status request")
	}
	query := url.Values{}
	query.Set("orderId", orderID)
	req.URL.RawQuery = query.Encode()
	for key, value := range g.adapter.AuthHeaders(g.creds) {
		req.Header.Set(key, value)
	}

	respBody, err := g.do(req)
	if err != nil {
		return "", errors.Wrap(err, "order status")
	}
	return g.adapter.DecodeOrderStatus(respBody)
}

// AccountBalance reads the quote-currency balance usable for sizing.
func (g *Gateway) AccountBalance(ctx context.Context) (float64, error) {
	endpoint := g.baseURL + g.adapter.Endpoints().Balance
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, errors.Wrap(err, "build balance request")
	}
	for key, value := range g.adapter.AuthHeaders(g.creds) {
		req.Header.Set(key, value)
	}

	respBody, err := g.do(req)
	if err != nil {
		return 0, errors.Wrap(err, "account balance")
	}
	return g.adapter.DecodeBalance(respBody)
}

func (g *Gateway) do(req *http.Request) ([]byte, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s API error %d: %s", g.adapter.Name(), resp.StatusCode, string(body))
	}
	return body, nil
}
