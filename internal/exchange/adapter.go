package exchange

import (
	"github.com/yanun0323/errors"

	"tradecore/internal/model"
)

var ErrUnknownExchange = errors.New("unknown exchange")

// Credentials holds the per-exchange API key pair. The signing scheme itself
// is exchange-specific and lives in each adapter's AuthHeaders.
type Credentials struct {
	Key    string
	Secret string
}

// Empty reports whether no credentials were supplied.
func (c Credentials) Empty() bool {
	return c.Key == "" || c.Secret == ""
}

// Endpoints holds the REST surface of one exchange.
type Endpoints struct {
	Rest    string
	Order   string
	Status  string
	Balance string
}

// OrderAck is the normalized result of an order placement.
type OrderAck struct {
	OrderID     string
	Status      model.Status
	FilledPrice float64
}

// Adapter maps one exchange's native formats onto the canonical shapes.
// Normalization, order payload shaping and authentication are the three
// capabilities the core needs per exchange; everything else is generic.
type Adapter interface {
	Name() string
	StreamURL() string

	// SubscribePayload builds the subscription message for one trading pair.
	SubscribePayload(pair string) any

	// Normalize parses a native stream message into a MarketDataPoint.
	// Messages missing required fields report ok=false and are dropped.
	Normalize(raw []byte) (point model.MarketDataPoint, ok bool)

	// OrderPayload shapes a sized signal into the exchange's order body.
	OrderPayload(sig model.TradeSignal, size float64) map[string]any

	// AuthHeaders produces request headers for authenticated REST calls.
	AuthHeaders(creds Credentials) map[string]string

	Endpoints() Endpoints

	// DecodeOrderAck parses the order-placement response body.
	DecodeOrderAck(body []byte) (OrderAck, error)

	// DecodeOrderStatus parses the order-status response body.
	DecodeOrderStatus(body []byte) (model.Status, error)

	// DecodeBalance parses the account-balance response body.
	DecodeBalance(body []byte) (float64, error)
}

// Registry is the adapter lookup table keyed by exchange identifier.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// DefaultRegistry returns a registry with every built-in adapter registered.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(NewBinance())
	reg.Register(NewDeribit())
	reg.Register(NewMock())
	return reg
}

// Register adds an adapter, replacing any previous entry for the same name.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Lookup returns the adapter for an exchange identifier.
func (r *Registry) Lookup(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Resolve returns the adapter for an exchange identifier, or
// ErrUnknownExchange when nothing is registered under that name.
func (r *Registry) Resolve(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownExchange, name)
	}
	return a, nil
}
