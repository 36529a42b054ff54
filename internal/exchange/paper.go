package exchange

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"tradecore/internal/model"
)

// Paper is an in-process gateway that acknowledges every order as filled at
// the requested price. It stands in for exchanges without credentials so the
// execution path stays exercised end to end.
type Paper struct {
	name    string
	balance float64

	mu     sync.Mutex
	orders map[string]model.Status
}

// NewPaper creates a paper gateway reporting the given account balance.
func NewPaper(name string, balance float64) *Paper {
	if name == "" {
		name = "paper"
	}
	return &Paper{
		name:    name,
		balance: balance,
		orders:  make(map[string]model.Status),
	}
}

// Name returns the exchange identifier the paper gateway impersonates.
func (p *Paper) Name() string {
	return p.name
}

// PlaceOrder fills immediately at the signal's entry price.
func (p *Paper) PlaceOrder(_ context.Context, sig model.TradeSignal, _ float64) (OrderAck, error) {
	id := uuid.NewString()
	p.mu.Lock()
	p.orders[id] = model.StatusFilled
	p.mu.Unlock()
	return OrderAck{
		OrderID:     id,
		Status:      model.StatusFilled,
		FilledPrice: sig.EntryPrice,
	}, nil
}

// OrderStatus reports the recorded state; unknown orders read as cancelled so
// reconciliation converges instead of polling forever.
func (p *Paper) OrderStatus(_ context.Context, orderID string) (model.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status, ok := p.orders[orderID]; ok {
		return status, nil
	}
	return model.StatusCancelled, nil
}

// AccountBalance returns the configured paper balance.
func (p *Paper) AccountBalance(context.Context) (float64, error) {
	return p.balance, nil
}
