package order

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tradecore/internal/exchange"
	"tradecore/internal/model"
	"tradecore/internal/obs"
)

// Gateway is the per-exchange order surface the executor talks to.
type Gateway interface {
	Name() string
	PlaceOrder(ctx context.Context, signal model.TradeSignal, size float64) (exchange.OrderAck, error)
	OrderStatus(ctx context.Context, orderID string) (model.Status, error)
	AccountBalance(ctx context.Context) (float64, error)
}

// Risk gates, sizes and accounts for every trade the executor handles.
type Risk interface {
	ValidateTrade(signal model.TradeSignal) bool
	PositionSize(signal model.TradeSignal, accountBalance float64) (float64, error)
	UpdateMetrics(ctx context.Context, position model.Position)
	SyncPosition(ctx context.Context, position model.Position)
}

// Store is the persistence surface for positions.
type Store interface {
	InsertPosition(ctx context.Context, position model.Position) error
	UpdatePosition(ctx context.Context, position model.Position) error
	OpenPositions(ctx context.Context, statuses ...model.Status) ([]model.Position, error)
}

// Executor turns validated signals into orders and reconciles tracked orders
// against exchange state. One reconciliation loop runs per process.
type Executor struct {
	gateways map[string]Gateway
	risk     Risk
	store    Store
	metrics  *obs.Metrics

	poll    time.Duration
	backoff time.Duration

	mu     sync.Mutex
	active map[string]model.Position

	stopOnce sync.Once
	stop     chan struct{}
}

// NewExecutor wires the executor. Gateways are keyed by exchange name.
func NewExecutor(gateways map[string]Gateway, risk Risk, store Store, metrics *obs.Metrics, poll, backoff time.Duration) *Executor {
	if poll <= 0 {
		poll = time.Second
	}
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &Executor{
		gateways: gateways,
		risk:     risk,
		store:    store,
		metrics:  metrics,
		poll:     poll,
		backoff:  backoff,
		active:   make(map[string]model.Position),
		stop:     make(chan struct{}),
	}
}

// Initialize hydrates the active-order index from persisted positions that
// never exited, so in-flight orders survive a restart. A persistence failure
// here is fatal.
func (e *Executor) Initialize(ctx context.Context) error {
	positions, err := e.store.OpenPositions(ctx, model.StatusPending, model.StatusFilled)
	if err != nil {
		return errors.Wrap(err, "hydrate active orders")
	}

	e.mu.Lock()
	for _, position := range positions {
		e.active[position.ID] = position
	}
	e.mu.Unlock()

	logs.Infof("order executor tracking %d active orders", len(positions))
	return nil
}

// ExecuteTrade runs the full placement path: risk gate, balance fetch, sizing,
// order submission, persistence and risk accounting. Any failure returns
// before state is registered, so a failed call leaves no trace.
func (e *Executor) ExecuteTrade(ctx context.Context, signal model.TradeSignal) (model.Position, error) {
	if !e.risk.ValidateTrade(signal) {
		e.metrics.IncTradeRejected()
		return model.Position{}, ErrRejected
	}

	gateway, ok := e.gateways[signal.Exchange]
	if !ok {
		e.metrics.IncTradeRejected()
		return model.Position{}, errors.Wrap(ErrNoGateway, signal.Exchange)
	}

	balance, err := gateway.AccountBalance(ctx)
	if err != nil {
		return model.Position{}, errors.Wrap(err, "fetch account balance")
	}

	size, err := e.risk.PositionSize(signal, balance)
	if err != nil {
		e.metrics.IncTradeRejected()
		return model.Position{}, errors.Wrap(err, "size position")
	}
	if size <= 0 {
		e.metrics.IncTradeRejected()
		return model.Position{}, errors.New("position size resolved to zero")
	}

	start := time.Now()
	ack, err := gateway.PlaceOrder(ctx, signal, size)
	e.metrics.ObserveOrder(time.Since(start))
	if err != nil {
		return model.Position{}, errors.Wrap(err, "place order")
	}

	status := ack.Status
	if status == "" {
		status = model.StatusPending
	}
	entryPrice := signal.EntryPrice
	if ack.FilledPrice > 0 {
		entryPrice = ack.FilledPrice
	}
	id := ack.OrderID
	if id == "" {
		id = uuid.NewString()
	}
	e.mu.Lock()
	_, exists := e.active[id]
	e.mu.Unlock()
	if exists {
		return model.Position{}, errors.Wrap(ErrDuplicateOrder, id)
	}

	position := model.Position{
		ID:         id,
		Exchange:   signal.Exchange,
		Symbol:     signal.Symbol,
		Direction:  signal.Direction,
		Size:       size,
		EntryPrice: entryPrice,
		Status:     status,
		StrategyID: signal.StrategyID,
		EntryTime:  time.Now().UTC(),
	}

	if err := e.store.InsertPosition(ctx, position); err != nil {
		return model.Position{}, errors.Wrap(err, "persist position")
	}

	if !position.Status.Terminal() {
		e.mu.Lock()
		e.active[position.ID] = position
		e.mu.Unlock()
	}

	e.risk.UpdateMetrics(ctx, position)
	e.metrics.IncTradeExecuted()
	logs.Infof("placed %s %s %s size %.5f at %.2f, order %s status %s",
		signal.Exchange, signal.Symbol, signal.Direction, size, entryPrice, position.ID, position.Status)
	return position, nil
}

// ManageOpenPositions polls exchange-side order status on a fixed cadence and
// folds observed transitions into local state. It returns only when the
// context is cancelled or Stop is called. A cycle with errors waits out the
// backoff before the next poll.
func (e *Executor) ManageOpenPositions(ctx context.Context) {
	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-ticker.C:
		}

		if failed := e.reconcile(ctx); failed > 0 {
			select {
			case <-ctx.Done():
				return
			case <-e.stop:
				return
			case <-time.After(e.backoff):
			}
		}
	}
}

// reconcile polls every tracked order once. Failures are isolated per order:
// an unreachable exchange leaves its orders tracked for the next cycle and
// never blocks the rest.
func (e *Executor) reconcile(ctx context.Context) (failed int) {
	for _, position := range e.Active() {
		gateway, ok := e.gateways[position.Exchange]
		if !ok {
			logs.Warnf("order %s: no gateway for %s, dropping from index", position.ID, position.Exchange)
			e.remove(position.ID)
			continue
		}

		status, err := gateway.OrderStatus(ctx, position.ID)
		if err != nil {
			logs.Warnf("order %s: status poll failed: %v", position.ID, err)
			failed++
			continue
		}
		if status == position.Status || !CanTransition(position.Status, status) {
			continue
		}

		// Persist before touching the index: a failed write leaves the
		// order in its old state so the next cycle retries the whole
		// transition instead of skipping it.
		updated := position
		updated.Status = status
		if err := e.store.UpdatePosition(ctx, updated); err != nil {
			logs.Errorf("order %s: persist %s: %v", updated.ID, status, err)
			failed++
			continue
		}

		switch status {
		case model.StatusFilled:
			e.metrics.IncOrderFilled()
			e.mu.Lock()
			e.active[updated.ID] = updated
			e.mu.Unlock()
		case model.StatusCancelled, model.StatusRejected:
			e.metrics.IncOrderCancelled()
			e.remove(updated.ID)
		}
		e.risk.SyncPosition(ctx, updated)
		logs.Infof("order %s now %s", updated.ID, status)
	}
	return failed
}

// ClosePosition closes a filled position at the given exit price, computes
// realized PnL and feeds the closed trade back into risk accounting.
func (e *Executor) ClosePosition(ctx context.Context, orderID string, exitPrice float64) (model.Position, error) {
	e.mu.Lock()
	position, ok := e.active[orderID]
	e.mu.Unlock()
	if !ok {
		return model.Position{}, ErrUnknownOrder
	}

	status, err := Transition(position.Status, model.StatusClosed)
	if err != nil {
		return model.Position{}, errors.Wrapf(err, "close order %s in state %s", orderID, position.Status)
	}

	now := time.Now().UTC()
	pnl := model.PnL(position.Direction, position.EntryPrice, exitPrice, position.Size)
	position.Status = status
	position.ExitTime = &now
	position.ExitPrice = &exitPrice
	position.PnL = &pnl

	if err := e.store.UpdatePosition(ctx, position); err != nil {
		return model.Position{}, errors.Wrapf(err, "persist closed position %s", orderID)
	}

	e.remove(orderID)
	e.risk.SyncPosition(ctx, position)
	logs.Infof("closed %s at %.2f, pnl %.2f", orderID, exitPrice, pnl)
	return position, nil
}

// Active returns a copy of the tracked positions.
func (e *Executor) Active() []model.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Position, 0, len(e.active))
	for _, position := range e.active {
		out = append(out, position)
	}
	return out
}

// Stop ends the reconciliation loop. Safe to call more than once.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

func (e *Executor) remove(orderID string) {
	e.mu.Lock()
	delete(e.active, orderID)
	e.mu.Unlock()
}
