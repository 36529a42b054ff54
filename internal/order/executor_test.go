package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/exchange"
	"tradecore/internal/model"
	"tradecore/internal/obs"
)

type fakeGateway struct {
	name       string
	balance    float64
	balanceErr error
	ack        exchange.OrderAck
	placeErr   error
	statuses   map[string]model.Status
	statusErr  map[string]error
	placed     []model.TradeSignal
}

func (f *fakeGateway) Name() string { return f.name }

func (f *fakeGateway) PlaceOrder(_ context.Context, signal model.TradeSignal, _ float64) (exchange.OrderAck, error) {
	if f.placeErr != nil {
		return exchange.OrderAck{}, f.placeErr
	}
	f.placed = append(f.placed, signal)
	return f.ack, nil
}

func (f *fakeGateway) OrderStatus(_ context.Context, orderID string) (model.Status, error) {
	if err := f.statusErr[orderID]; err != nil {
		return "", err
	}
	return f.statuses[orderID], nil
}

func (f *fakeGateway) AccountBalance(context.Context) (float64, error) {
	return f.balance, f.balanceErr
}

type fakeRisk struct {
	allow   bool
	size    float64
	sizeErr error
	updated []model.Position
	synced  []model.Position
}

func (f *fakeRisk) ValidateTrade(model.TradeSignal) bool { return f.allow }

func (f *fakeRisk) PositionSize(model.TradeSignal, float64) (float64, error) {
	return f.size, f.sizeErr
}

func (f *fakeRisk) UpdateMetrics(_ context.Context, position model.Position) {
	f.updated = append(f.updated, position)
}

func (f *fakeRisk) SyncPosition(_ context.Context, position model.Position) {
	f.synced = append(f.synced, position)
}

type fakePositionStore struct {
	open      []model.Position
	openErr   error
	inserted  []model.Position
	updated   []model.Position
	insertErr error
	updateErr error
}

func (f *fakePositionStore) InsertPosition(_ context.Context, position model.Position) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, position)
	return nil
}

func (f *fakePositionStore) UpdatePosition(_ context.Context, position model.Position) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, position)
	return nil
}

func (f *fakePositionStore) OpenPositions(context.Context, ...model.Status) ([]model.Position, error) {
	return f.open, f.openErr
}

func testSignal() model.TradeSignal {
	return model.TradeSignal{
		Exchange:   "binance",
		Symbol:     "BTC-USD",
		Direction:  model.DirectionLong,
		EntryPrice: 50000,
		StopLoss:   49000,
		TakeProfit: 52000,
	}
}

func newTestExecutor(gateway Gateway, risk *fakeRisk, store *fakePositionStore) *Executor {
	gateways := map[string]Gateway{}
	if gateway != nil {
		gateways[gateway.Name()] = gateway
	}
	return NewExecutor(gateways, risk, store, obs.NewMetrics(), time.Second, time.Second)
}

func TestExecuteTradeHappyPath(t *testing.T) {
	gateway := &fakeGateway{
		name:    "binance",
		balance: 10000,
		ack:     exchange.OrderAck{OrderID: "ord-1", Status: model.StatusPending},
	}
	risk := &fakeRisk{allow: true, size: 0.1}
	store := &fakePositionStore{}
	e := newTestExecutor(gateway, risk, store)

	position, err := e.ExecuteTrade(t.Context(), testSignal())
	require.NoError(t, err)

	assert.Equal(t, "ord-1", position.ID)
	assert.Equal(t, model.StatusPending, position.Status)
	assert.Equal(t, 0.1, position.Size)
	assert.Equal(t, 50000.0, position.EntryPrice)

	require.Len(t, store.inserted, 1)
	require.Len(t, risk.updated, 1)
	assert.Len(t, e.Active(), 1)
}

func TestExecuteTradeRejectedByRisk(t *testing.T) {
	gateway := &fakeGateway{name: "binance", balance: 10000}
	risk := &fakeRisk{allow: false}
	store := &fakePositionStore{}
	e := newTestExecutor(gateway, risk, store)

	_, err := e.ExecuteTrade(t.Context(), testSignal())
	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, store.inserted)
	assert.Empty(t, e.Active())
	assert.Empty(t, gateway.placed)
}

func TestExecuteTradeUnknownExchange(t *testing.T) {
	e := newTestExecutor(nil, &fakeRisk{allow: true, size: 1}, &fakePositionStore{})

	_, err := e.ExecuteTrade(t.Context(), testSignal())
	assert.ErrorIs(t, err, ErrNoGateway)
}

func TestExecuteTradeLeavesNoPartialState(t *testing.T) {
	gateway := &fakeGateway{name: "binance", balance: 10000, placeErr: assert.AnError}
	risk := &fakeRisk{allow: true, size: 0.1}
	store := &fakePositionStore{}
	e := newTestExecutor(gateway, risk, store)

	_, err := e.ExecuteTrade(t.Context(), testSignal())
	require.Error(t, err)
	assert.Empty(t, store.inserted)
	assert.Empty(t, risk.updated)
	assert.Empty(t, e.Active())

	// Persistence failure after placement also registers nothing.
	gateway.placeErr = nil
	gateway.ack = exchange.OrderAck{OrderID: "ord-1", Status: model.StatusPending}
	store.insertErr = assert.AnError
	_, err = e.ExecuteTrade(t.Context(), testSignal())
	require.Error(t, err)
	assert.Empty(t, risk.updated)
	assert.Empty(t, e.Active())
}

func TestReconcileAppliesTransitions(t *testing.T) {
	gateway := &fakeGateway{
		name: "binance",
		statuses: map[string]model.Status{
			"fill-me":   model.StatusFilled,
			"cancel-me": model.StatusCancelled,
		},
	}
	risk := &fakeRisk{allow: true}
	store := &fakePositionStore{open: []model.Position{
		{ID: "fill-me", Exchange: "binance", Symbol: "BTC-USD", Status: model.StatusPending},
		{ID: "cancel-me", Exchange: "binance", Symbol: "ETH-USD", Status: model.StatusPending},
	}}
	e := newTestExecutor(gateway, risk, store)
	require.NoError(t, e.Initialize(t.Context()))
	require.Len(t, e.Active(), 2)

	failed := e.reconcile(t.Context())
	assert.Zero(t, failed)

	active := e.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "fill-me", active[0].ID)
	assert.Equal(t, model.StatusFilled, active[0].Status)
	assert.Len(t, store.updated, 2)
	assert.Len(t, risk.synced, 2)
}

func TestReconcileIsolatesFailures(t *testing.T) {
	gateway := &fakeGateway{
		name: "binance",
		statuses: map[string]model.Status{
			"ok": model.StatusFilled,
		},
		statusErr: map[string]error{
			"broken": assert.AnError,
		},
	}
	risk := &fakeRisk{}
	store := &fakePositionStore{open: []model.Position{
		{ID: "ok", Exchange: "binance", Status: model.StatusPending},
		{ID: "broken", Exchange: "binance", Status: model.StatusPending},
	}}
	e := newTestExecutor(gateway, risk, store)
	require.NoError(t, e.Initialize(t.Context()))

	failed := e.reconcile(t.Context())
	assert.Equal(t, 1, failed)

	// The broken order stays tracked for the next cycle; the healthy one
	// still transitioned.
	byID := map[string]model.Position{}
	for _, p := range e.Active() {
		byID[p.ID] = p
	}
	assert.Equal(t, model.StatusFilled, byID["ok"].Status)
	assert.Equal(t, model.StatusPending, byID["broken"].Status)
}

func TestExecuteTradeRejectsDuplicateOrderID(t *testing.T) {
	gateway := &fakeGateway{
		name:    "binance",
		balance: 10000,
		ack:     exchange.OrderAck{OrderID: "ord-1", Status: model.StatusPending},
	}
	risk := &fakeRisk{allow: true, size: 0.1}
	store := &fakePositionStore{}
	e := newTestExecutor(gateway, risk, store)

	_, err := e.ExecuteTrade(t.Context(), testSignal())
	require.NoError(t, err)

	_, err = e.ExecuteTrade(t.Context(), testSignal())
	assert.ErrorIs(t, err, ErrDuplicateOrder)
	assert.Len(t, store.inserted, 1)
	assert.Len(t, e.Active(), 1)
}

func TestReconcileRetriesFailedPersists(t *testing.T) {
	gateway := &fakeGateway{
		name:     "binance",
		statuses: map[string]model.Status{"ord-1": model.StatusFilled},
	}
	risk := &fakeRisk{}
	store := &fakePositionStore{
		open:      []model.Position{{ID: "ord-1", Exchange: "binance", Status: model.StatusPending}},
		updateErr: assert.AnError,
	}
	e := newTestExecutor(gateway, risk, store)
	require.NoError(t, e.Initialize(t.Context()))

	failed := e.reconcile(t.Context())
	assert.Equal(t, 1, failed)

	// The failed write leaves the order untransitioned, so the next cycle
	// picks the transition up again instead of skipping it.
	active := e.Active()
	require.Len(t, active, 1)
	assert.Equal(t, model.StatusPending, active[0].Status)
	assert.Empty(t, store.updated)
	assert.Empty(t, risk.synced)

	store.updateErr = nil
	failed = e.reconcile(t.Context())
	assert.Zero(t, failed)

	active = e.Active()
	require.Len(t, active, 1)
	assert.Equal(t, model.StatusFilled, active[0].Status)
	require.Len(t, store.updated, 1)
	assert.Equal(t, model.StatusFilled, store.updated[0].Status)
	assert.Len(t, risk.synced, 1)
}

func TestClosePositionComputesPnL(t *testing.T) {
	gateway := &fakeGateway{name: "binance"}
	risk := &fakeRisk{}
	store := &fakePositionStore{open: []model.Position{
		{ID: "ord-1", Exchange: "binance", Symbol: "BTC-USD", Direction: model.DirectionLong,
			Size: 0.1, EntryPrice: 50000, Status: model.StatusFilled},
	}}
	e := newTestExecutor(gateway, risk, store)
	require.NoError(t, e.Initialize(t.Context()))

	closed, err := e.ClosePosition(t.Context(), "ord-1", 51000)
	require.NoError(t, err)

	assert.Equal(t, model.StatusClosed, closed.Status)
	require.NotNil(t, closed.PnL)
	assert.Equal(t, 100.0, *closed.PnL)
	require.NotNil(t, closed.ExitPrice)
	assert.Equal(t, 51000.0, *closed.ExitPrice)
	assert.NotNil(t, closed.ExitTime)

	assert.Empty(t, e.Active())
	require.Len(t, risk.synced, 1)
}

func TestClosePositionRejectsPending(t *testing.T) {
	gateway := &fakeGateway{name: "binance"}
	store := &fakePositionStore{open: []model.Position{
		{ID: "ord-1", Exchange: "binance", Status: model.StatusPending},
	}}
	e := newTestExecutor(gateway, &fakeRisk{}, store)
	require.NoError(t, e.Initialize(t.Context()))

	_, err := e.ClosePosition(t.Context(), "ord-1", 51000)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = e.ClosePosition(t.Context(), "missing", 51000)
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestInitializeFailsWhenStoreUnreachable(t *testing.T) {
	store := &fakePositionStore{openErr: assert.AnError}
	e := newTestExecutor(&fakeGateway{name: "binance"}, &fakeRisk{}, store)
	assert.Error(t, e.Initialize(t.Context()))
}

func TestStopIsIdempotent(t *testing.T) {
	e := newTestExecutor(&fakeGateway{name: "binance"}, &fakeRisk{}, &fakePositionStore{})

	done := make(chan struct{})
	go func() {
		e.ManageOpenPositions(context.Background())
		close(done)
	}()

	e.Stop()
	e.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reconciliation loop did not stop")
	}
}
