package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

var (
	ErrUnknownDirection = errors.New("unknown trade direction")
	ErrInvalidEntry     = errors.New("entry price must be positive")
	ErrStopLossSide     = errors.New("stop loss on wrong side of entry")
	ErrTakeProfitSide   = errors.New("take profit on wrong side of entry")
)

// Direction is the side of a trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Valid reports whether the direction is a known value.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Status tracks the lifecycle of an order and its position.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFilled    Status = "filled"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	switch s {
	case StatusClosed, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// StatusFromExchange maps exchange-native order states onto the canonical set.
func StatusFromExchange(raw string) Status {
	switch strings.ToUpper(raw) {
	case "NEW", "PARTIALLY_FILLED", "OPEN", "PENDING", "UNTRIGGERED":
		return StatusPending
	case "FILLED":
		return StatusFilled
	case "CANCELED", "CANCELLED", "EXPIRED":
		return StatusCancelled
	case "REJECTED":
		return StatusRejected
	case "CLOSED":
		return StatusClosed
	default:
		return StatusPending
	}
}

// TradeSignal is the strategy collaborator's request to open a trade.
type TradeSignal struct {
	Exchange   string    `json:"exchange"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Size       float64   `json:"position_size,omitempty"`
	StrategyID string    `json:"strategy_id,omitempty"`
	Timeframe  string    `json:"timeframe,omitempty"`
}

// Validate checks that the signal is internally consistent: entry must be
// positive and stop/target must sit on the correct side of entry for the
// direction.
func (s TradeSignal) Validate() error {
	if !s.Direction.Valid() {
		return ErrUnknownDirection
	}
	if s.EntryPrice <= 0 {
		return ErrInvalidEntry
	}
	switch s.Direction {
	case DirectionLong:
		if s.StopLoss >= s.EntryPrice {
			return ErrStopLossSide
		}
		if s.TakeProfit <= s.EntryPrice {
			return ErrTakeProfitSide
		}
	case DirectionShort:
		if s.StopLoss <= s.EntryPrice {
			return ErrStopLossSide
		}
		if s.TakeProfit >= s.EntryPrice {
			return ErrTakeProfitSide
		}
	}
	return nil
}

// Notional is the quote-currency value this signal would add to exposure.
// Signals without a requested size contribute nothing until sized.
func (s TradeSignal) Notional() float64 {
	if s.Size <= 0 {
		return 0
	}
	return s.Size * s.EntryPrice
}

// Position is a live or historical trade tracked by the lifecycle manager.
type Position struct {
	ID         string     `json:"id"`
	Exchange   string     `json:"exchange"`
	Symbol     string     `json:"symbol"`
	Direction  Direction  `json:"direction"`
	Size       float64    `json:"size"`
	EntryPrice float64    `json:"entry_price"`
	Status     Status     `json:"status"`
	StrategyID string     `json:"strategy_id,omitempty"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	PnL        *float64   `json:"pnl,omitempty"`
}

// Notional is size times entry price.
func (p Position) Notional() float64 {
	return p.Size * p.EntryPrice
}

// Open reports whether the position still contributes to exposure.
func (p Position) Open() bool {
	return p.ExitTime == nil && (p.Status == StatusFilled || p.Status == StatusPending)
}

// PnL computes realized profit for a closed trade. The sign convention is
// direction-dependent: long profits when exit > entry, short when exit < entry.
func PnL(direction Direction, entry, exit, quantity float64) float64 {
	e := decimal.NewFromFloat(entry)
	x := decimal.NewFromFloat(exit)
	q := decimal.NewFromFloat(quantity)

	diff := x.Sub(e)
	if direction == DirectionShort {
		diff = e.Sub(x)
	}
	pnl, _ := diff.Mul(q).Float64()
	return pnl
}
