package storage

import (
	"time"

	"tradecore/internal/model"
)

// MarketDataRecord is one normalized candle persisted for replay and research.
type MarketDataRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Exchange  string    `gorm:"size:32;index:idx_market_data_source"`
	Symbol    string    `gorm:"size:32;index:idx_market_data_source"`
	Timestamp time.Time `gorm:"index"`
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CreatedAt time.Time
}

// TableName implements the gorm table naming interface.
func (MarketDataRecord) TableName() string { return "market_data" }

// TradeRecord is the durable row backing one position through its lifecycle.
type TradeRecord struct {
	ID         string `gorm:"primaryKey;size:64"`
	Exchange   string `gorm:"size:32"`
	Symbol     string `gorm:"size:32;index"`
	Direction  string `gorm:"size:8"`
	Size       float64
	EntryPrice float64
	Status     string `gorm:"size:16;index"`
	StrategyID string `gorm:"size:64;index"`
	EntryTime  time.Time
	ExitTime   *time.Time `gorm:"index"`
	ExitPrice  *float64
	PnL        *float64 `gorm:"column:pnl"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName implements the gorm table naming interface.
func (TradeRecord) TableName() string { return "trades" }

// RiskSnapshotRecord is one persisted risk snapshot, kept for drawdown audits.
type RiskSnapshotRecord struct {
	ID              uint `gorm:"primaryKey"`
	MaxDrawdown     float64
	CurrentExposure float64
	ActivePositions int
	ComputedAt      time.Time `gorm:"index"`
	CreatedAt       time.Time
}

// TableName implements the gorm table naming interface.
func (RiskSnapshotRecord) TableName() string { return "risk_snapshots" }

func marketDataRecord(point model.MarketDataPoint) MarketDataRecord {
	return MarketDataRecord{
		Exchange:  point.Exchange,
		Symbol:    point.Symbol,
		Timestamp: point.Timestamp,
		Open:      point.Open,
		High:      point.High,
		Low:       point.Low,
		Close:     point.Close,
		Volume:    point.Volume,
	}
}

func tradeRecord(position model.Position) TradeRecord {
	return TradeRecord{
		ID:         position.ID,
		Exchange:   position.Exchange,
		Symbol:     position.Symbol,
		Direction:  string(position.Direction),
		Size:       position.Size,
		EntryPrice: position.EntryPrice,
		Status:     string(position.Status),
		StrategyID: position.StrategyID,
		EntryTime:  position.EntryTime,
		ExitTime:   position.ExitTime,
		ExitPrice:  position.ExitPrice,
		PnL:        position.PnL,
	}
}

func (r TradeRecord) position() model.Position {
	return model.Position{
		ID:         r.ID,
		Exchange:   r.Exchange,
		Symbol:     r.Symbol,
		Direction:  model.Direction(r.Direction),
		Size:       r.Size,
		EntryPrice: r.EntryPrice,
		Status:     model.Status(r.Status),
		StrategyID: r.StrategyID,
		EntryTime:  r.EntryTime,
		ExitTime:   r.ExitTime,
		ExitPrice:  r.ExitPrice,
		PnL:        r.PnL,
	}
}

func riskSnapshotRecord(snapshot model.RiskSnapshot) RiskSnapshotRecord {
	return RiskSnapshotRecord{
		MaxDrawdown:     snapshot.MaxDrawdown,
		CurrentExposure: snapshot.CurrentExposure,
		ActivePositions: snapshot.ActivePositions,
		ComputedAt:      snapshot.ComputedAt,
	}
}
