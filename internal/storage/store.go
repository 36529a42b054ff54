package storage

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"tradecore/internal/model"
)

// Store is the persistence layer: candles, trade rows and risk snapshots.
type Store struct {
	db *gorm.DB
}

// New wraps a live database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the backing tables.
func (s *Store) Migrate() error {
	err := s.db.AutoMigrate(
		&MarketDataRecord{},
		&TradeRecord{},
		&RiskSnapshotRecord{},
	)
	if err != nil {
		return errors.Wrap(err, "migrate schema")
	}
	return nil
}

// AppendMarketData persists one normalized candle.
func (s *Store) AppendMarketData(ctx context.Context, point model.MarketDataPoint) error {
	record := marketDataRecord(point)
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return errors.Wrap(err, "append market data")
	}
	return nil
}

// InsertPosition writes a brand new trade row.
func (s *Store) InsertPosition(ctx context.Context, position model.Position) error {
	record := tradeRecord(position)
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return errors.Wrapf(err, "insert position %s", position.ID)
	}
	return nil
}

// UpdatePosition overwrites the stored row for a position. Missing rows are an
// error so reconciliation bugs surface instead of silently creating rows.
func (s *Store) UpdatePosition(ctx context.Context, position model.Position) error {
	record := tradeRecord(position)
	result := s.db.WithContext(ctx).Model(&TradeRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]any{
			"status":     record.Status,
			"size":       record.Size,
			"exit_time":  record.ExitTime,
			"exit_price": record.ExitPrice,
			"pnl":        record.PnL,
		})
	if result.Error != nil {
		return errors.Wrapf(result.Error, "update position %s", position.ID)
	}
	if result.RowsAffected == 0 {
		return errors.Errorf("update position %s: no such row", position.ID)
	}
	return nil
}

// OpenPositions returns rows that never exited and still carry one of the
// given statuses. No statuses means any non-exited row.
func (s *Store) OpenPositions(ctx context.Context, statuses ...model.Status) ([]model.Position, error) {
	query := s.db.WithContext(ctx).Where("exit_time IS NULL")
	if len(statuses) != 0 {
		raw := make([]string, 0, len(statuses))
		for _, status := range statuses {
			raw = append(raw, string(status))
		}
		query = query.Where("status IN ?", raw)
	}

	var records []TradeRecord
	if err := query.Order("entry_time ASC").Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "load open positions")
	}
	return positions(records), nil
}

// ClosedTradesSince returns trades that exited at or after the given time,
// oldest first. This is the realized-PnL series the drawdown window reads.
func (s *Store) ClosedTradesSince(ctx context.Context, since time.Time) ([]model.Position, error) {
	var records []TradeRecord
	err := s.db.WithContext(ctx).
		Where("status = ?", string(model.StatusClosed)).
		Where("exit_time IS NOT NULL AND exit_time >= ?", since).
		Order("exit_time ASC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "load closed trades")
	}
	return positions(records), nil
}

// TradesForSymbol returns every trade row for a symbol inside [from, to].
func (s *Store) TradesForSymbol(ctx context.Context, symbol string, from, to time.Time) ([]model.Position, error) {
	var records []TradeRecord
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Where("entry_time >= ? AND entry_time <= ?", from, to).
		Order("entry_time ASC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrapf(err, "load trades for %s", symbol)
	}
	return positions(records), nil
}

// TradesForStrategy returns every trade row attributed to a strategy.
func (s *Store) TradesForStrategy(ctx context.Context, strategyID string) ([]model.Position, error) {
	var records []TradeRecord
	err := s.db.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		Order("entry_time ASC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrapf(err, "load trades for strategy %s", strategyID)
	}
	return positions(records), nil
}

// SaveRiskSnapshot appends a computed risk snapshot.
func (s *Store) SaveRiskSnapshot(ctx context.Context, snapshot model.RiskSnapshot) error {
	record := riskSnapshotRecord(snapshot)
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return errors.Wrap(err, "save risk snapshot")
	}
	return nil
}

func positions(records []TradeRecord) []model.Position {
	out := make([]model.Position, 0, len(records))
	for _, record := range records {
		out = append(out, record.position())
	}
	return out
}
