package model

import "time"

// RiskLimits is static risk configuration, immutable after load and shared
// read-only across the risk manager.
type RiskLimits struct {
	MaxPositionSize    float64 `json:"maxPositionSize"`
	MaxDailyTrades     int     `json:"maxDailyTrades"`
	StopLossPercentage float64 `json:"stopLossPercentage"`
	MaxDrawdown        float64 `json:"maxDrawdown"`
	RiskPerTrade       float64 `json:"riskPerTrade"`
}

// RiskSnapshot is a cached view over recent closed trades and the current
// position set. It is derived state, recomputed after each trade update.
type RiskSnapshot struct {
	MaxDrawdown     float64   `json:"max_drawdown"`
	CurrentExposure float64   `json:"current_exposure"`
	ActivePositions int       `json:"active_positions"`
	ComputedAt      time.Time `json:"computed_at"`
}

// LimitStatus reports, per policy, whether the account is still within limits.
type LimitStatus struct {
	DailyTrades bool `json:"daily_trades_limit"`
	Drawdown    bool `json:"drawdown_limit"`
	Exposure    bool `json:"exposure_limit"`
}
