package model

import "time"

// MarketDataPoint is one normalized candle from an exchange stream.
// Points are immutable facts; later points supersede earlier ones but
// never replace them.
type MarketDataPoint struct {
	Exchange  string    `json:"exchange"`
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// MarketUpdate is the envelope published on the market-updates topic.
type MarketUpdate struct {
	Exchange    string          `json:"exchange"`
	TradingPair string          `json:"trading_pair"`
	Data        MarketDataPoint `json:"data"`
}
