// Package models defines data structures for marketdesk
package models

import "time"

// Quote is a current market quote for one symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Exchange      string    `json:"exchange,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`         // absolute change from previous close
	ChangePct     float64   `json:"change_percent"` // percentage change from previous close
	Volume        int64     `json:"volume"`
	Open          float64   `json:"open,omitempty"`
	High          float64   `json:"high,omitempty"`
	Low           float64   `json:"low,omitempty"`
	PreviousClose float64   `json:"previous_close,omitempty"`
	MarketCap     int64     `json:"market_cap,omitempty"`
	AverageVolume int64     `json:"average_volume,omitempty"` // upstream 3-month average; falls back to Volume
	MarketState   string    `json:"market_state,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Candle is one OHLCV bar.
type Candle struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close,omitempty"`
	Volume   int64     `json:"volume"`
}

// PriceHistory holds candles for a symbol over a range.
type PriceHistory struct {
	Symbol   string   `json:"symbol"`
	Currency string   `json:"currency,omitempty"`
	Range    string   `json:"range"`
	Interval string   `json:"interval"`
	Candles  []Candle `json:"candles"`
}

// MarketBreadth summarises advancing versus declining issues. The upstream
// does not publish it, so every field is zero.
type MarketBreadth struct {
	Advancing int `json:"advancing"`
	Declining int `json:"declining"`
	Unchanged int `json:"unchanged"`
}

// MarketOverview holds the major index quotes.
type MarketOverview struct {
	Indices   []*Quote      `json:"indices"`
	Breadth   MarketBreadth `json:"breadth"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ScreenerResult is the output of a predefined upstream screener.
type ScreenerResult struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Total       int      `json:"total"`
	Quotes      []*Quote `json:"quotes"`
}

// TrendType classifies the moving average trend.
type TrendType string

const (
	TrendBullish TrendType = "bullish"
	TrendBearish TrendType = "bearish"
	TrendNeutral TrendType = "neutral"
)

// Technicals is an indicator summary computed from daily candles. Averages
// that need more candles than are available are zero.
type Technicals struct {
	Symbol        string    `json:"symbol"`
	AsOf          time.Time `json:"as_of"`
	Candles       int       `json:"candles"`
	Price         float64   `json:"price"`
	SMA20         float64   `json:"sma_20"`
	SMA50         float64   `json:"sma_50"`
	SMA200        float64   `json:"sma_200"`
	EMA12         float64   `json:"ema_12"`
	EMA26         float64   `json:"ema_26"`
	RSI14         float64   `json:"rsi_14"`
	RSISignal     string    `json:"rsi_signal"` // overbought, oversold or neutral
	MACD          float64   `json:"macd"`
	MACDSignal    float64   `json:"macd_signal"`
	MACDHistogram float64   `json:"macd_histogram"`
	ATR14         float64   `json:"atr_14"`
	High52Week    float64   `json:"high_52_week"`
	Low52Week     float64   `json:"low_52_week"`
	VolumeRatio   float64   `json:"volume_ratio"`
	VolumeSignal  string    `json:"volume_signal"` // spike, low or normal
	Crossover     string    `json:"crossover"`     // golden_cross, death_cross or none (SMA20 vs SMA50)
	Trend         TrendType `json:"trend"`
}
