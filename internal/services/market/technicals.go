package market

import (
	"context"
	"fmt"
	"math"

	"github.com/bobmcallan/marketdesk/internal/models"
)

const (
	technicalsRange = "1y"
	tradingYear     = 252
)

// GetTechnicals computes an indicator summary from a year of daily candles.
func (s *Service) GetTechnicals(ctx context.Context, symbol string) (*models.Technicals, error) {
	history, err := s.GetHistory(ctx, symbol, technicalsRange, "1d")
	if err != nil {
		return nil, err
	}
	t, err := ComputeTechnicals(history)
	if err != nil {
		return nil, fmt.Errorf("technicals %s: %w", history.Symbol, err)
	}
	return t, nil
}

// ComputeTechnicals summarises candles ordered oldest first.
func ComputeTechnicals(history *models.PriceHistory) (*models.Technicals, error) {
	if history == nil || len(history.Candles) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 candles", models.ErrDataNotFound)
	}
	candles := history.Candles
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	last := candles[len(candles)-1]

	t := &models.Technicals{
		Symbol:  history.Symbol,
		AsOf:    last.Date,
		Candles: len(candles),
		Price:   last.Close,
		SMA20:   sma(closes, 20),
		SMA50:   sma(closes, 50),
		SMA200:  sma(closes, 200),
		EMA12:   lastOf(emaSeries(closes, 12)),
		EMA26:   lastOf(emaSeries(closes, 26)),
		RSI14:   rsi(closes, 14),
		ATR14:   atr(candles, 14),
	}
	t.RSISignal = classifyRSI(t.RSI14)
	t.MACD, t.MACDSignal, t.MACDHistogram = macd(closes, 12, 26, 9)
	t.High52Week, t.Low52Week = yearRange(candles)
	t.VolumeRatio = volumeRatio(candles, 20)
	t.VolumeSignal = classifyVolume(t.VolumeRatio)
	t.Crossover = crossover(closes, 20, 50)
	t.Trend = trend(t.Price, t.SMA20, t.SMA50, t.SMA200)
	return t, nil
}

// sma averages the last period values.
func sma(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// emaSeries returns the EMA from index period-1 onwards, seeded with the
// simple average of the first period values.
func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	e := sma(values[:period], period)
	out := make([]float64, 0, len(values)-period+1)
	out = append(out, e)
	for _, v := range values[period:] {
		e = (v-e)*k + e
		out = append(out, e)
	}
	return out
}

func lastOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

// macd returns the MACD line, its signal EMA and the histogram.
func macd(values []float64, fast, slow, signal int) (float64, float64, float64) {
	fastEMA := emaSeries(values, fast)
	slowEMA := emaSeries(values, slow)
	if slowEMA == nil {
		return 0, 0, 0
	}
	// fastEMA starts slow-fast samples earlier than slowEMA
	offset := slow - fast
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset] - slowEMA[i]
	}
	m := lastOf(line)
	sig := lastOf(emaSeries(line, signal))
	if len(line) < signal {
		sig = m
	}
	return m, sig, m - sig
}

// rsi uses simple averages of the last period close-to-close moves.
func rsi(values []float64, period int) float64 {
	if len(values) < period+1 {
		return 50
	}
	var gains, losses float64
	window := values[len(values)-period-1:]
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if gains == 0 && losses == 0 {
		return 50
	}
	if losses == 0 {
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}

func atr(candles []models.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}
	window := candles[len(candles)-period-1:]
	sum := 0.0
	for i := 1; i < len(window); i++ {
		c, prevClose := window[i], window[i-1].Close
		tr := math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
		sum += tr
	}
	return sum / float64(period)
}

// yearRange returns the highest high and lowest low over the last trading year.
func yearRange(candles []models.Candle) (float64, float64) {
	if len(candles) > tradingYear {
		candles = candles[len(candles)-tradingYear:]
	}
	high, low := candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}
	return high, low
}

// volumeRatio compares the latest volume with the recent average.
func volumeRatio(candles []models.Candle, period int) float64 {
	if len(candles) < period {
		period = len(candles)
	}
	var sum int64
	for _, c := range candles[len(candles)-period:] {
		sum += c.Volume
	}
	if sum == 0 {
		return 1
	}
	avg := float64(sum) / float64(period)
	return float64(candles[len(candles)-1].Volume) / avg
}

// crossover reports whether the short SMA crossed the long SMA on the last candle.
func crossover(values []float64, short, long int) string {
	if len(values) < long+1 {
		return "none"
	}
	prev := values[:len(values)-1]
	prevShort, prevLong := sma(prev, short), sma(prev, long)
	curShort, curLong := sma(values, short), sma(values, long)
	switch {
	case prevShort <= prevLong && curShort > curLong:
		return "golden_cross"
	case prevShort >= prevLong && curShort < curLong:
		return "death_cross"
	}
	return "none"
}

func classifyRSI(v float64) string {
	switch {
	case v >= 70:
		return "overbought"
	case v <= 30:
		return "oversold"
	}
	return "neutral"
}

func classifyVolume(ratio float64) string {
	switch {
	case ratio >= 2:
		return "spike"
	case ratio <= 0.5:
		return "low"
	}
	return "normal"
}

// trend is bullish above the 200-day average with SMA20 over SMA50, bearish
// for the mirror case and neutral otherwise or when history is short.
func trend(price, sma20, sma50, sma200 float64) models.TrendType {
	if sma50 == 0 || sma200 == 0 {
		return models.TrendNeutral
	}
	if price > sma200 && sma20 > sma50 {
		return models.TrendBullish
	}
	if price < sma200 && sma20 < sma50 {
		return models.TrendBearish
	}
	return models.TrendNeutral
}
