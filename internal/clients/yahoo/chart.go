package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bobmcallan/marketdesk/internal/models"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult  `json:"result"`
		Error  *upstreamError `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Currency string `json:"currency"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

func at(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

// GetChart retrieves historical candles. Intervals with no close are skipped.
func (c *Client) GetChart(ctx context.Context, symbol, rangeParam, interval string) (*models.PriceHistory, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", models.ErrValidation)
	}

	params := url.Values{}
	params.Set("range", rangeParam)
	params.Set("interval", interval)
	params.Set("includeAdjustedClose", "true")

	var resp chartResponse
	path := "/v8/finance/chart/" + url.PathEscape(symbol)
	if err := c.get(ctx, "chart", path, params, &resp); err != nil {
		return nil, fmt.Errorf("get chart %s: %w", symbol, err)
	}

	if len(resp.Chart.Result) == 0 {
		if e := resp.Chart.Error; e != nil {
			return nil, fmt.Errorf("%w: %s: %s", models.ErrDataNotFound, e.Code, e.Description)
		}
		return nil, fmt.Errorf("%w: no chart for %s", models.ErrDataNotFound, symbol)
	}

	r := resp.Chart.Result[0]
	history := &models.PriceHistory{
		Symbol:   symbol,
		Currency: r.Meta.Currency,
		Range:    rangeParam,
		Interval: interval,
	}
	if len(r.Indicators.Quote) == 0 {
		return history, nil
	}

	q := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	history.Candles = make([]models.Candle, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		candle := models.Candle{
			Date:     time.Unix(ts, 0).UTC(),
			Open:     at(q.Open, i),
			High:     at(q.High, i),
			Low:      at(q.Low, i),
			Close:    *q.Close[i],
			AdjClose: at(adj, i),
			Volume:   int64(at(q.Volume, i)),
		}
		if candle.AdjClose == 0 {
			candle.AdjClose = candle.Close
		}
		history.Candles = append(history.Candles, candle)
	}

	c.logger.Debug().Str("symbol", symbol).Str("range", rangeParam).Int("candles", len(history.Candles)).Msg("Fetched chart")

	return history, nil
}
