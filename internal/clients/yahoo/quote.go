package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bobmcallan/marketdesk/internal/models"
)

// quoteResult is one entry of the quote and screener payloads.
type quoteResult struct {
	Symbol                     string      `json:"symbol"`
	ShortName                  string      `json:"shortName"`
	LongName                   string      `json:"longName"`
	FullExchangeName           string      `json:"fullExchangeName"`
	Exchange                   string      `json:"exchange"`
	Currency                   string      `json:"currency"`
	MarketState                string      `json:"marketState"`
	RegularMarketPrice         flexFloat64 `json:"regularMarketPrice"`
	RegularMarketChange        flexFloat64 `json:"regularMarketChange"`
	RegularMarketChangePercent flexFloat64 `json:"regularMarketChangePercent"`
	RegularMarketVolume        flexFloat64 `json:"regularMarketVolume"`
	RegularMarketOpen          flexFloat64 `json:"regularMarketOpen"`
	RegularMarketDayHigh       flexFloat64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow        flexFloat64 `json:"regularMarketDayLow"`
	RegularMarketPreviousClose flexFloat64 `json:"regularMarketPreviousClose"`
	RegularMarketTime          int64       `json:"regularMarketTime"`
	MarketCap                  flexFloat64 `json:"marketCap"`
	AverageDailyVolume3Month   flexFloat64 `json:"averageDailyVolume3Month"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
		Error  *upstreamError `json:"error"`
	} `json:"quoteResponse"`
}

type upstreamError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (r quoteResult) toModel() *models.Quote {
	name := r.LongName
	if name == "" {
		name = r.ShortName
	}
	exchange := r.FullExchangeName
	if exchange == "" {
		exchange = r.Exchange
	}

	q := &models.Quote{
		Symbol:        r.Symbol,
		Name:          name,
		Exchange:      exchange,
		Currency:      r.Currency,
		Price:         float64(r.RegularMarketPrice),
		Change:        float64(r.RegularMarketChange),
		ChangePct:     float64(r.RegularMarketChangePercent),
		Volume:        int64(r.RegularMarketVolume),
		Open:          float64(r.RegularMarketOpen),
		High:          float64(r.RegularMarketDayHigh),
		Low:           float64(r.RegularMarketDayLow),
		PreviousClose: float64(r.RegularMarketPreviousClose),
		MarketCap:     int64(r.MarketCap),
		AverageVolume: int64(r.AverageDailyVolume3Month),
		MarketState:   r.MarketState,
	}
	// upstream does not always report an average; fall back to today's volume
	if q.AverageVolume == 0 {
		q.AverageVolume = q.Volume
	}
	if r.RegularMarketTime > 0 {
		q.Timestamp = time.Unix(r.RegularMarketTime, 0).UTC()
	} else {
		q.Timestamp = time.Now().UTC()
	}
	return q
}

// GetQuote retrieves the current quote for one symbol
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	quotes, err := c.GetQuotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	want := strings.ToUpper(strings.TrimSpace(symbol))
	for _, q := range quotes {
		if strings.EqualFold(q.Symbol, want) {
			return q, nil
		}
	}
	return nil, fmt.Errorf("%w: no quote for %s", models.ErrDataNotFound, symbol)
}

// GetQuotes retrieves quotes for several symbols in one call. Symbols the
// upstream does not know are absent from the result.
func (c *Client) GetQuotes(ctx context.Context, symbols []string) ([]*models.Quote, error) {
	clean := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			clean = append(clean, s)
		}
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("%w: no symbols requested", models.ErrValidation)
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(clean, ","))

	var resp quoteResponse
	if err := c.get(ctx, "quote", "/v7/finance/quote", params, &resp); err != nil {
		return nil, fmt.Errorf("get quotes %s: %w", strings.Join(clean, ","), err)
	}
	if e := resp.QuoteResponse.Error; e != nil && len(resp.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("%w: %s: %s", models.ErrFetch, e.Code, e.Description)
	}

	quotes := make([]*models.Quote, 0, len(resp.QuoteResponse.Result))
	for _, r := range resp.QuoteResponse.Result {
		if r.Symbol == "" {
			continue
		}
		quotes = append(quotes, r.toModel())
	}

	c.logger.Debug().Int("requested", len(clean)).Int("returned", len(quotes)).Msg("Fetched quotes")

	return quotes, nil
}
