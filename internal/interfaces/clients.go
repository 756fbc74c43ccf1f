// Package interfaces defines service contracts for marketdesk
package interfaces

import (
	"context"

	"github.com/bobmcallan/marketdesk/internal/models"
)

// QuoteSource returns a current quote for a symbol. Errors wrap one of
// models.ErrNetwork, ErrFetch, ErrParse, ErrDataNotFound,
// ErrAuthenticationFailed or ErrRateLimited.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// MarketDataClient provides access to the upstream market data provider
type MarketDataClient interface {
	QuoteSource

	// GetQuotes retrieves quotes for several symbols in one upstream call
	GetQuotes(ctx context.Context, symbols []string) ([]*models.Quote, error)

	// GetChart retrieves historical candles
	GetChart(ctx context.Context, symbol, rangeParam, interval string) (*models.PriceHistory, error)

	// GetScreener runs a predefined upstream screener
	GetScreener(ctx context.Context, screenerID string, count int) (*models.ScreenerResult, error)

	// ClearCrumb invalidates the cached authorization crumb
	ClearCrumb()
}
