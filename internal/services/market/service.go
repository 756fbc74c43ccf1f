// Package market provides market data services
package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/marketdesk/internal/common"
	"github.com/bobmcallan/marketdesk/internal/interfaces"
	"github.com/bobmcallan/marketdesk/internal/models"
)

// MajorIndices are the index symbols summarised by GetMarketOverview, in display order.
var MajorIndices = []string{"^GSPC", "^DJI", "^IXIC", "^RUT", "^VIX"}

// ValidRanges lists the history ranges the upstream chart endpoint accepts.
var ValidRanges = []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}

// ValidIntervals lists the accepted candle intervals.
var ValidIntervals = []string{"1m", "5m", "15m", "30m", "1h", "1d", "1wk", "1mo"}

// Screeners lists the predefined upstream screeners.
var Screeners = []string{"day_gainers", "day_losers", "most_actives"}

const (
	DefaultRange         = "1mo"
	DefaultInterval      = "1d"
	DefaultScreenerCount = 25
	MaxScreenerCount     = 100
)

// Service implements MarketService
type Service struct {
	client interfaces.MarketDataClient
	logger *common.Logger
	now    func() time.Time
}

var _ interfaces.MarketService = (*Service)(nil)

// NewService creates a new market service
func NewService(client interfaces.MarketDataClient, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// GetQuote returns the current quote for symbol
func (s *Service) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", models.ErrValidation)
	}
	return s.client.GetQuote(ctx, symbol)
}

// GetQuotes returns quotes for the distinct symbols requested, in request
// order. Symbols the upstream does not know are omitted.
func (s *Service) GetQuotes(ctx context.Context, symbols []string) ([]*models.Quote, error) {
	seen := make(map[string]bool, len(symbols))
	clean := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = normalizeSymbol(sym)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		clean = append(clean, sym)
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol is required", models.ErrValidation)
	}

	quotes, err := s.client.GetQuotes(ctx, clean)
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string]*models.Quote, len(quotes))
	for _, q := range quotes {
		bySymbol[strings.ToUpper(q.Symbol)] = q
	}

	ordered := make([]*models.Quote, 0, len(clean))
	for _, sym := range clean {
		q, ok := bySymbol[sym]
		if !ok {
			s.logger.Debug().Str("symbol", sym).Msg("No quote returned for symbol")
			continue
		}
		ordered = append(ordered, q)
	}
	return ordered, nil
}

// GetHistory returns candles for symbol. Empty range and interval default to 1mo/1d.
func (s *Service) GetHistory(ctx context.Context, symbol, rangeParam, interval string) (*models.PriceHistory, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", models.ErrValidation)
	}
	if rangeParam == "" {
		rangeParam = DefaultRange
	}
	if interval == "" {
		interval = DefaultInterval
	}
	if !contains(ValidRanges, rangeParam) {
		return nil, fmt.Errorf("%w: invalid range %q (valid: %s)", models.ErrValidation, rangeParam, strings.Join(ValidRanges, ", "))
	}
	if !contains(ValidIntervals, interval) {
		return nil, fmt.Errorf("%w: invalid interval %q (valid: %s)", models.ErrValidation, interval, strings.Join(ValidIntervals, ", "))
	}

	return s.client.GetChart(ctx, symbol, rangeParam, interval)
}

// GetMarketOverview returns quotes for the major indices. Breadth is not
// computed and is always zero.
func (s *Service) GetMarketOverview(ctx context.Context) (*models.MarketOverview, error) {
	indices, err := s.GetQuotes(ctx, MajorIndices)
	if err != nil {
		return nil, fmt.Errorf("market overview: %w", err)
	}

	return &models.MarketOverview{
		Indices:   indices,
		Breadth:   models.MarketBreadth{},
		UpdatedAt: s.now().UTC(),
	}, nil
}

// GetScreener runs a predefined screener. count is clamped to 1..100; zero
// selects the default.
func (s *Service) GetScreener(ctx context.Context, screenerID string, count int) (*models.ScreenerResult, error) {
	screenerID = strings.ToLower(strings.TrimSpace(screenerID))
	if !contains(Screeners, screenerID) {
		return nil, fmt.Errorf("%w: unknown screener %q (valid: %s)", models.ErrValidation, screenerID, strings.Join(Screeners, ", "))
	}

	switch {
	case count == 0:
		count = DefaultScreenerCount
	case count < 1:
		count = 1
	case count > MaxScreenerCount:
		count = MaxScreenerCount
	}

	return s.client.GetScreener(ctx, screenerID, count)
}

// ClearCrumb invalidates the upstream client's cached crumb
func (s *Service) ClearCrumb() {
	s.client.ClearCrumb()
}
