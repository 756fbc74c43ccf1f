package portfolio

import (
	"context"
	"time"

	"github.com/bobmcallan/marketdesk/internal/models"
)

// UpdatePortfolioValues fetches a quote per distinct symbol and recomputes
// every derived figure. Quotes are fetched before the write lock is taken.
// A failed quote leaves that position at its previous values; only a
// missing portfolio fails the call.
func (s *Service) UpdatePortfolioValues(ctx context.Context, portfolioID string) error {
	s.mu.RLock()
	p, err := s.lookup(portfolioID)
	var symbols []string
	if err == nil {
		symbols = p.Symbols()
	}
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	start := time.Now()
	quotes, failures := s.fetchQuotes(ctx, symbols)

	s.mu.Lock()
	defer s.mu.Unlock()

	// the portfolio may have been deleted while quotes were in flight
	p, err = s.lookup(portfolioID)
	if err != nil {
		return err
	}
	applyValuation(p, quotes, s.now())

	s.metrics.ObserveValuation(failures)
	s.logger.Debug().Str("portfolio_id", portfolioID).Int("symbols", len(symbols)).
		Int("failures", failures).Dur("elapsed", time.Since(start)).Msg("Portfolio revalued")

	return nil
}

// fetchQuotes asks the quote source for each symbol in turn. Failures are
// logged and counted, never returned.
func (s *Service) fetchQuotes(ctx context.Context, symbols []string) (map[string]*models.Quote, int) {
	quotes := make(map[string]*models.Quote, len(symbols))
	failures := 0
	for _, sym := range symbols {
		q, err := s.quotes.GetQuote(ctx, sym)
		if err != nil || q == nil {
			failures++
			s.logger.Warn().Str("symbol", sym).Err(err).Msg("Quote unavailable, keeping previous values")
			continue
		}
		quotes[sym] = q
	}
	return quotes, failures
}

// applyValuation recomputes position and portfolio figures from the quotes
// available. Positions without a quote keep their previous figures.
func applyValuation(p *models.Portfolio, quotes map[string]*models.Quote, now time.Time) {
	for _, pos := range p.Positions {
		q, ok := quotes[pos.Symbol]
		if !ok {
			continue
		}
		pos.CurrentPrice = q.Price
		pos.MarketValue = pos.Quantity * q.Price
		cost := pos.CostBasis()
		pos.UnrealizedPnL = pos.MarketValue - cost
		if cost != 0 {
			pos.UnrealizedPnLPct = pos.UnrealizedPnL / cost * 100
		} else {
			pos.UnrealizedPnLPct = 0
		}
		pos.DayChange = q.Change * pos.Quantity
		pos.DayChangePct = q.ChangePct
		pos.LastUpdated = now
	}

	recomputeTotals(p)
	p.UpdatedAt = now
}

// recomputeTotals derives portfolio totals and position weights wholesale
// from the current position figures and cash.
func recomputeTotals(p *models.Portfolio) {
	var marketValue, totalCost, dayChange float64
	for _, pos := range p.Positions {
		marketValue += pos.MarketValue
		totalCost += pos.CostBasis()
		dayChange += pos.DayChange
	}

	p.TotalValue = p.CashBalance + marketValue
	p.TotalReturn = p.TotalValue - totalCost - p.CashBalance
	if totalCost != 0 {
		p.TotalReturnPct = p.TotalReturn / totalCost * 100
	} else {
		p.TotalReturnPct = 0
	}

	p.DayChange = dayChange
	if prev := p.TotalValue - dayChange; prev > 0 {
		p.DayChangePct = dayChange / prev * 100
	} else {
		p.DayChangePct = 0
	}

	for _, pos := range p.Positions {
		if p.TotalValue > 0 {
			pos.Weight = pos.MarketValue / p.TotalValue * 100
		} else {
			pos.Weight = 0
		}
	}
}
