package app

import (
	"context"
	"time"

	"github.com/bobmcallan/marketdesk/internal/common"
	"github.com/bobmcallan/marketdesk/internal/interfaces"
)

// startRefreshScheduler revalues every portfolio and checks its alerts on a fixed interval.
func startRefreshScheduler(ctx context.Context, portfolioService interfaces.PortfolioService, logger *common.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Msg("Refresh scheduler: started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Refresh scheduler: stopped")
			return
		case <-ticker.C:
			refreshPortfolios(ctx, portfolioService, logger)
		}
	}
}

// refreshPortfolios runs one revaluation pass and returns how many alerts fired.
func refreshPortfolios(ctx context.Context, portfolioService interfaces.PortfolioService, logger *common.Logger) int {
	start := time.Now()

	portfolios, err := portfolioService.ListPortfolios(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Refresh: failed to list portfolios")
		return 0
	}
	if len(portfolios) == 0 {
		return 0
	}

	fired := 0
	for _, p := range portfolios {
		if ctx.Err() != nil {
			return fired
		}
		if err := portfolioService.UpdatePortfolioValues(ctx, p.ID); err != nil {
			// deleted since the list was taken
			logger.Debug().Err(err).Str("portfolio_id", p.ID).Msg("Refresh: skipped portfolio")
			continue
		}
		triggered, err := portfolioService.CheckAlerts(ctx, p.ID)
		if err != nil {
			continue
		}
		for _, a := range triggered {
			logger.Info().
				Str("portfolio", p.Name).
				Str("alert_id", a.ID).
				Str("kind", string(a.Type.Kind)).
				Float64("value", a.CurrentValue).
				Msg("Refresh: alert triggered")
		}
		fired += len(triggered)
	}

	logger.Info().
		Int("portfolios", len(portfolios)).
		Int("alerts_triggered", fired).
		Dur("elapsed", time.Since(start)).
		Msg("Refresh: complete")

	return fired
}
