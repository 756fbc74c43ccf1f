package interfaces

import (
	"context"

	"github.com/bobmcallan/marketdesk/internal/models"
)

// MarketService aggregates upstream market data
type MarketService interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	GetQuotes(ctx context.Context, symbols []string) ([]*models.Quote, error)
	GetHistory(ctx context.Context, symbol, rangeParam, interval string) (*models.PriceHistory, error)
	GetMarketOverview(ctx context.Context) (*models.MarketOverview, error)
	GetScreener(ctx context.Context, screenerID string, count int) (*models.ScreenerResult, error)
	GetTechnicals(ctx context.Context, symbol string) (*models.Technicals, error)
	ClearCrumb()
}

// PortfolioService owns the in-memory portfolio collection
type PortfolioService interface {
	CreatePortfolio(ctx context.Context, name, description string) (string, error)
	DeletePortfolio(ctx context.Context, portfolioID string) error
	AddPosition(ctx context.Context, portfolioID, symbol string, quantity, price float64) error
	SellPosition(ctx context.Context, portfolioID, symbol string, quantity, price float64) error
	AdjustCash(ctx context.Context, portfolioID string, amount float64) error

	// GetPortfolio refreshes valuations before returning a snapshot
	GetPortfolio(ctx context.Context, portfolioID string) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]*models.Portfolio, error)
	UpdatePortfolioValues(ctx context.Context, portfolioID string) error

	AddAlert(ctx context.Context, portfolioID string, alert models.PortfolioAlert) (*models.PortfolioAlert, error)
	ListAlerts(ctx context.Context, portfolioID string) ([]models.PortfolioAlert, error)
	DeleteAlert(ctx context.Context, portfolioID, alertID string) error
	CheckAlerts(ctx context.Context, portfolioID string) ([]models.PortfolioAlert, error)
}
