// Package app wires configuration, clients and services into one value
// shared by the HTTP server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/marketdesk/internal/clients/yahoo"
	"github.com/bobmcallan/marketdesk/internal/common"
	"github.com/bobmcallan/marketdesk/internal/interfaces"
	"github.com/bobmcallan/marketdesk/internal/metrics"
	"github.com/bobmcallan/marketdesk/internal/services/market"
	"github.com/bobmcallan/marketdesk/internal/services/portfolio"
)

// App holds all initialized services and clients.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Metrics          *metrics.Registry
	MarketClient     interfaces.MarketDataClient
	MarketService    interfaces.MarketService
	PortfolioService interfaces.PortfolioService
	StartupTime      time.Time

	schedulerCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp loads configuration and initializes all services.
// configPath may be empty, in which case MARKETDESK_CONFIG, then
// marketdesk.toml beside the binary, then config/marketdesk.toml are tried.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("MARKETDESK_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "marketdesk.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/marketdesk.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)
	registry := metrics.NewRegistry()

	yc := config.Clients.Yahoo
	client := yahoo.NewClient(
		yahoo.WithBaseURL(yc.BaseURL),
		yahoo.WithQuery2URL(yc.Query2URL),
		yahoo.WithCookieURL(yc.CookieURL),
		yahoo.WithPageURL(yc.PageURL),
		yahoo.WithUserAgent(yc.UserAgent),
		yahoo.WithTimeout(yc.GetTimeout()),
		yahoo.WithThrottle(yc.GetMinInterval(), yc.MaxCallsPerWindow, yc.GetWindow()),
		yahoo.WithCrumbTTL(yc.GetCrumbTTL()),
		yahoo.WithBreaker(yc.BreakerFailures, 0),
		yahoo.WithLogger(logger),
		yahoo.WithMetrics(registry),
	)

	a := New(config, logger, registry, client)
	a.StartupTime = startupStart

	logger.Info().Str("upstream", yc.BaseURL).Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// New builds an App around an existing market data client.
func New(config *common.Config, logger *common.Logger, registry *metrics.Registry, client interfaces.MarketDataClient) *App {
	portfolioService := portfolio.NewService(client, logger)
	portfolioService.SetMetrics(registry)
	portfolioService.SetRefreshOnGet(config.Portfolio.RefreshOnGet)

	return &App{
		Config:           config,
		Logger:           logger,
		Metrics:          registry,
		MarketClient:     client,
		MarketService:    market.NewService(client, logger),
		PortfolioService: portfolioService,
		StartupTime:      time.Now(),
	}
}

// StartRefreshScheduler launches background revaluation when an interval is configured.
func (a *App) StartRefreshScheduler() {
	interval := a.Config.Portfolio.GetRefreshInterval()
	if interval <= 0 {
		a.Logger.Info().Msg("Refresh scheduler: disabled")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.schedulerCancel = cancel
	go startRefreshScheduler(ctx, a.PortfolioService, a.Logger, interval)
}

// Close stops background work.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
}
