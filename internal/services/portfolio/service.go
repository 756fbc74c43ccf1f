// Package portfolio provides the in-memory portfolio store, valuation and
// alert evaluation.
package portfolio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/marketdesk/internal/common"
	"github.com/bobmcallan/marketdesk/internal/interfaces"
	"github.com/bobmcallan/marketdesk/internal/metrics"
	"github.com/bobmcallan/marketdesk/internal/models"
)

// Service implements PortfolioService. All portfolios live behind one
// reader/writer lock; quote fetching never happens while it is held.
type Service struct {
	mu         sync.RWMutex
	portfolios map[string]*models.Portfolio
	order      []string

	quotes       interfaces.QuoteSource
	logger       *common.Logger
	metrics      *metrics.Registry
	refreshOnGet bool
	now          func() time.Time // injectable clock for testing
	newID        func() string
}

var _ interfaces.PortfolioService = (*Service)(nil)

// NewService creates a new portfolio service
func NewService(quotes interfaces.QuoteSource, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		portfolios:   make(map[string]*models.Portfolio),
		quotes:       quotes,
		logger:       logger,
		refreshOnGet: true,
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
}

// SetMetrics attaches a metrics registry.
func (s *Service) SetMetrics(m *metrics.Registry) {
	s.metrics = m
}

// SetRefreshOnGet controls whether GetPortfolio revalues before returning.
func (s *Service) SetRefreshOnGet(refresh bool) {
	s.refreshOnGet = refresh
}

func notFound(portfolioID string) error {
	return fmt.Errorf("%w: portfolio %s", models.ErrDataNotFound, portfolioID)
}

// lookup returns the stored portfolio. Callers must hold s.mu.
func (s *Service) lookup(portfolioID string) (*models.Portfolio, error) {
	p, ok := s.portfolios[portfolioID]
	if !ok {
		return nil, notFound(portfolioID)
	}
	return p, nil
}

// CreatePortfolio creates an empty portfolio and returns its id
func (s *Service) CreatePortfolio(ctx context.Context, name, description string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: portfolio name is required", models.ErrValidation)
	}

	now := s.now()
	p := &models.Portfolio{
		ID:          s.newID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
		Positions:   []*models.Position{},
		Alerts:      []*models.PortfolioAlert{},
	}

	s.mu.Lock()
	s.portfolios[p.ID] = p
	s.order = append(s.order, p.ID)
	s.mu.Unlock()

	s.logger.Info().Str("portfolio_id", p.ID).Str("name", name).Msg("Portfolio created")
	return p.ID, nil
}

// DeletePortfolio removes a portfolio and everything it owns
func (s *Service) DeletePortfolio(ctx context.Context, portfolioID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(portfolioID); err != nil {
		return err
	}
	delete(s.portfolios, portfolioID)
	for i, id := range s.order {
		if id == portfolioID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	s.logger.Info().Str("portfolio_id", portfolioID).Msg("Portfolio deleted")
	return nil
}

// GetPortfolio revalues the portfolio (unless disabled) and returns a snapshot.
// A missing id fails with ErrDataNotFound and creates nothing. The
// revaluation runs to completion even if ctx is cancelled.
func (s *Service) GetPortfolio(ctx context.Context, portfolioID string) (*models.Portfolio, error) {
	if s.refreshOnGet {
		if err := s.UpdatePortfolioValues(context.WithoutCancel(ctx), portfolioID); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.lookup(portfolioID)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// ListPortfolios returns snapshots of every portfolio in creation order
func (s *Service) ListPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Portfolio, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.portfolios[id].Clone())
	}
	return out, nil
}
