package portfolio

import (
	"context"
	"fmt"
	"math"

	"github.com/bobmcallan/marketdesk/internal/models"
)

// AddAlert attaches a new pending alert to a portfolio. The id, creation
// time and evaluation state of the argument are ignored.
func (s *Service) AddAlert(ctx context.Context, portfolioID string, alert models.PortfolioAlert) (*models.PortfolioAlert, error) {
	if !alert.Type.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown alert type %q", models.ErrValidation, alert.Type.Kind)
	}
	if !alert.Condition.Valid() {
		return nil, fmt.Errorf("%w: unknown alert condition %q", models.ErrValidation, alert.Condition)
	}
	if math.IsNaN(alert.TargetValue) || math.IsInf(alert.TargetValue, 0) {
		return nil, fmt.Errorf("%w: target value must be finite", models.ErrValidation)
	}

	symbol := normalizeSymbol(alert.Type.Symbol)
	if alert.Type.Kind.NeedsSymbol() && symbol == "" {
		return nil, fmt.Errorf("%w: %s alerts need a symbol", models.ErrValidation, alert.Type.Kind)
	}
	if !alert.Type.Kind.NeedsSymbol() {
		symbol = ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.lookup(portfolioID)
	if err != nil {
		return nil, err
	}

	a := &models.PortfolioAlert{
		ID:          s.newID(),
		Type:        models.AlertType{Kind: alert.Type.Kind, Symbol: symbol},
		Condition:   alert.Condition,
		TargetValue: alert.TargetValue,
		CreatedAt:   s.now(),
	}
	p.Alerts = append(p.Alerts, a)

	s.logger.Info().Str("portfolio_id", portfolioID).Str("alert_id", a.ID).
		Str("kind", string(a.Type.Kind)).Str("condition", string(a.Condition)).Msg("Alert added")

	out := a.Clone()
	return &out, nil
}

// ListAlerts returns copies of a portfolio's alerts
func (s *Service) ListAlerts(ctx context.Context, portfolioID string) ([]models.PortfolioAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.lookup(portfolioID)
	if err != nil {
		return nil, err
	}
	out := make([]models.PortfolioAlert, 0, len(p.Alerts))
	for _, a := range p.Alerts {
		out = append(out, a.Clone())
	}
	return out, nil
}

// DeleteAlert removes one alert
func (s *Service) DeleteAlert(ctx context.Context, portfolioID, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.lookup(portfolioID)
	if err != nil {
		return err
	}
	for i, a := range p.Alerts {
		if a.ID == alertID {
			p.Alerts = append(p.Alerts[:i], p.Alerts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: alert %s", models.ErrDataNotFound, alertID)
}

// CheckAlerts evaluates every pending alert against the portfolio's current
// figures and returns copies of those that fired on this call. It does not
// refresh quotes.
func (s *Service) CheckAlerts(ctx context.Context, portfolioID string) ([]models.PortfolioAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.lookup(portfolioID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	triggered := []models.PortfolioAlert{}
	for _, a := range p.Alerts {
		if a.IsTriggered {
			continue
		}

		value, observed, fired := evaluateAlert(p, a)
		if !observed {
			continue
		}
		a.CurrentValue = value
		if !fired {
			continue
		}

		a.IsTriggered = true
		at := now
		a.TriggeredAt = &at
		triggered = append(triggered, a.Clone())

		s.metrics.ObserveAlertTriggered(string(a.Type.Kind))
		s.logger.Info().Str("portfolio_id", portfolioID).Str("alert_id", a.ID).
			Str("kind", string(a.Type.Kind)).Float64("value", value).Float64("target", a.TargetValue).Msg("Alert triggered")
	}

	return triggered, nil
}

// evaluateAlert resolves the metric an alert observes and whether its
// condition holds. observed is false when the metric cannot be resolved
// (a symbol-scoped alert with no matching position).
func evaluateAlert(p *models.Portfolio, a *models.PortfolioAlert) (value float64, observed, fired bool) {
	switch a.Type.Kind {
	case models.AlertKindPrice:
		pos := p.FindPosition(a.Type.Symbol)
		if pos == nil {
			return 0, false, false
		}
		value = pos.CurrentPrice
		if a.Condition == models.ConditionPercentChange {
			if pos.AverageCost == 0 {
				return value, true, false
			}
			change := (pos.CurrentPrice - pos.AverageCost) / pos.AverageCost * 100
			return value, true, math.Abs(change) >= a.TargetValue
		}
		return value, true, compare(a.Condition, value, a.TargetValue)

	case models.AlertKindPositionWeight:
		pos := p.FindPosition(a.Type.Symbol)
		if pos == nil {
			return 0, false, false
		}
		value = pos.Weight
		// percent change has no meaning for a weight; never fires
		if a.Condition == models.ConditionPercentChange {
			return value, true, false
		}
		return value, true, compare(a.Condition, value, a.TargetValue)

	case models.AlertKindPortfolioValue:
		value = p.TotalValue
	case models.AlertKindDayChange:
		value = p.DayChangePct
	case models.AlertKindTotalReturn:
		value = p.TotalReturnPct
	default:
		return 0, false, false
	}

	if a.Condition == models.ConditionPercentChange {
		return value, true, math.Abs(value) >= a.TargetValue
	}
	return value, true, compare(a.Condition, value, a.TargetValue)
}

func compare(cond models.AlertCondition, value, target float64) bool {
	switch cond {
	case models.ConditionAbove:
		return value >= target
	case models.ConditionBelow:
		return value <= target
	default:
		return false
	}
}
