package server

import (
	"context"
	"net/http"

	"github.com/bobmcallan/marketdesk/internal/common"
	"github.com/bobmcallan/marketdesk/internal/models"
	"github.com/bobmcallan/marketdesk/internal/services/portfolio"
)

type createPortfolioRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type tradeRequest struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

type cashRequest struct {
	Amount float64 `json:"amount"`
}

type alertRequest struct {
	Type        models.AlertType      `json:"alert_type"`
	Condition   models.AlertCondition `json:"condition"`
	TargetValue float64               `json:"target_value"`
}

func (s *Server) handlePortfolioList(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		portfolios, err := s.app.PortfolioService.ListPortfolios(r.Context())
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"portfolios": portfolios,
			"count":      len(portfolios),
		})
	case http.MethodPost:
		var req createPortfolioRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		id, err := s.app.PortfolioService.CreatePortfolio(r.Context(), req.Name, req.Description)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		common.LoggerFromContext(r.Context(), s.logger).Info().Str("portfolio_id", id).Str("name", req.Name).Msg("Portfolio created")
		s.writePortfolio(w, r, id, http.StatusCreated)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		s.writePortfolio(w, r, id, http.StatusOK)
	case http.MethodDelete:
		if err := s.app.PortfolioService.DeletePortfolio(r.Context(), id); err != nil {
			WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

// writePortfolio responds with a freshly valued snapshot of the portfolio.
func (s *Server) writePortfolio(w http.ResponseWriter, r *http.Request, id string, status int) {
	p, err := s.app.PortfolioService.GetPortfolio(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, status, p)
}

func (s *Server) handlePositionAdd(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req tradeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := s.app.PortfolioService.AddPosition(r.Context(), id, req.Symbol, req.Quantity, req.Price); err != nil {
		WriteServiceError(w, err)
		return
	}
	s.writePortfolio(w, r, id, http.StatusOK)
}

func (s *Server) handlePositionSell(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req tradeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := s.app.PortfolioService.SellPosition(r.Context(), id, req.Symbol, req.Quantity, req.Price); err != nil {
		WriteServiceError(w, err)
		return
	}
	s.writePortfolio(w, r, id, http.StatusOK)
}

func (s *Server) handleCashAdjust(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req cashRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := s.app.PortfolioService.AdjustCash(r.Context(), id, req.Amount); err != nil {
		WriteServiceError(w, err)
		return
	}
	s.writePortfolio(w, r, id, http.StatusOK)
}

func (s *Server) handlePortfolioRefresh(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	// GetPortfolio already revalues when refresh_on_get is set.
	if !s.app.Config.Portfolio.RefreshOnGet {
		if err := s.app.PortfolioService.UpdatePortfolioValues(context.WithoutCancel(r.Context()), id); err != nil {
			WriteServiceError(w, err)
			return
		}
	}
	s.writePortfolio(w, r, id, http.StatusOK)
}

func (s *Server) handlePortfolioChart(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	p, err := s.app.PortfolioService.GetPortfolio(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	img, err := portfolio.RenderAllocationChart(p)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WritePNG(w, img)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		alerts, err := s.app.PortfolioService.ListAlerts(r.Context(), id)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"alerts": alerts,
			"count":  len(alerts),
		})
	case http.MethodPost:
		var req alertRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		alert, err := s.app.PortfolioService.AddAlert(r.Context(), id, models.PortfolioAlert{
			Type:        req.Type,
			Condition:   req.Condition,
			TargetValue: req.TargetValue,
		})
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, alert)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleAlertDelete(w http.ResponseWriter, r *http.Request, id, alertID string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	if alertID == "" {
		WriteError(w, http.StatusBadRequest, "Alert ID required")
		return
	}
	if err := s.app.PortfolioService.DeleteAlert(r.Context(), id, alertID); err != nil {
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAlertsCheck(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	triggered, err := s.app.PortfolioService.CheckAlerts(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"triggered": triggered,
		"count":     len(triggered),
	})
}
