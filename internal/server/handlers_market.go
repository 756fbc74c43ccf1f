package server

import (
	"net/http"
	"strconv"

	"github.com/bobmcallan/marketdesk/internal/common"
	"github.com/bobmcallan/marketdesk/internal/services/market"
)

func (s *Server) handleMarketQuote(w http.ResponseWriter, r *http.Request, symbol string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	quote, err := s.app.MarketService.GetQuote(r.Context(), symbol)
	if err != nil {
		common.LoggerFromContext(r.Context(), s.logger).Warn().Str("symbol", symbol).Err(err).Msg("Quote lookup failed")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, quote)
}

func (s *Server) handleMarketQuotes(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	symbols := splitCSV(r.URL.Query().Get("symbols"))
	quotes, err := s.app.MarketService.GetQuotes(r.Context(), symbols)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"quotes": quotes,
		"count":  len(quotes),
	})
}

func (s *Server) handleMarketHistory(w http.ResponseWriter, r *http.Request, symbol string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	format := q.Get("format")
	if format != "" && format != "json" && format != "png" {
		WriteErrorWithCode(w, http.StatusBadRequest, "format must be json or png", "validation_error")
		return
	}

	history, err := s.app.MarketService.GetHistory(r.Context(), symbol, q.Get("range"), q.Get("interval"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	if format == "png" {
		img, err := market.RenderHistoryChart(history)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WritePNG(w, img)
		return
	}
	WriteJSON(w, http.StatusOK, history)
}

func (s *Server) handleMarketOverview(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	overview, err := s.app.MarketService.GetMarketOverview(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, overview)
}

func (s *Server) handleMarketScreener(w http.ResponseWriter, r *http.Request, screenerID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	count := 0
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteErrorWithCode(w, http.StatusBadRequest, "count must be an integer", "validation_error")
			return
		}
		count = n
	}
	result, err := s.app.MarketService.GetScreener(r.Context(), screenerID, count)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleMarketTechnicals(w http.ResponseWriter, r *http.Request, symbol string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	t, err := s.app.MarketService.GetTechnicals(r.Context(), symbol)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

func (s *Server) handleCrumbClear(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	s.app.MarketService.ClearCrumb()
	common.LoggerFromContext(r.Context(), s.logger).Info().Msg("Upstream crumb cleared")
	WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
