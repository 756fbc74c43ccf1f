package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/marketdesk/internal/common"
)

// registerRoutes sets up all HTTP routes on the given mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	if s.app.Metrics != nil {
		mux.Handle("/metrics", s.app.Metrics.Handler())
	}

	// Market data
	mux.HandleFunc("/api/market/quotes", s.handleMarketQuotes)
	mux.HandleFunc("/api/market/overview", s.handleMarketOverview)
	mux.HandleFunc("/api/market/crumb/clear", s.handleCrumbClear)
	mux.HandleFunc("/api/market/", s.routeMarket)

	// Portfolios
	mux.HandleFunc("/api/portfolios", s.handlePortfolioList)
	mux.HandleFunc("/api/portfolios/", s.routePortfolios)
}

// routeMarket dispatches /api/market/{kind}/{param} requests.
func (s *Server) routeMarket(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/market/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	switch parts[0] {
	case "quote":
		s.handleMarketQuote(w, r, parts[1])
	case "history":
		s.handleMarketHistory(w, r, parts[1])
	case "screener":
		s.handleMarketScreener(w, r, parts[1])
	case "technicals":
		s.handleMarketTechnicals(w, r, parts[1])
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routePortfolios dispatches /api/portfolios/{id}/... to the appropriate handler.
func (s *Server) routePortfolios(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/portfolios/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Portfolio ID required")
		return
	}

	if len(parts) == 1 || parts[1] == "" {
		s.handlePortfolio(w, r, id)
		return
	}

	sub := parts[1]
	switch {
	case sub == "positions":
		s.handlePositionAdd(w, r, id)
	case sub == "sell":
		s.handlePositionSell(w, r, id)
	case sub == "cash":
		s.handleCashAdjust(w, r, id)
	case sub == "refresh":
		s.handlePortfolioRefresh(w, r, id)
	case sub == "chart":
		s.handlePortfolioChart(w, r, id)
	case sub == "alerts":
		s.handleAlerts(w, r, id)
	case sub == "alerts/check":
		s.handleAlertsCheck(w, r, id)
	case strings.HasPrefix(sub, "alerts/"):
		s.handleAlertDelete(w, r, id, strings.TrimPrefix(sub, "alerts/"))
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
		"uptime":  time.Since(s.app.StartupTime).Round(time.Second).String(),
	})
}
