package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/marketdesk/internal/app"
	"github.com/bobmcallan/marketdesk/internal/common"
	"github.com/bobmcallan/marketdesk/internal/metrics"
	"github.com/bobmcallan/marketdesk/internal/models"
)

// stubMarket is an in-memory MarketDataClient.
type stubMarket struct {
	mu         sync.Mutex
	prices     map[string]float64
	quoteErr   error
	cleared    int
	lastCount  int
	quoteCalls int
}

func (m *stubMarket) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quoteCalls++
	if m.quoteErr != nil {
		return nil, m.quoteErr
	}
	p, ok := m.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("quote %s: %w", symbol, models.ErrDataNotFound)
	}
	return &models.Quote{Symbol: symbol, Price: p, ChangePct: 1.5, Timestamp: time.Now()}, nil
}

func (m *stubMarket) GetQuotes(ctx context.Context, symbols []string) ([]*models.Quote, error) {
	var out []*models.Quote
	for _, s := range symbols {
		if q, err := m.GetQuote(ctx, s); err == nil {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *stubMarket) GetChart(ctx context.Context, symbol, rangeParam, interval string) (*models.PriceHistory, error) {
	if _, ok := m.prices[symbol]; !ok {
		return nil, models.ErrDataNotFound
	}
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	h := &models.PriceHistory{Symbol: symbol, Range: rangeParam, Interval: interval}
	for i := 0; i < 10; i++ {
		c := 100 + float64(i)
		h.Candles = append(h.Candles, models.Candle{
			Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, AdjClose: c, Volume: 1000,
		})
	}
	return h, nil
}

func (m *stubMarket) GetScreener(ctx context.Context, id string, count int) (*models.ScreenerResult, error) {
	m.mu.Lock()
	m.lastCount = count
	m.mu.Unlock()
	return &models.ScreenerResult{ID: id, Total: 1, Quotes: []*models.Quote{{Symbol: "AAPL", Price: 150}}}, nil
}

func (m *stubMarket) ClearCrumb() {
	m.mu.Lock()
	m.cleared++
	m.mu.Unlock()
}

func newTestServer(t *testing.T, market *stubMarket) *Server {
	t.Helper()
	cfg := common.NewDefaultConfig()
	a := app.New(cfg, common.NewSilentLogger(), metrics.NewRegistry(), market)
	return NewServer(a)
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubMarket{})
	rec := doRequest(t, srv, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %q", body["status"])
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubMarket{})
	rec := doRequest(t, srv, http.MethodPost, "/api/health", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected 405, got %d", rec.Code)
	}
	if rec.Header().Get("Allow") != "GET" {
		t.Errorf("Expected Allow: GET, got %q", rec.Header().Get("Allow"))
	}
}

func TestVersion(t *testing.T) {
	srv := newTestServer(t, &stubMarket{})
	rec := doRequest(t, srv, http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	require.Equal(t, common.GetVersion(), body["version"])
	require.Contains(t, body, "commit")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubMarket{})
	doRequest(t, srv, http.MethodGet, "/api/health", "")

	rec := doRequest(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "marketdesk_http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, &stubMarket{})
	for _, path := range []string{"/api/market/bogus/x", "/api/market/quote/", "/api/portfolios/abc/bogus"} {
		rec := doRequest(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}
