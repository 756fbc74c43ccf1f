package server

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/marketdesk/internal/models"
)

func TestMarketQuote(t *testing.T) {
	srv := newTestServer(t, &stubMarket{prices: map[string]float64{"AAPL": 150}})

	rec := doRequest(t, srv, http.MethodGet, "/api/market/quote/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var q models.Quote
	decodeBody(t, rec, &q)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, 150.0, q.Price)
}

func TestMarketQuote_NotFound(t *testing.T) {
	srv := newTestServer(t, &stubMarket{prices: map[string]float64{}})

	rec := doRequest(t, srv, http.MethodGet, "/api/market/quote/ZZZZ", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "not_found", body.Code)
}

func TestMarketQuote_UpstreamFailure(t *testing.T) {
	srv := newTestServer(t, &stubMarket{quoteErr: models.ErrRateLimited})

	rec := doRequest(t, srv, http.MethodGet, "/api/market/quote/AAPL", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestMarketQuotes(t *testing.T) {
	srv := newTestServer(t, &stubMarket{prices: map[string]float64{"AAPL": 150, "MSFT": 400}})

	rec := doRequest(t, srv, http.MethodGet, "/api/market/quotes?symbols=MSFT,aapl,NOPE", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Quotes []models.Quote `json:"quotes"`
		Count  int            `json:"count"`
	}
	decodeBody(t, rec, &body)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "MSFT", body.Quotes[0].Symbol)
	assert.Equal(t, "AAPL", body.Quotes[1].Symbol)
}

func TestMarketQuotes_MissingSymbols(t *testing.T) {
	srv := newTestServer(t, &stubMarket{})

	rec := doRequest(t, srv, http.MethodGet, "/api/market/quotes", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarketHistory_JSON(t *testing.T) {
	srv := newTestServer(t, &stubMarket{prices: map[string]float64{"AAPL": 150}})

	rec := doRequest(t, srv, http.MethodGet, "/api/market/history/AAPL?range=3mo&interval=1d", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var h models.PriceHistory
	decodeBody(t, rec, &h)
	assert.Equal(t, "3mo", h.Range)
	assert.Len(t, h.Candles, 10)
}

func TestMarketHistory_PNG(t *testing.T) {
	srv := newTestServer(t, &stubMarket{prices: map[string]float64{"AAPL": 150}})

	rec := doRequest(t, srv, http.MethodGet, "/api/market/history/AAPL?format=png", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestMarketHistory_Validation(t *testing.T) {
	srv := newTestServer(t, &stubMarket{prices: map[string]float64{"AAPL": 150}})

	for _, path := range []string{
		"/api/market/history/AAPL?range=7y",
		"/api/market/history/AAPL?interval=2h",
		"/api/market/history/AAPL?format=svg",
	} {
		rec := doRequest(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestMarketOverview(t *testing.T) {
	srv := newTestServer(t, &stubMarket{prices: map[string]float64{"^GSPC": 5000, "^VIX": 14}})

	rec := doRequest(t, srv, http.MethodGet, "/api/market/overview", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var o models.MarketOverview
	decodeBody(t, rec, &o)
	require.Len(t, o.Indices, 2)
	assert.Equal(t, "^GSPC", o.Indices[0].Symbol)
}

func TestMarketScreener(t *testing.T) {
	market := &stubMarket{}
	srv := newTestServer(t, market)

	rec := doRequest(t, srv, http.MethodGet, "/api/market/screener/day_gainers?count=500", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 100, market.lastCount)

	rec = doRequest(t, srv, http.MethodGet, "/api/market/screener/day_gainers?count=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/market/screener/unknown", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCrumbClear(t *testing.T) {
	market := &stubMarket{}
	srv := newTestServer(t, market)

	rec := doRequest(t, srv, http.MethodGet, "/api/market/crumb/clear", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/market/crumb/clear", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, market.cleared)
}

func TestMarketTechnicals(t *testing.T) {
	srv := newTestServer(t, &stubMarket{prices: map[string]float64{"AAPL": 150}})

	rec := doRequest(t, srv, http.MethodGet, "/api/market/technicals/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tech models.Technicals
	decodeBody(t, rec, &tech)
	assert.Equal(t, "AAPL", tech.Symbol)
	assert.Equal(t, 10, tech.Candles)
	assert.Equal(t, 109.0, tech.Price)

	rec = doRequest(t, srv, http.MethodGet, "/api/market/technicals/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
