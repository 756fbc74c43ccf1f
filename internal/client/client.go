// Package client talks to a running marketdesk server over its REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/marketdesk/internal/models"
)

const (
	DefaultServerURL = "http://localhost:8600"
	defaultTimeout   = 30 * time.Second
	maxJSONBytes     = 1 << 20
	maxImageBytes    = 8 << 20
)

// Error is a non-2xx response from the server.
type Error struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the response onto the shared error kinds.
func (e *Error) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return models.ErrDataNotFound
	case http.StatusBadRequest:
		return models.ErrValidation
	case http.StatusTooManyRequests:
		return models.ErrRateLimited
	}
	switch e.Code {
	case "upstream_auth_failed":
		return models.ErrAuthenticationFailed
	case "upstream_unavailable":
		return models.ErrNetwork
	case "upstream_parse_error":
		return models.ErrParse
	}
	return models.ErrFetch
}

// Client communicates with the marketdesk server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client targeting baseURL. An empty baseURL uses DefaultServerURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// do sends a request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	body, err := c.send(ctx, method, path, in, maxJSONBytes)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, in interface{}, limit int64) ([]byte, error) {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach marketdesk server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var er struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(body, &er) == nil && er.Error != "" {
			apiErr.Message = er.Error
			apiErr.Code = er.Code
		}
		return nil, apiErr
	}
	return body, nil
}

// Health checks the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

// GetQuotes fetches a quote for each symbol.
func (c *Client) GetQuotes(ctx context.Context, symbols []string) ([]*models.Quote, error) {
	var resp struct {
		Quotes []*models.Quote `json:"quotes"`
	}
	path := "/api/market/quotes?symbols=" + url.QueryEscape(strings.Join(symbols, ","))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Quotes, nil
}

func historyPath(symbol, rangeParam, interval, format string) string {
	q := url.Values{}
	if rangeParam != "" {
		q.Set("range", rangeParam)
	}
	if interval != "" {
		q.Set("interval", interval)
	}
	if format != "" {
		q.Set("format", format)
	}
	path := "/api/market/history/" + url.PathEscape(symbol)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return path
}

// GetHistory fetches candles for symbol.
func (c *Client) GetHistory(ctx context.Context, symbol, rangeParam, interval string) (*models.PriceHistory, error) {
	var h models.PriceHistory
	if err := c.do(ctx, http.MethodGet, historyPath(symbol, rangeParam, interval, ""), nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// GetHistoryChart fetches the price history chart as PNG bytes.
func (c *Client) GetHistoryChart(ctx context.Context, symbol, rangeParam, interval string) ([]byte, error) {
	return c.send(ctx, http.MethodGet, historyPath(symbol, rangeParam, interval, "png"), nil, maxImageBytes)
}

// GetMarketOverview fetches the major index quotes.
func (c *Client) GetMarketOverview(ctx context.Context) (*models.MarketOverview, error) {
	var o models.MarketOverview
	if err := c.do(ctx, http.MethodGet, "/api/market/overview", nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetScreener runs a predefined screener. A zero count uses the server default.
func (c *Client) GetScreener(ctx context.Context, id string, count int) (*models.ScreenerResult, error) {
	path := "/api/market/screener/" + url.PathEscape(id)
	if count != 0 {
		path += "?count=" + strconv.Itoa(count)
	}
	var r models.ScreenerResult
	if err := c.do(ctx, http.MethodGet, path, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetTechnicals fetches the indicator summary for symbol.
func (c *Client) GetTechnicals(ctx context.Context, symbol string) (*models.Technicals, error) {
	var t models.Technicals
	if err := c.do(ctx, http.MethodGet, "/api/market/technicals/"+url.PathEscape(symbol), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreatePortfolio creates an empty portfolio.
func (c *Client) CreatePortfolio(ctx context.Context, name, description string) (*models.Portfolio, error) {
	in := map[string]string{"name": name, "description": description}
	var p models.Portfolio
	if err := c.do(ctx, http.MethodPost, "/api/portfolios", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPortfolios lists portfolios in creation order.
func (c *Client) ListPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	var resp struct {
		Portfolios []*models.Portfolio `json:"portfolios"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/portfolios", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Portfolios, nil
}

// GetPortfolio fetches a valued portfolio snapshot.
func (c *Client) GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error) {
	return c.portfolioCall(ctx, http.MethodGet, id, "", nil)
}

// AddPosition buys quantity of symbol at price.
func (c *Client) AddPosition(ctx context.Context, id, symbol string, quantity, price float64) (*models.Portfolio, error) {
	return c.portfolioCall(ctx, http.MethodPost, id, "/positions", trade(symbol, quantity, price))
}

// SellPosition sells quantity of symbol at price.
func (c *Client) SellPosition(ctx context.Context, id, symbol string, quantity, price float64) (*models.Portfolio, error) {
	return c.portfolioCall(ctx, http.MethodPost, id, "/sell", trade(symbol, quantity, price))
}

// AdjustCash deposits a positive amount or withdraws a negative one.
func (c *Client) AdjustCash(ctx context.Context, id string, amount float64) (*models.Portfolio, error) {
	return c.portfolioCall(ctx, http.MethodPost, id, "/cash", map[string]float64{"amount": amount})
}

// AddAlert registers an alert on a portfolio.
func (c *Client) AddAlert(ctx context.Context, id string, alertType models.AlertType, condition models.AlertCondition, target float64) (*models.PortfolioAlert, error) {
	in := map[string]interface{}{
		"alert_type":   alertType,
		"condition":    condition,
		"target_value": target,
	}
	var a models.PortfolioAlert
	if err := c.do(ctx, http.MethodPost, "/api/portfolios/"+url.PathEscape(id)+"/alerts", in, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// CheckAlerts evaluates alerts and returns the ones that fired.
func (c *Client) CheckAlerts(ctx context.Context, id string) ([]models.PortfolioAlert, error) {
	var resp struct {
		Triggered []models.PortfolioAlert `json:"triggered"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/portfolios/"+url.PathEscape(id)+"/alerts/check", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Triggered, nil
}

func (c *Client) portfolioCall(ctx context.Context, method, id, suffix string, in interface{}) (*models.Portfolio, error) {
	var p models.Portfolio
	if err := c.do(ctx, method, "/api/portfolios/"+url.PathEscape(id)+suffix, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func trade(symbol string, quantity, price float64) map[string]interface{} {
	return map[string]interface{}{"symbol": symbol, "quantity": quantity, "price": price}
}
