// Package yahoo provides a client for Yahoo Finance style market data endpoints.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/bobmcallan/marketdesk/internal/common"
	"github.com/bobmcallan/marketdesk/internal/interfaces"
	"github.com/bobmcallan/marketdesk/internal/metrics"
	"github.com/bobmcallan/marketdesk/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		num, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	if string(data) == "null" {
		*f = 0
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL         = "https://query1.finance.yahoo.com"
	DefaultQuery2URL       = "https://query2.finance.yahoo.com"
	DefaultCookieURL       = "https://fc.yahoo.com"
	DefaultPageURL         = "https://finance.yahoo.com"
	DefaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	DefaultTimeout         = 30 * time.Second
	DefaultMinInterval     = 100 * time.Millisecond
	DefaultMaxCalls        = 60
	DefaultWindow          = time.Minute
	DefaultBreakerFailures = 5

	maxResponseBytes = 8 << 20
)

// Client implements interfaces.MarketDataClient
type Client struct {
	baseURL   string
	query2URL string
	cookieURL string
	pageURL   string
	userAgent string

	httpClient *http.Client
	logger     *common.Logger
	metrics    *metrics.Registry
	throttle   *Throttle
	crumbs     *CrumbCache
	breaker    *gobreaker.CircuitBreaker

	crumbTTL        time.Duration
	breakerFailures uint32
	breakerCooldown time.Duration
	strategies      []CrumbStrategy
}

var _ interfaces.MarketDataClient = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the primary query host
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithQuery2URL sets the secondary query host
func WithQuery2URL(u string) ClientOption {
	return func(c *Client) {
		c.query2URL = strings.TrimRight(u, "/")
	}
}

// WithCookieURL sets the host visited for a session cookie
func WithCookieURL(u string) ClientOption {
	return func(c *Client) {
		c.cookieURL = strings.TrimRight(u, "/")
	}
}

// WithPageURL sets the host serving HTML quote pages
func WithPageURL(u string) ClientOption {
	return func(c *Client) {
		c.pageURL = strings.TrimRight(u, "/")
	}
}

// WithUserAgent sets the User-Agent header sent upstream
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics registry
func WithMetrics(m *metrics.Registry) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithThrottle sets the minimum call spacing and the per-window call quota
func WithThrottle(minInterval time.Duration, maxCalls int, window time.Duration) ClientOption {
	return func(c *Client) {
		c.throttle = NewThrottle(minInterval, maxCalls, window)
	}
}

// WithCrumbTTL sets how long a crumb is reused before refreshing
func WithCrumbTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.crumbTTL = ttl
	}
}

// WithBreaker sets the consecutive failure count that opens the circuit
// breaker and how long it stays open.
func WithBreaker(failures int, cooldown time.Duration) ClientOption {
	return func(c *Client) {
		if failures > 0 {
			c.breakerFailures = uint32(failures)
		}
		if cooldown > 0 {
			c.breakerCooldown = cooldown
		}
	}
}

// WithCrumbStrategies replaces the built-in crumb strategies
func WithCrumbStrategies(strategies ...CrumbStrategy) ClientOption {
	return func(c *Client) {
		c.strategies = strategies
	}
}

// NewClient creates a new client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		query2URL: DefaultQuery2URL,
		cookieURL: DefaultCookieURL,
		pageURL:   DefaultPageURL,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:          common.NewSilentLogger(),
		throttle:        NewThrottle(DefaultMinInterval, DefaultMaxCalls, DefaultWindow),
		crumbTTL:        common.FreshnessCrumb,
		breakerFailures: DefaultBreakerFailures,
		breakerCooldown: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.throttle.metrics = c.metrics

	if c.strategies == nil {
		c.strategies = c.defaultStrategies()
	}
	c.crumbs = NewCrumbCache(c.strategies, c.crumbTTL, c.throttle, c.logger)
	c.crumbs.metrics = c.metrics

	failures := c.breakerFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "yahoo",
		Interval: time.Minute,
		Timeout:  c.breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	return c
}

// APIError represents a non-2xx response from the upstream
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yahoo API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Unwrap maps the status to an error kind.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return models.ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.ErrAuthenticationFailed
	case http.StatusNotFound:
		return models.ErrDataNotFound
	default:
		return models.ErrFetch
	}
}

// countsAsSuccess decides which errors leave the breaker counts untouched.
// Missing symbols and caller cancellation say nothing about upstream health.
func countsAsSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, models.ErrDataNotFound) ||
		errors.Is(err, models.ErrAuthenticationFailed) ||
		errors.Is(err, context.Canceled)
}

// ClearCrumb drops the cached crumb
func (c *Client) ClearCrumb() {
	c.crumbs.Clear()
	c.logger.Info().Msg("Crumb cache cleared")
}

// get performs a crumb-authorised, throttled GET, retrying once with a fresh
// crumb when the upstream rejects the current one.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, result interface{}) error {
	err := c.getOnce(ctx, endpoint, path, params, result)
	if isCrumbRejected(err) {
		c.logger.Warn().Str("endpoint", endpoint).Msg("Crumb rejected, refreshing")
		c.crumbs.Clear()
		err = c.getOnce(ctx, endpoint, path, params, result)
	}
	return err
}

func isCrumbRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

func (c *Client) getOnce(ctx context.Context, endpoint, path string, params url.Values, result interface{}) error {
	crumb, err := c.crumbs.Get(ctx)
	if err != nil {
		return err
	}

	if err := c.throttle.Wait(ctx); err != nil {
		return fmt.Errorf("throttle wait: %w", err)
	}

	start := time.Now()
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.fetch(ctx, path, params, crumb, result)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: upstream circuit open", models.ErrNetwork)
	}

	c.metrics.ObserveUpstream(endpoint, outcome(err), time.Since(start))
	if err != nil {
		c.logger.Debug().Str("endpoint", endpoint).Err(err).Dur("elapsed", time.Since(start)).Msg("Upstream request failed")
	}
	return err
}

func (c *Client) fetch(ctx context.Context, path string, params url.Values, crumb *Crumb, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("crumb", crumb.Value)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	for _, ck := range crumb.Cookies {
		req.AddCookie(ck)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", models.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(result); err != nil {
		return fmt.Errorf("%w: decode %s: %v", models.ErrParse, path, err)
	}

	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrDataNotFound):
		return "not_found"
	case errors.Is(err, models.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, models.ErrAuthenticationFailed):
		return "auth_failed"
	case errors.Is(err, models.ErrParse):
		return "parse_error"
	case errors.Is(err, models.ErrNetwork):
		return "network_error"
	default:
		return "error"
	}
}
