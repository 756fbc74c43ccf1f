package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bobmcallan/marketdesk/internal/common"
	"github.com/bobmcallan/marketdesk/internal/metrics"
	"github.com/bobmcallan/marketdesk/internal/models"
)

// Crumb is the short-lived authorization token the upstream requires on data
// queries, together with the session cookies it was issued against.
type Crumb struct {
	Value     string
	Cookies   []*http.Cookie
	ExpiresAt time.Time
}

// CrumbStrategy is one way of obtaining a crumb. Strategies are tried in
// order and the first success wins.
type CrumbStrategy struct {
	Name    string
	Attempt func(ctx context.Context) (*Crumb, error)
}

// CrumbCache holds at most one crumb. The entry is replaced wholesale on each
// refresh and dropped on Clear or when found expired at read time.
// Refreshes are serialised so concurrent callers share one upstream round-trip.
type CrumbCache struct {
	mu        sync.RWMutex
	refreshMu sync.Mutex
	current   *Crumb

	ttl        time.Duration
	strategies []CrumbStrategy
	throttle   *Throttle
	logger     *common.Logger
	metrics    *metrics.Registry
	now        func() time.Time
}

// NewCrumbCache creates a cache that refreshes through strategies, in order.
// throttle may be nil.
func NewCrumbCache(strategies []CrumbStrategy, ttl time.Duration, throttle *Throttle, logger *common.Logger) *CrumbCache {
	if ttl <= 0 {
		ttl = common.FreshnessCrumb
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &CrumbCache{
		ttl:        ttl,
		strategies: strategies,
		throttle:   throttle,
		logger:     logger,
		now:        time.Now,
	}
}

// Get returns the cached crumb if it is still valid, refreshing otherwise.
func (c *CrumbCache) Get(ctx context.Context) (*Crumb, error) {
	if crumb := c.cached(); crumb != nil {
		c.metrics.ObserveCrumbLookup(true)
		return crumb, nil
	}
	c.metrics.ObserveCrumbLookup(false)

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// another caller may have refreshed while we waited
	if crumb := c.cached(); crumb != nil {
		return crumb, nil
	}

	return c.refresh(ctx)
}

// Clear drops the cached crumb so the next Get refreshes.
func (c *CrumbCache) Clear() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// cached returns a copy of the current crumb, invalidating it if expired.
func (c *CrumbCache) cached() *Crumb {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()

	if cur == nil {
		return nil
	}

	if !c.now().Before(cur.ExpiresAt) {
		c.mu.Lock()
		if c.current == cur {
			c.current = nil
		}
		c.mu.Unlock()
		return nil
	}

	cp := *cur
	return &cp
}

// refresh runs the strategies in order. Must be called with refreshMu held.
func (c *CrumbCache) refresh(ctx context.Context) (*Crumb, error) {
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, fmt.Errorf("crumb refresh throttle wait: %w", err)
		}
	}

	var errs []error
	for _, s := range c.strategies {
		start := time.Now()
		crumb, err := s.Attempt(ctx)
		if err == nil && (crumb == nil || crumb.Value == "") {
			err = errors.New("empty crumb")
		}
		c.metrics.ObserveCrumbRefresh(s.Name, err == nil)
		if err != nil {
			c.logger.Warn().Err(err).Str("strategy", s.Name).Dur("elapsed", time.Since(start)).Msg("Crumb strategy failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		fresh := &Crumb{
			Value:     crumb.Value,
			Cookies:   crumb.Cookies,
			ExpiresAt: c.now().Add(c.ttl),
		}
		c.mu.Lock()
		c.current = fresh
		c.mu.Unlock()

		c.logger.Info().Str("strategy", s.Name).Dur("elapsed", time.Since(start)).Msg("Crumb refreshed")

		cp := *fresh
		return &cp, nil
	}

	return nil, fmt.Errorf("%w: %d crumb strategies failed: %v", models.ErrAuthenticationFailed, len(c.strategies), errors.Join(errs...))
}
