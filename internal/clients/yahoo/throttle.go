package yahoo

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/marketdesk/internal/metrics"
)

// Throttle gates outbound calls on two rules: a minimum interval between
// permitted calls, and at most maxCalls permitted calls per fixed window.
// The window resets wholesale once its duration has elapsed.
type Throttle struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxCalls    int
	window      time.Duration
	windowStart time.Time
	calls       int
	lastCall    time.Time
	metrics     *metrics.Registry
}

// NewThrottle creates a throttle. A zero minInterval disables interval
// spacing; maxCalls <= 0 disables the window quota.
func NewThrottle(minInterval time.Duration, maxCalls int, window time.Duration) *Throttle {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Throttle{
		limiter:  rate.NewLimiter(limit, 1),
		maxCalls: maxCalls,
		window:   window,
	}
}

// Wait blocks until a call is permitted or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	start := time.Now()
	for {
		res, delay, ok := t.reserve(time.Now())
		if !ok {
			// window quota exhausted: sleep until the window rolls over, then re-check
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
			continue
		}
		if err := sleepCtx(ctx, delay); err != nil {
			t.release(res)
			return err
		}
		t.metrics.ObserveThrottleWait(time.Since(start))
		return nil
	}
}

// reservation records what reserve granted so a cancelled wait can hand it back.
type reservation struct {
	r           *rate.Reservation
	windowStart time.Time

	// window state replaced when this reservation rolled the window
	rolled    bool
	prevStart time.Time
	prevCalls int
}

// reserve permits one call if the window it will be released in has room,
// returning how long the caller must still wait for the interval rule.
// Calls are counted against the window containing their release time.
func (t *Throttle) reserve(now time.Time) (reservation, time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	releaseAt := now.Add(delay)

	res := reservation{r: r}
	if t.windowStart.IsZero() || releaseAt.Sub(t.windowStart) >= t.window {
		res.rolled, res.prevStart, res.prevCalls = true, t.windowStart, t.calls
		t.windowStart = releaseAt
		t.calls = 0
	}

	if t.maxCalls > 0 && t.calls >= t.maxCalls {
		r.CancelAt(now)
		return reservation{}, t.windowStart.Add(t.window).Sub(now), false
	}

	t.calls++
	t.lastCall = releaseAt
	res.windowStart = t.windowStart

	return res, delay, true
}

// release undoes a reservation whose caller gave up before it was due.
func (t *Throttle) release(res reservation) {
	if res.r == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	res.r.Cancel()
	if !t.windowStart.Equal(res.windowStart) || t.calls == 0 {
		return
	}
	if res.rolled && t.calls == 1 {
		t.windowStart, t.calls = res.prevStart, res.prevCalls
		return
	}
	t.calls--
}

// Stats returns the calls permitted in the current window and the time of
// the most recent permitted call.
func (t *Throttle) Stats() (calls int, lastCall time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls, t.lastCall
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
