package yahoo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/marketdesk/internal/metrics"
	"github.com/bobmcallan/marketdesk/internal/models"
)

func countingStrategy(name, value string, calls *int32) CrumbStrategy {
	return CrumbStrategy{
		Name: name,
		Attempt: func(ctx context.Context) (*Crumb, error) {
			atomic.AddInt32(calls, 1)
			return &Crumb{Value: value}, nil
		},
	}
}

func failingStrategy(name string, calls *int32) CrumbStrategy {
	return CrumbStrategy{
		Name: name,
		Attempt: func(ctx context.Context) (*Crumb, error) {
			atomic.AddInt32(calls, 1)
			return nil, errors.New("boom")
		},
	}
}

func TestCrumbCache_ReusesUnexpiredCrumb(t *testing.T) {
	var calls int32
	cache := NewCrumbCache([]CrumbStrategy{countingStrategy("a", "tok", &calls)}, time.Hour, nil, nil)

	first, err := cache.Get(context.Background())
	require.NoError(t, err)
	second, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok", first.Value)
	assert.Equal(t, "tok", second.Value)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCrumbCache_StrategiesTriedInOrder(t *testing.T) {
	var a, b, c int32
	cache := NewCrumbCache([]CrumbStrategy{
		failingStrategy("a", &a),
		countingStrategy("b", "from-b", &b),
		countingStrategy("c", "from-c", &c),
	}, time.Hour, nil, nil)

	crumb, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "from-b", crumb.Value)
	assert.Equal(t, int32(1), a)
	assert.Equal(t, int32(1), b)
	assert.Equal(t, int32(0), c, "later strategies are not attempted after a success")
}

func TestCrumbCache_EmptyCrumbCountsAsFailure(t *testing.T) {
	var a, b int32
	cache := NewCrumbCache([]CrumbStrategy{
		countingStrategy("empty", "", &a),
		countingStrategy("good", "tok", &b),
	}, time.Hour, nil, nil)

	crumb, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", crumb.Value)
}

func TestCrumbCache_AllStrategiesFail(t *testing.T) {
	var a, b int32
	cache := NewCrumbCache([]CrumbStrategy{failingStrategy("a", &a), failingStrategy("b", &b)}, time.Hour, nil, nil)

	_, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)
	assert.Contains(t, err.Error(), "a: boom")
	assert.Contains(t, err.Error(), "b: boom")
}

func TestCrumbCache_ExpiredEntryRefreshed(t *testing.T) {
	var calls int32
	cache := NewCrumbCache([]CrumbStrategy{countingStrategy("a", "tok", &calls)}, time.Hour, nil, nil)

	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	crumb, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), crumb.ExpiresAt)

	now = now.Add(59 * time.Minute)
	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls)

	now = now.Add(time.Minute)
	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls, "entry at its expiry instant is stale")
}

func TestCrumbCache_ClearForcesRefresh(t *testing.T) {
	var calls int32
	cache := NewCrumbCache([]CrumbStrategy{countingStrategy("a", "tok", &calls)}, time.Hour, nil, nil)

	_, err := cache.Get(context.Background())
	require.NoError(t, err)
	cache.Clear()
	_, err = cache.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls)
}

func TestCrumbCache_ConcurrentGetSingleRefresh(t *testing.T) {
	var calls int32
	slow := CrumbStrategy{
		Name: "slow",
		Attempt: func(ctx context.Context) (*Crumb, error) {
			atomic.AddInt32(&calls, 1)
			time.Sleep(30 * time.Millisecond)
			return &Crumb{Value: "tok"}, nil
		},
	}
	cache := NewCrumbCache([]CrumbStrategy{slow}, time.Hour, nil, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCrumbCache_ReturnsCopy(t *testing.T) {
	var calls int32
	cache := NewCrumbCache([]CrumbStrategy{countingStrategy("a", "tok", &calls)}, time.Hour, nil, nil)

	crumb, err := cache.Get(context.Background())
	require.NoError(t, err)
	crumb.Value = "mutated"

	again, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", again.Value)
}

func TestCrumbCache_RecordsLookupMetrics(t *testing.T) {
	var calls int32
	cache := NewCrumbCache([]CrumbStrategy{countingStrategy("a", "tok", &calls)}, time.Hour, nil, nil)
	reg := metrics.NewRegistry()
	cache.metrics = reg

	_, _ = cache.Get(context.Background())
	_, _ = cache.Get(context.Background())

	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "marketdesk_crumb_lookups_total" {
			found = true
			assert.Len(t, f.GetMetric(), 2, "hit and miss series")
		}
	}
	assert.True(t, found)
}
