package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRegistry_IsNoop(t *testing.T) {
	var r *Registry
	r.ObserveUpstream("quote", "ok", time.Second)
	r.ObserveCrumbRefresh("getcrumb", true)
	r.ObserveCrumbLookup(true)
	r.ObserveThrottleWait(time.Millisecond)
	r.ObserveValuation(2)
	r.ObserveAlertTriggered("price")
	r.ObserveHTTP("GET", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()

	r.ObserveUpstream("quote", "ok", 10*time.Millisecond)
	r.ObserveUpstream("quote", "ok", 20*time.Millisecond)
	r.ObserveUpstream("chart", "error", time.Millisecond)
	r.ObserveValuation(3)
	r.ObserveAlertTriggered("portfolio_value")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.UpstreamRequests.WithLabelValues("quote", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.UpstreamRequests.WithLabelValues("chart", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ValuationPasses))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.QuoteFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.AlertsTriggered.WithLabelValues("portfolio_value")))
}

func TestRegistry_HandlerExposesMetrics(t *testing.T) {
	r := NewRegistry()
	r.ObserveHTTP("GET", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "marketdesk_http_requests_total"))
}
