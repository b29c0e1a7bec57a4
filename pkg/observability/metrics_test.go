package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsFreshRegistry(t *testing.T) {
	// two instances on fresh registries must not collide
	m1 := NewMetrics(nil)
	m2 := NewMetrics(nil)

	m1.DatasetReloads.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m1.DatasetReloads))
	assert.Equal(t, 0.0, testutil.ToFloat64(m2.DatasetReloads))
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(nil)

	m.HTTPRequestsTotal.WithLabelValues("GET", "/v1/summary", "200").Inc()
	m.CacheHitsTotal.WithLabelValues("summary").Inc()
	m.CacheMissesTotal.WithLabelValues("summary").Add(2)
	m.RecordsLoaded.Set(42)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/v1/summary", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("summary")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("summary")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.RecordsLoaded))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(nil)
	m.RecordsLoaded.Set(7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ibmetrics_records_loaded 7")
}
