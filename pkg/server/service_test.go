package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/ibmetrics/pkg/dataset"
	"github.com/osbuild/ibmetrics/pkg/footprint"
	"github.com/osbuild/ibmetrics/pkg/observability"
)

func testService(t *testing.T, ds dataset.Dataset) *Service {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	m := observability.NewMetrics(nil)
	cache, err := NewResultCache("", "", time.Minute, m)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return NewService(NewStore(ds), footprint.Default(), cache, log, m)
}

func testDataset() dataset.Dataset {
	var ds dataset.Dataset
	start := time.Date(2022, time.January, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		org := "org-" + strconv.Itoa(i%5)
		ds = append(ds, dataset.BuildRecord{
			OrgID:     org,
			JobID:     "job-" + strconv.Itoa(i),
			CreatedAt: start.AddDate(0, 0, i),
			ImageType: "aws",
		})
	}
	return ds
}

func get(t *testing.T, svc *Service, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	rec := get(t, testService(t, testDataset()), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 60, body["records"])
}

func TestHandleSummary(t *testing.T) {
	rec := get(t, testService(t, testDataset()), "/v1/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var s dataset.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, 60, s.Builds)
	assert.Equal(t, 5, s.Orgs)
}

func TestHandleMonthly(t *testing.T) {
	svc := testService(t, testDataset())

	for _, series := range []string{"users", "builds", "new-users", "returning-users"} {
		rec := get(t, svc, "/v1/monthly/"+series)
		require.Equal(t, http.StatusOK, rec.Code, "series %s", series)

		var body Series
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body.Counts, len(body.Timestamps), "series %s", series)
		assert.NotEmpty(t, body.Counts, "series %s", series)
	}
}

func TestHandleMonthlyUnknownSeries(t *testing.T) {
	rec := get(t, testService(t, testDataset()), "/v1/monthly/nonsense")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleMonthlyEmptyDataset(t *testing.T) {
	rec := get(t, testService(t, dataset.Dataset{}), "/v1/monthly/users")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleSliding(t *testing.T) {
	rec := get(t, testService(t, testDataset()), "/v1/sliding?attr=org&window=7")
	require.Equal(t, http.StatusOK, rec.Code)

	var body Series
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Counts)
	// all five orgs build within any 7-day window
	assert.Equal(t, 5, body.Counts[0])
}

func TestHandleSlidingBadParams(t *testing.T) {
	svc := testService(t, testDataset())

	assert.Equal(t, http.StatusBadRequest, get(t, svc, "/v1/sliding?attr=bogus").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, svc, "/v1/sliding?window=x").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, svc, "/v1/sliding?window=0").Code)
}

func TestHandleDAUMAU(t *testing.T) {
	rec := get(t, testService(t, testDataset()), "/v1/dau-mau")
	require.Equal(t, http.StatusOK, rec.Code)

	var body RatioSeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Ratios)
	for _, ratio := range body.Ratios {
		assert.Greater(t, ratio, 0.0)
		assert.LessOrEqual(t, ratio, 1.0)
	}
}

func TestHandleRepeatOrgs(t *testing.T) {
	rec := get(t, testService(t, testDataset()), "/v1/orgs/repeat?min_builds=2&period_days=30")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Orgs  []string `json:"orgs"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Count)
}

func TestHandleRepeatOrgsInvalidSpec(t *testing.T) {
	rec := get(t, testService(t, testDataset()), "/v1/orgs/repeat?min_builds=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleActiveOrgs(t *testing.T) {
	// pin the reference time right after the dataset's last build
	rec := get(t, testService(t, testDataset()),
		"/v1/orgs/active?min_days=3&recent_limit=30&now=2022-03-20T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Orgs  []string `json:"orgs"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Count)
}

func TestHandleFootprints(t *testing.T) {
	rec := get(t, testService(t, testDataset()), "/v1/footprints")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []dataset.NameCount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, dataset.NameCount{Name: "aws", Count: 60}, body[0])
}

func TestHandleWeeklyCohorts(t *testing.T) {
	rec := get(t, testService(t, testDataset()), "/v1/weekly-cohorts")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []struct {
		Orgs    int `json:"orgs"`
		NewOrgs int `json:"new_orgs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body)
	// the anchor week (Mon Jan 10) catches only the Jan 15 and 16 builds
	assert.Equal(t, 2, body[0].Orgs)
	assert.Equal(t, 2, body[0].NewOrgs)
	// every org has built by the end of the second week
	require.Greater(t, len(body), 1)
	assert.Equal(t, 5, body[1].Orgs)
	assert.Equal(t, 3, body[1].NewOrgs)
}

func TestRequestIDHeader(t *testing.T) {
	rec := get(t, testService(t, testDataset()), "/healthz")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
