package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/osbuild/ibmetrics/pkg/dataset"
	"github.com/osbuild/ibmetrics/pkg/footprint"
	"github.com/osbuild/ibmetrics/pkg/metrics"
	"github.com/osbuild/ibmetrics/pkg/observability"
)

// Service computes metric series over the current dataset snapshot and
// serves them as JSON.
type Service struct {
	store   *Store
	mapper  footprint.Mapper
	cache   *ResultCache
	log     *logrus.Logger
	metrics *observability.Metrics
}

// NewService wires the HTTP service together.
func NewService(store *Store, mapper footprint.Mapper, cache *ResultCache, log *logrus.Logger, m *observability.Metrics) *Service {
	return &Service{store: store, mapper: mapper, cache: cache, log: log, metrics: m}
}

// Router builds the HTTP routing table.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(recoveryMiddleware(s.log))
	r.Use(loggingMiddleware(s.log, s.metrics))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	v1.HandleFunc("/monthly/{series}", s.handleMonthly).Methods(http.MethodGet)
	v1.HandleFunc("/sliding", s.handleSliding).Methods(http.MethodGet)
	v1.HandleFunc("/dau-mau", s.handleDAUMAU).Methods(http.MethodGet)
	v1.HandleFunc("/orgs/repeat", s.handleRepeatOrgs).Methods(http.MethodGet)
	v1.HandleFunc("/orgs/active", s.handleActiveOrgs).Methods(http.MethodGet)
	v1.HandleFunc("/footprints", s.handleFootprints).Methods(http.MethodGet)
	v1.HandleFunc("/weekly-cohorts", s.handleWeeklyCohorts).Methods(http.MethodGet)
	return r
}

// Series is a numeric series paired with its bucket timestamps. Depending
// on the aggregation the timestamps are bucket starts or window ends.
type Series struct {
	Counts     []int       `json:"counts"`
	Timestamps []time.Time `json:"timestamps"`
}

// RatioSeries is a float series paired with window-end timestamps.
type RatioSeries struct {
	Ratios     []float64   `json:"ratios"`
	Timestamps []time.Time `json:"timestamps"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	ds, version := s.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"records":   len(ds),
		"version":   version,
		"loaded_at": s.store.LoadedAt(),
	})
}

func (s *Service) handleSummary(w http.ResponseWriter, r *http.Request) {
	ds, version := s.store.Snapshot()
	key := Key("summary", version)
	var cached dataset.Summary
	if s.cache.Get(r.Context(), "summary", key, &cached) {
		writeJSON(w, http.StatusOK, cached)
		return
	}
	summary := dataset.Summarize(ds)
	s.cache.Set(r.Context(), key, summary)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Service) handleMonthly(w http.ResponseWriter, r *http.Request) {
	series := mux.Vars(r)["series"]
	ds, version := s.store.Snapshot()

	key := Key("monthly", version, series)
	var cached Series
	if s.cache.Get(r.Context(), "monthly", key, &cached) {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	var counts []int
	var starts []time.Time
	var err error
	switch series {
	case "users":
		counts, starts, err = metrics.DistinctPerMonth(ds, dataset.ByOrg)
	case "builds":
		counts, starts, err = metrics.DistinctPerMonth(ds, dataset.ByJob)
	case "new-users":
		counts, starts, err = metrics.NewOrgsPerMonth(ds)
	case "returning-users":
		counts, starts, err = metrics.ReturningOrgsPerMonth(ds)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown monthly series %q", series)})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	resp := Series{Counts: counts, Timestamps: starts}
	s.cache.Set(r.Context(), key, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleSliding(w http.ResponseWriter, r *http.Request) {
	attr := r.URL.Query().Get("attr")
	if attr == "" {
		attr = "org"
	}
	sel, ok := selectorFor(attr)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown attribute %q", attr)})
		return
	}
	window, err := intParam(r, "window", 30)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ds, version := s.store.Snapshot()
	key := Key("sliding", version, attr, strconv.Itoa(window))
	var cached Series
	if s.cache.Get(r.Context(), "sliding", key, &cached) {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	counts, ends, err := metrics.DistinctSliding(ds, sel, window)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := Series{Counts: counts, Timestamps: ends}
	s.cache.Set(r.Context(), key, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleDAUMAU(w http.ResponseWriter, r *http.Request) {
	ds, version := s.store.Snapshot()
	key := Key("dau-mau", version)
	var cached RatioSeries
	if s.cache.Get(r.Context(), "dau-mau", key, &cached) {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	ratios, ends, err := metrics.DAUOverMAU(ds)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := RatioSeries{Ratios: ratios, Timestamps: ends}
	s.cache.Set(r.Context(), key, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleRepeatOrgs(w http.ResponseWriter, r *http.Request) {
	minBuilds, err := intParam(r, "min_builds", 3)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	periodDays, err := intParam(r, "period_days", 30)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ds, version := s.store.Snapshot()
	key := Key("orgs-repeat", version, strconv.Itoa(minBuilds), strconv.Itoa(periodDays))
	var cached []string
	if s.cache.Get(r.Context(), "orgs-repeat", key, &cached) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"orgs": cached, "count": len(cached)})
		return
	}

	orgs, err := metrics.RepeatOrgs(ds, minBuilds, time.Duration(periodDays)*metrics.Day)
	if err != nil {
		writeError(w, err)
		return
	}
	s.cache.Set(r.Context(), key, orgs)
	writeJSON(w, http.StatusOK, map[string]interface{}{"orgs": orgs, "count": len(orgs)})
}

func (s *Service) handleActiveOrgs(w http.ResponseWriter, r *http.Request) {
	minDays, err := intParam(r, "min_days", 3)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	recentLimit, err := intParam(r, "recent_limit", 30)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	// results depend on the reference time, so they bypass the caches
	now := time.Now()
	if v := r.URL.Query().Get("now"); v != "" {
		now, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid now parameter: %v", err)})
			return
		}
	}

	ds, _ := s.store.Snapshot()
	orgs, err := metrics.ActiveOrgs(ds, minDays, recentLimit, now)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orgs": orgs, "count": len(orgs)})
}

func (s *Service) handleFootprints(w http.ResponseWriter, r *http.Request) {
	ds, version := s.store.Snapshot()
	key := Key("footprints", version)
	var cached []dataset.NameCount
	if s.cache.Get(r.Context(), "footprints", key, &cached) {
		writeJSON(w, http.StatusOK, cached)
		return
	}
	counts := dataset.ImageTypeCounts(s.mapper.Apply(ds))
	s.cache.Set(r.Context(), key, counts)
	writeJSON(w, http.StatusOK, counts)
}

func (s *Service) handleWeeklyCohorts(w http.ResponseWriter, r *http.Request) {
	ds, version := s.store.Snapshot()

	var anchor time.Time
	if v := r.URL.Query().Get("anchor"); v != "" {
		var err error
		anchor, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid anchor: %v", err)})
			return
		}
	} else {
		tr, ok := ds.TimeRange()
		if !ok {
			writeError(w, metrics.ErrEmptyDataset)
			return
		}
		anchor = mondayOnOrBefore(tr.Start)
	}

	key := Key("weekly-cohorts", version, anchor.Format(time.RFC3339))
	var cached []metrics.WeeklyCohort
	if s.cache.Get(r.Context(), "weekly-cohorts", key, &cached) {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	cohorts, err := metrics.WeeklyCohorts(ds, anchor)
	if err != nil {
		writeError(w, err)
		return
	}
	s.cache.Set(r.Context(), key, cohorts)
	writeJSON(w, http.StatusOK, cohorts)
}

func selectorFor(attr string) (dataset.Selector, bool) {
	switch attr {
	case "org":
		return dataset.ByOrg, true
	case "job":
		return dataset.ByJob, true
	case "image_type":
		return dataset.ByImageType, true
	}
	return nil, false
}

func intParam(r *http.Request, name string, defaultValue int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: %w", name, err)
	}
	return n, nil
}

// mondayOnOrBefore returns the Monday at or before t, at day start. Weekly
// cohorts anchored there line up with how the reports are read.
func mondayOnOrBefore(t time.Time) time.Time {
	u := t.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	for day.Weekday() != time.Monday {
		day = day.AddDate(0, 0, -1)
	}
	return day
}
