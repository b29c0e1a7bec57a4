package metrics

import (
	"fmt"
	"time"

	"github.com/osbuild/ibmetrics/pkg/dataset"
)

// DistinctPerMonth counts the distinct values of the selected attribute in
// each calendar-month bucket covering the dataset. The second return value
// holds the bucket start timestamps, parallel to the counts.
func DistinctPerMonth(ds dataset.Dataset, sel dataset.Selector) ([]int, []time.Time, error) {
	starts, err := MonthStarts(ds)
	if err != nil {
		return nil, nil, err
	}
	counts := make([]int, len(starts))
	sets := make([]map[string]struct{}, len(starts))
	first := starts[0]
	firstIdx := monthIndex(first)
	for i := range ds {
		r := &ds[i]
		if !r.HasTimestamp() {
			continue
		}
		idx := monthIndex(monthStart(r.CreatedAt)) - firstIdx
		if idx < 0 || idx >= len(starts) {
			continue
		}
		if sets[idx] == nil {
			sets[idx] = make(map[string]struct{})
		}
		sets[idx][sel(r)] = struct{}{}
	}
	for i, set := range sets {
		counts[i] = len(set)
	}
	return counts, starts, nil
}

// monthIndex maps a month-start timestamp onto a linear month scale.
func monthIndex(m time.Time) int {
	return m.Year()*12 + int(m.Month()) - 1
}

// DistinctPerPeriod counts the distinct values of the selected attribute in
// each fixed-width period of [start, end), with PeriodStarts boundary
// semantics (partial tail dropped).
func DistinctPerPeriod(ds dataset.Dataset, sel dataset.Selector, start, end time.Time, period time.Duration) ([]int, []time.Time, error) {
	if _, ok := ds.TimeRange(); !ok {
		return nil, nil, fmt.Errorf("counting distinct values per period: %w", ErrEmptyDataset)
	}
	starts, err := PeriodStarts(start, end, period)
	if err != nil {
		return nil, nil, err
	}
	counts := make([]int, len(starts))
	for i, t := range starts {
		set := make(map[string]struct{})
		for j := range ds {
			r := &ds[j]
			if inWindow(r, t, t.Add(period)) {
				set[sel(r)] = struct{}{}
			}
		}
		counts[i] = len(set)
	}
	return counts, starts, nil
}

// CountPerPeriod counts records (not distinct values) in each fixed-width
// period of [start, end). Summed over a partition of the time range this
// conserves the total record count.
func CountPerPeriod(ds dataset.Dataset, start, end time.Time, period time.Duration) ([]int, []time.Time, error) {
	if _, ok := ds.TimeRange(); !ok {
		return nil, nil, fmt.Errorf("counting records per period: %w", ErrEmptyDataset)
	}
	starts, err := PeriodStarts(start, end, period)
	if err != nil {
		return nil, nil, err
	}
	counts := make([]int, len(starts))
	for i, t := range starts {
		for j := range ds {
			if inWindow(&ds[j], t, t.Add(period)) {
				counts[i]++
			}
		}
	}
	return counts, starts, nil
}

// DistinctSliding counts the distinct values of the selected attribute in a
// sliding window of windowDays days, stepped forward one day at a time.
// Scanning starts once a full window is available and stops before the
// dataset's maximum timestamp. The returned timestamps are the window ends;
// each window spans [end-windowDays, end).
func DistinctSliding(ds dataset.Dataset, sel dataset.Selector, windowDays int) ([]int, []time.Time, error) {
	if windowDays <= 0 {
		return nil, nil, fmt.Errorf("window width %d days: %w", windowDays, ErrInvalidWindow)
	}
	tr, ok := ds.TimeRange()
	if !ok {
		return nil, nil, fmt.Errorf("counting distinct values in sliding window: %w", ErrEmptyDataset)
	}
	window := time.Duration(windowDays) * Day

	var counts []int
	var ends []time.Time
	for t := tr.Start.Add(window); t.Before(tr.End); t = t.Add(Day) {
		set := make(map[string]struct{})
		for j := range ds {
			r := &ds[j]
			if inWindow(r, t.Add(-window), t) {
				set[sel(r)] = struct{}{}
			}
		}
		counts = append(counts, len(set))
		ends = append(ends, t)
	}
	return counts, ends, nil
}

// inWindow reports whether the record's timestamp falls in [start, end).
func inWindow(r *dataset.BuildRecord, start, end time.Time) bool {
	if !r.HasTimestamp() {
		return false
	}
	return !r.CreatedAt.Before(start) && r.CreatedAt.Before(end)
}
