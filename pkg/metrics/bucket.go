package metrics

import (
	"fmt"
	"time"

	"github.com/osbuild/ibmetrics/pkg/dataset"
)

// Day is the step and width unit for sliding windows and fixed periods.
const Day = 24 * time.Hour

// monthStart returns the first instant of the calendar month containing t.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthStarts returns the start of every calendar month touched by the
// dataset, from the month of the earliest timestamp through the month of
// the latest. Buckets are true calendar months: bucket i spans
// [starts[i], starts[i].AddDate(0, 1, 0)).
func MonthStarts(ds dataset.Dataset) ([]time.Time, error) {
	tr, ok := ds.TimeRange()
	if !ok {
		return nil, fmt.Errorf("computing month buckets: %w", ErrEmptyDataset)
	}
	first := monthStart(tr.Start)
	last := monthStart(tr.End).AddDate(0, 1, 0)

	var starts []time.Time
	for m := first; m.Before(last); m = m.AddDate(0, 1, 0) {
		starts = append(starts, m)
	}
	return starts, nil
}

// PeriodStarts returns the starts of consecutive fixed-width periods
// [start, start+period), [start+period, start+2*period), ... within
// [start, end). A final partial period that would straddle end is dropped;
// callers that need the tail covered must extend end to a period boundary.
func PeriodStarts(start, end time.Time, period time.Duration) ([]time.Time, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period %v: %w", period, ErrInvalidWindow)
	}
	var starts []time.Time
	for t := start; t.Add(period).Before(end); t = t.Add(period) {
		starts = append(starts, t)
	}
	return starts, nil
}
