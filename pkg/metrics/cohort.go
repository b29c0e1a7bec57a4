package metrics

import (
	"fmt"
	"time"

	"github.com/osbuild/ibmetrics/pkg/dataset"
)

// FirstSeen reduces the dataset to one record per org, carrying the org's
// earliest timestamp. Orgs whose builds all lack a timestamp are omitted.
func FirstSeen(ds dataset.Dataset) dataset.Dataset {
	byOrg := ds.OrgTimestamps()
	out := make(dataset.Dataset, 0, len(byOrg))
	for _, org := range ds.Orgs() {
		ts, ok := byOrg[org]
		if !ok || len(ts) == 0 {
			continue
		}
		out = append(out, dataset.BuildRecord{OrgID: org, CreatedAt: ts[0]})
	}
	return out
}

// NewOrgsPerMonth counts the orgs whose first build falls in each calendar
// month of the dataset's range.
func NewOrgsPerMonth(ds dataset.Dataset) ([]int, []time.Time, error) {
	return DistinctPerMonth(FirstSeen(ds), dataset.ByOrg)
}

// ReturningOrgsPerMonth counts, per calendar month, the orgs that built but
// were not seen for the first time in that month. The computed value can
// never be negative; a negative difference indicates an internal
// inconsistency between the two series and is reported as an error.
//
// New-org buckets are aligned by timestamp because the first-seen reduction
// spans the same range as the full dataset.
func ReturningOrgsPerMonth(ds dataset.Dataset) ([]int, []time.Time, error) {
	all, starts, err := DistinctPerMonth(ds, dataset.ByOrg)
	if err != nil {
		return nil, nil, err
	}
	fresh, freshStarts, err := NewOrgsPerMonth(ds)
	if err != nil {
		return nil, nil, err
	}

	byStart := make(map[time.Time]int, len(freshStarts))
	for i, t := range freshStarts {
		byStart[t] = fresh[i]
	}

	returning := make([]int, len(all))
	for i, t := range starts {
		n := all[i] - byStart[t]
		if n < 0 {
			return nil, nil, fmt.Errorf("returning orgs for month %s: %d total vs %d new",
				t.Format("2006-01"), all[i], byStart[t])
		}
		returning[i] = n
	}
	return returning, starts, nil
}

// WeeklyCohort is one fixed 7-day period of the weekly cohort series.
type WeeklyCohort struct {
	Start   time.Time `json:"start"`
	Orgs    int       `json:"orgs"`
	NewOrgs int       `json:"new_orgs"`
}

// WeeklyCohorts walks fixed 7-day periods from the anchor date and reports,
// for each, the distinct orgs that built and how many of them had not built
// in any earlier period. Unlike PeriodStarts, the trailing partial week is
// included, so the most recent activity is always visible. Callers usually
// anchor on the Monday at or before the dataset start.
func WeeklyCohorts(ds dataset.Dataset, anchor time.Time) ([]WeeklyCohort, error) {
	tr, ok := ds.TimeRange()
	if !ok {
		return nil, fmt.Errorf("computing weekly cohorts: %w", ErrEmptyDataset)
	}

	seen := make(map[string]struct{})
	var cohorts []WeeklyCohort
	for start := anchor; start.Before(tr.End); start = start.Add(7 * Day) {
		end := start.Add(7 * Day)
		week := make(map[string]struct{})
		for i := range ds {
			r := &ds[i]
			if inWindow(r, start, end) {
				week[r.OrgID] = struct{}{}
			}
		}

		fresh := 0
		for org := range week {
			if _, ok := seen[org]; !ok {
				fresh++
			}
		}
		cohorts = append(cohorts, WeeklyCohort{Start: start, Orgs: len(week), NewOrgs: fresh})

		for org := range week {
			seen[org] = struct{}{}
		}
	}
	return cohorts, nil
}
