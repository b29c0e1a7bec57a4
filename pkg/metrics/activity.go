package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/osbuild/ibmetrics/pkg/dataset"
)

// RepeatOrgs returns the orgs that built at least minBuilds times within
// some rolling window of the given period: there must be minBuilds
// consecutive builds whose inter-arrival gaps sum to strictly less than
// period. Orgs with fewer than minBuilds builds never qualify.
//
// minBuilds below 2 is rejected: the gap-sum rule would degenerate and mark
// every org with a single build. The result is sorted for determinism;
// classification itself is independent per org and runs concurrently.
func RepeatOrgs(ds dataset.Dataset, minBuilds int, period time.Duration) ([]string, error) {
	if minBuilds < 2 {
		return nil, fmt.Errorf("minBuilds %d: %w", minBuilds, ErrInvalidWindow)
	}
	if period <= 0 {
		return nil, fmt.Errorf("period %v: %w", period, ErrInvalidWindow)
	}

	byOrg := ds.OrgTimestamps()

	var mu sync.Mutex
	var repeats []string
	var g errgroup.Group
	g.SetLimit(8)
	for org, ts := range byOrg {
		org, ts := org, ts
		g.Go(func() error {
			if !hasDenseRun(ts, minBuilds, period) {
				return nil
			}
			mu.Lock()
			repeats = append(repeats, org)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(repeats)
	return repeats, nil
}

// hasDenseRun reports whether the sorted timestamps contain minBuilds
// consecutive entries spanning strictly less than period.
func hasDenseRun(ts []time.Time, minBuilds int, period time.Duration) bool {
	if len(ts) < minBuilds {
		return false
	}
	run := minBuilds - 1
	for i := 0; i+run < len(ts); i++ {
		if ts[i+run].Sub(ts[i]) < period {
			return true
		}
	}
	return false
}

// OrgBuildDays returns, per org, the sorted distinct UTC calendar days on
// which the org had at least one build.
func OrgBuildDays(ds dataset.Dataset) map[string][]time.Time {
	days := make(map[string]map[time.Time]struct{})
	for i := range ds {
		r := &ds[i]
		if !r.HasTimestamp() {
			continue
		}
		day := dayStart(r.CreatedAt)
		if days[r.OrgID] == nil {
			days[r.OrgID] = make(map[time.Time]struct{})
		}
		days[r.OrgID][day] = struct{}{}
	}

	out := make(map[string][]time.Time, len(days))
	for org, set := range days {
		list := make([]time.Time, 0, len(set))
		for d := range set {
			list = append(list, d)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Before(list[j]) })
		out[org] = list
	}
	return out
}

// dayStart truncates a timestamp to the start of its UTC calendar day.
func dayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ActiveOrgs returns the orgs with builds on at least minDays distinct
// calendar days whose most recent build day is strictly after
// now - recentLimit days. now is explicit so results are reproducible;
// outermost callers default it to time.Now().
func ActiveOrgs(ds dataset.Dataset, minDays, recentLimit int, now time.Time) ([]string, error) {
	if minDays < 1 {
		return nil, fmt.Errorf("minDays %d: %w", minDays, ErrInvalidWindow)
	}
	if recentLimit < 0 {
		return nil, fmt.Errorf("recentLimit %d: %w", recentLimit, ErrInvalidWindow)
	}

	cutoff := now.Add(-time.Duration(recentLimit) * Day)
	var active []string
	for org, days := range OrgBuildDays(ds) {
		if len(days) < minDays {
			continue
		}
		if days[len(days)-1].After(cutoff) {
			active = append(active, org)
		}
	}
	sort.Strings(active)
	return active, nil
}
