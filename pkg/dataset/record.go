package dataset

import (
	"sort"
	"time"
)

// BuildRecord is a single image build submitted by an organization.
type BuildRecord struct {
	OrgID         string    `json:"org_id"`
	AccountNumber string    `json:"account_number"`
	JobID         string    `json:"job_id"`
	CreatedAt     time.Time `json:"created_at"`
	ImageType     string    `json:"image_type"`

	// Customization payload. Only empty vs. non-empty matters to the
	// metrics engine; the element values are kept for reporting.
	Packages            []string `json:"packages"`
	Filesystem          []string `json:"filesystem"`
	PayloadRepositories []string `json:"payload_repositories"`
}

// HasTimestamp reports whether the record carries a usable creation time.
// Records without one never contribute to any window computation.
func (r *BuildRecord) HasTimestamp() bool {
	return !r.CreatedAt.IsZero()
}

// Dataset is an ordered collection of build records. Order is insertion
// order, not time order.
type Dataset []BuildRecord

// Selector extracts the attribute an aggregation counts distinct values of.
type Selector func(*BuildRecord) string

// Stock selectors for the attributes the reports use.
var (
	ByOrg       Selector = func(r *BuildRecord) string { return r.OrgID }
	ByJob       Selector = func(r *BuildRecord) string { return r.JobID }
	ByImageType Selector = func(r *BuildRecord) string { return r.ImageType }
)

// TimeRange is the closed-open span of usable timestamps in a dataset.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// TimeRange returns the minimum and maximum CreatedAt over records that have
// a timestamp. ok is false when no record has one.
func (d Dataset) TimeRange() (tr TimeRange, ok bool) {
	for i := range d {
		r := &d[i]
		if !r.HasTimestamp() {
			continue
		}
		if !ok {
			tr.Start, tr.End = r.CreatedAt, r.CreatedAt
			ok = true
			continue
		}
		if r.CreatedAt.Before(tr.Start) {
			tr.Start = r.CreatedAt
		}
		if r.CreatedAt.After(tr.End) {
			tr.End = r.CreatedAt
		}
	}
	return tr, ok
}

// SliceTime returns the records created between start and end, bounds
// inclusive. Records without a timestamp are dropped.
func (d Dataset) SliceTime(start, end time.Time) Dataset {
	out := make(Dataset, 0, len(d))
	for i := range d {
		r := &d[i]
		if !r.HasTimestamp() {
			continue
		}
		if r.CreatedAt.Before(start) || r.CreatedAt.After(end) {
			continue
		}
		out = append(out, *r)
	}
	return out
}

// Orgs returns the distinct org IDs in first-appearance order.
func (d Dataset) Orgs() []string {
	seen := make(map[string]struct{}, len(d))
	var orgs []string
	for i := range d {
		id := d[i].OrgID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		orgs = append(orgs, id)
	}
	return orgs
}

// OrgTimestamps returns the sorted CreatedAt sequence for each org.
// Records without a timestamp are excluded, so an org whose builds all lack
// one does not appear in the result.
func (d Dataset) OrgTimestamps() map[string][]time.Time {
	byOrg := make(map[string][]time.Time)
	for i := range d {
		r := &d[i]
		if !r.HasTimestamp() {
			continue
		}
		byOrg[r.OrgID] = append(byOrg[r.OrgID], r.CreatedAt)
	}
	for _, ts := range byOrg {
		sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	}
	return byOrg
}
