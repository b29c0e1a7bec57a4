package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTimeRange(t *testing.T) {
	ds := Dataset{
		{OrgID: "a", CreatedAt: ts(2022, time.March, 5)},
		{OrgID: "b", CreatedAt: ts(2022, time.January, 20)},
		{OrgID: "c", CreatedAt: ts(2022, time.February, 1)},
		{OrgID: "d"}, // no timestamp, must not shift the range
	}

	tr, ok := ds.TimeRange()
	require.True(t, ok)
	assert.Equal(t, ts(2022, time.January, 20), tr.Start)
	assert.Equal(t, ts(2022, time.March, 5), tr.End)
}

func TestTimeRangeNoTimestamps(t *testing.T) {
	_, ok := Dataset{{OrgID: "a"}}.TimeRange()
	assert.False(t, ok)

	_, ok = Dataset{}.TimeRange()
	assert.False(t, ok)
}

func TestSliceTime(t *testing.T) {
	ds := Dataset{
		{JobID: "before", CreatedAt: ts(2022, time.January, 1)},
		{JobID: "at-start", CreatedAt: ts(2022, time.January, 10)},
		{JobID: "inside", CreatedAt: ts(2022, time.January, 15)},
		{JobID: "at-end", CreatedAt: ts(2022, time.January, 20)},
		{JobID: "after", CreatedAt: ts(2022, time.January, 25)},
		{JobID: "no-ts"},
	}

	got := ds.SliceTime(ts(2022, time.January, 10), ts(2022, time.January, 20))

	var jobs []string
	for _, r := range got {
		jobs = append(jobs, r.JobID)
	}
	// both bounds are inclusive
	assert.Equal(t, []string{"at-start", "inside", "at-end"}, jobs)
}

func TestOrgs(t *testing.T) {
	ds := Dataset{
		{OrgID: "b"},
		{OrgID: "a"},
		{OrgID: "b"},
		{OrgID: "c"},
	}
	assert.Equal(t, []string{"b", "a", "c"}, ds.Orgs())
}

func TestOrgTimestamps(t *testing.T) {
	ds := Dataset{
		{OrgID: "a", CreatedAt: ts(2022, time.March, 1)},
		{OrgID: "a", CreatedAt: ts(2022, time.January, 1)},
		{OrgID: "a", CreatedAt: ts(2022, time.February, 1)},
		{OrgID: "b"},
	}

	byOrg := ds.OrgTimestamps()
	require.Contains(t, byOrg, "a")
	assert.Equal(t, []time.Time{
		ts(2022, time.January, 1),
		ts(2022, time.February, 1),
		ts(2022, time.March, 1),
	}, byOrg["a"])

	// orgs with no usable timestamps are absent entirely
	assert.NotContains(t, byOrg, "b")
}
