package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/ibmetrics/pkg/dataset"
)

func TestFirstSeen(t *testing.T) {
	ds := recordsAt("org1",
		day(2022, time.February, 10),
		day(2022, time.January, 5),
		day(2022, time.March, 1),
	)
	ds = append(ds, recordsAt("org2", day(2022, time.February, 2))...)

	reduced := FirstSeen(ds)
	require.Len(t, reduced, 2)

	byOrg := make(map[string]time.Time)
	for _, r := range reduced {
		byOrg[r.OrgID] = r.CreatedAt
	}
	assert.Equal(t, day(2022, time.January, 5), byOrg["org1"])
	assert.Equal(t, day(2022, time.February, 2), byOrg["org2"])
}

func TestFirstSeenSkipsOrgsWithoutTimestamps(t *testing.T) {
	ds := dataset.Dataset{{OrgID: "org1", JobID: "j1"}}
	assert.Empty(t, FirstSeen(ds))
}

func TestNewOrgsPerMonth(t *testing.T) {
	ds := recordsAt("org1", day(2022, time.January, 5), day(2022, time.February, 7))
	ds = append(ds, recordsAt("org2", day(2022, time.February, 2))...)
	ds = append(ds, recordsAt("org3", day(2022, time.February, 20), day(2022, time.March, 2))...)

	counts, starts, err := NewOrgsPerMonth(ds)
	require.NoError(t, err)

	require.Len(t, starts, 3)
	assert.Equal(t, []int{1, 2, 0}, counts)
}

func TestReturningOrgsPerMonth(t *testing.T) {
	// January: org1 new. February: org1 returns, org2 new. March: only
	// org2 returns.
	ds := recordsAt("org1", day(2022, time.January, 5), day(2022, time.February, 7))
	ds = append(ds, recordsAt("org2", day(2022, time.February, 2), day(2022, time.March, 9))...)

	returning, starts, err := ReturningOrgsPerMonth(ds)
	require.NoError(t, err)

	require.Len(t, starts, 3)
	assert.Equal(t, []int{0, 1, 1}, returning)
	for i, n := range returning {
		assert.GreaterOrEqual(t, n, 0, "returning count for %s", starts[i])
	}
}

func TestWeeklyCohorts(t *testing.T) {
	anchor := day(2022, time.May, 2) // a Monday

	// week 1: org1 and org2; week 2: org2 and org3; week 3 (partial):
	// org1 again
	ds := recordsAt("org1", day(2022, time.May, 3), day(2022, time.May, 17))
	ds = append(ds, recordsAt("org2", day(2022, time.May, 4), day(2022, time.May, 10))...)
	ds = append(ds, recordsAt("org3", day(2022, time.May, 12))...)

	cohorts, err := WeeklyCohorts(ds, anchor)
	require.NoError(t, err)
	require.Len(t, cohorts, 3)

	assert.Equal(t, WeeklyCohort{Start: anchor, Orgs: 2, NewOrgs: 2}, cohorts[0])
	assert.Equal(t, WeeklyCohort{Start: anchor.AddDate(0, 0, 7), Orgs: 2, NewOrgs: 1}, cohorts[1])
	// the trailing partial week is still reported
	assert.Equal(t, WeeklyCohort{Start: anchor.AddDate(0, 0, 14), Orgs: 1, NewOrgs: 0}, cohorts[2])
}

func TestWeeklyCohortsEmptyDataset(t *testing.T) {
	_, err := WeeklyCohorts(dataset.Dataset{}, day(2022, time.May, 2))
	assert.ErrorIs(t, err, ErrEmptyDataset)
}
