package server

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/ibmetrics/pkg/observability"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "ibmetrics:summary:v3", Key("summary", 3))
	assert.Equal(t, "ibmetrics:sliding:v1:org:7", Key("sliding", 1, "org", "7"))
}

func TestResultCacheRoundtrip(t *testing.T) {
	c, err := NewResultCache("", "", time.Minute, observability.NewMetrics(nil))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := Key("monthly", 1, "users")

	var out Series
	assert.False(t, c.Get(ctx, "monthly", key, &out))

	in := Series{Counts: []int{3, 5}, Timestamps: []time.Time{
		time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2022, time.February, 1, 0, 0, 0, 0, time.UTC),
	}}
	c.Set(ctx, key, in)

	require.True(t, c.Get(ctx, "monthly", key, &out))
	assert.Equal(t, in.Counts, out.Counts)
	require.Len(t, out.Timestamps, 2)
	assert.True(t, out.Timestamps[0].Equal(in.Timestamps[0]))
}

func TestResultCacheVersionKeysDiffer(t *testing.T) {
	c, err := NewResultCache("", "", time.Minute, observability.NewMetrics(nil))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, Key("summary", 1), map[string]int{"builds": 10})

	var out map[string]int
	assert.False(t, c.Get(ctx, "summary", Key("summary", 2), &out),
		"entries written under the old dataset version must not be served")
}

func TestResultCacheRedisLayer(t *testing.T) {
	srv := miniredis.RunT(t)

	m := observability.NewMetrics(nil)
	c, err := NewResultCache(srv.Addr(), "", time.Minute, m)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := Key("dau-mau", 1)
	c.Set(ctx, key, RatioSeries{Ratios: []float64{0.2}})

	require.True(t, srv.Exists(key), "value should be mirrored to redis")

	// drop the in-process layer; the value must come back from redis
	c.lru.Purge()
	var out RatioSeries
	require.True(t, c.Get(ctx, "dau-mau", key, &out))
	assert.Equal(t, []float64{0.2}, out.Ratios)

	// and the redis fill repopulates the LRU
	_, ok := c.lru.Get(key)
	assert.True(t, ok)
}

func TestResultCacheRedisUnreachable(t *testing.T) {
	_, err := NewResultCache("127.0.0.1:1", "", time.Minute, observability.NewMetrics(nil))
	assert.Error(t, err)
}
