package server

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/ibmetrics/pkg/dataset"
	"github.com/osbuild/ibmetrics/pkg/observability"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestReloaderReload(t *testing.T) {
	store := NewStore(dataset.Dataset{})
	loads := 0
	loader := func(ctx context.Context) (dataset.Dataset, error) {
		loads++
		if loads == 1 {
			return nil, errors.New("source down")
		}
		return dataset.Dataset{{OrgID: "a"}}, nil
	}

	r := NewReloader(store, loader, quietLog(), observability.NewMetrics(nil))

	// a failed load keeps the previous snapshot
	r.Reload(context.Background())
	ds, version := store.Snapshot()
	assert.Empty(t, ds)
	assert.EqualValues(t, 1, version)

	r.Reload(context.Background())
	ds, version = store.Snapshot()
	require.Len(t, ds, 1)
	assert.EqualValues(t, 2, version)
}

func TestReloaderWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "builds.dump")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	store := NewStore(dataset.Dataset{})
	var loads atomic.Int32
	loader := func(ctx context.Context) (dataset.Dataset, error) {
		loads.Add(1)
		return dataset.Dataset{{OrgID: "a"}}, nil
	}

	r := NewReloader(store, loader, quietLog(), observability.NewMetrics(nil))
	// hourly schedule keeps cron out of the way; only the watch can fire
	require.NoError(t, r.Start("@every 1h", path))
	defer r.Stop()

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	// the watch debounces before reloading
	require.Eventually(t, func() bool {
		_, version := store.Snapshot()
		return version > 1
	}, 10*time.Second, 100*time.Millisecond)

	ds, _ := store.Snapshot()
	assert.Len(t, ds, 1)
	assert.GreaterOrEqual(t, loads.Load(), int32(1))
}

func TestReloaderWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "builds.dump")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	store := NewStore(dataset.Dataset{})
	loader := func(ctx context.Context) (dataset.Dataset, error) {
		return dataset.Dataset{{OrgID: "a"}}, nil
	}

	r := NewReloader(store, loader, quietLog(), observability.NewMetrics(nil))
	require.NoError(t, r.Start("@every 1h", path))
	defer r.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))

	// longer than the debounce interval
	time.Sleep(3 * time.Second)
	_, version := store.Snapshot()
	assert.EqualValues(t, 1, version)
}
