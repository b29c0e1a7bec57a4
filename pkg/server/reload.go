package server

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/osbuild/ibmetrics/pkg/dataset"
	"github.com/osbuild/ibmetrics/pkg/observability"
)

// Loader produces a fresh dataset snapshot from the configured source.
type Loader func(ctx context.Context) (dataset.Dataset, error)

// Reloader refreshes the dataset snapshot on a cron schedule and, when a
// dump path is watched, on file changes.
type Reloader struct {
	store   *Store
	load    Loader
	log     *logrus.Logger
	metrics *observability.Metrics

	cron    *cron.Cron
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewReloader wires a reloader to the snapshot store.
func NewReloader(store *Store, load Loader, log *logrus.Logger, m *observability.Metrics) *Reloader {
	return &Reloader{store: store, load: load, log: log, metrics: m, done: make(chan struct{})}
}

// Start schedules periodic reloads. watchPath may be empty to disable the
// file watch; the watch is registered on the parent directory because dump
// files are typically replaced by rename.
func (r *Reloader) Start(schedule, watchPath string) error {
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(schedule, func() { r.Reload(context.Background()) }); err != nil {
		return fmt.Errorf("scheduling dataset reload: %w", err)
	}
	r.cron.Start()

	if watchPath != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("creating dump watcher: %w", err)
		}
		if err := watcher.Add(filepath.Dir(watchPath)); err != nil {
			watcher.Close()
			return fmt.Errorf("watching %s: %w", watchPath, err)
		}
		r.watcher = watcher
		go r.watch(watchPath)
	}
	return nil
}

// Stop halts the schedule and the watcher.
func (r *Reloader) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
	if r.watcher != nil {
		r.watcher.Close()
	}
	close(r.done)
}

// Reload loads a fresh snapshot and swaps it in.
func (r *Reloader) Reload(ctx context.Context) {
	start := time.Now()
	ds, err := r.load(ctx)
	if err != nil {
		r.metrics.ReloadErrors.Inc()
		r.log.WithError(err).Error("dataset reload failed")
		return
	}
	r.store.Replace(ds)
	r.metrics.DatasetReloads.Inc()
	r.metrics.RecordsLoaded.Set(float64(len(ds)))
	r.log.WithFields(logrus.Fields{
		"records":  len(ds),
		"duration": time.Since(start).String(),
	}).Info("dataset reloaded")
}

func (r *Reloader) watch(path string) {
	// editors and dump jobs fire several events per replacement; debounce
	// with a short timer
	var pending *time.Timer
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(2*time.Second, func() { r.Reload(context.Background()) })
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.WithError(err).Warn("dump watcher error")
		case <-r.done:
			return
		}
	}
}
