// Command ibmetricsd serves the computed usage metrics over HTTP. It loads
// a dataset snapshot from the configured source, refreshes it on a cron
// schedule (and on dump file changes when watching is enabled), and exposes
// the metric series plus Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/osbuild/ibmetrics/pkg/config"
	"github.com/osbuild/ibmetrics/pkg/dataset"
	"github.com/osbuild/ibmetrics/pkg/footprint"
	"github.com/osbuild/ibmetrics/pkg/ingest"
	"github.com/osbuild/ibmetrics/pkg/observability"
	"github.com/osbuild/ibmetrics/pkg/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Log.Level, cfg.Log.JSON, os.Stderr)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("daemon failed")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx := context.Background()
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	loader, err := buildLoader(ctx, cfg, log)
	if err != nil {
		return err
	}

	ds, err := loader(ctx)
	if err != nil {
		return fmt.Errorf("initial dataset load: %w", err)
	}
	log.WithField("records", len(ds)).Info("dataset loaded")
	metrics.RecordsLoaded.Set(float64(len(ds)))

	mapper := footprint.Default()
	if cfg.Data.FootprintMap != "" {
		f, err := os.Open(cfg.Data.FootprintMap)
		if err != nil {
			return fmt.Errorf("opening footprint map: %w", err)
		}
		mapper, err = footprint.Load(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	cache, err := server.NewResultCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.TTL, metrics)
	if err != nil {
		return err
	}
	defer cache.Close()

	store := server.NewStore(ds)
	svc := server.NewService(store, mapper, cache, log, metrics)

	reloader := server.NewReloader(store, loader, log, metrics)
	watchPath := ""
	if cfg.Data.Watch && cfg.Data.DumpPath != "" {
		watchPath = cfg.Data.DumpPath
	}
	if err := reloader.Start(cfg.Data.ReloadSchedule, watchPath); err != nil {
		return err
	}
	defer reloader.Stop()

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      svc.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildLoader picks the configured data source and wraps it as a Loader.
// Dump files go through the parsed-dataset cache keyed by base name.
func buildLoader(ctx context.Context, cfg *config.Config, log *logrus.Logger) (server.Loader, error) {
	switch {
	case cfg.Data.DumpPath != "":
		cache, err := ingest.OpenCache(cfg.Data.CacheDir)
		if err != nil {
			log.WithError(err).Warn("dataset cache unavailable")
			cache = nil
		}
		path := cfg.Data.DumpPath
		return func(ctx context.Context) (dataset.Dataset, error) {
			// key on the modification time so a replaced dump is
			// never served from the cache
			key := filepath.Base(path)
			if fi, err := os.Stat(path); err == nil {
				key = fmt.Sprintf("%s:%d", key, fi.ModTime().Unix())
			}
			if cache != nil {
				if ds, ok, err := cache.Get(ctx, key); err == nil && ok {
					return ds, nil
				}
			}
			ds, err := ingest.ReadDumpFile(path, log)
			if err != nil {
				return nil, err
			}
			if cache != nil {
				if err := cache.Put(ctx, key, ds); err != nil {
					log.WithError(err).Warn("caching dataset failed")
				}
			}
			return ds, nil
		}, nil

	case cfg.Data.PostgresURL != "":
		src, err := ingest.NewPostgresSource(cfg.Data.PostgresURL)
		if err != nil {
			return nil, err
		}
		return src.Load, nil

	case cfg.Data.S3.Bucket != "":
		src, err := ingest.NewS3Source(ctx, cfg.Data.S3, log)
		if err != nil {
			return nil, err
		}
		key := cfg.Data.S3Key
		return func(ctx context.Context) (dataset.Dataset, error) {
			return src.Load(ctx, key)
		}, nil
	}
	return nil, fmt.Errorf("no data source configured")
}
