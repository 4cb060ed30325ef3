// Package daemon runs sphinxmk as a long-lived service: source changes and a
// periodic schedule feed a single-worker build queue; outcomes land in the
// history store, the status endpoint and (optionally) a NATS subject.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sphinxmk/internal/build"
	"git.home.luguber.info/inful/sphinxmk/internal/config"
	"git.home.luguber.info/inful/sphinxmk/internal/history"
	"git.home.luguber.info/inful/sphinxmk/internal/metrics"
)

// Daemon coordinates the watcher, scheduler, queue and status server.
type Daemon struct {
	mu         sync.RWMutex
	cfg        *config.Config
	configPath string
	svc        *build.Service

	queue      *Queue
	scheduler  *Scheduler
	srcWatcher *Watcher
	cfgWatcher *Watcher
	http       *httpServer
	store      *history.Store
	publisher  EventPublisher
	recorder   metrics.Recorder
	registry   *prom.Registry

	wg sync.WaitGroup
}

// New assembles a daemon from configuration. dataDir anchors relative
// persistent state paths (the history database).
func New(cfg *config.Config, configPath, dataDir string) (*Daemon, error) {
	d := &Daemon{
		cfg:        cfg,
		configPath: configPath,
		recorder:   metrics.NoopRecorder{},
		publisher:  NoopPublisher{},
	}

	if cfg.Daemon.MetricsEnabled {
		d.registry = prom.NewRegistry()
		d.recorder = metrics.NewPrometheusRecorder(d.registry)
	}

	dbPath := cfg.Daemon.HistoryDB
	if dbPath != ":memory:" && !filepath.IsAbs(dbPath) && dataDir != "" {
		dbPath = filepath.Join(dataDir, dbPath)
	}
	store, err := history.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	d.store = store

	if cfg.Daemon.NATS.Enabled {
		pub, err := NewNATSPublisher(cfg.Daemon.NATS)
		if err != nil {
			// Event publishing is best-effort infrastructure; the daemon
			// still builds docs without it.
			slog.Warn("Event publishing unavailable", "error", err)
		} else {
			d.publisher = pub
		}
	}

	d.svc = build.NewService(cfg).WithRecorder(d.recorder)
	d.queue = NewQueue(d).WithRecorder(d.recorder)

	scheduler, err := NewScheduler()
	if err != nil {
		store.Close()
		return nil, err
	}
	scheduler.SetEnqueuer(d.queue)
	d.scheduler = scheduler

	d.http = newHTTPServer(cfg.Daemon.Listen, d.queue, d.store, d.registry)
	return d, nil
}

// Start launches all daemon components. It returns once everything is
// running; shutdown happens via Stop.
func (d *Daemon) Start(ctx context.Context) error {
	cfg := d.config()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.queue.Run(ctx)
	}()

	if _, err := d.scheduler.SchedulePeriodicBuild(cfg.Daemon.Interval, "html"); err != nil {
		return err
	}
	d.scheduler.Start(ctx)

	srcWatcher, err := NewWatcher("source", cfg.Daemon.WatchDebounce, nil, func() {
		job := NewJob("html", JobTypeWatch, PriorityNormal)
		if err := d.queue.Enqueue(job); err != nil {
			slog.Error("Failed to enqueue watch build", "error", err)
		}
	})
	if err != nil {
		return err
	}
	if err := srcWatcher.AddTree(cfg.SourceDir); err != nil {
		return fmt.Errorf("watch source tree %s: %w", cfg.SourceDir, err)
	}
	srcWatcher.Start(ctx)
	d.srcWatcher = srcWatcher

	if d.configPath != "" {
		cfgWatcher, err := NewWatcher("config", cfg.Daemon.WatchDebounce, nil, d.reloadConfig)
		if err != nil {
			return err
		}
		if err := cfgWatcher.AddFile(d.configPath); err != nil {
			return fmt.Errorf("watch config file %s: %w", d.configPath, err)
		}
		cfgWatcher.Start(ctx)
		d.cfgWatcher = cfgWatcher
	}

	d.http.Start()
	slog.Info("Daemon started",
		"listen", cfg.Daemon.Listen,
		"interval", cfg.Daemon.Interval,
		"source_dir", cfg.SourceDir)
	return nil
}

// Stop shuts down components in reverse order, bounded by ctx.
func (d *Daemon) Stop(ctx context.Context) error {
	var firstErr error

	if d.cfgWatcher != nil {
		d.cfgWatcher.Stop()
	}
	if d.srcWatcher != nil {
		d.srcWatcher.Stop()
	}
	if err := d.scheduler.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := d.http.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	// The worker must stop even when the Run context is still live.
	d.queue.Stop()
	d.wg.Wait()
	d.publisher.Close()
	if err := d.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	slog.Info("Daemon stopped")
	return firstErr
}

// Build implements Builder: run the pipeline, record history, publish events.
func (d *Daemon) Build(ctx context.Context, job *Job) (*build.Result, error) {
	cfg := d.config()
	result, err := d.service().Run(ctx, build.Request{
		Target:    job.Target,
		Apidoc:    cfg.Apidoc.ModuleDir != "",
		Linkcheck: cfg.Build.Linkcheck,
		Trigger:   string(job.Type),
	})

	if result != nil {
		rec := history.Record{
			ID:         result.ID,
			Target:     result.Target,
			Status:     result.Status,
			Trigger:    string(job.Type),
			Commit:     result.Commit,
			StartedAt:  result.StartedAt,
			Duration:   result.Duration,
			OutputPath: result.OutputPath,
		}
		if result.Err != nil {
			rec.Error = result.Err.Error()
		}
		if storeErr := d.store.Append(ctx, rec); storeErr != nil {
			slog.Warn("Failed to record build history", "build_id", result.ID, "error", storeErr)
		}
		if pubErr := d.publisher.PublishBuildFinished(ctx, result, job.Type); pubErr != nil {
			slog.Warn("Failed to publish build event", "build_id", result.ID, "error", pubErr)
		}
	}
	return result, err
}

// reloadConfig re-reads the config file and swaps the build service. Invalid
// new configuration keeps the previous one active.
func (d *Daemon) reloadConfig() {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		slog.Error("Config reload failed, keeping previous configuration", "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Config reload rejected, keeping previous configuration", "error", err)
		return
	}

	d.mu.Lock()
	d.cfg = cfg
	d.svc = build.NewService(cfg).WithRecorder(d.recorder)
	d.mu.Unlock()
	slog.Info("Configuration reloaded", "path", d.configPath)
}

func (d *Daemon) config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

func (d *Daemon) service() *build.Service {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.svc
}
