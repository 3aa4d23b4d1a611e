// Package app wires the surveillance engine components together.
package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"vectorinsight/analytics"
	"vectorinsight/backfill"
	"vectorinsight/config"
	"vectorinsight/fetch"
	"vectorinsight/fidelity"
	"vectorinsight/internal/httpapi"
	"vectorinsight/internal/pipeline"
	"vectorinsight/internal/store"
	"vectorinsight/internal/watch"
	"vectorinsight/metrics"
	"vectorinsight/queue"
)

// App owns the long-lived components of the service.
type App struct {
	cfg      config.Config
	store    *store.Store
	queue    *queue.Queue
	pipeline *pipeline.Pipeline
	watcher  *watch.Watcher
	mux      *http.ServeMux
}

func New(cfg config.Config) (*App, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	var fetcher pipeline.Fetcher
	var directory fidelity.SiteDirectory
	if cfg.FetchEnabled {
		timeout := time.Duration(cfg.FetchTimeoutSec) * time.Second
		fetcher = fetch.NewClient(cfg.APIBaseURL, cfg.APIToken, timeout)
		directory = fetch.NewSiteDirectory(cfg.APIBaseURL, cfg.APIToken, timeout)
	} else {
		log.Println("fetch disabled, reprocessing archived extracts")
	}

	an, err := analytics.NewService(st, st)
	if err != nil {
		return nil, err
	}
	fd, err := fidelity.NewService(st, directory, fidelity.Config{
		RoleTitle:             cfg.Fidelity.RoleTitle,
		ReferenceMonth:        cfg.Fidelity.ReferenceMonth,
		DefaultExpectedHouses: cfg.Fidelity.DefaultExpectedHouses,
		VhtPerDistrict:        cfg.Fidelity.VhtPerDistrict,
		DirectoryTimeout:      time.Duration(cfg.Fidelity.DirectoryTimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	mx := metrics.New()
	q := queue.New(cfg.JobQueueSize, cfg.WorkerCount, time.Duration(cfg.JobTimeoutSec)*time.Second, mx)
	pl := pipeline.New(cfg, st, fetcher, an, fd, mx, q)
	watcher := watch.New(cfg, pl)

	mux := http.NewServeMux()
	httpapi.NewRouter(cfg, st, an, fd, mx, q, pl).Register(mux)

	return &App{cfg: cfg, store: st, queue: q, pipeline: pl, watcher: watcher, mux: mux}, nil
}

// Run starts workers, scheduler, watcher, and HTTP server, and blocks until
// the context ends or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.queue.Start(ctx)
	a.pipeline.StartScheduler(ctx)
	a.startBackfill(ctx)
	if err := a.watcher.Start(ctx); err != nil {
		return err
	}
	log.Printf("http listening on %s", a.cfg.HTTPPort)
	err := httpapi.Serve(ctx, a.cfg, a.mux)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.queue.Stop(stopCtx)
	if closeErr := a.store.Close(); closeErr != nil {
		log.Printf("close store: %v", closeErr)
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// startBackfill re-enqueues extracts that arrived after the last successful
// run, for example while the service was down.
func (a *App) startBackfill(ctx context.Context) {
	lastDone, err := a.store.LastSuccessfulRun(ctx)
	if err != nil {
		log.Printf("backfill skipped, run history unavailable: %v", err)
		return
	}
	repo := pipeline.NewBackfillRepo(a.pipeline, lastDone)
	backfill.Run(ctx, repo, a.cfg.BackfillLimit)
}

// Pipeline exposes the run trigger for control-plane tools.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipeline }

func (a *App) Store() *store.Store { return a.store }
func (a *App) Mux() *http.ServeMux { return a.mux }
