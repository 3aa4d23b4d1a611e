package watch

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"vectorinsight/config"
)

// Runner accepts a pipeline run request. Returns false when the run could
// not be scheduled.
type Runner interface {
	Enqueue(trigger string) bool
}

// Watcher monitors the extracts directory for freshly dropped CSV files and
// triggers a pipeline run for each drop.
type Watcher struct {
	cfg    config.Config
	runner Runner
}

func New(cfg config.Config, runner Runner) *Watcher {
	return &Watcher{cfg: cfg, runner: runner}
}

func (w *Watcher) Start(ctx context.Context) error {
	if !w.cfg.EnableWatcher {
		log.Println("watcher disabled")
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-watcher.Events:
				if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 && isExtract(evt.Name) {
					if !w.runner.Enqueue("watcher") {
						log.Printf("watcher: queue full, drop for %s not scheduled", filepath.Base(evt.Name))
					}
				}
			case err := <-watcher.Errors:
				log.Printf("watcher error: %v", err)
			}
		}
	}()
	return watcher.Add(w.cfg.ExtractsDir)
}

// isExtract reports whether the path looks like a surveillance or specimen
// extract archive.
func isExtract(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	if !strings.HasSuffix(name, ".csv") {
		return false
	}
	return strings.HasPrefix(name, "surveillance_") || strings.HasPrefix(name, "specimens_")
}
