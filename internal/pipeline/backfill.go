package pipeline

import (
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"vectorinsight/backfill"
)

// BackfillRepo adapts the extracts directory and run history to the backfill
// selection logic. Extracts older than the last successful run count as done.
type BackfillRepo struct {
	pipeline *Pipeline
	lastDone time.Time

	mu      sync.Mutex
	summary backfill.Summary
}

func NewBackfillRepo(p *Pipeline, lastDone time.Time) *BackfillRepo {
	return &BackfillRepo{pipeline: p, lastDone: lastDone}
}

func (r *BackfillRepo) ListCandidates(ctx context.Context) ([]backfill.Record, error) {
	entries, err := os.ReadDir(r.pipeline.cfg.ExtractsDir)
	if err != nil {
		return nil, err
	}
	var records []backfill.Record
	for _, entry := range entries {
		if entry.IsDir() || !isExtractName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		status := backfill.StatusQueued
		if !info.ModTime().After(r.lastDone) {
			status = backfill.StatusDone
		}
		records = append(records, backfill.Record{
			Filename:  entry.Name(),
			ModTime:   info.ModTime(),
			SizeBytes: info.Size(),
			Status:    status,
		})
	}
	return records, nil
}

func (r *BackfillRepo) QueueRecord(ctx context.Context, rec backfill.Record) backfill.EnqueueResult {
	if r.pipeline.Enqueue("backfill") {
		return backfill.EnqueueResult{Enqueued: true}
	}
	return backfill.EnqueueResult{DroppedFull: true}
}

func (r *BackfillRepo) OnBackfillComplete(summary backfill.Summary) {
	r.mu.Lock()
	r.summary = summary
	r.mu.Unlock()
	log.Printf("backfill complete: candidates=%d selected=%d enqueued=%d dropped=%d",
		summary.TotalCandidates, summary.Selected, summary.EnqueueSucceeded, summary.EnqueueDroppedFull)
}

// Summary returns the outcome of the most recent backfill pass.
func (r *BackfillRepo) Summary() backfill.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

func isExtractName(name string) bool {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, ".csv") {
		return false
	}
	return strings.HasPrefix(lower, "surveillance_") || strings.HasPrefix(lower, "specimens_")
}
