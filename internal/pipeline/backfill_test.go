package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vectorinsight/backfill"
	"vectorinsight/config"
	"vectorinsight/metrics"
	"vectorinsight/queue"
)

func TestBackfillRepoListCandidates(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "surveillance_2024_01.csv")
	fresh := filepath.Join(dir, "specimens_2024_02.csv")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("SessionID\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cutoff := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, cutoff.Add(-time.Hour), cutoff.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	st := newMemStore()
	p := testPipeline(t, st, config.Config{ExtractsDir: dir})
	repo := NewBackfillRepo(p, cutoff)

	records, err := repo.ListCandidates(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d candidates", len(records))
	}
	byName := map[string]backfill.Record{}
	for _, r := range records {
		byName[r.Filename] = r
	}
	if byName["surveillance_2024_01.csv"].Status != backfill.StatusDone {
		t.Fatalf("old extract status = %q", byName["surveillance_2024_01.csv"].Status)
	}
	if byName["specimens_2024_02.csv"].Status != backfill.StatusQueued {
		t.Fatalf("fresh extract status = %q", byName["specimens_2024_02.csv"].Status)
	}
}

func TestBackfillRepoQueueRecord(t *testing.T) {
	st := newMemStore()
	mx := metrics.New()
	q := queue.New(4, 0, time.Second, mx)
	p := New(config.Config{}, st, nil, nil, nil, mx, q)
	repo := NewBackfillRepo(p, time.Time{})

	// Queue not started: enqueue is refused.
	res := repo.QueueRecord(context.Background(), backfill.Record{Filename: "surveillance_2024_01.csv"})
	if res.Enqueued || !res.DroppedFull {
		t.Fatalf("unexpected result before start: %+v", res)
	}

	q.Start(context.Background())
	res = repo.QueueRecord(context.Background(), backfill.Record{Filename: "surveillance_2024_01.csv"})
	if !res.Enqueued {
		t.Fatalf("unexpected result after start: %+v", res)
	}
}

func TestBackfillRepoSummary(t *testing.T) {
	st := newMemStore()
	p := testPipeline(t, st, config.Config{})
	repo := NewBackfillRepo(p, time.Time{})

	repo.OnBackfillComplete(backfill.Summary{TotalCandidates: 3, Selected: 2, EnqueueSucceeded: 2})
	got := repo.Summary()
	if got.TotalCandidates != 3 || got.Selected != 2 || got.EnqueueSucceeded != 2 {
		t.Fatalf("summary = %+v", got)
	}
}
