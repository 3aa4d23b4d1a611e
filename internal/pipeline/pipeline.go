// Package pipeline orchestrates one surveillance run: fetch extracts, clean
// and load records, compute metrics and fidelity, and export the report.
package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"vectorinsight/analytics"
	"vectorinsight/config"
	"vectorinsight/fetch"
	"vectorinsight/fidelity"
	"vectorinsight/ingest"
	"vectorinsight/metrics"
	"vectorinsight/queue"
	"vectorinsight/report"
)

// Fetcher downloads and archives the raw extracts. nil disables the fetch
// step; the pipeline then reprocesses the newest archived extracts.
type Fetcher interface {
	FetchAll(ctx context.Context, dir string, now time.Time) (fetch.Result, error)
}

// Store is the write contract the pipeline needs from persistence.
type Store interface {
	InsertSessions(ctx context.Context, sessions []ingest.Session) (int, error)
	InsertSpecimens(ctx context.Context, specimens []ingest.Specimen) (int, error)
	StartRun(ctx context.Context, runID, trigger string, ts time.Time) error
	FinishRun(ctx context.Context, runID, status string, sessions, specimens int, errMsg *string, ts time.Time) error
}

// Pipeline wires the run steps together.
type Pipeline struct {
	cfg       config.Config
	store     Store
	fetcher   Fetcher
	analytics *analytics.Service
	fidelity  *fidelity.Service
	mx        *metrics.Metrics
	q         *queue.Queue
}

func New(cfg config.Config, st Store, fetcher Fetcher, an *analytics.Service, fd *fidelity.Service, mx *metrics.Metrics, q *queue.Queue) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		fetcher:   fetcher,
		analytics: an,
		fidelity:  fd,
		mx:        mx,
		q:         q,
	}
}

// Enqueue schedules a full run on the worker queue. Returns false when the
// queue is full or not started.
func (p *Pipeline) Enqueue(trigger string) bool {
	runID := uuid.NewString()
	return p.q.Enqueue(queue.Job{
		ID:     runID,
		Source: trigger,
		Work: func(ctx context.Context) error {
			return p.run(ctx, runID, trigger)
		},
	})
}

// RunOnce executes a full run synchronously with a fresh run id.
func (p *Pipeline) RunOnce(ctx context.Context, trigger string) error {
	return p.run(ctx, uuid.NewString(), trigger)
}

// StartScheduler triggers an initial run and then one per configured
// interval until the context ends.
func (p *Pipeline) StartScheduler(ctx context.Context) {
	interval := time.Duration(p.cfg.RunIntervalSec) * time.Second
	go func() {
		p.Enqueue("startup")
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Enqueue("scheduled")
			}
		}
	}()
}

func (p *Pipeline) run(ctx context.Context, runID, trigger string) error {
	start := time.Now().UTC()
	if err := p.store.StartRun(ctx, runID, trigger, start); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	sessions, specimens, err := p.runSteps(ctx)
	status := "succeeded"
	var errMsg *string
	if err != nil {
		status = "failed"
		msg := err.Error()
		errMsg = &msg
	}
	p.mx.RecordRun(err)
	if finishErr := p.store.FinishRun(ctx, runID, status, sessions, specimens, errMsg, time.Now().UTC()); finishErr != nil {
		log.Printf("pipeline run=%s finish bookkeeping failed: %v", runID, finishErr)
	}
	log.Printf("pipeline run=%s trigger=%s status=%s sessions=%d specimens=%d duration_ms=%d",
		runID, trigger, status, sessions, specimens, time.Since(start).Milliseconds())
	return err
}

func (p *Pipeline) runSteps(ctx context.Context) (int, int, error) {
	sessionsPath, specimensPath, err := p.locateExtracts(ctx)
	if err != nil {
		return 0, 0, err
	}

	var sessions []ingest.Session
	var specimens []ingest.Specimen
	if sessionsPath != "" {
		raw, err := readSessionFile(sessionsPath)
		if err != nil {
			return 0, 0, fmt.Errorf("read sessions extract: %w", err)
		}
		sessions = ingest.CleanSessions(raw)
	}
	if specimensPath != "" {
		raw, err := readSpecimenFile(specimensPath)
		if err != nil {
			return 0, 0, fmt.Errorf("read specimens extract: %w", err)
		}
		specimens = ingest.CleanSpecimens(raw)
	}
	if len(sessions) == 0 && len(specimens) == 0 {
		return 0, 0, fmt.Errorf("no records in extracts")
	}

	nSessions, err := p.store.InsertSessions(ctx, sessions)
	if err != nil {
		return 0, 0, fmt.Errorf("load sessions: %w", err)
	}
	nSpecimens, err := p.store.InsertSpecimens(ctx, specimens)
	if err != nil {
		return nSessions, 0, fmt.Errorf("load specimens: %w", err)
	}
	p.mx.RecordIngest(nSessions, nSpecimens)

	snap, err := p.analytics.Snapshot(ctx, analytics.Filter{})
	if err != nil {
		return nSessions, nSpecimens, fmt.Errorf("compute metrics: %w", err)
	}
	if err := p.analytics.PersistMonthly(ctx, snap); err != nil {
		log.Printf("pipeline: metric persistence incomplete: %v", err)
	}

	aggs, _, err := p.analytics.Load(ctx, analytics.Filter{})
	if err != nil {
		return nSessions, nSpecimens, fmt.Errorf("load aggregates: %w", err)
	}
	for _, month := range fidelity.Months(aggs) {
		fsnap, err := p.fidelity.Snapshot(ctx, month)
		if err != nil {
			log.Printf("pipeline: fidelity month=%s failed: %v", month, err)
			continue
		}
		log.Printf("pipeline: fidelity month=%s composite=%.1f status=%s",
			month, fsnap.Composite.RatePercent, fsnap.Composite.Status)
	}

	now := time.Now().UTC()
	if path, err := report.ExportCSV(p.cfg.ExportsDir, report.BuildRows(aggs), now); err != nil {
		log.Printf("pipeline: report export failed: %v", err)
	} else {
		log.Printf("pipeline: report exported path=%s rows=%d", path, len(aggs))
	}
	if path, err := exportCleanedSessions(p.cfg.ExportsDir, sessions, now); err != nil {
		log.Printf("pipeline: cleaned export failed: %v", err)
	} else {
		log.Printf("pipeline: cleaned sessions exported path=%s", path)
	}
	return nSessions, nSpecimens, nil
}

// locateExtracts fetches fresh extracts when a fetcher is configured, or
// falls back to the newest archived files in the extracts directory.
func (p *Pipeline) locateExtracts(ctx context.Context) (string, string, error) {
	if p.fetcher != nil {
		res, err := p.fetcher.FetchAll(ctx, p.cfg.ExtractsDir, time.Now().UTC())
		if err != nil {
			return "", "", fmt.Errorf("fetch extracts: %w", err)
		}
		return res.SessionsPath, res.SpecimensPath, nil
	}
	sessionsPath := newestExtract(p.cfg.ExtractsDir, "surveillance_")
	specimensPath := newestExtract(p.cfg.ExtractsDir, "specimens_")
	if sessionsPath == "" && specimensPath == "" {
		return "", "", fmt.Errorf("no extracts found in %s", p.cfg.ExtractsDir)
	}
	return sessionsPath, specimensPath, nil
}

func readSessionFile(path string) ([]ingest.RawSessionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.ReadSessionRecords(f)
}

func readSpecimenFile(path string) ([]ingest.RawSpecimenRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.ReadSpecimenRecords(f)
}

func newestExtract(dir, prefix string) string {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"*.csv"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[len(matches)-1]
}

var cleanedSessionColumns = []string{
	"SessionID", "CollectionDate", "YearMonth", "District", "SiteID",
	"CollectionMethod", "CollectorName", "PeopleSleptInHouse",
	"LlinsAvailable", "LlinUsageRate", "WasIrsConducted", "DataQualityFlag",
}

func exportCleanedSessions(dir string, sessions []ingest.Session, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("cleaned_sessions_%s.csv", now.Format("2006-01-02")))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	w := csv.NewWriter(f)
	if err := w.Write(cleanedSessionColumns); err != nil {
		f.Close()
		return "", err
	}
	for _, s := range sessions {
		date := ""
		if s.CollectionDate != nil {
			date = s.CollectionDate.Format("2006-01-02")
		}
		rec := []string{
			s.SessionID, date, s.YearMonth, s.District, s.SiteID,
			s.CollectionMethod, s.CollectorName, formatFloat(s.PeopleSleptInHouse),
			formatFloat(s.LlinsAvailable), strconv.FormatFloat(s.LlinUsageRate, 'f', -1, 64),
			s.WasIrsConducted, s.DataQualityFlag,
		}
		if err := w.Write(rec); err != nil {
			f.Close()
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
