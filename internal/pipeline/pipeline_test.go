package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vectorinsight/analytics"
	"vectorinsight/config"
	"vectorinsight/fidelity"
	"vectorinsight/ingest"
	"vectorinsight/metrics"
)

type memStore struct {
	sessions  []ingest.Session
	specimens []ingest.Specimen
	started   []string
	finished  map[string]string
}

func newMemStore() *memStore {
	return &memStore{finished: map[string]string{}}
}

func (m *memStore) InsertSessions(ctx context.Context, sessions []ingest.Session) (int, error) {
	m.sessions = append(m.sessions, sessions...)
	return len(sessions), nil
}

func (m *memStore) InsertSpecimens(ctx context.Context, specimens []ingest.Specimen) (int, error) {
	m.specimens = append(m.specimens, specimens...)
	return len(specimens), nil
}

func (m *memStore) StartRun(ctx context.Context, runID, trigger string, ts time.Time) error {
	m.started = append(m.started, runID)
	return nil
}

func (m *memStore) FinishRun(ctx context.Context, runID, status string, sessions, specimens int, errMsg *string, ts time.Time) error {
	m.finished[runID] = status
	return nil
}

func (m *memStore) Sessions(ctx context.Context, f analytics.Filter) ([]ingest.Session, error) {
	return m.sessions, nil
}

func (m *memStore) Specimens(ctx context.Context, f analytics.Filter) ([]ingest.Specimen, error) {
	return m.specimens, nil
}

func (m *memStore) MonthSessions(ctx context.Context, yearMonth string) ([]analytics.SessionAggregate, error) {
	var month []ingest.Session
	for _, s := range m.sessions {
		if s.YearMonth == yearMonth {
			month = append(month, s)
		}
	}
	aggs, _ := analytics.Join(month, m.specimens)
	return aggs, nil
}

func (m *memStore) Collectors(ctx context.Context) ([]fidelity.Collector, error) {
	return nil, nil
}

const sessionsCSV = `SessionID,SessionType,SessionCollectionDate,SessionCollectionMethod,SessionCollectorName,SessionCollectorTitle,SiteID,SiteDistrict,ProgramCountry,NumPeopleSleptInHouse,NumLlinsAvailable,NumPeopleSleptUnderLlin,WasIrsConducted
s1,SURVEILLANCE,2024-03-10,Pyrethrum spray catch,Okello,Village Health Team Member,site-1,Apac,Uganda,4,2,2,Yes
s2,DATA_COLLECTION,2024-03-11,PSC,Auma,Village Health Team Member,site-2,Apac,Uganda,3,1,1,No
`

const specimensCSV = `SpecimenID,SessionID,Species,Sex,AbdomenStatus,CapturedAt
p1,s1,Anopheles gambiae,Female,Fully Fed,2024-03-10
p2,s1,Culex quinquefasciatus,Male,Unfed,2024-03-10
`

func writeExtracts(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "surveillance_2024_03.csv"), []byte(sessionsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "specimens_2024_03.csv"), []byte(specimensCSV), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testPipeline(t *testing.T, st *memStore, cfg config.Config) *Pipeline {
	t.Helper()
	an, err := analytics.NewService(st, nil)
	if err != nil {
		t.Fatal(err)
	}
	fd, err := fidelity.NewService(st, nil, fidelity.Config{
		RoleTitle:             "Village Health Team Member",
		ReferenceMonth:        "2024-01",
		DefaultExpectedHouses: 100,
		VhtPerDistrict:        10,
	})
	if err != nil {
		t.Fatal(err)
	}
	return New(cfg, st, nil, an, fd, metrics.New(), nil)
}

func TestRunOnceProcessesNewestExtracts(t *testing.T) {
	extracts := t.TempDir()
	exports := t.TempDir()
	writeExtracts(t, extracts)

	st := newMemStore()
	p := testPipeline(t, st, config.Config{ExtractsDir: extracts, ExportsDir: exports, RunIntervalSec: 3600})

	if err := p.RunOnce(context.Background(), "test"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// Only the SURVEILLANCE session survives the type filter.
	if len(st.sessions) != 1 || st.sessions[0].SessionID != "s1" {
		t.Fatalf("loaded sessions: %+v", st.sessions)
	}
	if len(st.specimens) != 2 {
		t.Fatalf("loaded %d specimens", len(st.specimens))
	}
	if len(st.started) != 1 {
		t.Fatalf("started runs = %v", st.started)
	}
	if status := st.finished[st.started[0]]; status != "succeeded" {
		t.Fatalf("run status = %q", status)
	}

	entries, err := os.ReadDir(exports)
	if err != nil {
		t.Fatal(err)
	}
	var sawReport, sawCleaned bool
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "vectorcam_report_") {
			sawReport = true
		}
		if strings.HasPrefix(e.Name(), "cleaned_sessions_") {
			sawCleaned = true
		}
	}
	if !sawReport || !sawCleaned {
		t.Fatalf("exports missing: report=%v cleaned=%v", sawReport, sawCleaned)
	}
}

func TestRunOnceFailsWithoutExtracts(t *testing.T) {
	st := newMemStore()
	p := testPipeline(t, st, config.Config{ExtractsDir: t.TempDir(), ExportsDir: t.TempDir()})

	if err := p.RunOnce(context.Background(), "test"); err == nil {
		t.Fatal("expected error with empty extracts dir")
	}
	if len(st.started) != 1 {
		t.Fatal("failed run must still be recorded")
	}
	for _, status := range st.finished {
		if status != "failed" {
			t.Fatalf("run status = %q", status)
		}
	}
}

func TestNewestExtractPicksLatestStamp(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"surveillance_2024_01.csv", "surveillance_2024_03.csv", "surveillance_2024_02.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SessionID\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got := newestExtract(dir, "surveillance_")
	if filepath.Base(got) != "surveillance_2024_03.csv" {
		t.Fatalf("newest = %q", got)
	}
}
