package fidelity

import (
	"context"
	"errors"
	"testing"

	"vectorinsight/analytics"
)

type fakeStore struct {
	sessions   map[string][]analytics.SessionAggregate
	collectors []Collector
	err        error
}

func (f *fakeStore) MonthSessions(ctx context.Context, yearMonth string) ([]analytics.SessionAggregate, error) {
	return f.sessions[yearMonth], f.err
}

func (f *fakeStore) Collectors(ctx context.Context) ([]Collector, error) {
	return f.collectors, f.err
}

type fakeDirectory struct {
	list  SiteList
	err   error
	calls int
}

func (f *fakeDirectory) ProgramSites(ctx context.Context, programID string) (SiteList, error) {
	f.calls++
	return f.list, f.err
}

func TestNewServiceRequiresStore(t *testing.T) {
	if _, err := NewService(nil, nil, testCfg); !errors.Is(err, ErrNilStore) {
		t.Fatalf("expected ErrNilStore, got %v", err)
	}
}

func TestSnapshotUsesDirectorySites(t *testing.T) {
	store := &fakeStore{sessions: map[string][]analytics.SessionAggregate{
		"2024-03": {
			monthSession("s1", "site-1", "Apac"),
			monthSession("s2", "ghost", "Apac"),
		},
	}}
	dir := &fakeDirectory{list: SiteList{
		SiteIDs:        []string{"site-1", "site-2"},
		ExpectedHouses: 4,
	}}
	svc, err := NewService(store, dir, testCfg)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := svc.Snapshot(context.Background(), "2024-03")
	if err != nil {
		t.Fatal(err)
	}
	if dir.calls != 1 {
		t.Fatalf("directory called %d times, want 1", dir.calls)
	}
	if snap.House.Numerator != 1 || snap.House.Denominator != 4 {
		t.Fatalf("house = %d/%d", snap.House.Numerator, snap.House.Denominator)
	}
}

func TestSnapshotFallsBackWhenDirectoryFails(t *testing.T) {
	store := &fakeStore{sessions: map[string][]analytics.SessionAggregate{
		"2024-03": {monthSession("s1", "site-1", "Apac")},
	}}
	dir := &fakeDirectory{err: errors.New("directory unreachable")}
	svc, _ := NewService(store, dir, testCfg)

	snap, err := svc.Snapshot(context.Background(), "2024-03")
	if err != nil {
		t.Fatalf("lookup failure must not surface: %v", err)
	}
	if snap.House.Denominator != testCfg.DefaultExpectedHouses {
		t.Fatalf("fallback denominator = %d, want %d",
			snap.House.Denominator, testCfg.DefaultExpectedHouses)
	}
	// No intersection available: the collected site still counts.
	if snap.House.Numerator != 1 {
		t.Fatalf("fallback numerator = %d, want 1", snap.House.Numerator)
	}
}

func TestSnapshotZeroSessionsSkipsDirectory(t *testing.T) {
	store := &fakeStore{sessions: map[string][]analytics.SessionAggregate{}}
	dir := &fakeDirectory{}
	svc, _ := NewService(store, dir, testCfg)

	snap, err := svc.Snapshot(context.Background(), "2024-09")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Message == "" {
		t.Fatal("expected no-data message")
	}
	if dir.calls != 0 {
		t.Fatalf("directory called %d times for empty month", dir.calls)
	}
}

func TestSeries(t *testing.T) {
	store := &fakeStore{sessions: map[string][]analytics.SessionAggregate{
		"2024-01": {monthSession("s1", "site-1", "Apac")},
		"2024-02": {monthSession("s2", "site-2", "Apac")},
	}}
	svc, _ := NewService(store, nil, testCfg)

	snaps, err := svc.Series(context.Background(), []string{"2024-01", "2024-02", "2024-03"})
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots", len(snaps))
	}
	if snaps[2].Message == "" {
		t.Fatal("empty trailing month should carry a message")
	}
}
