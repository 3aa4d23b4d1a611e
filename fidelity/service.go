package fidelity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"vectorinsight/analytics"
)

// ErrNilStore marks a service constructed without its record store.
var ErrNilStore = errors.New("fidelity: record store is required")

const defaultDirectoryTimeout = 5 * time.Second

// Store is the read contract the engine needs from persistence.
type Store interface {
	MonthSessions(ctx context.Context, yearMonth string) ([]analytics.SessionAggregate, error)
	Collectors(ctx context.Context) ([]Collector, error)
}

// SiteList is one program's registered collection sites.
type SiteList struct {
	SiteIDs        []string
	ExpectedHouses int
}

// SiteDirectory resolves the valid-site set for a program. Implementations
// are expected to be remote; the service bounds every call with a timeout
// and falls back to configured defaults when the call fails.
type SiteDirectory interface {
	ProgramSites(ctx context.Context, programID string) (SiteList, error)
}

// Service computes monthly snapshots over store-backed records. directory
// may be nil; house coverage then runs against the configured default
// denominator without a valid-site intersection.
type Service struct {
	store     Store
	directory SiteDirectory
	cfg       Config
}

func NewService(store Store, directory SiteDirectory, cfg Config) (*Service, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if cfg.DirectoryTimeout <= 0 {
		cfg.DirectoryTimeout = defaultDirectoryTimeout
	}
	return &Service{store: store, directory: directory, cfg: cfg}, nil
}

// Snapshot computes the fidelity snapshot for one year-month. The site
// directory is consulted at most once; lookup failure degrades to the
// default expected-house count with a logged warning, never an error.
func (s *Service) Snapshot(ctx context.Context, yearMonth string) (Snapshot, error) {
	sessions, err := s.store.MonthSessions(ctx, yearMonth)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load sessions for %s: %w", yearMonth, err)
	}
	in := Inputs{
		YearMonth:      yearMonth,
		Sessions:       sessions,
		ExpectedHouses: s.cfg.DefaultExpectedHouses,
	}
	if len(sessions) == 0 {
		return Compute(in, s.cfg), nil
	}

	collectors, err := s.store.Collectors(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load collectors: %w", err)
	}
	in.Collectors = collectors

	if list, ok := s.lookupSites(ctx, programIDOf(sessions)); ok {
		in.ValidSites = map[string]bool{}
		for _, id := range list.SiteIDs {
			in.ValidSites[id] = true
		}
		if list.ExpectedHouses > 0 {
			in.ExpectedHouses = list.ExpectedHouses
		}
	}
	return Compute(in, s.cfg), nil
}

// Series computes snapshots for every month present in the store's
// sessions, oldest first.
func (s *Service) Series(ctx context.Context, months []string) ([]Snapshot, error) {
	snaps := make([]Snapshot, 0, len(months))
	for _, m := range months {
		snap, err := s.Snapshot(ctx, m)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *Service) lookupSites(ctx context.Context, programID string) (SiteList, bool) {
	if s.directory == nil {
		return SiteList{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DirectoryTimeout)
	defer cancel()
	list, err := s.directory.ProgramSites(ctx, programID)
	if err != nil {
		log.Printf("fidelity: site directory lookup program=%s failed, using default expected houses: %v", programID, err)
		return SiteList{}, false
	}
	return list, true
}

func programIDOf(sessions []analytics.SessionAggregate) string {
	for _, s := range sessions {
		if s.ProgramID != "" {
			return s.ProgramID
		}
	}
	return ""
}
