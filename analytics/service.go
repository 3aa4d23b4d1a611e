package analytics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"vectorinsight/ingest"
)

// ErrNilSource marks a service constructed without its record source.
var ErrNilSource = errors.New("analytics: record source is required")

// RecordSource is the read contract of the persistent store. Sessions are
// filtered first; Specimens must already be restricted to the session-id set
// that survives the same filter.
type RecordSource interface {
	Sessions(ctx context.Context, f Filter) ([]ingest.Session, error)
	Specimens(ctx context.Context, f Filter) ([]ingest.Specimen, error)
}

// MetricSink persists computed metric values per year-month bucket.
type MetricSink interface {
	SaveMonthlyMetric(ctx context.Context, yearMonth, name, category string, value float64, payload any) error
}

// Service computes snapshots over records supplied by an injected store
// handle, keeping the compute path testable with an in-memory fake.
type Service struct {
	source RecordSource
	sink   MetricSink
}

// NewService wires the aggregator to its collaborators. sink may be nil when
// persistence of monthly values is not wanted.
func NewService(source RecordSource, sink MetricSink) (*Service, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	return &Service{source: source, sink: sink}, nil
}

// Load fetches and joins the filtered record set.
func (s *Service) Load(ctx context.Context, f Filter) ([]SessionAggregate, []ingest.Specimen, error) {
	if err := f.Validate(); err != nil {
		return nil, nil, err
	}
	sessions, err := s.source.Sessions(ctx, f)
	if err != nil {
		return nil, nil, fmt.Errorf("load sessions: %w", err)
	}
	specimens, err := s.source.Specimens(ctx, f)
	if err != nil {
		return nil, nil, fmt.Errorf("load specimens: %w", err)
	}
	aggs, unmatched := Join(sessions, specimens)
	return aggs, unmatched, nil
}

// Snapshot computes the full metrics snapshot for the filtered record set.
// An empty result set is a valid snapshot, not an error.
func (s *Service) Snapshot(ctx context.Context, f Filter) (MetricsSnapshot, error) {
	aggs, unmatched, err := s.Load(ctx, f)
	if err != nil {
		return MetricsSnapshot{}, err
	}
	snap := Compute(aggs, AllSpecimens(aggs, unmatched))
	return snap, nil
}

// PersistMonthly writes the snapshot's per-month counts and headline rates
// to the metric sink. Persistence failures are logged and reported but do
// not invalidate the snapshot itself.
func (s *Service) PersistMonthly(ctx context.Context, snap MetricsSnapshot) error {
	if s.sink == nil {
		return nil
	}
	var firstErr error
	save := func(yearMonth, name, category string, value float64, payload any) {
		if err := s.sink.SaveMonthlyMetric(ctx, yearMonth, name, category, value, payload); err != nil {
			log.Printf("analytics: persist metric=%s month=%s failed: %v", name, yearMonth, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	for month, count := range snap.Temporal.SessionsByMonth {
		save(month, "sessions", "temporal", float64(count), nil)
	}
	for month, count := range snap.Temporal.SpecimensByMonth {
		save(month, "specimens", "temporal", float64(count), nil)
	}
	for month, density := range snap.IndoorResting.DensityByMonth {
		save(month, "psc_density", "indoor_resting", density, nil)
	}

	current := ingest.YearMonthOf(time.Now().UTC())
	save(current, "irs_rate_percent", "interventions", snap.Interventions.IrsRatePercent, nil)
	save(current, "llin_usage_rate_percent", "interventions", snap.Interventions.AvgLlinUsageRatePercent, nil)
	save(current, "anopheles_percent", "species", snap.Species.AnophelesPercent, snap.Species.Counts)
	save(current, "completeness_percent", "data_quality", snap.DataQuality.CompletenessPercent, nil)
	return firstErr
}
