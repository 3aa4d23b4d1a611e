// Package store wraps SQLite persistence for cleaned surveillance records,
// computed monthly metrics, collector registration, and pipeline run
// bookkeeping.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS surveillance_sessions (
			session_id TEXT PRIMARY KEY,
			house_number TEXT,
			collector_title TEXT,
			collector_name TEXT,
			collection_date TIMESTAMP,
			year INTEGER,
			month INTEGER,
			quarter INTEGER,
			year_month TEXT,
			collection_method_raw TEXT,
			collection_method TEXT,
			specimen_condition TEXT,
			notes TEXT,
			people_slept REAL,
			months_since_irs REAL,
			llins_available REAL,
			people_slept_under_llin REAL,
			was_irs_conducted TEXT,
			llin_type TEXT,
			llin_brand TEXT,
			llin_usage_rate REAL,
			site_id TEXT,
			district TEXT,
			sub_county TEXT,
			parish TEXT,
			sentinel_site TEXT,
			health_center TEXT,
			program_id TEXT,
			program_name TEXT,
			country TEXT,
			data_quality_flag TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_year_month ON surveillance_sessions(year_month);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_district ON surveillance_sessions(district);`,
		`CREATE TABLE IF NOT EXISTS specimens (
			specimen_id TEXT PRIMARY KEY,
			session_id TEXT,
			species TEXT,
			normalized_species TEXT,
			species_group TEXT,
			sex TEXT,
			abdomen_status TEXT,
			is_fed INTEGER,
			is_unfed INTEGER,
			captured_at TIMESTAMP,
			capture_year INTEGER,
			capture_month INTEGER,
			capture_quarter INTEGER,
			capture_year_month TEXT,
			collection_method_raw TEXT,
			collection_method TEXT,
			district TEXT,
			country TEXT,
			data_quality_flag TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_specimens_session ON specimens(session_id);`,
		`CREATE INDEX IF NOT EXISTS idx_specimens_year_month ON specimens(capture_year_month);`,
		`CREATE TABLE IF NOT EXISTS collectors (
			name TEXT PRIMARY KEY,
			role TEXT,
			district TEXT,
			last_trained TEXT,
			training_type TEXT,
			created_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS collector_activity (
			name TEXT,
			year_month TEXT,
			sessions INTEGER,
			UNIQUE(name, year_month)
		);`,
		`CREATE TABLE IF NOT EXISTS monthly_metrics (
			year_month TEXT,
			metric_name TEXT,
			category TEXT,
			metric_value REAL,
			metric_json TEXT,
			computed_at TIMESTAMP,
			UNIQUE(year_month, metric_name, category)
		);`,
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			run_id TEXT PRIMARY KEY,
			trigger_source TEXT,
			status TEXT,
			sessions INTEGER,
			specimens INTEGER,
			last_error TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// MetricRow is one persisted monthly metric value.
type MetricRow struct {
	YearMonth  string    `json:"year_month"`
	MetricName string    `json:"metric_name"`
	Category   string    `json:"category"`
	Value      float64   `json:"value"`
	JSON       *string   `json:"json,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}

// SaveMonthlyMetric upserts one metric value for a year-month. payload, when
// non-nil, is stored as JSON alongside the scalar value.
func (s *Store) SaveMonthlyMetric(ctx context.Context, yearMonth, name, category string, value float64, payload any) error {
	var metricJSON *string
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal metric payload: %w", err)
		}
		str := string(raw)
		metricJSON = &str
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO monthly_metrics(year_month, metric_name, category, metric_value, metric_json, computed_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(year_month, metric_name, category) DO UPDATE SET metric_value=excluded.metric_value, metric_json=excluded.metric_json, computed_at=excluded.computed_at`,
		yearMonth, name, category, value, metricJSON, time.Now().UTC())
	return err
}

func (s *Store) MonthlyMetrics(ctx context.Context, yearMonth string) ([]MetricRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT year_month, metric_name, category, metric_value, metric_json, computed_at
		FROM monthly_metrics WHERE year_month=? ORDER BY category, metric_name`, yearMonth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var metrics []MetricRow
	for rows.Next() {
		var m MetricRow
		var metricJSON sql.NullString
		if err := rows.Scan(&m.YearMonth, &m.MetricName, &m.Category, &m.Value, &metricJSON, &m.ComputedAt); err != nil {
			return nil, err
		}
		if metricJSON.Valid {
			m.JSON = &metricJSON.String
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// Run is one pipeline execution record.
type Run struct {
	RunID      string     `json:"run_id"`
	Trigger    string     `json:"trigger"`
	Status     string     `json:"status"`
	Sessions   int        `json:"sessions"`
	Specimens  int        `json:"specimens"`
	LastError  *string    `json:"last_error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (s *Store) StartRun(ctx context.Context, runID, trigger string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO pipeline_runs(run_id, trigger_source, status, sessions, specimens, started_at)
		VALUES(?, ?, 'running', 0, 0, ?)`, runID, trigger, ts)
	return err
}

func (s *Store) FinishRun(ctx context.Context, runID, status string, sessions, specimens int, errMsg *string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE pipeline_runs SET status=?, sessions=?, specimens=?, last_error=?, finished_at=? WHERE run_id=?`,
		status, sessions, specimens, errMsg, ts, runID)
	return err
}

func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, trigger_source, status, sessions, specimens, last_error, started_at, finished_at
		FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		var errMsg sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&r.RunID, &r.Trigger, &r.Status, &r.Sessions, &r.Specimens, &errMsg, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			r.LastError = &errMsg.String
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastSuccessfulRun returns the finish time of the newest succeeded run, or
// the zero time when none has completed yet.
func (s *Store) LastSuccessfulRun(ctx context.Context) (time.Time, error) {
	var finished sql.NullTime
	row := s.db.QueryRowContext(ctx, `SELECT MAX(finished_at) FROM pipeline_runs WHERE status='succeeded'`)
	if err := row.Scan(&finished); err != nil {
		return time.Time{}, err
	}
	if !finished.Valid {
		return time.Time{}, nil
	}
	return finished.Time, nil
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}
