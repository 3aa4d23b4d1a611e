package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vectorinsight/fidelity"
	"vectorinsight/ingest"
	"vectorinsight/taxonomy"
)

// registerCollector records the session's collector and its monthly activity.
// Sessions without a named collector are skipped.
func registerCollector(ctx context.Context, tx *sql.Tx, rec ingest.Session) error {
	if rec.CollectorName == "" || rec.CollectorName == taxonomy.Unknown {
		return nil
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO collectors(name, role, district, last_trained, training_type, created_at)
		VALUES(?, ?, ?, '', '', ?)
		ON CONFLICT(name) DO UPDATE SET role=excluded.role, district=excluded.district`,
		rec.CollectorName, rec.CollectorTitle, rec.District, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("register collector %s: %w", rec.CollectorName, err)
	}
	if rec.YearMonth == "" {
		return nil
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO collector_activity(name, year_month, sessions)
		VALUES(?, ?, 1)
		ON CONFLICT(name, year_month) DO UPDATE SET sessions=sessions+1`,
		rec.CollectorName, rec.YearMonth)
	if err != nil {
		return fmt.Errorf("record collector activity %s: %w", rec.CollectorName, err)
	}
	return nil
}

// RecordTraining updates a collector's training fields.
func (s *Store) RecordTraining(ctx context.Context, name, lastTrained, trainingType string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE collectors SET last_trained=?, training_type=? WHERE name=?`,
		lastTrained, trainingType, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("collector %q is not registered", name)
	}
	return nil
}

// Collectors returns every registered collector with its activity months.
func (s *Store) Collectors(ctx context.Context) ([]fidelity.Collector, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, role, district, last_trained, training_type FROM collectors ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var collectors []fidelity.Collector
	index := map[string]int{}
	for rows.Next() {
		var c fidelity.Collector
		if err := rows.Scan(&c.Name, &c.Role, &c.District, &c.LastTrained, &c.TrainingType); err != nil {
			return nil, err
		}
		c.ActiveMonths = map[string]bool{}
		index[c.Name] = len(collectors)
		collectors = append(collectors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	activity, err := s.db.QueryContext(ctx, `SELECT name, year_month FROM collector_activity`)
	if err != nil {
		return nil, err
	}
	defer activity.Close()
	for activity.Next() {
		var name, yearMonth string
		if err := activity.Scan(&name, &yearMonth); err != nil {
			return nil, err
		}
		if i, ok := index[name]; ok {
			collectors[i].ActiveMonths[yearMonth] = true
		}
	}
	return collectors, activity.Err()
}
