package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"vectorinsight/analytics"
	"vectorinsight/ingest"
)

const sessionColumns = `session_id, house_number, collector_title, collector_name, collection_date,
	year, month, quarter, year_month, collection_method_raw, collection_method,
	specimen_condition, notes, people_slept, months_since_irs, llins_available,
	people_slept_under_llin, was_irs_conducted, llin_type, llin_brand, llin_usage_rate,
	site_id, district, sub_county, parish, sentinel_site, health_center,
	program_id, program_name, country, data_quality_flag, created_at, updated_at`

const specimenColumns = `specimen_id, session_id, species, normalized_species, species_group,
	sex, abdomen_status, is_fed, is_unfed, captured_at, capture_year, capture_month,
	capture_quarter, capture_year_month, collection_method_raw, collection_method,
	district, country, data_quality_flag`

// InsertSessions upserts cleaned sessions and auto-registers their collectors.
// Returns the number of rows written.
func (s *Store) InsertSessions(ctx context.Context, sessions []ingest.Session) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt := `INSERT INTO surveillance_sessions(` + sessionColumns + `)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(session_id) DO UPDATE SET
			house_number=excluded.house_number, collector_title=excluded.collector_title,
			collector_name=excluded.collector_name, collection_date=excluded.collection_date,
			year=excluded.year, month=excluded.month, quarter=excluded.quarter,
			year_month=excluded.year_month, collection_method_raw=excluded.collection_method_raw,
			collection_method=excluded.collection_method, specimen_condition=excluded.specimen_condition,
			notes=excluded.notes, people_slept=excluded.people_slept,
			months_since_irs=excluded.months_since_irs, llins_available=excluded.llins_available,
			people_slept_under_llin=excluded.people_slept_under_llin,
			was_irs_conducted=excluded.was_irs_conducted, llin_type=excluded.llin_type,
			llin_brand=excluded.llin_brand, llin_usage_rate=excluded.llin_usage_rate,
			site_id=excluded.site_id, district=excluded.district, sub_county=excluded.sub_county,
			parish=excluded.parish, sentinel_site=excluded.sentinel_site,
			health_center=excluded.health_center, program_id=excluded.program_id,
			program_name=excluded.program_name, country=excluded.country,
			data_quality_flag=excluded.data_quality_flag, updated_at=excluded.updated_at`
	written := 0
	for _, rec := range sessions {
		if rec.SessionID == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, stmt,
			rec.SessionID, rec.HouseNumber, rec.CollectorTitle, rec.CollectorName, rec.CollectionDate,
			rec.Year, rec.Month, rec.Quarter, rec.YearMonth, rec.CollectionMethodRaw, rec.CollectionMethod,
			rec.SpecimenCondition, rec.Notes, rec.PeopleSleptInHouse, rec.MonthsSinceIrs, rec.LlinsAvailable,
			rec.PeopleSleptUnderLlin, rec.WasIrsConducted, rec.LlinType, rec.LlinBrand, rec.LlinUsageRate,
			rec.SiteID, rec.District, rec.SubCounty, rec.Parish, rec.SentinelSite, rec.HealthCenter,
			rec.ProgramID, rec.ProgramName, rec.Country, rec.DataQualityFlag, rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			return 0, fmt.Errorf("insert session %s: %w", rec.SessionID, err)
		}
		if err := registerCollector(ctx, tx, rec); err != nil {
			return 0, err
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

// InsertSpecimens upserts cleaned specimens. Returns the number of rows written.
func (s *Store) InsertSpecimens(ctx context.Context, specimens []ingest.Specimen) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt := `INSERT INTO specimens(` + specimenColumns + `)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(specimen_id) DO UPDATE SET
			session_id=excluded.session_id, species=excluded.species,
			normalized_species=excluded.normalized_species, species_group=excluded.species_group,
			sex=excluded.sex, abdomen_status=excluded.abdomen_status,
			is_fed=excluded.is_fed, is_unfed=excluded.is_unfed,
			captured_at=excluded.captured_at, capture_year=excluded.capture_year,
			capture_month=excluded.capture_month, capture_quarter=excluded.capture_quarter,
			capture_year_month=excluded.capture_year_month,
			collection_method_raw=excluded.collection_method_raw,
			collection_method=excluded.collection_method, district=excluded.district,
			country=excluded.country, data_quality_flag=excluded.data_quality_flag`
	written := 0
	for _, rec := range specimens {
		if rec.SpecimenID == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, stmt,
			rec.SpecimenID, rec.SessionID, rec.Species, rec.NormalizedSpecies, rec.SpeciesGroup,
			rec.Sex, rec.AbdomenStatus, rec.IsFed, rec.IsUnfed, rec.CapturedAt, rec.CaptureYear,
			rec.CaptureMonth, rec.CaptureQuarter, rec.CaptureYearMonth, rec.CollectionMethodRaw,
			rec.CollectionMethod, rec.District, rec.Country, rec.DataQualityFlag)
		if err != nil {
			return 0, fmt.Errorf("insert specimen %s: %w", rec.SpecimenID, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// sessionFilterWhere builds the WHERE clause for the session-level filter
// criteria. The bool reports whether any criterion applies.
func sessionFilterWhere(f analytics.Filter) (string, []any, bool) {
	var clauses []string
	var args []any
	if f.From != nil {
		clauses = append(clauses, "collection_date >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		clauses = append(clauses, "collection_date <= ?")
		args = append(args, *f.To)
	}
	if len(f.Districts) > 0 {
		clauses = append(clauses, "district IN ("+placeholders(len(f.Districts))+")")
		for _, d := range f.Districts {
			args = append(args, d)
		}
	}
	if len(f.Methods) > 0 {
		clauses = append(clauses, "collection_method IN ("+placeholders(len(f.Methods))+")")
		for _, m := range f.Methods {
			args = append(args, m)
		}
	}
	if len(clauses) == 0 {
		return "", nil, false
	}
	return strings.Join(clauses, " AND "), args, true
}

// Sessions returns cleaned sessions matching the filter.
func (s *Store) Sessions(ctx context.Context, f analytics.Filter) ([]ingest.Session, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	query := `SELECT ` + sessionColumns + ` FROM surveillance_sessions`
	where, args, ok := sessionFilterWhere(f)
	if ok {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY collection_date`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []ingest.Session
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	return sessions, rows.Err()
}

// Specimens returns cleaned specimens matching the filter. Session-level
// criteria restrict specimens to the session-id set that survives the same
// filter; the species filter then applies on top.
func (s *Store) Specimens(ctx context.Context, f analytics.Filter) ([]ingest.Specimen, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	query := `SELECT ` + specimenColumns + ` FROM specimens`
	var clauses []string
	var args []any
	if where, sessionArgs, ok := sessionFilterWhere(f); ok {
		clauses = append(clauses, `session_id IN (SELECT session_id FROM surveillance_sessions WHERE `+where+`)`)
		args = append(args, sessionArgs...)
	}
	if len(f.Species) > 0 {
		clauses = append(clauses, "normalized_species IN ("+placeholders(len(f.Species))+")")
		for _, sp := range f.Species {
			args = append(args, sp)
		}
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY captured_at`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var specimens []ingest.Specimen
	for rows.Next() {
		rec, err := scanSpecimen(rows)
		if err != nil {
			return nil, err
		}
		specimens = append(specimens, rec)
	}
	return specimens, rows.Err()
}

// MonthSessions returns the joined session aggregates for one year-month.
func (s *Store) MonthSessions(ctx context.Context, yearMonth string) ([]analytics.SessionAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM surveillance_sessions WHERE year_month=?`, yearMonth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []ingest.Session
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	ids := make([]any, 0, len(sessions))
	for _, rec := range sessions {
		ids = append(ids, rec.SessionID)
	}
	specRows, err := s.db.QueryContext(ctx,
		`SELECT `+specimenColumns+` FROM specimens WHERE session_id IN (`+placeholders(len(ids))+`)`, ids...)
	if err != nil {
		return nil, err
	}
	defer specRows.Close()
	var specimens []ingest.Specimen
	for specRows.Next() {
		rec, err := scanSpecimen(specRows)
		if err != nil {
			return nil, err
		}
		specimens = append(specimens, rec)
	}
	if err := specRows.Err(); err != nil {
		return nil, err
	}
	aggs, _ := analytics.Join(sessions, specimens)
	return aggs, nil
}

func scanSession(rows *sql.Rows) (ingest.Session, error) {
	var rec ingest.Session
	var collectionDate, createdAt, updatedAt sql.NullTime
	var peopleSlept, monthsSinceIrs, llins, underLlin sql.NullFloat64
	err := rows.Scan(
		&rec.SessionID, &rec.HouseNumber, &rec.CollectorTitle, &rec.CollectorName, &collectionDate,
		&rec.Year, &rec.Month, &rec.Quarter, &rec.YearMonth, &rec.CollectionMethodRaw, &rec.CollectionMethod,
		&rec.SpecimenCondition, &rec.Notes, &peopleSlept, &monthsSinceIrs, &llins,
		&underLlin, &rec.WasIrsConducted, &rec.LlinType, &rec.LlinBrand, &rec.LlinUsageRate,
		&rec.SiteID, &rec.District, &rec.SubCounty, &rec.Parish, &rec.SentinelSite, &rec.HealthCenter,
		&rec.ProgramID, &rec.ProgramName, &rec.Country, &rec.DataQualityFlag, &createdAt, &updatedAt)
	if err != nil {
		return rec, err
	}
	rec.CollectionDate = nullTimePtr(collectionDate)
	rec.CreatedAt = nullTimePtr(createdAt)
	rec.UpdatedAt = nullTimePtr(updatedAt)
	rec.PeopleSleptInHouse = nullFloatPtr(peopleSlept)
	rec.MonthsSinceIrs = nullFloatPtr(monthsSinceIrs)
	rec.LlinsAvailable = nullFloatPtr(llins)
	rec.PeopleSleptUnderLlin = nullFloatPtr(underLlin)
	return rec, nil
}

func scanSpecimen(rows *sql.Rows) (ingest.Specimen, error) {
	var rec ingest.Specimen
	var normalized sql.NullString
	var capturedAt sql.NullTime
	err := rows.Scan(
		&rec.SpecimenID, &rec.SessionID, &rec.Species, &normalized, &rec.SpeciesGroup,
		&rec.Sex, &rec.AbdomenStatus, &rec.IsFed, &rec.IsUnfed, &capturedAt, &rec.CaptureYear,
		&rec.CaptureMonth, &rec.CaptureQuarter, &rec.CaptureYearMonth, &rec.CollectionMethodRaw,
		&rec.CollectionMethod, &rec.District, &rec.Country, &rec.DataQualityFlag)
	if err != nil {
		return rec, err
	}
	if normalized.Valid {
		rec.NormalizedSpecies = &normalized.String
	}
	rec.CapturedAt = nullTimePtr(capturedAt)
	return rec, nil
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
