package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"
)

// readRows decodes a headered CSV stream into string-keyed rows. Ragged rows
// are tolerated; missing trailing cells read as empty.
func readRows(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(rows)+2, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadSessionRecords decodes the surveillance-form extract and keeps only
// SURVEILLANCE sessions; DATA_COLLECTION and other session types are excluded
// before cleaning.
func ReadSessionRecords(r io.Reader) ([]RawSessionRecord, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}
	records := make([]RawSessionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, RawSessionRecord(row))
	}
	return FilterSurveillance(records), nil
}

// ReadSpecimenRecords decodes the specimen extract.
func ReadSpecimenRecords(r io.Reader) ([]RawSpecimenRecord, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}
	records := make([]RawSpecimenRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, RawSpecimenRecord(row))
	}
	return records, nil
}

// Column spellings seen for the session-type field across extract versions.
var sessionTypeColumns = []string{"SessionType", "session_type", "sessionType"}

// FilterSurveillance drops every row whose session type is not SURVEILLANCE.
// Extracts without a session-type column pass through untouched.
func FilterSurveillance(records []RawSessionRecord) []RawSessionRecord {
	col := ""
	for _, rec := range records {
		for _, candidate := range sessionTypeColumns {
			if _, ok := rec[candidate]; ok {
				col = candidate
				break
			}
		}
		break
	}
	if col == "" {
		if len(records) > 0 {
			log.Printf("ingest: no session-type column found, keeping all %d sessions", len(records))
		}
		return records
	}

	kept := make([]RawSessionRecord, 0, len(records))
	for _, rec := range records {
		if strings.ToUpper(strings.TrimSpace(rec[col])) == "SURVEILLANCE" {
			kept = append(kept, rec)
		}
	}
	log.Printf("ingest: session filter total=%d surveillance=%d excluded=%d", len(records), len(kept), len(records)-len(kept))
	if len(records) > 0 && len(kept) == 0 {
		log.Printf("ingest: WARNING no SURVEILLANCE sessions after filtering, source may use a different label")
	}
	return kept
}
