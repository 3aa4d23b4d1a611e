package ingest

import (
	"strings"
	"testing"
)

func TestReadSessionRecordsFiltersSessionType(t *testing.T) {
	csvData := strings.Join([]string{
		"SessionID,SessionType,SiteDistrict",
		"1,SURVEILLANCE,Mityana",
		"2,DATA_COLLECTION,Mityana",
		"3, surveillance ,Gulu",
	}, "\n")

	records, err := ReadSessionRecords(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 surveillance rows, got %d", len(records))
	}
	if records[0]["SessionID"] != "1" || records[1]["SessionID"] != "3" {
		t.Fatalf("unexpected rows kept: %v", records)
	}
}

func TestReadSessionRecordsNoTypeColumn(t *testing.T) {
	csvData := "SessionID,SiteDistrict\n1,Mityana\n2,Gulu"
	records, err := ReadSessionRecords(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected passthrough of 2 rows, got %d", len(records))
	}
}

func TestReadSpecimenRecordsRaggedRows(t *testing.T) {
	csvData := "SpecimenID,SessionID,Species\nSP-1,1,Culex\nSP-2,1"
	records, err := ReadSpecimenRecords(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(records))
	}
	if records[1]["Species"] != "" {
		t.Fatalf("expected empty species for short row, got %q", records[1]["Species"])
	}
}

func TestReadSessionRecordsEmptyInput(t *testing.T) {
	records, err := ReadSessionRecords(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no rows, got %d", len(records))
	}
}
