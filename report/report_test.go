package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"vectorinsight/analytics"
	"vectorinsight/ingest"
)

func floatPtr(v float64) *float64 { return &v }

func sampleAggregate() analytics.SessionAggregate {
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	agg := analytics.SessionAggregate{
		Session: ingest.Session{
			SessionID: "s1", Country: "Uganda", District: "Apac",
			SiteID: "site-1", HouseNumber: "H-12",
			CollectionMethod: "PSC", CollectionDate: &date,
			PeopleSleptInHouse: floatPtr(4), WasIrsConducted: "Yes",
			LlinsAvailable: floatPtr(2), LlinType: "Permanent",
			LlinBrand: "PermaNet", PeopleSleptUnderLlin: floatPtr(3),
			CollectorName: "Okello", HealthCenter: "Apac HC III",
			Parish: "Akere", CollectorTitle: "Village Health Team Member",
		},
		Specimens: []ingest.Specimen{
			{Species: "Anopheles gambiae", Sex: "Female", AbdomenStatus: "Fully Fed"},
			{Species: "Anopheles gambiae", Sex: "Male", AbdomenStatus: "Unfed"},
			{Species: "Anopheles funestus", Sex: "Female", AbdomenStatus: "Half Gravid"},
			{Species: "Anopheles coustani", Sex: "Female", AbdomenStatus: "Gravid"},
			{Species: "Culex quinquefasciatus", Sex: "Female", AbdomenStatus: "Unfed"},
			{Species: "Aedes aegypti", Sex: "Male", AbdomenStatus: ""},
			{Species: "Mansonia uniformis", Sex: "Female", AbdomenStatus: "Blood Fed"},
			{Species: "Non-Mosquito", Sex: "Unknown", AbdomenStatus: "Unknown"},
		},
	}
	agg.SpecimenCount = len(agg.Specimens)
	return agg
}

func TestColumnsAreFrozen(t *testing.T) {
	want := []string{
		"country", "district", "site", "houseNumber", "collectionMethod", "date",
		"total", "totalAnopheles", "totalOtherMosquitoes", "maleAnopheles",
		"anGambiaeUF", "anGambiaeF", "anGambiaeG", "AnGambiaeMale", "AnGambiaeFemale",
		"anFunestusUF", "anFunestusF", "anFunestusG", "AnFunestusMale", "AnFunestusFemale",
		"anOtherUF", "anOtherF", "anOtherG", "AnOtherMale", "AnOtherFemale",
		"CulexUF", "CulexF", "CulexG", "culexMale", "culexFemale",
		"AedesUF", "AedesF", "AedesG", "aedesMale", "aedesFemale",
		"MansoniaUF", "MansoniaF", "MansoniaG", "mansoniaMale", "mansoniaFemale",
		"peopleSlept", "irsSprayed", "monthsAgo", "totalLLIN", "llinType",
		"llinBrand", "peopleSleptUnderLlin", "name", "site code", "health centre",
		"parish", "village", "coded house number", "Latitude", "Longitude",
		"House Type", "Title of Officer",
	}
	if diff := cmp.Diff(want, Columns()); diff != "" {
		t.Fatalf("column contract changed (-want +got):\n%s", diff)
	}
}

func TestBuildRowTallies(t *testing.T) {
	rows := BuildRows([]analytics.SessionAggregate{sampleAggregate()})
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	row := rows[0]

	expect := map[string]int{
		"total":                8,
		"totalAnopheles":       4,
		"totalOtherMosquitoes": 4,
		"maleAnopheles":        1,
		"anGambiaeF":           1,
		"anGambiaeUF":          1,
		"AnGambiaeMale":        1,
		"AnGambiaeFemale":      1,
		// Half gravid buckets as fed.
		"anFunestusF":      1,
		"AnFunestusFemale": 1,
		"anOtherG":         1,
		"AnOtherFemale":    1,
		"CulexUF":          1,
		"culexFemale":      1,
		// Blank abdominal status defaults to unfed.
		"AedesUF":        1,
		"aedesMale":      1,
		"MansoniaF":      1,
		"mansoniaFemale": 1,
	}
	for col, want := range expect {
		if got := row.Counts[col]; got != want {
			t.Fatalf("counts[%q] = %d, want %d", col, got, want)
		}
	}
	sum := 0
	for _, col := range []string{"anGambiaeUF", "anGambiaeF", "anGambiaeG",
		"anFunestusUF", "anFunestusF", "anFunestusG",
		"anOtherUF", "anOtherF", "anOtherG"} {
		sum += row.Counts[col]
	}
	if sum != row.Counts["totalAnopheles"] {
		t.Fatalf("anopheles bucket sum %d != totalAnopheles %d", sum, row.Counts["totalAnopheles"])
	}
}

func TestBuildRowMetadata(t *testing.T) {
	row := BuildRows([]analytics.SessionAggregate{sampleAggregate()})[0]
	if row.Date != "2024-03-10" {
		t.Fatalf("date = %q", row.Date)
	}
	if row.PeopleSlept != "4" || row.TotalLlin != "2" || row.PeopleSleptUnderLlin != "3" {
		t.Fatalf("household fields = %q/%q/%q", row.PeopleSlept, row.TotalLlin, row.PeopleSleptUnderLlin)
	}
	if row.MonthsAgo != "" {
		t.Fatalf("missing months-since-IRS must render empty, got %q", row.MonthsAgo)
	}
	if row.SiteCode != row.Site {
		t.Fatalf("site code %q != site %q", row.SiteCode, row.Site)
	}
}

func TestBuildRowFallsBackToSessionID(t *testing.T) {
	agg := analytics.SessionAggregate{Session: ingest.Session{SessionID: "s9"}}
	row := BuildRows([]analytics.SessionAggregate{agg})[0]
	if row.HouseNumber != "s9" {
		t.Fatalf("house number = %q, want session id", row.HouseNumber)
	}
}

func TestWriteCSVShape(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, BuildRows([]analytics.SessionAggregate{sampleAggregate()})); err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	if len(records[0]) != len(Columns()) || len(records[1]) != len(Columns()) {
		t.Fatalf("record width %d/%d, want %d", len(records[0]), len(records[1]), len(Columns()))
	}
	if records[1][0] != "Uganda" || records[1][len(records[1])-1] != "Village Health Team Member" {
		t.Fatalf("row edges = %q ... %q", records[1][0], records[1][len(records[1])-1])
	}
}

func TestExportCSV(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	path, err := ExportCSV(dir, BuildRows([]analytics.SessionAggregate{sampleAggregate()}), now)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "vectorcam_report_2024-04-01.csv" {
		t.Fatalf("unexpected filename %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "country,district,site,") {
		t.Fatalf("unexpected header: %.60s", data)
	}
}
