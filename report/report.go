// Package report renders house-by-house specimen tallies in the fixed
// wide-row layout downstream partners ingest. Column names and ordering
// are an external contract; do not rename or reorder them.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vectorinsight/analytics"
)

// metaColumns lead every row, countColumns carry the specimen tallies, and
// trailingColumns close with household metadata. Together they are the
// frozen schema.
var metaColumns = []string{
	"country", "district", "site", "houseNumber", "collectionMethod", "date",
}

var countColumns = []string{
	"total", "totalAnopheles", "totalOtherMosquitoes", "maleAnopheles",
	"anGambiaeUF", "anGambiaeF", "anGambiaeG", "AnGambiaeMale", "AnGambiaeFemale",
	"anFunestusUF", "anFunestusF", "anFunestusG", "AnFunestusMale", "AnFunestusFemale",
	"anOtherUF", "anOtherF", "anOtherG", "AnOtherMale", "AnOtherFemale",
	"CulexUF", "CulexF", "CulexG", "culexMale", "culexFemale",
	"AedesUF", "AedesF", "AedesG", "aedesMale", "aedesFemale",
	"MansoniaUF", "MansoniaF", "MansoniaG", "mansoniaMale", "mansoniaFemale",
}

var trailingColumns = []string{
	"peopleSlept", "irsSprayed", "monthsAgo", "totalLLIN", "llinType",
	"llinBrand", "peopleSleptUnderLlin", "name", "site code", "health centre",
	"parish", "village", "coded house number", "Latitude", "Longitude",
	"House Type", "Title of Officer",
}

// Columns returns the full column list in contract order.
func Columns() []string {
	cols := make([]string, 0, len(metaColumns)+len(countColumns)+len(trailingColumns))
	cols = append(cols, metaColumns...)
	cols = append(cols, countColumns...)
	cols = append(cols, trailingColumns...)
	return cols
}

// Row is one session's report line.
type Row struct {
	Country          string
	District         string
	Site             string
	HouseNumber      string
	CollectionMethod string
	Date             string

	// Counts is keyed by the exact count column name.
	Counts map[string]int

	PeopleSlept          string
	IrsSprayed           string
	MonthsAgo            string
	TotalLlin            string
	LlinType             string
	LlinBrand            string
	PeopleSleptUnderLlin string
	CollectorName        string
	SiteCode             string
	HealthCentre         string
	Parish               string
	Village              string
	CodedHouseNumber     string
	Latitude             string
	Longitude            string
	HouseType            string
	OfficerTitle         string
}

type genus struct {
	statusPrefix string
	maleKey      string
	femaleKey    string
	anopheles    bool
}

// Genus key casing is uneven in the contract; preserved verbatim.
var genera = []struct {
	match string
	genus genus
}{
	{"gambiae", genus{"anGambiae", "AnGambiaeMale", "AnGambiaeFemale", true}},
	{"funestus", genus{"anFunestus", "AnFunestusMale", "AnFunestusFemale", true}},
	{"anopheles", genus{"anOther", "AnOtherMale", "AnOtherFemale", true}},
	{"culex", genus{"Culex", "culexMale", "culexFemale", false}},
	{"aedes", genus{"Aedes", "aedesMale", "aedesFemale", false}},
	{"mansonia", genus{"Mansonia", "mansoniaMale", "mansoniaFemale", false}},
}

// statusBucket collapses abdominal status into the three report buckets.
// Half gravid counts as fed; the bare gravid check must come after it.
func statusBucket(abdomen string) string {
	a := strings.ToLower(abdomen)
	switch {
	case strings.Contains(a, "unfed"):
		return "UF"
	case strings.Contains(a, "fed"), strings.Contains(a, "blood"), strings.Contains(a, "half gravid"):
		return "F"
	case strings.Contains(a, "gravid"):
		return "G"
	default:
		return "UF"
	}
}

// BuildRows tallies each session's joined specimens into one report row.
func BuildRows(aggs []analytics.SessionAggregate) []Row {
	rows := make([]Row, 0, len(aggs))
	for _, agg := range aggs {
		rows = append(rows, buildRow(agg))
	}
	return rows
}

func buildRow(agg analytics.SessionAggregate) Row {
	counts := map[string]int{}
	for _, col := range countColumns {
		counts[col] = 0
	}

	for _, sp := range agg.Specimens {
		counts["total"]++
		species := strings.ToLower(sp.Species)
		sex := strings.ToLower(sp.Sex)
		bucket := statusBucket(sp.AbdomenStatus)

		var g *genus
		for _, entry := range genera {
			if strings.Contains(species, entry.match) {
				g = &entry.genus
				break
			}
		}
		if g == nil {
			counts["totalOtherMosquitoes"]++
			continue
		}
		if g.anopheles {
			counts["totalAnopheles"]++
		} else {
			counts["totalOtherMosquitoes"]++
		}
		counts[g.statusPrefix+bucket]++
		switch {
		case strings.Contains(sex, "female"):
			counts[g.femaleKey]++
		case strings.Contains(sex, "male"):
			counts[g.maleKey]++
			if g.anopheles {
				counts["maleAnopheles"]++
			}
		}
	}

	row := Row{
		Country:          agg.Country,
		District:         agg.District,
		Site:             agg.SiteID,
		HouseNumber:      agg.HouseNumber,
		CollectionMethod: agg.CollectionMethod,
		Counts:           counts,

		PeopleSlept:          formatNumber(agg.PeopleSleptInHouse),
		IrsSprayed:           agg.WasIrsConducted,
		MonthsAgo:            formatNumber(agg.MonthsSinceIrs),
		TotalLlin:            formatNumber(agg.LlinsAvailable),
		LlinType:             agg.LlinType,
		LlinBrand:            agg.LlinBrand,
		PeopleSleptUnderLlin: formatNumber(agg.PeopleSleptUnderLlin),
		CollectorName:        agg.CollectorName,
		SiteCode:             agg.SiteID,
		HealthCentre:         agg.HealthCenter,
		Parish:               agg.Parish,
		OfficerTitle:         agg.CollectorTitle,
	}
	if agg.HouseNumber == "" {
		row.HouseNumber = agg.SessionID
	}
	if agg.CollectionDate != nil {
		row.Date = agg.CollectionDate.Format("2006-01-02")
	}
	return row
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func (r Row) record() []string {
	rec := []string{
		r.Country, r.District, r.Site, r.HouseNumber, r.CollectionMethod, r.Date,
	}
	for _, col := range countColumns {
		rec = append(rec, strconv.Itoa(r.Counts[col]))
	}
	rec = append(rec,
		r.PeopleSlept, r.IrsSprayed, r.MonthsAgo, r.TotalLlin, r.LlinType,
		r.LlinBrand, r.PeopleSleptUnderLlin, r.CollectorName, r.SiteCode,
		r.HealthCentre, r.Parish, r.Village, r.CodedHouseNumber, r.Latitude,
		r.Longitude, r.HouseType, r.OfficerTitle,
	)
	return rec
}

// WriteCSV writes the header and every row in contract order.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns()); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row.record()); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the report to dir with a date-stamped filename and
// returns the file path.
func ExportCSV(dir string, rows []Row, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create exports dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("vectorcam_report_%s.csv", now.Format("2006-01-02")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report file: %w", err)
	}
	return path, nil
}
