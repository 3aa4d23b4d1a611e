package ingest

import "time"

// RawSessionRecord is one untyped row from the surveillance-form extract,
// keyed by the extract's column headers.
type RawSessionRecord map[string]string

// RawSpecimenRecord is one untyped row from the specimen extract.
type RawSpecimenRecord map[string]string

// Data quality flags attached during cleaning. Session flags are applied in
// order, later checks overwriting earlier ones.
const (
	FlagOK             = "OK"
	FlagMoreThanNets   = "Suspicious: More people than nets"
	FlagLargeHousehold = "Suspicious: Large household"
	FlagMissingSpecies = "Missing species ID"
)

// Session is one cleaned field-collection visit. Numeric fields stay nil on
// parse failure so missing and zero remain distinguishable; categorical
// fields fall back to the taxonomy.Unknown sentinel.
type Session struct {
	SessionID      string
	HouseNumber    string
	CollectorTitle string
	CollectorName  string

	CollectionDate *time.Time
	Year           int
	Month          int
	Quarter        int
	YearMonth      string

	CollectionMethodRaw string
	CollectionMethod    string
	SpecimenCondition   string
	Notes               string

	PeopleSleptInHouse   *float64
	WasIrsConducted      string
	MonthsSinceIrs       *float64
	LlinsAvailable       *float64
	LlinType             string
	LlinBrand            string
	PeopleSleptUnderLlin *float64
	LlinUsageRate        float64

	SiteID       string
	District     string
	SubCounty    string
	Parish       string
	SentinelSite string
	HealthCenter string
	ProgramID    string
	ProgramName  string
	Country      string

	DataQualityFlag string
	CreatedAt       *time.Time
	UpdatedAt       *time.Time
}

// Specimen is one cleaned captured specimen.
type Specimen struct {
	SpecimenID string
	SessionID  string

	Species           string
	NormalizedSpecies *string
	SpeciesGroup      string
	Sex               string
	AbdomenStatus     string
	IsFed             bool
	IsUnfed           bool

	CapturedAt       *time.Time
	CaptureYear      int
	CaptureMonth     int
	CaptureQuarter   int
	CaptureYearMonth string

	CollectionMethodRaw string
	CollectionMethod    string
	District            string
	Country             string

	DataQualityFlag string
}
