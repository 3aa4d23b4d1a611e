// Package fidelity scores how closely a month's field collection matched
// the surveillance protocol: house coverage, specimen completeness, and
// collector retention and training.
package fidelity

import (
	"fmt"
	"sort"
	"time"

	"vectorinsight/analytics"
	"vectorinsight/taxonomy"
)

// Status labels for the coverage-style indicators.
const (
	StatusExcellent        = "Excellent"
	StatusGood             = "Good"
	StatusFair             = "Fair"
	StatusNeedsImprovement = "Needs Improvement"
)

// Status labels for the retention-style penetration indicator.
const (
	StatusGrowing       = "Growing"
	StatusGoodRetention = "Good Retention"
	StatusFairRetention = "Fair Retention"
	StatusLow           = "Low"
)

// Collector is one registered field collector with the activity and
// training state the VHT indicators need.
type Collector struct {
	Name         string
	Role         string
	District     string
	LastTrained  string
	TrainingType string
	// ActiveMonths holds every year-month the collector submitted data in.
	ActiveMonths map[string]bool
}

// Config carries the fixed program constants the indicators divide by.
type Config struct {
	// RoleTitle restricts the VHT indicators to one collector role.
	RoleTitle string
	// ReferenceMonth is the first rollout month used as the penetration
	// baseline, formatted YYYY-MM.
	ReferenceMonth string
	// DefaultExpectedHouses is the house denominator used when the site
	// directory cannot supply one.
	DefaultExpectedHouses int
	// VhtPerDistrict is the expected collector headcount per district.
	VhtPerDistrict int
	// DirectoryTimeout bounds the site-directory lookup.
	DirectoryTimeout time.Duration
}

// Inputs is the already-materialized record set one computation runs over.
// ValidSites may be nil when the site directory was unavailable; house
// coverage then counts every distinct site without intersecting.
type Inputs struct {
	YearMonth      string
	Sessions       []analytics.SessionAggregate
	Collectors     []Collector
	ValidSites     map[string]bool
	ExpectedHouses int
}

// Indicator is one scored coverage ratio.
type Indicator struct {
	Numerator   int     `json:"numerator"`
	Denominator int     `json:"denominator"`
	RatePercent float64 `json:"ratePercent"`
	Status      string  `json:"status"`
}

// Completeness extends the indicator with the per-session specimen average.
type Completeness struct {
	Indicator
	AvgSpecimensPerSession float64 `json:"avgSpecimensPerSession"`
}

// Snapshot is the immutable result of one computation for a year-month.
type Snapshot struct {
	YearMonth    string       `json:"yearMonth"`
	House        Indicator    `json:"house"`
	Completeness Completeness `json:"completeness"`
	Penetration  Indicator    `json:"penetration"`
	Training     Indicator    `json:"training"`
	Composite    Indicator    `json:"composite"`
	Message      string       `json:"message,omitempty"`
	ComputedAt   time.Time    `json:"computedAt"`
}

func coverageStatus(rate float64) string {
	switch {
	case rate >= 90:
		return StatusExcellent
	case rate >= 70:
		return StatusGood
	case rate >= 50:
		return StatusFair
	default:
		return StatusNeedsImprovement
	}
}

func retentionStatus(rate float64) string {
	switch {
	case rate >= 100:
		return StatusGrowing
	case rate >= 80:
		return StatusGoodRetention
	case rate >= 50:
		return StatusFairRetention
	default:
		return StatusLow
	}
}

func ratio(numerator, denominator int) float64 {
	if denominator <= 0 {
		return 0
	}
	return float64(numerator) / float64(denominator) * 100
}

func coverageIndicator(numerator, denominator int) Indicator {
	rate := ratio(numerator, denominator)
	return Indicator{
		Numerator:   numerator,
		Denominator: denominator,
		RatePercent: rate,
		Status:      coverageStatus(rate),
	}
}

// Compute scores one year-month. It is pure: independent months can be
// computed concurrently by the caller. A month with zero sessions returns
// an all-zero snapshot with a message instead of an error.
func Compute(in Inputs, cfg Config) Snapshot {
	snap := Snapshot{YearMonth: in.YearMonth, ComputedAt: time.Now().UTC()}
	if len(in.Sessions) == 0 {
		snap.Message = fmt.Sprintf("no surveillance sessions recorded for %s", in.YearMonth)
		snap.House.Status = StatusNeedsImprovement
		snap.Completeness.Status = StatusNeedsImprovement
		snap.Penetration.Status = StatusLow
		snap.Training.Status = StatusNeedsImprovement
		snap.Composite.Status = StatusNeedsImprovement
		return snap
	}

	snap.House = houseFidelity(in)
	snap.Completeness = mosquitoCompleteness(in.Sessions)
	snap.Penetration = vhtPenetration(in, cfg)
	snap.Training = vhtTraining(in.Collectors, cfg)

	compositeRate := (snap.House.RatePercent + snap.Completeness.RatePercent +
		snap.Penetration.RatePercent + snap.Training.RatePercent) / 4
	snap.Composite = Indicator{
		RatePercent: compositeRate,
		Status:      coverageStatus(compositeRate),
	}
	return snap
}

func houseFidelity(in Inputs) Indicator {
	sites := map[string]bool{}
	for _, s := range in.Sessions {
		if s.SiteID == "" || s.SiteID == taxonomy.Unknown {
			continue
		}
		if in.ValidSites != nil && !in.ValidSites[s.SiteID] {
			continue
		}
		sites[s.SiteID] = true
	}
	return coverageIndicator(len(sites), in.ExpectedHouses)
}

func mosquitoCompleteness(sessions []analytics.SessionAggregate) Completeness {
	withSpecimens, total := 0, 0
	for _, s := range sessions {
		if s.SpecimenCount > 0 {
			withSpecimens++
		}
		total += s.SpecimenCount
	}
	c := Completeness{Indicator: coverageIndicator(withSpecimens, len(sessions))}
	c.AvgSpecimensPerSession = float64(total) / float64(len(sessions))
	return c
}

func vhtPenetration(in Inputs, cfg Config) Indicator {
	active := 0
	baseline := 0
	for _, c := range in.Collectors {
		if c.Role != cfg.RoleTitle || c.Name == "" {
			continue
		}
		if c.ActiveMonths[in.YearMonth] {
			active++
		}
		if c.ActiveMonths[cfg.ReferenceMonth] {
			baseline++
		}
	}
	rate := ratio(active, baseline)
	return Indicator{
		Numerator:   active,
		Denominator: baseline,
		RatePercent: rate,
		Status:      retentionStatus(rate),
	}
}

func vhtTraining(collectors []Collector, cfg Config) Indicator {
	trained := 0
	districts := map[string]bool{}
	for _, c := range collectors {
		if c.Role != cfg.RoleTitle || c.Name == "" {
			continue
		}
		if c.LastTrained != "" {
			trained++
		}
		if c.District != "" && c.District != taxonomy.Unknown && c.District != "Other" {
			districts[c.District] = true
		}
	}
	return coverageIndicator(trained, len(districts)*cfg.VhtPerDistrict)
}

// Months lists the distinct session year-months in ascending order,
// convenient for computing a snapshot series.
func Months(sessions []analytics.SessionAggregate) []string {
	set := map[string]bool{}
	for _, s := range sessions {
		if s.YearMonth != "" {
			set[s.YearMonth] = true
		}
	}
	months := make([]string, 0, len(set))
	for m := range set {
		months = append(months, m)
	}
	sort.Strings(months)
	return months
}
