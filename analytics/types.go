package analytics

import (
	"errors"
	"fmt"
	"time"

	"vectorinsight/ingest"
)

// ErrInvalidFilter marks a structurally malformed query, as opposed to a
// valid query that matches nothing.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter narrows the record set a snapshot is computed over. Sessions are
// filtered first; specimens are restricted to the surviving session-id set
// and then filtered by species when requested.
type Filter struct {
	From      *time.Time
	To        *time.Time
	Districts []string
	Methods   []string
	Species   []string
}

// Validate reports structural problems with the filter.
func (f Filter) Validate() error {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return fmt.Errorf("%w: date range ends %s before it starts %s", ErrInvalidFilter, f.To.Format("2006-01-02"), f.From.Format("2006-01-02"))
	}
	return nil
}

// SessionAggregate is a cleaned session enriched with its joined specimens.
type SessionAggregate struct {
	ingest.Session
	SpecimenCount  int
	AnophelesCount int
	Specimens      []ingest.Specimen
}

// MetricsSnapshot is the immutable result of one aggregation run. Field
// names are part of the rendering contract.
type MetricsSnapshot struct {
	Summary           Summary            `json:"summary"`
	Temporal          Temporal           `json:"temporal"`
	Species           SpeciesMetrics     `json:"species"`
	CollectionMethods MethodMetrics      `json:"collectionMethods"`
	Interventions     Interventions      `json:"interventions"`
	BloodFeeding      BloodFeeding       `json:"bloodFeeding"`
	IndoorResting     IndoorResting      `json:"indoorResting"`
	Geographic        Geographic         `json:"geographic"`
	DataQuality       DataQualityMetrics `json:"dataQuality"`
	ComputedAt        time.Time          `json:"computedAt"`
}

// Summary holds the headline counts.
type Summary struct {
	TotalSessions  int        `json:"totalSessions"`
	TotalSpecimens int        `json:"totalSpecimens"`
	DateStart      *time.Time `json:"dateStart"`
	DateEnd        *time.Time `json:"dateEnd"`
	DistrictCount  int        `json:"districtCount"`
	CollectorCount int        `json:"collectorCount"`
	Countries      []string   `json:"countries"`
}

// Temporal groups counts by year-month and quarter buckets. Records with an
// unresolved year-month are excluded.
type Temporal struct {
	SessionsByMonth   map[string]int `json:"sessionsByMonth"`
	SpecimensByMonth  map[string]int `json:"specimensByMonth"`
	SessionsByQuarter map[string]int `json:"sessionsByQuarter"`
}

// SpeciesMetrics describes species composition.
type SpeciesMetrics struct {
	Counts            map[string]int `json:"counts"`
	Groups            map[string]int `json:"groups"`
	AnophelesCounts   map[string]int `json:"anophelesCounts"`
	AnophelesSexRatio map[string]int `json:"anophelesSexRatio"`
	TotalAnopheles    int            `json:"totalAnopheles"`
	AnophelesPercent  float64        `json:"anophelesPercent"`
}

// MethodMetrics groups sessions and specimens by normalized collection
// method. A specimen inherits its session's method through the join.
type MethodMetrics struct {
	SessionsByMethod    map[string]int     `json:"sessionsByMethod"`
	SpecimensByMethod   map[string]int     `json:"specimensByMethod"`
	SpecimensPerSession map[string]float64 `json:"specimensPerSession"`
}

// Interventions covers IRS and LLIN coverage.
type Interventions struct {
	IrsRatePercent          float64        `json:"irsRatePercent"`
	IrsCounts               map[string]int `json:"irsCounts"`
	TotalLlins              float64        `json:"totalLlins"`
	HousesWithLlins         int            `json:"housesWithLlins"`
	AvgLlinsPerSession      float64        `json:"avgLlinsPerSession"`
	AvgLlinUsageRatePercent float64        `json:"avgLlinUsageRatePercent"`
	LlinTypes               map[string]int `json:"llinTypes"`
	LlinBrands              map[string]int `json:"llinBrands"`
}

// BloodFeeding summarizes abdomen status overall and Anopheles-restricted.
type BloodFeeding struct {
	StatusCounts            map[string]int `json:"statusCounts"`
	AnophelesStatusCounts   map[string]int `json:"anophelesStatusCounts"`
	FedRatePercent          float64        `json:"fedRatePercent"`
	AnophelesFedRatePercent float64        `json:"anophelesFedRatePercent"`
}

// IndoorResting is the PSC-only indoor density view.
type IndoorResting struct {
	PscSessionCount        int                `json:"pscSessionCount"`
	AvgSpecimensPerSession float64            `json:"avgSpecimensPerSession"`
	AvgAnophelesPerSession float64            `json:"avgAnophelesPerSession"`
	AnophelesSharePercent  float64            `json:"anophelesSharePercent"`
	DensityByDistrict      map[string]float64 `json:"densityByDistrict"`
	DensityByMonth         map[string]float64 `json:"densityByMonth"`
}

// Geographic groups counts by district.
type Geographic struct {
	SessionsByDistrict  map[string]int `json:"sessionsByDistrict"`
	SpecimensByDistrict map[string]int `json:"specimensByDistrict"`
}

// DataQualityMetrics surfaces cleaning flags and missing-field counts.
type DataQualityMetrics struct {
	SessionFlagCounts   map[string]int `json:"sessionFlagCounts"`
	SpecimenFlagCounts  map[string]int `json:"specimenFlagCounts"`
	MissingCollector    int            `json:"missingCollector"`
	MissingMethod       int            `json:"missingMethod"`
	MissingSpecies      int            `json:"missingSpecies"`
	CompletenessPercent float64        `json:"completenessPercent"`
}
