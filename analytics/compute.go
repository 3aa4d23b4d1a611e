package analytics

import (
	"fmt"
	"sort"
	"time"

	"vectorinsight/ingest"
	"vectorinsight/taxonomy"
)

// pct is X/Y*100 with division by zero defined as 0. Every rate in a
// snapshot goes through here so no metric can produce NaN or Inf.
func pct(numerator, denominator float64) float64 {
	if denominator <= 0 {
		return 0
	}
	return numerator / denominator * 100
}

// Compute builds a MetricsSnapshot from cleaned, joined records. It is pure:
// every sub-metric depends only on the arguments, so independent families
// can be computed concurrently by callers without synchronization.
func Compute(sessions []SessionAggregate, specimens []ingest.Specimen) MetricsSnapshot {
	return MetricsSnapshot{
		Summary:           computeSummary(sessions, specimens),
		Temporal:          computeTemporal(sessions, specimens),
		Species:           computeSpecies(specimens),
		CollectionMethods: computeMethods(sessions, specimens),
		Interventions:     computeInterventions(sessions),
		BloodFeeding:      computeBloodFeeding(specimens),
		IndoorResting:     computeIndoorResting(sessions),
		Geographic:        computeGeographic(sessions, specimens),
		DataQuality:       computeDataQuality(sessions, specimens),
		ComputedAt:        time.Now().UTC(),
	}
}

func computeSummary(sessions []SessionAggregate, specimens []ingest.Specimen) Summary {
	sum := Summary{TotalSessions: len(sessions)}

	for _, sp := range specimens {
		if sp.NormalizedSpecies != nil {
			sum.TotalSpecimens++
		}
	}

	districts := map[string]bool{}
	collectors := map[string]bool{}
	countries := map[string]bool{}
	for _, s := range sessions {
		if s.District != "" {
			districts[s.District] = true
		}
		if s.CollectorName != "" {
			collectors[s.CollectorName] = true
		}
		if s.Country != "" && s.Country != taxonomy.Unknown {
			countries[s.Country] = true
		}
		if s.CollectionDate == nil {
			continue
		}
		if sum.DateStart == nil || s.CollectionDate.Before(*sum.DateStart) {
			sum.DateStart = s.CollectionDate
		}
		if sum.DateEnd == nil || s.CollectionDate.After(*sum.DateEnd) {
			sum.DateEnd = s.CollectionDate
		}
	}
	sum.DistrictCount = len(districts)
	sum.CollectorCount = len(collectors)
	sum.Countries = sortedKeys(countries)
	return sum
}

func computeTemporal(sessions []SessionAggregate, specimens []ingest.Specimen) Temporal {
	t := Temporal{
		SessionsByMonth:   map[string]int{},
		SpecimensByMonth:  map[string]int{},
		SessionsByQuarter: map[string]int{},
	}
	for _, s := range sessions {
		if s.YearMonth == "" {
			continue
		}
		t.SessionsByMonth[s.YearMonth]++
		t.SessionsByQuarter[quarterKey(s.Year, s.Quarter)]++
	}
	for _, sp := range specimens {
		if sp.CaptureYearMonth == "" {
			continue
		}
		t.SpecimensByMonth[sp.CaptureYearMonth]++
	}
	return t
}

func quarterKey(year, quarter int) string {
	return fmt.Sprintf("%04d-Q%d", year, quarter)
}

func computeSpecies(specimens []ingest.Specimen) SpeciesMetrics {
	m := SpeciesMetrics{
		Counts:            map[string]int{},
		Groups:            map[string]int{},
		AnophelesCounts:   map[string]int{},
		AnophelesSexRatio: map[string]int{},
	}
	valid := 0
	for _, sp := range specimens {
		if sp.NormalizedSpecies == nil {
			continue
		}
		valid++
		m.Counts[*sp.NormalizedSpecies]++
		m.Groups[sp.SpeciesGroup]++
		if taxonomy.IsAnopheles(sp.Species) {
			m.TotalAnopheles++
			m.AnophelesCounts[*sp.NormalizedSpecies]++
			m.AnophelesSexRatio[sp.Sex]++
		}
	}
	m.AnophelesPercent = pct(float64(m.TotalAnopheles), float64(valid))
	return m
}

func computeMethods(sessions []SessionAggregate, specimens []ingest.Specimen) MethodMetrics {
	m := MethodMetrics{
		SessionsByMethod:    map[string]int{},
		SpecimensByMethod:   map[string]int{},
		SpecimensPerSession: map[string]float64{},
	}
	for _, s := range sessions {
		m.SessionsByMethod[s.CollectionMethod]++
	}
	for _, sp := range specimens {
		m.SpecimensByMethod[sp.CollectionMethod]++
	}
	for method, specimenCount := range m.SpecimensByMethod {
		sessionCount := m.SessionsByMethod[method]
		if sessionCount == 0 {
			m.SpecimensPerSession[method] = 0
			continue
		}
		m.SpecimensPerSession[method] = float64(specimenCount) / float64(sessionCount)
	}
	for method := range m.SessionsByMethod {
		if _, ok := m.SpecimensPerSession[method]; !ok {
			m.SpecimensPerSession[method] = 0
		}
	}
	return m
}

func computeInterventions(sessions []SessionAggregate) Interventions {
	iv := Interventions{
		IrsCounts:  map[string]int{},
		LlinTypes:  map[string]int{},
		LlinBrands: map[string]int{},
	}
	irsYes := 0
	usageSum, usageN := 0.0, 0
	for _, s := range sessions {
		iv.IrsCounts[s.WasIrsConducted]++
		if s.WasIrsConducted == "Yes" {
			irsYes++
		}
		if s.LlinsAvailable != nil {
			iv.TotalLlins += *s.LlinsAvailable
			if *s.LlinsAvailable > 0 {
				iv.HousesWithLlins++
			}
		}
		if s.PeopleSleptInHouse != nil && *s.PeopleSleptInHouse > 0 {
			usageSum += s.LlinUsageRate
			usageN++
		}
		if s.LlinType != taxonomy.Unknown {
			iv.LlinTypes[s.LlinType]++
		}
		if s.LlinBrand != taxonomy.Unknown {
			iv.LlinBrands[s.LlinBrand]++
		}
	}
	iv.IrsRatePercent = pct(float64(irsYes), float64(len(sessions)))
	if len(sessions) > 0 {
		iv.AvgLlinsPerSession = iv.TotalLlins / float64(len(sessions))
	}
	if usageN > 0 {
		iv.AvgLlinUsageRatePercent = usageSum / float64(usageN)
	}
	return iv
}

func computeBloodFeeding(specimens []ingest.Specimen) BloodFeeding {
	bf := BloodFeeding{
		StatusCounts:          map[string]int{},
		AnophelesStatusCounts: map[string]int{},
	}
	fed, anoph, anophFed := 0, 0, 0
	for _, sp := range specimens {
		bf.StatusCounts[sp.AbdomenStatus]++
		if sp.IsFed {
			fed++
		}
		if taxonomy.IsAnopheles(sp.Species) {
			anoph++
			bf.AnophelesStatusCounts[sp.AbdomenStatus]++
			if sp.IsFed {
				anophFed++
			}
		}
	}
	bf.FedRatePercent = pct(float64(fed), float64(len(specimens)))
	bf.AnophelesFedRatePercent = pct(float64(anophFed), float64(anoph))
	return bf
}

func computeIndoorResting(sessions []SessionAggregate) IndoorResting {
	ir := IndoorResting{
		DensityByDistrict: map[string]float64{},
		DensityByMonth:    map[string]float64{},
	}
	type bucket struct {
		specimens int
		sessions  int
	}
	byDistrict := map[string]*bucket{}
	byMonth := map[string]*bucket{}

	totalSpecimens, totalAnopheles := 0, 0
	for _, s := range sessions {
		if s.CollectionMethod != taxonomy.MethodPSC {
			continue
		}
		ir.PscSessionCount++
		totalSpecimens += s.SpecimenCount
		totalAnopheles += s.AnophelesCount

		if b := byDistrict[s.District]; b != nil {
			b.specimens += s.SpecimenCount
			b.sessions++
		} else {
			byDistrict[s.District] = &bucket{specimens: s.SpecimenCount, sessions: 1}
		}
		if s.YearMonth != "" {
			if b := byMonth[s.YearMonth]; b != nil {
				b.specimens += s.SpecimenCount
				b.sessions++
			} else {
				byMonth[s.YearMonth] = &bucket{specimens: s.SpecimenCount, sessions: 1}
			}
		}
	}
	if ir.PscSessionCount == 0 {
		return ir
	}
	ir.AvgSpecimensPerSession = float64(totalSpecimens) / float64(ir.PscSessionCount)
	ir.AvgAnophelesPerSession = float64(totalAnopheles) / float64(ir.PscSessionCount)
	ir.AnophelesSharePercent = pct(float64(totalAnopheles), float64(totalSpecimens))
	for district, b := range byDistrict {
		ir.DensityByDistrict[district] = float64(b.specimens) / float64(b.sessions)
	}
	for month, b := range byMonth {
		ir.DensityByMonth[month] = float64(b.specimens) / float64(b.sessions)
	}
	return ir
}

func computeGeographic(sessions []SessionAggregate, specimens []ingest.Specimen) Geographic {
	g := Geographic{
		SessionsByDistrict:  map[string]int{},
		SpecimensByDistrict: map[string]int{},
	}
	for _, s := range sessions {
		g.SessionsByDistrict[s.District]++
	}
	for _, sp := range specimens {
		g.SpecimensByDistrict[sp.District]++
	}
	return g
}

func computeDataQuality(sessions []SessionAggregate, specimens []ingest.Specimen) DataQualityMetrics {
	dq := DataQualityMetrics{
		SessionFlagCounts:  map[string]int{},
		SpecimenFlagCounts: map[string]int{},
	}
	for _, s := range sessions {
		dq.SessionFlagCounts[s.DataQualityFlag]++
		if s.CollectorName == "" {
			dq.MissingCollector++
		}
		if s.CollectionMethodRaw == "" {
			dq.MissingMethod++
		}
	}
	for _, sp := range specimens {
		dq.SpecimenFlagCounts[sp.DataQualityFlag]++
		if sp.NormalizedSpecies == nil {
			dq.MissingSpecies++
		}
	}
	complete := len(sessions) - dq.MissingCollector - dq.MissingMethod
	if complete < 0 {
		complete = 0
	}
	dq.CompletenessPercent = pct(float64(complete), float64(len(sessions)))
	return dq
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
