// Package ingest turns raw extract rows into cleaned session and specimen
// records: resolved dates, coerced numerics, defaulted categoricals, and a
// derived data-quality flag per record. Per-field parse failures degrade to
// nil or the Unknown sentinel; they never abort the record or the batch.
package ingest

import (
	"strconv"
	"strings"

	"vectorinsight/taxonomy"
)

// field returns a trimmed column value from a raw row.
func field(row map[string]string, key string) string {
	return strings.TrimSpace(row[key])
}

// parseNumber coerces a raw value to a float, nil on failure. Missing stays
// distinguishable from zero.
func parseNumber(raw string) *float64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}
	return &v
}

// categorical applies the Unknown default to blank or N/A values.
func categorical(raw string) string {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "", strings.EqualFold(trimmed, "n/a"), strings.EqualFold(trimmed, "nan"), strings.EqualFold(trimmed, "null"), strings.EqualFold(trimmed, "none"):
		return taxonomy.Unknown
	default:
		return trimmed
	}
}

// CleanSession normalizes one raw surveillance-form row.
func CleanSession(raw RawSessionRecord) Session {
	s := Session{
		SessionID:      field(raw, "SessionID"),
		HouseNumber:    field(raw, "SessionHouseNumber"),
		CollectorTitle: field(raw, "SessionCollectorTitle"),
		CollectorName:  field(raw, "SessionCollectorName"),

		CollectionMethodRaw: field(raw, "SessionCollectionMethod"),
		SpecimenCondition:   categorical(field(raw, "SessionSpecimenCondition")),
		Notes:               field(raw, "SessionNotes"),

		PeopleSleptInHouse:   parseNumber(field(raw, "NumPeopleSleptInHouse")),
		WasIrsConducted:      categorical(field(raw, "WasIrsConducted")),
		MonthsSinceIrs:       parseNumber(field(raw, "MonthsSinceIrs")),
		LlinsAvailable:       parseNumber(field(raw, "NumLlinsAvailable")),
		LlinType:             categorical(field(raw, "LlinType")),
		LlinBrand:            categorical(field(raw, "LlinBrand")),
		PeopleSleptUnderLlin: parseNumber(field(raw, "NumPeopleSleptUnderLlin")),

		SiteID:       field(raw, "SiteID"),
		District:     categorical(field(raw, "SiteDistrict")),
		SubCounty:    categorical(field(raw, "SiteSubCounty")),
		Parish:       categorical(field(raw, "SiteParish")),
		SentinelSite: field(raw, "SiteSentinelSite"),
		HealthCenter: field(raw, "SiteHealthCenter"),
		ProgramID:    field(raw, "ProgramID"),
		ProgramName:  field(raw, "ProgramName"),
		Country:      categorical(field(raw, "ProgramCountry")),

		CreatedAt: ParseTimestamp(field(raw, "CreatedAt")),
		UpdatedAt: ParseTimestamp(field(raw, "UpdatedAt")),
	}
	s.CollectionMethod = taxonomy.NormalizeCollectionMethod(s.CollectionMethodRaw)

	// Fallback priority: explicit collection date, then device-registration
	// (submitted), last-updated, creation, completion timestamps.
	s.CollectionDate = firstTimestamp(
		field(raw, "SessionCollectionDate"),
		field(raw, "SessionSubmittedAt"),
		field(raw, "SessionUpdatedAt"),
		field(raw, "SessionCreatedAt"),
		field(raw, "SessionCompletedAt"),
	)
	s.Year, s.Month, s.Quarter, s.YearMonth = temporalKeys(s.CollectionDate)

	s.LlinUsageRate = llinUsageRate(s.PeopleSleptUnderLlin, s.PeopleSleptInHouse)
	s.DataQualityFlag = sessionQualityFlag(s)
	return s
}

// llinUsageRate is peopleUnderLlin / peopleSleptInHouse * 100, defined as 0
// when the denominator is missing or non-positive.
func llinUsageRate(under, slept *float64) float64 {
	if under == nil || slept == nil || *slept <= 0 {
		return 0
	}
	return *under / *slept * 100
}

// sessionQualityFlag applies the quality checks in order; a later check
// overwrites an earlier one when both conditions hold.
func sessionQualityFlag(s Session) string {
	flag := FlagOK
	if s.PeopleSleptUnderLlin != nil && s.LlinsAvailable != nil && *s.PeopleSleptUnderLlin > 2*(*s.LlinsAvailable) {
		flag = FlagMoreThanNets
	}
	if s.PeopleSleptInHouse != nil && *s.PeopleSleptInHouse > 50 {
		flag = FlagLargeHousehold
	}
	return flag
}

// Abdomen statuses that count as blood-fed.
var fedStatuses = map[string]bool{
	"Fully Fed":   true,
	"Half Gravid": true,
	"Gravid":      true,
}

// CleanSpecimen normalizes one raw specimen row. The row carries denormalized
// session timestamps used by the capture-time fallback chain.
func CleanSpecimen(raw RawSpecimenRecord) Specimen {
	sp := Specimen{
		SpecimenID: field(raw, "SpecimenID"),
		SessionID:  field(raw, "SessionID"),

		Sex:           categorical(field(raw, "Sex")),
		AbdomenStatus: categorical(field(raw, "AbdomenStatus")),

		CollectionMethodRaw: field(raw, "SessionCollectionMethod"),
		District:            categorical(field(raw, "SiteDistrict")),
		Country:             categorical(field(raw, "ProgramCountry")),
	}
	sp.NormalizedSpecies = taxonomy.NormalizeSpecies(field(raw, "Species"))
	if sp.NormalizedSpecies != nil {
		sp.Species = *sp.NormalizedSpecies
	} else {
		sp.Species = taxonomy.Unknown
	}
	sp.SpeciesGroup = taxonomy.SpeciesGroup(sp.Species)
	sp.CollectionMethod = taxonomy.NormalizeCollectionMethod(sp.CollectionMethodRaw)

	// Fallback priority: explicit capture timestamp, then the parent
	// session's collection date, updated, and created timestamps.
	sp.CapturedAt = firstTimestamp(
		field(raw, "CapturedAt"),
		field(raw, "SessionCollectionDate"),
		field(raw, "SessionUpdatedAt"),
		field(raw, "SessionCreatedAt"),
	)
	sp.CaptureYear, sp.CaptureMonth, sp.CaptureQuarter, sp.CaptureYearMonth = temporalKeys(sp.CapturedAt)

	sp.IsFed = fedStatuses[sp.AbdomenStatus]
	sp.IsUnfed = sp.AbdomenStatus == "Unfed"
	sp.DataQualityFlag = specimenQualityFlag(sp)
	return sp
}

func specimenQualityFlag(sp Specimen) string {
	speciesMissing := sp.NormalizedSpecies == nil || sp.Species == taxonomy.Unknown || sp.Species == "N/A"
	sexKnown := sp.Sex != "" && sp.Sex != "N/A" && sp.Sex != taxonomy.Unknown
	if speciesMissing && sexKnown {
		return FlagMissingSpecies
	}
	return FlagOK
}

// CleanSessions cleans a batch of raw session rows.
func CleanSessions(rows []RawSessionRecord) []Session {
	out := make([]Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, CleanSession(row))
	}
	return out
}

// CleanSpecimens cleans a batch of raw specimen rows.
func CleanSpecimens(rows []RawSpecimenRecord) []Specimen {
	out := make([]Specimen, 0, len(rows))
	for _, row := range rows {
		out = append(out, CleanSpecimen(row))
	}
	return out
}
