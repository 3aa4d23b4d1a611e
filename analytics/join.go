package analytics

import (
	"vectorinsight/ingest"
	"vectorinsight/taxonomy"
)

// Join attaches specimens to their sessions with a single grouping pass over
// the specimen slice, keyed by session id. Matched specimens inherit the
// session's collection method, district, and country. Specimens whose session
// id matches no session are returned separately; they stay out of
// session-enriched views but must still reach specimen-only aggregates.
func Join(sessions []ingest.Session, specimens []ingest.Specimen) ([]SessionAggregate, []ingest.Specimen) {
	bySession := make(map[string][]ingest.Specimen, len(sessions))
	known := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		known[s.SessionID] = true
	}

	var unmatched []ingest.Specimen
	for _, sp := range specimens {
		if sp.SessionID != "" && known[sp.SessionID] {
			bySession[sp.SessionID] = append(bySession[sp.SessionID], sp)
			continue
		}
		unmatched = append(unmatched, sp)
	}

	aggs := make([]SessionAggregate, 0, len(sessions))
	for _, s := range sessions {
		agg := SessionAggregate{Session: s}
		for _, sp := range bySession[s.SessionID] {
			sp.CollectionMethod = s.CollectionMethod
			sp.CollectionMethodRaw = s.CollectionMethodRaw
			if sp.District == taxonomy.Unknown {
				sp.District = s.District
			}
			if sp.Country == taxonomy.Unknown {
				sp.Country = s.Country
			}
			agg.Specimens = append(agg.Specimens, sp)
			if taxonomy.IsAnopheles(sp.Species) {
				agg.AnophelesCount++
			}
		}
		agg.SpecimenCount = len(agg.Specimens)
		aggs = append(aggs, agg)
	}
	return aggs, unmatched
}

// AllSpecimens flattens joined and unmatched specimens back into one slice
// for specimen-only aggregates, preserving inherited session fields.
func AllSpecimens(aggs []SessionAggregate, unmatched []ingest.Specimen) []ingest.Specimen {
	total := len(unmatched)
	for _, agg := range aggs {
		total += len(agg.Specimens)
	}
	out := make([]ingest.Specimen, 0, total)
	for _, agg := range aggs {
		out = append(out, agg.Specimens...)
	}
	out = append(out, unmatched...)
	return out
}
