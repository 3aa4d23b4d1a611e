// Package taxonomy holds the shared species and collection-method
// classification rules. Every downstream consumer (joiner, aggregator,
// report formatter) goes through these functions so the taxonomy stays
// consistent across the whole pipeline.
package taxonomy

import "strings"

// Unknown is the sentinel used for blank or missing categorical values.
const Unknown = "Unknown"

// Normalized collection methods. NormalizeCollectionMethod never returns
// anything outside this set.
const (
	MethodPSC      = "PSC"
	MethodCDCLight = "CDC Light Trap"
	MethodHLC      = "HLC"
	MethodOther    = "Other"
)

// Species group labels produced by SpeciesGroup.
const (
	GroupGambiae    = "Anopheles gambiae complex"
	GroupFunestus   = "Anopheles funestus group"
	GroupArabiensis = "Anopheles arabiensis"
	GroupOtherAnoph = "Other Anopheles"
	GroupCulex      = "Culex (nuisance)"
	GroupAedes      = "Aedes (arbovirus vector)"
	GroupMansonia   = "Mansonia"
	GroupOther      = "Other"
)

const nonMosquito = "Non-Mosquito"

// NormalizeSpecies canonicalizes a raw species label. It returns nil for
// blank or literal null inputs; otherwise it returns the trimmed input with
// its original casing, except that every spacing/hyphenation/casing variant
// of "non mosquito" collapses to the canonical "Non-Mosquito".
func NormalizeSpecies(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "null") {
		return nil
	}
	folded := strings.ToLower(strings.ReplaceAll(trimmed, "-", " "))
	folded = strings.Join(strings.Fields(folded), " ")
	if folded == "non mosquito" {
		out := nonMosquito
		return &out
	}
	return &trimmed
}

// NormalizeCollectionMethod maps free-form method labels onto the closed
// PSC / CDC Light Trap / HLC / Other set. Matching is ordered substring,
// case-insensitive; anything unrecognized, including blank, is Other.
func NormalizeCollectionMethod(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lower, "pyrethrum"), strings.Contains(lower, "psc"):
		return MethodPSC
	case strings.Contains(lower, "cdc"), strings.Contains(lower, "light trap"), strings.Contains(lower, "ltc"):
		return MethodCDCLight
	case strings.Contains(lower, "human landing"), strings.Contains(lower, "hlc"):
		return MethodHLC
	default:
		return MethodOther
	}
}

// SpeciesGroup buckets a species label into its broader surveillance group.
// The substring chain is ordered: gambiae and funestus outrank the generic
// anopheles match so "Anopheles gambiae s.l." lands in the complex bucket.
func SpeciesGroup(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "N/A" || trimmed == Unknown {
		return Unknown
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lower, "gambiae"):
		return GroupGambiae
	case strings.Contains(lower, "funestus"):
		return GroupFunestus
	case strings.Contains(lower, "arabiensis"):
		return GroupArabiensis
	case strings.Contains(lower, "anopheles"):
		return GroupOtherAnoph
	case strings.Contains(lower, "culex"):
		return GroupCulex
	case strings.Contains(lower, "aedes"):
		return GroupAedes
	case strings.Contains(lower, "mansonia"):
		return GroupMansonia
	default:
		return GroupOther
	}
}

// IsAnopheles reports whether the species label names any Anopheles.
func IsAnopheles(raw string) bool {
	return strings.Contains(strings.ToLower(raw), "anopheles")
}
