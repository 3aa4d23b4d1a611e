package taxonomy

import "testing"

func TestNormalizeCollectionMethodClosedSet(t *testing.T) {
	cases := map[string]string{
		"Pyrethrum Spray Catch": MethodPSC,
		"psc - indoor":          MethodPSC,
		"CDC Light Trap":        MethodCDCLight,
		"cdc":                   MethodCDCLight,
		"LTC overnight":         MethodCDCLight,
		"Human Landing Catch":   MethodHLC,
		"HLC":                   MethodHLC,
		"":                      MethodOther,
		"Larval dipping":        MethodOther,
		"N/A":                   MethodOther,
	}
	allowed := map[string]bool{MethodPSC: true, MethodCDCLight: true, MethodHLC: true, MethodOther: true}
	for raw, want := range cases {
		got := NormalizeCollectionMethod(raw)
		if got != want {
			t.Fatalf("NormalizeCollectionMethod(%q) = %q, want %q", raw, got, want)
		}
		if !allowed[got] {
			t.Fatalf("NormalizeCollectionMethod(%q) left the closed set: %q", raw, got)
		}
	}
}

func TestNormalizeSpeciesNullInputs(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", "NULL"} {
		if got := NormalizeSpecies(raw); got != nil {
			t.Fatalf("NormalizeSpecies(%q) = %q, want nil", raw, *got)
		}
	}
}

func TestNormalizeSpeciesPreservesCasing(t *testing.T) {
	got := NormalizeSpecies("  Anopheles Gambiae ")
	if got == nil || *got != "Anopheles Gambiae" {
		t.Fatalf("expected trimmed original casing, got %v", got)
	}
}

func TestNormalizeSpeciesNonMosquitoVariants(t *testing.T) {
	for _, raw := range []string{"non-mosquito", "Non Mosquito", "NON-MOSQUITO", "non  mosquito"} {
		got := NormalizeSpecies(raw)
		if got == nil || *got != "Non-Mosquito" {
			t.Fatalf("NormalizeSpecies(%q) = %v, want Non-Mosquito", raw, got)
		}
	}
}

func TestNormalizeSpeciesIdempotent(t *testing.T) {
	inputs := []string{"Anopheles funestus", "non mosquito", "Culex", " Aedes "}
	for _, raw := range inputs {
		first := NormalizeSpecies(raw)
		if first == nil {
			t.Fatalf("unexpected nil for %q", raw)
		}
		second := NormalizeSpecies(*first)
		if second == nil || *second != *first {
			t.Fatalf("NormalizeSpecies not idempotent for %q: %v then %v", raw, *first, second)
		}
	}
}

func TestSpeciesGroup(t *testing.T) {
	cases := map[string]string{
		"Anopheles funestus s.l.": GroupFunestus,
		"Anopheles gambiae":       GroupGambiae,
		"anopheles arabiensis":    GroupArabiensis,
		"Anopheles coustani":      GroupOtherAnoph,
		"Culex quinquefasciatus":  GroupCulex,
		"Aedes aegypti":           GroupAedes,
		"Mansonia":                GroupMansonia,
		"Non-Mosquito":            GroupOther,
		"":                        Unknown,
		"Unknown":                 Unknown,
		"N/A":                     Unknown,
	}
	for raw, want := range cases {
		if got := SpeciesGroup(raw); got != want {
			t.Fatalf("SpeciesGroup(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestIsAnopheles(t *testing.T) {
	if !IsAnopheles("anopheles gambiae") || IsAnopheles("Culex") {
		t.Fatalf("IsAnopheles substring check broken")
	}
}
