package normalize

import "testing"

func TestNormalizePlace_WithAlias(t *testing.T) {
	aliases := AliasMap{"paris": "paris"}
	got := NormalizePlace("Paris :", aliases, "260[0]$a")

	if got.Value == nil || *got.Value != "paris" {
		t.Fatalf("Value = %v, want \"paris\"", got.Value)
	}
	if got.Display != "Paris" {
		t.Errorf("Display = %q, want %q", got.Display, "Paris")
	}
	if got.Method != "place_alias_map" {
		t.Errorf("Method = %q, want place_alias_map", got.Method)
	}
	if got.Confidence != ConfidenceAliasMap {
		t.Errorf("Confidence = %v, want %v", got.Confidence, ConfidenceAliasMap)
	}
}

func TestNormalizePlace_WithoutAlias(t *testing.T) {
	got := NormalizePlace("Paris :", AliasMap{}, "260[0]$a")

	if got.Value == nil || *got.Value != "paris" {
		t.Fatalf("Value = %v, want \"paris\"", got.Value)
	}
	if got.Method != "place_casefold_strip" {
		t.Errorf("Method = %q, want place_casefold_strip", got.Method)
	}
	if got.Confidence != ConfidenceCasefoldStrip {
		t.Errorf("Confidence = %v, want %v", got.Confidence, ConfidenceCasefoldStrip)
	}
}

func TestNormalizePlace_Missing(t *testing.T) {
	got := NormalizePlace("   ", AliasMap{}, "260[0]$a")
	if got.Method != MethodMissing {
		t.Errorf("Method = %q, want %q", got.Method, MethodMissing)
	}
}

func TestNormalizeField_StripsBracketsAndPunctuation(t *testing.T) {
	got := NormalizePublisher("[Chez Martin],", AliasMap{}, "260[0]$b")
	if got.Display != "Chez Martin" {
		t.Errorf("Display = %q, want %q", got.Display, "Chez Martin")
	}
}

func TestNormalizeField_IsIdempotentOnDisplay(t *testing.T) {
	aliases := AliasMap{}
	first := NormalizeAgent("  Jean   Baptiste  ", aliases, "100$a")
	second := NormalizeAgent(first.Display, aliases, "100$a")

	if first.Value == nil || second.Value == nil || *first.Value != *second.Value {
		t.Fatalf("normalize not idempotent on display form: %v vs %v", first.Value, second.Value)
	}
}

func TestSuggestAliases(t *testing.T) {
	aliases := AliasMap{"pariis_typo": "paris"}
	suggestions := SuggestAliases([]string{"paris", "pariss", "london"}, aliases)

	found := false
	for _, s := range suggestions {
		if s.Key == "pariss" && s.ClosestTo == "paris" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a suggestion linking %q to %q, got %+v", "pariss", "paris", suggestions)
	}
}
