package enrich

import "testing"

func TestNormalizedKey_CollapsesWhitespaceAndCase(t *testing.T) {
	a := normalizedKey("  Plantin,  Christophe ")
	b := normalizedKey("plantin, christophe")
	if a != b {
		t.Errorf("normalizedKey differs for equivalent input: %q vs %q", a, b)
	}
}

func TestSingleflightKey_DistinguishesEntityType(t *testing.T) {
	a := singleflightKey("agent", "Plantin")
	b := singleflightKey("place", "Plantin")
	if a == b {
		t.Errorf("expected distinct keys for distinct entity types, got %q for both", a)
	}
}
