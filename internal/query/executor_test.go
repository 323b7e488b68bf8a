package query

import (
	"testing"

	"github.com/hagaybar/biblioplan/internal/planner"
	"github.com/hagaybar/biblioplan/pkg/candidate"
)

func TestAppendEvidence_DedupsRepeatedRawValue(t *testing.T) {
	columns := []planner.ColumnInfo{
		{Alias: "imprints_place_raw", Field: "place", Kind: planner.ColumnRaw, MARCPath: "260$a", DBColumn: "place_raw"},
		{Alias: "imprints_place_norm", Field: "place", Kind: planner.ColumnNorm, MARCPath: "260$a", DBColumn: "place_norm"},
	}
	c := &candidate.Candidate{RecordID: "mms1"}
	seen := map[string]bool{}

	row1 := map[string]any{"imprints_place_raw": "Paris :", "imprints_place_norm": "paris"}
	appendEvidence(c, columns, row1, seen)
	appendEvidence(c, columns, row1, seen) // same row again: must not duplicate

	if len(c.Evidence) != 1 {
		t.Fatalf("expected exactly one Evidence entry after a repeated row, got %d: %+v", len(c.Evidence), c.Evidence)
	}
	if c.Evidence[0].NormalizedValue == nil || *c.Evidence[0].NormalizedValue != "paris" {
		t.Errorf("NormalizedValue = %v, want \"paris\"", c.Evidence[0].NormalizedValue)
	}
}

func TestAppendEvidence_DistinctValuesEachRecorded(t *testing.T) {
	columns := []planner.ColumnInfo{
		{Alias: "imprints_place_raw", Field: "place", Kind: planner.ColumnRaw, MARCPath: "260$a", DBColumn: "place_raw"},
		{Alias: "imprints_place_norm", Field: "place", Kind: planner.ColumnNorm, MARCPath: "260$a", DBColumn: "place_norm"},
	}
	c := &candidate.Candidate{RecordID: "mms1"}
	seen := map[string]bool{}

	appendEvidence(c, columns, map[string]any{"imprints_place_raw": "Paris :", "imprints_place_norm": "paris"}, seen)
	appendEvidence(c, columns, map[string]any{"imprints_place_raw": "London :", "imprints_place_norm": "london"}, seen)

	if len(c.Evidence) != 2 {
		t.Fatalf("expected two distinct Evidence entries, got %d: %+v", len(c.Evidence), c.Evidence)
	}
}

func TestAppendEvidence_NormOnlyFieldReportsWithoutRaw(t *testing.T) {
	columns := []planner.ColumnInfo{
		{Alias: "agents_agent_norm", Field: "agent", Kind: planner.ColumnNorm, MARCPath: "100$a", DBColumn: "agent_norm"},
	}
	c := &candidate.Candidate{RecordID: "mms1"}
	seen := map[string]bool{}

	appendEvidence(c, columns, map[string]any{"agents_agent_norm": "plantin"}, seen)

	if len(c.Evidence) != 1 {
		t.Fatalf("expected one Evidence entry, got %d", len(c.Evidence))
	}
	if c.Evidence[0].DBColumn != "agent_norm" {
		t.Errorf("DBColumn = %q, want %q", c.Evidence[0].DBColumn, "agent_norm")
	}
}
