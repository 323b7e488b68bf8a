package dialogue

import (
	"testing"

	"github.com/hagaybar/biblioplan/pkg/candidate"
	"github.com/hagaybar/biblioplan/pkg/queryplan"
)

func intPtr(n int) *int { return &n }

func TestMergeFilters_DedupsIdenticalFilter(t *testing.T) {
	active := []queryplan.Filter{{Field: "place", Op: queryplan.OpEQ, Value: "Paris"}}
	additional := []queryplan.Filter{{Field: "place", Op: queryplan.OpEQ, Value: "Paris"}}

	merged := mergeFilters(active, additional)
	if len(merged) != 1 {
		t.Fatalf("expected re-applying an identical REFINEMENT to be a no-op, got %d filters: %+v", len(merged), merged)
	}
}

func TestMergeFilters_AddsDistinctFilter(t *testing.T) {
	active := []queryplan.Filter{{Field: "place", Op: queryplan.OpEQ, Value: "Paris"}}
	additional := []queryplan.Filter{{Field: "date", Op: queryplan.OpRANGE, Start: intPtr(1500), End: intPtr(1599)}}

	merged := mergeFilters(active, additional)
	if len(merged) != 2 {
		t.Fatalf("expected both filters to survive, got %d: %+v", len(merged), merged)
	}
}

func TestMergeFilters_RangeValuesDistinguishedInKey(t *testing.T) {
	active := []queryplan.Filter{{Field: "date", Op: queryplan.OpRANGE, Start: intPtr(1500), End: intPtr(1599)}}
	additional := []queryplan.Filter{{Field: "date", Op: queryplan.OpRANGE, Start: intPtr(1600), End: intPtr(1699)}}

	merged := mergeFilters(active, additional)
	if len(merged) != 2 {
		t.Fatalf("expected distinct RANGE bounds to both survive, got %d: %+v", len(merged), merged)
	}
}

func TestSummarizeCandidates_ReportsTruncation(t *testing.T) {
	set := candidate.Set{TotalCount: 120, Truncated: true, Candidates: make([]candidate.Candidate, 50)}
	got := summarizeCandidates(set)
	want := "Found 120 matching records (showing 50)."
	if got != want {
		t.Errorf("summarizeCandidates() = %q, want %q", got, want)
	}
}

func TestSummarizeCandidates_ReportsExactCountWhenNotTruncated(t *testing.T) {
	set := candidate.Set{TotalCount: 3, Candidates: make([]candidate.Candidate, 3)}
	got := summarizeCandidates(set)
	want := "Found 3 matching record(s)."
	if got != want {
		t.Errorf("summarizeCandidates() = %q, want %q", got, want)
	}
}

func TestRecordIDsOf_PreservesOrder(t *testing.T) {
	set := candidate.Set{Candidates: []candidate.Candidate{{RecordID: "a"}, {RecordID: "b"}}}
	ids := recordIDsOf(set)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("recordIDsOf() = %v", ids)
	}
}

func TestFormatComparisonLine_IncludesEvidence(t *testing.T) {
	c := candidate.Candidate{
		RecordID: "mms1",
		Title:    "Some Title",
		Evidence: []candidate.Evidence{{DBColumn: "place_norm", Value: "paris"}},
	}
	got := formatComparisonLine(c)
	want := "mms1 (Some Title): place_norm=paris"
	if got != want {
		t.Errorf("formatComparisonLine() = %q, want %q", got, want)
	}
}
